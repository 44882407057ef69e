package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalSavesAllJobFiles(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocal(base)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveInput(ctx, "j1", []byte("<invoice/>")))
	require.NoError(t, store.SaveMetadata(ctx, "j1", map[string]string{
		"email":   "billing@example.com",
		"name":    "Ada",
		"company": "TGU",
		"phone":   "123",
	}))
	require.NoError(t, store.SaveArtifact(ctx, "j1", []byte("%PDF-1.4")))
	require.NoError(t, store.SaveValidationDetails(ctx, "j1", []byte("<validation/>")))

	jobDir := filepath.Join(base, "j1")
	for _, name := range []string{"input.xml", "request_info.xml", "output.pdf", "validation.xml"} {
		_, err := os.Stat(filepath.Join(jobDir, name))
		require.NoError(t, err, "expected %s to exist", name)
	}

	artifact, err := os.ReadFile(filepath.Join(jobDir, "output.pdf"))
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4"), artifact)

	metadata, err := os.ReadFile(filepath.Join(jobDir, "request_info.xml"))
	require.NoError(t, err)
	require.Contains(t, string(metadata), "<request>")
	require.Contains(t, string(metadata), "<email>billing@example.com</email>")
	require.Contains(t, string(metadata), "<company>TGU</company>")
}

func TestLocalRejectsEmptyJobID(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	require.Error(t, store.SaveInput(context.Background(), "", []byte("x")))
}

func TestNewLocalRequiresBaseDir(t *testing.T) {
	_, err := NewLocal("")
	require.Error(t, err)
}

func TestNewLocalCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "uploads")
	_, err := NewLocal(base)
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
