// Package storage persists job inputs, metadata and generated artifacts on
// the local filesystem, one directory per job id.
package storage

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	inputFilename      = "input.xml"
	metadataFilename   = "request_info.xml"
	artifactFilename   = "output.pdf"
	validationFilename = "validation.xml"
)

// Local stores everything under baseDir/<jobID>/.
type Local struct {
	baseDir string
}

// NewLocal creates the base directory when missing and returns a Local store.
func NewLocal(baseDir string) (*Local, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Local{baseDir: baseDir}, nil
}

// SaveInput writes the submitted payload as input.xml.
func (l *Local) SaveInput(ctx context.Context, jobID string, data []byte) error {
	return l.write(jobID, inputFilename, data)
}

// SaveMetadata writes the request metadata as request_info.xml.
func (l *Local) SaveMetadata(ctx context.Context, jobID string, fields map[string]string) error {
	data, err := marshalMetadata(fields)
	if err != nil {
		return err
	}
	return l.write(jobID, metadataFilename, data)
}

// SaveArtifact writes the generated document as output.pdf.
func (l *Local) SaveArtifact(ctx context.Context, jobID string, data []byte) error {
	return l.write(jobID, artifactFilename, data)
}

// SaveValidationDetails writes backend validation output as validation.xml.
func (l *Local) SaveValidationDetails(ctx context.Context, jobID string, data []byte) error {
	return l.write(jobID, validationFilename, data)
}

func (l *Local) write(jobID, filename string, data []byte) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	dir := filepath.Join(l.baseDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

// metadataField keeps the request-info XML deterministic.
type metadataField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type metadataDoc struct {
	XMLName xml.Name        `xml:"request"`
	Fields  []metadataField `xml:",any"`
}

func marshalMetadata(fields map[string]string) ([]byte, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := metadataDoc{}
	for _, name := range names {
		doc.Fields = append(doc.Fields, metadataField{
			XMLName: xml.Name{Local: name},
			Value:   fields[name],
		})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
