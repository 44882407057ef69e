package jobs

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UploadOptions configures the submission endpoint.
type UploadOptions struct {
	// TemplatePath is the composed backend template path attached to every job.
	TemplatePath string
	// MaxFileSize is the upper bound for the input payload in bytes.
	MaxFileSize int64
}

// UploadHandler returns the handler for POST /api/documents. It accepts the
// raw document payload plus routing metadata, creates the registry entry and
// answers with the job id without waiting for processing. Invalid input is
// rejected before a job id ever exists.
func UploadHandler(orch *Orchestrator, storage ArtifactStore, opts UploadOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "No XML file uploaded.",
			})
			return
		}
		if opts.MaxFileSize > 0 && fileHeader.Size > opts.MaxFileSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"code":    "LIMIT_EXCEEDED",
				"message": "Uploaded file exceeds the size limit.",
			})
			return
		}
		if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xml") {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "Only .xml files are allowed.",
			})
			return
		}

		data, err := readMultipartFile(fileHeader)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to read uploaded file.",
			})
			return
		}
		if mtype := mimetype.Detect(data); !mtype.Is("text/xml") && !mtype.Is("application/xml") {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "Only .xml files are allowed.",
			})
			return
		}

		var flowData []byte
		if flowHeader, err := c.FormFile("flowData"); err == nil {
			flowData, err = readMultipartFile(flowHeader)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"code":    "INTERNAL_ERROR",
					"message": "Failed to read flow data.",
				})
				return
			}
		}

		jobID := uuid.New().String()

		if err := storage.SaveInput(c.Request.Context(), jobID, data); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to store uploaded file.",
			})
			return
		}
		metadata := map[string]string{
			"email":   c.PostForm("email"),
			"name":    c.PostForm("name"),
			"company": c.PostForm("company"),
			"phone":   c.PostForm("phone"),
		}
		if err := storage.SaveMetadata(c.Request.Context(), jobID, metadata); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to store request metadata.",
			})
			return
		}

		orch.Submit(&Job{
			ID:            jobID,
			Data:          data,
			FlowData:      flowData,
			TemplatePath:  opts.TemplatePath,
			Priority:      strings.TrimSpace(c.PostForm("priority")),
			CorrelationID: jobID,
		})

		c.JSON(http.StatusAccepted, gin.H{"jobId": jobID})
	}
}

// StatusHandler returns the handler for GET /api/jobs/:id, backed by the
// record store.
func StatusHandler(orch *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := strings.TrimSpace(c.Param("id"))
		if jobID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "jobId is required.",
			})
			return
		}

		record, err := orch.GetRecord(c.Request.Context(), jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Failed to load job record.",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "No such job.",
			})
			return
		}

		payload := gin.H{
			"jobId":     record.JobID,
			"status":    record.Status,
			"updatedAt": record.UpdatedAt,
		}
		if record.PDFURL != "" {
			payload["pdfUrl"] = record.PDFURL
		}
		if record.Error != nil {
			payload["error"] = record.Error
		}
		c.JSON(http.StatusOK, payload)
	}
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
