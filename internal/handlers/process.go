package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"doc-parser/internal/logger"
	"doc-parser/internal/models"
	"doc-parser/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// multipartSlack covers multipart framing on top of the file itself.
const multipartSlack = 1 << 20

type ProcessHandler struct {
	validator     *services.UploadValidator
	staging       *services.StagingStore
	dispatcher    *services.Dispatcher
	errClassifier *services.ErrorClassifier
	textSanitizer *services.TextSanitizer
}

func NewProcessHandler(
	validator *services.UploadValidator,
	staging *services.StagingStore,
	dispatcher *services.Dispatcher,
	errClassifier *services.ErrorClassifier,
	textSanitizer *services.TextSanitizer,
) *ProcessHandler {
	return &ProcessHandler{
		validator:     validator,
		staging:       staging,
		dispatcher:    dispatcher,
		errClassifier: errClassifier,
		textSanitizer: textSanitizer,
	}
}

// Upload handles POST /upload: the response shape depends on whether the
// upload is an image or a document.
func (h *ProcessHandler) Upload(c *gin.Context) {
	result, ok := h.process(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, services.Shape(result))
}

// Parse handles POST /parse and returns the pages joined as plain text.
func (h *ProcessHandler) Parse(c *gin.Context) {
	result, ok := h.process(c)
	if !ok {
		return
	}
	resp := services.ShapeText(result)
	resp.Text = h.textSanitizer.SanitizeText(resp.Text)
	c.JSON(http.StatusOK, resp)
}

// process validates, stages and dispatches one upload. It writes the
// error response itself and reports false on failure.
func (h *ProcessHandler) process(c *gin.Context) (models.ParseResult, bool) {
	log := logger.ForRequest(c)

	header, name, ext, err := h.receive(c)
	if err != nil {
		log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Upload rejected")
		writeHTTPError(c, services.NewValidationError(err, err.Error()))
		return models.ParseResult{}, false
	}

	src, err := header.Open()
	if err != nil {
		writeStorageError(c, fmt.Errorf("%w: opening upload: %v", services.ErrStorageFailure, err))
		return models.ParseResult{}, false
	}
	defer src.Close()

	staged, err := h.staging.Stage(src, name)
	if err != nil {
		log.WithError(err).Error("Failed to stage upload")
		writeStorageError(c, err)
		return models.ParseResult{}, false
	}

	log.WithFields(logrus.Fields{
		"file":      staged.OriginalName,
		"extension": ext,
		"bytes":     header.Size,
	}).Info("Upload staged, parsing")

	result, err := h.dispatcher.Dispatch(c.Request.Context(), staged, ext)
	if err != nil {
		if errors.Is(err, services.ErrStorageFailure) {
			log.WithError(err).Error("Failed to read staged upload")
			writeStorageError(c, err)
			return models.ParseResult{}, false
		}

		report := h.errClassifier.ClassifyError(err)
		log.WithFields(logrus.Fields{
			"file":     staged.OriginalName,
			"category": report.Category,
			"error":    err.Error(),
		}).Error("Parsing failed")
		c.JSON(report.Status, report)
		return models.ParseResult{}, false
	}

	return result, true
}

// receive pulls the "file" part out of the request and validates it.
func (h *ProcessHandler) receive(c *gin.Context) (*multipart.FileHeader, string, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.validator.MaxBytes()+multipartSlack)

	header, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", "", fmt.Errorf("%w: request body exceeds %d bytes", services.ErrTooLarge, tooBig.Limit)
		}
		// A part named "file" without a filename is parsed as a plain value.
		if form := c.Request.MultipartForm; form != nil {
			if _, ok := form.Value["file"]; ok {
				return nil, "", "", services.ErrEmptyFilename
			}
		}
		return nil, "", "", services.ErrMissingFile
	}

	name, ext, err := h.validator.Validate(header)
	return header, name, ext, err
}

// CleanUploads handles DELETE /clean_uploads. Any file that could not be
// removed turns the response into a 500 that still lists what was deleted.
func (h *ProcessHandler) CleanUploads(c *gin.Context) {
	log := logger.ForRequest(c)

	result, err := h.staging.Clean()
	if err != nil {
		if errors.Is(err, services.ErrStagingMissing) {
			log.WithFields(logrus.Fields{
				"dir": h.staging.Dir(),
			}).Warn("Upload directory does not exist")
			c.JSON(http.StatusNotFound, gin.H{
				"error":         "Upload directory not found",
				"deleted_files": []string{},
				"deleted_count": 0,
			})
			return
		}
		log.WithError(err).Error("Failed to read upload directory")
		writeStorageError(c, err)
		return
	}

	response := models.CleanResponse{
		Message:      fmt.Sprintf("Successfully deleted %d file(s)", len(result.DeletedFiles)),
		DeletedFiles: result.DeletedFiles,
		DeletedCount: len(result.DeletedFiles),
	}

	if len(result.FailedFiles) > 0 {
		message := response.Message + fmt.Sprintf(". Failed to delete %d file(s)", len(result.FailedFiles))
		log.WithFields(logrus.Fields{
			"deletedCount": response.DeletedCount,
			"failedCount":  len(result.FailedFiles),
		}).Error("Clean operation incomplete")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":         message,
			"deleted_files": response.DeletedFiles,
			"deleted_count": response.DeletedCount,
			"failed_files":  result.FailedFiles,
		})
		return
	}

	log.WithFields(logrus.Fields{
		"deletedCount": response.DeletedCount,
	}).Info("Clean operation completed")

	c.JSON(http.StatusOK, response)
}
