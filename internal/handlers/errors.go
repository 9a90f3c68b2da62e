package handlers

import (
	"net/http"

	"doc-parser/internal/services"

	"github.com/gin-gonic/gin"
)

func writeHTTPError(c *gin.Context, err *services.HTTPError) {
	body := gin.H{"error": err.Message}
	if err.Details != "" {
		body["details"] = err.Details
	}
	c.JSON(err.Status, body)
}

func writeStorageError(c *gin.Context, err error) {
	writeHTTPError(c, &services.HTTPError{
		Status:  http.StatusInternalServerError,
		Message: "Storage failure",
		Details: err.Error(),
		Cause:   err,
	})
}
