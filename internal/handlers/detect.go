package handlers

import (
	"net/http"

	"doc-parser/internal/classifier"
	"doc-parser/internal/logger"
	"doc-parser/internal/models"
	"doc-parser/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type DetectHandler struct {
	classifier    classifier.Classifier
	labels        []string
	textSanitizer *services.TextSanitizer
}

func NewDetectHandler(c classifier.Classifier, labels []string, textSanitizer *services.TextSanitizer) *DetectHandler {
	return &DetectHandler{classifier: c, labels: labels, textSanitizer: textSanitizer}
}

// Detect handles POST /detect.
func (h *DetectHandler) Detect(c *gin.Context) {
	log := logger.ForRequest(c)

	var request models.DetectRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Validation error for /detect")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if problems := h.textSanitizer.CountProblems(request.Text); problems["controlChars"]+problems["zeroWidthChars"] > 0 {
		log.WithFields(logrus.Fields{
			"controlChars":   problems["controlChars"],
			"zeroWidthChars": problems["zeroWidthChars"],
		}).Debug("Sanitizing /detect input")
	}
	text := h.textSanitizer.SanitizeText(request.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Text is empty after sanitization",
		})
		return
	}

	result, err := h.classifier.Classify(c.Request.Context(), text, h.labels)
	if err != nil {
		log.WithError(err).Error("Classification failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Classification failed",
			"details": err.Error(),
		})
		return
	}

	log.WithFields(logrus.Fields{
		"label":      result.Label,
		"confidence": result.Confidence,
		"chars":      len(text),
	}).Info("Text classified")

	c.JSON(http.StatusOK, models.DetectResponse{Text: text, Classification: result})
}
