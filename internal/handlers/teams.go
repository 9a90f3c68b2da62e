package handlers

import (
	"context"
	"errors"
	"net/http"

	"doc-parser/internal/logger"
	"doc-parser/internal/metadata"
	"doc-parser/internal/models"

	"github.com/gin-gonic/gin"
)

// TeamLister is satisfied by *metadata.Gateway.
type TeamLister interface {
	ListTeams(ctx context.Context) ([]models.TeamRecord, error)
}

type TeamsHandler struct {
	teams TeamLister
}

func NewTeamsHandler(teams TeamLister) *TeamsHandler {
	return &TeamsHandler{teams: teams}
}

// ListTeams handles GET /api/teams.
func (h *TeamsHandler) ListTeams(c *gin.Context) {
	log := logger.ForRequest(c)

	if h.teams == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Metadata store unavailable",
			"details": "metadata gateway is disabled",
		})
		return
	}

	teams, err := h.teams.ListTeams(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list teams")
		message := "Failed to list teams"
		if errors.Is(err, metadata.ErrGatewayUnavailable) {
			message = "Metadata store unavailable"
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   message,
			"details": err.Error(),
		})
		return
	}

	if teams == nil {
		teams = []models.TeamRecord{}
	}
	c.JSON(http.StatusOK, models.TeamsResponse{Teams: teams, Count: len(teams)})
}
