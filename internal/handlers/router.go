package handlers

import (
	"doc-parser/internal/logger"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Token     string
	ImagesDir string
	Process   *ProcessHandler
	Teams     *TeamsHandler
	Detect    *DetectHandler
}

// NewRouter wires middleware and routes onto a fresh engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(logger.Middleware())
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(AuthMiddleware(cfg.Token))

	router.GET("/health", Health)
	if cfg.ImagesDir != "" {
		router.Static("/extracted", cfg.ImagesDir)
	}

	if cfg.Process != nil {
		router.POST("/upload", cfg.Process.Upload)
		router.POST("/parse", cfg.Process.Parse)
		router.DELETE("/clean_uploads", cfg.Process.CleanUploads)
	}
	if cfg.Detect != nil {
		router.POST("/detect", cfg.Detect.Detect)
	}

	api := router.Group("/api")
	{
		if cfg.Teams != nil {
			api.GET("/teams", cfg.Teams.ListTeams)
		}
	}

	return router
}
