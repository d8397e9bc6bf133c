// Package server assembles the utubs HTTP API.
package server

import (
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/mikepea/utubs/pkg/utubs/apikeys"
	"github.com/mikepea/utubs/pkg/utubs/auth"
	"github.com/mikepea/utubs/pkg/utubs/importexport"
	"github.com/mikepea/utubs/pkg/utubs/tags"
	"github.com/mikepea/utubs/pkg/utubs/urls"
	"github.com/mikepea/utubs/pkg/utubs/utubs"
	"gorm.io/gorm"
)

// NewRouter builds the gin engine with every route registered.
func NewRouter(db *gorm.DB, l *log.Logger) *gin.Engine {
	if l == nil {
		l = log.New(io.Discard)
	}
	r := gin.New()
	r.Use(RequestID(), Logger(l.With("component", "http")), gin.Recovery())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "utubs",
			})
		})

		// Combined auth middleware (accepts JWT or API key)
		combinedAuth := apikeys.CombinedAuthMiddleware(db)

		// Auth routes (register and login are public)
		authHandler := auth.NewHandler(db)
		authHandler.RegisterRoutes(api.Group("/auth"), combinedAuth)

		// Keys can only be managed with a login token
		apikeys.NewHandler(db).RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		protected := api.Group("", combinedAuth)

		utubs.NewHandler(db).RegisterRoutes(protected)
		urls.NewHandler(db).RegisterRoutes(protected)
		tags.NewHandler(db).RegisterRoutes(protected)
		importexport.NewHandler(db).RegisterRoutes(protected)
	}

	return r
}
