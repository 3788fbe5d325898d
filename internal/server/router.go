package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/wordmesh/wordmesh-backend/internal/handlers"
	"github.com/wordmesh/wordmesh-backend/internal/middleware"
	"github.com/wordmesh/wordmesh-backend/internal/platform/envutil"
)

type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	NetworkHandler *handlers.NetworkHandler
	SenseHandler   *handlers.SenseHandler
	LinkHandler    *handlers.LinkHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)
	router.POST("/refresh", cfg.AuthHandler.Refresh)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	api.POST("/logout", cfg.AuthHandler.Logout)
	api.GET("/me", cfg.AuthHandler.Me)

	// Network
	api.POST("/words", cfg.NetworkHandler.AddWord)
	api.GET("/words/search", cfg.NetworkHandler.Search)
	api.GET("/words/:id", cfg.NetworkHandler.GetWord)
	api.DELETE("/words/:id", cfg.NetworkHandler.RemoveWord)

	// Senses
	api.POST("/words/:id/senses", cfg.SenseHandler.Add)
	api.PATCH("/senses/:id", cfg.SenseHandler.Update)
	api.DELETE("/senses/:id", cfg.SenseHandler.Remove)

	// Links
	api.POST("/links/words", cfg.LinkHandler.CreateWordLink)
	api.DELETE("/links/words", cfg.LinkHandler.DeleteWordLink)
	api.GET("/words/:id/links", cfg.LinkHandler.ListWordLinks)
	api.POST("/senses/:id/links", cfg.LinkHandler.CreateSenseLink)
	api.DELETE("/senses/:id/links", cfg.LinkHandler.DeleteSenseLink)
	api.GET("/senses/:id/links", cfg.LinkHandler.ListSenseLinks)

	return router
}

func corsOrigins() []string {
	raw := envutil.String("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173")
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
