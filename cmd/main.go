package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/wordmesh/wordmesh-backend/internal/data/graph"
	"github.com/wordmesh/wordmesh-backend/internal/data/repos/auth"
	"github.com/wordmesh/wordmesh-backend/internal/data/repos/words"
	"github.com/wordmesh/wordmesh-backend/internal/db"
	"github.com/wordmesh/wordmesh-backend/internal/handlers"
	"github.com/wordmesh/wordmesh-backend/internal/middleware"
	"github.com/wordmesh/wordmesh-backend/internal/platform/envutil"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
	"github.com/wordmesh/wordmesh-backend/internal/platform/neo4jdb"
	"github.com/wordmesh/wordmesh-backend/internal/platform/redisdb"
	"github.com/wordmesh/wordmesh-backend/internal/server"
	"github.com/wordmesh/wordmesh-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	jwtSecret := envutil.String("JWT_SECRET_KEY", "")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}
	accessTTL := envutil.Seconds("ACCESS_TOKEN_TTL", 3600)
	refreshTTL := envutil.Seconds("REFRESH_TOKEN_TTL", 86400)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("postgres migration failed", "error", err)
	}
	pg := postgresService.DB()

	// Neo4j
	neoClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Fatal("neo4j init failed", "error", err)
	}
	if neoClient == nil {
		log.Fatal("NEO4J_URI is required")
	}
	defer neoClient.Close(context.Background())

	// Redis (optional, search cache degrades to pass-through without it)
	redisClient, err := redisdb.NewFromEnv(log)
	if err != nil {
		log.Warn("redis init failed, search cache disabled", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Repos
	userRepo := auth.NewUserRepo(pg, log)
	userTokenRepo := auth.NewUserTokenRepo(pg, log)
	wordRepo := words.NewWordRepo(pg, log)
	userWordRepo := words.NewUserWordRepo(pg, log)
	userSenseRepo := words.NewUserSenseRepo(pg, log)
	searchRepo := words.NewSearchRepo(pg, log, wordRepo, userSenseRepo)
	linkStore := graph.NewLinkStore(neoClient, log)

	// Services
	searchCache := services.NewSearchCache(redisClient, log)
	authService := services.NewAuthService(pg, log, userRepo, userTokenRepo, jwtSecret, accessTTL, refreshTTL)
	networkService := services.NewNetworkService(log, wordRepo, userWordRepo, userSenseRepo, searchRepo, linkStore, searchCache)
	senseService := services.NewSenseService(log, userWordRepo, userSenseRepo, linkStore, searchCache)
	linkService := services.NewLinkService(log, wordRepo, userWordRepo, userSenseRepo, linkStore, searchCache)

	// HTTP
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:    handlers.NewAuthHandler(authService),
		AuthMiddleware: middleware.NewAuthMiddleware(log, authService),
		NetworkHandler: handlers.NewNetworkHandler(networkService),
		SenseHandler:   handlers.NewSenseHandler(senseService),
		LinkHandler:    handlers.NewLinkHandler(linkService),
	})

	port := envutil.String("PORT", "8080")
	log.Info("server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("server failed", "error", err)
	}
}
