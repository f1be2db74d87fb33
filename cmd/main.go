package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gigmarket/backend/internal/api/handler"
	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/models"
	"gigmarket/backend/internal/realtime"
	"gigmarket/backend/internal/storage"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect PostgreSQL")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect Redis")
	}

	err = db.AutoMigrate(
		&models.ChatRoom{},
		&models.Participant{},
		&models.Message{},
		&models.User{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	log.Info().Msg("database and Redis connections established, migrations complete")
	return db, rdb
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file loaded")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.With().Str("service", "chat").Logger()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("GIGMARKET_AUTH_JWT_SECRET is not set")
	}

	db, rdb := setupDependencies(cfg)
	store := storage.NewStorageService(db, rdb, logger)
	channels := realtime.NewChannels(store, logger)

	r := gin.Default()
	h := handler.NewHandler(store, channels, cfg.Auth, logger)

	r.GET("/token", h.GetToken)
	r.GET("/ws", h.ServeWebSocket)
	r.POST("/rooms", h.CreateRoom)
	r.GET("/rooms/:room_id/messages", h.GetRoomMessages)
	r.DELETE("/messages/:message_id", h.DeleteMessage)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	logger.Info().Str("addr", server.Addr).Msg("starting gigmarket chat backend")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
