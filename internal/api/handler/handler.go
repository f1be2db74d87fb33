package handler

import (
	"github.com/rs/zerolog"

	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/realtime"
	"gigmarket/backend/internal/storage"
)

// Handler carries the dependencies of the HTTP and WebSocket surface.
type Handler struct {
	Store  storage.Storage
	RT     realtime.Opener
	Auth   config.AuthConfig
	Logger zerolog.Logger
}

func NewHandler(store storage.Storage, rt realtime.Opener, auth config.AuthConfig, logger zerolog.Logger) *Handler {
	return &Handler{Store: store, RT: rt, Auth: auth, Logger: logger}
}
