package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gigmarket/backend/internal/chatroom"
	"gigmarket/backend/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows any origin. Lock down in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection and binds it to a room session.
// One socket, one viewer, one room.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID, err := h.currentUserID(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	roomID := c.Query("room_id")
	if roomID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "room_id is required"})
		return
	}

	room, err := h.Store.GetRoomByID(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, storage.ErrRoomNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load room"})
		return
	}
	if !room.HasParticipant(userID) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not a participant of this room"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := chatroom.NewWebSocketClient(userID, conn, h.Logger)
	session := chatroom.NewSession(h.Store, h.RT, client, roomID, h.Logger)
	client.Session = session

	// The handler returns right after the upgrade while the session
	// lives on, so the request context cannot scope the subscriptions.
	if err := session.Start(context.Background()); err != nil {
		h.Logger.Error().Err(err).Str("room_id", roomID).Msg("failed to start room session")
		conn.Close()
		return
	}

	client.Run()
}
