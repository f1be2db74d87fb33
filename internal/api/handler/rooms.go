package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/storage"
)

// GetRoomMessages is the REST mirror of the backfill read: the most recent
// non-deleted messages, ascending by creation time.
func (h *Handler) GetRoomMessages(c *gin.Context) {
	userID, err := h.currentUserID(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	roomID := c.Param("room_id")
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

	messages, err := h.Store.GetRecentMessages(c.Request.Context(), roomID, config.BackfillLimit)
	if err != nil {
		h.Logger.Error().Err(err).Str("room_id", roomID).Msg("failed to load messages")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type createRoomRequest struct {
	OtherUserID string `json:"other_user_id" binding:"required"`
}

// CreateRoom is the provisioning hook the marketplace calls when an
// application is accepted. Idempotent: an existing room between the pair is
// returned as-is.
func (h *Handler) CreateRoom(c *gin.Context) {
	userID, err := h.currentUserID(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "other_user_id is required"})
		return
	}
	if req.OtherUserID == userID {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Cannot open a room with yourself"})
		return
	}

	room, err := h.Store.EnsureRoom(c.Request.Context(), userID, req.OtherUserID)
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to provision room")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	c.JSON(http.StatusOK, room)
}

// DeleteMessage soft-deletes one of the caller's own messages. Live views
// are not retracted; the row simply disappears from future backfills.
func (h *Handler) DeleteMessage(c *gin.Context) {
	userID, err := h.currentUserID(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	err = h.Store.SoftDeleteMessage(c.Request.Context(), c.Param("message_id"), userID)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Message not found"})
			return
		}
		h.Logger.Error().Err(err).Msg("failed to delete message")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete message"})
		return
	}

	c.Status(http.StatusNoContent)
}
