package chatroom

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/models"
)

// WebSocketClient implements Client over a gorilla/websocket connection.
// The read pump turns socket frames into session commands; the write pump
// drains the session's view events back out.
type WebSocketClient struct {
	UserID  string
	Conn    *websocket.Conn
	Session *Session
	Send    chan models.ViewEvent
	Logger  zerolog.Logger
}

func NewWebSocketClient(userID string, conn *websocket.Conn, logger zerolog.Logger) *WebSocketClient {
	return &WebSocketClient{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan models.ViewEvent, config.SendBufferSize),
		Logger: logger.With().Str("user_id", userID).Logger(),
	}
}

func (c *WebSocketClient) GetUserID() string { return c.UserID }

func (c *WebSocketClient) GetSendChannel() chan<- models.ViewEvent { return c.Send }

// Run starts both pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the Send channel, which stops the write pump and sends the
// websocket close frame. The read pump stops when the connection drops.
func (c *WebSocketClient) Close() {
	close(c.Send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		// Socket gone or unreadable: tear the whole session down.
		c.Session.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Logger.Warn().Err(err).Msg("websocket read failed")
			}
			break
		}

		var cmd models.ClientCommand
		if err := json.Unmarshal(frame, &cmd); err != nil {
			c.Logger.Warn().Err(err).Msg("dropping malformed client frame")
			continue
		}

		c.Session.HandleCommand(cmd)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				// Session closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(ev)
			if err != nil {
				c.Logger.Warn().Err(err).Msg("encoding view event")
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
