package handler

import (
	"net/http"

	"civictrack/backend/internal/models"
	"civictrack/backend/internal/notifyhub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten in production!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection and joins the caller's
// identity to the notification hub. A user may hold several
// connections; each gets every push addressed to them.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID, _, err := h.callerFromHeader(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
		return
	}

	client := &notifyhub.WebSocketClient{
		Hub:    h.Hub,
		UserID: userID,
		Conn:   conn,
		Send:   make(chan models.StatusEvent, 256),
	}

	h.Hub.RegisterCh <- client
	client.Run()
}
