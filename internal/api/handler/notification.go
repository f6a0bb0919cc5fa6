package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListNotifications returns the caller's notifications, newest first.
func (h *Handler) ListNotifications(c *gin.Context) {
	notifications, err := h.Storage.ListNotifications(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkNotificationRead flips the read flag on one of the caller's rows.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.Storage.MarkNotificationRead(c.Param("id"), c.GetString("user_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}
