package notifyhub

import "civictrack/backend/internal/models"

// Client is one live delivery channel for a user (a websocket tab, a
// Telegram chat). The hub manages every kind uniformly; a user may hold
// any number of clients at once, including zero.
type Client interface {
	// GetUserID returns the identity this connection is authenticated as.
	GetUserID() string

	// GetSendChannel returns the channel the hub pushes events into.
	// Delivery is best-effort: a full buffer disconnects the client
	// rather than blocking the hub.
	GetSendChannel() chan<- models.StatusEvent

	// Run starts the client's pumps.
	Run()
	// Close shuts down the client's send channel and its pumps.
	Close()
}
