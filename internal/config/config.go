package config

import "time"

const (
	// Concurrency
	TransitionRetries    = 1 // extra attempts after a lost optimistic check
	TransientRetries     = 3
	TransientBackoffBase = 50 * time.Millisecond

	// Notifications
	NotificationRetention = 100 // most recent rows kept per recipient
	EventRelayBatch       = 64
	EventRelayInterval    = time.Second

	// Realtime broadcast channel (redis pub/sub)
	NotifyBroadcastChannel = "notify:broadcast"

	// Auth
	TokenTTL    = 72 * time.Hour
	TokenIssuer = "civictrack-service"
)
