package notifyhub

import (
	"encoding/json"
	"log"

	"civictrack/backend/internal/models"
)

// startPubSubListener subscribes to the notify broadcast channel and
// feeds remote events into the local push path, so an event committed
// on any instance reaches connections held by every instance.
func (m *ManagerService) startPubSubListener() {
	if m.subscriber == nil {
		return
	}

	go func() {
		pubsub := m.subscriber.SubscribeEvents()
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var ev models.StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("ERROR: unmarshalling broadcast event: %v", err)
				continue
			}
			m.PushCh <- ev
		}
	}()
}
