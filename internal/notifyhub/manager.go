// Package notifyhub is the realtime channel registry: it maps a user
// identity to their live connections and pushes status events to them.
// Pushes are fire-and-forget; the durable notification row written by
// the dispatcher is the source of truth a client reconciles from.
package notifyhub

import (
	"log"

	"civictrack/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// Subscriber yields the cross-instance event subscription; satisfied by
// the storage service.
type Subscriber interface {
	SubscribeEvents() *redis.PubSub
}

// ManagerService owns the connection registry. All registry state is
// confined to the Run goroutine; other goroutines talk to it through
// the channels only.
type ManagerService struct {
	// clients maps userID to that user's live connections.
	clients map[string]map[Client]struct{}

	RegisterCh   chan Client
	UnregisterCh chan Client
	PushCh       chan models.StatusEvent

	subscriber Subscriber
}

// NewManagerService creates the hub. subscriber may be nil in tests,
// in which case only locally pushed events are delivered.
func NewManagerService(sub Subscriber) *ManagerService {
	return &ManagerService{
		clients:      make(map[string]map[Client]struct{}),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		PushCh:       make(chan models.StatusEvent, 64),
		subscriber:   sub,
	}
}

// Run is the hub's main dispatch loop.
func (m *ManagerService) Run() {
	m.startPubSubListener()

	for {
		select {
		case client := <-m.RegisterCh:
			set, ok := m.clients[client.GetUserID()]
			if !ok {
				set = make(map[Client]struct{})
				m.clients[client.GetUserID()] = set
			}
			set[client] = struct{}{}
			log.Printf("INFO: client registered for user %s (%d connections)", client.GetUserID(), len(set))

		case client := <-m.UnregisterCh:
			m.drop(client)

		case ev := <-m.PushCh:
			m.deliver(ev)
		}
	}
}

// Push hands a locally produced event to the hub.
func (m *ManagerService) Push(ev models.StatusEvent) {
	m.PushCh <- ev
}

// deliver fans one event out to every live connection of its recipient.
// A client whose buffer is full is dropped instead of stalling the hub.
func (m *ManagerService) deliver(ev models.StatusEvent) {
	for client := range m.clients[ev.RecipientID] {
		select {
		case client.GetSendChannel() <- ev:
		default:
			log.Printf("WARNING: dropping slow client for user %s", ev.RecipientID)
			m.drop(client)
		}
	}
}

func (m *ManagerService) drop(client Client) {
	set, ok := m.clients[client.GetUserID()]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(m.clients, client.GetUserID())
	}
	client.Close()
	log.Printf("INFO: client unregistered for user %s", client.GetUserID())
}
