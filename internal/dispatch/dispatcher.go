// Package dispatch turns committed complaint transitions into
// notifications. A single goroutine relays the event outbox in
// sequence order; per complaint that order is commit order, because a
// later transition can only pass its status guard after the earlier
// one committed. Rows are marked relayed only after the durable
// notification is written, so a crash re-delivers instead of losing.
// The realtime legs (redis broadcast to the hubs, telegram) are
// best-effort and can fail without touching state.
package dispatch

import (
	"fmt"
	"log"
	"time"

	"civictrack/backend/internal/config"
	"civictrack/backend/internal/models"
)

// Store is the slice of the storage layer the dispatcher needs.
type Store interface {
	UnrelayedEvents(limit int) ([]models.EventOutbox, error)
	MarkEventRelayed(seq int64) error
	CreateNotification(n *models.Notification) error
	PruneNotifications(recipientID string, keep int) (int64, error)
	PublishEvent(ev models.StatusEvent) error
	GetUserByID(id string) (*models.User, error)
}

// TelegramPusher is the optional telegram bridge.
type TelegramPusher interface {
	Push(chatID int64, text string) error
}

// Dispatcher relays outbox events into notifications and pushes.
type Dispatcher struct {
	Store    Store
	Telegram TelegramPusher

	wake chan struct{}
}

// NewDispatcher creates a dispatcher; telegram may be nil.
func NewDispatcher(store Store, tg TelegramPusher) *Dispatcher {
	return &Dispatcher{
		Store:    store,
		Telegram: tg,
		wake:     make(chan struct{}, 1),
	}
}

// Kick wakes the relay loop without blocking the caller.
func (d *Dispatcher) Kick() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run relays the outbox until the process exits, waking on Kick or on
// the poll interval, whichever comes first.
func (d *Dispatcher) Run() {
	log.Println("Notification relay started.")
	for {
		if d.RunOnce() == 0 {
			select {
			case <-d.wake:
			case <-time.After(config.EventRelayInterval):
			}
		}
	}
}

// RunOnce relays one batch of pending events in sequence order and
// returns how many were handled. A failed event stops the batch and is
// retried next round, keeping the per-complaint order intact.
func (d *Dispatcher) RunOnce() int {
	batch, err := d.Store.UnrelayedEvents(config.EventRelayBatch)
	if err != nil {
		log.Printf("ERROR: failed to load pending events: %v", err)
		return 0
	}

	handled := 0
	for _, rec := range batch {
		if err := d.Handle(rec.Event()); err != nil {
			log.Printf("ERROR: event %d for complaint %s will be retried: %v", rec.Seq, rec.ComplaintID, err)
			break
		}
		if err := d.Store.MarkEventRelayed(rec.Seq); err != nil {
			log.Printf("ERROR: failed to mark event %d relayed: %v", rec.Seq, err)
			break
		}
		handled++
	}
	return handled
}

// Handle processes a single event: durable write first, then the
// fire-and-forget pushes. Only a failed durable write is an error.
func (d *Dispatcher) Handle(ev models.StatusEvent) error {
	complaintID := ev.ComplaintID
	n := &models.Notification{
		RecipientID: ev.RecipientID,
		Message:     MessageFor(ev),
		ComplaintID: &complaintID,
		Kind:        ev.Kind,
	}
	if err := d.Store.CreateNotification(n); err != nil {
		return err
	}
	if _, err := d.Store.PruneNotifications(ev.RecipientID, config.NotificationRetention); err != nil {
		log.Printf("WARNING: notification prune failed for %s: %v", ev.RecipientID, err)
	}

	// Realtime legs. The recipient being offline is not an error; the
	// row above is what the client reconciles from on reconnect.
	if err := d.Store.PublishEvent(ev); err != nil {
		log.Printf("WARNING: realtime broadcast failed for complaint %s: %v", ev.ComplaintID, err)
	}
	d.pushTelegram(ev, n.Message)
	return nil
}

func (d *Dispatcher) pushTelegram(ev models.StatusEvent, text string) {
	if d.Telegram == nil {
		return
	}
	user, err := d.Store.GetUserByID(ev.RecipientID)
	if err != nil || user.TelegramChatID == nil {
		return
	}
	if err := d.Telegram.Push(*user.TelegramChatID, text); err != nil {
		log.Printf("WARNING: telegram push failed for user %s: %v", ev.RecipientID, err)
	}
}

// MessageFor renders the reporter-facing text for an event.
func MessageFor(ev models.StatusEvent) string {
	switch ev.Kind {
	case models.EventAssigned:
		if ev.AuthorityName != "" {
			return fmt.Sprintf("Your complaint %q has been assigned to %s.", ev.ComplaintTitle, ev.AuthorityName)
		}
		return fmt.Sprintf("Your complaint %q has been assigned to an authority.", ev.ComplaintTitle)
	case models.EventInProgress:
		return fmt.Sprintf("Work on your complaint %q is now in progress.", ev.ComplaintTitle)
	case models.EventResolved:
		return fmt.Sprintf("Your complaint %q has been resolved.", ev.ComplaintTitle)
	}
	return fmt.Sprintf("Your complaint %q was updated.", ev.ComplaintTitle)
}
