package models

import "time"

// EventKind names a committed complaint transition.
type EventKind string

const (
	EventAssigned   EventKind = "assigned"
	EventInProgress EventKind = "inprogress"
	EventResolved   EventKind = "resolved"
)

// StatusEvent is the immutable record of a committed transition,
// consumed by the notification dispatcher. It is also the JSON payload
// pushed over the realtime channels.
type StatusEvent struct {
	Kind           EventKind `json:"kind"`
	ComplaintID    string    `json:"complaint_id"`
	ComplaintTitle string    `json:"complaint_title"`
	RecipientID    string    `json:"recipient_id"`
	AuthorityName  string    `json:"authority_name,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// EventOutbox is the durable event row written in the same transaction
// as the status flip that produced it. Seq is database-assigned; per
// complaint it increases strictly with commit order, because a later
// transition can only pass its status guard after the earlier one
// committed. The dispatcher relays rows in Seq order.
type EventOutbox struct {
	Seq            int64     `gorm:"primaryKey;autoIncrement" json:"seq"`
	Kind           EventKind `gorm:"type:text;not null" json:"kind"`
	ComplaintID    string    `gorm:"type:text;not null;index" json:"complaint_id"`
	ComplaintTitle string    `gorm:"type:text;not null" json:"complaint_title"`
	RecipientID    string    `gorm:"type:text;not null" json:"recipient_id"`
	AuthorityName  string    `gorm:"type:text" json:"authority_name,omitempty"`
	Relayed        bool      `gorm:"not null;default:false;index" json:"relayed"`
	CreatedAt      time.Time `json:"created_at"`
}

// Event converts the outbox row back into the dispatch payload.
func (o *EventOutbox) Event() StatusEvent {
	return StatusEvent{
		Kind:           o.Kind,
		ComplaintID:    o.ComplaintID,
		ComplaintTitle: o.ComplaintTitle,
		RecipientID:    o.RecipientID,
		AuthorityName:  o.AuthorityName,
		OccurredAt:     o.CreatedAt,
	}
}
