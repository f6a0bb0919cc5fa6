package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is the durable copy of a state-change push. Rows are
// created exclusively by the dispatcher, never directly by a user
// action; the recipient is always the complaint's reporter.
type Notification struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	RecipientID string    `gorm:"type:text;not null;index" json:"recipient_id"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	ComplaintID *string   `gorm:"index" json:"complaint_id,omitempty"`
	Kind        EventKind `gorm:"type:text;not null" json:"kind"`
	Read        bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate generates the notification ID.
func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}
