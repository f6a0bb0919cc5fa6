package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ComplaintStatus is the lifecycle state of a complaint. Transitions are
// strictly linear: pending -> assigned -> inprogress -> resolved.
type ComplaintStatus string

const (
	StatusPending    ComplaintStatus = "pending"
	StatusAssigned   ComplaintStatus = "assigned"
	StatusInProgress ComplaintStatus = "inprogress"
	StatusResolved   ComplaintStatus = "resolved"
)

// NextStatus returns the only legal successor of s, or "" when s is
// terminal or unknown.
func NextStatus(s ComplaintStatus) ComplaintStatus {
	switch s {
	case StatusPending:
		return StatusAssigned
	case StatusAssigned:
		return StatusInProgress
	case StatusInProgress:
		return StatusResolved
	}
	return ""
}

// Severity is an ordered enum: low < medium < high.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank returns the ordering position of the severity, 0 for unknown values.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// IsValid reports whether s is one of the three known levels.
func (s Severity) IsValid() bool { return s.Rank() > 0 }

// Complaint represents a civic issue reported by a citizen.
// Upvotes and Downvotes are aggregate tallies and must always equal the
// count of Vote rows of the corresponding polarity; they are only ever
// moved by relative increments in the storage layer.
type Complaint struct {
	ID          string   `gorm:"primaryKey" json:"id"`
	Title       string   `gorm:"type:text;not null" json:"title"`
	Description string   `gorm:"type:text;not null" json:"description"`
	Location    string   `gorm:"type:text;not null" json:"location"`
	Severity    Severity `gorm:"type:text;not null" json:"severity"`
	Category    string   `gorm:"type:text;not null;index" json:"category"`
	Anonymous   bool     `json:"anonymous"`
	ImageURL    string   `gorm:"type:text" json:"image_url,omitempty"`

	// ReporterID is the owning citizen. Only the reporter may edit or
	// withdraw the complaint, and only while it is still pending.
	ReporterID string `gorm:"type:text;not null;index" json:"reporter_id"`

	Status      ComplaintStatus `gorm:"type:text;not null;index" json:"status"`
	AuthorityID *string         `gorm:"index" json:"authority_id,omitempty"`

	Upvotes   int64 `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int64 `gorm:"not null;default:0" json:"downvotes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate generates the complaint ID and pins the initial status.
func (c *Complaint) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	return
}
