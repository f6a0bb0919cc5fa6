package models

import "time"

// Vote polarities. Zero is never stored: a cleared vote is an absent row.
const (
	PolarityUp   = 1
	PolarityDown = -1
	PolarityNone = 0
)

// Vote is the per-(complaint, voter) ledger row recording the voter's
// current polarity. At most one row exists per pair; absence means the
// voter holds no vote on that complaint.
type Vote struct {
	ComplaintID string    `gorm:"primaryKey" json:"complaint_id"`
	VoterID     string    `gorm:"primaryKey" json:"voter_id"`
	Polarity    int       `gorm:"not null" json:"polarity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Tally is the aggregate upvote/downvote pair returned to callers after
// every cast so the UI never needs a second read.
type Tally struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
}
