// Package storage is the persistence boundary: PostgreSQL through gorm
// for durable state and Redis pub/sub for cross-instance event fanout.
// All tally arithmetic happens here as relative increments so concurrent
// voters can never lose updates to a read-modify-write race.
package storage

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"log"
	"time"

	"civictrack/backend/internal/config"
	"civictrack/backend/internal/domain"
	"civictrack/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Tx is the per-transaction surface the services build their atomic
// units on. Every method runs inside the single database transaction
// opened by InTx.
type Tx interface {
	GetComplaint(id string) (*models.Complaint, error)

	// Vote ledger primitives.
	GetVoteForUpdate(complaintID, voterID string) (*models.Vote, error)
	CreateVote(v *models.Vote) error
	SetVotePolarity(complaintID, voterID string, polarity int) error
	DeleteVote(complaintID, voterID string) error
	BumpTallies(complaintID string, up, down int64) error
	TallyOf(complaintID string) (models.Tally, error)

	// Assignment primitives.
	LockAuthority(id string) (*models.Authority, error)
	ActiveComplaintsFor(authorityID string) ([]models.Complaint, error)
	CompareAndSwapStatus(id string, from, to models.ComplaintStatus, authorityID *string) (bool, error)

	// AppendEvent records a committed transition in the event outbox,
	// inside the same transaction as the status flip.
	AppendEvent(ev models.StatusEvent) error
}

// Storage is everything the handlers, services and the admin CLI need
// from the persistence layer.
type Storage interface {
	InTx(fn func(Tx) error) error

	CreateComplaint(c *models.Complaint) error
	GetComplaintByID(id string) (*models.Complaint, error)
	ListComplaints(f ComplaintFilter) ([]models.Complaint, error)
	UpdatePendingComplaint(id, reporterID string, fields map[string]interface{}) (bool, error)
	DeletePendingComplaint(id, reporterID string) (bool, error)
	ActiveComplaintsFor(authorityID string) ([]models.Complaint, error)

	UnrelayedEvents(limit int) ([]models.EventOutbox, error)
	MarkEventRelayed(seq int64) error

	CreateAuthority(a *models.Authority) error
	GetAuthorityByID(id string) (*models.Authority, error)
	ListAuthorities() ([]models.Authority, error)

	CreateNotification(n *models.Notification) error
	PruneNotifications(recipientID string, keep int) (int64, error)
	ListNotifications(recipientID string) ([]models.Notification, error)
	MarkNotificationRead(id, recipientID string) error

	CreateUser(u *models.User) error
	GetUserByID(id string) (*models.User, error)

	PublishEvent(ev models.StatusEvent) error
	SubscribeEvents() *redis.PubSub
}

// Service is the gorm/redis implementation of Storage.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewService constructs the storage service. rdb may be nil for tools
// that never touch the realtime path (admin CLI).
func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// InTx runs fn inside a single database transaction. The services use
// this for every multi-statement atomic unit (vote casting, assignment).
func (s *Service) InTx(fn func(Tx) error) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		return fn(&txStore{db: tx})
	})
}

// PublishEvent broadcasts a committed transition to every running
// instance over Redis so each hub can push to its local connections.
func (s *Service) PublishEvent(ev models.StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.retryTransient("publish event", func() error {
		return s.Redis.Publish(s.Ctx, config.NotifyBroadcastChannel, payload).Err()
	})
}

// SubscribeEvents subscribes to the notify broadcast channel.
func (s *Service) SubscribeEvents() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, config.NotifyBroadcastChannel)
}

// retryTransient retries fn with capped backoff when the failure looks
// like a temporary outage, then surfaces ErrTransient. Everything else
// is returned verbatim on the first attempt.
func (s *Service) retryTransient(op string, fn func() error) error {
	var err error
	backoff := config.TransientBackoffBase
	for attempt := 0; attempt <= config.TransientRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		log.Printf("WARNING: transient storage error on %s (attempt %d): %v", op, attempt+1, err)
	}
	return errors.Join(domain.ErrTransient, err)
}

func isTransient(err error) bool {
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, redis.ErrClosed)
}
