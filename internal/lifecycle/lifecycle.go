// Package lifecycle is the complaint state machine: submission,
// reporter edits/withdrawal while pending, and the strictly linear
// status transitions pending -> assigned -> inprogress -> resolved.
// Every transition re-validates status in the same statement that
// commits it; a lost race is retried once, then surfaced as Conflict.
// Committed transitions are appended to the event outbox inside the
// same transaction, so their sequence per complaint is commit order
// no matter how callers interleave.
package lifecycle

import (
	"errors"
	"log"
	"strings"

	"civictrack/backend/internal/authority"
	"civictrack/backend/internal/config"
	"civictrack/backend/internal/domain"
	"civictrack/backend/internal/models"
	"civictrack/backend/internal/storage"
)

// Store is the slice of the storage layer the state machine needs.
type Store interface {
	InTx(fn func(storage.Tx) error) error
	CreateComplaint(c *models.Complaint) error
	GetComplaintByID(id string) (*models.Complaint, error)
	UpdatePendingComplaint(id, reporterID string, fields map[string]interface{}) (bool, error)
	DeletePendingComplaint(id, reporterID string) (bool, error)
	GetAuthorityByID(id string) (*models.Authority, error)
}

// Relay is woken after a transition commits so the freshly written
// outbox row is picked up without waiting for the next poll.
type Relay interface {
	Kick()
}

// Service drives complaint transitions and records their events.
type Service struct {
	Store Store
	Relay Relay
}

// NewService creates the state machine service. relay may be nil for
// tools that never dispatch notifications.
func NewService(s Store, r Relay) *Service {
	return &Service{Store: s, Relay: r}
}

// SubmitInput carries the reporter-provided complaint fields.
type SubmitInput struct {
	Title       string
	Description string
	Location    string
	Severity    models.Severity
	Category    string
	Anonymous   bool
	ImageURL    string
}

// ErrBadInput rejects submissions with missing or unknown fields.
var ErrBadInput = errors.New("title, description, location, category and a valid severity are required")

// Submit creates a complaint in pending with zero tallies and no
// assignment. The reporter already knows, so no event is recorded.
func (s *Service) Submit(reporterID string, in SubmitInput) (*models.Complaint, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	location := strings.TrimSpace(in.Location)
	category := strings.TrimSpace(in.Category)
	if title == "" || description == "" || location == "" || category == "" || !in.Severity.IsValid() {
		return nil, ErrBadInput
	}

	c := &models.Complaint{
		Title:       title,
		Description: description,
		Location:    location,
		Severity:    in.Severity,
		Category:    category,
		Anonymous:   in.Anonymous,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		ReporterID:  reporterID,
		Status:      models.StatusPending,
	}
	if err := s.Store.CreateComplaint(c); err != nil {
		return nil, err
	}
	return c, nil
}

// EditInput carries the three mutable fields. Blank or whitespace-only
// values are ignored rather than erased.
type EditInput struct {
	Title       string
	Description string
	Location    string
}

// Edit updates a pending complaint's mutable fields. Only the reporter
// may edit, and only while the complaint is still pending; once it
// leaves pending the text becomes immutable.
func (s *Service) Edit(complaintID, actorID string, in EditInput) (*models.Complaint, error) {
	fields := map[string]interface{}{}
	if v := strings.TrimSpace(in.Title); v != "" {
		fields["title"] = v
	}
	if v := strings.TrimSpace(in.Description); v != "" {
		fields["description"] = v
	}
	if v := strings.TrimSpace(in.Location); v != "" {
		fields["location"] = v
	}
	if len(fields) == 0 {
		// nothing to change; still apply the guards
		if err := s.guardOwnedPending(complaintID, actorID); err != nil {
			return nil, err
		}
		return s.Store.GetComplaintByID(complaintID)
	}

	ok, err := s.Store.UpdatePendingComplaint(complaintID, actorID, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.classifyGuardFailure(complaintID, actorID)
	}
	return s.Store.GetComplaintByID(complaintID)
}

// Withdraw deletes a pending complaint, same guards as Edit.
func (s *Service) Withdraw(complaintID, actorID string) error {
	ok, err := s.Store.DeletePendingComplaint(complaintID, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return s.classifyGuardFailure(complaintID, actorID)
	}
	return nil
}

// Assign binds a Free authority to a pending complaint and moves it to
// assigned. The availability derivation, the status check, the flip and
// the outbox row all happen inside one transaction with the authority
// row locked, so two admins racing for the same authority cannot both
// succeed.
func (s *Service) Assign(complaintID, authorityID string) (*models.Complaint, error) {
	attempt := func() error {
		return s.Store.InTx(func(tx storage.Tx) error {
			a, err := tx.LockAuthority(authorityID)
			if err != nil {
				return err
			}
			c, err := tx.GetComplaint(complaintID)
			if err != nil {
				return err
			}
			if c.Status != models.StatusPending {
				return domain.ErrInvalidState
			}

			bound, err := tx.ActiveComplaintsFor(authorityID)
			if err != nil {
				return err
			}
			if authority.Derive(bound) != models.AvailabilityFree {
				return domain.ErrConflict
			}

			ok, err := tx.CompareAndSwapStatus(complaintID, models.StatusPending, models.StatusAssigned, &authorityID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrConflict
			}

			return tx.AppendEvent(models.StatusEvent{
				Kind:           models.EventAssigned,
				ComplaintID:    complaintID,
				ComplaintTitle: c.Title,
				RecipientID:    c.ReporterID,
				AuthorityName:  a.Name,
			})
		})
	}

	err := attempt()
	for i := 0; i < config.TransitionRetries && errors.Is(err, domain.ErrConflict); i++ {
		err = attempt()
	}
	if err != nil {
		return nil, err
	}

	s.kick()
	return s.Store.GetComplaintByID(complaintID)
}

// Advance moves assigned -> inprogress or inprogress -> resolved. Only
// the currently bound authority may advance its complaint.
func (s *Service) Advance(complaintID, authorityID string) (*models.Complaint, error) {
	authorityName := ""
	if a, err := s.Store.GetAuthorityByID(authorityID); err == nil {
		authorityName = a.Name
	} else {
		log.Printf("WARNING: could not resolve authority %s while recording transition: %v", authorityID, err)
	}

	attempt := func() error {
		return s.Store.InTx(func(tx storage.Tx) error {
			c, err := tx.GetComplaint(complaintID)
			if err != nil {
				return err
			}
			if c.Status != models.StatusAssigned && c.Status != models.StatusInProgress {
				// pending has nothing to advance from; resolved is terminal
				return domain.ErrInvalidState
			}
			if c.AuthorityID == nil || *c.AuthorityID != authorityID {
				return domain.ErrForbidden
			}
			next := models.NextStatus(c.Status)

			ok, err := tx.CompareAndSwapStatus(complaintID, c.Status, next, nil)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrConflict
			}

			kind := models.EventInProgress
			if next == models.StatusResolved {
				kind = models.EventResolved
			}
			return tx.AppendEvent(models.StatusEvent{
				Kind:           kind,
				ComplaintID:    complaintID,
				ComplaintTitle: c.Title,
				RecipientID:    c.ReporterID,
				AuthorityName:  authorityName,
			})
		})
	}

	err := attempt()
	for i := 0; i < config.TransitionRetries && errors.Is(err, domain.ErrConflict); i++ {
		err = attempt()
	}
	if err != nil {
		return nil, err
	}

	s.kick()
	return s.Store.GetComplaintByID(complaintID)
}

func (s *Service) guardOwnedPending(complaintID, actorID string) error {
	c, err := s.Store.GetComplaintByID(complaintID)
	if err != nil {
		return err
	}
	if c.ReporterID != actorID {
		return domain.ErrForbidden
	}
	if c.Status != models.StatusPending {
		return domain.ErrInvalidState
	}
	return nil
}

// classifyGuardFailure turns a zero-row guarded mutation into the error
// the caller deserves: wrong actor beats wrong status, and a row that
// passed both on re-read lost a race instead.
func (s *Service) classifyGuardFailure(complaintID, actorID string) error {
	if err := s.guardOwnedPending(complaintID, actorID); err != nil {
		return err
	}
	return domain.ErrConflict
}

// kick wakes the relay; the outbox row is already durable, so a missed
// kick only delays delivery until the next poll.
func (s *Service) kick() {
	if s.Relay != nil {
		s.Relay.Kick()
	}
}
