// Package ledger owns the per-(complaint, voter) vote state and the
// aggregate tallies. Every cast is one atomic unit: the ledger row
// change and the relative tally increments commit together or not at
// all. A call never moves either tally by more than one.
package ledger

import (
	"errors"

	"civictrack/backend/internal/config"
	"civictrack/backend/internal/domain"
	"civictrack/backend/internal/models"
	"civictrack/backend/internal/storage"
)

// ErrBadPolarity rejects any polarity outside {-1, 0, +1}.
var ErrBadPolarity = errors.New("polarity must be -1, 0 or +1")

// Store is the slice of the storage layer the ledger needs.
type Store interface {
	InTx(fn func(storage.Tx) error) error
}

// Service applies vote casts against the store.
type Service struct {
	Store Store
}

// NewService creates a new vote ledger service.
func NewService(s Store) *Service {
	return &Service{Store: s}
}

// CastVote applies one vote action and returns the resulting tally.
//
//   - no prior vote, nonzero polarity: insert a row, bump that tally
//   - prior vote with the same polarity: toggle off (delete, bump down)
//   - prior vote with the opposite polarity: flip the row, move both tallies
//   - polarity 0: clear whatever vote exists
//
// Only pending complaints accept votes. A first-vote insert that loses a
// race with the same voter's concurrent cast is retried once against the
// winner's row before the conflict is surfaced.
func (s *Service) CastVote(complaintID, voterID string, polarity int) (models.Tally, error) {
	if polarity != models.PolarityUp && polarity != models.PolarityDown && polarity != models.PolarityNone {
		return models.Tally{}, ErrBadPolarity
	}

	var tally models.Tally
	var err error
	for attempt := 0; attempt <= config.TransitionRetries; attempt++ {
		tally, err = s.castOnce(complaintID, voterID, polarity)
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
	}
	return tally, err
}

func (s *Service) castOnce(complaintID, voterID string, polarity int) (models.Tally, error) {
	var tally models.Tally
	err := s.Store.InTx(func(tx storage.Tx) error {
		c, err := tx.GetComplaint(complaintID)
		if err != nil {
			return err
		}
		if c.Status != models.StatusPending {
			return domain.ErrInvalidState
		}

		prior := models.PolarityNone
		if v, err := tx.GetVoteForUpdate(complaintID, voterID); err == nil {
			prior = v.Polarity
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		switch {
		case prior == models.PolarityNone && polarity == models.PolarityNone:
			// nothing to clear

		case prior == models.PolarityNone:
			if err := tx.CreateVote(&models.Vote{
				ComplaintID: complaintID,
				VoterID:     voterID,
				Polarity:    polarity,
			}); err != nil {
				return err
			}
			if err := bump(tx, complaintID, polarity, +1); err != nil {
				return err
			}

		case polarity == models.PolarityNone || polarity == prior:
			// explicit clear, or a resubmitted polarity toggling itself off
			if err := tx.DeleteVote(complaintID, voterID); err != nil {
				return err
			}
			if err := bump(tx, complaintID, prior, -1); err != nil {
				return err
			}

		default:
			if err := tx.SetVotePolarity(complaintID, voterID, polarity); err != nil {
				return err
			}
			// one UPDATE moves both counters: -1 off the old side, +1 on the new
			up, down := int64(-1), int64(+1)
			if polarity == models.PolarityUp {
				up, down = +1, -1
			}
			if err := tx.BumpTallies(complaintID, up, down); err != nil {
				return err
			}
		}

		tally, err = tx.TallyOf(complaintID)
		return err
	})
	return tally, err
}

func bump(tx storage.Tx, complaintID string, polarity int, delta int64) error {
	if polarity == models.PolarityUp {
		return tx.BumpTallies(complaintID, delta, 0)
	}
	return tx.BumpTallies(complaintID, 0, delta)
}
