// Package authority derives an authority's availability from the
// complaints currently bound to it. The value is never stored; it is
// recomputed from the complaint table on every read so there is no
// second copy of truth to drift.
package authority

import "civictrack/backend/internal/models"

// Store is the slice of the storage layer the resolver needs.
type Store interface {
	GetAuthorityByID(id string) (*models.Authority, error)
	ActiveComplaintsFor(authorityID string) ([]models.Complaint, error)
}

// Derive computes availability from a snapshot of the authority's
// bound, unresolved complaints. Tie-break: a complaint sitting in
// "assigned" (accepted but not started) wins over one already in
// progress, so a freshly assigned authority reports Assigned, a working
// one reports Busy, and everything else is Free.
func Derive(bound []models.Complaint) models.Availability {
	busy := false
	for _, c := range bound {
		switch c.Status {
		case models.StatusAssigned:
			return models.AvailabilityAssigned
		case models.StatusInProgress:
			busy = true
		}
	}
	if busy {
		return models.AvailabilityBusy
	}
	return models.AvailabilityFree
}

// Resolver answers availability queries against live storage.
type Resolver struct {
	Store Store
}

// NewResolver creates a new availability resolver.
func NewResolver(s Store) *Resolver {
	return &Resolver{Store: s}
}

// Availability re-derives the authority's availability from scratch.
func (r *Resolver) Availability(authorityID string) (models.Availability, error) {
	if _, err := r.Store.GetAuthorityByID(authorityID); err != nil {
		return "", err
	}
	bound, err := r.Store.ActiveComplaintsFor(authorityID)
	if err != nil {
		return "", err
	}
	return Derive(bound), nil
}
