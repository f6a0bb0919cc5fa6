package storage

import (
	"errors"
	"log"

	"civictrack/backend/internal/domain"
	"civictrack/backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ComplaintFilter narrows ListComplaints. Zero values mean "any".
type ComplaintFilter struct {
	Status     models.ComplaintStatus
	Category   string
	Severity   models.Severity
	ReporterID string
}

// CreateComplaint persists a freshly submitted complaint.
func (s *Service) CreateComplaint(c *models.Complaint) error {
	if err := s.DB.Create(c).Error; err != nil {
		log.Printf("ERROR: failed to create complaint for reporter %s: %v", c.ReporterID, err)
		return err
	}
	return nil
}

// GetComplaintByID loads a single complaint, tallies and status included.
func (s *Service) GetComplaintByID(id string) (*models.Complaint, error) {
	var c models.Complaint
	err := s.DB.Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListComplaints returns complaints matching the filter, newest first.
func (s *Service) ListComplaints(f ComplaintFilter) ([]models.Complaint, error) {
	q := s.DB.Model(&models.Complaint{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.ReporterID != "" {
		q = q.Where("reporter_id = ?", f.ReporterID)
	}

	var out []models.Complaint
	if err := q.Order("created_at desc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePendingComplaint applies a partial update guarded by ownership
// and pending status in the same statement, so an edit can never land
// on a complaint that a concurrent transition just moved out of pending.
// It reports false when the guard did not match.
func (s *Service) UpdatePendingComplaint(id, reporterID string, fields map[string]interface{}) (bool, error) {
	res := s.DB.Model(&models.Complaint{}).
		Where("id = ? AND reporter_id = ? AND status = ?", id, reporterID, models.StatusPending).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeletePendingComplaint removes a complaint and its votes under the
// same ownership + pending guard as UpdatePendingComplaint.
func (s *Service) DeletePendingComplaint(id, reporterID string) (bool, error) {
	deleted := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND reporter_id = ? AND status = ?", id, reporterID, models.StatusPending).
			Delete(&models.Complaint{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("complaint_id = ?", id).Delete(&models.Vote{}).Error
	})
	return deleted, err
}

// ActiveComplaintsFor lists the unresolved complaints currently bound to
// an authority; the availability derivation runs over this set.
func (s *Service) ActiveComplaintsFor(authorityID string) ([]models.Complaint, error) {
	return activeComplaintsFor(s.DB, authorityID)
}

func casStatus(db *gorm.DB, id string, from, to models.ComplaintStatus, authorityID *string) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if authorityID != nil {
		updates["authority_id"] = *authorityID
	}
	res := db.Model(&models.Complaint{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func activeComplaintsFor(db *gorm.DB, authorityID string) ([]models.Complaint, error) {
	var out []models.Complaint
	err := db.Where("authority_id = ? AND status IN ?",
		authorityID,
		[]models.ComplaintStatus{models.StatusAssigned, models.StatusInProgress}).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// txStore implements Tx over the transaction handle opened by InTx.
type txStore struct {
	db *gorm.DB
}

func (t *txStore) GetComplaint(id string) (*models.Complaint, error) {
	var c models.Complaint
	err := t.db.Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetVoteForUpdate reads the voter's ledger row under FOR UPDATE so the
// polarity branch below cannot race another cast by the same voter. An
// absent row returns ErrNotFound (meaning "no current vote").
func (t *txStore) GetVoteForUpdate(complaintID, voterID string) (*models.Vote, error) {
	var v models.Vote
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("complaint_id = ? AND voter_id = ?", complaintID, voterID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVote inserts a fresh ledger row. Two first-votes racing on the
// same (complaint, voter) pair collide on the composite key; the loser
// surfaces ErrConflict and the ledger retries against the winner's row.
func (t *txStore) CreateVote(v *models.Vote) error {
	if err := t.db.Create(v).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (t *txStore) SetVotePolarity(complaintID, voterID string, polarity int) error {
	res := t.db.Model(&models.Vote{}).
		Where("complaint_id = ? AND voter_id = ?", complaintID, voterID).
		Update("polarity", polarity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *txStore) DeleteVote(complaintID, voterID string) error {
	res := t.db.Where("complaint_id = ? AND voter_id = ?", complaintID, voterID).
		Delete(&models.Vote{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// BumpTallies moves the aggregate counters by a relative delta, pushed
// down to the database so concurrent voters on the same complaint never
// overwrite each other's counts.
func (t *txStore) BumpTallies(complaintID string, up, down int64) error {
	if up == 0 && down == 0 {
		return nil
	}
	updates := map[string]interface{}{}
	if up != 0 {
		updates["upvotes"] = gorm.Expr("upvotes + ?", up)
	}
	if down != 0 {
		updates["downvotes"] = gorm.Expr("downvotes + ?", down)
	}
	res := t.db.Model(&models.Complaint{}).Where("id = ?", complaintID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *txStore) TallyOf(complaintID string) (models.Tally, error) {
	var c models.Complaint
	err := t.db.Select("upvotes", "downvotes").Where("id = ?", complaintID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Tally{}, domain.ErrNotFound
	}
	if err != nil {
		return models.Tally{}, err
	}
	return models.Tally{Upvotes: c.Upvotes, Downvotes: c.Downvotes}, nil
}

// LockAuthority reads the authority row under FOR UPDATE, serializing
// concurrent assignments targeting the same authority.
func (t *txStore) LockAuthority(id string) (*models.Authority, error) {
	var a models.Authority
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *txStore) ActiveComplaintsFor(authorityID string) ([]models.Complaint, error) {
	return activeComplaintsFor(t.db, authorityID)
}

func (t *txStore) CompareAndSwapStatus(id string, from, to models.ComplaintStatus, authorityID *string) (bool, error) {
	return casStatus(t.db, id, from, to, authorityID)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
