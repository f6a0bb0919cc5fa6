package storage

import (
	"civictrack/backend/internal/domain"
	"civictrack/backend/internal/models"
)

// AppendEvent writes the outbox row inside the caller's transaction, so
// the event exists if and only if the transition committed, and its
// sequence per complaint matches commit order.
func (t *txStore) AppendEvent(ev models.StatusEvent) error {
	return t.db.Create(&models.EventOutbox{
		Kind:           ev.Kind,
		ComplaintID:    ev.ComplaintID,
		ComplaintTitle: ev.ComplaintTitle,
		RecipientID:    ev.RecipientID,
		AuthorityName:  ev.AuthorityName,
	}).Error
}

// UnrelayedEvents returns the oldest pending outbox rows in sequence order.
func (s *Service) UnrelayedEvents(limit int) ([]models.EventOutbox, error) {
	var out []models.EventOutbox
	err := s.DB.Where("relayed = ?", false).
		Order("seq").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkEventRelayed flags one outbox row as delivered.
func (s *Service) MarkEventRelayed(seq int64) error {
	res := s.DB.Model(&models.EventOutbox{}).
		Where("seq = ?", seq).
		Update("relayed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
