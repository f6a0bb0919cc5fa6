package storage

import (
	"errors"
	"log"

	"civictrack/backend/internal/domain"
	"civictrack/backend/internal/models"

	"gorm.io/gorm"
)

// CreateNotification persists the durable copy of a push. The realtime
// leg is best-effort; this row is the source of truth the client
// reconciles from on reconnect.
func (s *Service) CreateNotification(n *models.Notification) error {
	return s.retryTransient("create notification", func() error {
		return s.DB.Create(n).Error
	})
}

// PruneNotifications deletes everything beyond the recipient's keep
// newest rows and returns how many were removed.
func (s *Service) PruneNotifications(recipientID string, keep int) (int64, error) {
	res := s.DB.Exec(`
		DELETE FROM notifications
		WHERE recipient_id = ?
		  AND id NOT IN (
			SELECT id FROM notifications
			WHERE recipient_id = ?
			ORDER BY created_at DESC
			LIMIT ?
		  )`, recipientID, recipientID, keep)
	if res.Error != nil {
		log.Printf("ERROR: failed to prune notifications for %s: %v", recipientID, res.Error)
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ListNotifications returns the recipient's notifications, newest first.
func (s *Service) ListNotifications(recipientID string) ([]models.Notification, error) {
	var out []models.Notification
	err := s.DB.Where("recipient_id = ?", recipientID).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead flips the read flag; only the recipient may do so.
func (s *Service) MarkNotificationRead(id, recipientID string) error {
	var n models.Notification
	err := s.DB.Where("id = ?", id).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if n.RecipientID != recipientID {
		return domain.ErrForbidden
	}
	return s.DB.Model(&n).Update("read", true).Error
}

// CreateAuthority persists a new authority account.
func (s *Service) CreateAuthority(a *models.Authority) error {
	return s.DB.Create(a).Error
}

// GetAuthorityByID loads a single authority.
func (s *Service) GetAuthorityByID(id string) (*models.Authority, error) {
	var a models.Authority
	err := s.DB.Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAuthorities returns all authorities ordered by department.
func (s *Service) ListAuthorities() ([]models.Authority, error) {
	var out []models.Authority
	if err := s.DB.Order("department, name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUser persists a citizen or admin account.
func (s *Service) CreateUser(u *models.User) error {
	return s.DB.Create(u).Error
}

// GetUserByID loads a single user.
func (s *Service) GetUserByID(id string) (*models.User, error) {
	var u models.User
	err := s.DB.Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
