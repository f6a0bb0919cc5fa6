package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles recognized by the API layer. Authorities authenticate with
// their own Authority record and the "authority" role.
const (
	RoleCitizen   = "citizen"
	RoleAdmin     = "admin"
	RoleAuthority = "authority"
)

// User is a citizen or administrator account. Registration and login
// live in the external identity collaborator; this record exists so
// complaints and notifications have an owner to reference.
type User struct {
	ID    string `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"type:text" json:"name"`
	Email string `gorm:"uniqueIndex;type:text" json:"email"`
	Role  string `gorm:"type:text;not null;default:citizen" json:"role"`

	// TelegramChatID, when set, lets the dispatcher mirror realtime
	// pushes to a linked Telegram chat.
	TelegramChatID *int64 `gorm:"uniqueIndex" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates the user ID.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
