package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Department is the fixed taxonomy an authority belongs to.
type Department string

const (
	DepartmentRoads       Department = "roads"
	DepartmentWater       Department = "water"
	DepartmentSanitation  Department = "sanitation"
	DepartmentElectricity Department = "electricity"
	DepartmentParks       Department = "parks"
	DepartmentGeneral     Department = "general"
)

// IsValidDepartment reports whether d names a known department.
func IsValidDepartment(d Department) bool {
	switch d {
	case DepartmentRoads, DepartmentWater, DepartmentSanitation,
		DepartmentElectricity, DepartmentParks, DepartmentGeneral:
		return true
	}
	return false
}

// Availability is the derived busy state of an authority. It is never
// persisted; it is recomputed from the authority's currently bound,
// unresolved complaints on every read.
type Availability string

const (
	AvailabilityFree     Availability = "Free"
	AvailabilityAssigned Availability = "Assigned"
	AvailabilityBusy     Availability = "Busy"
)

// Authority is a government department account that complaints get
// assigned to. An authority handles at most one active complaint at a
// time; see the availability derivation in internal/authority.
type Authority struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"type:text;not null" json:"name"`
	Department   Department     `gorm:"type:text;not null;index" json:"department"`
	Email        string         `gorm:"uniqueIndex;type:text;not null" json:"email"`
	Phone        string         `gorm:"type:text" json:"phone,omitempty"`
	ServiceAreas pq.StringArray `gorm:"type:text[]" json:"service_areas,omitempty"`

	// CredentialHash is a bcrypt hash; login itself lives in the external
	// identity collaborator.
	CredentialHash string `gorm:"type:text;not null" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates the authority ID.
func (a *Authority) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}
