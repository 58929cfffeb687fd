package models

import "time"

// User is a directory profile for one of the four raw actor roles. Storage
// keeps the original tag (including the legacy "volunteer"); business logic
// only ever sees the normalized role.
type User struct {
	ID   string `gorm:"primaryKey;size:64" json:"id"`
	Name string `gorm:"size:255;not null" json:"name"`
	Role string `gorm:"size:16;index;not null" json:"role"`

	CanteenName      string `gorm:"size:255" json:"canteen_name,omitempty"`
	OrganizationName string `gorm:"size:255" json:"organization_name,omitempty"`
	Address          string `gorm:"size:512" json:"address,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizedRole folds the stored tag into the 3-value role set.
func (u User) NormalizedRole() Role {
	return NormalizeRole(u.Role)
}

// DisplayName prefers the organization or canteen label over the raw name.
func (u User) DisplayName() string {
	switch u.NormalizedRole() {
	case RoleCanteen:
		if u.CanteenName != "" {
			return u.CanteenName
		}
	case RoleNGO:
		if u.OrganizationName != "" {
			return u.OrganizationName
		}
	}
	return u.Name
}

// Notification is a lifecycle event targeted at a specific user, produced
// when a record they are party to is claimed, assigned or verified.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;index;not null" json:"user_id"`
	Type      string    `gorm:"size:64" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
