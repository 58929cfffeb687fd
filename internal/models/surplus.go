package models

import "time"

// SurplusStatus enumerates the lifecycle states of a surplus record.
// Transitions only move forward: available -> claimed -> collected, or
// available/claimed -> expired.
type SurplusStatus string

const (
	SurplusAvailable SurplusStatus = "available"
	SurplusClaimed   SurplusStatus = "claimed"
	SurplusCollected SurplusStatus = "collected"
	SurplusExpired   SurplusStatus = "expired"
)

// FoodSurplus represents one batch of surplus food offered by a canteen,
// together with its claim, driver assignment and delivery verification state.
type FoodSurplus struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	CanteenID   string  `gorm:"size:64;index;not null" json:"canteen_id"`
	CanteenName string  `gorm:"size:255" json:"canteen_name"`
	FoodName    string  `gorm:"size:255;not null" json:"food_name"`
	Category    string  `gorm:"size:32;not null" json:"category"`
	Quantity    float64 `gorm:"not null" json:"quantity"`
	Unit        string  `gorm:"size:32" json:"unit"`

	PickupLocation string `gorm:"size:512" json:"pickup_location"`
	ImageURL       string `gorm:"size:512" json:"image_url,omitempty"`
	AdditionalInfo string `gorm:"type:text" json:"additional_info,omitempty"`

	ExpiryTime time.Time     `gorm:"index;not null" json:"expiry_time"`
	Status     SurplusStatus `gorm:"size:16;index;not null;default:available" json:"status"`

	ClaimedBy   *string    `gorm:"size:64;index" json:"claimed_by,omitempty"`
	ClaimerName *string    `gorm:"size:255" json:"claimer_name,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`

	AssignedDriverID   *string `gorm:"size:64;index" json:"assigned_driver_id,omitempty"`
	AssignedDriverName *string `gorm:"size:255" json:"assigned_driver_name,omitempty"`

	// DeliveryCode is the shared 4-digit OTP written exactly once at first
	// driver assignment. Both verification steps check against it.
	DeliveryCode           *string    `gorm:"size:8" json:"-"`
	DriverPickupVerifiedAt *time.Time `json:"driver_pickup_verified_at,omitempty"`
	NGODeliveryVerifiedAt  *time.Time `json:"ngo_delivery_verified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExpiredAt reports whether the record's hard safety boundary has passed.
// Expiry is evaluated lazily at read time; no background sweep flips status.
func (s FoodSurplus) ExpiredAt(now time.Time) bool {
	return !s.ExpiryTime.After(now)
}

// Terminal reports whether the record reached a state that archives any
// linked chat.
func (s FoodSurplus) Terminal() bool {
	return s.Status == SurplusCollected || s.Status == SurplusExpired
}
