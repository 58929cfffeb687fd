package dto

import (
	"time"

	"github.com/foodloop/foodloop-api/internal/models"
)

// SurplusCreateRequest is the payload a canteen submits to offer a batch of
// surplus food. ExpiryTime is RFC3339; the quantity/expiry hard checks live
// in the service because they depend on the clock.
type SurplusCreateRequest struct {
	FoodName       string  `json:"food_name" form:"food_name" validate:"required,min=2,max=255"`
	Category       string  `json:"category" form:"category" validate:"required,oneof=vegetarian non-vegetarian vegan beverages snacks desserts"`
	Quantity       float64 `json:"quantity" form:"quantity" validate:"required,gt=0"`
	Unit           string  `json:"unit" form:"unit" validate:"required,max=32"`
	PickupLocation string  `json:"pickup_location" form:"pickup_location" validate:"required,max=512"`
	ExpiryTime     string  `json:"expiry_time" form:"expiry_time" validate:"required"`
	AdditionalInfo string  `json:"additional_info" form:"additional_info" validate:"omitempty,max=2000"`
}

// SurplusClaimRequest is empty on purpose; the claimant comes from the
// caller identity. Kept as a struct so the endpoint can grow fields without
// breaking clients.
type SurplusClaimRequest struct{}

// VerifyCodeRequest carries the 4-digit delivery code for either
// verification step.
type VerifyCodeRequest struct {
	Code string `json:"code" validate:"required,len=4,numeric"`
}

// SurplusResponse is the serialized representation of a surplus record.
type SurplusResponse struct {
	ID                     uint       `json:"id"`
	CanteenID              string     `json:"canteen_id"`
	CanteenName            string     `json:"canteen_name"`
	FoodName               string     `json:"food_name"`
	Category               string     `json:"category"`
	Quantity               float64    `json:"quantity"`
	Unit                   string     `json:"unit"`
	PickupLocation         string     `json:"pickup_location"`
	ImageURL               string     `json:"image_url,omitempty"`
	AdditionalInfo         string     `json:"additional_info,omitempty"`
	ExpiryTime             time.Time  `json:"expiry_time"`
	Status                 string     `json:"status"`
	ClaimedBy              *string    `json:"claimed_by,omitempty"`
	ClaimerName            *string    `json:"claimer_name,omitempty"`
	ClaimedAt              *time.Time `json:"claimed_at,omitempty"`
	AssignedDriverID       *string    `json:"assigned_driver_id,omitempty"`
	AssignedDriverName     *string    `json:"assigned_driver_name,omitempty"`
	DriverPickupVerifiedAt *time.Time `json:"driver_pickup_verified_at,omitempty"`
	NGODeliveryVerifiedAt  *time.Time `json:"ngo_delivery_verified_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// AssignDriverResponse returns the shared delivery code to the driver that
// won the assignment.
type AssignDriverResponse struct {
	SurplusID    uint   `json:"surplus_id"`
	DeliveryCode string `json:"delivery_code"`
}

// NewSurplusResponse converts a model into a DTO. The delivery code is
// deliberately absent; it is only ever revealed through AssignDriverResponse.
func NewSurplusResponse(record models.FoodSurplus) SurplusResponse {
	return SurplusResponse{
		ID:                     record.ID,
		CanteenID:              record.CanteenID,
		CanteenName:            record.CanteenName,
		FoodName:               record.FoodName,
		Category:               record.Category,
		Quantity:               record.Quantity,
		Unit:                   record.Unit,
		PickupLocation:         record.PickupLocation,
		ImageURL:               record.ImageURL,
		AdditionalInfo:         record.AdditionalInfo,
		ExpiryTime:             record.ExpiryTime,
		Status:                 string(record.Status),
		ClaimedBy:              record.ClaimedBy,
		ClaimerName:            record.ClaimerName,
		ClaimedAt:              record.ClaimedAt,
		AssignedDriverID:       record.AssignedDriverID,
		AssignedDriverName:     record.AssignedDriverName,
		DriverPickupVerifiedAt: record.DriverPickupVerifiedAt,
		NGODeliveryVerifiedAt:  record.NGODeliveryVerifiedAt,
		CreatedAt:              record.CreatedAt,
		UpdatedAt:              record.UpdatedAt,
	}
}

// NewSurplusResponseSlice converts a slice of models into DTOs.
func NewSurplusResponseSlice(records []models.FoodSurplus) []SurplusResponse {
	out := make([]SurplusResponse, 0, len(records))
	for _, record := range records {
		out = append(out, NewSurplusResponse(record))
	}
	return out
}
