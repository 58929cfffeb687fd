package dto

import "github.com/foodloop/foodloop-api/internal/models"

// ContactResponse is a directory entry with the role badge already folded
// to the 3-value category.
type ContactResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Address string `json:"address,omitempty"`
}

// NearbyQuery filters the proximity lookup. Radius is a plain circle check;
// there is no routing or distance optimisation behind it.
type NearbyQuery struct {
	Latitude  float64 `query:"lat" validate:"required,min=-90,max=90"`
	Longitude float64 `query:"lon" validate:"required,min=-180,max=180"`
	RadiusKm  float64 `query:"radius_km" validate:"omitempty,gt=0,max=100"`
	Role      string  `query:"role" validate:"omitempty,oneof=canteen ngo driver volunteer"`
}

// NearbyContactResponse is a directory entry with distance metadata.
type NearbyContactResponse struct {
	ContactResponse
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	DistanceKm float64 `json:"distance_km"`
}

// LocationUpdateRequest records a user's current coordinates.
type LocationUpdateRequest struct {
	Latitude  float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

// NewContactResponse converts a user into a directory entry.
func NewContactResponse(user models.User) ContactResponse {
	return ContactResponse{
		ID:      user.ID,
		Name:    user.DisplayName(),
		Role:    string(user.NormalizedRole()),
		Address: user.Address,
	}
}

// NewContactResponseSlice converts users into directory entries.
func NewContactResponseSlice(users []models.User) []ContactResponse {
	out := make([]ContactResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewContactResponse(user))
	}
	return out
}
