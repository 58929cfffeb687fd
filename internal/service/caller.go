package service

import "github.com/foodloop/foodloop-api/internal/models"

// Caller identifies the authenticated actor invoking an engine operation.
// Identity always arrives as an explicit argument; the engines never read an
// ambient session.
type Caller struct {
	ID   string
	Name string
	Role models.Role
}
