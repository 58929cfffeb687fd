package models

import "strings"

// Role is the normalized actor category used by all business logic.
type Role string

const (
	RoleCanteen Role = "canteen"
	RoleNGO     Role = "ngo"
	RoleDriver  Role = "driver"
)

// RoleVolunteer is a legacy wire/storage tag accepted at the ingestion
// boundary only. It is folded into RoleDriver before any predicate runs.
const RoleVolunteer = "volunteer"

// NormalizeRole maps the 4-value wire representation onto the internal
// 3-value role set. Unknown tags yield an empty Role.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RoleCanteen):
		return RoleCanteen
	case string(RoleNGO):
		return RoleNGO
	case string(RoleDriver), RoleVolunteer:
		return RoleDriver
	default:
		return ""
	}
}

// Valid reports whether the role belongs to the normalized set.
func (r Role) Valid() bool {
	return r == RoleCanteen || r == RoleNGO || r == RoleDriver
}
