package access

import (
	"errors"
	"strings"
)

// Role is the access level carried by a command-channel token.
type Role string

const (
	// RoleController may send lifecycle commands and read status.
	RoleController Role = "CONTROLLER"
	// RoleObserver may only read status.
	RoleObserver Role = "OBSERVER"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (uppercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RoleController, RoleObserver:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

func (role Role) IsController() bool { return role == RoleController }
