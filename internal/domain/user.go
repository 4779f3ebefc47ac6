// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxIdentityLen = 150

var (
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityTooLong = errors.New("identity too long")
	ErrUnknownRole     = errors.New("unknown role")
)

// Identity is the display name a client announces over the channel.
// There is no account system; the backend treats it as an opaque label.
type Identity string

type Role string

const (
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
	RoleSystem   Role = "system"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAgent, RoleCustomer, RoleSystem:
		return Role(s), nil
	}
	return "", ErrUnknownRole
}

// NewIdentity validates a raw identity the same way the backend does.
func NewIdentity(s string) (Identity, error) {
	if len(s) == 0 {
		return "", ErrIdentityEmpty
	}
	if len(s) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	return Identity(s), nil
}
