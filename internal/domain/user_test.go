package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewIdentity(t *testing.T) {
	if _, err := NewIdentity("kim"); err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	if _, err := NewIdentity(""); !errors.Is(err, ErrIdentityEmpty) {
		t.Fatalf("empty identity = %v, want ErrIdentityEmpty", err)
	}
	if _, err := NewIdentity(strings.Repeat("x", MaxIdentityLen+1)); !errors.Is(err, ErrIdentityTooLong) {
		t.Fatalf("long identity = %v, want ErrIdentityTooLong", err)
	}
	if _, err := NewIdentity(strings.Repeat("x", MaxIdentityLen)); err != nil {
		t.Fatalf("identity at limit = %v", err)
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"agent", "customer", "system"} {
		if _, err := ParseRole(s); err != nil {
			t.Errorf("ParseRole(%q) = %v", s, err)
		}
	}
	if _, err := ParseRole("admin"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("ParseRole(admin) = %v, want ErrUnknownRole", err)
	}
}
