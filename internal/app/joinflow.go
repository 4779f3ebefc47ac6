package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/averko/supportline/internal/domain"
)

var ErrInvalidLink = errors.New("invalid meeting link")

// MeetingAPI is the backend surface the join flow consumes.
type MeetingAPI interface {
	ValidateMeetingLink(ctx context.Context, id domain.LinkID) (domain.LinkValidation, error)
	IssueMeetingToken(ctx context.Context, id domain.LinkID, identity domain.Identity) (domain.CallAccess, error)
}

// JoinFlow resolves a meeting link into call-join credentials: validate the
// link, then ask the backend to issue a token for this identity. Used both
// by the customer opening an invite and by the agent auto-join on
// meeting.started.
type JoinFlow struct {
	api MeetingAPI
}

func NewJoinFlow(api MeetingAPI) *JoinFlow {
	return &JoinFlow{api: api}
}

func (f *JoinFlow) Resolve(ctx context.Context, id domain.LinkID, identity domain.Identity) (domain.CallAccess, error) {
	v, err := f.api.ValidateMeetingLink(ctx, id)
	if err != nil {
		return domain.CallAccess{}, fmt.Errorf("validate link: %w", err)
	}
	if !v.Valid {
		if v.Reason == "" {
			v.Reason = "link rejected"
		}
		return domain.CallAccess{}, fmt.Errorf("%w: %s", ErrInvalidLink, v.Reason)
	}

	access, err := f.api.IssueMeetingToken(ctx, id, identity)
	if err != nil {
		return domain.CallAccess{}, fmt.Errorf("issue token: %w", err)
	}
	access.Room = v.Room
	access.Session = v.Session
	return access, nil
}
