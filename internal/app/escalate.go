package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/averko/supportline/internal/domain"
)

var (
	ErrAlreadyInProgress = errors.New("escalation already in progress")
	ErrEscalationFailed  = errors.New("escalation failed")
)

// escalationAllowedCount is fixed: one agent plus one customer.
const escalationAllowedCount = 2

// LinkMinter is the backend operation that creates a one-time meeting link.
type LinkMinter interface {
	CreateMeetingLink(ctx context.Context, session domain.SessionID, creator domain.Identity, oneTime bool, allowed int) (domain.MeetingLink, error)
}

// ChannelSender is the slice of Controller the escalator needs.
type ChannelSender interface {
	SendMessage(text string) error
}

// Escalator mints a one-time call link and announces it over the session
// channel. Invoking it is an agent-side affordance: the channel itself does
// not enforce the role, the UI simply never offers it to customers.
type Escalator struct {
	minter   LinkMinter
	channel  ChannelSender
	inflight atomic.Bool
}

func NewEscalator(minter LinkMinter, channel ChannelSender) *Escalator {
	return &Escalator{minter: minter, channel: channel}
}

// CreateAndAnnounce runs at most one escalation at a time per instance.
// A second call while one is pending is rejected, not queued.
func (e *Escalator) CreateAndAnnounce(ctx context.Context, session domain.SessionID, creator domain.Identity) (domain.MeetingLink, error) {
	if !e.inflight.CompareAndSwap(false, true) {
		return domain.MeetingLink{}, ErrAlreadyInProgress
	}
	defer e.inflight.Store(false)

	link, err := e.minter.CreateMeetingLink(ctx, session, creator, true, escalationAllowedCount)
	if err != nil {
		return domain.MeetingLink{}, fmt.Errorf("%w: %v", ErrEscalationFailed, err)
	}
	log.Info().Str("module", "app.escalate").Str("session", string(session)).Str("link", string(link.ID)).Msg("meeting link created")

	if err := e.channel.SendMessage(InviteText(link.ID)); err != nil {
		return link, fmt.Errorf("announce invite: %w", err)
	}
	return link, nil
}

// InviteText formats the join reference the customer sees in chat.
func InviteText(id domain.LinkID) string {
	return fmt.Sprintf("Video call invite: /meet/%s", id)
}
