package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/averko/supportline/internal/domain"
)

type fakeMinter struct {
	mu      sync.Mutex
	err     error
	calls   int
	release chan struct{}
}

func (m *fakeMinter) CreateMeetingLink(ctx context.Context, session domain.SessionID, creator domain.Identity, oneTime bool, allowed int) (domain.MeetingLink, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return domain.MeetingLink{}, m.err
	}
	return domain.MeetingLink{
		ID:           "L1",
		Session:      session,
		Creator:      creator,
		OneTime:      oneTime,
		AllowedCount: allowed,
	}, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeSender) SendMessage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, text)
	return nil
}

func TestEscalateAnnouncesInvite(t *testing.T) {
	minter := &fakeMinter{}
	sender := &fakeSender{}
	e := NewEscalator(minter, sender)

	link, err := e.CreateAndAnnounce(context.Background(), "s1", "agent1")
	if err != nil {
		t.Fatalf("CreateAndAnnounce: %v", err)
	}
	if !link.OneTime || link.AllowedCount != 2 {
		t.Fatalf("link = %+v, want one-time for two parties", link)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], string(link.ID)) {
		t.Fatalf("invite = %v, must reference link id", sender.sent)
	}
}

func TestEscalateSingleFlight(t *testing.T) {
	minter := &fakeMinter{release: make(chan struct{})}
	e := NewEscalator(minter, &fakeSender{})

	done := make(chan error, 1)
	go func() {
		_, err := e.CreateAndAnnounce(context.Background(), "s1", "agent1")
		done <- err
	}()

	// Wait for the first call to be inside the minter.
	for {
		minter.mu.Lock()
		started := minter.calls > 0
		minter.mu.Unlock()
		if started {
			break
		}
	}

	if _, err := e.CreateAndAnnounce(context.Background(), "s1", "agent1"); !errors.Is(err, ErrAlreadyInProgress) {
		t.Fatalf("concurrent escalation = %v, want ErrAlreadyInProgress", err)
	}

	close(minter.release)
	if err := <-done; err != nil {
		t.Fatalf("first escalation: %v", err)
	}

	// The slot is free again once the first attempt finished.
	if _, err := e.CreateAndAnnounce(context.Background(), "s1", "agent1"); err != nil {
		t.Fatalf("follow-up escalation: %v", err)
	}
}

func TestEscalateMintFailure(t *testing.T) {
	minter := &fakeMinter{err: errors.New("backend down")}
	sender := &fakeSender{}
	e := NewEscalator(minter, sender)

	_, err := e.CreateAndAnnounce(context.Background(), "s1", "agent1")
	if !errors.Is(err, ErrEscalationFailed) {
		t.Fatalf("err = %v, want ErrEscalationFailed", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("no invite may be sent when minting fails")
	}
}
