package app

import (
	"sort"
	"sync"

	"github.com/averko/supportline/internal/domain"
)

// PresenceSet tracks the identities currently online in one session.
// Joins and leaves are idempotent; a snapshot replaces the set wholesale.
// Observers get current membership only, never arrival order.
type PresenceSet struct {
	mu     sync.RWMutex
	online map[domain.Identity]struct{}
}

func NewPresenceSet() *PresenceSet {
	return &PresenceSet{online: make(map[domain.Identity]struct{})}
}

func (p *PresenceSet) Snapshot(ids []domain.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = make(map[domain.Identity]struct{}, len(ids))
	for _, id := range ids {
		p.online[id] = struct{}{}
	}
}

func (p *PresenceSet) Join(id domain.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[id] = struct{}{}
}

func (p *PresenceSet) Leave(id domain.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, id)
}

func (p *PresenceSet) Contains(id domain.Identity) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[id]
	return ok
}

func (p *PresenceSet) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.online)
}

// Online returns the membership sorted for stable display.
func (p *PresenceSet) Online() []domain.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Identity, 0, len(p.online))
	for id := range p.online {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
