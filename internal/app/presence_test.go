package app

import (
	"testing"

	"github.com/averko/supportline/internal/domain"
)

func TestPresenceJoinLeave(t *testing.T) {
	p := NewPresenceSet()
	p.Join("kim")
	p.Join("kim")
	if p.Len() != 1 {
		t.Fatalf("Len = %d after duplicate join", p.Len())
	}
	p.Leave("nobody")
	if p.Len() != 1 {
		t.Fatalf("Len = %d after leaving unknown id", p.Len())
	}
	p.Leave("kim")
	if p.Contains("kim") || p.Len() != 0 {
		t.Fatal("kim still present after leave")
	}
}

func TestPresenceSnapshotReplaces(t *testing.T) {
	p := NewPresenceSet()
	p.Join("stale")
	p.Snapshot([]domain.Identity{"b", "a"})
	if p.Contains("stale") {
		t.Fatal("snapshot must drop previous membership")
	}
	online := p.Online()
	if len(online) != 2 || online[0] != "a" || online[1] != "b" {
		t.Fatalf("Online = %v, want sorted [a b]", online)
	}
}
