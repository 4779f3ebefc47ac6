package rtc

import (
	"testing"

	"github.com/averko/supportline/internal/core"
)

func TestParticipantTrackObservers(t *testing.T) {
	p := newParticipant("kim")

	var subs, unsubs []core.TrackID
	p.OnTrackSubscribed(func(rt core.RemoteTrack) { subs = append(subs, rt.ID()) })
	p.OnTrackUnsubscribed(func(rt core.RemoteTrack) { unsubs = append(unsubs, rt.ID()) })

	rt := &remoteTrack{id: "rv1", kind: core.TrackVideo}
	p.addTrack(rt)
	if len(subs) != 1 || subs[0] != "rv1" {
		t.Fatalf("subs = %v", subs)
	}
	if len(p.Tracks()) != 1 {
		t.Fatalf("Tracks = %v", p.Tracks())
	}

	stopped := false
	rt.OnStopped(func() { stopped = true })

	p.removeTrack("rv1")
	if !stopped {
		t.Fatal("removal must fire the stopped observer")
	}
	if len(unsubs) != 1 || unsubs[0] != "rv1" {
		t.Fatalf("unsubs = %v", unsubs)
	}

	// Removing an unknown track changes nothing.
	p.removeTrack("rv1")
	if len(unsubs) != 1 {
		t.Fatal("duplicate removal must be a no-op")
	}
}

func TestRemoteTrackStateObservers(t *testing.T) {
	rt := &remoteTrack{id: "ra1", kind: core.TrackAudio}

	var events []string
	rt.OnEnabled(func() { events = append(events, "on") })
	rt.OnDisabled(func() { events = append(events, "off") })
	rt.OnStopped(func() { events = append(events, "stop") })

	rt.fireState(false)
	rt.fireState(true)
	rt.fireStopped()
	rt.fireStopped()

	want := []string{"off", "on", "stop"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}
