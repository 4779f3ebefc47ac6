package backend

import "testing"

func TestSessionLifecycle(t *testing.T) {
	s := NewStore()
	sess := s.CreateSession("Billing", "agent1", "kim")
	if sess.ID == "" || !sess.Active {
		t.Fatalf("session = %+v", sess)
	}

	if _, ok := s.Session(sess.ID); !ok {
		t.Fatal("created session not found")
	}
	if !s.CloseSession(sess.ID) {
		t.Fatal("close failed")
	}
	got, _ := s.Session(sess.ID)
	if got.Active {
		t.Fatal("session still active after close")
	}
	if s.CloseSession("nope") {
		t.Fatal("closing an unknown session must fail")
	}
}

func TestMessagesRequireSession(t *testing.T) {
	s := NewStore()
	if _, ok := s.AppendMessage("nope", "kim", "customer", "hi"); ok {
		t.Fatal("append to unknown session must fail")
	}

	sess := s.CreateSession("Billing", "agent1", "kim")
	m1, _ := s.AppendMessage(sess.ID, "kim", "customer", "first")
	m2, _ := s.AppendMessage(sess.ID, "agent1", "agent", "second")
	if m1.ID == m2.ID {
		t.Fatal("message ids must be unique")
	}

	msgs := s.Messages(sess.ID)
	if len(msgs) != 2 || msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Fatalf("history = %+v, want arrival order", msgs)
	}
}

func TestMeetingLinkOnClosedSession(t *testing.T) {
	s := NewStore()
	sess := s.CreateSession("Billing", "agent1", "kim")
	s.CloseSession(sess.ID)
	if _, ok := s.CreateMeeting(sess.ID, "agent1", true, 2); ok {
		t.Fatal("closed session must not mint links")
	}
}

func TestOneTimeLinkConsumption(t *testing.T) {
	s := NewStore()
	sess := s.CreateSession("Billing", "agent1", "kim")
	link, ok := s.CreateMeeting(sess.ID, "agent1", true, 2)
	if !ok {
		t.Fatal("CreateMeeting failed")
	}

	v := s.ValidateMeeting(link.ID)
	if !v.Valid || v.Room != link.RoomName || v.Session != sess.ID {
		t.Fatalf("validation = %+v", v)
	}

	if _, reason := s.IssueToken(link.ID, "kim"); reason != "" {
		t.Fatalf("first issue rejected: %s", reason)
	}
	if _, reason := s.IssueToken(link.ID, "agent1"); reason != "" {
		t.Fatalf("second issue rejected: %s", reason)
	}

	// Allowed count exhausted: the link is consumed.
	if _, reason := s.IssueToken(link.ID, "eve"); reason != "consumed" {
		t.Fatalf("third issue reason = %q, want consumed", reason)
	}
	if v := s.ValidateMeeting(link.ID); v.Valid || v.Reason != "consumed" {
		t.Fatalf("validation after consumption = %+v", v)
	}
}

func TestValidateUnknownLink(t *testing.T) {
	s := NewStore()
	if v := s.ValidateMeeting("nope"); v.Valid || v.Reason != "not_found" {
		t.Fatalf("validation = %+v", v)
	}
}
