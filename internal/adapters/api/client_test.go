package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/averko/supportline/internal/domain"
)

func testServer(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestListSessions(t *testing.T) {
	c := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/sessions/list/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]domain.Session{
			{ID: "s1", Title: "Billing", Active: true},
		})
	}))

	list, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 || list[0].ID != "s1" || !list[0].Active {
		t.Fatalf("list = %+v", list)
	}
}

func TestCloseSessionPath(t *testing.T) {
	var gotPath string
	c := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.CloseSession(context.Background(), "s1"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if gotPath != "/sessions/s1/close/" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestCreateMeetingLink(t *testing.T) {
	c := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/s1/meetings/create/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			Creator      string `json:"creator"`
			OneTime      bool   `json:"one_time"`
			AllowedCount int    `json:"allowed_count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Creator != "agent1" || !body.OneTime || body.AllowedCount != 2 {
			t.Errorf("body = %+v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "L1"})
	}))

	link, err := c.CreateMeetingLink(context.Background(), "s1", "agent1", true, 2)
	if err != nil {
		t.Fatalf("CreateMeetingLink: %v", err)
	}
	if link.ID != "L1" || link.Session != "s1" {
		t.Fatalf("link = %+v", link)
	}
}

func TestValidateMeetingLink(t *testing.T) {
	c := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meetings/L1/validate/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"valid":      true,
			"room_name":  "support-s1",
			"session_id": "s1",
		})
	}))

	v, err := c.ValidateMeetingLink(context.Background(), "L1")
	if err != nil {
		t.Fatalf("ValidateMeetingLink: %v", err)
	}
	if !v.Valid || v.Room != "support-s1" || v.Session != "s1" {
		t.Fatalf("validation = %+v", v)
	}
}

func TestIssueMeetingToken(t *testing.T) {
	c := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meetings/L1/issue/" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":    "tok",
			"mode":     "p2p",
			"identity": "agent1",
		})
	}))

	access, err := c.IssueMeetingToken(context.Background(), "L1", "agent1")
	if err != nil {
		t.Fatalf("IssueMeetingToken: %v", err)
	}
	if access.Token != "tok" || access.Mode != "p2p" || access.Identity != "agent1" {
		t.Fatalf("access = %+v", access)
	}
}

func TestErrorBodySurfaced(t *testing.T) {
	c := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "consumed"})
	}))

	_, err := c.IssueMeetingToken(context.Background(), "L1", "kim")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Reason != "consumed" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}
