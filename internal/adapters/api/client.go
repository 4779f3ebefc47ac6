// Package api is the HTTP client for the support backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/averko/supportline/internal/domain"
)

// Client talks to the backend REST API. Zero value plus BaseURL is usable;
// HTTP defaults to a client with a sane timeout.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Status int
	Reason string
}

func (e *apiError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Reason)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 10 * time.Second}
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var fail struct {
			Error  string `json:"error"`
			Reason string `json:"reason"`
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(res.Body).Decode(&fail)
		reason := fail.Error
		if reason == "" {
			reason = fail.Reason
		}
		if reason == "" {
			reason = fail.Detail
		}
		return &apiError{Status: res.StatusCode, Reason: reason}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) CreateSession(ctx context.Context, title string, agent, customer domain.Identity) (domain.Session, error) {
	body := struct {
		Title    string          `json:"title"`
		AgentID  domain.Identity `json:"agent_id"`
		Customer domain.Identity `json:"customer_id"`
	}{title, agent, customer}

	var out domain.Session
	if err := c.do(ctx, http.MethodPost, "/sessions/", body, &out); err != nil {
		return domain.Session{}, err
	}
	return out, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var out []domain.Session
	if err := c.do(ctx, http.MethodGet, "/sessions/list/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CloseSession(ctx context.Context, id domain.SessionID) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/sessions/%s/close/", id), nil, nil)
}

// ListMessages loads the ordered history, the authoritative snapshot a view
// preloads before the live channel takes over.
func (c *Client) ListMessages(ctx context.Context, id domain.SessionID) ([]domain.Message, error) {
	var out []domain.Message
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sessions/%s/messages/", id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateMeetingLink(ctx context.Context, session domain.SessionID, creator domain.Identity, oneTime bool, allowed int) (domain.MeetingLink, error) {
	body := struct {
		Creator      domain.Identity `json:"creator"`
		OneTime      bool            `json:"one_time"`
		AllowedCount int             `json:"allowed_count"`
	}{creator, oneTime, allowed}

	var out struct {
		ID domain.LinkID `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/sessions/%s/meetings/create/", session), body, &out); err != nil {
		return domain.MeetingLink{}, err
	}
	return domain.MeetingLink{
		ID:           out.ID,
		Session:      session,
		Creator:      creator,
		OneTime:      oneTime,
		AllowedCount: allowed,
	}, nil
}

func (c *Client) ValidateMeetingLink(ctx context.Context, id domain.LinkID) (domain.LinkValidation, error) {
	var out domain.LinkValidation
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/meetings/%s/validate/", id), nil, &out); err != nil {
		return domain.LinkValidation{}, err
	}
	return out, nil
}

func (c *Client) IssueMeetingToken(ctx context.Context, id domain.LinkID, identity domain.Identity) (domain.CallAccess, error) {
	body := struct {
		Identity domain.Identity `json:"identity"`
	}{identity}

	var out domain.CallAccess
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/meetings/%s/issue/", id), body, &out); err != nil {
		return domain.CallAccess{}, err
	}
	return out, nil
}
