// Package appointments talks to the practice platform's scheduling service,
// the external system of record for appointment slots.
package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/consultare/practice-api/internal/schedule"
)

const defaultTimeout = 20 * time.Second

// SlotAPI is the slice of the scheduling service the conflict subsystem
// consumes. The concrete Client implements it; tests stub it.
type SlotAPI interface {
	// ListSlots returns every slot for the doctor on the given calendar day.
	ListSlots(ctx context.Context, doctorID string, date time.Time) ([]SlotRef, error)
	// UpdateSlotStatus asks the scheduling service to transition a slot.
	UpdateSlotStatus(ctx context.Context, slotID string, status SlotStatus) error
}

// Client implements SlotAPI against the scheduling service's REST API using
// OAuth 2.0 client-credentials authentication.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	// mu guards the token cache. The conflict checker and overrider both
	// fan requests out across goroutines, so the check-then-refresh must
	// be single-flighted.
	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Config holds configuration for the scheduling service client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// New creates a scheduling service client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("appointments: BaseURL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("appointments: ClientID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("appointments: ClientSecret is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// ListSlots fetches the doctor's slots for one calendar day.
// GET /appointments/slots?doctorId={id}&startDate={date}&endDate={date}
func (c *Client) ListSlots(ctx context.Context, doctorID string, date time.Time) ([]SlotRef, error) {
	token, err := c.ensureAuthenticated(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: authentication failed: %w", err)
	}

	day := schedule.FormatDate(date)
	params := url.Values{}
	params.Set("doctorId", doctorID)
	params.Set("startDate", day)
	params.Set("endDate", day)

	endpoint := fmt.Sprintf("%s/appointments/slots?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("appointments: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("appointments: list slots: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("appointments: list slots: status %d: %s", resp.StatusCode, truncate(body))
	}

	var envelope struct {
		Data []slotPayload `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("appointments: decode slots: %w", err)
	}

	slots := make([]SlotRef, 0, len(envelope.Data))
	for _, p := range envelope.Data {
		slot, err := parseSlot(p)
		if err != nil {
			// A malformed slot from upstream should not hide the rest of
			// the day; skip it.
			continue
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// UpdateSlotStatus requests a status transition for one slot.
// PATCH /appointments/slots/{slotID} {"status": "..."}
func (c *Client) UpdateSlotStatus(ctx context.Context, slotID string, status SlotStatus) error {
	token, err := c.ensureAuthenticated(ctx)
	if err != nil {
		return fmt.Errorf("appointments: authentication failed: %w", err)
	}

	body, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return fmt.Errorf("appointments: marshal status update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/appointments/slots/%s", c.baseURL, url.PathEscape(slotID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("appointments: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("appointments: update slot %s: %w", slotID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("appointments: update slot %s: status %d: %s", slotID, resp.StatusCode, truncate(respBody))
	}
	return nil
}

func parseSlot(p slotPayload) (SlotRef, error) {
	start, err := schedule.ParseClock(p.StartTime)
	if err != nil {
		return SlotRef{}, err
	}
	end, err := schedule.ParseClock(p.EndTime)
	if err != nil {
		return SlotRef{}, err
	}
	return SlotRef{
		ID:        p.ID,
		DoctorID:  p.DoctorID,
		Date:      p.Date,
		StartTime: start,
		EndTime:   end,
		Status:    SlotStatus(p.Status),
	}, nil
}

// ensureAuthenticated returns a valid bearer token, refreshing it when
// missing or near expiry. Concurrent callers serialize on the cache lock so
// at most one of them performs the refresh.
func (c *Client) ensureAuthenticated(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Add(time.Minute).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}
	if err := c.authenticate(ctx); err != nil {
		return "", err
	}
	return c.accessToken, nil
}

// authenticate performs the OAuth 2.0 client-credentials flow. Callers must
// hold c.mu.
func (c *Client) authenticate(ctx context.Context) error {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("scope", "slots.read slots.write")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("auth failed (status %d): %s", resp.StatusCode, truncate(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return nil
}

func truncate(body []byte) string {
	msg := string(body)
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
