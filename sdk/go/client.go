package exitframesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal exitFrame HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Client record (partial).
type ClientRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Status  string `json:"status"`
}

// StepResult is one step's outcome within an onboarding run.
type StepResult struct {
	StepIndex  int    `json:"step_index"`
	Label      string `json:"label"`
	ActionType string `json:"action_type"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	CreatedID  string `json:"created_id,omitempty"`
}

// OnboardingRun is a persisted execution record.
type OnboardingRun struct {
	ID          string       `json:"id"`
	TemplateID  string       `json:"template_id"`
	ClientID    string       `json:"client_id"`
	Status      string       `json:"status"`
	Results     []StepResult `json:"results"`
	StartedAt   string       `json:"started_at"`
	CompletedAt string       `json:"completed_at,omitempty"`
}

// Heartbeat outcome.
type HeartbeatResult struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateClient creates a client record.
func (c *Client) CreateClient(ctx context.Context, name, email, company string) (ClientRecord, error) {
	body := map[string]any{"name": name}
	if email != "" {
		body["email"] = email
	}
	if company != "" {
		body["company"] = company
	}
	var resp ClientRecord
	err := c.do(ctx, http.MethodPost, "api/clients", body, &resp)
	return resp, err
}

// RunOnboarding executes a template against a client and returns the run.
func (c *Client) RunOnboarding(ctx context.Context, templateID, clientID string) (OnboardingRun, error) {
	body := map[string]any{
		"template_id": templateID,
		"client_id":   clientID,
	}
	var resp OnboardingRun
	err := c.do(ctx, http.MethodPost, "api/onboarding/run", body, &resp)
	return resp, err
}

// GetRun fetches a past onboarding run.
func (c *Client) GetRun(ctx context.Context, id string) (OnboardingRun, error) {
	var resp OnboardingRun
	err := c.do(ctx, http.MethodGet, "api/onboarding/runs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Heartbeat records an activity pulse.
func (c *Client) Heartbeat(ctx context.Context, module, clientID, description string) (HeartbeatResult, error) {
	body := map[string]any{"module": module}
	if clientID != "" {
		body["client_id"] = clientID
	}
	if description != "" {
		body["activity_description"] = description
	}
	var resp HeartbeatResult
	err := c.do(ctx, http.MethodPost, "api/time/heartbeat", body, &resp)
	return resp, err
}

// TimeSummary returns minutes tracked per module.
func (c *Client) TimeSummary(ctx context.Context, dateFrom, dateTo string) (map[string]int, error) {
	endpoint := "api/time/summary"
	q := url.Values{}
	if dateFrom != "" {
		q.Set("date_from", dateFrom)
	}
	if dateTo != "" {
		q.Set("date_to", dateTo)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp map[string]int
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
