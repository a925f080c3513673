package phaselinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Phaseline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no bearer token is set.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Project represents the API project model.
type Project struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Methodology    string    `json:"methodology"`
	CurrentPhaseID *string   `json:"current_phase_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Phase represents the API phase model (partial).
type Phase struct {
	ID           string             `json:"id"`
	ProjectID    string             `json:"project_id"`
	Position     int                `json:"position"`
	Name         string             `json:"name"`
	Status       string             `json:"status"`
	Progress     int                `json:"progress"`
	StartDate    *time.Time         `json:"start_date,omitempty"`
	ExitCriteria []string           `json:"exit_criteria"`
	AssignedTeam []string           `json:"assigned_team"`
	Metrics      map[string]float64 `json:"metrics"`
}

// Option is a transition defined by the methodology rules.
type Option struct {
	ToPhase      string   `json:"to_phase"`
	Reason       string   `json:"reason"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
	Warning      string   `json:"warning,omitempty"`
}

// Transition is an audit record of an executed transition.
type Transition struct {
	ID          int64     `json:"id"`
	ProjectID   string    `json:"project_id"`
	FromPhase   string    `json:"from_phase"`
	ToPhase     string    `json:"to_phase"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
	Notes       string    `json:"notes,omitempty"`
	TriggeredBy string    `json:"triggered_by"`
	Metadata    struct {
		Requirements []string `json:"requirements"`
		Methodology  string   `json:"methodology"`
	} `json:"metadata"`
}

// TransitionInput selects a transition by target and reason.
type TransitionInput struct {
	ToPhase      string   `json:"to_phase"`
	Reason       string   `json:"reason"`
	Acknowledged []string `json:"acknowledged,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// Validation reports which requirements are still unacknowledged.
type Validation struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing"`
	Option  Option   `json:"option"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// Missing lists unacknowledged requirements on incomplete_requirements.
	Missing []string
	Body    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsIncompleteRequirements reports whether err is a 422 for unacknowledged requirements.
func IsIncompleteRequirements(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "incomplete_requirements"
}

type list[T any] struct {
	Items []T `json:"items"`
}

// CreateProject creates a project; phases are seeded server-side.
func (c *Client) CreateProject(ctx context.Context, id, name, methodology string) (Project, error) {
	body := map[string]any{"id": id, "name": name, "methodology": methodology}
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Phases lists a project's phases in creation order.
func (c *Client) Phases(ctx context.Context, projectID string) ([]Phase, error) {
	var resp list[Phase]
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("projects/%s/phases", url.PathEscape(projectID)), nil, &resp)
	return resp.Items, err
}

// Transitions lists the options available from a phase.
func (c *Client) Transitions(ctx context.Context, phaseID string) ([]Option, error) {
	var resp list[Option]
	err := c.do(ctx, http.MethodGet, c.phasePath(phaseID, "transitions"), nil, &resp)
	return resp.Items, err
}

func (c *Client) ValidateTransition(ctx context.Context, phaseID string, in TransitionInput) (Validation, error) {
	var resp Validation
	err := c.do(ctx, http.MethodPost, c.phasePath(phaseID, "transitions/validate"), in, &resp)
	return resp, err
}

// Transition executes a transition; unacknowledged requirements yield an
// *APIError with Missing set.
func (c *Client) Transition(ctx context.Context, phaseID string, in TransitionInput) (Transition, error) {
	var resp Transition
	err := c.do(ctx, http.MethodPost, c.phasePath(phaseID, "transitions"), in, &resp)
	return resp, err
}

// SetStatus overrides a phase status; the change is not audited.
func (c *Client) SetStatus(ctx context.Context, phaseID, status string) (Phase, error) {
	var resp Phase
	err := c.do(ctx, http.MethodPut, c.phasePath(phaseID, "status"), map[string]string{"status": status}, &resp)
	return resp, err
}

// AuditTrail returns a project's executed transitions, oldest first.
func (c *Client) AuditTrail(ctx context.Context, projectID string) ([]Transition, error) {
	var resp list[Transition]
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("projects/%s/audit", url.PathEscape(projectID)), nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeError(resp.StatusCode, b)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details struct {
				Missing []string `json:"missing"`
			} `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Missing = env.Error.Details.Missing
	}
	return apiErr
}

func (c *Client) phasePath(phaseID, p string) string {
	return fmt.Sprintf("phases/%s/%s", url.PathEscape(phaseID), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if bp := strings.Trim(c.BasePath, "/"); bp != "" {
		base += "/" + bp
	}
	return base
}
