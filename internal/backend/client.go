// Package backend provides the monitor-side client for the SafeCity record
// and auth backend. Classification of audio features happens server side;
// everything else is persistence and account handling.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/httpclient"
	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/threat"
)

// User mirrors the backend's user representation.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

// AuthResponse is the result of a register or login call.
type AuthResponse struct {
	Success bool   `json:"success"`
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

// AnalysisRecord is one persisted classification result.
type AnalysisRecord struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	Timestamp      time.Time    `json:"timestamp"`
	Type           string       `json:"type"`
	ThreatLevel    threat.Level `json:"threatLevel"`
	ContentSnippet string       `json:"contentSnippet"`
	Details        string       `json:"details"`
}

// Client talks to the backend REST API under its /api base path.
type Client struct {
	http    *httpclient.Client
	baseURL string
	timeout time.Duration
	log     *slog.Logger
}

// NewClient builds a backend client from settings.
func NewClient(settings *conf.Settings, client *httpclient.Client) *Client {
	log := logging.ForService("backend")
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		http:    client,
		baseURL: settings.Backend.URL + "/api",
		timeout: settings.Backend.Timeout,
		log:     log,
	}
}

// Register creates an account. Backend-side rejections (duplicate username,
// weak input) come back with Success=false and a message, not an error.
func (c *Client) Register(ctx context.Context, username, email, password string) (AuthResponse, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var out AuthResponse
	if err := c.postJSON(ctx, "/register", body, &out); err != nil {
		return AuthResponse{}, err
	}
	return out, nil
}

// Login authenticates a user.
func (c *Client) Login(ctx context.Context, username, password string) (AuthResponse, error) {
	body := map[string]string{"username": username, "password": password}
	var out AuthResponse
	if err := c.postJSON(ctx, "/login", body, &out); err != nil {
		return AuthResponse{}, err
	}
	return out, nil
}

// Records fetches the user's analysis history, newest first.
func (c *Client) Records(ctx context.Context, userID string) ([]AnalysisRecord, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.http.Get(ctx, c.baseURL+"/records/"+url.PathEscape(userID))
	if err != nil {
		return nil, c.networkError("records", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("records request returned status %d", resp.StatusCode).
			Component("backend").
			Category(errors.CategoryHTTP).
			Build()
	}

	var records []AnalysisRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	return records, nil
}

// AnalyzeAudio submits an average amplitude for server-side classification.
// Fail-open: any failure yields SAFE for this cycle only, never an error.
func (c *Client) AnalyzeAudio(ctx context.Context, userID string, averageVolume float64) threat.Level {
	body := map[string]any{"userId": userID, "average_volume": averageVolume}

	var out struct {
		Level string `json:"level"`
	}
	if err := c.postJSON(ctx, "/analyze/audio", body, &out); err != nil {
		c.log.Warn("audio analysis failed, defaulting to safe", "error", err)
		return threat.LevelSafe
	}

	level, err := threat.ParseLevel(out.Level)
	if err != nil {
		c.log.Warn("audio analysis returned unknown level, defaulting to safe", "error", err)
		return threat.LevelSafe
	}
	return level
}

// SaveIncident persists a classified video or text observation. Callers
// treat this as fire-and-forget; the returned error exists for logging only
// and must never influence session state.
func (c *Client) SaveIncident(ctx context.Context, obs threat.Observation) error {
	var path string
	body := map[string]any{"userId": obs.UserID}
	switch obs.Kind {
	case threat.InputVideo:
		path = "/analyze/video"
		body["level"] = obs.Level
		body["reason"] = obs.Reason
	case threat.InputText:
		path = "/analyze/text"
		body["text"] = obs.Summary
		body["level"] = obs.Level
		body["reason"] = obs.Reason
	default:
		return errors.Newf("unsupported incident kind %q", obs.Kind).
			Component("backend").
			Category(errors.CategoryValidation).
			Build()
	}

	var ack map[string]any
	return c.postJSON(ctx, path, body, &ack)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.http.Post(ctx, c.baseURL+path, "application/json", body)
	if err != nil {
		return c.networkError(path, err)
	}
	defer resp.Body.Close()

	// Auth rejections arrive as 200/401 with a JSON body either way; decode
	// anything that parses and let callers inspect Success.
	if resp.StatusCode >= http.StatusInternalServerError {
		return errors.Newf("backend returned status %d for %s", resp.StatusCode, path).
			Component("backend").
			Category(errors.CategoryHTTP).
			Build()
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(fmt.Errorf("decoding %s response: %w", path, err)).
			Component("backend").
			Category(errors.CategoryNetwork).
			Build()
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) networkError(op string, err error) error {
	return errors.New(fmt.Errorf("backend %s: %w", op, err)).
		Component("backend").
		Category(errors.CategoryNetwork).
		Build()
}
