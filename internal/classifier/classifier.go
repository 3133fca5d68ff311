// Package classifier wraps the external generative AI threat classifier.
// A Provider performs the raw classification calls and may fail; the Client
// facade applies the configured failure policy so that callers never receive
// an error, only a level.
package classifier

import (
	"context"
	"log/slog"

	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/observability"
	"github.com/safecity/safecity-go/internal/threat"
)

// Fallback reasons reported when a classification call fails.
const (
	FallbackReasonSafe     = "Analysis failed, defaulting to safe."
	FallbackReasonEscalate = "Analysis failed, escalating per fail-closed policy."
	FallbackReasonFrame    = "Frame analysis failed"
)

// Result is the outcome of one classification call.
type Result struct {
	Level  threat.Level `json:"level"`
	Reason string       `json:"reason"`
}

// Provider performs raw classification calls against an external service.
// Implementations may return errors; policy handling lives in Client.
type Provider interface {
	// ClassifyText classifies raw text for violence or weapon content.
	ClassifyText(ctx context.Context, text string) (Result, error)
	// ClassifyFrame classifies a JPEG still frame.
	ClassifyFrame(ctx context.Context, frame []byte) (Result, error)
}

// Client applies the configured failure mode on top of a Provider.
//
// The default fail-open policy degrades every failed classification to SAFE
// rather than erroring: a deliberate availability-over-accuracy tradeoff
// that is unacceptable for safety-critical deployments, which should
// configure fail-closed (escalate) instead.
type Client struct {
	provider Provider
	failMode string
	metrics  *observability.Metrics
	log      *slog.Logger
}

// NewClient builds a classification client from settings. metrics may be nil.
func NewClient(provider Provider, settings *conf.Settings, metrics *observability.Metrics) *Client {
	log := logging.ForService("classifier")
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		provider: provider,
		failMode: settings.Classifier.FailMode,
		metrics:  metrics,
		log:      log,
	}
}

// ClassifyText classifies text, never returning an error. On any provider
// failure the configured fallback result is returned instead.
func (c *Client) ClassifyText(ctx context.Context, text string) Result {
	result, err := c.provider.ClassifyText(ctx, text)
	return c.finish(threat.InputText, result, err)
}

// ClassifyFrame classifies a JPEG frame, never returning an error. On any
// provider failure the configured fallback result is returned instead.
func (c *Client) ClassifyFrame(ctx context.Context, frame []byte) Result {
	result, err := c.provider.ClassifyFrame(ctx, frame)
	if err != nil {
		fallback := c.fallback()
		fallback.Reason = FallbackReasonFrame
		if c.failMode == conf.FailModeEscalate {
			fallback.Reason = FallbackReasonEscalate
		}
		c.observe(threat.InputVideo, fallback.Level, err)
		return fallback
	}
	return c.finish(threat.InputVideo, result, nil)
}

func (c *Client) finish(kind threat.InputKind, result Result, err error) Result {
	if err != nil {
		fallback := c.fallback()
		c.observe(kind, fallback.Level, err)
		return fallback
	}
	if !result.Level.Valid() {
		// Constrained response schema should prevent this; treat as failure.
		fallback := c.fallback()
		c.observe(kind, fallback.Level, nil)
		return fallback
	}
	c.observe(kind, result.Level, nil)
	return result
}

func (c *Client) fallback() Result {
	if c.failMode == conf.FailModeEscalate {
		return Result{Level: threat.LevelWeapon, Reason: FallbackReasonEscalate}
	}
	return Result{Level: threat.LevelSafe, Reason: FallbackReasonSafe}
}

func (c *Client) observe(kind threat.InputKind, level threat.Level, err error) {
	if err != nil {
		c.log.Warn("classification failed, applying fallback",
			"kind", kind, "fail_mode", c.failMode, "error", err)
		if c.metrics != nil {
			c.metrics.ClassifierFailures.WithLabelValues(string(kind)).Inc()
		}
	}
	if c.metrics != nil {
		c.metrics.Classifications.WithLabelValues(string(kind), string(level)).Inc()
	}
}
