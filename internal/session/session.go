// Package session implements the monitoring session state machine: acquire a
// sensor, poll it on a fixed interval, classify each snapshot, and publish
// the resulting threat level to the alert presenter.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/safecity/safecity-go/internal/alert"
	"github.com/safecity/safecity-go/internal/capture"
	"github.com/safecity/safecity-go/internal/classifier"
	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/observability"
	"github.com/safecity/safecity-go/internal/threat"
)

// Default poll intervals per input kind.
const (
	DefaultAudioInterval = 2 * time.Second
	DefaultVideoInterval = 5 * time.Second

	forwardTimeout = 15 * time.Second
)

// AcquireFunc acquires the session's sensor. It must return one of the
// capture sentinel errors on failure.
type AcquireFunc func(ctx context.Context) (capture.Capture, error)

// FrameClassifier classifies video stills. *classifier.Client satisfies it.
type FrameClassifier interface {
	ClassifyFrame(ctx context.Context, frame []byte) classifier.Result
}

// AudioAnalyzer scores audio amplitude features. *backend.Client satisfies
// it; the call is fail-open and never errors.
type AudioAnalyzer interface {
	AnalyzeAudio(ctx context.Context, userID string, averageVolume float64) threat.Level
}

// Recorder persists classified observations. *backend.Client satisfies it.
type Recorder interface {
	SaveIncident(ctx context.Context, obs threat.Observation) error
}

// Config wires a session's dependencies. Kind, Acquire, Scheduler and
// Presenter are required; the classifier/analyzer matching Kind must be set.
type Config struct {
	Kind     threat.InputKind
	Interval time.Duration // defaults per kind when zero
	UserID   string

	Acquire   AcquireFunc
	Scheduler Scheduler
	Presenter *alert.Presenter

	Frames   FrameClassifier // video sessions
	Analyzer AudioAnalyzer   // audio sessions
	Recorder Recorder        // optional, video observation forwarding

	Metrics *observability.Metrics
}

// Session is the Idle/Active monitoring state machine.
//
// Every poll result carries the generation the session had when the poll was
// issued; results whose generation no longer matches are discarded. Together
// with the sequential scheduler this guarantees results apply in issue order
// and that nothing from a stopped session ever reaches the display.
type Session struct {
	kind     threat.InputKind
	interval time.Duration
	userID   string

	acquire   AcquireFunc
	scheduler Scheduler
	presenter *alert.Presenter
	frames    FrameClassifier
	analyzer  AudioAnalyzer
	recorder  Recorder
	metrics   *observability.Metrics
	log       *slog.Logger

	mu         sync.Mutex
	active     bool
	generation uint64
	handle     Handle
	capture    capture.Capture
}

// New builds an idle session from cfg.
func New(cfg Config) (*Session, error) {
	if cfg.Acquire == nil || cfg.Scheduler == nil || cfg.Presenter == nil {
		return nil, errors.Newf("session: acquire, scheduler and presenter are required").
			Component("session").
			Category(errors.CategoryConfiguration).
			Build()
	}

	interval := cfg.Interval
	switch cfg.Kind {
	case threat.InputAudio:
		if cfg.Analyzer == nil {
			return nil, errors.Newf("session: audio sessions need an analyzer").
				Component("session").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if interval <= 0 {
			interval = DefaultAudioInterval
		}
	case threat.InputVideo:
		if cfg.Frames == nil {
			return nil, errors.Newf("session: video sessions need a frame classifier").
				Component("session").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if interval <= 0 {
			interval = DefaultVideoInterval
		}
	default:
		return nil, errors.Newf("session: unsupported input kind %q", cfg.Kind).
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}

	log := logging.ForService("session")
	if log == nil {
		log = slog.Default()
	}

	return &Session{
		kind:      cfg.Kind,
		interval:  interval,
		userID:    cfg.UserID,
		acquire:   cfg.Acquire,
		scheduler: cfg.Scheduler,
		presenter: cfg.Presenter,
		frames:    cfg.Frames,
		analyzer:  cfg.Analyzer,
		recorder:  cfg.Recorder,
		metrics:   cfg.Metrics,
		log:       log,
	}, nil
}

// Active reports whether a monitoring session is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Start acquires the sensor and begins polling. The display shows SAFE
// immediately; the first real result replaces it within one interval.
// Acquisition failures (permission denied, device unavailable) leave the
// session idle and are returned to the caller.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return errors.Newf("session already active").
			Component("session").
			Category(errors.CategoryState).
			Build()
	}
	s.mu.Unlock()

	cap, err := s.acquire(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		cap.Release()
		return errors.Newf("session already active").
			Component("session").
			Category(errors.CategoryState).
			Build()
	}
	s.active = true
	s.generation++
	gen := s.generation
	s.capture = cap

	safe := threat.LevelSafe
	s.presenter.Update(&safe, s.kind, "")

	s.handle = s.scheduler.Schedule(s.interval, func(ctx context.Context) {
		s.poll(ctx, gen, cap)
	})
	s.mu.Unlock()

	s.log.Info("monitoring session started", "kind", s.kind, "interval", s.interval)
	return nil
}

// Stop ends the session: the poll schedule is cancelled, the sensor is
// released and the display clears. Idempotent, and safe while a poll is in
// flight; the in-flight result is discarded by its stale generation.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.generation++
	handle := s.handle
	cap := s.capture
	s.handle = nil
	s.capture = nil
	s.presenter.Update(nil, s.kind, "")
	s.mu.Unlock()

	if handle != nil {
		handle.Cancel()
	}
	if cap != nil {
		cap.Release()
	}
	s.log.Info("monitoring session stopped", "kind", s.kind)
}

func (s *Session) poll(ctx context.Context, gen uint64, cap capture.Capture) {
	start := time.Now()

	feature, err := cap.Snapshot()
	if err != nil {
		// Transient sensor hiccup: keep the last displayed level and let
		// the next tick retry.
		s.log.Warn("snapshot failed, skipping cycle", "kind", s.kind, "error", err)
		return
	}

	var result classifier.Result
	switch s.kind {
	case threat.InputAudio:
		result.Level = s.analyzer.AnalyzeAudio(ctx, s.userID, feature.Volume)
	case threat.InputVideo:
		result = s.frames.ClassifyFrame(ctx, feature.Frame)
	default:
		return
	}

	if s.metrics != nil {
		s.metrics.PollDuration.WithLabelValues(string(s.kind)).Observe(time.Since(start).Seconds())
	}

	if !s.apply(gen, result) {
		return
	}

	// Audio records are persisted server side by the analyzer call; video
	// observations are forwarded here, detached from session state.
	if s.kind == threat.InputVideo && s.recorder != nil {
		obs := threat.NewObservation(s.userID, s.kind, result.Level, result.Reason)
		go s.forward(obs)
	}
}

// apply publishes a poll result unless the session moved on since the poll
// was issued. Returns false for discarded results.
func (s *Session) apply(gen uint64, result classifier.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || gen != s.generation {
		s.log.Debug("discarding stale poll result", "kind", s.kind, "generation", gen)
		return false
	}

	level := result.Level
	s.presenter.Update(&level, s.kind, result.Reason)
	return true
}

func (s *Session) forward(obs threat.Observation) {
	ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
	defer cancel()

	if err := s.recorder.SaveIncident(ctx, obs); err != nil {
		s.log.Warn("record forward failed",
			"kind", obs.Kind, "level", obs.Level, "error", err)
		if s.metrics != nil {
			s.metrics.RecordForwardFailures.Inc()
		}
	}
}
