package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/observability"
	"github.com/safecity/safecity-go/internal/threat"
)

// Event describes one alert cue worth dispatching.
type Event struct {
	Level     threat.Level
	Profile   Profile
	Reason    string
	Kind      threat.InputKind
	Timestamp time.Time
}

// Notifier delivers a fired alert cue to an external sink (log line, push
// message, MQTT topic). Implementations must tolerate concurrent calls.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event Event) error
}

// Presenter tracks the displayed threat level and fires cues on transitions.
//
// The cue fires exactly once per distinct transition into VIOLENCE or
// WEAPON. Repeated readings of the same level are silent, and SAFE
// (including the optimistic baseline at session start) never plays a cue.
// The original dashboard re-triggered the sound on every level-bearing
// render, which repeated the siren on every poll; transition-only firing is
// the intended behavior and is what we implement.
//
// Transition tracking is keyed by input kind: the audio and video sessions
// share one presenter, and interleaved polls from one sensor must neither
// re-trigger the other's cue nor clear the other's display.
type Presenter struct {
	mu        sync.Mutex
	current   map[threat.InputKind]*threat.Level // no entry while that session is idle
	notifiers []Notifier
	metrics   *observability.Metrics
	log       *slog.Logger

	notifyTimeout time.Duration
}

// NewPresenter builds a presenter dispatching cues to the given notifiers.
// metrics may be nil.
func NewPresenter(metrics *observability.Metrics, notifiers ...Notifier) *Presenter {
	log := logging.ForService("alert")
	if log == nil {
		log = slog.Default()
	}
	return &Presenter{
		current:       make(map[threat.InputKind]*threat.Level),
		notifiers:     notifiers,
		metrics:       metrics,
		log:           log,
		notifyTimeout: 10 * time.Second,
	}
}

// Current returns the level displayed for the given input kind, nil while
// that session is idle.
func (p *Presenter) Current(kind threat.InputKind) *threat.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := p.current[kind]
	if current == nil {
		return nil
	}
	level := *current
	return &level
}

// Update applies a new observation to the display for its input kind. A nil
// level clears that kind's display (session stopped). Cue dispatch happens
// on a detached goroutine; notifier failures are logged and never propagate.
func (p *Presenter) Update(level *threat.Level, kind threat.InputKind, reason string) {
	p.mu.Lock()
	if level == nil {
		delete(p.current, kind)
		p.mu.Unlock()
		return
	}

	prev := p.current[kind]
	transitioned := prev == nil || *prev != *level
	value := *level
	p.current[kind] = &value
	p.mu.Unlock()

	if !transitioned {
		return
	}

	profile := ProfileFor(*level)
	if profile.Cue == CueNone {
		return
	}

	if p.metrics != nil {
		p.metrics.AlertCues.WithLabelValues(string(profile.Cue)).Inc()
	}

	event := Event{
		Level:     *level,
		Profile:   profile,
		Reason:    reason,
		Kind:      kind,
		Timestamp: time.Now(),
	}
	for _, n := range p.notifiers {
		go p.dispatch(n, event)
	}
}

func (p *Presenter) dispatch(n Notifier, event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.notifyTimeout)
	defer cancel()

	if err := n.Notify(ctx, event); err != nil {
		p.log.Warn("alert notifier failed", "notifier", n.Name(), "level", event.Level, "error", err)
	}
}

// LogNotifier writes alert cues to the structured log. Always registered so
// every cue leaves a trace even with no external sinks configured.
type LogNotifier struct {
	Log *slog.Logger
}

func (l *LogNotifier) Name() string { return "log" }

func (l *LogNotifier) Notify(_ context.Context, event Event) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Warn("threat alert",
		"level", event.Level,
		"cue", event.Profile.Cue,
		"title", event.Profile.Title,
		"kind", event.Kind,
		"reason", event.Reason,
	)
	return nil
}
