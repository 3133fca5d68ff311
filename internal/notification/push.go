// Package notification delivers alert push messages through shoutrrr
// service URLs (telegram, discord, ntfy and friends).
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/safecity/safecity-go/internal/alert"
	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/threat"
)

const defaultPushTimeout = 10 * time.Second

// PushNotifier sends alert events through one shoutrrr sender covering all
// configured service URLs. It implements alert.Notifier.
type PushNotifier struct {
	urls     []string
	minLevel threat.Level
	timeout  time.Duration
	sender   *router.ServiceRouter
	log      *slog.Logger
}

// NewPushNotifier builds and validates a push notifier from settings. The
// service URLs are validated eagerly so broken configuration fails at
// startup, not on the first alert.
func NewPushNotifier(settings *conf.Settings) (*PushNotifier, error) {
	pc := &settings.Alert.Push
	if len(pc.URLs) == 0 {
		return nil, errors.Newf("push alerts require at least one service URL").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	minLevel, err := threat.ParseLevel(pc.MinLevel)
	if err != nil {
		minLevel = threat.LevelViolence
	}

	sender, err := shoutrrr.CreateSender(pc.URLs...)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid push service URL: %w", err)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = defaultPushTimeout
	}
	sender.Timeout = timeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	svcLog := logging.ForService("notification")
	if svcLog == nil {
		svcLog = slog.Default()
	}

	return &PushNotifier{
		urls:     slices.Clone(pc.URLs),
		minLevel: minLevel,
		timeout:  timeout,
		sender:   sender,
		log:      svcLog,
	}, nil
}

// Name implements alert.Notifier.
func (p *PushNotifier) Name() string { return "push" }

// Notify implements alert.Notifier. Events below the configured minimum
// level are skipped silently.
func (p *PushNotifier) Notify(_ context.Context, event alert.Event) error {
	if event.Level.Severity() < p.minLevel.Severity() {
		return nil
	}

	body := alert.StatusLine(event.Level)
	if event.Reason != "" {
		body += "\n" + event.Reason
	}

	params := stypes.Params{}
	params.SetTitle(event.Profile.Title)

	sendErrs := p.sender.Send(body, &params)
	var failed []error
	for _, err := range sendErrs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return errors.New(fmt.Errorf("push delivery failed for %d of %d services: %w",
			len(failed), len(p.urls), errors.Join(failed...))).
			Component("notification").
			Category(errors.CategoryNotification).
			Build()
	}

	p.log.Debug("push alert delivered", "level", event.Level, "services", len(p.urls))
	return nil
}

// Describe returns a redacted summary of the configured services, safe for
// logs. Credentials embedded in service URLs are not exposed.
func (p *PushNotifier) Describe() string {
	services := make([]string, 0, len(p.urls))
	for _, u := range p.urls {
		scheme, _, ok := strings.Cut(u, "://")
		if !ok {
			scheme = "unknown"
		}
		services = append(services, scheme)
	}
	return strings.Join(services, ",")
}
