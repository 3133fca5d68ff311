// Package monitor implements the `safecity monitor` subcommand: the capture
// agent that polls sensors, classifies their snapshots and raises alerts.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/safecity/safecity-go/internal/alert"
	"github.com/safecity/safecity-go/internal/backend"
	"github.com/safecity/safecity-go/internal/capture"
	"github.com/safecity/safecity-go/internal/classifier"
	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/httpclient"
	"github.com/safecity/safecity-go/internal/kvstore"
	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/mqtt"
	"github.com/safecity/safecity-go/internal/notification"
	"github.com/safecity/safecity-go/internal/observability"
	"github.com/safecity/safecity-go/internal/session"
	"github.com/safecity/safecity-go/internal/threat"
)

type options struct {
	username string
	password string
	email    string
	register bool
}

// Command returns the monitor subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the capture and classification agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), settings, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Backend account username")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "Backend account password")
	cmd.Flags().StringVar(&opts.email, "email", "", "Email for --register")
	cmd.Flags().BoolVar(&opts.register, "register", false, "Create the account before logging in")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func run(ctx context.Context, settings *conf.Settings, opts *options) error {
	log := logging.ForService("monitor")
	if log == nil {
		log = slog.Default()
	}
	if lc := settings.Main.Log; lc.Enabled && lc.Path != "" {
		fileLog, closeLog, err := logging.NewFileLogger(lc.Path, "monitor", slog.LevelInfo, &logging.FileLoggerOptions{
			MaxSizeMB:  lc.MaxSize,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAge,
		})
		if err != nil {
			log.Warn("file logging disabled", "path", lc.Path, "error", err)
		} else {
			defer func() {
				if err := closeLog(); err != nil {
					log.Error("closing log file failed", "error", err)
				}
			}()
			log = fileLog
		}
	}

	if !settings.Monitor.Audio.Enabled && !settings.Monitor.Video.Enabled {
		return errors.Newf("no monitor inputs enabled, set monitor.audio.enabled or monitor.video.enabled").
			Component("monitor").
			Category(errors.CategoryConfiguration).
			Build()
	}

	httpClient := httpclient.New(nil)
	defer httpClient.Close()
	backendClient := backend.NewClient(settings, httpClient)

	userSession, err := authenticate(ctx, backendClient, opts)
	if err != nil {
		return err
	}
	defer userSession.Clear()
	user := userSession.User()
	log.Info("authenticated", "username", user.Username)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	presenter := alert.NewPresenter(metrics, buildNotifiers(ctx, settings, log)...)

	provider := classifier.NewGeminiProvider(settings, httpClient)
	frames := classifier.NewClient(provider, settings, metrics)

	scheduler := session.NewTickerScheduler()
	sessions, err := buildSessions(settings, user.ID, scheduler, presenter, frames, backendClient, httpClient, metrics)
	if err != nil {
		return err
	}

	var started []*session.Session
	for _, s := range sessions {
		if err := s.Start(ctx); err != nil {
			for _, active := range started {
				active.Stop()
			}
			return describeStartError(err)
		}
		started = append(started, s)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("stopping monitor", "signal", sig.String())
	case <-ctx.Done():
		log.Info("stopping monitor", "reason", "context cancelled")
	}

	for _, s := range started {
		s.Stop()
	}
	return nil
}

func authenticate(ctx context.Context, client *backend.Client, opts *options) (*kvstore.UserSession, error) {
	if opts.register {
		resp, err := client.Register(ctx, opts.username, opts.email, opts.password)
		if err != nil {
			return nil, fmt.Errorf("registration failed: %w", err)
		}
		if !resp.Success {
			return nil, errors.Newf("registration rejected: %s", resp.Message).
				Component("monitor").
				Category(errors.CategoryAuth).
				Build()
		}
	}

	resp, err := client.Login(ctx, opts.username, opts.password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if !resp.Success || resp.User == nil {
		return nil, errors.Newf("login rejected: %s", resp.Message).
			Component("monitor").
			Category(errors.CategoryAuth).
			Build()
	}

	userSession := kvstore.NewUserSession(kvstore.NewMemoryStore())
	userSession.SetUser(resp.User)
	return userSession, nil
}

func buildNotifiers(ctx context.Context, settings *conf.Settings, log *slog.Logger) []alert.Notifier {
	notifiers := []alert.Notifier{&alert.LogNotifier{}}

	if settings.Alert.Push.Enabled {
		push, err := notification.NewPushNotifier(settings)
		if err != nil {
			log.Warn("push alerts disabled", "error", err)
		} else {
			log.Info("push alerts enabled", "services", push.Describe())
			notifiers = append(notifiers, push)
		}
	}

	if settings.Alert.MQTT.Enabled {
		client, err := mqtt.NewClient(settings)
		if err != nil {
			log.Warn("mqtt alerts disabled", "error", err)
		} else if err := client.Connect(ctx); err != nil {
			// Auto-reconnect keeps trying in the background.
			log.Warn("mqtt broker not reachable yet", "error", err)
			notifiers = append(notifiers, client)
		} else {
			notifiers = append(notifiers, client)
		}
	}

	return notifiers
}

func buildSessions(
	settings *conf.Settings,
	userID string,
	scheduler session.Scheduler,
	presenter *alert.Presenter,
	frames session.FrameClassifier,
	backendClient *backend.Client,
	httpClient *httpclient.Client,
	metrics *observability.Metrics,
) ([]*session.Session, error) {
	var sessions []*session.Session

	if settings.Monitor.Audio.Enabled {
		levelChan := make(chan capture.LevelData, 16)
		go drainLevels(levelChan)

		device := settings.Monitor.Audio.Device
		audioSession, err := session.New(session.Config{
			Kind:      threat.InputAudio,
			Interval:  settings.Monitor.Audio.Interval,
			UserID:    userID,
			Acquire:   func(context.Context) (capture.Capture, error) { return capture.AcquireAudio(device, levelChan) },
			Scheduler: scheduler,
			Presenter: presenter,
			Analyzer:  backendClient,
			Metrics:   metrics,
		})
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, audioSession)
	}

	if settings.Monitor.Video.Enabled {
		source := settings.Monitor.Video.Source
		videoSession, err := session.New(session.Config{
			Kind:      threat.InputVideo,
			Interval:  settings.Monitor.Video.Interval,
			UserID:    userID,
			Acquire:   func(ctx context.Context) (capture.Capture, error) { return capture.AcquireVideo(ctx, source, httpClient) },
			Scheduler: scheduler,
			Presenter: presenter,
			Frames:    frames,
			Recorder:  backendClient,
			Metrics:   metrics,
		})
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, videoSession)
	}

	return sessions, nil
}

// drainLevels consumes the cosmetic VU feed so the capture never stalls.
func drainLevels(levels <-chan capture.LevelData) {
	for range levels {
	}
}

func describeStartError(err error) error {
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		return fmt.Errorf("sensor access denied, check device permissions: %w", err)
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return fmt.Errorf("sensor unavailable, check device configuration: %w", err)
	default:
		return err
	}
}
