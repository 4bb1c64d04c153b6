// Package app wires configuration, the calendar service, the web server,
// the scheduled mirror and the registry watcher into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"venuecal/internal/calendar"
	"venuecal/internal/clock"
	"venuecal/internal/config"
	"venuecal/internal/ics"
	appLog "venuecal/internal/log"
	"venuecal/internal/metrics"
	"venuecal/internal/mirror"
	"venuecal/internal/web"
)

const reloadDebounce = 200 * time.Millisecond

type application struct {
	config  *config.Config
	clock   clock.Clock
	metrics *metrics.Metrics
}

// Option configures Run.
type Option func(*application)

func WithConfig(cfg *config.Config) Option {
	return func(a *application) { a.config = cfg }
}

func WithClock(c clock.Clock) Option {
	return func(a *application) { a.clock = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *application) { a.metrics = m }
}

// NewService loads the venue registry named in cfg and builds the calendar
// service on top of it.
func NewService(cfg *config.Config, m *metrics.Metrics) (*calendar.Service, error) {
	venues, err := config.LoadVenues(cfg.VenuesFile)
	if err != nil {
		return nil, fmt.Errorf("load venues: %w", err)
	}
	fetcher := ics.NewFetcher(cfg.CacheDir, cfg.FetchTimeout)
	return calendar.NewService(venues, fetcher, m, cfg.Location()), nil
}

// NewMirror builds the feed mirror from cfg.
func NewMirror(cfg *config.Config, m *metrics.Metrics) (*mirror.Mirror, error) {
	return mirror.New(mirror.Options{
		FeedsDir:  cfg.Mirror.FeedsDir,
		UserAgent: cfg.Mirror.UserAgent,
		Timeout:   cfg.FetchTimeout,
		Metrics:   m,
	})
}

// RunMirror mirrors a freshly loaded copy of the registry so readers of the
// live registry never see it mutate. The saved registry is returned.
func RunMirror(ctx context.Context, cfg *config.Config, mir *mirror.Mirror) (*config.Venues, mirror.Report, error) {
	venues, err := config.LoadVenues(cfg.VenuesFile)
	if err != nil {
		return nil, mirror.Report{}, fmt.Errorf("load venues: %w", err)
	}
	report, err := mir.Run(ctx, venues)
	if err != nil {
		return nil, report, err
	}
	appLog.Info("mirror finished", "updated", report.Updated, "failed", report.Failed, "skipped", report.Skipped)
	return venues, report, nil
}

// Run serves the web views until ctx is cancelled or SIGINT/SIGTERM
// arrives. When a mirror schedule is configured it also re-mirrors feeds,
// and it reloads the venue registry whenever its file changes.
func Run(ctx context.Context, opts ...Option) error {
	a := &application{}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return errors.New("config is required")
	}
	cfg := a.config
	if a.metrics == nil {
		a.metrics = metrics.New()
	}

	svc, err := NewService(cfg, a.metrics)
	if err != nil {
		return err
	}

	appLog.Info("configuration loaded",
		"listen", cfg.Listen,
		"timezone", svc.Location().String(),
		"venues_file", cfg.VenuesFile,
		"venues", len(svc.Venues().Entries),
		"default_venue", cfg.DefaultVenue,
		"mirror_schedule", cfg.Mirror.Schedule,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	server := web.NewServer(cfg, svc, a.clock, a.metrics)
	g.Go(func() error {
		return server.ListenAndServe(gCtx)
	})

	g.Go(func() error {
		return watchVenues(gCtx, cfg.VenuesFile, svc)
	})

	if cfg.Mirror.Schedule != "" {
		mir, err := NewMirror(cfg, a.metrics)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return runSchedule(gCtx, cfg, svc, mir)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	appLog.Info("venuecal stopped")
	return nil
}

// runSchedule runs the mirror on cfg.Mirror.Schedule until ctx ends.
func runSchedule(ctx context.Context, cfg *config.Config, svc *calendar.Service, mir *mirror.Mirror) error {
	logger := cron.PrintfLogger(slog.NewLogLogger(appLog.Logger().Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLocation(svc.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(cfg.Mirror.Schedule, func() {
		venues, _, err := RunMirror(ctx, cfg, mir)
		if err != nil {
			appLog.Error("scheduled mirror failed", err)
			return
		}
		svc.SetVenues(venues)
	})
	if err != nil {
		return fmt.Errorf("mirror schedule: %w", err)
	}

	c.Start()
	appLog.Info("mirror scheduled", "schedule", cfg.Mirror.Schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// watchVenues reloads the registry after its file is written or replaced.
// The parent directory is watched because saves swap the file via rename.
func watchVenues(ctx context.Context, path string, svc *calendar.Service) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	appLog.Debug("watching venue registry", "path", abs)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case <-timerCh:
			timerCh = nil
			if err := svc.Reload(); err != nil {
				appLog.Warn("venue registry reload failed; keeping previous", "path", abs, "error", err)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, statErr := os.Stat(abs); statErr != nil {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			timerCh = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Warn("venue watcher error", "error", err)
		}
	}
}
