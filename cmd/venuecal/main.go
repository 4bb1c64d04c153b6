package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"venuecal/internal/app"
	"venuecal/internal/capture"
	"venuecal/internal/clock"
	"venuecal/internal/config"
	appLog "venuecal/internal/log"
	"venuecal/internal/metrics"
	"venuecal/internal/view"
)

const version = "0.3.0"

func main() {
	cmd := &cli.Command{
		Name:    "venuecal",
		Usage:   "Weekly and upcoming-events calendar pages for venues, built from their iCalendar feeds",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config.yaml",
				Sources: cli.EnvVars("VENUECAL_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			mirrorCommand(),
			weekCommand(),
			agendaCommand(),
			captureCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		appLog.Error("venuecal failed", err)
		os.Exit(1)
	}
}

// loadConfig reads the root --config file and applies the log level.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	level := cfg.LogLevel
	if override := cmd.String("log-level"); override != "" {
		level = override
	}
	appLog.SetLevel(appLog.ParseLevel(level))
	return cfg, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTML views, JSON API and metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "HTTP listen address (overrides config if set)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if listen := cmd.String("listen"); listen != "" {
				cfg.Listen = listen
			}
			appLog.Info("venuecal starting", "version", version)
			return app.Run(ctx, app.WithConfig(cfg), app.WithMetrics(metrics.New()))
		},
	}
}

func mirrorCommand() *cli.Command {
	return &cli.Command{
		Name:  "mirror",
		Usage: "Download every venue feed into the feeds directory and point the registry at the copies",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			mir, err := app.NewMirror(cfg, nil)
			if err != nil {
				return err
			}
			_, report, err := app.RunMirror(ctx, cfg, mir)
			if err != nil {
				return err
			}
			if len(report.Updated) == 0 {
				fmt.Println("No calendars were updated.")
			} else {
				fmt.Printf("Updated calendars for: %s\n", strings.Join(report.Updated, ", "))
			}
			if len(report.Failed) > 0 {
				fmt.Printf("Failed: %s\n", strings.Join(report.Failed, ", "))
			}
			return nil
		},
	}
}

func venueFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "venue",
			Aliases: []string{"pub"},
			Usage:   "Venue id (defaults to default_venue)",
		},
		&cli.StringFlag{
			Name:  "at",
			Usage: "Render as of this time (RFC 3339 or YYYY-MM-DD) instead of now",
		},
	}
}

// renderClock resolves --venue and --at for the terminal commands.
func renderClock(cmd *cli.Command, cfg *config.Config) (string, clock.Clock, error) {
	venue := cmd.String("venue")
	if venue == "" {
		venue = cfg.DefaultVenue
	}
	loc := cfg.Location()
	at := cmd.String("at")
	if at == "" {
		return venue, clock.NewSystem(loc), nil
	}
	t, err := parseAt(at, loc)
	if err != nil {
		return "", nil, err
	}
	return venue, clock.NewFixed(t), nil
}

func parseAt(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("--at must be RFC 3339 or YYYY-MM-DD")
}

func weekCommand() *cli.Command {
	return &cli.Command{
		Name:  "week",
		Usage: "Print the current week for a venue",
		Flags: venueFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			id, clk, err := renderClock(cmd, cfg)
			if err != nil {
				return err
			}
			svc, err := app.NewService(cfg, nil)
			if err != nil {
				return err
			}
			feed, week, err := svc.Week(ctx, id, clk.Now())
			if err != nil {
				return err
			}
			appLog.Debug("feed loaded", "summary", feed.SummaryLine())
			return view.WriteWeek(os.Stdout, feed.Venue.Name, week)
		},
	}
}

func agendaCommand() *cli.Command {
	return &cli.Command{
		Name:  "agenda",
		Usage: "Print upcoming events for a venue",
		Flags: venueFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			id, clk, err := renderClock(cmd, cfg)
			if err != nil {
				return err
			}
			svc, err := app.NewService(cfg, nil)
			if err != nil {
				return err
			}
			feed, agenda, err := svc.Agenda(ctx, id, clk.Now())
			if err != nil {
				return err
			}
			appLog.Debug("feed loaded", "summary", feed.SummaryLine())
			return view.WriteAgenda(os.Stdout, feed.Venue.Name, agenda)
		},
	}
}

func captureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Screenshot a venue view from a running server to PNG",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "venue", Aliases: []string{"pub"}, Usage: "Venue id (defaults to default_venue)"},
			&cli.StringFlag{Name: "view", Value: "week", Usage: "week or agenda"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "view.png", Usage: "Output PNG path"},
			&cli.StringFlag{Name: "url", Usage: "Server base URL (defaults to http://<listen>)"},
			&cli.IntFlag{Name: "width", Usage: "Viewport width in pixels"},
			&cli.IntFlag{Name: "height", Usage: "Viewport height in pixels"},
			&cli.DurationFlag{Name: "timeout", Value: capture.DefaultTimeoutSec * time.Second, Usage: "Overall capture timeout"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			venue := cmd.String("venue")
			if venue == "" {
				venue = cfg.DefaultVenue
			}
			base := cmd.String("url")
			if base == "" {
				base = "http://" + cfg.Listen
			}
			opts := capture.Options{
				BaseURL:    base,
				Venue:      venue,
				View:       cmd.String("view"),
				OutputPath: cmd.String("out"),
				Width:      int(cmd.Int("width")),
				Height:     int(cmd.Int("height")),
				Timeout:    cmd.Duration("timeout"),
			}
			if cfg.BasicAuth != nil {
				opts.Username = cfg.BasicAuth.Username
				opts.Password = cfg.BasicAuth.Password
			}
			return capture.CaptureViewPNG(ctx, opts)
		},
	}
}
