package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	appLog "venuecal/internal/log"
)

// Default viewports per layout. The agenda is a narrow sidebar.
const (
	DefaultWeekWidth    = 1280
	DefaultWeekHeight   = 800
	DefaultAgendaWidth  = 480
	DefaultAgendaHeight = 1080
	DefaultTimeoutSec   = 30

	readySelector = `[data-ready="true"]`
)

// Options defines parameters for a Chromium-based screenshot of a venue
// view.
type Options struct {
	// BaseURL is the running server, e.g. "http://127.0.0.1:8080".
	BaseURL string

	Venue string

	// View is "week" or "agenda".
	View string

	// OutputPath is where the PNG screenshot is written.
	OutputPath string

	// Width and Height are the viewport in pixels. Zero picks the view's
	// default.
	Width  int
	Height int

	// Timeout bounds the entire capture. Zero uses DefaultTimeoutSec.
	Timeout time.Duration

	// Username and Password are sent when the server has basic auth
	// enabled.
	Username string
	Password string
}

// PageURL returns the address of the HTML view to capture.
func (o Options) PageURL() (string, error) {
	if o.BaseURL == "" {
		return "", errors.New("capture: base URL is required")
	}
	if o.Venue == "" {
		return "", errors.New("capture: venue is required")
	}
	switch o.View {
	case "week", "agenda":
	default:
		return "", fmt.Errorf("capture: unknown view %q", o.View)
	}
	base, err := url.Parse(strings.TrimRight(o.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("capture: invalid base URL: %w", err)
	}
	if o.Username != "" {
		base.User = url.UserPassword(o.Username, o.Password)
	}
	return base.JoinPath("venues", o.Venue, o.View).String(), nil
}

func (o *Options) applyDefaults() {
	if o.Width <= 0 || o.Height <= 0 {
		if o.View == "agenda" {
			o.Width, o.Height = DefaultAgendaWidth, DefaultAgendaHeight
		} else {
			o.Width, o.Height = DefaultWeekWidth, DefaultWeekHeight
		}
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
}

// CaptureViewPNG launches a headless Chromium instance via chromedp,
// navigates to the venue view, waits for the page root to carry
// data-ready="true" and writes a full-page PNG screenshot.
func CaptureViewPNG(parentCtx context.Context, opts Options) error {
	target, err := opts.PageURL()
	if err != nil {
		return err
	}
	if opts.OutputPath == "" {
		return errors.New("capture: output path is required")
	}
	opts.applyDefaults()

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	appLog.Info("capturing view", "venue", opts.Venue, "view", opts.View, "width", opts.Width, "height", opts.Height)

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		// Let web fonts and the logo finish painting.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("view captured", "path", opts.OutputPath, "bytes", len(png))
	return nil
}
