// Package capture screenshots the kiosk page with headless Chromium so the
// day's events can be printed as a check-in poster.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "eventpoints/internal/log"
)

// Letter portrait at 96 dpi.
const (
	DefaultWidth   = 816
	DefaultHeight  = 1056
	DefaultTimeout = 30 * time.Second

	// ReadySelector matches the kiosk body once it has rendered.
	ReadySelector = `[data-ready="true"]`
)

// Options defines a kiosk capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/kiosk".
	URL string

	// OutputPath is where the PNG is written.
	OutputPath string

	// Viewport in CSS pixels; zero means the defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture; zero means DefaultTimeout.
	Timeout time.Duration
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if o.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// KioskPNG navigates headless Chromium to opts.URL, waits for
// ReadySelector and writes a full-page PNG to opts.OutputPath.
func KioskPNG(parentCtx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Let web fonts finish painting.
		chromedp.Sleep(250 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	appLog.Info("kiosk captured", "url", opts.URL, "path", opts.OutputPath,
		"bytes", len(png), "duration_ms", time.Since(start).Milliseconds())
	return nil
}
