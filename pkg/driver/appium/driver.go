package appium

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/databank"
	"github.com/seal-hub/CraftDroid/pkg/logger"
)

// Defaults for Options.
const (
	DefaultActionInterval = 2 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
	longPressMs           = 1000
	swipeMs               = 500
)

// Options configures the actuator.
type Options struct {
	Package  string
	Activity string

	// ResetData clears app data on every reset. Otherwise a reset only
	// brings the app back to the foreground.
	ResetData bool

	// ActionInterval is the pause before each event. Perform waits one more
	// interval when done, two with RequireWait.
	ActionInterval time.Duration

	// PollInterval is how often wait actions re-check the screen.
	PollInterval time.Duration
}

// DataCleaner wipes an app's data, e.g. with adb shell pm clear.
type DataCleaner interface {
	ClearData(ctx context.Context, pkg string) error
}

// Driver implements core.Actuator using Appium server.
type Driver struct {
	client  *Client
	opts    Options
	cleaner DataCleaner
	bank    *databank.Databank
	log     *zap.SugaredLogger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New wraps a connected client. A nil cleaner clears data through the
// server; a nil bank uses the default values.
func New(client *Client, opts Options, cleaner DataCleaner, bank *databank.Databank) *Driver {
	if opts.ActionInterval < 0 {
		opts.ActionInterval = 0
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if bank == nil {
		bank = databank.New()
	}
	return &Driver{
		client:  client,
		opts:    opts,
		cleaner: cleaner,
		bank:    bank,
		log:     logger.Named("appium"),
		sleep:   sleepCtx,
	}
}

// Dial opens a session on the server and returns a driver for it.
func Dial(ctx context.Context, serverURL string, capabilities map[string]interface{}, opts Options, cleaner DataCleaner, bank *databank.Databank) (*Driver, error) {
	client := NewClient(serverURL)
	if err := client.Connect(ctx, capabilities); err != nil {
		return nil, err
	}
	d := New(client, opts, cleaner, bank)
	d.log.Infow("session created", "server", serverURL, "session", client.SessionID(), "package", opts.Package)
	return d, nil
}

// Capabilities returns the session capabilities for an Android app.
func Capabilities(opts Options, udid string, newCommandTimeout time.Duration) map[string]interface{} {
	caps := map[string]interface{}{
		"platformName":                "Android",
		"appium:automationName":       "UiAutomator2",
		"appium:appPackage":           opts.Package,
		"appium:appActivity":          opts.Activity,
		"appium:noReset":              !opts.ResetData,
		"appium:autoGrantPermissions": true,
	}
	if udid != "" {
		caps["appium:udid"] = udid
	}
	if newCommandTimeout > 0 {
		caps["appium:newCommandTimeout"] = int(newCommandTimeout.Seconds())
	}
	return caps
}

// Close disconnects from Appium server.
func (d *Driver) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// Client returns the underlying HTTP client.
func (d *Driver) Client() *Client {
	return d.client
}

// Perform implements core.Actuator.
func (d *Driver) Perform(ctx context.Context, events []core.Event, opts core.PerformOptions) error {
	if opts.Reset {
		if err := d.reset(ctx); err != nil {
			return err
		}
	}

	// The first temporary e-mail of a replay is fresh; later ones confirm it.
	confirm := false
	for i, e := range events {
		if err := d.sleep(ctx, d.opts.ActionInterval); err != nil {
			return err
		}
		if err := d.perform(ctx, e, opts.Recorder, &confirm); err != nil {
			d.log.Debugw("event failed", "index", i, "event", e.Signature(), "action", e.Action.String(), "error", err)
			return fmt.Errorf("event %d (%s): %w", i, e.Action.Verb, err)
		}
	}

	settle := d.opts.ActionInterval
	if opts.RequireWait {
		settle *= 2
	}
	return d.sleep(ctx, settle)
}

// PageSource implements core.Actuator. The keyboard is hidden first so it
// does not cover the hierarchy.
func (d *Driver) PageSource(ctx context.Context) (string, error) {
	d.hideKeyboard(ctx)
	return d.client.Source(ctx)
}

// CurrentActivity implements core.Actuator.
func (d *Driver) CurrentActivity(ctx context.Context) (string, error) {
	return d.client.CurrentActivity(ctx)
}

// CurrentPackage implements core.Actuator.
func (d *Driver) CurrentPackage(ctx context.Context) (string, error) {
	return d.client.CurrentPackage(ctx)
}

// CheckTextInvisible implements core.Actuator.
func (d *Driver) CheckTextInvisible(ctx context.Context, e core.Event) (bool, error) {
	err := d.waitFor(ctx, e.Action.WaitTimeout(), ByXPath, containsTextXPath(e.Action.Selector()), false)
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case isWaitTimeout(err):
		return false, nil
	default:
		return false, err
	}
}

// reset relaunches the target app, wiping its data when configured to.
func (d *Driver) reset(ctx context.Context) error {
	if !d.opts.ResetData {
		return d.client.ActivateApp(ctx, d.opts.Package)
	}
	if err := d.client.TerminateApp(ctx, d.opts.Package); err != nil {
		return fmt.Errorf("terminate %s: %w", d.opts.Package, err)
	}
	var err error
	if d.cleaner != nil {
		err = d.cleaner.ClearData(ctx, d.opts.Package)
	} else {
		err = d.client.ClearAppData(ctx, d.opts.Package)
	}
	if err != nil {
		return fmt.Errorf("clear %s: %w", d.opts.Package, err)
	}
	return d.client.ActivateApp(ctx, d.opts.Package)
}

// hideKeyboard dismisses the soft keyboard if it is up. Failures are
// ignored; some keyboards refuse to hide.
func (d *Driver) hideKeyboard(ctx context.Context) {
	shown, err := d.client.IsKeyboardShown(ctx)
	if err != nil || !shown {
		return
	}
	if err := d.client.HideKeyboard(ctx); err != nil {
		d.log.Debugw("hide keyboard", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
