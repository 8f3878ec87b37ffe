package appium

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/databank"
)

var errStillWaiting = errors.New("condition not met yet")

func (d *Driver) perform(ctx context.Context, e core.Event, rec core.TransitionRecorder, confirm *bool) error {
	switch e.Kind {
	case core.KindEmpty:
		return nil
	case core.KindSys:
		return d.performSys(ctx, e.Action)
	}

	d.hideKeyboard(ctx)
	if e.Action.IsWait() {
		return d.performWait(ctx, e.Action)
	}

	id, err := d.locate(ctx, e.Widget)
	if err != nil {
		return err
	}

	transition := rec != nil && (e.Action.Verb == core.VerbClick || e.Action.Verb == core.VerbLongPress)
	var from string
	if transition {
		if from, err = d.screenKey(ctx); err != nil {
			return err
		}
	}

	switch {
	case e.Action.Verb == core.VerbClick:
		err = d.client.Click(ctx, id)
	case e.Action.Verb == core.VerbLongPress:
		err = d.client.LongPressElement(ctx, id, longPressMs)
	case e.Action.Verb == core.VerbSwipeRight:
		err = d.swipeRight(ctx, id)
	case e.Action.IsSendKeys():
		err = d.sendKeys(ctx, id, e.Action, confirm)
	default:
		return core.ErrUnknownAction.WithDetails(map[string]interface{}{"verb": e.Action.Verb})
	}
	if err != nil {
		return err
	}

	if transition {
		to, err := d.screenKey(ctx)
		if err != nil {
			return err
		}
		rec.AddEdge(from, to, e)
	}
	return nil
}

// Device-level events

func (d *Driver) performSys(ctx context.Context, a core.Action) error {
	switch a.Verb {
	case core.VerbSleep:
		return d.sleep(ctx, a.SleepDuration())
	case core.VerbKeyBack:
		return d.client.PressKeyCode(ctx, KeyCodeBack)
	case core.VerbRestartApp:
		return d.client.ActivateApp(ctx, d.opts.Package)
	default:
		return core.ErrUnknownAction.WithDetails(map[string]interface{}{"verb": a.Verb})
	}
}

// Widget actions

func (d *Driver) sendKeys(ctx context.Context, id string, a core.Action, confirm *bool) error {
	value := a.InputText()
	if databank.IsEmail(value) && value != d.bank.LoginEmail {
		value = d.bank.ReplaceInput(value, *confirm)
		*confirm = true
	}

	if a.ClearsFirst() {
		if err := d.client.Clear(ctx, id); err != nil {
			return err
		}
	}
	if err := d.client.SetValue(ctx, id, value); err != nil {
		return err
	}

	switch {
	case a.HidesKeyboard():
		if err := d.client.Click(ctx, id); err != nil {
			return err
		}
		if err := d.sleep(ctx, d.opts.ActionInterval/2); err != nil {
			return err
		}
		d.hideKeyboard(ctx)
	case a.PressesEnter():
		return d.client.PressKeyCode(ctx, KeyCodeEnter)
	}
	return nil
}

func (d *Driver) swipeRight(ctx context.Context, id string) error {
	rect, err := d.client.Rect(ctx, id)
	if err != nil {
		return err
	}
	sx, sy, ex, ey := rect.SwipeRight()
	return d.client.Swipe(ctx, sx, sy, ex, ey, swipeMs)
}

// Waits

func (d *Driver) performWait(ctx context.Context, a core.Action) error {
	strategy, value, err := waitLocator(a)
	if err != nil {
		return err
	}
	var present bool
	switch {
	case strings.HasSuffix(a.Verb, "presence"):
		present = true
	case strings.HasSuffix(a.Verb, "invisible"):
		present = false
	default:
		return core.ErrUnknownAction.WithDetails(map[string]interface{}{"verb": a.Verb})
	}
	return d.waitFor(ctx, a.WaitTimeout(), strategy, value, present)
}

// waitLocator maps the selector of a wait action to a WebDriver locator.
// Text selectors match any element containing the text.
func waitLocator(a core.Action) (strategy, value string, err error) {
	sel := a.Selector()
	switch a.SelectorType() {
	case core.SelectorXPath:
		return ByXPath, sel, nil
	case core.SelectorContentDesc:
		return ByAccessibilityID, sel, nil
	case core.SelectorID:
		return ByID, sel, nil
	case core.SelectorText:
		return ByXPath, containsTextXPath(sel), nil
	default:
		return "", "", core.ErrNoLocator.WithDetails(map[string]interface{}{"selector_type": a.SelectorType()})
	}
}

// waitFor polls until an element matching the locator is present, or gone,
// and fails with core.ErrWaitTimeout once timeout has elapsed.
func (d *Driver) waitFor(ctx context.Context, timeout time.Duration, strategy, value string, present bool) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ids, err := d.client.FindElements(ctx, strategy, value)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if (len(ids) > 0) != present {
			return struct{}{}, errStillWaiting
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(d.opts.PollInterval)), backoff.WithMaxElapsedTime(timeout))

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, errStillWaiting):
		return core.ErrWaitTimeout.WithDetails(map[string]interface{}{
			strategy:  value,
			"present": present,
			"timeout": timeout.String(),
		})
	default:
		return err
	}
}

func isWaitTimeout(err error) bool {
	return errors.Is(err, core.ErrWaitTimeout)
}

func (d *Driver) screenKey(ctx context.Context) (string, error) {
	pkg, err := d.client.CurrentPackage(ctx)
	if err != nil {
		return "", err
	}
	act, err := d.client.CurrentActivity(ctx)
	if err != nil {
		return "", err
	}
	return pkg + act, nil
}
