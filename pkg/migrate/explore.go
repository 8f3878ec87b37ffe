package migrate

import (
	"context"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// replay relaunches the app, performs the target sequence and reads the
// screen it ends on.
func (s *Search) replay(ctx context.Context, requireWait bool) (core.Screen, error) {
	opts := core.PerformOptions{Reset: true, RequireWait: requireWait, Recorder: s.graph}
	if err := s.act.Perform(ctx, s.events, opts); err != nil {
		return core.Screen{}, err
	}
	return core.ReadScreen(ctx, s.act)
}

// observe adds the widgets of a screen to the catalogue. The screen is
// always extracted again: typed text and updated labels keep the layout
// the cache is keyed on.
func (s *Search) observe(screen core.Screen) {
	widgets, err := s.cache.FindAll(screen, s.cfg.TargetPackage, true)
	if err != nil {
		s.log.Warnw("Could not read screen widgets", "activity", screen.Activity, "error", err)
		return
	}
	superseded, purged := s.catalogue.Observe(widgets, s.bank.CurrentTempEmail())
	if superseded > 0 || purged > 0 {
		s.log.Debugw("Catalogue updated", "activity", screen.Activity,
			"superseded", superseded, "purged", purged, "size", s.catalogue.Len())
	}
}

// explore replays prefix and clicks, one at a time, every button on the
// screen it leads to, learning the screens and transitions behind them.
// Buttons that fail to click are skipped.
func (s *Search) explore(ctx context.Context, prefix []core.Event) error {
	explorationsTotal.Inc()
	if err := s.act.Perform(ctx, prefix, core.PerformOptions{Reset: true, Recorder: s.graph}); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warnw("Could not replay events before exploring", "error", err)
		return nil
	}
	screen, err := core.ReadScreen(ctx, s.act)
	if err != nil {
		return err
	}
	s.observe(screen)
	widgets, err := s.cache.FindAll(screen, s.cfg.TargetPackage, false)
	if err != nil {
		s.log.Warnw("Could not read screen widgets", "error", err)
		return nil
	}

	buttons := explorable(widgets)
	s.log.Infow("Exploring", "activity", screen.Activity, "buttons", len(buttons))
	for _, b := range buttons {
		if err := ctx.Err(); err != nil {
			return err
		}
		click := core.Event{Widget: b, Action: core.NewAction(core.VerbClick), Kind: core.KindStepping}
		if err := s.act.Perform(ctx, prefix, core.PerformOptions{Reset: true, Recorder: s.graph}); err != nil {
			continue
		}
		if err := s.act.Perform(ctx, []core.Event{click}, core.PerformOptions{Recorder: s.graph}); err != nil {
			s.log.Debugw("Exploration click failed", "resource_id", b.ResourceID, "text", b.Text, "error", err)
			continue
		}
		after, err := core.ReadScreen(ctx, s.act)
		if err != nil {
			return err
		}
		s.observe(after)
	}
	return nil
}

var buttonClasses = []string{core.ClassButton, core.ClassImageButton, core.ClassTextView}

// explorable returns the clickable buttons and labels that can be told
// apart by some attribute.
func explorable(widgets []core.Widget) []core.Widget {
	var out []core.Widget
	for _, w := range widgets {
		if !isOneOf(w.Class, buttonClasses) || !w.IsClickable() {
			continue
		}
		if w.ResourceID == "" && w.Text == "" && w.ContentDesc == "" && w.NAF == "" {
			continue
		}
		out = append(out, w)
	}
	return out
}
