package migrate

import (
	"context"
	"fmt"

	"github.com/seal-hub/CraftDroid/pkg/atg"
	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/databank"
	"github.com/seal-hub/CraftDroid/pkg/widget"
)

// checkReachability tries to drive the app from the current screen to a
// candidate widget. On success the returned event names the widget as
// found on the device and carries the stepping events that reached it.
func (s *Search) checkReachability(ctx context.Context, cand core.Widget, cur core.Screen) (core.Event, bool, error) {
	var paths []atg.Path
	if cand.Activity == cur.Activity {
		paths = append(paths, atg.Path{})
	}
	paths = append(paths, s.graph.PathsBetweenActivities(cur.Key(), cand.Screen(), s.round.hostileOK)...)
	s.log.Debugw("Candidate paths", "from", cur.Key(), "to", cand.Screen(), "paths", len(paths))

	var invalid []atg.Path
	for _, p := range paths {
		if hasInvalidPrefix(p, invalid) {
			continue
		}
		ev, ok, err := s.validatePath(ctx, p, cand, &invalid)
		if err != nil {
			return core.Event{}, false, err
		}
		if ok {
			return ev, true, nil
		}
	}
	return core.Event{}, false, nil
}

func hasInvalidPrefix(p atg.Path, invalid []atg.Path) bool {
	for _, q := range invalid {
		if p.HasPrefix(q) {
			return true
		}
	}
	return false
}

// validatePath replays the target sequence, follows the GUI events of a
// path and looks for the candidate on the screen it ends on. A hop whose
// widget is not on screen invalidates every path sharing the prefix.
func (s *Search) validatePath(ctx context.Context, p atg.Path, cand core.Widget, invalid *[]atg.Path) (core.Event, bool, error) {
	src := s.cfg.Source[s.round.index]
	if err := s.act.Perform(ctx, s.events, core.PerformOptions{Reset: true, Recorder: s.graph}); err != nil {
		return core.Event{}, false, fmt.Errorf("replay before path: %w", err)
	}
	screen, err := core.ReadScreen(ctx, s.act)
	if err != nil {
		return core.Event{}, false, err
	}

	var stepping []core.Event
	for i, hop := range p {
		if !atg.IsEvent(hop) {
			continue
		}
		criteria, ok := s.hopCriteria(hop)
		if !ok {
			*invalid = append(*invalid, p[:i+1])
			return core.Event{}, false, nil
		}
		root, err := widget.ParseHierarchy(screen.Source)
		if err != nil {
			return core.Event{}, false, err
		}
		w, found := widget.Locate(root, criteria)
		if !found {
			s.log.Debugw("Stepping widget not on screen", "hop", hop)
			*invalid = append(*invalid, p[:i+1])
			return core.Event{}, false, nil
		}
		h, _ := atg.ParseHop(hop)
		step := core.Event{Widget: w, Action: core.NewAction(h.Verb()), Kind: core.KindStepping}
		step.Package, step.Activity = screen.Package, screen.Activity

		if err := s.act.Perform(ctx, []core.Event{step}, core.PerformOptions{Recorder: s.graph}); err != nil {
			if ctx.Err() != nil {
				return core.Event{}, false, ctx.Err()
			}
			s.log.Debugw("Stepping event failed", "hop", hop, "error", err)
			*invalid = append(*invalid, p[:i+1])
			return core.Event{}, false, nil
		}
		stepping = append(stepping, step)
		if screen, err = core.ReadScreen(ctx, s.act); err != nil {
			return core.Event{}, false, err
		}
		s.observe(screen)
	}

	root, err := widget.ParseHierarchy(screen.Source)
	if err != nil {
		return core.Event{}, false, err
	}
	w, found := widget.Locate(root, s.targetCriteria(cand, src))
	if !found {
		return core.Event{}, false, nil
	}
	ev := core.Event{Widget: w, Kind: src.Kind, Stepping: stepping}
	ev.Package, ev.Activity = screen.Package, screen.Activity
	ev.Score, _ = s.scorer.WeightedSim(ctx, ev.Widget, src.Widget)

	switch src.Action.Verb {
	case core.VerbWaitTextInvisible:
		ev.Widget = blankWidget(ev.Widget)
	case core.VerbWaitTextPresence:
		if nb, ok := widget.NearestButton(root); ok {
			nb.Package, nb.Activity = screen.Package, screen.Activity
			nearest := core.Event{Widget: nb, Action: core.NewAction(core.VerbClick), Kind: core.KindOracle}
			s.nearest = &nearest
		}
	}
	return ev, true, nil
}

// hopCriteria returns the attributes that find the widget of a hop on
// screen: the recorded features of a dynamic hop, or the resource name of
// the static widget id.
func (s *Search) hopCriteria(hop string) (map[string]string, bool) {
	h, ok := atg.ParseHop(hop)
	if !ok {
		return nil, false
	}
	if h.Dynamic() {
		return h.Criteria, true
	}
	name, ok := s.res.WidgetName(h.OID)
	if !ok {
		return nil, false
	}
	return map[string]string{core.AttrResourceID: name}, true
}

// targetCriteria returns the attributes that find the candidate on screen.
// A text presence oracle looks for the text it waits for; a confirmation
// field typed with a generated e-mail looks for that e-mail.
func (s *Search) targetCriteria(cand core.Widget, src core.Event) map[string]string {
	criteria := map[string]string{
		core.AttrClass:       cand.Class,
		core.AttrResourceID:  cand.ResourceID,
		core.AttrText:        cand.Text,
		core.AttrContentDesc: cand.ContentDesc,
		core.AttrNAF:         cand.NAF,
	}
	if src.Action.Verb == core.VerbWaitTextPresence {
		criteria[core.AttrText] = src.Action.Selector()
	}
	if i := s.round.index; i > 0 && s.cfg.Policy.SameInput(s.cfg.Source[i-1], src) && databank.IsEmail(src.Action.InputText()) {
		criteria[core.AttrText] = s.bank.TempEmail(false)
	}
	return criteria
}
