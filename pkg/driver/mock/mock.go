// Package mock provides a scripted app for testing without a real device.
package mock

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/widget"
)

// Screen is one state of the scripted app.
type Screen struct {
	Activity string
	// Source is the UI hierarchy XML reported while the screen is shown.
	Source string
}

// Transition moves the app to another screen when a widget is clicked or
// long pressed. Target is matched like a recorded event: by resource id,
// then content-desc, then text.
type Transition struct {
	From   string
	Target core.Widget
	Verb   string // empty means click
	To     string
}

// Config configures the scripted app.
type Config struct {
	Package     string
	Launch      string
	Screens     []Screen
	Transitions []Transition

	// FailOn, if set, is consulted before every widget action. A non-nil
	// error is returned from Perform.
	FailOn func(e core.Event) error
}

// App is a mock implementation of core.Actuator.
type App struct {
	Config Config

	mu      sync.Mutex
	screens map[string]Screen
	current string
	back    []string
	typed   map[string]string

	// Counters for assertions.
	resets    int
	performed []core.Event
}

// New creates a scripted app showing its launch screen.
func New(cfg Config) *App {
	a := &App{
		Config:  cfg,
		screens: make(map[string]Screen, len(cfg.Screens)),
		current: cfg.Launch,
		typed:   make(map[string]string),
	}
	for _, s := range cfg.Screens {
		a.screens[s.Activity] = s
	}
	return a
}

// Perform executes events against the scripted screens.
func (a *App) Perform(ctx context.Context, events []core.Event, opts core.PerformOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if opts.Reset {
		a.current = a.Config.Launch
		a.back = nil
		a.typed = make(map[string]string)
		a.resets++
	}
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.perform(e, opts.Recorder); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) perform(e core.Event, rec core.TransitionRecorder) error {
	switch e.Kind {
	case core.KindEmpty:
		return nil
	case core.KindSys:
		a.performed = append(a.performed, e)
		switch e.Action.Verb {
		case core.VerbKeyBack:
			if n := len(a.back); n > 0 {
				a.current, a.back = a.back[n-1], a.back[:n-1]
			}
		case core.VerbRestartApp:
			a.current, a.back = a.Config.Launch, nil
		case core.VerbSleep:
		default:
			return core.ErrUnknownAction.WithDetails(map[string]interface{}{"verb": e.Action.Verb})
		}
		return nil
	}

	if e.Action.IsWait() {
		a.performed = append(a.performed, e)
		present := a.selectorPresent(e.Action)
		if strings.HasSuffix(e.Action.Verb, "presence") != present {
			return core.ErrWaitTimeout.WithDetails(map[string]interface{}{"action": e.Action.String()})
		}
		return nil
	}

	if a.Config.FailOn != nil {
		if err := a.Config.FailOn(e); err != nil {
			return err
		}
	}
	if _, ok := a.find(e.Widget); !ok {
		return core.ErrElementNotFound.WithDetails(map[string]interface{}{"widget": e.Signature()})
	}
	a.performed = append(a.performed, e)

	switch {
	case e.Action.Verb == core.VerbClick || e.Action.Verb == core.VerbLongPress:
		from := a.screenKey()
		a.follow(e)
		if rec != nil {
			rec.AddEdge(from, a.screenKey(), e)
		}
	case e.Action.IsSendKeys():
		a.typed[e.QualifiedID()] = e.Action.InputText()
	case e.Action.IsSwipe():
	default:
		return core.ErrUnknownAction.WithDetails(map[string]interface{}{"verb": e.Action.Verb})
	}
	return nil
}

func (a *App) follow(e core.Event) {
	for _, t := range a.Config.Transitions {
		verb := t.Verb
		if verb == "" {
			verb = core.VerbClick
		}
		if t.From != a.current || verb != e.Action.Verb || !sameTarget(t.Target, e.Widget) {
			continue
		}
		if t.To != a.current {
			a.back = append(a.back, a.current)
			a.current = t.To
		}
		return
	}
}

func sameTarget(t, w core.Widget) bool {
	switch {
	case t.ResourceID != "":
		return strings.HasSuffix(w.QualifiedID(), t.ResourceID)
	case t.ContentDesc != "":
		return t.ContentDesc == w.ContentDesc
	default:
		return t.Text != "" && t.Text == w.Text
	}
}

// find locates a widget the way the Appium actuator does: resource id
// first, then content-desc, text and finally the naf flag.
func (a *App) find(w core.Widget) (core.Widget, bool) {
	root, err := widget.ParseHierarchy(a.source())
	if err != nil {
		return core.Widget{}, false
	}
	var criteria map[string]string
	switch {
	case w.ResourceID != "":
		criteria = map[string]string{core.AttrResourceID: regexp.QuoteMeta(w.QualifiedID())}
	case w.ContentDesc != "":
		criteria = map[string]string{core.AttrClass: regexp.QuoteMeta(w.Class), core.AttrContentDesc: "^" + regexp.QuoteMeta(w.ContentDesc) + "$"}
	case w.Text != "":
		criteria = map[string]string{core.AttrClass: regexp.QuoteMeta(w.Class), core.AttrText: "^" + regexp.QuoteMeta(w.Text) + "$"}
	case w.IsNAF():
		criteria = map[string]string{core.AttrClass: regexp.QuoteMeta(w.Class), core.AttrNAF: "true"}
	default:
		return core.Widget{}, false
	}
	return widget.Locate(root, criteria)
}

var (
	xpathAttr     = regexp.MustCompile(`@(text|content-desc|resource-id)=["']([^"']*)["']`)
	xpathContains = regexp.MustCompile(`contains\(@text,\s*["']([^"']*)["']\)`)
)

// selectorPresent evaluates the selector of a wait action on the current
// screen. Only the xpath forms found in recorded scenarios are understood.
func (a *App) selectorPresent(act core.Action) bool {
	root, err := widget.ParseHierarchy(a.source())
	if err != nil {
		return false
	}
	sel := act.Selector()
	criteria := map[string]string{}
	switch act.SelectorType() {
	case core.SelectorID:
		criteria[core.AttrResourceID] = regexp.QuoteMeta(sel)
	case core.SelectorContentDesc:
		criteria[core.AttrContentDesc] = "^" + regexp.QuoteMeta(sel) + "$"
	case core.SelectorText:
		criteria[core.AttrText] = regexp.QuoteMeta(sel)
	case core.SelectorXPath:
		for _, m := range xpathAttr.FindAllStringSubmatch(sel, -1) {
			criteria[m[1]] = "^" + regexp.QuoteMeta(m[2]) + "$"
		}
		if m := xpathContains.FindStringSubmatch(sel); m != nil {
			criteria[core.AttrText] = regexp.QuoteMeta(m[1])
		}
		if class := xpathClass(sel); class != "" && class != "*" {
			criteria[core.AttrClass] = "^" + regexp.QuoteMeta(class) + "$"
		}
	}
	_, ok := widget.Locate(root, criteria)
	return ok
}

func xpathClass(sel string) string {
	s := strings.TrimLeft(sel, "/")
	if i := strings.IndexAny(s, "[/"); i >= 0 {
		s = s[:i]
	}
	return s
}

var (
	nodeTag  = regexp.MustCompile(`<node\b[^>]*>`)
	ridAttr  = regexp.MustCompile(`\sresource-id="([^"]*)"`)
	textAttr = regexp.MustCompile(`\stext="[^"]*"`)
)

// source returns the current screen with typed text shown in its fields.
// The caller holds a.mu.
func (a *App) source() string {
	src := a.screens[a.current].Source
	if len(a.typed) == 0 {
		return src
	}
	return nodeTag.ReplaceAllStringFunc(src, func(tag string) string {
		m := ridAttr.FindStringSubmatch(tag)
		if m == nil || m[1] == "" {
			return tag
		}
		v, ok := a.typed[m[1]]
		if !ok {
			return tag
		}
		repl := ` text="` + html.EscapeString(v) + `"`
		return textAttr.ReplaceAllLiteralString(tag, repl)
	})
}

func (a *App) screenKey() string {
	return a.Config.Package + a.current
}

// PageSource returns the hierarchy of the current screen, with the text
// typed so far shown in its fields.
func (a *App) PageSource(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.screens[a.current]; !ok {
		return "", fmt.Errorf("mock: no screen for activity %q", a.current)
	}
	return a.source(), nil
}

// CurrentActivity returns the activity of the current screen.
func (a *App) CurrentActivity(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, nil
}

// CurrentPackage returns the app package.
func (a *App) CurrentPackage(ctx context.Context) (string, error) {
	return a.Config.Package, nil
}

// CheckTextInvisible reports whether no element on the current screen
// contains the text of the wait action.
func (a *App) CheckTextInvisible(ctx context.Context, e core.Event) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.selectorPresent(core.NewAction(core.VerbWaitTextPresence, 0, core.SelectorText, e.Action.Selector())), nil
}

// Resets returns how often the app was relaunched.
func (a *App) Resets() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resets
}

// Performed returns the events executed so far, empty events excluded.
func (a *App) Performed() []core.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.Event(nil), a.performed...)
}

// Typed returns the text typed into a field, by qualified resource id.
func (a *App) Typed(rid string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.typed[rid]
}

var _ core.Actuator = (*App)(nil)
