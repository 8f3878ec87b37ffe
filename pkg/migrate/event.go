package migrate

import (
	"strings"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// xpath predicates rewritten to the matched widget, in priority order.
const (
	predContentDesc  = "@content-desc="
	predText         = "@text="
	predContainsText = "contains(@text,"
)

// generateEvent turns a validated widget into the target event for a
// source action. A wait_until_element_presence selector is rewritten to
// name the target widget.
func generateEvent(w core.Event, a core.Action) core.Event {
	a = a.Clone()
	if a.Verb == core.VerbWaitElementPresence {
		sel := a.Selector()
		switch {
		case a.SelectorType() == core.SelectorXPath && strings.Contains(sel, predContentDesc):
			a.SetArg(2, rewritePredicate(sel, predContentDesc, predContentDesc+quote(w.ContentDesc)))
		case a.SelectorType() == core.SelectorXPath && strings.Contains(sel, predText):
			a.SetArg(2, rewritePredicate(sel, predText, predText+quote(w.Text)))
		case a.SelectorType() == core.SelectorXPath && strings.Contains(sel, predContainsText):
			a.SetArg(2, rewritePredicate(sel, predContainsText, predContainsText+" "+quote(w.Text)))
		case a.SelectorType() == core.SelectorID:
			a.SetArg(2, w.QualifiedID())
		}
	}
	w.Action = a
	return w
}

// rewritePredicate replaces the quoted value following pred with value,
// e.g. `//*[@text="Old"]` becomes `//*[@text="New"]`.
func rewritePredicate(sel, pred, value string) string {
	pre, post, _ := strings.Cut(sel, pred)
	parts := strings.SplitN(post, `"`, 3)
	rest := ""
	if len(parts) == 3 {
		rest = parts[2]
	}
	return pre + value + rest
}

func quote(s string) string { return `"` + s + `"` }

// blankWidget keeps only where a widget was seen. Oracles checking that a
// text disappeared carry no widget of their own.
func blankWidget(w core.Widget) core.Widget {
	return core.Widget{Package: w.Package, Activity: w.Activity}
}
