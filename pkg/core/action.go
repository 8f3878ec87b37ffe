package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Action verbs.
const (
	VerbClick                = "click"
	VerbLongPress            = "long_press"
	VerbSwipeRight           = "swipe_right"
	VerbSendKeys             = "send_keys"
	VerbClearAndSendKeys     = "clear_and_send_keys"
	VerbWaitElementPresence  = "wait_until_element_presence"
	VerbWaitElementInvisible = "wait_until_element_invisible"
	VerbWaitTextPresence     = "wait_until_text_presence"
	VerbWaitTextInvisible    = "wait_until_text_invisible"
	VerbSleep                = "sleep"
	VerbKeyBack              = "KEY_BACK"
	VerbRestartApp           = "restart_app"
)

// Selector types accepted by wait actions.
const (
	SelectorXPath       = "xpath"
	SelectorContentDesc = "content-desc"
	SelectorID          = "id"
	SelectorText        = "text"
)

const (
	waitPrefix         = "wait_until"
	defaultWaitTimeout = 10 * time.Second
)

// Action is a verb plus positional parameters, stored on the wire as a
// JSON array such as ["wait_until_element_presence", 10, "xpath", "//*"].
type Action struct {
	Verb string
	Args []any
}

// NewAction builds an action from a verb and its parameters.
func NewAction(verb string, args ...any) Action {
	return Action{Verb: verb, Args: args}
}

// Arg returns the i-th parameter rendered as a string, or "" if absent.
func (a Action) Arg(i int) string {
	if i < 0 || i >= len(a.Args) {
		return ""
	}
	switch v := a.Args[i].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// SetArg replaces the i-th parameter, growing the list if needed.
func (a *Action) SetArg(i int, v any) {
	for len(a.Args) <= i {
		a.Args = append(a.Args, "")
	}
	a.Args[i] = v
}

// Clone returns a deep copy of the action.
func (a Action) Clone() Action {
	args := make([]any, len(a.Args))
	copy(args, a.Args)
	return Action{Verb: a.Verb, Args: args}
}

// IsWait reports whether the verb is one of the wait_until actions.
func (a Action) IsWait() bool { return strings.HasPrefix(a.Verb, waitPrefix) }

// IsSendKeys reports whether the verb types text.
func (a Action) IsSendKeys() bool { return strings.Contains(a.Verb, VerbSendKeys) }

// IsSwipe reports whether the verb is a swipe.
func (a Action) IsSwipe() bool { return strings.HasPrefix(a.Verb, "swipe") }

// ClearsFirst reports whether a send_keys variant clears the field first.
func (a Action) ClearsFirst() bool { return strings.HasPrefix(a.Verb, "clear") }

// HidesKeyboard reports whether a send_keys variant dismisses the keyboard.
func (a Action) HidesKeyboard() bool { return strings.HasSuffix(a.Verb, "hide_keyboard") }

// PressesEnter reports whether a send_keys variant presses enter afterwards.
func (a Action) PressesEnter() bool { return strings.HasSuffix(a.Verb, "enter") }

// InputText returns the value typed by a send_keys action.
func (a Action) InputText() string { return a.Arg(0) }

// WaitTimeout returns the timeout of a wait action.
func (a Action) WaitTimeout() time.Duration {
	if len(a.Args) == 0 {
		return defaultWaitTimeout
	}
	secs, err := strconv.ParseFloat(a.Arg(0), 64)
	if err != nil || secs <= 0 {
		return defaultWaitTimeout
	}
	return time.Duration(secs * float64(time.Second))
}

// SelectorType returns the selector kind of a wait action (xpath, id, ...).
func (a Action) SelectorType() string { return a.Arg(1) }

// Selector returns the selector value of a wait action.
func (a Action) Selector() string { return a.Arg(2) }

// SleepDuration returns the duration of a sleep system action.
func (a Action) SleepDuration() time.Duration {
	secs, err := strconv.ParseFloat(a.Arg(0), 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// IsZero reports whether the action has no verb.
func (a Action) IsZero() bool { return a.Verb == "" }

// MarshalJSON encodes the action as [verb, args...].
func (a Action) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(append([]any{a.Verb}, a.Args...))
}

// UnmarshalJSON decodes [verb, args...].
func (a *Action) UnmarshalJSON(b []byte) error {
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode action: %w", err)
	}
	return a.fromSlice(raw)
}

// MarshalYAML encodes the action as a sequence.
func (a Action) MarshalYAML() (interface{}, error) {
	if a.IsZero() {
		return nil, nil
	}
	return append([]any{a.Verb}, a.Args...), nil
}

// UnmarshalYAML decodes a YAML sequence into an action.
func (a *Action) UnmarshalYAML(node *yaml.Node) error {
	var raw []any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decode action: %w", err)
	}
	for i, v := range raw {
		if n, ok := v.(int); ok {
			raw[i] = float64(n)
		}
	}
	return a.fromSlice(raw)
}

func (a *Action) fromSlice(raw []any) error {
	if len(raw) == 0 {
		*a = Action{}
		return nil
	}
	verb, ok := raw[0].(string)
	if !ok {
		return fmt.Errorf("action verb must be a string, got %T", raw[0])
	}
	a.Verb = verb
	a.Args = raw[1:]
	return nil
}

func (a Action) String() string {
	if len(a.Args) == 0 {
		return a.Verb
	}
	parts := []string{a.Verb}
	for i := range a.Args {
		parts = append(parts, a.Arg(i))
	}
	return strings.Join(parts, " ")
}
