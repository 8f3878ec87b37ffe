package core

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Record classes that do not name a real widget.
const (
	ClassEmptyEvent = "EMPTY_EVENT"
	ClassSysEvent   = "SYS_EVENT"
)

// Event is one step of a scenario: a widget, what to do with it, and the
// role the step plays.
//
// Kind is the tag. For KindEmpty, Slot records whether the placeholder
// stands in for a gui or an oracle step; it is unused otherwise.
type Event struct {
	Widget
	Action   Action
	Kind     Kind
	Slot     Kind
	Score    float64
	Stepping []Event
	TID      string
}

// NewEmptyEvent returns the placeholder for a step with no match.
func NewEmptyEvent(slot Kind) Event {
	return Event{Widget: Widget{Class: ClassEmptyEvent}, Kind: KindEmpty, Slot: slot}
}

// NewSysEvent returns a device-level event such as KEY_BACK.
func NewSysEvent(a Action) Event {
	return Event{Widget: Widget{Class: ClassSysEvent}, Action: a, Kind: KindSys}
}

// IsEmpty reports whether the event is a no-match placeholder.
func (e Event) IsEmpty() bool { return e.Kind == KindEmpty }

// IsSys reports whether the event is a device-level event.
func (e Event) IsSys() bool { return e.Kind == KindSys }

// Category is the kind the event counts as for fitness: the slot for an
// empty placeholder, the event's own kind otherwise.
func (e Event) Category() Kind {
	switch e.Kind {
	case KindEmpty:
		return e.Slot
	case KindGUI, KindOracle, KindStepping, KindSys:
		return e.Kind
	default:
		return KindUnknown
	}
}

// Clone returns a deep copy.
func (e Event) Clone() Event {
	c := e
	c.Action = e.Action.Clone()
	if e.Stepping != nil {
		c.Stepping = make([]Event, len(e.Stepping))
		for i := range e.Stepping {
			c.Stepping[i] = e.Stepping[i].Clone()
		}
	}
	return c
}

// record is the wire form of an event.
type record struct {
	Widget    `yaml:",inline"`
	TID       string   `json:"tid,omitempty" yaml:"tid,omitempty"`
	Ignorable string   `json:"ignorable,omitempty" yaml:"ignorable,omitempty"`
	Action    *Action  `json:"action,omitempty" yaml:"action,omitempty"`
	EventType string   `json:"event_type" yaml:"event_type"`
	Score     *float64 `json:"score,omitempty" yaml:"score,omitempty"`
	Stepping  []Event  `json:"stepping_events,omitempty" yaml:"stepping_events,omitempty"`
}

// placeholder is the minimal wire form of empty and system events.
type placeholder struct {
	Class     string   `json:"class" yaml:"class"`
	Action    *Action  `json:"action,omitempty" yaml:"action,omitempty"`
	Score     *float64 `json:"score,omitempty" yaml:"score,omitempty"`
	EventType string   `json:"event_type" yaml:"event_type"`
}

func (e Event) wire() any {
	switch e.Kind {
	case KindEmpty:
		score := 0.0
		return placeholder{Class: ClassEmptyEvent, Score: &score, EventType: e.Slot.String()}
	case KindSys:
		a := e.Action
		return placeholder{Class: ClassSysEvent, Action: &a, EventType: KindSys.String()}
	}
	r := record{Widget: e.Widget, TID: e.TID, EventType: e.Kind.String(), Stepping: e.Stepping}
	if !e.Action.IsZero() {
		a := e.Action
		r.Action = &a
	}
	if e.Kind != KindStepping && (e.Score != 0 || e.Kind == KindOracle) {
		s := e.Score
		r.Score = &s
	}
	return r
}

func (e *Event) fromRecord(r record) error {
	kind, err := ParseKind(r.EventType)
	if err != nil && r.Class != ClassEmptyEvent && r.Class != ClassSysEvent {
		return err
	}
	*e = Event{Widget: r.Widget, TID: r.TID, Stepping: r.Stepping}
	if r.Action != nil {
		e.Action = *r.Action
	}
	if r.Score != nil {
		e.Score = *r.Score
	}
	switch {
	case r.Class == ClassEmptyEvent:
		e.Kind, e.Slot = KindEmpty, kind
		e.Score = 0
	case r.Class == ClassSysEvent || kind == KindSys:
		e.Kind = KindSys
		e.Class = ClassSysEvent
	default:
		e.Kind = kind
	}
	return nil
}

// MarshalJSON encodes the event as a scenario record.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// UnmarshalJSON decodes a scenario record.
func (e *Event) UnmarshalJSON(b []byte) error {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return e.fromRecord(r)
}

// MarshalYAML encodes the event as a scenario record.
func (e Event) MarshalYAML() (interface{}, error) {
	return e.wire(), nil
}

// UnmarshalYAML decodes a scenario record.
func (e *Event) UnmarshalYAML(node *yaml.Node) error {
	var r record
	if err := node.Decode(&r); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return e.fromRecord(r)
}
