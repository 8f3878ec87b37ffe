package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const recordedScenario = `[
  {
    "class": "android.widget.EditText",
    "resource-id": "com.rubenroy.minimaltodo:id/userToDoEditText",
    "text": "",
    "content-desc": "",
    "clickable": "true",
    "password": "false",
    "naf": "",
    "parent_text": "",
    "sibling_text": "",
    "package": "com.rubenroy.minimaltodo",
    "activity": ".AddToDoActivity",
    "tid": "a21",
    "ignorable": "false",
    "event_type": "gui",
    "action": ["send_keys_and_hide_keyboard", "Sample Todo"]
  },
  {"class": "SYS_EVENT", "action": ["KEY_BACK"], "event_type": "SYS_EVENT"},
  {
    "class": "android.widget.TextView",
    "resource-id": "",
    "text": "Sample Todo",
    "content-desc": "",
    "clickable": "false",
    "password": "false",
    "naf": "",
    "parent_text": "",
    "sibling_text": "",
    "package": "com.rubenroy.minimaltodo",
    "activity": ".MainActivity",
    "event_type": "oracle",
    "action": ["wait_until_element_presence", 10, "xpath", "//android.widget.TextView[@text=\"Sample Todo\"]"]
  },
  {"class": "EMPTY_EVENT", "score": 0, "event_type": "oracle"}
]`

func TestEvent_DecodeRecordedScenario(t *testing.T) {
	var events []Event
	if err := json.Unmarshal([]byte(recordedScenario), &events); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}

	typing := events[0]
	if typing.Kind != KindGUI || !typing.Action.IsSendKeys() || !typing.Action.HidesKeyboard() {
		t.Errorf("event 0 = %+v", typing)
	}
	if typing.Action.InputText() != "Sample Todo" {
		t.Errorf("InputText() = %q", typing.Action.InputText())
	}
	if typing.TID != "a21" {
		t.Errorf("TID = %q", typing.TID)
	}

	if !events[1].IsSys() || events[1].Action.Verb != VerbKeyBack {
		t.Errorf("event 1 = %+v, want KEY_BACK system event", events[1])
	}

	oracle := events[2]
	if oracle.Kind != KindOracle || oracle.Action.WaitTimeout() != 10*time.Second {
		t.Errorf("event 2 = %+v", oracle)
	}
	if oracle.Action.SelectorType() != SelectorXPath {
		t.Errorf("SelectorType() = %q", oracle.Action.SelectorType())
	}

	if !events[3].IsEmpty() || events[3].Category() != KindOracle {
		t.Errorf("event 3 = %+v, want empty oracle placeholder", events[3])
	}
}

func TestEvent_EncodePlaceholders(t *testing.T) {
	b, err := json.Marshal(NewEmptyEvent(KindGUI))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got := string(b); got != `{"class":"EMPTY_EVENT","score":0,"event_type":"gui"}` {
		t.Errorf("empty event = %s", got)
	}

	b, err = json.Marshal(NewSysEvent(NewAction(VerbSleep, 3.0)))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got := string(b); got != `{"class":"SYS_EVENT","action":["sleep",3],"event_type":"SYS_EVENT"}` {
		t.Errorf("sys event = %s", got)
	}
}

func TestEvent_EncodeKeepsStepping(t *testing.T) {
	e := Event{
		Widget: Widget{Class: ClassButton, ResourceID: "save"},
		Action: NewAction(VerbClick),
		Kind:   KindGUI,
		Score:  0.75,
		Stepping: []Event{{
			Widget: Widget{Class: ClassImageButton, ContentDesc: "More options"},
			Action: NewAction(VerbClick),
			Kind:   KindStepping,
		}},
	}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(b)
	for _, want := range []string{`"score":0.75`, `"stepping_events":[`, `"event_type":"stepping"`, `"action":["click"]`} {
		if !strings.Contains(s, want) {
			t.Errorf("encoded event %s missing %s", s, want)
		}
	}
}

func TestEvent_YAML(t *testing.T) {
	src := `
- class: android.widget.Button
  resource-id: com.example:id/save
  text: Save
  clickable: "true"
  password: "false"
  event_type: gui
  action: [click]
- class: android.widget.TextView
  text: Saved
  event_type: oracle
  action: [wait_until_text_presence, 10, text, Saved]
`
	var events []Event
	if err := yaml.Unmarshal([]byte(src), &events); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].ResourceID != "com.example:id/save" || events[0].Action.Verb != VerbClick {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Action.Selector() != "Saved" || events[1].Action.WaitTimeout() != 10*time.Second {
		t.Errorf("event 1 action = %v", events[1].Action)
	}
}

func TestEvent_CloneIsDeep(t *testing.T) {
	e := Event{Action: NewAction(VerbSendKeys, "a"), Stepping: []Event{{Action: NewAction(VerbClick)}}}
	c := e.Clone()
	c.Action.SetArg(0, "b")
	c.Stepping[0].Text = "changed"

	if e.Action.InputText() != "a" {
		t.Error("Clone() shares action args")
	}
	if e.Stepping[0].Text != "" {
		t.Error("Clone() shares stepping events")
	}
}

func TestAction_Helpers(t *testing.T) {
	a := NewAction("clear_and_send_keys_and_enter", "hello")
	if !a.ClearsFirst() || !a.PressesEnter() || a.HidesKeyboard() {
		t.Errorf("helpers wrong for %v", a)
	}
	if !NewAction(VerbSwipeRight).IsSwipe() {
		t.Error("IsSwipe() = false for swipe_right")
	}
	if got := NewAction(VerbWaitTextPresence, 10.0, "text", "65.09").String(); got != "wait_until_text_presence 10 text 65.09" {
		t.Errorf("String() = %q", got)
	}
	if NewAction(VerbSleep, 1.5).SleepDuration() != 1500*time.Millisecond {
		t.Error("SleepDuration() wrong")
	}
	if NewAction(VerbWaitTextPresence).WaitTimeout() != 10*time.Second {
		t.Error("WaitTimeout() default should be 10s")
	}
}

func TestAction_RejectsNonStringVerb(t *testing.T) {
	var a Action
	if err := json.Unmarshal([]byte(`[3, "x"]`), &a); err == nil {
		t.Error("expected error for numeric verb")
	}
}
