package migrate

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/databank"
	"github.com/seal-hub/CraftDroid/pkg/driver/mock"
	"github.com/seal-hub/CraftDroid/pkg/similarity"
	"github.com/seal-hub/CraftDroid/pkg/widget"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

const targetPkg = "b.todo"

const (
	mainActivity = ".MainActivity"
	editActivity = ".EditActivity"
	formActivity = ".FormActivity"
)

const mainXML = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="b.todo" enabled="true" clickable="false" password="false" bounds="[0,0][1080,1920]">
    <node index="0" text="Buy milk" resource-id="b.todo:id/item_name" class="android.widget.TextView" package="b.todo" enabled="true" clickable="false" password="false" bounds="[0,200][1080,300]" />
    <node index="1" text="" resource-id="b.todo:id/fab_add" class="android.widget.ImageButton" content-desc="Add task" package="b.todo" enabled="true" clickable="true" password="false" bounds="[900,1700][1000,1800]" />
  </node>
</hierarchy>`

const editXML = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="b.todo" enabled="true" clickable="false" password="false" bounds="[0,0][1080,1920]">
    <node index="0" text="" resource-id="b.todo:id/title" class="android.widget.EditText" content-desc="" package="b.todo" enabled="true" clickable="true" password="false" bounds="[0,100][1080,200]" />
    <node index="1" text="Save" resource-id="b.todo:id/btn_save" class="android.widget.Button" package="b.todo" enabled="true" clickable="true" password="false" bounds="[0,400][540,500]" />
  </node>
</hierarchy>`

const formXML = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="b.todo" enabled="true" clickable="false" password="false" bounds="[0,0][1080,1920]">
    <node index="0" text="" resource-id="b.todo:id/email_field" class="android.widget.EditText" content-desc="" package="b.todo" enabled="true" clickable="true" password="false" bounds="[0,100][1080,200]" />
  </node>
</hierarchy>`

// todoApp has a task list with an add button leading to an editor whose
// save button returns to the list.
func todoApp(failOn func(core.Event) error) *mock.App {
	return mock.New(mock.Config{
		Package: targetPkg,
		Launch:  mainActivity,
		Screens: []mock.Screen{
			{Activity: mainActivity, Source: mainXML},
			{Activity: editActivity, Source: editXML},
		},
		Transitions: []mock.Transition{
			{From: mainActivity, Target: core.Widget{ResourceID: "fab_add"}, To: editActivity},
			{From: editActivity, Target: core.Widget{ResourceID: "btn_save"}, To: mainActivity},
		},
		FailOn: failOn,
	})
}

func formApp() *mock.App {
	return mock.New(mock.Config{
		Package: targetPkg,
		Launch:  formActivity,
		Screens: []mock.Screen{{Activity: formActivity, Source: formXML}},
	})
}

// wordOracle scores words equal ignoring case as 1.
func wordOracle() similarity.Oracle {
	word := func(a, b string) (float64, bool) {
		if strings.EqualFold(a, b) {
			return 1, true
		}
		return 0, false
	}
	return similarity.OracleFunc(func(ctx context.Context, n, o []string) (float64, bool, error) {
		s, ok := similarity.SentenceSimilarity(n, o, word)
		return s, ok, nil
	})
}

func srcWidget(class, rid, text, desc, clickable, activity string) core.Widget {
	return core.Widget{
		Class:       class,
		ResourceID:  rid,
		Text:        text,
		ContentDesc: desc,
		Clickable:   clickable,
		Password:    "false",
		Package:     "a.src",
		Activity:    activity,
	}
}

var (
	srcAdd   = srcWidget(core.ClassImageButton, "a.src:id/add_btn", "", "Add task", "true", ".TaskListActivity")
	srcTitle = srcWidget(core.ClassEditText, "a.src:id/title", "", "", "true", ".NewTaskActivity")
	srcSave  = srcWidget(core.ClassButton, "a.src:id/save", "Save", "", "true", ".NewTaskActivity")
	srcItem  = srcWidget(core.ClassTextView, "", "Buy milk", "", "false", ".TaskListActivity")
)

func gui(w core.Widget, a core.Action) core.Event {
	return core.Event{Widget: w, Action: a, Kind: core.KindGUI}
}

func oracle(w core.Widget, a core.Action) core.Event {
	return core.Event{Widget: w, Action: a, Kind: core.KindOracle}
}

// addTaskScenario adds a task and checks it is listed.
func addTaskScenario() []core.Event {
	return []core.Event{
		gui(srcAdd, core.NewAction(core.VerbClick)),
		gui(srcTitle, core.NewAction(core.VerbSendKeys, "Buy milk")),
		gui(srcSave, core.NewAction(core.VerbClick)),
		oracle(srcItem, core.NewAction(core.VerbWaitTextPresence, 10, core.SelectorText, "Buy milk")),
	}
}

func newConfig(source []core.Event) Config {
	return Config{
		ID:            "a1-b1-t1",
		TargetPackage: targetPkg,
		Source:        source,
		Matcher:       widget.NewMatcher(wordOracle(), widget.Options{UseStopwords: true}),
		Databank:      databank.New().WithSeed(1),
		Policy:        DefaultPolicy(""),
	}
}

func kinds(events []core.Event) []core.Kind {
	out := make([]core.Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}
