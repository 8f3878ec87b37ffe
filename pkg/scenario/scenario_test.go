package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

const recorded = `[
  {
    "class": "android.widget.EditText",
    "resource-id": "a.todo:id/et_title",
    "text": "",
    "content-desc": "",
    "clickable": "true",
    "password": "false",
    "naf": "",
    "parent_text": "",
    "sibling_text": "Title",
    "package": "a.todo",
    "activity": ".EditActivity",
    "event_type": "gui",
    "action": ["send_keys_and_hide_keyboard", "Milk"]
  },
  {
    "class": "android.widget.Button",
    "resource-id": "a.todo:id/btn_save",
    "text": "Save",
    "content-desc": "",
    "clickable": "true",
    "password": "false",
    "naf": "",
    "parent_text": "",
    "sibling_text": "",
    "package": "a.todo",
    "activity": ".EditActivity",
    "event_type": "gui",
    "action": ["long_press"]
  },
  {"class": "SYS_EVENT", "action": ["sleep", 2], "event_type": "SYS_EVENT"},
  {"class": "EMPTY_EVENT", "score": 0, "event_type": "oracle"}
]`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_JSON(t *testing.T) {
	events, err := Load(writeFile(t, "a41a.json", recorded))
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, core.KindGUI, events[0].Kind)
	assert.Equal(t, "Milk", events[0].Action.InputText())
	assert.True(t, events[2].IsSys())
	assert.True(t, events[3].IsEmpty())
	assert.Equal(t, core.KindOracle, events[3].Category())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read scenario")

	_, err = Load(writeFile(t, "bad.json", `{"not": "a list"}`))
	assert.ErrorContains(t, err, "parse scenario")

	_, err = Load(writeFile(t, "bad-kind.json", `[{"class": "x", "event_type": "bogus"}]`))
	assert.Error(t, err)
}

func TestSave_FoldsIDPrefix(t *testing.T) {
	events := []core.Event{
		{
			Widget: core.Widget{Class: core.ClassButton, IDPrefix: "b.todo:id/", ResourceID: "save", Text: "Save"},
			Action: core.NewAction(core.VerbClick),
			Kind:   core.KindGUI,
			Score:  0.8,
		},
		core.NewSysEvent(core.NewAction(core.VerbKeyBack)),
		core.NewEmptyEvent(core.KindOracle),
	}
	path := filepath.Join(t.TempDir(), "out", "a41a-a42a-b41.json")
	require.NoError(t, Save(path, events))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, "b.todo:id/save", loaded[0].ResourceID)
	assert.Empty(t, loaded[0].IDPrefix)
	assert.Equal(t, 0.8, loaded[0].Score)
	assert.Equal(t, "b.todo:id/", events[0].IDPrefix, "input is not modified")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSave_YAMLRoundTrip(t *testing.T) {
	events, err := Load(writeFile(t, "a41a.json", recorded))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "a41a.yaml")
	require.NoError(t, Save(path, events))
	again, err := Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff(Summary(events), Summary(again)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, events[0].Widget, again[0].Widget)
	assert.Equal(t, events[1].Action.Verb, again[1].Action.Verb)
}

func TestEncode_EmptyIsList(t *testing.T) {
	data, err := Encode(nil, JSON)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestMutate(t *testing.T) {
	events, err := Load(writeFile(t, "a41a.json", recorded))
	require.NoError(t, err)

	m, err := ParseMutations("long_press=swipe_right, swipe_right=long_press")
	require.NoError(t, err)
	mutated := Mutate(events, m)

	assert.Equal(t, core.VerbSwipeRight, mutated[1].Action.Verb)
	assert.Equal(t, core.VerbLongPress, events[1].Action.Verb, "input is not modified")
	assert.Equal(t, events[0].Action.Verb, mutated[0].Action.Verb)
}

func TestParseMutations(t *testing.T) {
	m, err := ParseMutations("")
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = ParseMutations("long_press")
	assert.Error(t, err)
	_, err = ParseMutations("=click")
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	events, err := Load(writeFile(t, "a41a.json", recorded))
	require.NoError(t, err)
	assert.Equal(t, "gui=2 oracle=1 SYS_EVENT=1", Summary(events))
}

func TestConfigID(t *testing.T) {
	c, err := ParseConfigID("a41a-a42a-b41")
	require.NoError(t, err)
	assert.Equal(t, ConfigID{From: "a41a", To: "a42a", Scenario: "b41"}, c)
	assert.Equal(t, "a4", c.Group())
	assert.Equal(t, "a41a-a42a-b41", c.String())

	for _, bad := range []string{"", "a41a-a42a", "a-b-c", "a41a--b41"} {
		_, err := ParseConfigID(bad)
		assert.Error(t, err, bad)
	}
}

func TestRepo(t *testing.T) {
	c, err := ParseConfigID("a41a-a42a-b41")
	require.NoError(t, err)
	r := Repo{Root: "/tests"}

	assert.Equal(t, filepath.Join("/tests", "a4", "b41", "base", "a41a.json"), r.SourcePath(c))
	assert.Equal(t, filepath.Join("/tests", "a4", "b41", "base", "a42a.json"), r.TargetPath(c))
	assert.Equal(t, filepath.Join("/tests", "a4", "b41", "generated", "a41a-a42a-b41.json"), r.GeneratedPath(c))
}
