package evaluate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/scenario"
)

const solutionCSV = `aid_from,step_from,aid_to,step_to
a41a,0,a42a,0
a41a,1,a42a,1
a41a,2,a42a,-1
a41a,3,a42a,2
a42a,0,a41a,0
`

func gui(class, id, text, act string) core.Event {
	return core.Event{
		Widget: core.Widget{Class: class, ResourceID: id, Text: text, Package: "b", Activity: act},
		Action: core.NewAction(core.VerbClick),
		Kind:   core.KindGUI,
	}
}

func oracle(text, act string) core.Event {
	e := gui(core.ClassTextView, "", text, act)
	e.Kind = core.KindOracle
	e.Action = core.NewAction(core.VerbWaitElementPresence, 10, "xpath", `//*[@text="`+text+`"]`)
	return e
}

func TestParseSolution(t *testing.T) {
	sol, err := ParseSolution(strings.NewReader(solutionCSV))
	require.NoError(t, err)
	require.Len(t, sol, 5)
	assert.Equal(t, Row{AidFrom: "a41a", StepFrom: 2, AidTo: "a42a", StepTo: -1}, sol[2])

	assert.Equal(t, map[int]int{0: 0, 1: 1, 2: -1, 3: 2}, sol.Mapping("a41a", "a42a"))

	ids := sol.ConfigIDs("b41")
	require.Len(t, ids, 2)
	assert.Equal(t, "a41a-a42a-b41", ids[0].String())
	assert.Equal(t, "a42a-a41a-b41", ids[1].String())
}

func TestParseSolution_Errors(t *testing.T) {
	_, err := ParseSolution(strings.NewReader("aid_from,step_from,aid_to\n"))
	assert.ErrorContains(t, err, "missing column step_to")

	_, err = ParseSolution(strings.NewReader("aid_from,step_from,aid_to,step_to\na,x,b,1\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestJudge(t *testing.T) {
	save := gui(core.ClassButton, "b:id/save", "Save", ".Edit")
	other := gui(core.ClassButton, "b:id/cancel", "Cancel", ".Edit")
	empty := core.NewEmptyEvent(core.KindGUI)

	tests := []struct {
		name string
		pred []core.Event
		ans  core.Event
		want Verdict
	}{
		{"match", []core.Event{save}, save, TruePositive},
		{"match after stepping", []core.Event{other, save}, save, TruePositive},
		{"wrong widget", []core.Event{other}, save, FalsePositive},
		{"missed", []core.Event{empty}, save, FalseNegative},
		{"correctly skipped", []core.Event{empty}, empty, TrueNegative},
		{"spurious", []core.Event{save}, empty, FalsePositive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Judge(tt.pred, tt.ans, core.KindGUI)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}

	_, ok := Judge([]core.Event{save}, save, core.KindSys)
	assert.False(t, ok)
}

func TestJudge_IgnoresActivityForTextOracles(t *testing.T) {
	ans := oracle("Done", ".Main")
	ans.Action = core.NewAction(core.VerbWaitTextPresence, 10, "text", "Done")
	pred := oracle("Done", ".Other")

	v, _ := Judge([]core.Event{pred}, ans, core.KindOracle)
	assert.Equal(t, TruePositive, v)

	ans.Action = core.NewAction(core.VerbWaitElementPresence, 10, "xpath", "//x")
	v, _ = Judge([]core.Event{pred}, ans, core.KindOracle)
	assert.Equal(t, FalsePositive, v)
}

func TestJudge_NumberedInbox(t *testing.T) {
	ans := gui(core.ClassTextView, "m:id/folder_name", "Inbox", ".Mail")
	pred := gui(core.ClassTextView, "m:id/folder_name", "Inbox 7", ".Mail")

	v, _ := Judge([]core.Event{pred}, ans, core.KindGUI)
	assert.Equal(t, TruePositive, v)
	assert.Equal(t, "Inbox 7", pred.Text, "input is not modified")
}

func TestEvaluate(t *testing.T) {
	sol, err := ParseSolution(strings.NewReader(solutionCSV))
	require.NoError(t, err)
	cid := scenario.ConfigID{From: "a41a", To: "a42a", Scenario: "b41"}

	source := []core.Event{
		gui(core.ClassButton, "a:id/add", "Add", ".Main"),
		gui(core.ClassEditText, "a:id/title", "", ".Edit"),
		gui(core.ClassButton, "a:id/extra", "Extra", ".Edit"),
		oracle("Milk", ".Main"),
	}
	expected := []core.Event{
		gui(core.ClassImageButton, "b:id/fab", "", ".Main"),
		gui(core.ClassEditText, "b:id/name", "", ".Edit"),
		oracle("Milk", ".Main"),
	}
	stepping := gui(core.ClassButton, "b:id/menu", "Menu", ".Main")
	stepping.Kind = core.KindStepping
	generated := []core.Event{
		stepping,
		expected[0],
		gui(core.ClassEditText, "b:id/wrong", "", ".Edit"),
		core.NewEmptyEvent(core.KindGUI),
		expected[2],
	}

	res, err := Evaluate(sol, cid, source, expected, generated)
	require.NoError(t, err)
	assert.Equal(t, Counts{TP: 1, TN: 1, FP: 1}, res.GUI)
	assert.Equal(t, Counts{TP: 1}, res.Oracle)
	assert.Equal(t, 1, res.Finished)
	assert.Equal(t, 1, res.Total)
	assert.InDelta(t, 0.5, res.GUI.Precision(), 1e-9)
	assert.InDelta(t, 1.0, res.GUI.Recall(), 1e-9)
}

func TestEvaluate_ShortGeneratedTest(t *testing.T) {
	sol, err := ParseSolution(strings.NewReader(solutionCSV))
	require.NoError(t, err)
	cid := scenario.ConfigID{From: "a41a", To: "a42a", Scenario: "b41"}
	src := []core.Event{gui(core.ClassButton, "a:id/add", "Add", ".Main"), gui(core.ClassButton, "a:id/x", "X", ".Main")}
	exp := []core.Event{gui(core.ClassButton, "b:id/add", "Add", ".Main"), gui(core.ClassButton, "b:id/x", "X", ".Main")}

	res, err := Evaluate(sol, cid, src, exp, exp[:1])
	require.NoError(t, err)
	assert.Equal(t, Counts{TP: 1}, res.GUI)
	assert.Zero(t, res.Finished)
}

func TestEvaluate_MissingStep(t *testing.T) {
	cid := scenario.ConfigID{From: "a41a", To: "a42a", Scenario: "b41"}
	e := gui(core.ClassButton, "a:id/add", "Add", ".Main")
	_, err := Evaluate(nil, cid, []core.Event{e}, []core.Event{e}, []core.Event{e})
	assert.ErrorContains(t, err, "no solution for step 0")
}

func TestCounts_Empty(t *testing.T) {
	assert.Zero(t, Counts{}.Precision())
	assert.Zero(t, Counts{}.Recall())
}

func TestEvaluateRepo(t *testing.T) {
	root := t.TempDir()
	repo := scenario.Repo{Root: root}
	cid := scenario.ConfigID{From: "a41a", To: "a42a", Scenario: "b41"}
	sol := Solution{{AidFrom: "a41a", StepFrom: 0, AidTo: "a42a", StepTo: 0}}

	src := []core.Event{gui(core.ClassButton, "a:id/add", "Add", ".Main")}
	exp := []core.Event{gui(core.ClassButton, "b:id/add", "Add", ".Main")}
	require.NoError(t, scenario.Save(repo.SourcePath(cid), src))
	require.NoError(t, scenario.Save(repo.TargetPath(cid), exp))
	require.NoError(t, scenario.Save(repo.GeneratedPath(cid), exp))

	res, err := EvaluateRepo(repo, sol, "b41")
	require.NoError(t, err)
	assert.Equal(t, Result{GUI: Counts{TP: 1}, Finished: 1, Total: 1}, res)

	require.NoError(t, os.Remove(filepath.Join(root, "a4", "b41", "generated", "a41a-a42a-b41.json")))
	_, err = EvaluateRepo(repo, sol, "b41")
	assert.Error(t, err)
}
