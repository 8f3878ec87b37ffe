package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seal-hub/CraftDroid/pkg/atg"
	"github.com/seal-hub/CraftDroid/pkg/config"
	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/driver/mock"
	"github.com/seal-hub/CraftDroid/pkg/evaluate"
	"github.com/seal-hub/CraftDroid/pkg/migrate"
	"github.com/seal-hub/CraftDroid/pkg/report"
	"github.com/seal-hub/CraftDroid/pkg/resource"
	"github.com/seal-hub/CraftDroid/pkg/scenario"
	"github.com/seal-hub/CraftDroid/pkg/similarity"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// runApp runs the CLI with args and returns what commands wrote to the
// app writer.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"craftdroid"}, args...))
	return out.String(), err
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0ms"},
		{999, "999ms"},
		{1500, "1.5s"},
		{59999, "60.0s"},
		{125000, "2m 5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.ms); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config", core.ErrInvalidConfig.WithMessage("bad"), exitConfig},
		{"wrapped config", fmt.Errorf("load: %w", core.ErrInvalidConfig), exitConfig},
		{"unreachable", core.ErrServerUnreachable.WithCause(errors.New("refused")), exitUnreachable},
		{"cancelled", fmt.Errorf("round 2: %w", context.Canceled), exitCancelled},
		{"other", errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestColorDisabled(t *testing.T) {
	old := colorsEnabled
	defer func() { colorsEnabled = old }()

	colorsEnabled = true
	if color(colorRed) != colorRed {
		t.Error("expected color code when enabled")
	}
	colorsEnabled = false
	if color(colorRed) != "" {
		t.Error("expected no color code when disabled")
	}
}

func TestDescribeEvent(t *testing.T) {
	click := core.Event{
		Widget: core.Widget{Class: core.ClassButton, ResourceID: "btn_save", Text: "Save"},
		Action: core.NewAction(core.VerbClick),
		Kind:   core.KindGUI,
	}
	if got := describeEvent(click); !strings.Contains(got, "click btn_save") {
		t.Errorf("describeEvent() = %q", got)
	}

	text := core.Event{
		Widget: core.Widget{Class: core.ClassTextView, Text: "Buy milk"},
		Action: core.NewAction(core.VerbWaitTextPresence, 10, core.SelectorText, "Buy milk"),
		Kind:   core.KindOracle,
	}
	if got := describeEvent(text); !strings.Contains(got, `"Buy milk"`) {
		t.Errorf("describeEvent() = %q", got)
	}

	if got := describeEvent(core.Event{Kind: core.KindEmpty}); got != "<no match>" {
		t.Errorf("describeEvent(empty) = %q", got)
	}
}

func TestQualify(t *testing.T) {
	if got := qualify("b.todo", ".MainActivity"); got != "b.todo.MainActivity" {
		t.Errorf("qualify() = %q", got)
	}
	if got := qualify("b.todo", "b.todo.EditActivity"); got != "b.todo.EditActivity" {
		t.Errorf("qualify() = %q", got)
	}
	if got := qualify("", ".MainActivity"); got != ".MainActivity" {
		t.Errorf("qualify() = %q", got)
	}
}

func TestChosenRound(t *testing.T) {
	rounds := []migrate.RoundStats{{Index: 1}, {Index: 2}, {Index: 3}}

	res := &migrate.Result{Rounds: rounds, FinalFitness: 0.8, PreviousFitness: 0.9}
	if got := chosenRound(res); got != 2 {
		t.Errorf("chosenRound() = %d, want the previous round 2", got)
	}
	res = &migrate.Result{Rounds: rounds, FinalFitness: 0.9, PreviousFitness: 0.9}
	if got := chosenRound(res); got != 3 {
		t.Errorf("chosenRound() = %d, want the last round 3 on a tie", got)
	}
	if got := chosenRound(&migrate.Result{}); got != 0 {
		t.Errorf("chosenRound() = %d without rounds", got)
	}
}

func TestReportRound(t *testing.T) {
	r := reportRound(migrate.RoundStats{Index: 2, Fitness: 0.5, Events: 4, GUI: 3, Empty: 1, Backtracks: 2, Explored: true, Duration: 1500 * time.Millisecond})
	want := report.Round{Index: 2, Fitness: 0.5, Events: 4, GUI: 3, Empty: 1, Backtracks: 2, Explored: true, Duration: 1500}
	if r != want {
		t.Errorf("reportRound() = %+v, want %+v", r, want)
	}
}

func TestNewDatabank(t *testing.T) {
	bank := newDatabank(config.Databank{Password: "s3cret", LoginEmail: "me@example.com", Seed: 7})
	if bank.Password != "s3cret" || bank.LoginEmail != "me@example.com" {
		t.Errorf("overrides not applied: %+v", bank)
	}
	if bank.FirstName == "" || bank.LastName == "" {
		t.Error("defaults must be kept for unset fields")
	}

	again := newDatabank(config.Databank{Seed: 7})
	if bank.TempEmail(true) != again.TempEmail(true) {
		t.Error("a seed must make temporary e-mails reproducible")
	}
}

func TestNewPolicy(t *testing.T) {
	p, err := newPolicy(config.Equivalence{Emails: true, Password: true, Patterns: []string{`^\d{10}$`}}, "pw")
	if err != nil {
		t.Fatalf("newPolicy failed: %v", err)
	}
	if !p.Emails || p.Password != "pw" || len(p.Patterns) != 1 {
		t.Errorf("newPolicy() = %+v", p)
	}

	p, err = newPolicy(config.Equivalence{}, "pw")
	if err != nil || p.Password != "" {
		t.Errorf("password equivalence must be off, got %+v, %v", p, err)
	}

	if _, err := newPolicy(config.Equivalence{Patterns: []string{"("}}, ""); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for a bad pattern, got %v", err)
	}
}

const vectorsFile = `4 3
add 1 0 0
task 0 1 0
new 0.9 0.1 0
todo 0.1 0.9 0
`

func TestOpenOracle_Vectors(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Similarity.Backend = config.BackendVectors
	cfg.Similarity.Vectors = filepath.Join(dir, "vectors.txt")
	cfg.Similarity.CacheDir = filepath.Join(dir, "cache")
	writeFile(t, cfg.Similarity.Vectors, vectorsFile)

	oracle, closeOracle, err := openOracle(cfg)
	if err != nil {
		t.Fatalf("openOracle failed: %v", err)
	}
	score, ok, err := oracle.Similarity(context.Background(), []string{"add"}, []string{"add"})
	if err != nil || !ok || score != 1 {
		t.Errorf("Similarity() = %v, %v, %v", score, ok, err)
	}
	if err := closeOracle(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cache", config.BackendVectors)); err != nil {
		t.Errorf("expected a persistent cache per backend: %v", err)
	}
}

func TestOpenOracle_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Similarity.Backend = "bert"
	if _, _, err := openOracle(cfg); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for an unknown backend, got %v", err)
	}

	cfg.Similarity.Backend = config.BackendVectors
	cfg.Similarity.Vectors = filepath.Join(t.TempDir(), "missing.txt")
	if _, _, err := openOracle(cfg); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for missing vectors, got %v", err)
	}
}

func TestSimilarityCommand(t *testing.T) {
	dir := t.TempDir()
	vectors := filepath.Join(dir, "vectors.txt")
	writeFile(t, vectors, vectorsFile)

	if _, err := runApp(t, "--vectors", vectors, "similarity", "--no-cache", "add task", "new todo"); err != nil {
		t.Errorf("similarity failed: %v", err)
	}
	if _, err := runApp(t, "--vectors", vectors, "similarity", "add task"); err == nil {
		t.Error("expected an error with a single phrase")
	}
	if _, err := runApp(t, "--config", filepath.Join(dir, "missing.yaml"), "similarity", "a", "b"); err == nil {
		t.Error("expected an error for an explicit config that does not exist")
	}
}

const staticGraph = `digraph G {
  "b.todo.MainActivity: void onCreate(android.os.Bundle)" -> "b.todo.EditActivity: void onCreate(android.os.Bundle)" [label="GUI (fab_add)"];
  "b.todo.EditActivity: void onCreate(android.os.Bundle)" -> "b.todo.MainActivity: void onStart()" [label="GUI (btn_save)"];
}`

func TestGraphCommand(t *testing.T) {
	static := t.TempDir()
	writeFile(t, filepath.Join(static, atg.GraphFile), staticGraph)

	out, err := runApp(t, "graph", "--static", static)
	if err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	if !strings.Contains(out, "digraph") {
		t.Errorf("expected DOT output, got %q", out)
	}

	exported := t.TempDir()
	if _, err := runApp(t, "graph", "--static", static, "-o", filepath.Join(exported, atg.GraphFile)); err != nil {
		t.Fatalf("graph -o failed: %v", err)
	}
	g, err := atg.Load(exported)
	if err != nil {
		t.Fatalf("exported graph does not load: %v", err)
	}
	if g.NumEdges() != 2 {
		t.Errorf("expected 2 edges after the round trip, got %d", g.NumEdges())
	}

	if _, err := runApp(t, "graph"); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without a source, got %v", err)
	}
}

func TestGraphFromCheckpoint(t *testing.T) {
	g := atg.New()
	g.AddEdge("b.todo.MainActivity", "b.todo.EditActivity", core.Event{
		Widget: core.Widget{Class: core.ClassImageButton, ResourceID: "fab_add"},
		Action: core.NewAction(core.VerbClick),
		Kind:   core.KindStepping,
	})
	path := filepath.Join(t.TempDir(), "a1-b1-t1.json")
	if err := migrate.SaveCheckpoint(path, migrate.Checkpoint{ID: "a1-b1-t1", Graph: g.Snapshot()}); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "graph", "--checkpoint", path)
	if err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	if !strings.Contains(out, "fab_add") {
		t.Errorf("expected the learned edge in the output, got %q", out)
	}
	if _, err := runApp(t, "paths", "--checkpoint", path, "--package", "b.todo", ".MainActivity", ".EditActivity"); err != nil {
		t.Errorf("paths failed: %v", err)
	}
}

func TestPathsCommand(t *testing.T) {
	static := t.TempDir()
	writeFile(t, filepath.Join(static, atg.GraphFile), staticGraph)

	if _, err := runApp(t, "paths", "--static", static, "b.todo.MainActivity", "b.todo.EditActivity"); err != nil {
		t.Errorf("paths failed: %v", err)
	}
	if _, err := runApp(t, "paths", "--static", static, "b.todo.MainActivity"); err == nil {
		t.Error("expected an error with one activity")
	}
}

const solution = `aid_from,step_from,aid_to,step_to
a11,0,a12,0
`

func eventsJSON(t *testing.T, events []core.Event) string {
	t.Helper()
	data, err := scenario.Encode(events, scenario.JSON)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestEvaluateCommand(t *testing.T) {
	repoDir := t.TempDir()
	repo := scenario.Repo{Root: repoDir}
	cid := scenario.ConfigID{From: "a11", To: "a12", Scenario: "b11"}

	save := func(app string) core.Event {
		return core.Event{
			Widget: core.Widget{Class: core.ClassButton, ResourceID: "save", Text: "Save", Package: app, Activity: ".Main"},
			Action: core.NewAction(core.VerbClick),
			Kind:   core.KindGUI,
		}
	}
	writeFile(t, repo.SourcePath(cid), eventsJSON(t, []core.Event{save("a")}))
	writeFile(t, repo.TargetPath(cid), eventsJSON(t, []core.Event{save("b")}))
	writeFile(t, repo.GeneratedPath(cid), eventsJSON(t, []core.Event{save("b")}))
	sol := filepath.Join(repoDir, "solution.csv")
	writeFile(t, sol, solution)

	for _, arg := range []string{"a11-a12-b11", "b11"} {
		out, err := runApp(t, "evaluate", "--repo", repoDir, "--solution", sol, "--json", arg)
		if err != nil {
			t.Fatalf("evaluate %s failed: %v", arg, err)
		}
		var res evaluate.Result
		if err := json.Unmarshal([]byte(out), &res); err != nil {
			t.Fatalf("bad JSON %q: %v", out, err)
		}
		if res.GUI.TP != 1 || res.Total != 1 {
			t.Errorf("evaluate %s = %+v, want one true positive", arg, res)
		}
	}

	if _, err := runApp(t, "evaluate", "--repo", repoDir, "--solution", sol); err == nil {
		t.Error("expected an error without ids")
	}
}

const saveXML = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="b.todo" enabled="true" clickable="false" password="false" bounds="[0,0][1080,1920]">
    <node index="0" text="Save" resource-id="b.todo:id/btn_save" class="android.widget.Button" package="b.todo" enabled="true" clickable="true" password="false" bounds="[0,400][540,500]" />
  </node>
</hierarchy>`

// equalWords scores equal words as 1.
var equalWords = similarity.OracleFunc(func(ctx context.Context, newWords, oldWords []string) (float64, bool, error) {
	s, ok := similarity.SentenceSimilarity(newWords, oldWords, func(a, b string) (float64, bool) {
		if strings.EqualFold(a, b) {
			return 1, true
		}
		return 0, false
	})
	return s, ok, nil
})

func TestMigrationRun(t *testing.T) {
	out := t.TempDir()
	cfg := config.Default()
	cfg.ID = "a1-b1-t1"
	cfg.Source = config.App{Package: "a.todo", Activity: ".EditActivity"}
	cfg.Target = config.App{Package: "b.todo", Activity: ".MainActivity"}
	cfg.Output = out
	cfg.CheckpointDir = filepath.Join(out, "checkpoints")

	source := []core.Event{{
		Widget: core.Widget{
			Class: core.ClassButton, IDPrefix: "a.todo:id/", ResourceID: "save", Text: "Save",
			Clickable: "true", Password: "false", Package: "a.todo", Activity: ".EditActivity",
		},
		Action: core.NewAction(core.VerbClick),
		Kind:   core.KindGUI,
	}}
	bank := newDatabank(config.Databank{Seed: 1})
	policy, err := newPolicy(cfg.Equivalence, bank.Password)
	if err != nil {
		t.Fatal(err)
	}
	m := &migration{
		cfg:    cfg,
		opts:   migrateOptions{Replay: true},
		source: source,
		graph:  atg.New(),
		res:    resource.Empty(),
		oracle: equalWords,
		bank:   bank,
		policy: policy,
	}
	app := mock.New(mock.Config{
		Package: "b.todo",
		Launch:  ".MainActivity",
		Screens: []mock.Screen{{Activity: ".MainActivity", Source: saveXML}},
	})

	res, err := m.run(context.Background(), app)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].ResourceID != "btn_save" {
		t.Errorf("unexpected result %+v", res.Events)
	}

	saved, err := scenario.Load(m.generatedPath())
	if err != nil {
		t.Fatalf("migrated test not saved: %v", err)
	}
	if len(saved) != 1 || saved[0].ResourceID != "b.todo:id/btn_save" {
		t.Errorf("saved events must carry the full resource id, got %+v", saved)
	}

	rep, err := report.Read(filepath.Join(out, report.FileName))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if rep.Status != report.StatusConverged || rep.ConfigID != cfg.ID || rep.Final == nil {
		t.Errorf("unexpected report %+v", rep)
	}
	if len(rep.Rounds) != len(res.Rounds) {
		t.Errorf("report has %d rounds, search ran %d", len(rep.Rounds), len(res.Rounds))
	}
	if _, err := os.Stat(filepath.Join(out, "atm.gv")); err != nil {
		t.Errorf("activity graph not exported: %v", err)
	}
	if _, err := os.Stat(cfg.CheckpointPath()); err != nil {
		t.Errorf("checkpoint not written: %v", err)
	}

	// Resuming from the finished checkpoint converges immediately.
	m.opts = migrateOptions{Resume: true}
	again, err := m.run(context.Background(), app)
	if err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}
	if len(again.Events) != 1 {
		t.Errorf("unexpected resumed result %+v", again.Events)
	}
}

func TestMigrationRun_Cancelled(t *testing.T) {
	out := t.TempDir()
	cfg := config.Default()
	cfg.ID = "a1-b1-t1"
	cfg.Target = config.App{Package: "b.todo"}
	cfg.Output = out
	cfg.CheckpointDir = filepath.Join(out, "checkpoints")

	m := &migration{
		cfg: cfg,
		source: []core.Event{{
			Widget: core.Widget{Class: core.ClassButton, Text: "Save", Clickable: "true", Password: "false"},
			Action: core.NewAction(core.VerbClick),
			Kind:   core.KindGUI,
		}},
		graph:  atg.New(),
		res:    resource.Empty(),
		oracle: equalWords,
		bank:   newDatabank(config.Databank{}),
	}
	app := mock.New(mock.Config{
		Package: "b.todo",
		Launch:  ".MainActivity",
		Screens: []mock.Screen{{Activity: ".MainActivity", Source: saveXML}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.run(ctx, app); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	rep, err := report.Read(filepath.Join(out, report.FileName))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if rep.Status != report.StatusCancelled || rep.Error == nil {
		t.Errorf("unexpected report %+v", rep)
	}
}
