// Package evaluate scores migrated tests against the tests written by hand
// for the target app.
package evaluate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/scenario"
)

// Counts tallies judgements for one event kind.
type Counts struct {
	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// Precision is tp / (tp + fp), or 0 without positives.
func (c Counts) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// Recall is tp / (tp + fn), or 0 without expected matches.
func (c Counts) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// Add returns the sum of two tallies.
func (c Counts) Add(o Counts) Counts {
	return Counts{TP: c.TP + o.TP, TN: c.TN + o.TN, FP: c.FP + o.FP, FN: c.FN + o.FN}
}

// Result is the outcome of evaluating one or more migrations.
type Result struct {
	GUI      Counts `json:"gui"`
	Oracle   Counts `json:"oracle"`
	Finished int    `json:"finished"`
	Total    int    `json:"total"`
}

// Add returns the sum of two results.
func (r Result) Add(o Result) Result {
	return Result{
		GUI:      r.GUI.Add(o.GUI),
		Oracle:   r.Oracle.Add(o.Oracle),
		Finished: r.Finished + o.Finished,
		Total:    r.Total + o.Total,
	}
}

// Verdict is the judgement of one source step.
type Verdict string

const (
	TruePositive  Verdict = "tp"
	TrueNegative  Verdict = "tn"
	FalsePositive Verdict = "fp"
	FalseNegative Verdict = "fn"
)

// Row maps a step of a source test to a step of a target test. StepTo is
// -1 when the step has no counterpart.
type Row struct {
	AidFrom  string
	StepFrom int
	AidTo    string
	StepTo   int
}

// Solution is the ground truth mapping of one scenario.
type Solution []Row

// LoadSolution reads a CSV with columns aid_from, step_from, aid_to, step_to.
func LoadSolution(path string) (Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read solution: %w", err)
	}
	defer f.Close()
	return ParseSolution(f)
}

// ParseSolution parses a solution CSV.
func ParseSolution(r io.Reader) (Solution, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("parse solution: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range []string{"aid_from", "step_from", "aid_to", "step_to"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("parse solution: missing column %s", name)
		}
	}

	var sol Solution
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return sol, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse solution: %w", err)
		}
		from, err1 := strconv.Atoi(strings.TrimSpace(rec[col["step_from"]]))
		to, err2 := strconv.Atoi(strings.TrimSpace(rec[col["step_to"]]))
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("parse solution line %d: %w", line, err)
		}
		sol = append(sol, Row{
			AidFrom:  strings.TrimSpace(rec[col["aid_from"]]),
			StepFrom: from,
			AidTo:    strings.TrimSpace(rec[col["aid_to"]]),
			StepTo:   to,
		})
	}
}

// ConfigIDs lists every migration the solution covers for a scenario.
func (s Solution) ConfigIDs(scenarioID string) []scenario.ConfigID {
	seen := make(map[[2]string]bool)
	var out []scenario.ConfigID
	for _, r := range s {
		k := [2]string{r.AidFrom, r.AidTo}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, scenario.ConfigID{From: r.AidFrom, To: r.AidTo, Scenario: scenarioID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Mapping returns source step to target step for one pair of apps.
func (s Solution) Mapping(from, to string) map[int]int {
	m := make(map[int]int)
	for _, r := range s {
		if r.AidFrom == from && r.AidTo == to {
			m[r.StepFrom] = r.StepTo
		}
	}
	return m
}

// Evaluate judges a generated test step by step. Stepping events before a
// step count towards it: the step is a hit when any of them matches the
// expected event.
func Evaluate(sol Solution, cid scenario.ConfigID, source, expected, generated []core.Event) (Result, error) {
	res := Result{Total: 1}
	mapping := sol.Mapping(cid.From, cid.To)

	idx := 0
	for i, src := range source {
		if idx >= len(generated) {
			break
		}
		var pred []core.Event
		for idx < len(generated)-1 && generated[idx].Kind == core.KindStepping {
			pred = append(pred, generated[idx])
			idx++
		}
		pred = append(pred, generated[idx])
		idx++

		step, ok := mapping[i]
		if !ok {
			return res, fmt.Errorf("%s: no solution for step %d", cid, i)
		}
		ans := core.NewEmptyEvent(src.Kind)
		if step > -1 {
			if step >= len(expected) {
				return res, fmt.Errorf("%s: solution step %d beyond expected test", cid, step)
			}
			ans = expected[step]
		}

		v, ok := Judge(pred, ans, src.Kind)
		if !ok {
			continue
		}
		switch src.Kind {
		case core.KindGUI:
			res.GUI = tally(res.GUI, v)
		case core.KindOracle:
			res.Oracle = tally(res.Oracle, v)
		}
	}

	if n, m := len(generated), len(expected); n > 0 && m > 0 && generated[n-1].Equal(expected[m-1].Widget, true) {
		res.Finished = 1
	}
	return res, nil
}

func tally(c Counts, v Verdict) Counts {
	switch v {
	case TruePositive:
		c.TP++
	case TrueNegative:
		c.TN++
	case FalsePositive:
		c.FP++
	case FalseNegative:
		c.FN++
	}
	return c
}

var inboxFolder = regexp.MustCompile(`^Inbox \d+$`)

// Judge compares the predicted events for one source step with the
// expected event. Only gui and oracle steps are judged.
func Judge(pred []core.Event, ans core.Event, kind core.Kind) (Verdict, bool) {
	if kind != core.KindGUI && kind != core.KindOracle {
		return "", false
	}
	pred = calibrate(pred)

	ignoreActivity := false
	if !ans.Action.IsZero() {
		verb := ans.Action.Verb
		if verb == core.VerbWaitTextPresence {
			ignoreActivity = true
		}
		if ans.ContentDesc == "Navigate up" && (verb == core.VerbWaitElementPresence || verb == core.VerbClick) {
			ignoreActivity = true
		}
	}

	allEmpty := true
	for _, e := range pred {
		if !e.IsEmpty() {
			allEmpty = false
			break
		}
	}
	if ans.IsEmpty() {
		if allEmpty {
			return TrueNegative, true
		}
		return FalsePositive, true
	}
	if allEmpty {
		return FalseNegative, true
	}
	for _, e := range pred {
		if !e.IsEmpty() && e.Equal(ans.Widget, ignoreActivity) {
			return TruePositive, true
		}
	}
	return FalsePositive, true
}

// calibrate folds numbered mail folders ("Inbox 3") into one name.
func calibrate(events []core.Event) []core.Event {
	out := make([]core.Event, len(events))
	for i, e := range events {
		if strings.HasSuffix(e.ResourceID, "folder_name") && inboxFolder.MatchString(e.Text) {
			e.Text = "Inbox"
		}
		out[i] = e
	}
	return out
}

// EvaluateRepo evaluates every migration of a scenario found in a test
// repository.
func EvaluateRepo(repo scenario.Repo, sol Solution, scenarioID string) (Result, error) {
	var total Result
	for _, cid := range sol.ConfigIDs(scenarioID) {
		source, err := scenario.Load(repo.SourcePath(cid))
		if err != nil {
			return total, err
		}
		expected, err := scenario.Load(repo.TargetPath(cid))
		if err != nil {
			return total, err
		}
		generated, err := scenario.Load(repo.GeneratedPath(cid))
		if err != nil {
			return total, err
		}
		res, err := Evaluate(sol, cid, source, expected, generated)
		if err != nil {
			return total, err
		}
		total = total.Add(res)
	}
	return total, nil
}
