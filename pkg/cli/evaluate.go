package cli

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/seal-hub/CraftDroid/pkg/evaluate"
	"github.com/seal-hub/CraftDroid/pkg/scenario"
)

var evaluateCommand = &cli.Command{
	Name:      "evaluate",
	Usage:     "Compare migrated tests with recorded ground truth",
	ArgsUsage: "<scenario-or-config-id>...",
	Description: `Judge every migrated test of the given scenarios (e.g. b41) or
migrations (e.g. a41a-a42a-b41) against the recorded test of the target
app, using a solution file that maps source steps to target steps.

The test repository is laid out as
  <repo>/<group>/<scenario>/base/<app>.json
  <repo>/<group>/<scenario>/generated/<config id>.json

Examples:
  craftdroid evaluate --repo tests --solution solution.csv b41 b42
  craftdroid evaluate --repo tests --solution solution.csv --json a41a-a42a-b41`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "repo",
			Usage:    "Test repository root",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "solution",
			Usage:    "Solution CSV (aid_from, step_from, aid_to, step_to)",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the result as JSON",
		},
	},
	Action: runEvaluate,
}

func runEvaluate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one scenario or config id is required")
	}
	sol, err := evaluate.LoadSolution(c.String("solution"))
	if err != nil {
		return err
	}
	repo := scenario.Repo{Root: c.String("repo")}

	var total evaluate.Result
	for _, arg := range c.Args().Slice() {
		res, err := evaluateArg(repo, sol, arg)
		if err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		total = total.Add(res)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(total)
	}
	printEvaluation(total)
	return nil
}

// evaluateArg evaluates one migration when arg is a config id, otherwise
// every migration of the scenario arg.
func evaluateArg(repo scenario.Repo, sol evaluate.Solution, arg string) (evaluate.Result, error) {
	cid, err := scenario.ParseConfigID(arg)
	if err != nil {
		return evaluate.EvaluateRepo(repo, sol, arg)
	}
	source, err := scenario.Load(repo.SourcePath(cid))
	if err != nil {
		return evaluate.Result{}, err
	}
	expected, err := scenario.Load(repo.TargetPath(cid))
	if err != nil {
		return evaluate.Result{}, err
	}
	generated, err := scenario.Load(repo.GeneratedPath(cid))
	if err != nil {
		return evaluate.Result{}, err
	}
	return evaluate.Evaluate(sol, cid, source, expected, generated)
}
