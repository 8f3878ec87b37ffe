package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/seal-hub/CraftDroid/pkg/atg"
	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/migrate"
)

var pathsCommand = &cli.Command{
	Name:      "paths",
	Usage:     "List activity graph paths between two activities",
	ArgsUsage: "<from-activity> <to-activity>",
	Description: `Enumerate the event paths the search would try to reach one activity
from another. Activities may be given with or without the package.

Examples:
  craftdroid paths --static static/a42a .MainActivity .AddToDoActivity
  craftdroid paths --checkpoint a41a-a42a-b41.json .MainActivity .AddToDoActivity`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "static",
			Usage: "Static info directory holding atm/atm.gv",
		},
		&cli.StringFlag{
			Name:  "checkpoint",
			Usage: "Use the graph learned by a migration checkpoint",
		},
		&cli.StringFlag{
			Name:  "package",
			Usage: "Package prefixed to activities starting with a dot",
		},
		&cli.BoolFlag{
			Name:  "hostile",
			Usage: "Include paths through widgets known only by class",
		},
	},
	Action: runPaths,
}

var graphCommand = &cli.Command{
	Name:  "graph",
	Usage: "Export an activity graph in DOT format",
	Description: `Print the static activity graph, or the graph learned by a migration,
in DOT format. The output can be loaded again as atm/atm.gv.

Examples:
  craftdroid graph --static static/a42a
  craftdroid graph --checkpoint a41a-a42a-b41.json -o atm.gv`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "static",
			Usage: "Static info directory holding atm/atm.gv",
		},
		&cli.StringFlag{
			Name:  "checkpoint",
			Usage: "Use the graph learned by a migration checkpoint",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to this file instead of stdout",
		},
	},
	Action: runGraph,
}

// graphFrom loads the graph named by --checkpoint or --static.
func graphFrom(c *cli.Context) (*atg.Graph, error) {
	switch {
	case c.String("checkpoint") != "":
		cp, err := migrate.LoadCheckpoint(c.String("checkpoint"))
		if err != nil {
			return nil, err
		}
		return atg.FromSnapshot(cp.Graph), nil
	case c.String("static") != "":
		return atg.Load(c.String("static"))
	}
	return nil, core.ErrInvalidConfig.WithMessage("--static or --checkpoint is required")
}

func runPaths(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("from and to activities are required")
	}
	g, err := graphFrom(c)
	if err != nil {
		return err
	}
	from := qualify(c.String("package"), c.Args().Get(0))
	to := qualify(c.String("package"), c.Args().Get(1))

	paths := g.PathsBetweenActivities(from, to, c.Bool("hostile"))
	if len(paths) == 0 {
		fmt.Printf("  %sNo path from %s to %s%s\n", color(colorYellow), from, to, color(colorReset))
		return nil
	}
	for i, p := range paths {
		fmt.Printf("  %s[%d]%s\n", color(colorCyan), i, color(colorReset))
		for _, hop := range p.Events() {
			fmt.Printf("    %s\n", hop)
		}
	}
	return nil
}

func runGraph(c *cli.Context) error {
	g, err := graphFrom(c)
	if err != nil {
		return err
	}
	if out := c.String("output"); out != "" {
		if err := writeGraph(out, g); err != nil {
			return err
		}
		fmt.Printf("  %d nodes, %d edges, %d self-loops written to %s\n", g.NumNodes(), g.NumEdges(), g.NumSelfLoops(), out)
		return nil
	}
	return g.WriteDOT(c.App.Writer)
}

// writeGraph exports g as DOT to path.
func writeGraph(path string, g *atg.Graph) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := g.WriteDOT(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// qualify prefixes a dotted activity with its package.
func qualify(pkg, activity string) string {
	if pkg != "" && len(activity) > 0 && activity[0] == '.' {
		return pkg + activity
	}
	return activity
}
