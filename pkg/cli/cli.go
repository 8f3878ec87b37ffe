// Package cli provides the command-line interface for craftdroid.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Migration config file (default: craftdroid.yaml in the working directory)",
		EnvVars: []string{"CRAFTDROID_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"udid"},
		Usage:   "Device serial to run on",
		EnvVars: []string{"CRAFTDROID_DEVICE", "ANDROID_SERIAL"},
	},
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:    "similarity-url",
		Usage:   "Word2vec similarity service URL",
		EnvVars: []string{"CRAFTDROID_SIMILARITY_URL"},
	},
	&cli.StringFlag{
		Name:    "vectors",
		Usage:   "Local word2vec text vectors file (used instead of the service)",
		EnvVars: []string{"CRAFTDROID_VECTORS"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"CRAFTDROID_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the craftdroid application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "craftdroid",
		Usage:   "Migrate Android GUI tests between apps with similar features",
		Version: Version,
		Description: `craftdroid transfers a recorded GUI test of one app to another app of
the same category. It matches every recorded widget against the widgets
of the target app, validates the matches on a device through Appium and
writes the migrated test.

Examples:
  craftdroid migrate
  craftdroid --config a41a-a42a-b41.yaml migrate --resume
  craftdroid paths --static static/a42a .MainActivity .AddToDoActivity
  craftdroid evaluate --repo tests --solution solution.csv b41
  craftdroid --vectors glove.txt similarity "add task" "new todo"`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			migrateCommand,
			pathsCommand,
			graphCommand,
			evaluateCommand,
			similarityCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
