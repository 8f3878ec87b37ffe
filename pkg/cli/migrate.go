package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/seal-hub/CraftDroid/pkg/atg"
	"github.com/seal-hub/CraftDroid/pkg/config"
	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/databank"
	"github.com/seal-hub/CraftDroid/pkg/device"
	"github.com/seal-hub/CraftDroid/pkg/driver/appium"
	"github.com/seal-hub/CraftDroid/pkg/logger"
	"github.com/seal-hub/CraftDroid/pkg/migrate"
	"github.com/seal-hub/CraftDroid/pkg/report"
	"github.com/seal-hub/CraftDroid/pkg/resource"
	"github.com/seal-hub/CraftDroid/pkg/scenario"
	"github.com/seal-hub/CraftDroid/pkg/similarity"
	"github.com/seal-hub/CraftDroid/pkg/widget"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Migrate the configured scenario to the target app",
	Description: `Run the migration described by the config file on a connected device.

Results are written to the output directory (default: <home>/output/<id>/):
  - <id>.json      the migrated test
  - report.json    per-round progress, rewritten after every round
  - atm.gv         the activity graph including learned transitions
  - craftdroid.log

Examples:
  craftdroid migrate
  craftdroid --config a41a-a42a-b41.yaml migrate --resume
  craftdroid migrate --mutate long_press=swipe_right --replay
  craftdroid migrate --metrics-addr :9090`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory (overrides the config)",
		},
		&cli.BoolFlag{
			Name:  "resume",
			Usage: "Continue from the last checkpoint of this migration",
		},
		&cli.BoolFlag{
			Name:  "replay",
			Usage: "Replay the migrated test on the device when done",
		},
		&cli.StringFlag{
			Name:  "mutate",
			Usage: "Rewrite source actions before migrating (from=to,...)",
		},
		&cli.BoolFlag{
			Name:  "reset-data",
			Usage: "Clear the target app data on every restart",
		},
		&cli.IntFlag{
			Name:  "top-k",
			Usage: "Candidates validated per source event",
		},
		&cli.IntFlag{
			Name:  "max-rounds",
			Usage: "Stop after this many rounds",
		},
		&cli.StringFlag{
			Name:    "avd",
			Usage:   "Boot this Android virtual device when no device is connected",
			EnvVars: []string{"CRAFTDROID_AVD"},
		},
		&cli.DurationFlag{
			Name:  "boot-timeout",
			Usage: "How long to wait for --avd to boot",
			Value: device.DefaultBootTimeout,
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "Serve Prometheus metrics on this address (e.g. :9090)",
			EnvVars: []string{"CRAFTDROID_METRICS_ADDR"},
		},
	},
	Action: runMigrate,
}

// migrateOptions are the command flags that do not live in the config.
type migrateOptions struct {
	Resume    bool
	Replay    bool
	Mutations map[string]string
}

func runMigrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyMigrateFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	mutations, err := scenario.ParseMutations(c.String("mutate"))
	if err != nil {
		return core.ErrInvalidConfig.WithCause(err)
	}
	opts := migrateOptions{
		Resume:    c.Bool("resume"),
		Replay:    c.Bool("replay"),
		Mutations: mutations,
	}

	outputDir := cfg.OutputDir()
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := logger.Init(filepath.Join(outputDir, "craftdroid.log")); err != nil {
		printWarning("Failed to initialize logger: %v", err)
	}
	logger.SetVerbose(c.Bool("verbose"))
	defer logger.Close()

	logger.Info("=== Migration %s started ===", cfg.ID)
	logger.Info("Output directory: %s", outputDir)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := c.String("metrics-addr"); addr != "" {
		shutdown := serveMetrics(addr)
		defer shutdown()
	}

	fmt.Printf("\n  %scraftdroid %s%s  %s\n\n", color(colorBold), Version, color(colorReset), cfg.ID)

	m, err := prepare(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer m.Close()

	dev, closeDev, err := attachDevice(ctx, cfg.Appium.UDID, c.String("avd"), c.Duration("boot-timeout"))
	if err != nil {
		return err
	}
	defer closeDev()

	act, closeAct, err := connect(ctx, cfg, dev, m.bank)
	if err != nil {
		return err
	}
	defer closeAct()

	fmt.Println()
	res, err := m.run(ctx, act)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %sMigrated test%s (fitness %.4f)\n", color(colorBold), color(colorReset), res.Fitness)
	printEvents(res.Events)
	fmt.Printf("\n  Saved %s\n", m.generatedPath())
	return nil
}

// loadConfig reads --config, or craftdroid.yaml from the working directory.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, err
	}
	applyGlobalFlags(c, cfg)
	return cfg, nil
}

// applyGlobalFlags lets flags set on the command line override the config.
func applyGlobalFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("device") {
		cfg.Appium.UDID = c.String("device")
	}
	if c.IsSet("appium-url") {
		cfg.Appium.URL = c.String("appium-url")
	}
	if c.IsSet("similarity-url") {
		cfg.Similarity.Backend = config.BackendService
		cfg.Similarity.URL = c.String("similarity-url")
	}
	if c.IsSet("vectors") {
		cfg.Similarity.Backend = config.BackendVectors
		cfg.Similarity.Vectors = c.String("vectors")
	}
}

func applyMigrateFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("reset-data") {
		cfg.ResetData = c.Bool("reset-data")
	}
	if c.IsSet("top-k") {
		cfg.TopK = c.Int("top-k")
	}
	if c.IsSet("max-rounds") {
		cfg.MaxRounds = c.Int("max-rounds")
	}
}

// migration holds everything a search needs except the device.
type migration struct {
	cfg    *config.Config
	opts   migrateOptions
	source []core.Event
	graph  *atg.Graph
	res    *resource.Info
	oracle similarity.Oracle
	bank   *databank.Databank
	policy migrate.EquivalencePolicy

	closers []func() error
}

// prepare loads the scenario and the static information of the target app
// and opens the similarity oracle.
func prepare(ctx context.Context, cfg *config.Config, opts migrateOptions) (*migration, error) {
	m := &migration{cfg: cfg, opts: opts}

	source, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err)
	}
	if len(opts.Mutations) > 0 {
		source = scenario.Mutate(source, opts.Mutations)
	}
	m.source = source
	printSetupSuccess(fmt.Sprintf("Scenario: %d events (%s)", len(source), scenario.Summary(source)))

	m.graph, m.res = atg.New(), resource.Empty()
	if cfg.StaticInfo != "" {
		if m.graph, err = atg.Load(cfg.StaticInfo); err != nil {
			return nil, err
		}
		if m.res, err = resource.Parse(ctx, cfg.StaticInfo); err != nil {
			return nil, err
		}
	}
	printSetupSuccess(fmt.Sprintf("Activity graph: %d nodes, %d edges", m.graph.NumNodes(), m.graph.NumEdges()))

	oracle, closeOracle, err := openOracle(cfg)
	if err != nil {
		return nil, err
	}
	m.oracle = oracle
	m.closers = append(m.closers, closeOracle)

	m.bank = newDatabank(cfg.Databank)
	m.policy, err = newPolicy(cfg.Equivalence, m.bank.Password)
	if err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the similarity cache.
func (m *migration) Close() {
	for _, fn := range m.closers {
		if err := fn(); err != nil {
			logger.Warn("Close failed: %v", err)
		}
	}
	m.closers = nil
}

func (m *migration) generatedPath() string {
	return filepath.Join(m.cfg.OutputDir(), m.cfg.ID+".json")
}

// run searches on act, keeps the report current and saves the result.
func (m *migration) run(ctx context.Context, act core.Actuator) (*migrate.Result, error) {
	cfg := m.cfg
	var writer *report.Writer
	search := migrate.New(act, migrate.Config{
		ID:            cfg.ID,
		TargetPackage: cfg.Target.Package,
		Source:        m.source,
		Graph:         m.graph,
		Resources:     m.res,
		Matcher: widget.NewMatcher(m.oracle, widget.Options{
			UseStopwords:       cfg.UseStopwords,
			ExpandButtonToText: cfg.ExpandButtonToText,
			CrossCheck:         cfg.CrossCheck,
		}),
		Databank:        m.bank,
		Policy:          m.policy,
		TopK:            cfg.TopK,
		Epsilon:         cfg.ConvergenceEpsilon,
		MaxRounds:       cfg.MaxRounds,
		MaxRestarts:     cfg.MaxRestarts,
		MaxExecFailures: cfg.MaxExecFailures,
		CheckpointPath:  cfg.CheckpointPath(),
		OnRound: func(r migrate.RoundStats) {
			onRound(r)
			if err := writer.RecordRound(reportRound(r)); err != nil {
				logger.Warn("Failed to update report: %v", err)
			}
		},
	})

	if m.opts.Resume {
		if err := resume(search, cfg.CheckpointPath()); err != nil {
			return nil, err
		}
	}

	writer = report.NewWriter(cfg.OutputDir(), &report.Report{
		RunID:    search.RunID(),
		ConfigID: cfg.ID,
		Source:   report.App{Package: cfg.Source.Package, Activity: cfg.Source.Activity},
		Target:   report.App{Package: cfg.Target.Package, Activity: cfg.Target.Activity},
		Device:   report.Device{ID: cfg.Appium.UDID, Platform: "android", Server: cfg.Appium.URL},
	})
	if err := writer.Start(); err != nil {
		return nil, err
	}

	res, err := search.Run(ctx)
	if err != nil {
		status := report.StatusFailed
		if errors.Is(err, context.Canceled) {
			status = report.StatusCancelled
		}
		if werr := writer.End(status, nil, err); werr != nil {
			logger.Warn("Failed to finish report: %v", werr)
		}
		return nil, err
	}

	out := m.generatedPath()
	if err := scenario.Save(out, res.Events); err != nil {
		return nil, err
	}
	if err := writeGraph(filepath.Join(cfg.OutputDir(), "atm.gv"), search.Graph()); err != nil {
		logger.Warn("Failed to export activity graph: %v", err)
	}
	final := &report.Final{
		Round:   chosenRound(res),
		Fitness: res.Fitness,
		Path:    out,
		Events:  res.Events,
	}
	if err := writer.End(report.StatusConverged, final, nil); err != nil {
		return nil, err
	}
	logger.Info("=== Migration %s finished: fitness %.4f after %d rounds ===", cfg.ID, res.Fitness, len(res.Rounds))

	if m.opts.Replay {
		printSetupStep("Replaying the migrated test...")
		if err := act.Perform(ctx, res.Events, core.PerformOptions{Reset: true}); err != nil {
			printWarning("Replay failed: %v", err)
			logger.Warn("Replay failed: %v", err)
		} else {
			printSetupSuccess("Replay finished")
		}
	}
	return res, nil
}

// resume restores the checkpoint at path. A missing checkpoint starts a
// fresh search.
func resume(search *migrate.Search, path string) error {
	cp, err := migrate.LoadCheckpoint(path)
	if errors.Is(err, fs.ErrNotExist) {
		printWarning("No checkpoint at %s, starting fresh", path)
		return nil
	}
	if err != nil {
		return err
	}
	if err := search.Restore(cp); err != nil {
		return err
	}
	printSetupSuccess(fmt.Sprintf("Resumed after round %d (fitness %.4f)", cp.Round, cp.FTarget))
	return nil
}

// chosenRound is the round whose sequence the result carries: the last
// one, or the one before when it scored higher.
func chosenRound(res *migrate.Result) int {
	n := len(res.Rounds)
	if n > 1 && res.PreviousFitness > res.FinalFitness {
		return res.Rounds[n-2].Index
	}
	if n > 0 {
		return res.Rounds[n-1].Index
	}
	return 0
}

func reportRound(r migrate.RoundStats) report.Round {
	return report.Round{
		Index:      r.Index,
		Fitness:    r.Fitness,
		Events:     r.Events,
		GUI:        r.GUI,
		Oracle:     r.Oracle,
		Stepping:   r.Stepping,
		Empty:      r.Empty,
		Backtracks: r.Backtracks,
		Explored:   r.Explored,
		Duration:   r.Duration.Milliseconds(),
	}
}

func newDatabank(cfg config.Databank) *databank.Databank {
	bank := databank.New()
	if cfg.Password != "" {
		bank.Password = cfg.Password
	}
	if cfg.LoginEmail != "" {
		bank.LoginEmail = cfg.LoginEmail
	}
	if cfg.FirstName != "" {
		bank.FirstName = cfg.FirstName
	}
	if cfg.LastName != "" {
		bank.LastName = cfg.LastName
	}
	if cfg.Seed != 0 {
		bank.WithSeed(cfg.Seed)
	}
	return bank
}

func newPolicy(cfg config.Equivalence, password string) (migrate.EquivalencePolicy, error) {
	p := migrate.EquivalencePolicy{Emails: cfg.Emails}
	if cfg.Password {
		p.Password = password
	}
	return p.CompilePatterns(cfg.Patterns)
}

// attachDevice finds the device to run on through adb, booting avd when
// none is connected. A nil device means adb is unavailable and Appium picks
// the device.
func attachDevice(ctx context.Context, serial, avd string, bootTimeout time.Duration) (*device.AndroidDevice, func(), error) {
	noop := func() {}
	dev, err := device.New(ctx, serial)
	if err == nil {
		return dev, noop, nil
	}
	if avd == "" {
		logger.Warn("adb unavailable, app data is cleared through Appium: %v", err)
		return nil, noop, nil
	}

	printSetupStep("Booting emulator " + avd + "...")
	dev, err = device.StartEmulator(ctx, device.EmulatorOptions{AVD: avd, BootTimeout: bootTimeout})
	if err != nil {
		return nil, nil, core.ErrServerUnreachable.WithMessage("could not boot emulator " + avd).WithCause(err)
	}
	printSetupSuccess("Emulator " + dev.Serial() + " booted")
	return dev, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := dev.Shutdown(ctx); err != nil {
			logger.Warn("Failed to shut down emulator: %v", err)
		}
	}, nil
}

// connect opens an Appium session on the target app. adb clears app data
// when a device is attached; otherwise Appium does.
func connect(ctx context.Context, cfg *config.Config, dev *device.AndroidDevice, bank *databank.Databank) (core.Actuator, func(), error) {
	var cleaner appium.DataCleaner
	serial := cfg.Appium.UDID
	if dev != nil {
		cleaner = dev
		serial = dev.Serial()
		if !dev.IsInstalled(ctx, cfg.Target.Package) {
			printWarning("%s does not seem to be installed on %s", cfg.Target.Package, serial)
		}
	}

	opts := appium.Options{
		Package:        cfg.Target.Package,
		Activity:       cfg.Target.Activity,
		ResetData:      cfg.ResetData,
		ActionInterval: cfg.ActionInterval,
	}
	printSetupStep(fmt.Sprintf("Connecting to Appium at %s...", cfg.Appium.URL))
	caps := appium.Capabilities(opts, serial, cfg.Appium.NewCommandTimeout)
	drv, err := appium.Dial(ctx, cfg.Appium.URL, caps, opts, cleaner, bank)
	if err != nil {
		return nil, nil, err
	}
	printSetupSuccess("Appium session " + drv.Client().SessionID())

	cleanup := func() {
		if err := drv.Close(); err != nil {
			logger.Warn("Failed to close Appium session: %v", err)
		}
	}
	return drv, cleanup, nil
}

// serveMetrics exposes the Prometheus registry until the returned function
// is called.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server: %v", err)
		}
	}()
	printSetupSuccess("Metrics on http://" + addr + "/metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
