package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/seal-hub/CraftDroid/pkg/config"
	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/logger"
	"github.com/seal-hub/CraftDroid/pkg/similarity"
	"github.com/seal-hub/CraftDroid/pkg/widget"
)

var similarityCommand = &cli.Command{
	Name:      "similarity",
	Usage:     "Score the similarity of two phrases",
	ArgsUsage: "<new-phrase> <old-phrase>",
	Description: `Tokenize two phrases the way widget texts are tokenized and ask the
configured oracle how similar they are.

Examples:
  craftdroid --vectors glove.txt similarity "add task" "new todo"
  craftdroid --similarity-url http://127.0.0.1:5000/w2v similarity "sign in" "log in"`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-stopwords",
			Usage: "Keep stopwords when tokenizing",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Do not use the persistent similarity cache",
		},
	},
	Action: runSimilarity,
}

func runSimilarity(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("two phrases are required")
	}
	cfg, err := oracleConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("no-cache") {
		cfg.Similarity.CacheDir = "-"
	}

	oracle, closeOracle, err := openOracle(cfg)
	if err != nil {
		return err
	}
	defer closeOracle()

	useStopwords := !c.Bool("no-stopwords")
	newWords := widget.Tokenize(core.AttrText, c.Args().Get(0), useStopwords)
	oldWords := widget.Tokenize(core.AttrText, c.Args().Get(1), useStopwords)
	fmt.Printf("  new: %s\n  old: %s\n", strings.Join(newWords, " "), strings.Join(oldWords, " "))

	score, ok, err := oracle.Similarity(c.Context, newWords, oldWords)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("  %sno signal%s\n", color(colorYellow), color(colorReset))
		return nil
	}
	fmt.Printf("  %ssimilarity %.4f%s\n", color(colorBold), score, color(colorReset))
	return nil
}

// oracleConfig is the config file when there is one, otherwise defaults;
// the global flags apply either way.
func oracleConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := loadConfig(c)
	if err == nil {
		return cfg, nil
	}
	if c.IsSet("config") {
		return nil, err
	}
	cfg = config.Default()
	applyGlobalFlags(c, cfg)
	return cfg, nil
}

// openOracle builds the configured similarity backend behind a persistent
// cache. A CacheDir of "-" keeps the cache in memory. The returned function
// closes the cache.
func openOracle(cfg *config.Config) (similarity.Oracle, func() error, error) {
	var inner similarity.Oracle
	switch cfg.Similarity.Backend {
	case config.BackendVectors:
		printSetupStep("Loading word vectors from " + cfg.Similarity.Vectors + "...")
		v, err := similarity.LoadVectors(cfg.Similarity.Vectors)
		if err != nil {
			return nil, nil, core.ErrInvalidConfig.WithCause(err)
		}
		printSetupSuccess(fmt.Sprintf("Word vectors: %d words, %d dimensions", v.Len(), v.Dim()))
		inner = v
	case config.BackendService, "":
		url := cfg.Similarity.URL
		if url == "" {
			url = config.DefaultSimilarityURL
		}
		inner = similarity.NewClient(url,
			similarity.WithRateLimit(cfg.Similarity.RatePerSecond),
			similarity.WithMaxTries(cfg.Similarity.MaxRetries),
		)
	default:
		return nil, nil, core.ErrInvalidConfig.WithMessage("unknown similarity backend " + cfg.Similarity.Backend)
	}

	noop := func() error { return nil }
	if cfg.Similarity.CacheDir == "-" {
		return similarity.NewCached(inner, similarity.NewMemoryStore()), noop, nil
	}
	backend := cfg.Similarity.Backend
	if backend == "" {
		backend = config.BackendService
	}
	dir := filepath.Join(cfg.SimilarityCacheDir(), backend)
	store, err := similarity.OpenBadgerCache(dir)
	if err != nil {
		logger.Warn("Similarity cache unavailable, using memory: %v", err)
		return similarity.NewCached(inner, similarity.NewMemoryStore()), noop, nil
	}
	cached := similarity.NewCached(inner, store)
	return cached, func() error {
		hits, misses := cached.Stats()
		logger.Info("Similarity cache: %d hits, %d misses", hits, misses)
		return store.Close()
	}, nil
}

