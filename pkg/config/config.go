// Package config handles configuration for craftdroid migrations.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// Defaults applied before the file is read.
const (
	DefaultTopK           = 10
	DefaultEpsilon        = 0.001
	DefaultActionInterval = 2 * time.Second
	DefaultAppiumURL      = "http://127.0.0.1:4723"
	DefaultSimilarityURL  = "http://127.0.0.1:5000/w2v"
	DefaultRatePerSecond  = 20
	DefaultMaxRetries     = 3
	DefaultMaxRestarts    = 1
)

// Similarity backends.
const (
	BackendService = "service"
	BackendVectors = "vectors"
)

// File names looked up by LoadFromDir.
var configNames = []string{"craftdroid.yaml", "craftdroid.yml", "config.yaml", "config.yml"}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})
}

// App names an Android app and its launch activity.
type App struct {
	Package  string `yaml:"package" validate:"required"`
	Activity string `yaml:"activity"`
}

// Appium configures the automation server.
type Appium struct {
	URL               string        `yaml:"url" validate:"required,url"`
	UDID              string        `yaml:"udid"`
	NewCommandTimeout time.Duration `yaml:"newCommandTimeout" validate:"gte=0"`
}

// Similarity configures the lexical similarity oracle.
type Similarity struct {
	// Backend is "service" for the word2vec HTTP service or "vectors" for a
	// local vector file.
	Backend       string  `yaml:"backend" validate:"oneof=service vectors"`
	URL           string  `yaml:"url" validate:"omitempty,url"`
	Vectors       string  `yaml:"vectors" validate:"required_if=Backend vectors"`
	CacheDir      string  `yaml:"cacheDir"`
	RatePerSecond float64 `yaml:"ratePerSecond" validate:"gte=0"`
	MaxRetries    uint    `yaml:"maxRetries"`
}

// Databank overrides the values typed into forms.
type Databank struct {
	Password   string `yaml:"password"`
	LoginEmail string `yaml:"loginEmail" validate:"omitempty,email"`
	FirstName  string `yaml:"firstName"`
	LastName   string `yaml:"lastName"`
	// Seed makes temporary e-mail addresses reproducible; 0 means random.
	Seed uint64 `yaml:"seed"`
}

// Equivalence lists which repeated inputs may share a target field.
type Equivalence struct {
	Emails   bool     `yaml:"emails"`
	Password bool     `yaml:"password"`
	Patterns []string `yaml:"patterns" validate:"dive,regexp"`
}

// Config describes one migration (config.yaml).
type Config struct {
	ID     string `yaml:"id" validate:"required"`
	Source App    `yaml:"source"`
	Target App    `yaml:"target"`

	// Scenario is the source event file.
	Scenario string `yaml:"scenario" validate:"required"`
	// StaticInfo holds atm/atm.gv, atm/constantInfo.csv, AndroidManifest.xml
	// and res/ of the target app. Optional.
	StaticInfo    string `yaml:"staticInfo"`
	Output        string `yaml:"output"`
	CheckpointDir string `yaml:"checkpointDir"`
	ResetData     bool   `yaml:"resetData"`

	UseStopwords       bool          `yaml:"useStopwords"`
	ExpandButtonToText bool          `yaml:"expandButtonToText"`
	CrossCheck         bool          `yaml:"crossCheck"`
	TopK               int           `yaml:"topK" validate:"gt=0"`
	ConvergenceEpsilon float64       `yaml:"convergenceEpsilon" validate:"gt=0"`
	MaxRounds          int           `yaml:"maxRounds" validate:"gte=0"`
	MaxRestarts        int           `yaml:"maxRestarts" validate:"gte=0"`
	MaxExecFailures    int           `yaml:"maxExecFailures" validate:"gte=0"`
	ActionInterval     time.Duration `yaml:"actionInterval" validate:"gte=0"`

	Appium      Appium      `yaml:"appium"`
	Similarity  Similarity  `yaml:"similarity"`
	Databank    Databank    `yaml:"databank"`
	Equivalence Equivalence `yaml:"equivalence"`

	// Path is the file the config was loaded from.
	Path string `yaml:"-"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	return &Config{
		UseStopwords:       true,
		TopK:               DefaultTopK,
		ConvergenceEpsilon: DefaultEpsilon,
		MaxRestarts:        DefaultMaxRestarts,
		ActionInterval:     DefaultActionInterval,
		Appium:             Appium{URL: DefaultAppiumURL},
		Similarity: Similarity{
			Backend:       BackendService,
			URL:           DefaultSimilarityURL,
			RatePerSecond: DefaultRatePerSecond,
			MaxRetries:    DefaultMaxRetries,
		},
		Equivalence: Equivalence{Emails: true, Password: true},
	}
}

// Load loads configuration from a file. Relative paths in the file are
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes a YAML config over the defaults. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, core.ErrInvalidConfig.WithCause(err)
	}
	return cfg, nil
}

// LoadFromDir looks for craftdroid.yaml (or config.yaml) in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range configNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("no %s in %s", configNames[0], dir))
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || p == "-" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Scenario = abs(c.Scenario)
	c.StaticInfo = abs(c.StaticInfo)
	c.Output = abs(c.Output)
	c.CheckpointDir = abs(c.CheckpointDir)
	c.Similarity.Vectors = abs(c.Similarity.Vectors)
	c.Similarity.CacheDir = abs(c.Similarity.CacheDir)
}

// OutputDir returns where results go: the configured output directory, or
// <home>/output/<id>.
func (c *Config) OutputDir() string {
	if c.Output != "" {
		return c.Output
	}
	return filepath.Join(GetHome(), "output", c.ID)
}

// CheckpointPath returns <checkpointDir>/<id>.json, the checkpoint
// directory defaulting to <home>/cache/checkpoints.
func (c *Config) CheckpointPath() string {
	dir := c.CheckpointDir
	if dir == "" {
		dir = filepath.Join(GetCacheDir(), "checkpoints")
	}
	return filepath.Join(dir, c.ID+".json")
}

// SimilarityCacheDir returns the persistent similarity cache directory,
// defaulting to <home>/cache/similarity.
func (c *Config) SimilarityCacheDir() string {
	if c.Similarity.CacheDir != "" {
		return c.Similarity.CacheDir
	}
	return filepath.Join(GetCacheDir(), "similarity")
}

// Validate checks the config against its struct tags.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.ErrInvalidConfig.WithCause(err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Namespace() + ": " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return core.ErrInvalidConfig.WithMessage("invalid configuration: " + strings.Join(msgs, ", ")).WithCause(err)
}
