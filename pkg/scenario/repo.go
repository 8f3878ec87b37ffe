package scenario

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ConfigID names one migration, e.g. "a41a-a42a-b41": source app, target
// app and scenario. The first two characters of an app id name its group.
type ConfigID struct {
	From     string
	To       string
	Scenario string
}

// ParseConfigID splits a migration id.
func ParseConfigID(s string) (ConfigID, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[0]) < 2 || parts[1] == "" || parts[2] == "" {
		return ConfigID{}, fmt.Errorf("invalid config id %q, want <from>-<to>-<scenario>", s)
	}
	return ConfigID{From: parts[0], To: parts[1], Scenario: parts[2]}, nil
}

// String joins the id back together.
func (c ConfigID) String() string {
	return c.From + "-" + c.To + "-" + c.Scenario
}

// Group is the app group both apps belong to, e.g. "a4".
func (c ConfigID) Group() string {
	return c.From[:2]
}

// Repo is a test repository laid out as
// <root>/<group>/<scenario>/base/<app>.json for recorded tests and
// <root>/<group>/<scenario>/generated/<config id>.json for migrated ones.
type Repo struct {
	Root string
}

func (r Repo) dir(c ConfigID) string {
	return filepath.Join(r.Root, c.Group(), c.Scenario)
}

// SourcePath is the recorded test of the source app.
func (r Repo) SourcePath(c ConfigID) string {
	return filepath.Join(r.dir(c), "base", c.From+".json")
}

// TargetPath is the recorded test of the target app, the ground truth.
func (r Repo) TargetPath(c ConfigID) string {
	return filepath.Join(r.dir(c), "base", c.To+".json")
}

// GeneratedPath is where the migrated test is saved.
func (r Repo) GeneratedPath(c ConfigID) string {
	return filepath.Join(r.dir(c), "generated", c.String()+".json")
}
