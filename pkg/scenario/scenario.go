// Package scenario loads and saves event sequences and locates them in a
// test repository.
package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// Load reads events from a JSON or YAML file, chosen by extension.
func Load(path string) ([]core.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	events, err := Decode(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// Format is a scenario file encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// Decode parses a list of event records.
func Decode(data []byte, f Format) ([]core.Event, error) {
	var events []core.Event
	var err error
	switch f {
	case YAML:
		err = yaml.Unmarshal(data, &events)
	default:
		err = json.Unmarshal(data, &events)
	}
	if err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return events, nil
}

// Encode renders events in the given format. Resource ids are written
// fully qualified.
func Encode(events []core.Event, f Format) ([]byte, error) {
	folded := FoldIDPrefix(events)
	if f == YAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(folded); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if folded == nil {
		folded = []core.Event{}
	}
	return json.MarshalIndent(folded, "", "  ")
}

// Save writes events to path atomically, creating parent directories.
func Save(path string, events []core.Event) error {
	data, err := Encode(events, formatOf(path))
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create scenario dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write scenario: %w", err)
	}
	return nil
}

// FoldIDPrefix returns copies of the events with the id prefix moved back
// into the resource id. Empty and system events are left alone.
func FoldIDPrefix(events []core.Event) []core.Event {
	if events == nil {
		return nil
	}
	out := make([]core.Event, len(events))
	for i, e := range events {
		c := e.Clone()
		if !c.IsEmpty() && !c.IsSys() {
			c.ResourceID = c.IDPrefix + c.ResourceID
			c.IDPrefix = ""
		}
		out[i] = c
	}
	return out
}

// ParseMutations parses "long_press=swipe_right,swipe_right=long_press".
func ParseMutations(s string) (map[string]string, error) {
	m := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return m, nil
	}
	for _, pair := range strings.Split(s, ",") {
		from, to, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid mutation %q, want from=to", pair)
		}
		m[from] = to
	}
	return m, nil
}

// Mutate returns copies of the events with action verbs rewritten. All
// rewrites apply at once, so swapping two verbs works.
func Mutate(events []core.Event, mutations map[string]string) []core.Event {
	out := make([]core.Event, len(events))
	for i, e := range events {
		c := e.Clone()
		if to, ok := mutations[c.Action.Verb]; ok {
			c.Action.Verb = to
		}
		out[i] = c
	}
	return out
}

// Count returns how many events of each kind a sequence holds, keyed by
// the kind the event counts as.
func Count(events []core.Event) map[core.Kind]int {
	n := make(map[core.Kind]int)
	for _, e := range events {
		n[e.Category()]++
	}
	return n
}

// Summary renders Count as "gui=3 oracle=1".
func Summary(events []core.Event) string {
	counts := Count(events)
	kinds := make([]core.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
