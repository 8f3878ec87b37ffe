package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/seal-hub/CraftDroid/pkg/atg"
	"github.com/seal-hub/CraftDroid/pkg/core"
)

// Checkpoint is the search state at a round boundary. A search restored
// from it continues with the next round.
type Checkpoint struct {
	ID        string        `json:"id"`
	RunID     string        `json:"run_id"`
	Round     int           `json:"round"`
	Source    []core.Event  `json:"source"`
	Events    []core.Event  `json:"events"`
	Prev      []core.Event  `json:"prev"`
	FTarget   float64       `json:"f_target"`
	FPrev     float64       `json:"f_prev"`
	Catalogue []core.Widget `json:"catalogue"`
	Graph     atg.Snapshot  `json:"graph"`
	Nearest   *core.Event   `json:"nearest,omitempty"`
	TempEmail string        `json:"temp_email,omitempty"`
	Restarts  int           `json:"restarts"`
	Rounds    []RoundStats  `json:"rounds"`
	SavedAt   time.Time     `json:"saved_at"`
}

// Checkpoint captures the current state.
func (s *Search) Checkpoint() Checkpoint {
	cp := Checkpoint{
		ID:        s.cfg.ID,
		RunID:     s.runID,
		Round:     len(s.rounds),
		Source:    s.cfg.Source,
		Events:    cloneEvents(s.events),
		Prev:      cloneEvents(s.prev),
		FTarget:   s.fTarget,
		FPrev:     s.fPrev,
		Catalogue: s.catalogue.Widgets(),
		Graph:     s.graph.Snapshot(),
		TempEmail: s.bank.CurrentTempEmail(),
		Restarts:  s.restarts,
		Rounds:    append([]RoundStats(nil), s.rounds...),
		SavedAt:   time.Now(),
	}
	if s.nearest != nil {
		n := s.nearest.Clone()
		cp.Nearest = &n
	}
	return cp
}

// Restore replaces the search state with a checkpoint. The checkpoint must
// come from a search of the same scenario.
func (s *Search) Restore(cp Checkpoint) error {
	if cp.ID != "" && s.cfg.ID != "" && cp.ID != s.cfg.ID {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("checkpoint of %s cannot resume %s", cp.ID, s.cfg.ID))
	}
	if len(cp.Source) != len(s.cfg.Source) {
		return core.ErrInvalidConfig.WithMessage("checkpoint source scenario does not match")
	}
	if cp.RunID != "" {
		s.runID = cp.RunID
	}
	s.events = cloneEvents(cp.Events)
	s.prev = cloneEvents(cp.Prev)
	s.fTarget, s.fPrev = cp.FTarget, cp.FPrev
	s.catalogue = NewCatalogue()
	for _, w := range cp.Catalogue {
		s.catalogue.Put(w)
	}
	s.graph = atg.FromSnapshot(cp.Graph)
	s.nearest = nil
	if cp.Nearest != nil {
		n := cp.Nearest.Clone()
		s.nearest = &n
	}
	if cp.TempEmail != "" {
		s.bank.SetTempEmail(cp.TempEmail)
	}
	s.restarts = cp.Restarts
	s.rounds = append([]RoundStats(nil), cp.Rounds...)
	s.round = newRoundState()
	s.log.Infow("Restored checkpoint", "round", cp.Round, "fitness", cp.FTarget, "catalogue", s.catalogue.Len())
	return nil
}

func (s *Search) saveCheckpoint() error {
	if s.cfg.CheckpointPath == "" {
		return nil
	}
	if err := SaveCheckpoint(s.cfg.CheckpointPath, s.Checkpoint()); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// SaveCheckpoint writes a checkpoint as JSON. The file is replaced
// atomically so a crash never leaves a partial checkpoint.
func SaveCheckpoint(path string, cp Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadCheckpoint reads a checkpoint written by SaveCheckpoint.
func LoadCheckpoint(path string) (Checkpoint, error) {
	var cp Checkpoint
	data, err := os.ReadFile(path)
	if err != nil {
		return cp, err
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return cp, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return cp, nil
}

func cloneEvents(events []core.Event) []core.Event {
	if events == nil {
		return nil
	}
	out := make([]core.Event, len(events))
	for i := range events {
		out[i] = events[i].Clone()
	}
	return out
}
