package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// FileName is the report file inside the output directory.
const FileName = "report.json"

// Writer provides thread-safe updates to the report. Every update is
// flushed to disk immediately.
type Writer struct {
	mu     sync.Mutex
	path   string
	report *Report
	now    func() time.Time
}

// NewWriter creates a writer for a report in outputDir.
func NewWriter(outputDir string, r *Report) *Writer {
	if r.Version == "" {
		r.Version = Version
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	return &Writer{
		path:   filepath.Join(outputDir, FileName),
		report: r,
		now:    time.Now,
	}
}

// Path returns where the report is written.
func (w *Writer) Path() string { return w.path }

// Start marks the run as started.
func (w *Writer) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.report.Status = StatusRunning
	w.report.StartTime = w.now()
	return w.flushLocked()
}

// RecordRound appends a finished round.
func (w *Writer) RecordRound(r Round) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.report.Rounds = append(w.report.Rounds, r)
	return w.flushLocked()
}

// End records the chosen sequence and the final status.
func (w *Writer) End(status Status, final *Final, runErr error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.report.EndTime = &now
	w.report.Status = status
	w.report.Final = final
	if runErr != nil {
		msg := runErr.Error()
		w.report.Error = &msg
	}
	return w.flushLocked()
}

// Report returns a copy of the current report.
func (w *Writer) Report() Report {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := *w.report
	r.Rounds = append([]Round(nil), w.report.Rounds...)
	return r
}

func (w *Writer) flushLocked() error {
	w.report.UpdateSeq++
	w.report.LastUpdated = w.now()
	w.report.Summary = w.computeSummary()
	return atomicWriteJSON(w.path, w.report)
}

// computeSummary derives the summary from the rounds and the final sequence.
func (w *Writer) computeSummary() Summary {
	s := Summary{Rounds: len(w.report.Rounds)}
	for i, r := range w.report.Rounds {
		if i == 0 || r.Fitness > s.BestFitness {
			s.BestFitness, s.BestRound = r.Fitness, r.Index
		}
	}
	if w.report.Final != nil {
		for _, e := range w.report.Final.Events {
			switch {
			case e.IsEmpty():
				s.Unmatched++
			case e.Kind == core.KindGUI || e.Kind == core.KindOracle:
				s.Matched++
			}
		}
	}
	return s
}

// Read loads a report file.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}

// atomicWriteJSON writes v to path through a temporary file and a rename,
// so readers never see a partial file.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteJSON atomically writes any value as indented JSON.
func WriteJSON(path string, v any) error {
	return atomicWriteJSON(path, v)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
