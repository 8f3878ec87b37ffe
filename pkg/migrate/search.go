// Package migrate finds, for every event of a source scenario, an
// equivalent event in the target app.
//
// A Search runs rounds. Each round walks the source events in order,
// replays the target events found so far on the device, ranks the known
// target widgets against the source event and validates the best ones by
// driving the app to them along activity graph paths. Rounds repeat while
// the fitness of the resulting sequence improves.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seal-hub/CraftDroid/pkg/atg"
	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/databank"
	"github.com/seal-hub/CraftDroid/pkg/logger"
	"github.com/seal-hub/CraftDroid/pkg/resource"
	"github.com/seal-hub/CraftDroid/pkg/widget"
)

// Defaults for Config.
const (
	DefaultTopK            = 10
	DefaultEpsilon         = 0.001
	DefaultMaxRounds       = 20
	DefaultMaxRestarts     = 1
	DefaultMaxExecFailures = 10
)

// Config configures a Search.
type Config struct {
	ID            string // migration id, e.g. "a41a-a42a-b41"
	TargetPackage string
	Source        []core.Event

	Graph     *atg.Graph         // nil means no static call graph
	Resources *resource.Info     // nil means no static resources
	Matcher   *widget.Matcher    // required
	Cache     *widget.ScreenCache // nil creates one
	Databank  *databank.Databank // shared with the actuator; nil creates one
	Policy    EquivalencePolicy

	TopK            int     // candidates validated per event
	Epsilon         float64 // minimum fitness gain for another round
	MaxRounds       int
	MaxRestarts     int // restarts after rounds that match nothing
	MaxExecFailures int // consecutive replay failures before giving up

	// CheckpointPath, if set, receives a checkpoint after every round.
	CheckpointPath string

	// OnRound is called after every round.
	OnRound func(RoundStats)
}

// RoundStats describes one finished round.
type RoundStats struct {
	Index      int
	Fitness    float64
	Events     int
	GUI        int
	Oracle     int
	Stepping   int
	Empty      int
	Backtracks int
	Explored   bool
	Duration   time.Duration
}

// Result is the outcome of a search.
type Result struct {
	// Events is the better of the last two rounds.
	Events  []core.Event
	Fitness float64

	Final           []core.Event
	FinalFitness    float64
	Previous        []core.Event
	PreviousFitness float64

	Rounds []RoundStats
}

// Search migrates one source scenario to one target app. A Search is not
// safe for concurrent use.
type Search struct {
	cfg   Config
	act   core.Actuator
	log   *zap.SugaredLogger
	runID string

	graph     *atg.Graph
	res       *resource.Info
	catalogue *Catalogue
	cache     *widget.ScreenCache
	bank      *databank.Databank
	// scorer scores reached candidates with the default matcher options.
	scorer *widget.Matcher

	// nearest is the button closest to the last text an oracle waited
	// for, used to match a later check that the text disappeared.
	nearest *core.Event

	events  []core.Event
	prev    []core.Event
	fTarget float64
	fPrev   float64

	rounds   []RoundStats
	restarts int
	round    *roundState
}

// roundState is the state of the round in progress.
type roundState struct {
	index    int
	srcToTgt map[int]int
	invalid  map[int][]core.Event
	skipped  map[int][]core.Event

	// hostileOK allows paths through widgets known only by class and naf.
	hostileOK bool
	explored  bool

	rewindTo     int
	rewindReason string
	failures     int
	backtracks   int
	explorations int
}

func newRoundState() *roundState {
	return &roundState{
		srcToTgt: make(map[int]int),
		invalid:  make(map[int][]core.Event),
		skipped:  make(map[int][]core.Event),
	}
}

// New creates a search driving the target app through act.
func New(act core.Actuator, cfg Config) *Search {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.MaxRestarts < 0 {
		cfg.MaxRestarts = 0
	}
	if cfg.MaxExecFailures <= 0 {
		cfg.MaxExecFailures = DefaultMaxExecFailures
	}
	s := &Search{
		cfg:       cfg,
		act:       act,
		log:       logger.Named("migrate"),
		runID:     uuid.NewString(),
		graph:     cfg.Graph,
		res:       cfg.Resources,
		catalogue: NewCatalogue(),
		cache:     cfg.Cache,
		bank:      cfg.Databank,
		fPrev:     -1,
		round:     newRoundState(),
	}
	if s.graph == nil {
		s.graph = atg.New()
	}
	if s.res == nil {
		s.res = resource.Empty()
	}
	if s.cache == nil {
		s.cache = widget.NewScreenCache(widget.WithSession(s.runID))
	}
	if s.bank == nil {
		s.bank = databank.New()
	}
	if cfg.Matcher != nil {
		s.scorer = cfg.Matcher.Defaults()
	}
	s.catalogue.Seed(s.res.Catalogue())
	return s
}

// RunID identifies this search in reports and checkpoints.
func (s *Search) RunID() string { return s.runID }

// Graph returns the activity graph, including transitions learned so far.
func (s *Search) Graph() *atg.Graph { return s.graph }

// Catalogue returns the widgets known to the search.
func (s *Search) Catalogue() *Catalogue { return s.catalogue }

// Run searches until the fitness stops improving. It fails only when the
// context is cancelled, the device keeps failing, or a checkpoint cannot
// be written; an unmatched event just yields an empty event.
func (s *Search) Run(ctx context.Context) (*Result, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	for s.fTarget-s.fPrev > s.cfg.Epsilon && len(s.rounds) < s.cfg.MaxRounds {
		s.fPrev = s.fTarget
		s.prev = s.events
		s.events = nil
		s.round = newRoundState()

		start := time.Now()
		s.log.Infow("Starting round", "round", len(s.rounds)+1, "previous_fitness", s.fPrev)
		if err := s.runRound(ctx); err != nil {
			return s.result(), err
		}

		s.fTarget = Fitness(s.events)
		stats := s.roundStats(time.Since(start))
		s.rounds = append(s.rounds, stats)
		roundsTotal.Inc()
		roundFitness.Set(s.fTarget)
		roundDuration.Observe(stats.Duration.Seconds())
		cs := s.cache.Stats()
		s.log.Infow("Round finished", "round", stats.Index, "fitness", s.fTarget,
			"events", stats.Events, "empty", stats.Empty, "backtracks", stats.Backtracks,
			"screens", cs.Screens, "cache_session", cs.Session, "cache_updated", cs.Updated)

		if s.cfg.OnRound != nil {
			s.cfg.OnRound(stats)
		}

		if s.fTarget == 0 && s.fPrev == 0 && s.restarts < s.cfg.MaxRestarts {
			s.log.Infow("Nothing matched twice, exploring and starting over", "restart", s.restarts+1)
			s.restarts++
			if err := s.explore(ctx, nil); err != nil {
				return s.result(), err
			}
			s.events, s.prev = nil, nil
			s.fPrev = -1
		}
		if err := s.saveCheckpoint(); err != nil {
			return s.result(), err
		}
	}
	return s.result(), nil
}

func (s *Search) result() *Result {
	r := &Result{
		Final:           s.events,
		FinalFitness:    s.fTarget,
		Previous:        s.prev,
		PreviousFitness: s.fPrev,
		Rounds:          append([]RoundStats(nil), s.rounds...),
	}
	r.Events, r.Fitness = r.Final, r.FinalFitness
	if s.fPrev > s.fTarget {
		r.Events, r.Fitness = r.Previous, r.PreviousFitness
	}
	return r
}

func (s *Search) roundStats(d time.Duration) RoundStats {
	st := RoundStats{
		Index:      len(s.rounds) + 1,
		Fitness:    s.fTarget,
		Events:     len(s.events),
		Backtracks: s.round.backtracks,
		Explored:   s.round.explorations > 0,
		Duration:   d,
	}
	for _, e := range s.events {
		switch e.Kind {
		case core.KindGUI:
			st.GUI++
		case core.KindOracle:
			st.Oracle++
		case core.KindStepping:
			st.Stepping++
		case core.KindEmpty:
			st.Empty++
		case core.KindSys, core.KindUnknown:
		}
	}
	return st
}

// runRound drives the state machine over the source events once.
func (s *Search) runRound(ctx context.Context) error {
	state := StateAdvance
	for state != StateConverge {
		if err := ctx.Err(); err != nil {
			return err
		}
		var (
			o   Outcome
			err error
		)
		switch state {
		case StateAdvance:
			o = s.advance()
		case StateValidate:
			o, err = s.validate(ctx)
		case StateBacktrack:
			o = s.backtrack()
		case StateExplore:
			o, err = s.exploreForOracle(ctx)
		case StateConverge:
		}
		if err != nil {
			return err
		}
		next := Next(state, o)
		s.log.Debugw("Transition", "from", state, "outcome", o, "to", next, "step", s.round.index)
		state = next
	}
	return nil
}

// advance resolves the current source event when no device work is needed.
func (s *Search) advance() Outcome {
	r := s.round
	if r.index >= len(s.cfg.Source) {
		return OutcomeExhausted
	}
	src := s.cfg.Source[r.index]
	r.hostileOK = r.index == len(s.cfg.Source)-1 && src.Kind == core.KindOracle

	if ev, ok := s.copyFromOracle(); ok {
		s.log.Infow("Reusing the widget checked by the previous oracle", "step", r.index)
		s.bind(ev)
		return OutcomeBound
	}
	if src.IsSys() {
		s.bind(src.Clone())
		return OutcomeBound
	}
	return OutcomeNeedsDevice
}

// copyFromOracle handles an action on the widget the previous source
// oracle checked: the oracle's match is reused with the new action.
func (s *Search) copyFromOracle() (core.Event, bool) {
	r := s.round
	if r.index == 0 || len(s.events) == 0 {
		return core.Event{}, false
	}
	prevSrc, src := s.cfg.Source[r.index-1], s.cfg.Source[r.index]
	last := s.events[len(s.events)-1]
	if prevSrc.Kind != core.KindOracle || src.Kind != core.KindGUI || last.IsEmpty() {
		return core.Event{}, false
	}
	if !prevSrc.Equal(src.Widget, false) {
		return core.Event{}, false
	}
	ev := last.Clone()
	ev.Stepping = nil
	ev.Kind = core.KindGUI
	ev.Action = src.Action.Clone()
	if s.isSkipped(ev) {
		return core.Event{}, false
	}
	return ev, true
}

// bind appends the event for the current source event, preceded by the
// stepping events that reach it, and moves on.
func (s *Search) bind(ev core.Event) {
	r := s.round
	for _, st := range ev.Stepping {
		s.events = append(s.events, st.Clone())
	}
	s.events = append(s.events, ev)
	r.srcToTgt[r.index] = len(s.events) - 1
	r.index++
	boundTotal.WithLabelValues(ev.Kind.String()).Inc()
	s.log.Infow("Bound event", "step", r.index-1, "kind", ev.Kind, "class", ev.Class,
		"resource_id", ev.ResourceID, "text", ev.Text, "score", ev.Score, "stepping", len(ev.Stepping))
}

// validate finds the best reachable candidate for the current source event.
func (s *Search) validate(ctx context.Context) (Outcome, error) {
	r := s.round
	src := s.cfg.Source[r.index]

	screen, err := s.replay(ctx, src.Action.IsWait())
	if err != nil {
		return s.replayFailed(ctx, err)
	}
	s.observe(screen)

	candidates, limit := s.candidates(ctx, src)
	var bound *core.Event
	if src.Action.Verb == core.VerbWaitTextInvisible && s.nearest == nil {
		ev := core.NewEmptyEvent(src.Kind)
		bound = &ev
	}

	for i, m := range candidates {
		if bound != nil || i >= limit {
			break
		}
		w := m.Widget
		s.log.Infow("Validating candidate", "rank", i+1, "of", limit, "class", w.Class,
			"resource_id", w.ResourceID, "text", w.Text, "activity", w.Activity, "score", m.Score)
		if s.isInvalid(w) {
			s.log.Infow("Skipping a known broken candidate")
			validationsTotal.WithLabelValues(resultSkipped).Inc()
			continue
		}
		if lacksAwaitedAttr(src.Action, w) {
			s.log.Infow("Skipping a candidate without the attribute the oracle waits for")
			validationsTotal.WithLabelValues(resultSkipped).Inc()
			continue
		}

		ev, ok, err := s.checkReachability(ctx, w, screen)
		if err != nil {
			validationsTotal.WithLabelValues(resultError).Inc()
			r.invalid[r.index] = append(r.invalid[r.index], core.Event{Widget: w})
			return s.replayFailed(ctx, fmt.Errorf("validating candidate: %w", err))
		}
		if !ok {
			validationsTotal.WithLabelValues(resultUnreachable).Inc()
			continue
		}
		validationsTotal.WithLabelValues(resultReached).Inc()

		if ev.Class == core.ClassEditText && src.Action.IsSendKeys() {
			if s.isSkipped(ev) {
				s.log.Infow("Duplicated match already given up for this step")
				continue
			}
			if tgtIdx, srcIdx, mapped := s.mapped(ev); mapped && !s.cfg.Policy.SameField(s.cfg.Source[srcIdx], src) {
				if ev.Score <= s.events[tgtIdx].Score {
					s.log.Infow("Duplicated match scores lower than the earlier binding", "src_step", srcIdx)
					continue
				}
				s.log.Infow("Duplicated match scores higher, backtracking", "src_step", srcIdx)
				r.skipped[srcIdx] = append(r.skipped[srcIdx], s.events[tgtIdx].Clone())
				r.rewindTo, r.rewindReason = srcIdx, reasonConflict
				return OutcomeConflict, nil
			}
		}

		if w.Static {
			s.catalogue.Pop(w.Signature())
		}
		if src.Action.Verb == core.VerbWaitTextInvisible {
			gone, err := s.act.CheckTextInvisible(ctx, src)
			if err != nil && ctx.Err() != nil {
				return 0, ctx.Err()
			}
			if err != nil || !gone {
				ev = core.NewEmptyEvent(src.Kind)
				bound = &ev
				break
			}
		}
		ev = generateEvent(ev, src.Action)
		bound = &ev
	}

	if bound == nil {
		ev := core.NewEmptyEvent(src.Kind)
		bound = &ev
	}
	if bound.IsEmpty() && src.Kind == core.KindOracle && !r.explored {
		s.log.Infow("No match for an oracle, exploring the app", "step", r.index)
		return OutcomeUnmatchedOracle, nil
	}
	r.explored = false
	r.failures = 0
	s.bind(*bound)
	return OutcomeBound, nil
}

// candidates ranks the catalogue against the source event. A check that
// a text disappeared is matched through the button cached next to it.
func (s *Search) candidates(ctx context.Context, src core.Event) ([]widget.Match, int) {
	if src.Action.Verb == core.VerbWaitTextInvisible {
		if s.nearest == nil {
			return nil, 0
		}
		return s.cfg.Matcher.MostSimilar(ctx, *s.nearest, s.catalogue.Widgets()), 1
	}
	return s.cfg.Matcher.MostSimilar(ctx, src, s.catalogue.Widgets()), s.cfg.TopK
}

// lacksAwaitedAttr reports whether a wait_until_element_presence oracle
// selects on an attribute the candidate leaves empty.
func lacksAwaitedAttr(a core.Action, w core.Widget) bool {
	if a.Verb != core.VerbWaitElementPresence {
		return false
	}
	for _, attr := range []string{core.AttrClass, core.AttrResourceID, core.AttrText, core.AttrContentDesc} {
		if w.Get(attr) != "" {
			continue
		}
		selector := attr
		if attr == core.AttrResourceID {
			selector = core.SelectorID
		}
		if a.SelectorType() == selector {
			return true
		}
		if a.SelectorType() == core.SelectorXPath && strings.Contains(a.Selector(), "@"+attr) {
			return true
		}
	}
	return false
}

// replayFailed plans a one-step backtrack after the device rejected the
// target sequence or a candidate path. Failures count until a step binds.
func (s *Search) replayFailed(ctx context.Context, err error) (Outcome, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	r := s.round
	r.failures++
	s.log.Warnw("Replaying target events failed", "step", r.index, "category", core.CategoryOf(err), "error", err)
	if r.failures >= s.cfg.MaxExecFailures {
		return 0, fmt.Errorf("replay failed %d times in a row: %w", r.failures, err)
	}
	r.rewindTo, r.rewindReason = r.index-1, reasonExecution
	if r.rewindTo < 0 {
		r.rewindTo = 0
	}
	if len(s.events) > 0 && r.index > 0 {
		r.invalid[r.rewindTo] = append(r.invalid[r.rewindTo], s.events[len(s.events)-1].Clone())
	}
	return OutcomeExecFailed, nil
}

// backtrack applies the planned rewind.
func (s *Search) backtrack() Outcome {
	r := s.round
	s.log.Infow("Backtracking", "from", r.index, "to", r.rewindTo, "reason", r.rewindReason)
	backtracksTotal.WithLabelValues(r.rewindReason).Inc()
	r.backtracks++
	s.truncate(r.rewindTo)
	r.index = r.rewindTo
	r.explored = false
	return OutcomeRewound
}

// truncate drops the target events bound to source step `to` and later.
func (s *Search) truncate(to int) {
	r := s.round
	if to == 0 {
		s.events = nil
	} else if idx, ok := r.srcToTgt[to-1]; ok && idx+1 <= len(s.events) {
		s.events = s.events[:idx+1]
	}
	for k := range r.srcToTgt {
		if k >= to {
			delete(r.srcToTgt, k)
		}
	}
}

// exploreForOracle explores from the current state once before an oracle
// is left unmatched.
func (s *Search) exploreForOracle(ctx context.Context) (Outcome, error) {
	if err := s.explore(ctx, s.events); err != nil {
		return 0, err
	}
	s.round.explored = true
	s.round.explorations++
	return OutcomeExplored, nil
}

func (s *Search) isInvalid(w core.Widget) bool {
	for _, e := range s.round.invalid[s.round.index] {
		if w.Equal(e.Widget, false) {
			return true
		}
	}
	return false
}

// isSkipped reports whether the match was given up for the current step
// in favour of a later one.
func (s *Search) isSkipped(ev core.Event) bool {
	for _, sk := range s.round.skipped[s.round.index] {
		if ev.Equal(sk.Widget, false) || ev.Equal(withTypedText(sk).Widget, false) {
			return true
		}
	}
	return false
}

// mapped finds an earlier text field binding to the same target field.
func (s *Search) mapped(ev core.Event) (tgtIdx, srcIdx int, ok bool) {
	tgtIdx = -1
	for i, e := range s.events {
		if e.Class != core.ClassEditText || !e.Action.IsSendKeys() {
			continue
		}
		if ev.Equal(e.Widget, false) || ev.Equal(withTypedText(e).Widget, false) {
			tgtIdx = i
			break
		}
	}
	if tgtIdx < 0 {
		return -1, -1, false
	}
	for si, ti := range s.round.srcToTgt {
		if ti == tgtIdx {
			return tgtIdx, si, true
		}
	}
	return -1, -1, false
}

// withTypedText returns the event as its field looks after typing.
func withTypedText(e core.Event) core.Event {
	c := e.Clone()
	c.Text = e.Action.InputText()
	return c
}

var errNoSource = errors.New("migrate: no source events")

// Validate checks the configuration before a run.
func (c Config) Validate() error {
	if len(c.Source) == 0 {
		return core.ErrInvalidConfig.WithCause(errNoSource)
	}
	if c.Matcher == nil {
		return core.ErrInvalidConfig.WithMessage("migrate: matcher is required")
	}
	if c.TargetPackage == "" {
		return core.ErrInvalidConfig.WithMessage("migrate: target package is required")
	}
	return nil
}
