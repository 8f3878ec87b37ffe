package widget

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/logger"
	"github.com/seal-hub/CraftDroid/pkg/similarity"
)

// attrWeights pairs with core.TextAttrs.
var attrWeights = []float64{1, 1, 1, 1, 0.5}

var crossAttrs = []string{core.AttrText, core.AttrParentText}

var urlText = regexp.MustCompile(`https://\w+\.\w+`)

// Options tune the matcher.
type Options struct {
	UseStopwords       bool
	ExpandButtonToText bool
	CrossCheck         bool
}

// Match is a candidate widget and its similarity to a source widget.
type Match struct {
	Widget core.Widget `json:"widget"`
	Score  float64     `json:"score"`
}

// Matcher scores candidate widgets against a source widget using a
// lexical similarity oracle.
type Matcher struct {
	oracle similarity.Oracle
	opts   Options
	log    *zap.SugaredLogger
}

// NewMatcher returns a matcher backed by the given oracle.
func NewMatcher(oracle similarity.Oracle, opts Options) *Matcher {
	return &Matcher{oracle: oracle, opts: opts, log: logger.Named("widget")}
}

// Defaults returns a matcher on the same oracle with stop words dropped
// and no optional expansion.
func (m *Matcher) Defaults() *Matcher {
	return &Matcher{oracle: m.oracle, opts: Options{UseStopwords: true}, log: m.log}
}

func (m *Matcher) tokens(w core.Widget, attr string) []string {
	return ExpandText(w.Class, attr, Tokenize(attr, w.Get(attr), m.opts.UseStopwords))
}

// sim asks the oracle; errors and zero scores count as no signal.
func (m *Matcher) sim(ctx context.Context, a, b []string) (float64, bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}
	s, ok, err := m.oracle.Similarity(ctx, a, b)
	if err != nil {
		m.log.Debugw("No similarity signal", "new", a, "old", b, "error", err)
		return 0, false
	}
	if !ok || s == 0 {
		return 0, false
	}
	return s, true
}

// WeightedSim scores a candidate against a source widget. It returns false
// when either widget has no text-bearing attribute.
func (m *Matcher) WeightedSim(ctx context.Context, cand, src core.Widget) (float64, bool) {
	if !cand.HasText() || !src.HasText() {
		return 0, false
	}

	scores := make([]float64, 0, len(core.TextAttrs)+3)
	signals := 0
	for i, attr := range core.TextAttrs {
		score := 0.0
		if s, ok := m.sim(ctx, m.tokens(cand, attr), m.tokens(src, attr)); ok {
			signals++
			score = s * attrWeights[i]
			// Without text or parent text on either side the sibling is the main label.
			if attr == core.AttrSiblingText && (src.Text+src.ParentText == "" || cand.Text+cand.ParentText == "") {
				score = s
			}
		}
		scores = append(scores, score)
	}

	if cross, ok := m.bestCross(ctx, cand, src, crossAttrs); ok {
		scores = append(scores, cross)
	}
	if signals == 0 && m.opts.CrossCheck {
		if cross, ok := m.bestCross(ctx, cand, src, core.TextAttrs); ok {
			scores = append(scores, cross)
		}
	}

	state, _ := m.sim(ctx,
		Tokenize(AttrActivity, src.Activity, m.opts.UseStopwords),
		Tokenize(AttrActivity, cand.Activity, m.opts.UseStopwords))
	scores = append(scores, state)

	total := 0.0
	for _, s := range scores {
		total += s
	}
	return total / float64(len(scores)), true
}

// bestCross returns the best similarity between different attributes of
// the two widgets.
func (m *Matcher) bestCross(ctx context.Context, cand, src core.Widget, attrs []string) (float64, bool) {
	best, found := 0.0, false
	for _, a1 := range attrs {
		for _, a2 := range attrs {
			if a1 == a2 || cand.Get(a1) == "" || src.Get(a2) == "" {
				continue
			}
			if s, ok := m.sim(ctx, m.tokens(cand, a1), m.tokens(src, a2)); ok && (!found || s > best) {
				best, found = s, true
			}
		}
	}
	return best, found
}

// targetClasses returns the classes a source widget may map to.
func (m *Matcher) targetClasses(src core.Event) []string {
	classes := []string{src.Class}
	verb := src.Action.Verb
	switch src.Class {
	case core.ClassImageButton, core.ClassButton:
		classes = []string{core.ClassImageButton, core.ClassButton}
		if m.opts.ExpandButtonToText {
			classes = append(classes, core.ClassTextView)
		}
	case core.ClassTextView:
		if src.IsClickable() {
			classes = append(classes, core.ClassImageButton, core.ClassButton)
			if urlText.MatchString(src.Text) {
				classes = append(classes, core.ClassEditText)
			}
		} else if strings.HasPrefix(verb, core.VerbWaitTextPresence) {
			classes = append(classes, core.ClassEditText)
		}
	case core.ClassEditText:
		classes = append(classes, core.ClassMultiAutoComplete)
		if strings.HasPrefix(verb, core.VerbWaitTextPresence) || urlText.MatchString(src.Text) {
			classes = append(classes, core.ClassTextView)
		}
	case core.ClassMultiAutoComplete:
		classes = append(classes, core.ClassEditText)
	}
	return classes
}

// MostSimilar ranks candidates against a source event, best first, with
// ties broken by word overlap with the source text.
// Candidates of an unrelated class, with a different password flag, or
// with a different clickable flag are not scored, except that wait
// oracles accept text fields and labels and swipes accept labels
// regardless of clickability. Static candidates skip the flag checks.
func (m *Matcher) MostSimilar(ctx context.Context, src core.Event, candidates []core.Widget) []Match {
	classes := m.targetClasses(src)
	var out []Match
	for _, w := range candidates {
		if !contains(classes, w.Class) {
			continue
		}
		if w.Has(core.AttrPassword) && w.Password != src.Password {
			continue
		}
		if !m.evaluable(src, w) {
			continue
		}
		if score, ok := m.WeightedSim(ctx, w, src.Widget); ok && score != 0 {
			out = append(out, Match{Widget: w, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	breakTies(out, src.Text)
	return out
}

func (m *Matcher) evaluable(src core.Event, w core.Widget) bool {
	if w.Static {
		return true
	}
	if w.Clickable == src.Clickable {
		return true
	}
	switch {
	case src.Action.IsWait():
		return w.Class == core.ClassEditText || w.Class == core.ClassTextView
	case src.Action.IsSwipe():
		return w.Class == core.ClassTextView
	}
	return false
}

// breakTies orders each run of equally scored matches by how many words
// their text shares with the source text, ignoring case. Matches without
// text go last in their run; otherwise the order is kept.
func breakTies(ranked []Match, srcText string) {
	if srcText == "" {
		return
	}
	srcWords := wordSet(srcText)
	overlap := func(m Match) int {
		if m.Widget.Text == "" {
			return -1
		}
		n := 0
		for w := range wordSet(m.Widget.Text) {
			if srcWords[w] {
				n++
			}
		}
		return n
	}
	for i := 0; i < len(ranked); {
		j := i + 1
		for j < len(ranked) && ranked[j].Score == ranked[i].Score {
			j++
		}
		if run := ranked[i:j]; len(run) > 1 {
			sort.SliceStable(run, func(a, b int) bool { return overlap(run[a]) > overlap(run[b]) })
		}
		i = j
	}
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
