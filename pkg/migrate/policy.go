package migrate

import (
	"fmt"
	"regexp"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/databank"
)

// EquivalencePolicy decides whether two text inputs of a source scenario
// fill the same kind of field, e.g. an e-mail and its confirmation. Such
// inputs may be bound to the same target field.
type EquivalencePolicy struct {
	// Emails treats equal e-mail addresses as the same field.
	Emails bool
	// Password treats this shared password as the same field.
	Password string
	// Patterns treat equal values matching any of them as the same field,
	// e.g. phone numbers.
	Patterns []*regexp.Regexp
}

// DefaultPolicy accepts repeated e-mail addresses and the shared password.
func DefaultPolicy(password string) EquivalencePolicy {
	return EquivalencePolicy{Emails: true, Password: password}
}

// CompilePatterns adds value patterns to the policy.
func (p EquivalencePolicy) CompilePatterns(patterns []string) (EquivalencePolicy, error) {
	for _, s := range patterns {
		re, err := regexp.Compile(s)
		if err != nil {
			return p, core.ErrInvalidConfig.WithCause(fmt.Errorf("equivalence pattern %q: %w", s, err))
		}
		p.Patterns = append(p.Patterns, re)
	}
	return p, nil
}

// SameInput reports whether two send_keys events type the same value and
// the value is one the policy treats as a repeatable field.
func (p EquivalencePolicy) SameInput(a, b core.Event) bool {
	if !a.Action.IsSendKeys() || !b.Action.IsSendKeys() {
		return false
	}
	v := a.Action.InputText()
	if v != b.Action.InputText() {
		return false
	}
	return p.Repeatable(v)
}

// Repeatable reports whether a typed value may legitimately be entered in
// two fields.
func (p EquivalencePolicy) Repeatable(v string) bool {
	if p.Emails && databank.IsEmail(v) {
		return true
	}
	if p.Password != "" && v == p.Password {
		return true
	}
	for _, re := range p.Patterns {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

var textInputClasses = []string{core.ClassEditText, core.ClassMultiAutoComplete}

// SameField reports whether two source steps stand for one field, so that
// binding both to the same target field is not a conflict. Steps that are
// not both text inputs never conflict.
func (p EquivalencePolicy) SameField(a, b core.Event) bool {
	if !isOneOf(a.Class, textInputClasses) || !isOneOf(b.Class, textInputClasses) {
		return true
	}
	if p.SameInput(a, b) {
		return true
	}
	wa, wb := a.Widget, b.Widget
	wa.Text, wb.Text = "", ""
	return wa.Equal(wb, false)
}

func isOneOf(s string, list []string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
