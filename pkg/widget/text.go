package widget

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// AttrActivity tokenizes an activity name such as ".ui.AddTaskActivity".
const AttrActivity = "Activity"

var stopwords = toSet(
	"ourselves", "hers", "between", "yourself", "but", "again", "there", "about", "once", "during",
	"out", "very", "having", "with", "they", "own", "an", "be", "some", "for", "do", "its", "yours",
	"such", "into", "of", "most", "itself", "other", "off", "is", "s", "am", "or", "who", "as", "from",
	"him", "each", "the", "themselves", "until", "below", "are", "we", "these", "your", "his", "through",
	"don", "nor", "me", "were", "her", "more", "himself", "this", "down", "should", "our", "their",
	"while", "above", "both", "up", "to", "ours", "had", "she", "all", "no", "when", "at", "any",
	"before", "them", "same", "and", "been", "have", "in", "will", "on", "does", "yourselves", "then",
	"that", "because", "what", "over", "why", "so", "can", "did", "not", "now", "under", "he", "you",
	"herself", "has", "just", "where", "too", "only", "myself", "which", "those", "i", "after", "few",
	"whom", "t", "being", "if", "theirs", "my", "against", "a", "by", "doing", "it", "how", "further",
	"was", "here", "than",
)

// expansions of abbreviated id tokens, by short class name.
var expansions = map[string]map[string][]string{
	"EditText":    {"et": {"edit", "text"}},
	"ImageButton": {"bt": {"button"}, "btn": {"button"}, "fab": {"floating", "action", "button"}},
	"Button":      {"bt": {"button"}, "btn": {"button"}},
	"TextView":    {"tv": {"text", "view"}},
}

// idMerges joins adjacent id tokens.
var idMerges = [][3]string{
	{"to", "do", "todo"},
	{"sign", "up", "signup"},
	{"log", "in", "login"},
}

// textMerges replace a whole token list.
var textMerges = []struct {
	words  []string
	merged string
}{
	{[]string{"Log", "In"}, "Login"},
}

// siblingMerges replace a leading phrase of sibling text.
var siblingMerges = []struct {
	words  []string
	merged string
}{
	{[]string{"Sign", "in"}, "Signin"},
	{[]string{"Sign", "Up"}, "Sign_Up"},
}

var textReplacer = strings.NewReplacer("%", "percent", "# of", "number of", "# Of", "number Of")

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// CamelCaseSplit splits an identifier at lower-to-upper boundaries and
// before the last capital of an acronym: "parseHTTPResponse" gives
// [parse HTTP Response].
func CamelCaseSplit(s string) []string {
	r := []rune(s)
	if len(r) == 0 {
		return nil
	}
	var out []string
	start := 0
	for i := 1; i < len(r); i++ {
		lowerUpper := isASCIILower(r[i-1]) && isASCIIUpper(r[i])
		acronymEnd := isASCIIUpper(r[i-1]) && isASCIIUpper(r[i]) && i+1 < len(r) && isASCIILower(r[i+1])
		if lowerUpper || acronymEnd {
			out = append(out, string(r[start:i]))
			start = i
		}
	}
	return append(out, string(r[start:]))
}

func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }
func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

// Sanitize normalizes free text: whitespace becomes a space, integral
// numbers lose their fraction, a few symbols are spelled out, and anything
// other than letters, digits and underscores becomes a space.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f != 0 && f == math.Trunc(f) && math.Abs(f) < 1e18 {
		s = strconv.FormatInt(int64(f), 10)
	}
	s = textReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r == '_' || r == ' ' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == ' ' }), " ")
}

// Tokenize splits an attribute value into words. Identifiers are split on
// underscores and camel case and lowercased; text is split on spaces.
// Stop words are dropped only when more than one token remains.
func Tokenize(attr, s string, useStopwords bool) []string {
	if s == "" {
		return nil
	}
	var res []string
	switch attr {
	case core.AttrResourceID:
		_, id := core.SplitResourceID(s)
		res = mergeID(splitIdentifier(Sanitize(id)))
	case core.AttrText, core.AttrContentDesc, core.AttrParentText, core.AttrSiblingText:
		res = mergeText(strings.Fields(Sanitize(s)))
		if attr == core.AttrSiblingText {
			res = mergeSiblingText(res)
		}
	case AttrActivity:
		if i := strings.LastIndex(s, "."); i >= 0 {
			s = s[i+1:]
		}
		res = splitIdentifier(Sanitize(s))
	default:
		return nil
	}
	if useStopwords {
		res = removeStopwords(res)
	}
	return res
}

func splitIdentifier(s string) []string {
	if s == "" {
		return nil
	}
	var res []string
	for _, tok := range strings.Split(s, "_") {
		for _, part := range CamelCaseSplit(tok) {
			res = append(res, strings.ToLower(part))
		}
	}
	return res
}

func mergeID(words []string) []string {
	for _, m := range idMerges {
		l, r := indexOf(words, m[0]), indexOf(words, m[1])
		if l >= 0 && r >= 0 && l == r-1 {
			merged := append([]string(nil), words[:l]...)
			merged = append(merged, m[2])
			words = append(merged, words[r+1:]...)
		}
	}
	return words
}

func mergeText(words []string) []string {
	for _, m := range textMerges {
		if equalWords(m.words, words) {
			return []string{m.merged}
		}
	}
	return words
}

func mergeSiblingText(words []string) []string {
	for _, m := range siblingMerges {
		n := len(m.words)
		if len(words) >= n && equalWords(m.words, words[:n]) {
			return append([]string{m.merged}, words[n:]...)
		}
	}
	return words
}

func removeStopwords(tokens []string) []string {
	if len(tokens) <= 1 {
		return tokens
	}
	out := tokens[:0:0]
	for _, t := range tokens {
		if !stopwords[t] {
			out = append(out, t)
		}
	}
	return out
}

// ExpandText replaces abbreviated id tokens ("btn", "et") with their words
// for the widget's class. Other attributes are returned unchanged.
func ExpandText(class, attr string, tokens []string) []string {
	if attr != core.AttrResourceID {
		return tokens
	}
	if i := strings.LastIndex(class, "."); i >= 0 {
		class = class[i+1:]
	}
	table, ok := expansions[class]
	if !ok {
		return tokens
	}
	var out []string
	for _, t := range tokens {
		if exp, ok := table[t]; ok {
			out = append(out, exp...)
		} else {
			out = append(out, t)
		}
	}
	return out
}

func indexOf(words []string, w string) int {
	for i, x := range words {
		if x == w {
			return i
		}
	}
	return -1
}

func equalWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
