package widget

import (
	"regexp"
	"sort"
	"strings"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

var criteriaEscaper = strings.NewReplacer("+", `\+`, "?", `\?`)

// Locate finds the first element, in document order, whose attributes
// match every non-empty criterion and returns it as a widget. Values are
// regular expressions searched anywhere in the attribute, except that a
// resource id must end the attribute value. Criteria that do not compile
// are matched literally.
func Locate(root *Node, criteria map[string]string) (core.Widget, bool) {
	if root == nil {
		return core.Widget{}, false
	}
	type matcher struct {
		key string
		re  *regexp.Regexp
	}
	keys := make([]string, 0, len(criteria))
	for k, v := range criteria {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return core.Widget{}, false
	}
	sort.Strings(keys)
	matchers := make([]matcher, 0, len(keys))
	for _, k := range keys {
		pattern := criteriaEscaper.Replace(criteria[k])
		if k == core.AttrResourceID {
			pattern += "$"
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			re = regexp.MustCompile(regexp.QuoteMeta(criteria[k]))
			if k == core.AttrResourceID {
				re = regexp.MustCompile(regexp.QuoteMeta(criteria[k]) + "$")
			}
		}
		matchers = append(matchers, matcher{key: k, re: re})
	}

	var found *Node
	root.Walk(func(e *Node) bool {
		for _, m := range matchers {
			v, ok := e.Class, true
			if m.key != core.AttrClass {
				v, ok = e.Attr(m.key), e.HasAttr(m.key)
			}
			if !ok || !m.re.MatchString(v) {
				return true
			}
		}
		found = e
		return false
	})
	if found == nil {
		return core.Widget{}, false
	}
	return FromNode(found)
}
