package widget

import (
	"strings"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// Classes are the widget classes collected from a screen, in collection order.
var Classes = []string{
	core.ClassEditText, core.ClassMultiAutoComplete, core.ClassTextView,
	core.ClassButton, core.ClassImageButton, core.ClassView,
}

const (
	launcherPackage = "com.android.launcher"
	facebookPrefix  = "com.facebook"
)

// OutOfScope reports whether a screen lies outside the app under test: the
// home screen, another package, or an external login hand-off.
func OutOfScope(pkg, act, targetPkg string) bool {
	return strings.Contains(pkg, launcherPackage) || pkg != targetPkg || strings.HasPrefix(act, facebookPrefix)
}

// Extract collects the enabled widgets of the known classes, grouped by
// class in the order of Classes. Package and activity are left empty.
func Extract(root *Node) []core.Widget {
	var out []core.Widget
	for _, class := range Classes {
		for _, e := range root.FindAll(class) {
			if w, ok := FromNode(e); ok {
				out = append(out, w)
			}
		}
	}
	return out
}

// FromNode builds a widget from an enabled element. The resource id is
// split into its package qualifier and bare id.
func FromNode(e *Node) (core.Widget, bool) {
	if e == nil || e.Attr("enabled") != "true" {
		return core.Widget{}, false
	}
	w := core.Widget{
		Class:       e.Class,
		Text:        e.Attr(core.AttrText),
		ContentDesc: e.Attr(core.AttrContentDesc),
		Clickable:   e.Attr(core.AttrClickable),
		Password:    e.Attr(core.AttrPassword),
		NAF:         e.Attr(core.AttrNAF),
	}
	w.IDPrefix, w.ResourceID = core.SplitResourceID(e.Attr(core.AttrResourceID))
	if w.Clickable == "false" && propagatesClickable(e) {
		w.Clickable = "true"
	}
	w.ParentText = parentText(e)
	w.SiblingText = siblingText(e)
	return w, true
}

// propagatesClickable reports whether a non-clickable element sits inside a
// clickable parent, or a clickable list up to two levels further up.
func propagatesClickable(e *Node) bool {
	p := e.Parent
	if p == nil {
		return false
	}
	if p.Attr(core.AttrClickable) == "true" {
		return true
	}
	for i := 0; i < 2; i++ {
		p = p.Parent
		if p == nil {
			return false
		}
		if p.Class == core.ClassListView && p.Attr(core.AttrClickable) == "true" {
			return true
		}
	}
	return false
}

func parentText(e *Node) string {
	p := e.Parent
	if p == nil {
		return ""
	}
	text := p.Attr(core.AttrText)
	if gp := p.Parent; gp != nil && isTextInputLayout(gp.Class) {
		text += gp.Attr(core.AttrText)
	}
	return text
}

func isTextInputLayout(class string) bool {
	return class == core.ClassTextInputLayout || strings.HasSuffix(class, "."+core.ClassTextInputLayout)
}

func siblingText(e *Node) string {
	p := e.Parent
	if p == nil || (p.Class != core.ClassLinearLayout && p.Class != core.ClassRelativeLayout) {
		return ""
	}
	if s := e.PrevSibling(); s != nil {
		return s.Attr(core.AttrText)
	}
	return ""
}

// NearestButton returns the first image button on the screen, else the
// first button, else the first text field.
func NearestButton(root *Node) (core.Widget, bool) {
	for _, class := range []string{core.ClassImageButton, core.ClassButton, core.ClassEditText} {
		if all := root.FindAll(class); len(all) > 0 {
			return FromNode(all[0])
		}
	}
	return core.Widget{}, false
}
