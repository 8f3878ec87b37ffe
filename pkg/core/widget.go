package core

import "strings"

// Widget attribute keys as they appear in UI hierarchies and event records.
const (
	AttrClass       = "class"
	AttrResourceID  = "resource-id"
	AttrText        = "text"
	AttrContentDesc = "content-desc"
	AttrClickable   = "clickable"
	AttrPassword    = "password"
	AttrNAF         = "naf"
	AttrPackage     = "package"
	AttrActivity    = "activity"
	AttrParentText  = "parent_text"
	AttrSiblingText = "sibling_text"
)

// FeatureKeys are the attributes that identify a widget, in signature order.
// NAF marks a "not accessibility friendly" widget, e.g. an icon-only back button.
var FeatureKeys = []string{
	AttrClass, AttrResourceID, AttrText, AttrContentDesc, AttrClickable, AttrPassword, AttrNAF,
}

// TextAttrs are the text-bearing attributes used for similarity.
var TextAttrs = []string{
	AttrResourceID, AttrText, AttrContentDesc, AttrParentText, AttrSiblingText,
}

// Widget classes reported by UI Automator.
const (
	ClassEditText          = "android.widget.EditText"
	ClassMultiAutoComplete = "android.widget.MultiAutoCompleteTextView"
	ClassTextView          = "android.widget.TextView"
	ClassButton            = "android.widget.Button"
	ClassImageButton       = "android.widget.ImageButton"
	ClassView              = "android.view.View"
	ClassListView          = "android.widget.ListView"
	ClassLinearLayout      = "android.widget.LinearLayout"
	ClassRelativeLayout    = "android.widget.RelativeLayout"
	ClassTextInputLayout   = "TextInputLayout"
)

// Widget is a snapshot of one UI element.
//
// ResourceID holds the bare id for widgets extracted from a live screen, with
// the package qualifier kept in IDPrefix. Widgets loaded from recorded
// scenarios usually carry the fully qualified id and no prefix.
//
// Static widgets come from resource files rather than a live screen. They
// never carry clickable or password values.
type Widget struct {
	Class       string `json:"class" yaml:"class"`
	ResourceID  string `json:"resource-id" yaml:"resource-id"`
	IDPrefix    string `json:"id-prefix,omitempty" yaml:"id-prefix,omitempty"`
	Text        string `json:"text" yaml:"text"`
	ContentDesc string `json:"content-desc" yaml:"content-desc"`
	Clickable   string `json:"clickable,omitempty" yaml:"clickable,omitempty"`
	Password    string `json:"password,omitempty" yaml:"password,omitempty"`
	NAF         string `json:"naf" yaml:"naf"`
	Package     string `json:"package" yaml:"package"`
	Activity    string `json:"activity" yaml:"activity"`
	ParentText  string `json:"parent_text" yaml:"parent_text"`
	SiblingText string `json:"sibling_text" yaml:"sibling_text"`
	Static      bool   `json:"static,omitempty" yaml:"static,omitempty"`
}

// Get returns the value of a widget attribute by key.
func (w Widget) Get(key string) string {
	switch key {
	case AttrClass:
		return w.Class
	case AttrResourceID:
		return w.ResourceID
	case AttrText:
		return w.Text
	case AttrContentDesc:
		return w.ContentDesc
	case AttrClickable:
		return w.Clickable
	case AttrPassword:
		return w.Password
	case AttrNAF:
		return w.NAF
	case AttrPackage:
		return w.Package
	case AttrActivity:
		return w.Activity
	case AttrParentText:
		return w.ParentText
	case AttrSiblingText:
		return w.SiblingText
	}
	return ""
}

// Set assigns a widget attribute by key. Unknown keys are ignored.
func (w *Widget) Set(key, value string) {
	switch key {
	case AttrClass:
		w.Class = value
	case AttrResourceID:
		w.ResourceID = value
	case AttrText:
		w.Text = value
	case AttrContentDesc:
		w.ContentDesc = value
	case AttrClickable:
		w.Clickable = value
	case AttrPassword:
		w.Password = value
	case AttrNAF:
		w.NAF = value
	case AttrPackage:
		w.Package = value
	case AttrActivity:
		w.Activity = value
	case AttrParentText:
		w.ParentText = value
	case AttrSiblingText:
		w.SiblingText = value
	}
}

// Has reports whether the attribute is carried at all. Static widgets lack
// clickable and password.
func (w Widget) Has(key string) bool {
	if w.Static && (key == AttrClickable || key == AttrPassword) {
		return false
	}
	return true
}

// Signature is the widget's identity: feature values followed by package and
// activity, joined by "!".
func (w Widget) Signature() string {
	parts := make([]string, 0, len(FeatureKeys)+2)
	for _, k := range FeatureKeys {
		parts = append(parts, w.Get(k))
	}
	parts = append(parts, w.Package, w.Activity)
	return strings.Join(parts, "!")
}

// StaticSignature is the signature the widget would have if it had been
// read from resource files, i.e. without clickable and password.
func (w Widget) StaticSignature() string {
	s := w
	s.Clickable, s.Password = "", ""
	return s.Signature()
}

// QualifiedID returns the resource id with its package qualifier restored.
func (w Widget) QualifiedID() string {
	return w.IDPrefix + w.ResourceID
}

// Equal compares feature keys (except naf), and package/activity unless
// ignoreActivity is set. Resource ids are compared fully qualified.
func (w Widget) Equal(other Widget, ignoreActivity bool) bool {
	if w.Static != other.Static {
		return false
	}
	if w.Class != other.Class || w.Text != other.Text || w.ContentDesc != other.ContentDesc {
		return false
	}
	if w.Clickable != other.Clickable || w.Password != other.Password {
		return false
	}
	if w.QualifiedID() != other.QualifiedID() {
		return false
	}
	if !ignoreActivity && (w.Package != other.Package || w.Activity != other.Activity) {
		return false
	}
	return true
}

// HasText reports whether any text-bearing attribute is non-empty.
func (w Widget) HasText() bool {
	for _, a := range TextAttrs {
		if w.Get(a) != "" {
			return true
		}
	}
	return false
}

// IsClickable reports whether the widget was observed as clickable.
func (w Widget) IsClickable() bool {
	return w.Clickable == "true"
}

// IsNAF reports whether the widget is flagged not accessibility friendly.
func (w Widget) IsNAF() bool {
	return w.NAF == "true"
}

// ShortClass returns the class name without its package, e.g. "EditText".
func (w Widget) ShortClass() string {
	if i := strings.LastIndex(w.Class, "."); i >= 0 {
		return w.Class[i+1:]
	}
	return w.Class
}

// Screen returns the key under which the widget's screen is known to the
// activity graph.
func (w Widget) Screen() string {
	return w.Package + w.Activity
}

// SplitResourceID splits "pkg:id/name" into ("pkg:id/", "name").
func SplitResourceID(rid string) (prefix, id string) {
	i := strings.LastIndex(rid, "/")
	if i < 0 {
		return "", rid
	}
	return rid[:i+1], rid[i+1:]
}
