package appium

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

// DefaultFindTimeout is how long a widget located by content-desc may take
// to appear.
const DefaultFindTimeout = 10 * time.Second

// locate finds the element for a recorded widget. Attributes are tried in
// order: resource id, content-desc, text, then the NAF flag.
func (d *Driver) locate(ctx context.Context, w core.Widget) (string, error) {
	switch {
	case w.ResourceID != "":
		return d.locateByID(ctx, w)
	case w.ContentDesc != "":
		xp := attrXPath(w.Class, "content-desc", w.ContentDesc)
		if err := d.waitFor(ctx, DefaultFindTimeout, ByXPath, xp, true); err != nil {
			if isWaitTimeout(err) {
				return "", core.ErrElementNotFound.WithCause(err)
			}
			return "", err
		}
		return d.client.FindElement(ctx, ByXPath, xp)
	case w.Text != "":
		return d.client.FindElement(ctx, ByXPath, attrXPath(w.Class, "text", w.Text))
	case w.IsNAF():
		return d.client.FindElement(ctx, ByXPath, fmt.Sprintf(`//%s[@NAF="true"]`, classOrAny(w.Class)))
	default:
		return "", core.ErrNoLocator.WithDetails(map[string]interface{}{"widget": w.Signature()})
	}
}

// locateByID looks the widget up by its qualified resource id. When several
// elements share the id, the text or content-desc picks one.
func (d *Driver) locateByID(ctx context.Context, w core.Widget) (string, error) {
	rid := w.QualifiedID()
	ids, err := d.client.FindElements(ctx, ByID, rid)
	if err != nil {
		return "", err
	}
	switch {
	case len(ids) == 0:
		return "", core.ErrElementNotFound.WithDetails(map[string]interface{}{"resource-id": rid})
	case len(ids) == 1 || (w.Text == "" && w.ContentDesc == ""):
		return ids[0], nil
	}

	attr, val := "text", w.Text
	if val == "" {
		attr, val = "content-desc", w.ContentDesc
	}
	xp := fmt.Sprintf("//%s[contains(@%s, %s) and @resource-id=%s]", classOrAny(w.Class), attr, xpathLiteral(val), xpathLiteral(rid))
	return d.client.FindElement(ctx, ByXPath, xp)
}

func attrXPath(class, attr, value string) string {
	return fmt.Sprintf("//%s[@%s=%s]", classOrAny(class), attr, xpathLiteral(value))
}

func containsTextXPath(text string) string {
	return fmt.Sprintf("//*[contains(@text, %s)]", xpathLiteral(text))
}

func classOrAny(class string) string {
	if class == "" {
		return "*"
	}
	return class
}

// xpathLiteral quotes s for use in an XPath 1.0 expression, which has no
// escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
