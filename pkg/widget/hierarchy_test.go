package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

func TestParseHierarchy(t *testing.T) {
	root, err := ParseHierarchy(addTaskXML)
	require.NoError(t, err)

	assert.Equal(t, "hierarchy", root.Class)
	require.Len(t, root.Children, 1)
	frame := root.Children[0]
	assert.Equal(t, "android.widget.FrameLayout", frame.Class)
	assert.Equal(t, 1, frame.Depth)
	assert.Equal(t, core.Bounds{X: 0, Y: 0, Width: 1080, Height: 1920}, frame.Bounds)
	assert.Len(t, frame.Children, 5)

	buttons := root.FindAll(core.ClassButton)
	require.Len(t, buttons, 2)
	assert.Equal(t, "Save ", buttons[0].Attr(core.AttrText), "character references are dropped")
}

func TestParseHierarchy_Errors(t *testing.T) {
	_, err := ParseHierarchy("")
	assert.ErrorContains(t, err, "no root element")

	_, err = ParseHierarchy("<hierarchy><node class=\"a\">")
	assert.Error(t, err)
}

func TestNode_NAFSpellings(t *testing.T) {
	root, err := ParseHierarchy(`<hierarchy><node class="x" NAF="true"/><node class="y" naf="false"/></hierarchy>`)
	require.NoError(t, err)

	assert.Equal(t, "true", root.Children[0].Attr(core.AttrNAF))
	assert.True(t, root.Children[0].HasAttr(core.AttrNAF))
	assert.Equal(t, "false", root.Children[1].Attr(core.AttrNAF))
	assert.False(t, root.Children[0].HasAttr(core.AttrText))
}

func TestNode_PrevSibling(t *testing.T) {
	root, err := ParseHierarchy(`<hierarchy><node class="a"/><node class="b"/></hierarchy>`)
	require.NoError(t, err)

	assert.Nil(t, root.Children[0].PrevSibling())
	assert.Same(t, root.Children[0], root.Children[1].PrevSibling())
	assert.Nil(t, root.PrevSibling())
}

func TestNode_ElementsNamedByClass(t *testing.T) {
	root, err := ParseHierarchy(`<hierarchy><android.widget.Button text="Go" enabled="true"/></hierarchy>`)
	require.NoError(t, err)

	all := root.FindAll(core.ClassButton)
	require.Len(t, all, 1)
	assert.Equal(t, "Go", all[0].Attr(core.AttrText))
}

func TestSignature(t *testing.T) {
	root, err := ParseHierarchy(`<hierarchy><node class="a"/><node class="b"><node class="c"/></node></hierarchy>`)
	require.NoError(t, err)
	assert.Equal(t, "p!.Main!0+0-1!0-0+0-1-0", Signature(root, "p", ".Main"))

	other, err := ParseHierarchy(`<hierarchy><node class="b"><node class="c"/></node><node class="a"/></hierarchy>`)
	require.NoError(t, err)
	assert.NotEqual(t, Signature(root, "p", ".Main"), Signature(other, "p", ".Main"))

	same, err := ParseHierarchy(`<hierarchy><node class="x" text="changed"/><node class="y"><node class="z"/></node></hierarchy>`)
	require.NoError(t, err)
	assert.Equal(t, Signature(root, "p", ".Main"), Signature(same, "p", ".Main"), "only the structure counts")
}
