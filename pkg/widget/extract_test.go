package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

func TestExtract(t *testing.T) {
	root, err := ParseHierarchy(addTaskXML)
	require.NoError(t, err)

	ws := Extract(root)
	require.Len(t, ws, 5)

	var classes []string
	for _, w := range ws {
		classes = append(classes, w.Class)
	}
	assert.Equal(t, []string{
		core.ClassEditText, core.ClassTextView, core.ClassTextView, core.ClassButton, core.ClassImageButton,
	}, classes)

	title := ws[0]
	assert.Equal(t, "et_title", title.ResourceID)
	assert.Equal(t, "a.todo:id/", title.IDPrefix)
	assert.Equal(t, "Title", title.SiblingText)
	assert.Equal(t, "true", title.Clickable)
	assert.Empty(t, title.ParentText)

	label := ws[1]
	assert.Equal(t, "Title", label.Text)
	assert.Equal(t, "false", label.Clickable)

	item := ws[2]
	assert.Equal(t, "Buy milk", item.Text)
	assert.Equal(t, "true", item.Clickable, "clickable list rows make their labels clickable")

	fab := ws[4]
	assert.Equal(t, "Add task", fab.ContentDesc)
	assert.Equal(t, "true", fab.NAF)
}

func TestFromNode_Disabled(t *testing.T) {
	root, err := ParseHierarchy(addTaskXML)
	require.NoError(t, err)

	buttons := root.FindAll(core.ClassButton)
	_, ok := FromNode(buttons[1])
	assert.False(t, ok)
	_, ok = FromNode(nil)
	assert.False(t, ok)
}

func TestParentText_TextInputLayout(t *testing.T) {
	src := `<hierarchy>
  <node class="com.google.android.material.textfield.TextInputLayout" text="Email" enabled="true">
    <node class="android.widget.FrameLayout" text="" enabled="true">
      <node class="android.widget.EditText" text="" resource-id="p:id/email" enabled="true" clickable="true"/>
    </node>
  </node>
</hierarchy>`
	root, err := ParseHierarchy(src)
	require.NoError(t, err)

	ws := Extract(root)
	require.Len(t, ws, 1)
	assert.Equal(t, "Email", ws[0].ParentText)
}

func TestOutOfScope(t *testing.T) {
	assert.False(t, OutOfScope("a.todo", ".Main", "a.todo"))
	assert.True(t, OutOfScope("b.other", ".Main", "a.todo"))
	assert.True(t, OutOfScope("com.android.launcher3", ".Home", "com.android.launcher3"))
	assert.True(t, OutOfScope("a.todo", "com.facebook.LoginActivity", "a.todo"))
}

func TestNearestButton(t *testing.T) {
	root, err := ParseHierarchy(addTaskXML)
	require.NoError(t, err)

	w, ok := NearestButton(root)
	require.True(t, ok)
	assert.Equal(t, "fab_add", w.ResourceID)

	root, err = ParseHierarchy(`<hierarchy><node class="android.widget.Button" text="OK" enabled="true"/></hierarchy>`)
	require.NoError(t, err)
	w, ok = NearestButton(root)
	require.True(t, ok)
	assert.Equal(t, "OK", w.Text)

	root, err = ParseHierarchy(`<hierarchy><node class="android.widget.TextView" text="hi" enabled="true"/></hierarchy>`)
	require.NoError(t, err)
	_, ok = NearestButton(root)
	assert.False(t, ok)
}
