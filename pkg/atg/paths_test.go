package atg

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

const fourNodes = `digraph G {
  A -> B [label="GUI (open)"];
  B -> C [label="GUI (save)"];
  B -> D [label="GUI (NULL)"];
}`

func TestPathsBetweenActivities_StaticLabels(t *testing.T) {
	g := mustParse(t, fourNodes)

	got := g.PathsBetweenActivities("A", "C", false)
	want := []Path{{"A", "open (B)", "B", "save (C)", "C"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, g.PathsBetweenActivities("A", "D", false), "NULL edges are not traversable")
	assert.Empty(t, g.PathsBetweenActivities("A", "Z", false))
}

func TestPathsBetweenNodes_PrefersFirstGUILabel(t *testing.T) {
	g := mustParse(t, `digraph G {
  A -> B [label="CALL"];
  A -> B [label="GUI (add)"];
  A -> B [label="GUI (edit)"];
}`)
	got := g.PathsBetweenNodes("A", "B", false)
	assert.Equal(t, []Path{{"A", "add (B)", "B"}}, got)
}

func TestPathsBetweenNodes_SkipsShortChains(t *testing.T) {
	g := mustParse(t, `digraph G { A -> B [label="CALL"]; }`)
	assert.Empty(t, g.PathsBetweenNodes("A", "B", true))
}

func TestPathsBetweenNodes_SelfLoopAugmentation(t *testing.T) {
	g := mustParse(t, `digraph G {
  "a.A: void onCreate(android.os.Bundle)" -> "a.B: void onCreate(android.os.Bundle)" [label="GUI (open)"];
  "a.B: void onCreate(android.os.Bundle)" -> "a.C: void onCreate(android.os.Bundle)" [label="GUI (save)"];
}`)
	menu := stepping(core.ClassImageButton, "", "More options")
	tab := stepping(core.ClassButton, "tab", "Tab")
	g.AddEdge("a.C", "a.C", menu)
	g.AddEdge("a.B", "a.B", tab)

	loopC := DynamicLabel(menu.Widget, core.VerbClick)
	loopB := DynamicLabel(tab.Widget, core.VerbClick)

	got := g.PathsBetweenActivities("a.A", "a.C", false)
	want := []Path{
		{"a.A", "open (onCreate)", "a.B", "save (onCreate)", "a.C"},
		{"a.A", "open (onCreate)", "a.B", "save (onCreate)", loopC, "a.C"},
		{"a.A", "open (onCreate)", "a.B", loopB, "save (onCreate)", "a.C"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
	assertNoDuplicates(t, got)
	for _, p := range got {
		for i := 1; i < len(p); i++ {
			assert.False(t, IsEvent(p[i]) && p[i] == p[i-1], "label repeated next to itself in %v", p)
		}
	}
}

func TestPathsBetweenNodes_SelfLoopNotRepeated(t *testing.T) {
	g := New()
	next := stepping(core.ClassButton, "next", "Next")
	g.AddEdge("a.A", "a.B", next)
	g.AddEdge("a.B", "a.B", next)

	got := g.PathsBetweenActivities("a.A", "a.B", false)
	assert.Len(t, got, 1, "a self-loop equal to the arriving label is not inserted")
}

func TestPathsBetweenNodes_SameNodeUsesSelfLoops(t *testing.T) {
	g := New()
	assert.Empty(t, g.PathsBetweenActivities("com.x.Main", "com.x.Main", false))

	refresh := stepping(core.ClassTextView, "refresh", "Refresh")
	g.AddEdge("com.x.Main", "com.x.Main", refresh)

	got := g.PathsBetweenActivities("com.x.Main", "com.x.Main", false)
	require.Len(t, got, 1)
	assert.Equal(t, Path{"com.x.Main", DynamicLabel(refresh.Widget, core.VerbClick), "com.x.Main"}, got[0])
}

func TestPathsBetweenNodes_HostileFilter(t *testing.T) {
	g := New()
	back := core.Event{
		Widget: core.Widget{Class: core.ClassImageButton, NAF: "true"},
		Action: core.NewAction(core.VerbClick),
	}
	g.AddEdge("com.x.Main", "com.x.Detail", back)

	assert.Empty(t, g.PathsBetweenActivities("com.x.Main", "com.x.Detail", false))
	assert.Len(t, g.PathsBetweenActivities("com.x.Main", "com.x.Detail", true), 1)
}

func TestPathsBetweenActivities_DedupAcrossNodes(t *testing.T) {
	g := mustParse(t, `digraph G {
  "M: void onCreate(android.os.Bundle)" -> "E: void onCreate(android.os.Bundle)" [label="GUI (add)"];
  "M: void onStart()" -> "E: void onCreate(android.os.Bundle)" [label="GUI (add)"];
}`)
	got := g.PathsBetweenActivities("M", "E", false)
	assert.Len(t, got, 1)
	assertNoDuplicates(t, got)
}

func TestAddEdge_Idempotent(t *testing.T) {
	g := mustParse(t, fourNodes)
	save := stepping(core.ClassButton, "save", "Save")

	g.AddEdge("C", "A", save)
	edges, loops := g.NumEdges(), g.NumSelfLoops()
	g.AddEdge("C", "A", save)
	assert.Equal(t, edges, g.NumEdges())
	assert.Equal(t, loops, g.NumSelfLoops())

	g.AddEdge("A", "A", save)
	g.AddEdge("A", "A", save)
	assert.Equal(t, loops+1, g.NumSelfLoops())
	assert.Equal(t, edges+1, g.NumEdges())
}

func TestAddEdge_SynthesizesEntryNodes(t *testing.T) {
	g := New()
	g.AddEdge("com.x.Main", "com.x.Detail", stepping(core.ClassButton, "open", "Open"))

	assert.Equal(t, []string{"com.x.Main: void onCreate(android.os.Bundle)"}, g.NodesOf("com.x.Main"))
	assert.Len(t, g.PathsBetweenActivities("com.x.Main", "com.x.Detail", false), 1)
}

func TestAddEdge_NewNodeGoesFirst(t *testing.T) {
	g := mustParse(t, `digraph G { "com.x.Main: void onStart()" -> "com.x.Other: void onStart()" [label="GUI (go)"]; }`)
	g.AddEdge("com.x.Main", "com.x.Detail", stepping(core.ClassButton, "open", "Open"))

	assert.Equal(t, []string{
		"com.x.Main: void onCreate(android.os.Bundle)",
		"com.x.Main: void onStart()",
	}, g.NodesOf("com.x.Main"))
}

func TestDynamicLabel(t *testing.T) {
	w := core.Widget{Class: core.ClassButton, ResourceID: "save", Text: "Save", Clickable: "true"}
	assert.Equal(t,
		"D@class=android.widget.Button&resource-id=save&text=Save&content-desc=&naf= (onClick)",
		DynamicLabel(w, core.VerbClick))
	assert.Contains(t, DynamicLabel(w, core.VerbLongPress), "(onLongClick)")
}

func TestParseHop(t *testing.T) {
	h, ok := ParseHop("D@class=android.widget.TextView&resource-id=&text=Art & Collectibles&content-desc=&naf= (onClick)")
	require.True(t, ok)
	assert.True(t, h.Dynamic())
	assert.Equal(t, "Art & Collectibles", h.Criteria[core.AttrText])
	assert.Equal(t, core.VerbClick, h.Verb())

	h, ok = ParseHop("2131296593 (onItemLongClick)")
	require.True(t, ok)
	assert.False(t, h.Dynamic())
	assert.Equal(t, "2131296593", h.OID)
	assert.Equal(t, core.VerbLongPress, h.Verb())

	_, ok = ParseHop("com.x.MainActivity")
	assert.False(t, ok)
}

func TestIsHostileOnly(t *testing.T) {
	tests := []struct {
		hop  string
		want bool
	}{
		{"D@class=android.widget.ImageButton&resource-id=&text=&content-desc=&naf=true (onClick)", true},
		{"D@class=android.widget.ImageButton&resource-id=up&text=&content-desc=&naf=true (onClick)", false},
		{"D@class=android.widget.Button&resource-id=&text=Log In&content-desc=&naf= (onClick)", false},
		{"newShortcut (onClick)", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsHostileOnly(tt.hop), tt.hop)
	}
}

func TestPath_HasPrefix(t *testing.T) {
	p := Path{"A", "x (B)", "B", "y (C)", "C"}
	assert.True(t, p.HasPrefix(Path{"A", "x (B)"}))
	assert.False(t, p.HasPrefix(Path{"A", "y (C)"}))
	assert.Equal(t, []string{"x (B)", "y (C)"}, p.Events())
}

func assertNoDuplicates(t *testing.T, paths []Path) {
	t.Helper()
	seen := map[string]bool{}
	for _, p := range paths {
		assert.False(t, seen[p.Key()], "duplicate path %v", p)
		seen[p.Key()] = true
		assert.GreaterOrEqual(t, len(p), 3)
	}
}
