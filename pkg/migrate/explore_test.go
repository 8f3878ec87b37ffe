package migrate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seal-hub/CraftDroid/pkg/core"
)

func withText(src, rid, text string) string {
	return strings.Replace(src, `text="" resource-id="b.todo:id/`+rid+`"`, `text="`+text+`" resource-id="b.todo:id/`+rid+`"`, 1)
}

func catalogued(s *Search, rid string) []string {
	var texts []string
	for _, w := range s.Catalogue().Widgets() {
		if w.ResourceID == rid {
			texts = append(texts, w.Text)
		}
	}
	return texts
}

func TestObserve_CataloguesTypedText(t *testing.T) {
	s := New(todoApp(nil), newConfig(addTaskScenario()))

	s.observe(core.Screen{Package: targetPkg, Activity: editActivity, Source: editXML})
	s.observe(core.Screen{Package: targetPkg, Activity: editActivity, Source: withText(editXML, "title", "Buy milk")})

	assert.ElementsMatch(t, []string{"", "Buy milk"}, catalogued(s, "title"))
	assert.Equal(t, 1, s.cache.Stats().Screens, "text does not change the screen")
}

func TestObserve_PurgesOldTempEmailOnSameScreen(t *testing.T) {
	s := New(formApp(), newConfig(nil))

	old := s.bank.TempEmail(false)
	s.observe(core.Screen{Package: targetPkg, Activity: formActivity, Source: withText(formXML, "email_field", old)})
	require.Contains(t, catalogued(s, "email_field"), old)

	renewed := s.bank.TempEmail(true)
	require.NotEqual(t, old, renewed)
	s.observe(core.Screen{Package: targetPkg, Activity: formActivity, Source: withText(formXML, "email_field", renewed)})

	texts := catalogued(s, "email_field")
	assert.Contains(t, texts, renewed)
	assert.NotContains(t, texts, old)
}
