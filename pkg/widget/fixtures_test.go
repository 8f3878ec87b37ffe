package widget

import (
	"context"
	"strings"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/similarity"
)

const addTaskXML = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="a.todo" enabled="true" clickable="false" password="false" bounds="[0,0][1080,1920]">
    <node index="0" text="" resource-id="" class="android.widget.LinearLayout" package="a.todo" enabled="true" clickable="false" password="false" bounds="[0,0][1080,400]">
      <node index="0" text="Title" resource-id="" class="android.widget.TextView" package="a.todo" enabled="true" clickable="false" password="false" bounds="[0,0][1080,100]" />
      <node index="1" text="" resource-id="a.todo:id/et_title" class="android.widget.EditText" content-desc="" package="a.todo" enabled="true" clickable="true" password="false" bounds="[0,100][1080,200]" />
    </node>
    <node index="1" text="Save &#128190;" resource-id="a.todo:id/btn_save" class="android.widget.Button" package="a.todo" enabled="true" clickable="true" password="false" bounds="[0,400][540,500]" />
    <node index="2" text="" resource-id="a.todo:id/fab_add" class="android.widget.ImageButton" content-desc="Add task" package="a.todo" enabled="true" clickable="true" password="false" NAF="true" bounds="[900,1700][1000,1800]" />
    <node index="3" text="Disabled" resource-id="a.todo:id/btn_off" class="android.widget.Button" package="a.todo" enabled="false" clickable="true" password="false" bounds="[540,400][1080,500]" />
    <node index="4" text="" resource-id="a.todo:id/list" class="android.widget.ListView" package="a.todo" enabled="true" clickable="true" password="false" bounds="[0,500][1080,1600]">
      <node index="0" text="" resource-id="" class="android.widget.LinearLayout" package="a.todo" enabled="true" clickable="false" password="false" bounds="[0,500][1080,600]">
        <node index="0" text="Buy milk" resource-id="a.todo:id/item_name" class="android.widget.TextView" package="a.todo" enabled="true" clickable="false" password="false" bounds="[0,500][1080,600]" />
      </node>
    </node>
  </node>
</hierarchy>`

// wordOracle scores words equal ignoring case as 1 and listed synonyms by
// their table value.
func wordOracle(synonyms map[[2]string]float64) similarity.Oracle {
	word := func(a, b string) (float64, bool) {
		if strings.EqualFold(a, b) {
			return 1, true
		}
		if s, ok := synonyms[[2]string{a, b}]; ok {
			return s, true
		}
		if s, ok := synonyms[[2]string{b, a}]; ok {
			return s, true
		}
		return 0, false
	}
	return similarity.OracleFunc(func(ctx context.Context, n, o []string) (float64, bool, error) {
		s, ok := similarity.SentenceSimilarity(n, o, word)
		return s, ok, nil
	})
}

func clickEvent(w core.Widget) core.Event {
	return core.Event{Widget: w, Action: core.NewAction(core.VerbClick), Kind: core.KindGUI}
}
