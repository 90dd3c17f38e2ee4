package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// GENERATE
// ============================================================================

func TestEngine_GeneratePatchDiffsChangedKeysOnly(t *testing.T) {
	e := NewEngine(t.TempDir())
	base := map[string]any{
		"Health": 20.0,
		"Speed":  0.25,
		"Combat": map[string]any{"Damage": 3.0, "Range": 1.5},
		"Old":    true,
	}
	modified := map[string]any{
		"Health": 30.0,
		"Speed":  0.25,
		"Combat": map[string]any{"Damage": 5.0, "Range": 1.5},
		"New":    "x",
	}

	patch := e.GeneratePatch("npc/guard", base, modified)

	assert.Equal(t, "npc/guard", patch[BaseAssetPathKey])
	assert.Equal(t, 30.0, patch["Health"])
	assert.NotContains(t, patch, "Speed")
	assert.Equal(t, map[string]any{"Damage": 5.0}, patch["Combat"])
	assert.Equal(t, "x", patch["New"])
	assert.Equal(t, map[string]any{"_op": "remove"}, patch["Old"],
		"a dropped key becomes a remove directive")
}

// ============================================================================
// APPLY
// ============================================================================

func TestEngine_ApplyOverlaysWithoutMutatingInput(t *testing.T) {
	e := NewEngine(t.TempDir())
	doc := map[string]any{
		"Health": 20.0,
		"Combat": map[string]any{"Damage": 3.0, "Range": 1.5},
	}
	patch := map[string]any{
		BaseAssetPathKey: "npc/guard",
		"Health":         30.0,
		"Combat":         map[string]any{"Damage": 5.0},
	}

	out := e.Apply(doc, patch)

	assert.Equal(t, 30.0, out["Health"])
	assert.Equal(t, map[string]any{"Damage": 5.0, "Range": 1.5}, out["Combat"],
		"nested maps merge instead of replacing")
	assert.NotContains(t, out, BaseAssetPathKey)
	assert.Equal(t, 20.0, doc["Health"], "the input document is untouched")
}

func TestEngine_ApplyListDirectives(t *testing.T) {
	e := NewEngine(t.TempDir())
	doc := map[string]any{
		"Drops": []any{
			map[string]any{"name": "sword", "count": 1.0},
			map[string]any{"name": "shield", "count": 1.0},
			map[string]any{"name": "apple", "count": 3.0},
		},
	}

	out := e.Apply(doc, map[string]any{
		"Drops": map[string]any{"_op": "append", "value": map[string]any{"name": "coin"}},
	})
	require.Len(t, out["Drops"], 4)

	out = e.Apply(doc, map[string]any{
		"Drops": map[string]any{"_op": "replace", "_index": 1.0, "value": "replaced"},
	})
	assert.Equal(t, "replaced", out["Drops"].([]any)[1])

	out = e.Apply(doc, map[string]any{
		"Drops": map[string]any{"_op": "remove", "_find": map[string]any{"name": "shield"}},
	})
	drops := out["Drops"].([]any)
	require.Len(t, drops, 2)
	assert.Equal(t, "sword", drops[0].(map[string]any)["name"])
	assert.Equal(t, "apple", drops[1].(map[string]any)["name"])
	assert.Len(t, doc["Drops"], 3, "list edits copy, never mutate")
}

func TestEngine_ApplyRemoveKeyAndMisses(t *testing.T) {
	e := NewEngine(t.TempDir())
	doc := map[string]any{"Old": true, "Drops": []any{"a"}}

	out := e.Apply(doc, map[string]any{"Old": map[string]any{"_op": "remove"}})
	assert.NotContains(t, out, "Old")

	out = e.Apply(doc, map[string]any{
		"Drops": map[string]any{"_op": "replace", "_index": 9.0, "value": "x"},
	})
	assert.Equal(t, []any{"a"}, out["Drops"], "out-of-range edits are dropped")

	out = e.Apply(doc, map[string]any{
		"Missing": map[string]any{"_op": "append", "value": "x"},
	})
	assert.Equal(t, []any{"x"}, out["Missing"], "append creates the list")
}

// ============================================================================
// DRAFTS AND PUBLISH
// ============================================================================

func TestEngine_WriteRequiresBaseAssetPath(t *testing.T) {
	e := NewEngine(t.TempDir())
	_, err := e.SaveDraft("fix", map[string]any{"Health": 30.0})
	require.EqualError(t, err, "Patch is missing required key: BaseAssetPath")
}

func TestEngine_SaveDraftSanitizesFilename(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(dir)
	patch := map[string]any{BaseAssetPathKey: "npc/guard", "Health": 30.0}

	name, err := e.SaveDraft("../../evil name!", patch)
	require.NoError(t, err)
	assert.Equal(t, "evil_name.json", name)
	_, err = os.Stat(filepath.Join(dir, "drafts", name))
	assert.NoError(t, err)
}

func TestEngine_ListDraftsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(dir)
	patch := map[string]any{BaseAssetPathKey: "npc/guard"}

	_, err := e.SaveDraft("first", patch)
	require.NoError(t, err)
	older := filepath.Join(dir, "drafts", "first.json")
	require.NoError(t, os.Chtimes(older, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))
	_, err = e.SaveDraft("second", patch)
	require.NoError(t, err)

	drafts, err := e.ListDrafts()
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "second.json", drafts[0].Filename)
	assert.Equal(t, "npc/guard", drafts[0].BaseAssetPath)
}

func TestEngine_PublishedForFiltersByTarget(t *testing.T) {
	e := NewEngine(t.TempDir())
	_, err := e.Publish("guard-fix", map[string]any{BaseAssetPathKey: "npc/guard", "Health": 30.0})
	require.NoError(t, err)
	_, err = e.Publish("sword-fix", map[string]any{BaseAssetPathKey: "item/sword", "Damage": 9.0})
	require.NoError(t, err)

	matches := e.PublishedFor("npc/guard")
	require.Len(t, matches, 1)
	assert.Equal(t, 30.0, matches[0]["Health"])
	assert.Empty(t, e.PublishedFor("npc/other"))
}
