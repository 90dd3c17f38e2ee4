package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/config"
)

func newTestService(t *testing.T) (*Service, *config.Config, *int) {
	t.Helper()
	cfg := config.Default()
	notified := 0
	svc := NewService(
		seededStore(t),
		NewEngine(t.TempDir()),
		func() config.Config { return cfg },
		func() { notified++ },
	)
	return svc, &cfg, &notified
}

// ============================================================================
// GATING
// ============================================================================

func TestService_BrowserGate(t *testing.T) {
	svc, cfg, _ := newTestService(t)
	cfg.Debug.AssetBrowser = false

	assert.Empty(t, svc.Categories())
	page, total := svc.List("npc", 0, 0)
	assert.Empty(t, page)
	assert.Zero(t, total)
	assert.Empty(t, svc.Search("guard", 0))
	assert.Empty(t, svc.TestWildcard("npc/*"))

	_, err := svc.Detail("npc/guard")
	assert.EqualError(t, err, "Asset browsing is disabled via debug config")
}

func TestService_PatchGate(t *testing.T) {
	svc, cfg, _ := newTestService(t)
	cfg.Debug.PatchManagement = false

	_, err := svc.GeneratePatch("npc/guard", map[string]any{})
	assert.EqualError(t, err, "Patch management is disabled via debug config")
	_, err = svc.SaveDraft("x", map[string]any{BaseAssetPathKey: "npc/guard"})
	assert.EqualError(t, err, "Patch management is disabled via debug config")

	drafts, err := svc.ListDrafts()
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

// ============================================================================
// BROWSING
// ============================================================================

func TestService_ListPaging(t *testing.T) {
	svc, _, _ := newTestService(t)

	page, total := svc.List("npc", 1, 0)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, "npc/guard", page[0].Path)

	page, total = svc.List("npc", 1, 1)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, "npc/town/mayor", page[0].Path)

	page, _ = svc.List("npc", 1, 9)
	assert.Empty(t, page, "offset past the end yields an empty page")
}

func TestService_DetailAppliesPublishedPatches(t *testing.T) {
	svc, _, notified := newTestService(t)

	_, err := svc.PublishPatch("guard-buff", map[string]any{
		BaseAssetPathKey: "npc/guard",
		"Health":         40,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, *notified, "publish notifies connected clients")

	doc, err := svc.Detail("npc/guard")
	require.NoError(t, err)
	assert.EqualValues(t, 40, doc["Health"])
}

func TestService_ExpandDottedPath(t *testing.T) {
	svc, _, _ := newTestService(t)

	v, err := svc.Expand("npc/guard", "Drops.0.name")
	require.NoError(t, err)
	assert.Equal(t, "sword", v)

	_, err = svc.Expand("npc/guard", "Drops.9.name")
	assert.EqualError(t, err, "Failed to expand path: Drops.9.name")
	_, err = svc.Expand("npc/guard", "Nope")
	assert.EqualError(t, err, "Failed to expand path: Nope")
}

func TestService_SearchAndWildcard(t *testing.T) {
	svc, _, _ := newTestService(t)

	found := svc.Search("GUARD", 0)
	require.Len(t, found, 1)
	assert.Equal(t, "npc/guard", found[0].Path)

	assert.Equal(t, []string{"npc/guard"}, svc.TestWildcard("npc/*"),
		"a single star stays inside one segment")
	assert.Equal(t, []string{"npc/guard", "npc/town/mayor"}, svc.TestWildcard("npc/**"))
	assert.Equal(t, []string{"npc/town/mayor"}, svc.TestWildcard("npc/*/mayor"))
	assert.Empty(t, svc.TestWildcard(""))
}

// ============================================================================
// PATCH FLOW AND HISTORY
// ============================================================================

func TestService_GenerateSaveAndHistory(t *testing.T) {
	svc, _, _ := newTestService(t)

	patch, err := svc.GeneratePatch("npc/guard", map[string]any{
		"Health": 35,
		"Drops": []any{
			map[string]any{"name": "sword", "count": 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "npc/guard", patch[BaseAssetPathKey])
	assert.EqualValues(t, 35, patch["Health"])

	name, err := svc.SaveDraft("guard-buff", patch)
	require.NoError(t, err)
	assert.Equal(t, "guard-buff.json", name)

	_, err = svc.PublishPatch("guard-buff", patch)
	require.NoError(t, err)

	history := svc.History()
	require.Len(t, history, 2)
	assert.Equal(t, "draft", history[0].Operation)
	assert.Equal(t, "publish", history[1].Operation)
	assert.Equal(t, "npc/guard", history[1].BaseAssetPath)

	_, err = svc.GeneratePatch("", nil)
	assert.EqualError(t, err, "Patch is missing required key: BaseAssetPath")
}
