package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAsset(t *testing.T, root, rel, content string) {
	t.Helper()
	file := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
}

func seededStore(t *testing.T) *FSStore {
	t.Helper()
	root := t.TempDir()
	writeAsset(t, root, "npc/guard.yaml", "Health: 20\nDrops:\n  - name: sword\n    count: 1\n")
	writeAsset(t, root, "npc/town/mayor.yml", "Health: 10\n")
	writeAsset(t, root, "item/sword.json", `{"Damage": 7, "Tags": ["melee"]}`)
	writeAsset(t, root, "npc/readme.txt", "not a manifest")
	return NewFSStore(root)
}

// ============================================================================
// CATALOG
// ============================================================================

func TestFSStore_CategoriesAndListing(t *testing.T) {
	s := seededStore(t)

	assert.Equal(t, []CategoryInfo{
		{Name: "item", Count: 1},
		{Name: "npc", Count: 2},
	}, s.Categories())

	npcs := s.List("npc")
	require.Len(t, npcs, 2)
	assert.Equal(t, Summary{Path: "npc/guard", Name: "guard", Category: "npc"}, npcs[0])
	assert.Equal(t, "town/mayor", npcs[1].Name)

	assert.Len(t, s.List(""), 3)
	assert.Empty(t, s.List("block"))

	assert.Equal(t, []string{"item/sword", "npc/guard", "npc/town/mayor"}, s.Paths())
}

// ============================================================================
// LOADING
// ============================================================================

func TestFSStore_LoadYAMLAndJSON(t *testing.T) {
	s := seededStore(t)

	doc, err := s.Load("npc/guard")
	require.NoError(t, err)
	assert.Equal(t, 20, doc["Health"])
	drops, ok := doc["Drops"].([]any)
	require.True(t, ok)
	first, ok := drops[0].(map[string]any)
	require.True(t, ok, "yaml maps are normalized to string keys")
	assert.Equal(t, "sword", first["name"])

	doc, err = s.Load("item/sword")
	require.NoError(t, err)
	assert.Equal(t, 7.0, doc["Damage"])
}

func TestFSStore_LoadMissesAndEscapes(t *testing.T) {
	s := seededStore(t)

	_, err := s.Load("npc/nobody")
	assert.EqualError(t, err, "Asset not found")

	_, err = s.Load("../outside")
	assert.EqualError(t, err, "Asset not found")

	_, err = s.Load("/etc/passwd")
	assert.EqualError(t, err, "Asset not found")
}

func TestFSStore_CacheAndRefresh(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "npc/guard.yaml", "Health: 20\n")
	s := NewFSStore(root)

	doc, err := s.Load("npc/guard")
	require.NoError(t, err)
	assert.Equal(t, 20, doc["Health"])

	writeAsset(t, root, "npc/guard.yaml", "Health: 99\n")
	doc, err = s.Load("npc/guard")
	require.NoError(t, err)
	assert.Equal(t, 20, doc["Health"], "served from cache until refresh")

	s.Refresh()
	doc, err = s.Load("npc/guard")
	require.NoError(t, err)
	assert.Equal(t, 99, doc["Health"])
}
