package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// APPLY WHITELIST
// ============================================================================

func TestManager_ApplyWhitelistedKeys(t *testing.T) {
	m := NewManager(t.TempDir())

	applied := m.Apply(map[string]any{
		"updateIntervalTicks": float64(6), // JSON numbers arrive as float64
		"includeItems":        true,
		"debug.lazyExpansion": false,
	})
	assert.ElementsMatch(t, []string{"updateIntervalTicks", "includeItems", "debug.lazyExpansion"}, applied)

	cfg := m.Get()
	assert.Equal(t, 6, cfg.UpdateIntervalTicks)
	assert.True(t, cfg.IncludeItems)
	assert.False(t, cfg.Debug.LazyExpansion)
}

func TestManager_ApplySkipsUnknownAndMalformed(t *testing.T) {
	m := NewManager(t.TempDir())
	before := m.Get()

	applied := m.Apply(map[string]any{
		"websocketPort":       9000,      // intentionally not mutable
		"nonsense":            true,      // unknown
		"enabled":             "yes",     // wrong type
		"updateIntervalTicks": "twelve",  // wrong type
	})
	assert.Empty(t, applied)
	assert.Equal(t, before, m.Get())
}

func TestManager_ApplyPacketExclusions(t *testing.T) {
	m := NewManager(t.TempDir())

	applied := m.Apply(map[string]any{
		"packetLogExcluded": []any{"Move", "KeepAlive"},
	})
	assert.Equal(t, []string{"packetLogExcluded"}, applied)
	assert.Equal(t, []string{"Move", "KeepAlive"}, m.Get().PacketLogExcluded)

	assert.Empty(t, m.Apply(map[string]any{"packetLogExcluded": []any{"Move", 7}}),
		"a non-string element rejects the whole list")
}

// ============================================================================
// PERSISTENCE
// ============================================================================

func TestManager_ApplyPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	m.Apply(map[string]any{"maxCachedEntities": float64(42)})

	raw, err := os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"maxCachedEntities": 42`)

	fresh := NewManager(dir)
	require.NoError(t, fresh.Load())
	assert.Equal(t, 42, fresh.Get().MaxCachedEntities)
}

func TestManager_LoadMissingFileKeepsDefaults(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Load())
	assert.Equal(t, Default(), m.Get())
}

func TestManager_LoadRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{nope"), 0o644))
	m := NewManager(dir)
	assert.Error(t, m.Load())
}

// ============================================================================
// TICK MATH
// ============================================================================

func TestTicksFromMs(t *testing.T) {
	assert.Equal(t, 1, TicksFromMs(0))
	assert.Equal(t, 1, TicksFromMs(-100))
	assert.Equal(t, 1, TicksFromMs(33))
	assert.Equal(t, 2, TicksFromMs(34))
	assert.Equal(t, 4, TicksFromMs(100))
}

func TestUpdateIntervalMs(t *testing.T) {
	cfg := Default()
	cfg.UpdateIntervalTicks = 3
	assert.Equal(t, 99, cfg.UpdateIntervalMs())
}
