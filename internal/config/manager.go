package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Manager guards the runtime config and persists it to
// <data-dir>/config.json. Persistence failure is logged but never rolls
// back an in-memory change.
type Manager struct {
	mu   sync.RWMutex
	path string
	cfg  Config
}

// NewManager creates a manager rooted at dataDir, starting from
// defaults.
func NewManager(dataDir string) *Manager {
	return &Manager{
		path: filepath.Join(dataDir, "config.json"),
		cfg:  Default(),
	}
}

// Load reads the config file; a missing file keeps defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cfg := Default()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", m.path, err)
	}
	m.cfg = cfg
	return nil
}

// Get returns a copy of the current config.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.cfg
	cfg.PacketLogExcluded = append([]string(nil), m.cfg.PacketLogExcluded...)
	return cfg
}

// Save persists the current config.
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.path, raw, 0o644)
}

// Apply mutates the whitelisted keys named in updates and persists the
// result. Unknown keys are logged and skipped. It returns the applied
// key names.
func (m *Manager) Apply(updates map[string]any) []string {
	m.mu.Lock()
	var applied []string
	for key, val := range updates {
		if m.applyOne(key, val) {
			applied = append(applied, key)
		} else {
			slog.Warn("Ignoring unknown or malformed config key", "key", key)
		}
	}
	m.mu.Unlock()

	if len(applied) > 0 {
		if err := m.Save(); err != nil {
			// The in-memory change still takes effect.
			slog.Warn("Failed to persist config", "path", m.path, "error", err)
		}
	}
	return applied
}

func (m *Manager) applyOne(key string, val any) bool {
	switch key {
	case "enabled":
		return setBool(&m.cfg.Enabled, val)
	case "updateIntervalTicks":
		return setInt(&m.cfg.UpdateIntervalTicks, val)
	case "includeNPCs":
		return setBool(&m.cfg.IncludeNPCs, val)
	case "includePlayers":
		return setBool(&m.cfg.IncludePlayers, val)
	case "includeItems":
		return setBool(&m.cfg.IncludeItems, val)
	case "maxCachedEntities":
		return setInt(&m.cfg.MaxCachedEntities, val)
	case "websocketEnabled":
		return setBool(&m.cfg.WebsocketEnabled, val)
	case "websocketMaxClients":
		return setInt(&m.cfg.WebsocketMaxClients, val)
	case "packetLogEnabled":
		return setBool(&m.cfg.PacketLogEnabled, val)
	case "packetLogExcluded":
		return setStrings(&m.cfg.PacketLogExcluded, val)
	case "debug.entityLifecycle":
		return setBool(&m.cfg.Debug.EntityLifecycle, val)
	case "debug.positionTracking":
		return setBool(&m.cfg.Debug.PositionTracking, val)
	case "debug.onDemandRefresh":
		return setBool(&m.cfg.Debug.OnDemandRefresh, val)
	case "debug.alarmInspection":
		return setBool(&m.cfg.Debug.AlarmInspection, val)
	case "debug.timerInspection":
		return setBool(&m.cfg.Debug.TimerInspection, val)
	case "debug.instructionInspection":
		return setBool(&m.cfg.Debug.InstructionInspection, val)
	case "debug.lazyExpansion":
		return setBool(&m.cfg.Debug.LazyExpansion, val)
	case "debug.assetBrowser":
		return setBool(&m.cfg.Debug.AssetBrowser, val)
	case "debug.patchManagement":
		return setBool(&m.cfg.Debug.PatchManagement, val)
	case "debug.entityActions":
		return setBool(&m.cfg.Debug.EntityActions, val)
	default:
		return false
	}
}

func setBool(dst *bool, val any) bool {
	b, ok := val.(bool)
	if !ok {
		return false
	}
	*dst = b
	return true
}

func setInt(dst *int, val any) bool {
	switch v := val.(type) {
	case int:
		*dst = v
	case int64:
		*dst = int(v)
	case float64:
		// JSON numbers decode as float64.
		*dst = int(v)
	default:
		return false
	}
	return true
}

func setStrings(dst *[]string, val any) bool {
	switch v := val.(type) {
	case []string:
		*dst = append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return false
			}
			out = append(out, s)
		}
		*dst = out
	default:
		return false
	}
	return true
}
