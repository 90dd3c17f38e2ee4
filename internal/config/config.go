// Package config manages the inspector's runtime configuration: a JSON
// document at <data-dir>/config.json with an enumerated whitelist of
// mutable keys.
package config

import "math"

// TickMillis is the nominal duration of one server tick (~30 TPS).
const TickMillis = 33

// Debug holds the feature gates. A disabled gate short-circuits the
// whole capability it names.
type Debug struct {
	EntityLifecycle       bool `json:"entityLifecycle"`
	PositionTracking      bool `json:"positionTracking"`
	OnDemandRefresh       bool `json:"onDemandRefresh"`
	AlarmInspection       bool `json:"alarmInspection"`
	TimerInspection       bool `json:"timerInspection"`
	InstructionInspection bool `json:"instructionInspection"`
	LazyExpansion         bool `json:"lazyExpansion"`
	AssetBrowser          bool `json:"assetBrowser"`
	PatchManagement       bool `json:"patchManagement"`
	EntityActions         bool `json:"entityActions"`
}

// Config is the full runtime configuration document.
type Config struct {
	Enabled             bool     `json:"enabled"`
	UpdateIntervalTicks int      `json:"updateIntervalTicks"`
	IncludeNPCs         bool     `json:"includeNPCs"`
	IncludePlayers      bool     `json:"includePlayers"`
	IncludeItems        bool     `json:"includeItems"`
	MaxCachedEntities   int      `json:"maxCachedEntities"`
	MaxCachedPackets    int      `json:"maxCachedPackets"`
	WebsocketEnabled    bool     `json:"websocketEnabled"`
	WebsocketHost       string   `json:"websocketHost"`
	WebsocketPort       int      `json:"websocketPort"`
	WebsocketMaxClients int      `json:"websocketMaxClients"`
	PacketLogEnabled    bool     `json:"packetLogEnabled"`
	PacketLogExcluded   []string `json:"packetLogExcluded"`
	Debug               Debug    `json:"debug"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Enabled:             true,
		UpdateIntervalTicks: 3, // ~100 ms at 30 TPS
		IncludeNPCs:         true,
		IncludePlayers:      true,
		IncludeItems:        false,
		MaxCachedEntities:   500,
		MaxCachedPackets:    200,
		WebsocketEnabled:    true,
		WebsocketHost:       "0.0.0.0",
		WebsocketPort:       8765,
		WebsocketMaxClients: 10,
		PacketLogEnabled:    false,
		PacketLogExcluded:   nil,
		Debug: Debug{
			EntityLifecycle:       true,
			PositionTracking:      true,
			OnDemandRefresh:       true,
			AlarmInspection:       true,
			TimerInspection:       true,
			InstructionInspection: true,
			LazyExpansion:         true,
			AssetBrowser:          true,
			PatchManagement:       true,
			EntityActions:         true,
		},
	}
}

// UpdateIntervalMs is the derived millisecond view of the tick interval.
func (c Config) UpdateIntervalMs() int {
	return c.UpdateIntervalTicks * TickMillis
}

// TicksFromMs converts a millisecond interval back to ticks, never
// below one tick.
func TicksFromMs(ms int) int {
	if ms <= 0 {
		return 1
	}
	return int(math.Max(1, math.Ceil(float64(ms)/float64(TickMillis))))
}
