// inspectord runs the entity inspector against an in-process demo
// world. In a real deployment the inspector is embedded in the game
// server and wired to its ECS runtime instead.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v2"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/assets"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/cache"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/collect"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/config"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/core"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/ecs"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/fabric"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/metrics"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/packets"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/query"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/serialize"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/track"
)

// gatewayConfig holds process-level settings read from an optional
// YAML file at boot. Runtime inspector settings live in the JSON
// config document under dataDir and are managed separately.
type gatewayConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	DataDir   string `yaml:"dataDir"`
	AssetsDir string `yaml:"assetsDir"`
	LogLevel  string `yaml:"logLevel"`
}

func loadGatewayConfig(path string) gatewayConfig {
	var gc gatewayConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return gc
	}
	if err := yaml.Unmarshal(raw, &gc); err != nil {
		slog.Warn("Gateway config parse failed", "path", path, "error", err)
	}
	return gc
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func main() {
	godotenv.Load()
	gc := loadGatewayConfig(envOr("INSPECTOR_GATEWAY_CONFIG", "gateway.yaml"))

	level := slog.LevelInfo
	if gc.LogLevel != "" {
		level.UnmarshalText([]byte(gc.LogLevel))
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	dataDir := firstNonEmpty(os.Getenv("INSPECTOR_DATA_DIR"), gc.DataDir, "./data")
	assetsDir := firstNonEmpty(os.Getenv("INSPECTOR_ASSETS_DIR"), gc.AssetsDir, "./assets")

	cfgMgr := config.NewManager(dataDir)
	if err := cfgMgr.Load(); err != nil {
		slog.Warn("Config load failed, using defaults", "error", err)
	}
	cfg := cfgMgr.Get()

	world := ecs.NewMemWorld("overworld", "Overworld")
	defer world.Close()

	ser := serialize.New()
	store := cache.New(ser, cfg.MaxCachedEntities, cfg.MaxCachedPackets)
	col := collect.New(ser)
	met := metrics.NewMetrics()
	q := query.New(store, ser, world.GameTime)

	inspector := core.New(world, cfgMgr, ser, store, col, q, met)

	assetSvc := assets.NewService(
		assets.NewFSStore(assetsDir),
		assets.NewEngine(dataDir),
		cfgMgr.Get,
		inspector.NotifyAssetsRefreshed,
	)

	gateway := fabric.NewGateway(inspector, assetSvc, met)
	inspector.SetBroadcaster(gateway)
	inspector.RegisterStopper(gateway.Stop)

	tracker := track.New(col, inspector, cfgMgr.Get)
	world.RegisterLifecycleObserver(tracker)
	world.RegisterTickObserver(tracker)

	flusher := track.NewFlusher(world, tracker)
	flusher.Start()
	inspector.RegisterStopper(flusher.Stop)

	adapter := packets.NewAdapter(inspector)
	packets.Activate(adapter)
	inspector.RegisterStopper(packets.Deactivate)

	spawnDemoEntities(world)
	stopTicking := startWorldTicks(world)
	inspector.RegisterStopper(stopTicking)

	router := mux.NewRouter()
	router.HandleFunc("/ws", gateway.HandleWebSocket)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","sessions":%d,"cachedEntities":%d}`,
			gateway.SessionCount(), store.Size())
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	host := firstNonEmpty(gc.Host, cfg.WebsocketHost)
	port := cfg.WebsocketPort
	if gc.Port != 0 {
		port = gc.Port
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Shutdown signal received")
		inspector.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Warn("Server shutdown error", "error", err)
		}
	}()

	slog.Info("Inspector listening",
		"addr", addr,
		"world", world.Name(),
		"updateIntervalMs", cfg.UpdateIntervalMs(),
		"version", core.ServerVersion)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// startWorldTicks drives the demo world at ~30 TPS and wanders the
// NPCs so clients see live position traffic.
func startWorldTicks(world *ecs.MemWorld) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(config.TickMillis * time.Millisecond)
		defer ticker.Stop()
		step := 0.0
		for {
			select {
			case <-ticker.C:
				step += 0.02
				world.Execute(func() { wander(world, step) })
				world.Tick()
				world.AdvanceGameTime(config.TickMillis)
			case <-stop:
				return
			}
		}
	}()
	var stopped bool
	return func() {
		if !stopped {
			stopped = true
			close(stop)
		}
	}
}

func wander(world *ecs.MemWorld, step float64) {
	for _, chunk := range world.Chunks() {
		for i := 0; i < chunk.Count(); i++ {
			tc, ok := chunk.Component(i, "TransformComponent").(*ecs.TransformComponent)
			if !ok {
				continue
			}
			tc.Position.X += 0.02 * float64(i+1)
			tc.Position.Z += 0.015 * step
		}
	}
}

func spawnDemoEntities(world *ecs.MemWorld) {
	world.SetGameTime(ecs.GameTime{EpochMilli: time.Now().UnixMilli(), Rate: 1})

	patrol := &ecs.Role{
		Name:         "patrol",
		StateMachine: &ecs.StateMachine{Names: []string{"IDLE", "WALK"}},
		RootInstruction: &ecs.Instruction{
			InstructionList: []*ecs.Instruction{
				ecs.NewInstruction("walk-loop", true),
				ecs.NewInstruction("rest", false),
			},
		},
	}
	patrol.RootInstruction.InstructionList[0].Sensor = &ecs.NullSensor{}
	patrol.RootInstruction.InstructionList[1].Sensor = &ecs.SensorTimer{
		Timer:            &ecs.Timer{State: ecs.TimerRunning, MaxValue: 30, Rate: 1},
		MinTimeRemaining: 5,
	}

	for i := 0; i < 3; i++ {
		world.Spawn(
			&ecs.TransformComponent{Position: ecs.Vec3{X: float64(i * 4), Y: 64, Z: 0}},
			&ecs.ModelComponent{AssetID: fmt.Sprintf("npc/guard_%d", i)},
			&ecs.NPCEntity{
				Name: fmt.Sprintf("Guard %d", i),
				Role: patrol,
			},
			&ecs.Timers{Timers: []*ecs.Timer{
				{State: ecs.TimerRunning, Value: float64(i), MaxValue: 30, Rate: 1},
			}},
		)
	}
}
