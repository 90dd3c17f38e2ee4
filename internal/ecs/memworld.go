package ecs

import (
	"sync"

	"github.com/google/uuid"
)

// MemWorld is an in-memory World used by the demo harness and the test
// suite. A single worker goroutine drains the task queue, which gives
// the same cooperative single-thread semantics as the host executor.
type MemWorld struct {
	id   string
	name string

	tasks chan func()
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	mu        sync.RWMutex
	gameTime  GameTime
	lifecycle []LifecycleObserver
	tick      []TickObserver

	// World-thread state. Only touched from the worker goroutine.
	entities []*MemEntity
	nextRef  int64
}

// NewMemWorld creates and starts an in-memory world.
func NewMemWorld(id, name string) *MemWorld {
	w := &MemWorld{
		id:       id,
		name:     name,
		tasks:    make(chan func(), 256),
		stop:     make(chan struct{}),
		gameTime: GameTime{Rate: 1.0},
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *MemWorld) run() {
	defer w.wg.Done()
	for {
		select {
		case fn := <-w.tasks:
			fn()
		case <-w.stop:
			// Drain what is already queued, then exit.
			for {
				select {
				case fn := <-w.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Close stops the world thread. Idempotent.
func (w *MemWorld) Close() {
	w.once.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *MemWorld) ID() string   { return w.id }
func (w *MemWorld) Name() string { return w.name }

// Execute schedules fn onto the world thread.
func (w *MemWorld) Execute(fn func()) {
	select {
	case w.tasks <- fn:
	case <-w.stop:
	}
}

// ExecuteWait schedules fn and blocks until it has run.
func (w *MemWorld) ExecuteWait(fn func()) {
	done := make(chan struct{})
	w.Execute(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-w.stop:
	}
}

func (w *MemWorld) GameTime() GameTime {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gameTime
}

// SetGameTime replaces the game clock.
func (w *MemWorld) SetGameTime(t GameTime) {
	w.mu.Lock()
	w.gameTime = t
	w.mu.Unlock()
}

// AdvanceGameTime moves the game clock forward by ms game millis.
func (w *MemWorld) AdvanceGameTime(ms int64) {
	w.mu.Lock()
	w.gameTime.EpochMilli += ms
	w.mu.Unlock()
}

func (w *MemWorld) RegisterLifecycleObserver(o LifecycleObserver) {
	w.mu.Lock()
	w.lifecycle = append(w.lifecycle, o)
	w.mu.Unlock()
}

func (w *MemWorld) RegisterTickObserver(o TickObserver) {
	w.mu.Lock()
	w.tick = append(w.tick, o)
	w.mu.Unlock()
}

func (w *MemWorld) lifecycleObservers() []LifecycleObserver {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]LifecycleObserver(nil), w.lifecycle...)
}

func (w *MemWorld) tickObservers() []TickObserver {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]TickObserver(nil), w.tick...)
}

// Chunks returns the single chunk holding every live entity.
func (w *MemWorld) Chunks() []Chunk {
	return []Chunk{&memChunk{entities: w.entities}}
}

func (w *MemWorld) Players() []EntityHandle {
	var out []EntityHandle
	for _, e := range w.entities {
		if e.Component("Player") != nil {
			out = append(out, e)
		}
	}
	return out
}

// Spawn creates an entity with the given components and fires lifecycle
// observers. Blocks until the spawn has run on the world thread.
func (w *MemWorld) Spawn(comps ...any) *MemEntity {
	e := &MemEntity{
		uuid:  uuid.NewString(),
		comps: make(map[string]any),
	}
	for _, c := range comps {
		e.set(TypeName(c), c)
	}
	w.ExecuteWait(func() {
		w.nextRef++
		e.ref = w.nextRef
		w.entities = append(w.entities, e)
		for _, o := range w.lifecycleObservers() {
			o.OnEntityAdded(e)
		}
	})
	return e
}

// Despawn removes an entity and fires lifecycle observers.
func (w *MemWorld) Despawn(e *MemEntity) {
	w.ExecuteWait(func() {
		for i, cur := range w.entities {
			if cur == e {
				w.entities = append(w.entities[:i], w.entities[i+1:]...)
				break
			}
		}
		for _, o := range w.lifecycleObservers() {
			o.OnEntityRemoved(e)
		}
	})
}

// Tick runs one world tick: every tick observer sees every entity.
func (w *MemWorld) Tick() {
	w.ExecuteWait(func() {
		chunk := &memChunk{entities: w.entities}
		for i := range chunk.entities {
			for _, o := range w.tickObservers() {
				o.OnTick(chunk, i)
			}
		}
	})
}

// MemEntity is the MemWorld entity handle.
type MemEntity struct {
	mu    sync.RWMutex
	ref   int64
	uuid  string
	order []string
	comps map[string]any
}

func (e *MemEntity) UUID() string { return e.uuid }

// Ref returns the chunk reference index assigned at spawn.
func (e *MemEntity) Ref() int64 { return e.ref }

func (e *MemEntity) ComponentTypes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.order...)
}

func (e *MemEntity) Component(typeName string) any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.comps[typeName]
}

func (e *MemEntity) SetComponent(typeName string, c any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set(typeName, c)
}

func (e *MemEntity) set(typeName string, c any) {
	if _, ok := e.comps[typeName]; !ok {
		e.order = append(e.order, typeName)
	}
	e.comps[typeName] = c
}

type memChunk struct {
	entities []*MemEntity
}

func (c *memChunk) Count() int                  { return len(c.entities) }
func (c *memChunk) ReferenceIndex(i int) int64  { return c.entities[i].ref }
func (c *memChunk) Handle(i int) EntityHandle   { return c.entities[i] }
func (c *memChunk) ComponentTypes(i int) []string {
	return c.entities[i].ComponentTypes()
}
func (c *memChunk) Component(i int, typeName string) any {
	return c.entities[i].Component(typeName)
}
