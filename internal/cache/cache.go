// Package cache keeps the inspector's bounded, insertion-ordered view
// of recently observed entities and packets, and resolves dotted
// expansion paths against the live component references.
package cache

import (
	"strings"
	"sync"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/model"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/serialize"
)

// Entry pairs a serialized snapshot with the live component-reference
// map. Both fields are replaced atomically on any write.
type Entry struct {
	Snapshot *model.EntitySnapshot
	Refs     map[string]any
}

type packetEntry struct {
	entry *model.PacketLogEntry
	raw   any
}

// Cache is the bounded entity + packet store. A single lock guards the
// ordered maps so eviction stays atomic with insertion.
type Cache struct {
	mu  sync.Mutex
	ser *serialize.Serializer

	maxEntities int
	maxPackets  int

	entities    map[int64]*Entry
	entityOrder []int64

	packets      map[int64]*packetEntry
	packetOrder  []int64
	nextPacketID int64
}

// New creates a cache with the given bounds.
func New(ser *serialize.Serializer, maxEntities, maxPackets int) *Cache {
	return &Cache{
		ser:         ser,
		maxEntities: maxEntities,
		maxPackets:  maxPackets,
		entities:    make(map[int64]*Entry),
		packets:     make(map[int64]*packetEntry),
	}
}

// SetLimits adjusts the bounds, evicting immediately if needed.
func (c *Cache) SetLimits(maxEntities, maxPackets int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxEntities = maxEntities
	c.maxPackets = maxPackets
	c.evictEntities()
	c.evictPackets()
}

// PutEntity stores snapshot and refs for id, replacing both atomically,
// and evicts the oldest entries beyond the bound.
func (c *Cache) PutEntity(id int64, snapshot *model.EntitySnapshot, refs map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entities[id]; !ok {
		c.entityOrder = append(c.entityOrder, id)
	}
	c.entities[id] = &Entry{Snapshot: snapshot, Refs: refs}
	c.evictEntities()
}

// GetEntity returns the entry for id.
func (c *Cache) GetEntity(id int64) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entities[id]
	return e, ok
}

// RemoveEntity drops both the snapshot and the refs for id.
func (c *Cache) RemoveEntity(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entities[id]; !ok {
		return
	}
	delete(c.entities, id)
	for i, cur := range c.entityOrder {
		if cur == id {
			c.entityOrder = append(c.entityOrder[:i], c.entityOrder[i+1:]...)
			break
		}
	}
}

// Entities returns all cached snapshots in insertion order.
func (c *Cache) Entities() []*model.EntitySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.EntitySnapshot, 0, len(c.entityOrder))
	for _, id := range c.entityOrder {
		out = append(out, c.entities[id].Snapshot)
	}
	return out
}

// EntityIDs returns the cached ids in insertion order.
func (c *Cache) EntityIDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.entityOrder...)
}

// Size returns the number of cached entities.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entities)
}

// PacketCount returns the number of logged packets currently held.
func (c *Cache) PacketCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}

// PutPacket assigns the next packet id, stores the entry with the
// original object for later expansion, and evicts beyond the bound.
func (c *Cache) PutPacket(entry *model.PacketLogEntry, original any) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextPacketID++
	entry.ID = c.nextPacketID
	c.packets[entry.ID] = &packetEntry{entry: entry, raw: original}
	c.packetOrder = append(c.packetOrder, entry.ID)
	c.evictPackets()
	return entry.ID
}

// GetPacket returns the logged packet for id.
func (c *Cache) GetPacket(id int64) (*model.PacketLogEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.packets[id]
	if !ok {
		return nil, false
	}
	return p.entry, true
}

// Clear drops everything. Used on teardown.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities = make(map[int64]*Entry)
	c.entityOrder = nil
	c.packets = make(map[int64]*packetEntry)
	c.packetOrder = nil
}

// ExpandEntityPath resolves a dotted path whose first segment is a
// component name against the live reference map, then deep-serializes
// the terminal value. Returns nil on any miss or reflective failure.
func (c *Cache) ExpandEntityPath(id int64, path string) any {
	segments := strings.Split(path, ".")
	if len(segments) == 0 || segments[0] == "" {
		return nil
	}
	c.mu.Lock()
	entry, ok := c.entities[id]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	root, ok := entry.Refs[segments[0]]
	if !ok {
		return nil
	}
	terminal, ok := c.ser.ResolvePath(root, segments[1:])
	if !ok {
		return nil
	}
	return c.ser.SerializeDeep(terminal)
}

// ExpandPacketPath resolves a dotted path against the original packet
// object. Redacted fields stay masked: a path that steps through one
// yields the redaction literal, and the terminal is serialized with the
// packet class's redaction list applied.
func (c *Cache) ExpandPacketPath(id int64, path string) any {
	segments := strings.Split(path, ".")
	if len(segments) == 0 || segments[0] == "" {
		return nil
	}
	c.mu.Lock()
	p, ok := c.packets[id]
	c.mu.Unlock()
	if !ok || p.raw == nil {
		return nil
	}
	packetName := p.entry.PacketName
	for _, seg := range segments {
		if serialize.IsRedactedField(packetName, seg) {
			return serialize.Redacted
		}
	}
	terminal, ok := c.ser.ResolvePath(p.raw, segments)
	if !ok {
		return nil
	}
	return c.ser.SerializeDeepPacket(packetName, terminal)
}

func (c *Cache) evictEntities() {
	for c.maxEntities > 0 && len(c.entityOrder) > c.maxEntities {
		oldest := c.entityOrder[0]
		c.entityOrder = c.entityOrder[1:]
		delete(c.entities, oldest)
	}
}

func (c *Cache) evictPackets() {
	for c.maxPackets > 0 && len(c.packetOrder) > c.maxPackets {
		oldest := c.packetOrder[0]
		c.packetOrder = c.packetOrder[1:]
		delete(c.packets, oldest)
	}
}
