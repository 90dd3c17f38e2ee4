// Package packets bridges the server's network packet handlers into
// the inspector's packet log. Handlers call the package-level Log
// functions from arbitrary threads; routing is a no-op until an
// adapter is activated.
package packets

import (
	"sync/atomic"
)

// Direction labels for logged packets.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Sink receives observed packets. The inspector core implements it.
type Sink interface {
	PacketObserved(direction, packetName string, packetID int32, handlerName string, packet any)
}

// Adapter forwards observed packets to its sink.
type Adapter struct {
	sink Sink
}

// NewAdapter builds an adapter over sink.
func NewAdapter(sink Sink) *Adapter {
	return &Adapter{sink: sink}
}

// Inbound logs one received packet.
func (a *Adapter) Inbound(packetName string, packetID int32, handlerName string, packet any) {
	a.sink.PacketObserved(DirectionInbound, packetName, packetID, handlerName, packet)
}

// Outbound logs one sent packet.
func (a *Adapter) Outbound(packetName string, packetID int32, handlerName string, packet any) {
	a.sink.PacketObserved(DirectionOutbound, packetName, packetID, handlerName, packet)
}

// active is the process-wide adapter slot. Packet handlers are wired
// long before the inspector starts, so they go through this slot
// instead of holding a reference.
var active atomic.Pointer[Adapter]

// Activate installs the adapter. The slot is set-once; a second call
// is ignored and returns false.
func Activate(a *Adapter) bool {
	return active.CompareAndSwap(nil, a)
}

// Deactivate clears the slot on inspector teardown.
func Deactivate() {
	active.Store(nil)
}

// LogInbound routes a received packet to the active adapter, if any.
func LogInbound(packetName string, packetID int32, handlerName string, packet any) {
	if a := active.Load(); a != nil {
		a.Inbound(packetName, packetID, handlerName, packet)
	}
}

// LogOutbound routes a sent packet to the active adapter, if any.
func LogOutbound(packetName string, packetID int32, handlerName string, packet any) {
	if a := active.Load(); a != nil {
		a.Outbound(packetName, packetID, handlerName, packet)
	}
}
