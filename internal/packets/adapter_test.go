package packets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observed struct {
	direction string
	name      string
	id        int32
	handler   string
}

type recordingSink struct {
	calls []observed
}

func (r *recordingSink) PacketObserved(direction, packetName string, packetID int32, handlerName string, packet any) {
	r.calls = append(r.calls, observed{direction, packetName, packetID, handlerName})
}

func TestAdapter_RoutesDirections(t *testing.T) {
	sink := &recordingSink{}
	a := NewAdapter(sink)

	a.Inbound("Move", 18, "MoveHandler", nil)
	a.Outbound("Chat", 3, "ChatHandler", nil)

	require.Len(t, sink.calls, 2)
	assert.Equal(t, observed{DirectionInbound, "Move", 18, "MoveHandler"}, sink.calls[0])
	assert.Equal(t, observed{DirectionOutbound, "Chat", 3, "ChatHandler"}, sink.calls[1])
}

func TestActivate_SlotIsSetOnce(t *testing.T) {
	t.Cleanup(Deactivate)
	Deactivate()

	sink := &recordingSink{}
	first := NewAdapter(sink)
	require.True(t, Activate(first))
	assert.False(t, Activate(NewAdapter(&recordingSink{})),
		"the second activation is ignored")

	LogInbound("Move", 18, "MoveHandler", nil)
	require.Len(t, sink.calls, 1)

	Deactivate()
	LogOutbound("Chat", 3, "ChatHandler", nil)
	assert.Len(t, sink.calls, 1, "logging is a no-op without an adapter")
}
