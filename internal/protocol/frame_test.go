package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// PARSE
// ============================================================================

func TestParse_ValidRequest(t *testing.T) {
	f, err := Parse([]byte(`{"type":"REQUEST_ENTITY","data":{"entityId":42}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeRequestEntity, f.Type)

	var req struct {
		EntityID int64 `json:"entityId"`
	}
	ok, err := f.DecodeData(&req)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), req.EntityID)
}

func TestParse_ErrorTexts(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	assert.EqualError(t, err, "Invalid message format")

	_, err = Parse([]byte(`{"data":{}}`))
	assert.EqualError(t, err, "Missing message type")

	_, err = Parse([]byte(`{"type":"MAKE_COFFEE"}`))
	assert.EqualError(t, err, "Unknown message type: MAKE_COFFEE")

	var unknown *UnknownTypeError
	assert.ErrorAs(t, err, &unknown)
}

func TestParse_PushTypesAreNotRequests(t *testing.T) {
	// A client echoing back a server push type is rejected.
	_, err := Parse([]byte(`{"type":"ENTITY_SPAWN"}`))
	assert.EqualError(t, err, "Unknown message type: ENTITY_SPAWN")

	assert.True(t, IsRequest(TypePing))
	assert.True(t, IsRequest(TypeRequestGeneratePatch))
	assert.False(t, IsRequest(TypeInit))
	assert.False(t, IsRequest(TypeConfigSync))
}

// ============================================================================
// ENCODE
// ============================================================================

func TestNewFrame_StampsAndFreezesData(t *testing.T) {
	payload := map[string]any{"x": 1}
	f, err := NewFrame(TypeConfigSync, payload)
	require.NoError(t, err)
	assert.NotZero(t, f.Timestamp)

	payload["x"] = 2 // must not leak into the frame
	raw, err := f.Encode()
	require.NoError(t, err)

	var decoded struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "CONFIG_SYNC", decoded.Type)
	assert.Equal(t, 1.0, decoded.Data["x"])
}

func TestMustFrame_DegradesToError(t *testing.T) {
	f := MustFrame(TypeEntityDetail, map[string]any{"bad": func() {}})
	assert.Equal(t, TypeError, f.Type)
	assert.Contains(t, string(f.Data), "Invalid message format")
}

func TestErrorFrame(t *testing.T) {
	f := ErrorFrame("Entity not found")
	assert.Equal(t, TypeError, f.Type)

	var data map[string]string
	ok, err := f.DecodeData(&data)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Entity not found", data["message"])
}

func TestDecodeData_AbsentPayload(t *testing.T) {
	f := &Frame{Type: TypeRequestSnapshot}
	var dst map[string]any
	ok, err := f.DecodeData(&dst)
	require.NoError(t, err)
	assert.False(t, ok)

	f.Data = json.RawMessage("null")
	ok, err = f.DecodeData(&dst)
	require.NoError(t, err)
	assert.False(t, ok)

	f.Data = json.RawMessage(`{"broken"`)
	_, err = f.DecodeData(&dst)
	assert.EqualError(t, err, "Invalid message format")
}
