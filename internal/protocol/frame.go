// Package protocol defines the framed message bus: every message is a
// JSON object carrying a type tag, an optional data payload and a
// server timestamp.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageType tags a frame on the bus.
type MessageType string

// Server to client push frames.
const (
	TypeInit            MessageType = "INIT"
	TypeEntitySpawn     MessageType = "ENTITY_SPAWN"
	TypeEntityDespawn   MessageType = "ENTITY_DESPAWN"
	TypeEntityUpdate    MessageType = "ENTITY_UPDATE"
	TypePositionBatch   MessageType = "POSITION_BATCH"
	TypePacketLog       MessageType = "PACKET_LOG"
	TypeConfigSync      MessageType = "CONFIG_SYNC"
	TypeTimeSync        MessageType = "TIME_SYNC"
	TypeFeatureInfo     MessageType = "FEATURE_INFO"
	TypeAssetsRefreshed MessageType = "ASSETS_REFRESHED"
	TypeError           MessageType = "ERROR"
	TypePong            MessageType = "PONG"
)

// Client to server request frames.
const (
	TypeRequestSnapshot     MessageType = "REQUEST_SNAPSHOT"
	TypeRequestEntity       MessageType = "REQUEST_ENTITY"
	TypeRequestExpand       MessageType = "REQUEST_EXPAND"
	TypeRequestPacketExpand MessageType = "REQUEST_PACKET_EXPAND"
	TypeConfigUpdate        MessageType = "CONFIG_UPDATE"
	TypeSetPaused           MessageType = "SET_PAUSED"
	TypePing                MessageType = "PING"

	TypeRequestEntityList         MessageType = "REQUEST_ENTITY_LIST"
	TypeRequestEntityDetail       MessageType = "REQUEST_ENTITY_DETAIL"
	TypeRequestEntityTimers       MessageType = "REQUEST_ENTITY_TIMERS"
	TypeRequestEntityAlarms       MessageType = "REQUEST_ENTITY_ALARMS"
	TypeRequestEntityInstructions MessageType = "REQUEST_ENTITY_INSTRUCTIONS"
	TypeRequestFindByTimer        MessageType = "REQUEST_FIND_BY_TIMER"
	TypeRequestFindByAlarm        MessageType = "REQUEST_FIND_BY_ALARM"

	TypeRequestAssetCategories MessageType = "REQUEST_ASSET_CATEGORIES"
	TypeRequestAssets          MessageType = "REQUEST_ASSETS"
	TypeRequestAssetDetail     MessageType = "REQUEST_ASSET_DETAIL"
	TypeRequestAssetExpand     MessageType = "REQUEST_ASSET_EXPAND"
	TypeRequestSearchAssets    MessageType = "REQUEST_SEARCH_ASSETS"
	TypeRequestTestWildcard    MessageType = "REQUEST_TEST_WILDCARD"
	TypeRequestGeneratePatch   MessageType = "REQUEST_GENERATE_PATCH"
	TypeRequestSaveDraft       MessageType = "REQUEST_SAVE_DRAFT"
	TypeRequestPublishPatch    MessageType = "REQUEST_PUBLISH_PATCH"
	TypeRequestListDrafts      MessageType = "REQUEST_LIST_DRAFTS"

	TypeSetEntitySurname MessageType = "SET_ENTITY_SURNAME"
	TypeTeleportToEntity MessageType = "TELEPORT_TO_ENTITY"
)

// Server to client response frames.
const (
	TypeEntityList           MessageType = "ENTITY_LIST"
	TypeEntityDetail         MessageType = "ENTITY_DETAIL"
	TypeEntityTimers         MessageType = "ENTITY_TIMERS"
	TypeEntityAlarms         MessageType = "ENTITY_ALARMS"
	TypeEntityInstructions   MessageType = "ENTITY_INSTRUCTIONS"
	TypeFindResults          MessageType = "FIND_RESULTS"
	TypeExpandResponse       MessageType = "EXPAND_RESPONSE"
	TypePacketExpandResponse MessageType = "PACKET_EXPAND_RESPONSE"
	TypeAssetCategories      MessageType = "ASSET_CATEGORIES"
	TypeAssetList            MessageType = "ASSET_LIST"
	TypeAssetDetail          MessageType = "ASSET_DETAIL"
	TypeAssetExpandResponse  MessageType = "ASSET_EXPAND_RESPONSE"
	TypeSearchResults        MessageType = "SEARCH_RESULTS"
	TypeWildcardMatches      MessageType = "WILDCARD_MATCHES"
	TypePatchGenerated       MessageType = "PATCH_GENERATED"
	TypeDraftSaved           MessageType = "DRAFT_SAVED"
	TypePatchPublished       MessageType = "PATCH_PUBLISHED"
	TypeDraftsList           MessageType = "DRAFTS_LIST"
)

var requestTypes = map[MessageType]struct{}{
	TypeRequestSnapshot:           {},
	TypeRequestEntity:             {},
	TypeRequestExpand:             {},
	TypeRequestPacketExpand:       {},
	TypeConfigUpdate:              {},
	TypeSetPaused:                 {},
	TypePing:                      {},
	TypeRequestEntityList:         {},
	TypeRequestEntityDetail:       {},
	TypeRequestEntityTimers:       {},
	TypeRequestEntityAlarms:       {},
	TypeRequestEntityInstructions: {},
	TypeRequestFindByTimer:        {},
	TypeRequestFindByAlarm:        {},
	TypeRequestAssetCategories:    {},
	TypeRequestAssets:             {},
	TypeRequestAssetDetail:        {},
	TypeRequestAssetExpand:        {},
	TypeRequestSearchAssets:       {},
	TypeRequestTestWildcard:       {},
	TypeRequestGeneratePatch:      {},
	TypeRequestSaveDraft:          {},
	TypeRequestPublishPatch:       {},
	TypeRequestListDrafts:         {},
	TypeSetEntitySurname:          {},
	TypeTeleportToEntity:          {},
}

// IsRequest reports whether t is a known client request type.
func IsRequest(t MessageType) bool {
	_, ok := requestTypes[t]
	return ok
}

// ErrMissingType is returned when a frame omits the type tag.
var ErrMissingType = errors.New("Missing message type")

// ErrInvalidFormat is returned when a frame is not a JSON object of the
// expected shape.
var ErrInvalidFormat = errors.New("Invalid message format")

// UnknownTypeError reports an unrecognized request type.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("Unknown message type: %s", e.Type)
}

// Frame is the wire shape of every bus message.
type Frame struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewFrame builds an outbound frame, stamping the current time. data is
// marshalled immediately so a later mutation cannot change the frame.
func NewFrame(t MessageType, data any) (*Frame, error) {
	f := &Frame{Type: t, Timestamp: time.Now().UnixMilli()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s data: %w", t, err)
		}
		f.Data = raw
	}
	return f, nil
}

// MustFrame is NewFrame for payloads the server itself produced, where
// a marshal failure is a programming error. It degrades to an ERROR
// frame rather than panicking.
func MustFrame(t MessageType, data any) *Frame {
	f, err := NewFrame(t, data)
	if err != nil {
		f, _ = NewFrame(TypeError, map[string]string{"message": "Invalid message format"})
	}
	return f
}

// ErrorFrame wraps message into the standard ERROR frame.
func ErrorFrame(message string) *Frame {
	return MustFrame(TypeError, map[string]string{"message": message})
}

// Parse decodes an inbound client frame. The returned error text is
// sent back to the client verbatim.
func Parse(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, ErrInvalidFormat
	}
	if f.Type == "" {
		return nil, ErrMissingType
	}
	if !IsRequest(f.Type) {
		return nil, &UnknownTypeError{Type: string(f.Type)}
	}
	return &f, nil
}

// Encode marshals the frame for the wire.
func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// DecodeData unmarshals the frame payload into dst. An absent payload
// leaves dst untouched and returns false.
func (f *Frame) DecodeData(dst any) (bool, error) {
	if len(f.Data) == 0 || string(f.Data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(f.Data, dst); err != nil {
		return false, ErrInvalidFormat
	}
	return true, nil
}
