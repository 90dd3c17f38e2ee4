package fabric

import (
	"fmt"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/protocol"
)

type entityRequest struct {
	EntityID int64 `json:"entityId"`
}

type expandRequest struct {
	EntityID int64  `json:"entityId"`
	PacketID int64  `json:"packetId"`
	Path     string `json:"path"`
}

type listRequest struct {
	Filter string `json:"filter"`
	Search string `json:"search"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type findRequest struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Limit int    `json:"limit"`
}

type snapshotRequest struct {
	WorldID string `json:"worldId"`
}

type pausedRequest struct {
	Paused bool `json:"paused"`
}

type surnameRequest struct {
	EntityID int64  `json:"entityId"`
	Name     string `json:"name"`
}

type assetRequest struct {
	Category string `json:"category"`
	Path     string `json:"path"`
	Field    string `json:"fieldPath"`
	Query    string `json:"query"`
	Pattern  string `json:"pattern"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

type patchRequest struct {
	Filename      string         `json:"filename"`
	BaseAssetPath string         `json:"baseAssetPath"`
	Modified      map[string]any `json:"modified"`
	Patch         map[string]any `json:"patch"`
}

// dispatch routes one parsed request frame. Every branch answers on
// this session only; broadcasts happen inside the core.
func (s *Session) dispatch(f *protocol.Frame) {
	switch f.Type {
	case protocol.TypePing:
		s.sendFrame(protocol.TypePong, nil)

	case protocol.TypeRequestSnapshot:
		var req snapshotRequest
		f.DecodeData(&req)
		snap, err := s.gw.core.OnRequestSnapshot(req.WorldID)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendFrame(protocol.TypeInit, snap)

	case protocol.TypeRequestEntity, protocol.TypeRequestEntityDetail:
		var req entityRequest
		if !s.decode(f, &req) {
			return
		}
		snap, err := s.gw.core.OnRequestEntityDetail(req.EntityID)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendFrame(protocol.TypeEntityDetail, snap)

	case protocol.TypeRequestEntityList:
		var req listRequest
		f.DecodeData(&req)
		s.sendFrame(protocol.TypeEntityList, map[string]any{
			"entities": s.gw.core.OnRequestEntityList(req.Filter, req.Search, req.Limit, req.Offset),
		})

	case protocol.TypeRequestEntityTimers:
		var req entityRequest
		if !s.decode(f, &req) {
			return
		}
		s.sendFrame(protocol.TypeEntityTimers, map[string]any{
			"entityId": req.EntityID,
			"timers":   s.gw.core.OnRequestTimers(req.EntityID),
		})

	case protocol.TypeRequestEntityAlarms:
		var req entityRequest
		if !s.decode(f, &req) {
			return
		}
		s.sendFrame(protocol.TypeEntityAlarms, map[string]any{
			"entityId": req.EntityID,
			"alarms":   s.gw.core.OnRequestAlarms(req.EntityID),
		})

	case protocol.TypeRequestEntityInstructions:
		var req entityRequest
		if !s.decode(f, &req) {
			return
		}
		s.sendFrame(protocol.TypeEntityInstructions, map[string]any{
			"entityId":     req.EntityID,
			"instructions": s.gw.core.OnRequestInstructions(req.EntityID),
		})

	case protocol.TypeRequestFindByTimer:
		var req findRequest
		if !s.decode(f, &req) {
			return
		}
		s.sendFrame(protocol.TypeFindResults, map[string]any{
			"entities": s.gw.core.FindByTimerState(req.State, req.Limit),
		})

	case protocol.TypeRequestFindByAlarm:
		var req findRequest
		if !s.decode(f, &req) {
			return
		}
		s.sendFrame(protocol.TypeFindResults, map[string]any{
			"entities": s.gw.core.FindByAlarm(req.Name, req.State, req.Limit),
		})

	case protocol.TypeRequestExpand:
		var req expandRequest
		f.DecodeData(&req)
		if req.EntityID == 0 || req.Path == "" {
			s.sendError("Missing entityId or path")
			return
		}
		value, err := s.gw.core.OnRequestExpand(req.EntityID, req.Path)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendFrame(protocol.TypeExpandResponse, map[string]any{
			"entityId": req.EntityID,
			"path":     req.Path,
			"value":    value,
		})

	case protocol.TypeRequestPacketExpand:
		var req expandRequest
		f.DecodeData(&req)
		if req.PacketID == 0 || req.Path == "" {
			s.sendError("Missing entityId or path")
			return
		}
		value, err := s.gw.core.OnRequestPacketExpand(req.PacketID, req.Path)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendFrame(protocol.TypePacketExpandResponse, map[string]any{
			"packetId": req.PacketID,
			"path":     req.Path,
			"value":    value,
		})

	case protocol.TypeConfigUpdate:
		var updates map[string]any
		if ok, err := f.DecodeData(&updates); err != nil || !ok || len(updates) == 0 {
			s.sendError(fmt.Sprintf("Missing data for %s", f.Type))
			return
		}
		s.gw.core.OnConfigUpdate(updates)

	case protocol.TypeSetPaused:
		var req pausedRequest
		if !s.decode(f, &req) {
			return
		}
		s.gw.core.SetPaused(req.Paused)

	case protocol.TypeSetEntitySurname:
		var req surnameRequest
		if !s.decode(f, &req) {
			return
		}
		if msg := s.gw.core.SetEntitySurname(req.EntityID, req.Name); msg != "" {
			s.sendError(msg)
		}

	case protocol.TypeTeleportToEntity:
		var req entityRequest
		if !s.decode(f, &req) {
			return
		}
		if msg := s.gw.core.TeleportToEntity(req.EntityID); msg != "" {
			s.sendError(msg)
		}

	case protocol.TypeRequestAssetCategories:
		s.sendFrame(protocol.TypeAssetCategories, map[string]any{
			"categories": s.gw.assets.Categories(),
		})

	case protocol.TypeRequestAssets:
		var req assetRequest
		f.DecodeData(&req)
		list, total := s.gw.assets.List(req.Category, req.Limit, req.Offset)
		s.sendFrame(protocol.TypeAssetList, map[string]any{
			"category": req.Category,
			"assets":   list,
			"total":    total,
		})

	case protocol.TypeRequestAssetDetail:
		var req assetRequest
		if !s.decode(f, &req) {
			return
		}
		detail, err := s.gw.assets.Detail(req.Path)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendFrame(protocol.TypeAssetDetail, map[string]any{
			"path":  req.Path,
			"asset": detail,
		})

	case protocol.TypeRequestAssetExpand:
		var req assetRequest
		if !s.decode(f, &req) {
			return
		}
		value, err := s.gw.assets.Expand(req.Path, req.Field)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendFrame(protocol.TypeAssetExpandResponse, map[string]any{
			"path":  req.Path,
			"field": req.Field,
			"value": value,
		})

	case protocol.TypeRequestSearchAssets:
		var req assetRequest
		if !s.decode(f, &req) {
			return
		}
		s.sendFrame(protocol.TypeSearchResults, map[string]any{
			"query":   req.Query,
			"matches": s.gw.assets.Search(req.Query, req.Limit),
		})

	case protocol.TypeRequestTestWildcard:
		var req assetRequest
		if !s.decode(f, &req) {
			return
		}
		s.sendFrame(protocol.TypeWildcardMatches, map[string]any{
			"pattern": req.Pattern,
			"matches": s.gw.assets.TestWildcard(req.Pattern),
		})

	case protocol.TypeRequestGeneratePatch:
		var req patchRequest
		if !s.decode(f, &req) {
			return
		}
		patch, err := s.gw.assets.GeneratePatch(req.BaseAssetPath, req.Modified)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendFrame(protocol.TypePatchGenerated, map[string]any{"patch": patch})

	case protocol.TypeRequestSaveDraft:
		var req patchRequest
		if !s.decode(f, &req) {
			return
		}
		name, err := s.gw.assets.SaveDraft(req.Filename, req.Patch)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendFrame(protocol.TypeDraftSaved, map[string]any{"filename": name})

	case protocol.TypeRequestPublishPatch:
		var req patchRequest
		if !s.decode(f, &req) {
			return
		}
		name, err := s.gw.assets.PublishPatch(req.Filename, req.Patch)
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendFrame(protocol.TypePatchPublished, map[string]any{"filename": name})

	case protocol.TypeRequestListDrafts:
		drafts, err := s.gw.assets.ListDrafts()
		if err != nil {
			s.sendError(err.Error())
			return
		}
		s.sendFrame(protocol.TypeDraftsList, map[string]any{"drafts": drafts})

	default:
		// Parse already filtered unknown types; a request type with no
		// branch here is a wiring bug.
		s.sendError(fmt.Sprintf("Unknown message type: %s", f.Type))
	}
}

// decode unmarshals a required payload, answering the standard missing
// data error when it is absent or malformed.
func (s *Session) decode(f *protocol.Frame, dst any) bool {
	ok, err := f.DecodeData(dst)
	if err != nil {
		s.sendError(err.Error())
		return false
	}
	if !ok {
		s.sendError(fmt.Sprintf("Missing data for %s", f.Type))
		return false
	}
	return true
}
