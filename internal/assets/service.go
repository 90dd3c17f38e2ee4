package assets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/config"
	"github.com/lait-kelomins/laits-entity-inspector-sub000/internal/model"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
	historySize      = 100
)

var (
	errBrowserGated = errors.New("Asset browsing is disabled via debug config")
	errPatchGated   = errors.New("Patch management is disabled via debug config")
)

// Service is the feature-gated facade over the asset store and patch
// engine, with the session-history ring.
type Service struct {
	store  Store
	engine *Engine
	cfgFn  func() config.Config
	notify func()
	nowFn  func() time.Time

	mu      sync.Mutex
	history []model.SessionHistoryEntry
}

// NewService wires the facade. notify is called after a publish so the
// core can broadcast ASSETS_REFRESHED; it may be nil.
func NewService(store Store, engine *Engine, cfgFn func() config.Config, notify func()) *Service {
	return &Service{
		store:  store,
		engine: engine,
		cfgFn:  cfgFn,
		notify: notify,
		nowFn:  time.Now,
	}
}

func (s *Service) browserEnabled() bool {
	cfg := s.cfgFn()
	return cfg.Enabled && cfg.Debug.AssetBrowser
}

func (s *Service) patchEnabled() bool {
	cfg := s.cfgFn()
	return cfg.Enabled && cfg.Debug.PatchManagement
}

// Categories lists the asset categories.
func (s *Service) Categories() []CategoryInfo {
	if !s.browserEnabled() {
		return []CategoryInfo{}
	}
	return s.store.Categories()
}

// List returns one page of a category plus the unpaged total.
func (s *Service) List(category string, limit, offset int) ([]Summary, int) {
	if !s.browserEnabled() {
		return []Summary{}, 0
	}
	all := s.store.List(category)
	total := len(all)
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Summary{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total
}

// Detail loads one asset with its published patches applied.
func (s *Service) Detail(path string) (map[string]any, error) {
	if !s.browserEnabled() {
		return nil, errBrowserGated
	}
	doc, err := s.store.Load(path)
	if err != nil {
		return nil, err
	}
	for _, patch := range s.engine.PublishedFor(path) {
		doc = s.engine.Apply(doc, patch)
	}
	return doc, nil
}

// Expand resolves a dotted field path inside an asset document.
func (s *Service) Expand(path, fieldPath string) (any, error) {
	doc, err := s.Detail(path)
	if err != nil {
		return nil, err
	}
	var cur any = doc
	for _, seg := range strings.Split(fieldPath, ".") {
		if seg == "" {
			continue
		}
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("Failed to expand path: %s", fieldPath)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("Failed to expand path: %s", fieldPath)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("Failed to expand path: %s", fieldPath)
		}
	}
	return cur, nil
}

// Search matches a case-insensitive substring over asset paths.
func (s *Service) Search(query string, limit int) []Summary {
	if !s.browserEnabled() {
		return []Summary{}
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	query = strings.ToLower(strings.TrimSpace(query))
	var out []Summary
	for _, sum := range s.store.List("") {
		if query != "" && !strings.Contains(strings.ToLower(sum.Path), query) {
			continue
		}
		out = append(out, sum)
		if len(out) >= limit {
			break
		}
	}
	if out == nil {
		out = []Summary{}
	}
	return out
}

// TestWildcard returns the asset paths matched by a glob pattern where
// "*" stays inside one path segment and "**" crosses segments.
func (s *Service) TestWildcard(pattern string) []string {
	if !s.browserEnabled() {
		return []string{}
	}
	matched := []string{}
	for _, p := range s.store.Paths() {
		if wildcardMatch(pattern, p) {
			matched = append(matched, p)
		}
	}
	return matched
}

// GeneratePatch diffs a modified document against its base asset.
func (s *Service) GeneratePatch(basePath string, modified map[string]any) (map[string]any, error) {
	if !s.patchEnabled() {
		return nil, errPatchGated
	}
	if basePath == "" {
		return nil, fmt.Errorf("Patch is missing required key: %s", BaseAssetPathKey)
	}
	base, err := s.store.Load(basePath)
	if err != nil {
		return nil, err
	}
	return s.engine.GeneratePatch(basePath, base, modified), nil
}

// SaveDraft stores a patch draft and records it in the history.
func (s *Service) SaveDraft(filename string, patch map[string]any) (string, error) {
	if !s.patchEnabled() {
		return "", errPatchGated
	}
	name, err := s.engine.SaveDraft(filename, patch)
	if err != nil {
		return "", err
	}
	s.record(name, patch, "draft")
	return name, nil
}

// PublishPatch publishes a patch, refreshes the store and notifies
// connected clients.
func (s *Service) PublishPatch(filename string, patch map[string]any) (string, error) {
	if !s.patchEnabled() {
		return "", errPatchGated
	}
	name, err := s.engine.Publish(filename, patch)
	if err != nil {
		return "", err
	}
	s.record(name, patch, "publish")
	s.store.Refresh()
	if s.notify != nil {
		s.notify()
	}
	return name, nil
}

// ListDrafts enumerates the saved drafts.
func (s *Service) ListDrafts() ([]DraftInfo, error) {
	if !s.patchEnabled() {
		return []DraftInfo{}, nil
	}
	return s.engine.ListDrafts()
}

// History returns the session history, oldest first.
func (s *Service) History() []model.SessionHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SessionHistoryEntry(nil), s.history...)
}

func (s *Service) record(filename string, patch map[string]any, operation string) {
	base, _ := patch[BaseAssetPathKey].(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, model.SessionHistoryEntry{
		Filename:      filename,
		BaseAssetPath: base,
		Timestamp:     s.nowFn().UnixMilli(),
		Operation:     operation,
	})
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}

// wildcardMatch matches pattern against path. "*" matches within a
// segment, "**" matches across segments.
func wildcardMatch(pattern, path string) bool {
	if pattern == "" {
		return false
	}
	return matchRunes(pattern, path)
}

func matchRunes(pattern, path string) bool {
	for len(pattern) > 0 {
		if strings.HasPrefix(pattern, "**") {
			rest := strings.TrimPrefix(pattern, "**")
			if rest == "" {
				return true
			}
			for i := 0; i <= len(path); i++ {
				if matchRunes(rest, path[i:]) {
					return true
				}
			}
			return false
		}
		if pattern[0] == '*' {
			rest := pattern[1:]
			for i := 0; i <= len(path); i++ {
				if i > 0 && path[i-1] == '/' {
					break
				}
				if matchRunes(rest, path[i:]) {
					return true
				}
			}
			return false
		}
		if len(path) == 0 || pattern[0] != path[0] {
			return false
		}
		pattern = pattern[1:]
		path = path[1:]
	}
	return len(path) == 0
}
