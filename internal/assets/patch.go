package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"
)

// BaseAssetPathKey is the one key every patch document must carry.
const BaseAssetPathKey = "BaseAssetPath"

// List-edit directive keys understood inside patch values.
const (
	opKey    = "_op"
	indexKey = "_index"
	findKey  = "_find"
	valueKey = "value"
)

// DraftInfo is one saved draft on disk.
type DraftInfo struct {
	Filename      string `json:"filename"`
	BaseAssetPath string `json:"baseAssetPath"`
	Timestamp     int64  `json:"timestamp"`
	Size          int64  `json:"size"`
}

// Engine authors and applies JSON patches over base assets. Drafts and
// published patches live in two directories under its root.
type Engine struct {
	draftsDir  string
	publishDir string
}

// NewEngine builds a patch engine rooted at dir.
func NewEngine(dir string) *Engine {
	return &Engine{
		draftsDir:  filepath.Join(dir, "drafts"),
		publishDir: filepath.Join(dir, "publish"),
	}
}

// GeneratePatch diffs a modified document against the base asset and
// returns the minimal patch: changed keys only, plus the base path.
func (e *Engine) GeneratePatch(basePath string, base, modified map[string]any) map[string]any {
	patch := diffMaps(base, modified)
	patch[BaseAssetPathKey] = basePath
	return patch
}

func diffMaps(base, modified map[string]any) map[string]any {
	out := make(map[string]any)
	for key, mv := range modified {
		bv, had := base[key]
		if !had {
			out[key] = mv
			continue
		}
		bm, bIsMap := bv.(map[string]any)
		mm, mIsMap := mv.(map[string]any)
		if bIsMap && mIsMap {
			if nested := diffMaps(bm, mm); len(nested) > 0 {
				out[key] = nested
			}
			continue
		}
		if !reflect.DeepEqual(bv, mv) {
			out[key] = mv
		}
	}
	for key := range base {
		if _, kept := modified[key]; !kept {
			out[key] = map[string]any{opKey: "remove"}
		}
	}
	return out
}

// Apply overlays a patch onto a document, honoring the list-edit
// directives. The input document is not mutated.
func (e *Engine) Apply(doc, patch map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for key, pv := range patch {
		if key == BaseAssetPathKey {
			continue
		}
		pm, isMap := pv.(map[string]any)
		if isMap {
			if op, hasOp := pm[opKey]; hasOp {
				applyOp(out, key, fmt.Sprintf("%v", op), pm)
				continue
			}
			if existing, ok := out[key].(map[string]any); ok {
				out[key] = e.Apply(existing, pm)
				continue
			}
		}
		out[key] = pv
	}
	return out
}

// applyOp executes one list-edit (or remove) directive against key.
func applyOp(doc map[string]any, key, op string, directive map[string]any) {
	if op == "remove" {
		if _, hasIdx := directive[indexKey]; !hasIdx {
			if _, hasFind := directive[findKey]; !hasFind {
				delete(doc, key)
				return
			}
		}
	}
	list, ok := doc[key].([]any)
	if !ok {
		if op == "append" {
			doc[key] = []any{directive[valueKey]}
		}
		return
	}
	idx := locate(list, directive)

	switch op {
	case "append":
		doc[key] = append(append([]any{}, list...), directive[valueKey])
	case "replace":
		if idx >= 0 && idx < len(list) {
			next := append([]any{}, list...)
			next[idx] = directive[valueKey]
			doc[key] = next
		}
	case "remove":
		if idx >= 0 && idx < len(list) {
			next := append([]any{}, list[:idx]...)
			doc[key] = append(next, list[idx+1:]...)
		}
	}
}

// locate finds the target element by explicit index or by a _find
// match on element fields.
func locate(list []any, directive map[string]any) int {
	if raw, ok := directive[indexKey]; ok {
		switch n := raw.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
		return -1
	}
	want, ok := directive[findKey].(map[string]any)
	if !ok {
		return -1
	}
	for i, el := range list {
		em, ok := el.(map[string]any)
		if !ok {
			continue
		}
		matched := true
		for k, v := range want {
			if !reflect.DeepEqual(em[k], v) {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}

// SaveDraft writes a patch into the drafts directory. The patch must
// carry the base asset path key.
func (e *Engine) SaveDraft(filename string, patch map[string]any) (string, error) {
	return e.write(e.draftsDir, filename, patch)
}

// Publish writes a patch into the publish directory, where asset loads
// pick it up as an overlay.
func (e *Engine) Publish(filename string, patch map[string]any) (string, error) {
	return e.write(e.publishDir, filename, patch)
}

func (e *Engine) write(dir, filename string, patch map[string]any) (string, error) {
	if _, ok := patch[BaseAssetPathKey].(string); !ok {
		return "", fmt.Errorf("Patch is missing required key: %s", BaseAssetPathKey)
	}
	name := sanitizeFilename(filename)
	if name == "" {
		name = fmt.Sprintf("patch-%d", time.Now().UnixMilli())
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	raw, err := json.MarshalIndent(patch, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// ListDrafts enumerates the saved drafts, newest first.
func (e *Engine) ListDrafts() ([]DraftInfo, error) {
	entries, err := os.ReadDir(e.draftsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []DraftInfo{}, nil
		}
		return nil, err
	}
	out := make([]DraftInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		draft := DraftInfo{
			Filename:  entry.Name(),
			Timestamp: info.ModTime().UnixMilli(),
			Size:      info.Size(),
		}
		if raw, err := os.ReadFile(filepath.Join(e.draftsDir, entry.Name())); err == nil {
			var doc map[string]any
			if json.Unmarshal(raw, &doc) == nil {
				draft.BaseAssetPath, _ = doc[BaseAssetPathKey].(string)
			}
		}
		out = append(out, draft)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// PublishedFor returns the published patches targeting basePath, in
// filename order.
func (e *Engine) PublishedFor(basePath string) []map[string]any {
	entries, err := os.ReadDir(e.publishDir)
	if err != nil {
		return nil
	}
	var out []map[string]any
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(e.publishDir, entry.Name()))
		if err != nil {
			continue
		}
		var doc map[string]any
		if json.Unmarshal(raw, &doc) != nil {
			continue
		}
		if target, _ := doc[BaseAssetPathKey].(string); target == basePath {
			out = append(out, doc)
		}
	}
	return out
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}
