// Package assets wraps the server's static asset catalog and the patch
// engine behind the inspector's feature-gated browsing API.
package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

// Summary is one row of an asset listing.
type Summary struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// CategoryInfo is one asset category with its asset count.
type CategoryInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Store is the read side of the asset catalog.
type Store interface {
	Categories() []CategoryInfo
	List(category string) []Summary
	Load(path string) (map[string]any, error)
	Paths() []string
	Refresh()
}

// FSStore reads YAML and JSON asset manifests from a directory tree.
// The first path segment of an asset is its category. Parsed manifests
// are cached in a concurrent map until Refresh.
type FSStore struct {
	root  string
	cache sync.Map // path -> map[string]any
}

// NewFSStore builds a store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

func isManifest(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// assetPath converts a file path under root into the catalog path:
// forward slashes, no extension.
func (s *FSStore) assetPath(file string) string {
	rel, err := filepath.Rel(s.root, file)
	if err != nil {
		return ""
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}

func (s *FSStore) walk(fn func(assetPath, file string)) {
	filepath.Walk(s.root, func(file string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !isManifest(info.Name()) {
			return nil
		}
		if p := s.assetPath(file); p != "" {
			fn(p, file)
		}
		return nil
	})
}

// Categories lists the top-level directories with their asset counts.
func (s *FSStore) Categories() []CategoryInfo {
	counts := make(map[string]int)
	s.walk(func(assetPath, _ string) {
		category, _, _ := strings.Cut(assetPath, "/")
		counts[category]++
	})
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]CategoryInfo, 0, len(names))
	for _, name := range names {
		out = append(out, CategoryInfo{Name: name, Count: counts[name]})
	}
	return out
}

// List returns the assets of one category, or all assets for "".
func (s *FSStore) List(category string) []Summary {
	var out []Summary
	s.walk(func(assetPath, _ string) {
		cat, rest, _ := strings.Cut(assetPath, "/")
		if category != "" && cat != category {
			return
		}
		name := assetPath
		if rest != "" {
			name = rest
		}
		out = append(out, Summary{Path: assetPath, Name: name, Category: cat})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Paths returns every known asset path.
func (s *FSStore) Paths() []string {
	var out []string
	s.walk(func(assetPath, _ string) { out = append(out, assetPath) })
	sort.Strings(out)
	return out
}

// Load parses the manifest at the given catalog path.
func (s *FSStore) Load(path string) (map[string]any, error) {
	if cached, ok := s.cache.Load(path); ok {
		return cached.(map[string]any), nil
	}
	file, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("Asset not found")
	}
	doc, err := parseManifest(file, raw)
	if err != nil {
		return nil, err
	}
	s.cache.Store(path, doc)
	return doc, nil
}

// resolve maps a catalog path back to a manifest file, refusing paths
// that escape the root.
func (s *FSStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("Asset not found")
	}
	base := filepath.Join(s.root, clean)
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		candidate := base + ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("Asset not found")
}

// Refresh drops the parsed-manifest cache.
func (s *FSStore) Refresh() {
	s.cache.Range(func(k, _ any) bool {
		s.cache.Delete(k)
		return true
	})
}

func parseManifest(file string, raw []byte) (map[string]any, error) {
	if strings.EqualFold(filepath.Ext(file), ".json") {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(file), err)
		}
		return doc, nil
	}
	var doc map[any]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(file), err)
	}
	out, _ := normalizeYAML(doc).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// normalizeYAML rewrites yaml.v2's interface-keyed maps into
// string-keyed maps so they are JSON-safe.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = normalizeYAML(el)
		}
		return out
	default:
		return v
	}
}
