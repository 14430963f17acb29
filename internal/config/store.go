package config

import (
	"context"
	"encoding/json"
	"maps"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("veneer.config")

// Source is what the dispatcher needs from configuration.
type Source interface {
	GetConfiguration(ctx context.Context, key string) (any, bool)
	OnConfigurationChanged(func())
}

// Store holds the client's settings tree ("css.lint.emptyRules",
// "html.format.enable", "css.customData", ...). The tree is replaced as a
// whole and never mutated in place.
type Store struct {
	mu        sync.RWMutex
	tree      map[string]any
	listeners []func()
}

func NewStore(tree map[string]any) *Store {
	return &Store{tree: Normalize(tree)}
}

// GetConfiguration resolves a dotted key. Keys may also be stored flat
// ("css.lint.emptyRules" as one key), as some clients send them.
func (s *Store) GetConfiguration(ctx context.Context, key string) (any, bool) {
	s.mu.RLock()
	tree := s.tree
	s.mu.RUnlock()
	return Lookup(tree, key)
}

// Section returns the subtree at key, or nil.
func (s *Store) Section(key string) map[string]any {
	v, ok := s.GetConfiguration(context.Background(), key)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

func (s *Store) OnConfigurationChanged(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Replace swaps the settings tree and notifies listeners.
func (s *Store) Replace(settings any) {
	tree := Normalize(settings)
	s.mu.Lock()
	s.tree = tree
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()

	log.Debugf("settings replaced (%d top-level keys)", len(tree))
	for _, fn := range listeners {
		fn()
	}
}

// Normalize turns any JSON-shaped value into a map[string]any tree.
// Anything that is not an object becomes an empty tree.
func Normalize(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	if m, ok := v.(map[string]any); ok {
		return maps.Clone(m)
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Warningf("ignoring settings: %s", err)
		return map[string]any{}
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil || tree == nil {
		return map[string]any{}
	}
	return tree
}

// Lookup resolves a dotted key in a settings tree.
func Lookup(tree map[string]any, key string) (any, bool) {
	if tree == nil {
		return nil, false
	}
	if v, ok := tree[key]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(key, ".")
	if !found {
		return nil, false
	}
	// "css.lint" may itself be a flat key holding {"emptyRules": ...}
	for i := len(key) - 1; i > len(head); i-- {
		if key[i] != '.' {
			continue
		}
		if sub, ok := tree[key[:i]].(map[string]any); ok {
			if v, ok := Lookup(sub, key[i+1:]); ok {
				return v, true
			}
		}
	}
	sub, ok := tree[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return Lookup(sub, rest)
}

// Merge layers settings maps. Later layers win; nested maps are merged key
// by key. Typical use is Merge(defaults, document, request).
func Merge(layers ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, layer := range layers {
		for k, v := range layer {
			if sub, ok := v.(map[string]any); ok {
				if prev, ok := out[k].(map[string]any); ok {
					out[k] = Merge(prev, sub)
					continue
				}
				out[k] = Merge(sub)
				continue
			}
			out[k] = v
		}
	}
	return out
}

func String(tree map[string]any, key, def string) string {
	if v, ok := Lookup(tree, key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func Bool(tree map[string]any, key string, def bool) bool {
	if v, ok := Lookup(tree, key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int accepts any JSON or YAML number.
func Int(tree map[string]any, key string, def int) int {
	v, ok := Lookup(tree, key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint32:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

// Strings accepts a list of strings or a single string.
func Strings(tree map[string]any, key string) []string {
	v, ok := Lookup(tree, key)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case string:
		return []string{list}
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
