package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"veneer/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKeepsDefaults(t *testing.T) {
	cfg, err := config.Load(map[string]any{"index_path": ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.IndexPath)
	assert.Equal(t, ".", cfg.Root)
	assert.Equal(t, 5, cfg.ScanIntervalMinutes)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "veneer.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
root: /ws
extensions:
  .vue: html
remote:
  - dialect: svelte
    command: svelteserver
    args: [--stdio]
    extensions: [.svelte]
settings:
  css:
    lint:
      emptyRules: ignore
`), 0o644))
		cfg, err := config.LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "/ws", cfg.Root)
		assert.Equal(t, "html", cfg.Extensions[".vue"])
		require.Len(t, cfg.Remote, 1)
		assert.Equal(t, "svelteserver", cfg.Remote[0].Command)
		assert.Equal(t, []string{"--stdio"}, cfg.Remote[0].Args)
		assert.Equal(t, "ignore", config.String(cfg.Settings, "css.lint.emptyRules", ""))
	})

	t.Run("toml", func(t *testing.T) {
		path := filepath.Join(dir, "veneer.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
root = "/ws"
scan_interval_minutes = 1

[[remote]]
dialect = "svelte"
command = "svelteserver"
`), 0o644))
		cfg, err := config.LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.ScanIntervalMinutes)
		require.Len(t, cfg.Remote, 1)
		assert.Equal(t, "svelte", cfg.Remote[0].Dialect)
	})

	t.Run("unknown extension", func(t *testing.T) {
		path := filepath.Join(dir, "veneer.ini")
		require.NoError(t, os.WriteFile(path, []byte(`x=1`), 0o644))
		_, err := config.LoadFile(path)
		assert.Error(t, err)
	})
}

func TestOverlayDoesNotTouchReceiver(t *testing.T) {
	base, err := config.Load(map[string]any{"extensions": map[string]any{".vue": "html"}})
	require.NoError(t, err)

	over, err := base.Overlay(map[string]any{"extensions": map[string]any{".njk": "tmpl"}})
	require.NoError(t, err)
	assert.Len(t, over.Extensions, 2)
	assert.Len(t, base.Extensions, 1)
}

func TestStoreLookupAndReplace(t *testing.T) {
	store := config.NewStore(config.Defaults())
	ctx := context.Background()

	v, ok := store.GetConfiguration(ctx, "css.format.enable")
	require.True(t, ok)
	assert.Equal(t, true, v)

	fired := 0
	store.OnConfigurationChanged(func() { fired++ })

	store.Replace(struct {
		CSS map[string]any `json:"css"`
	}{CSS: map[string]any{"format": map[string]any{"enable": false}}})
	assert.Equal(t, 1, fired)

	v, ok = store.GetConfiguration(ctx, "css.format.enable")
	require.True(t, ok)
	assert.Equal(t, false, v)

	_, ok = store.GetConfiguration(ctx, "html.format.enable")
	assert.False(t, ok, "replace swaps the whole tree")
}

func TestLookupFlatKeys(t *testing.T) {
	tree := map[string]any{
		"css.lint": map[string]any{"emptyRules": "error"},
		"html":     map[string]any{"format.enable": false},
	}
	assert.Equal(t, "error", config.String(tree, "css.lint.emptyRules", ""))
	assert.False(t, config.Bool(tree, "html.format.enable", true))
	assert.Equal(t, 3, config.Int(tree, "html.format.tabSize", 3))
}

func TestMergeLayers(t *testing.T) {
	defaults := config.FormatDefaults()
	doc := map[string]any{"tabSize": 2, "wrapLineLength": 80}
	req := map[string]any{"insertSpaces": false}

	merged := config.Merge(defaults, doc, req)
	assert.Equal(t, 2, config.Int(merged, "tabSize", 0))
	assert.Equal(t, false, config.Bool(merged, "insertSpaces", true))
	assert.Equal(t, 80, config.Int(merged, "wrapLineLength", 0))

	nested := config.Merge(
		map[string]any{"lint": map[string]any{"a": 1, "b": 1}},
		map[string]any{"lint": map[string]any{"b": 2}},
	)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, nested["lint"])
}

func TestStrings(t *testing.T) {
	tree := map[string]any{
		"css":  map[string]any{"customData": []any{"a.json", 3, "b.json"}},
		"html": map[string]any{"customData": "c.json"},
	}
	assert.Equal(t, []string{"a.json", "b.json"}, config.Strings(tree, "css.customData"))
	assert.Equal(t, []string{"c.json"}, config.Strings(tree, "html.customData"))
	assert.Nil(t, config.Strings(tree, "less.customData"))
}

func TestIndentUnit(t *testing.T) {
	assert.Equal(t, "    ", config.IndentUnit(config.FormatDefaults()))
	assert.Equal(t, "  ", config.IndentUnit(map[string]any{"tabSize": 2, "insertSpaces": true}))
	assert.Equal(t, "\t", config.IndentUnit(map[string]any{"tabSize": 2, "insertSpaces": false}))
	assert.Equal(t, "", config.IndentUnit(map[string]any{"tabSize": -1}))
}
