package vocabulary_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"veneer/internal/vocabulary"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinFamilies(t *testing.T) {
	b := vocabulary.Builtin()

	_, ok := b.For(vocabulary.FamilyCSS).Property("color")
	assert.True(t, ok)
	_, ok = b.For(vocabulary.FamilyCSS).AtDirective("@mixin")
	assert.False(t, ok, "sass at-rules are not plain css")
	_, ok = b.For(vocabulary.FamilySCSS).AtDirective("@mixin")
	assert.True(t, ok)
	_, ok = b.For(vocabulary.FamilySCSS).Property("display")
	assert.True(t, ok, "scss includes the css properties")

	html := b.For(vocabulary.FamilyHTML)
	tag, ok := html.Tag("IMG")
	require.True(t, ok)
	assert.True(t, tag.Void)
	_, ok = html.Attribute("img", "alt")
	assert.True(t, ok)
	_, ok = html.Attribute("img", "class")
	assert.True(t, ok, "global attributes apply to every tag")
	assert.NotEmpty(t, html.AttributeValues("input", "type"))
}

func TestParseAcceptsMarkupDescriptionsAndSkipsUnnamed(t *testing.T) {
	d, err := vocabulary.Parse([]byte(`{
		"version": 1.1,
		"properties": [
			{"name": "my-prop", "description": {"kind": "markdown", "value": "Custom *thing*"}},
			{"description": "no name"}
		],
		"atDirectives": [{"name": "@tailwind", "description": "Tailwind directive"}]
	}`))
	require.NoError(t, err)
	require.Len(t, d.Properties, 1)
	assert.Equal(t, vocabulary.Description("Custom *thing*"), d.Properties[0].Description)
	assert.Len(t, d.AtDirectives, 1)
}

func TestLoadSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"atDirectives":[{"name":"@tailwind"}]}`), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte(`{not json`), 0o644))

	data, loaded := vocabulary.Load(dir, []string{"good.json", "bad.json", "missing.json"})
	require.Len(t, data, 1)
	assert.Equal(t, []string{good}, loaded)

	b := vocabulary.Build(data, nil, loaded)
	for _, f := range []vocabulary.Family{vocabulary.FamilyCSS, vocabulary.FamilySCSS, vocabulary.FamilyLess} {
		_, ok := b.For(f).AtDirective("@tailwind")
		assert.True(t, ok, "family %s", f)
	}
	assert.Equal(t, []string{good}, b.Sources())
}

func TestEntryMarkdown(t *testing.T) {
	e := vocabulary.Entry{
		Name:        "color",
		Description: "Sets the color.",
		References:  []vocabulary.Reference{{Name: "MDN", URL: "https://example.com/color"}},
	}
	assert.Equal(t, "Sets the color.\n\n[MDN](https://example.com/color)", e.Markdown())
}

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	changed := make(chan struct{}, 1)
	w, err := vocabulary.NewWatcher(20*time.Millisecond, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()
	w.Watch([]string{path})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(`{"properties":[]}`), 0o644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
