package index_test

import (
	"os"
	"path/filepath"
	"testing"

	"veneer/internal/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

type testHelper struct {
	ix   *index.Index
	path string
}

func setupTest(t *testing.T) *testHelper {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "index.sqlite")

	ix, err := index.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	return &testHelper{ix: ix, path: path}
}

func rng(sl, sc, el, ec uint32) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: sl, Character: sc},
		End:   protocol.Position{Line: el, Character: ec},
	}
}

func TestCommitAndLookup(t *testing.T) {
	h := setupTest(t)

	require.NoError(t, h.ix.Commit("/ws/a.css", 100, []index.Symbol{
		{Name: "--brand", Kind: index.Definition, Range: rng(0, 7, 0, 14)},
		{Name: "--brand", Kind: index.Reference, Range: rng(3, 13, 3, 20)},
	}))
	require.NoError(t, h.ix.Commit("/ws/b.css", 200, []index.Symbol{
		{Name: "--brand", Kind: index.Reference, Range: rng(1, 10, 1, 17)},
		{Name: "/ws/a.css", Kind: index.Import, Range: rng(0, 8, 0, 17)},
	}))

	t.Run("definitions", func(t *testing.T) {
		defs, err := h.ix.Definitions("--brand")
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, "/ws/a.css", defs[0].Path)
		assert.Equal(t, rng(0, 7, 0, 14), defs[0].Range)
	})

	t.Run("references ordered by file", func(t *testing.T) {
		refs, err := h.ix.References("--brand")
		require.NoError(t, err)
		require.Len(t, refs, 2)
		assert.Equal(t, "/ws/a.css", refs[0].Path)
		assert.Equal(t, "/ws/b.css", refs[1].Path)
	})

	t.Run("importers", func(t *testing.T) {
		imps, err := h.ix.Importers("/ws/a.css")
		require.NoError(t, err)
		require.Len(t, imps, 1)
		assert.Equal(t, "/ws/b.css", imps[0].Path)
	})

	t.Run("unknown name", func(t *testing.T) {
		none, err := h.ix.Lookup("--nope", index.Definition)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestCommitReplacesPreviousSymbols(t *testing.T) {
	h := setupTest(t)

	require.NoError(t, h.ix.Commit("/ws/a.css", 1, []index.Symbol{
		{Name: "--old", Kind: index.Definition, Range: rng(0, 0, 0, 5)},
	}))
	require.NoError(t, h.ix.Commit("/ws/a.css", 2, []index.Symbol{
		{Name: "--new", Kind: index.Definition, Range: rng(0, 0, 0, 5)},
	}))

	old, err := h.ix.Lookup("--old", index.Definition)
	require.NoError(t, err)
	assert.Empty(t, old)

	syms, err := h.ix.SymbolsIn("/ws/a.css")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "--new", syms[0].Name)

	f, err := h.ix.GetFile("/ws/a.css")
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.LastModified)
}

func TestDeleteFileCascades(t *testing.T) {
	h := setupTest(t)

	require.NoError(t, h.ix.Commit("/ws/a.css", 1, []index.Symbol{
		{Name: "--x", Kind: index.Definition, Range: rng(0, 0, 0, 3)},
	}))
	require.NoError(t, h.ix.Delete("/ws/a.css"))

	syms, err := h.ix.Lookup("--x", index.Definition)
	require.NoError(t, err)
	assert.Empty(t, syms)

	_, err = h.ix.GetFile("/ws/a.css")
	assert.ErrorIs(t, err, index.ErrNotFound)
	assert.ErrorIs(t, h.ix.Delete("/ws/a.css"), index.ErrNotFound)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.sqlite")

	ix, err := index.Open(path)
	require.NoError(t, err)
	require.NoError(t, ix.Commit("/ws/a.css", 7, nil))
	require.NoError(t, ix.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	ix, err = index.Open(path)
	require.NoError(t, err)
	defer ix.Close()

	files, err := ix.GetAllFiles()
	require.NoError(t, err)
	assert.Equal(t, []index.FileRecord{{Path: "/ws/a.css", LastModified: 7}}, files)
	paths, err := ix.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/ws/a.css"}, paths)

	require.NoError(t, ix.Clear())
	files, err = ix.GetAllFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestInMemory(t *testing.T) {
	ix, err := index.Open(":memory:")
	require.NoError(t, err)
	defer ix.Close()

	require.NoError(t, ix.Commit("/a.css", 1, []index.Symbol{
		{Name: "--m", Kind: index.Definition, Range: rng(0, 0, 0, 3)},
	}))
	defs, err := ix.Lookup("--m", index.Definition)
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestAllOfKind(t *testing.T) {
	h := setupTest(t)

	require.NoError(t, h.ix.Commit("/ws/b.css", 1, []index.Symbol{
		{Name: "--z", Kind: index.Definition, Range: rng(0, 0, 0, 3)},
		{Name: "--a", Kind: index.Reference, Range: rng(1, 0, 1, 3)},
	}))
	require.NoError(t, h.ix.Commit("/ws/a.css", 1, []index.Symbol{
		{Name: "--a", Kind: index.Definition, Range: rng(0, 0, 0, 3)},
	}))

	defs, err := h.ix.All(index.Definition)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "--a", defs[0].Name)
	assert.Equal(t, "/ws/a.css", defs[0].Path)
	assert.Equal(t, "--z", defs[1].Name)
}
