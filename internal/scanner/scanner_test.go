package scanner_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"veneer/internal/scanner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanSkipsDotEntries(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.css", "a")
	write(t, root, "nested/b.scss", "b")
	write(t, root, ".git/c.css", "c")
	write(t, root, "nested/.hidden.css", "d")
	write(t, root, "notes.txt", "e")

	var mu sync.Mutex
	got := map[string]string{}
	skip := func(path string, info fs.FileInfo) bool {
		return filepath.Ext(path) == ".txt"
	}
	err := scanner.Scan(context.Background(), root, skip, func(path string, info fs.FileInfo, data []byte) error {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		mu.Lock()
		got[filepath.ToSlash(rel)] = string(data)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.css": "a", "nested/b.scss": "b"}, got)
}

func TestScanReturnsCallbackError(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.css", "a")
	boom := errors.New("boom")

	err := scanner.Scan(context.Background(), root,
		func(string, fs.FileInfo) bool { return false },
		func(string, fs.FileInfo, []byte) error { return boom },
	)
	assert.ErrorIs(t, err, boom)
}

func TestScanVisitsEveryFile(t *testing.T) {
	root := t.TempDir()
	want := []string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		write(t, root, name+".less", name)
		want = append(want, name)
	}

	var mu sync.Mutex
	var got []string
	err := scanner.Scan(context.Background(), root,
		func(string, fs.FileInfo) bool { return false },
		func(path string, info fs.FileInfo, data []byte) error {
			mu.Lock()
			got = append(got, string(data))
			mu.Unlock()
			return nil
		},
	)
	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, want, got)
}
