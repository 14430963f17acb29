// Package scanner walks a workspace and hands stylesheet contents to a
// callback.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("veneer.scanner")

// Scan walks the subtree under root. Files and directories whose name
// begins with "." are skipped entirely. For every other file, skip decides
// whether it is read; files that pass are read in parallel and handed to
// callback. Scan returns once every callback has completed, with the first
// callback error or the context's error.
func Scan(
	ctx context.Context,
	root string,
	skip func(path string, info fs.FileInfo) bool,
	callback func(path string, info fs.FileInfo, data []byte) error,
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	log.Debugf("walking %q", root)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warningf("walk error: %s", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if skip(path, info) {
			return nil
		}

		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Warningf("read error: %s: %s", path, err)
				return nil
			}
			return callback(path, info, data)
		})
		return nil
	})

	if gerr := g.Wait(); gerr != nil {
		return gerr
	}
	return err
}
