package bridge

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

var errStopWalk = errors.New("stop walk")

// Assets enumerates files under a fixed application root
type Assets struct {
	root   string
	exts   map[string]struct{}
	logger *zap.Logger
}

// NewAssets creates an enumerator over root allowing the given extensions
// (".png" style, compared case-insensitively)
func NewAssets(root string, exts []string, logger *zap.Logger) *Assets {
	if logger == nil {
		logger = zap.NewNop()
	}
	allow := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		allow[e] = struct{}{}
	}
	return &Assets{root: root, exts: allow, logger: logger}
}

// clampRel resolves rel inside the root. Leading slashes and ".." segments
// that would climb above the root are dropped.
func clampRel(rel string) string {
	rel = strings.ReplaceAll(rel, `\`, "/")
	clean := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if clean == "" {
		return "."
	}
	return clean
}

// ReadImages lazily yields slash-separated paths, relative to the root, of
// allow-listed files beneath rel. A missing or unreadable directory yields
// nothing. The sequence can be ranged over once; later ranges are empty.
func (a *Assets) ReadImages(rel string) iter.Seq[string] {
	var used atomic.Bool
	dir := clampRel(filepath.ToSlash(rel))

	return func(yield func(string) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}

		// lookups through root refuse symlinks that leave the app root
		root, err := os.OpenRoot(a.root)
		if err != nil {
			a.logger.Debug("asset root unavailable", zap.String("root", a.root), zap.Error(err))
			return
		}
		defer root.Close()

		fsys := root.FS()
		info, err := fs.Stat(fsys, dir)
		if err != nil || !info.IsDir() {
			a.logger.Debug("asset directory unavailable", zap.String("path", dir), zap.Error(err))
			return
		}
		sub, err := fs.Sub(fsys, dir)
		if err != nil {
			return
		}

		err = doublestar.GlobWalk(sub, "**", func(p string, d fs.DirEntry) error {
			if d.IsDir() || d.Type()&fs.ModeSymlink != 0 || !a.allowed(p) {
				return nil
			}
			out := p
			if dir != "." {
				out = dir + "/" + p
			}
			if !yield(out) {
				return errStopWalk
			}
			return nil
		}, doublestar.WithNoFollow())
		if err != nil && !errors.Is(err, errStopWalk) {
			a.logger.Debug("asset walk ended early", zap.String("path", dir), zap.Error(err))
		}
	}
}

func (a *Assets) allowed(p string) bool {
	_, ok := a.exts[strings.ToLower(path.Ext(p))]
	return ok
}
