package fetcher

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

// Collect reads every *.json file under root with at most limit reads in flight.
// Unreadable or malformed files are logged and skipped; output follows walk order.
func Collect(ctx context.Context, log *logger.Logger, root string, limit int) ([]json.RawMessage, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if limit < 1 {
		limit = 1
	}
	docs := make([]json.RawMessage, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				log.Error("Error reading CVE file", "path", path, "error", err)
				return nil
			}
			if !json.Valid(raw) {
				log.Error("Error decoding CVE file", "path", path)
				return nil
			}
			docs[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := docs[:0]
	for _, d := range docs {
		if d != nil {
			out = append(out, d)
		}
	}
	return out, nil
}
