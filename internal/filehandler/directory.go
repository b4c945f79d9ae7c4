package filehandler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

// ScanOptions bounds a directory scan.
type ScanOptions struct {
	// MaxDepth counts directory levels; 1 is the top level only, 0 is unlimited.
	MaxDepth int
	// Limit caps how many clips are returned; 0 is unlimited.
	Limit int
}

// ScanDirectoryVideos returns the MP4/MOV clips under dirPath sorted by path.
//
// Hidden directories (camera import caches, .Trashes) and macOS "._" resource
// fork files are skipped; the latter carry a .mov name but no video. Symlinked
// directories are not followed.
func ScanDirectoryVideos(dirPath string, opts ScanOptions) ([]*MediaFile, error) {
	root, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dirPath, err)
	}
	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		return nil, fmt.Errorf("directory not found: %s", dirPath)
	case err != nil:
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable path")
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || (opts.MaxDepth > 0 && depth(root, path) >= opts.MaxDepth) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), "._") || !IsVideo(filepath.Ext(d.Name())) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !symlinkToFile(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	slices.Sort(paths)
	truncated := opts.Limit > 0 && len(paths) > opts.Limit
	if truncated {
		paths = paths[:opts.Limit]
	}

	clips := make([]*MediaFile, 0, len(paths))
	for _, p := range paths {
		mf, err := LoadMediaFile(p)
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Skipping clip")
			continue
		}
		clips = append(clips, mf)
	}

	log.Info().
		Str("directory", dirPath).
		Int("videos", len(clips)).
		Int("max_depth", opts.MaxDepth).
		Bool("truncated", truncated).
		Msg("Directory scan complete")
	return clips, nil
}

// depth is the number of path elements between root and dir.
func depth(root, dir string) int {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return 0
	}
	return strings.Count(rel, string(os.PathSeparator)) + 1
}

func symlinkToFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Skipping broken symlink")
		return false
	}
	return !info.IsDir()
}
