package texture

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
)

// DiscoverOptions controls which files Discover picks up.
type DiscoverOptions struct {
	// Extensions is the lower-case allow-list, with leading dots.
	Extensions []string
	// Exclude holds doublestar patterns matched against slash-separated
	// paths relative to the root.
	Exclude []string
	Logger  *logrus.Logger
}

// Discover walks root and returns the absolute paths of all texture files,
// sorted lexicographically. Symlinked files are included under their link
// path.
func Discover(root string, opts DiscoverOptions) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("input directory does not exist: %s", absRoot)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path is not a directory: %s", absRoot)
	}

	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}

	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %q", pattern)
		}
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if opts.Logger != nil {
				opts.Logger.Warnf("Error accessing path %s: %v", path, err)
			}
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return relErr
		}
		if rel != "." && isExcluded(filepath.ToSlash(rel), opts.Exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			// Linked files count; linked directories are not descended into.
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
		case !d.Type().IsRegular():
			return nil
		}

		if _, ok := extSet[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", absRoot, err)
	}

	sort.Strings(files)
	return files, nil
}

func isExcluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
