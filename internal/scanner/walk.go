package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Walk returns the repo-relative slash paths of the files under root that
// pass opts, in sorted order. root is repo-relative; a file root yields
// itself when it passes the filter. Excluded directories are not descended.
func Walk(repoRoot, root string, opts FilterOptions) ([]string, error) {
	start := filepath.Join(repoRoot, filepath.FromSlash(root))
	info, err := os.Stat(start)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return FilterFiles([]string{filepath.ToSlash(filepath.Clean(root))}, opts), nil
	}

	var files []string
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(repoRoot, p)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", p, err)
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if p != start && (shouldExclude(d.Name(), opts.ExcludeDirs) || matchesGlob(rel, opts.ExcludeGlobs)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FilterFiles(files, opts), nil
}

// UnderRoot keeps the paths equal to root or below it.
func UnderRoot(paths []string, root string) []string {
	root = strings.TrimSuffix(filepath.ToSlash(filepath.Clean(root)), "/")
	var out []string
	for _, p := range paths {
		if root == "." || p == root || strings.HasPrefix(p, root+"/") {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
