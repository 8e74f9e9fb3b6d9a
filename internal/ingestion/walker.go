// Package ingestion walks a knowledge base, builds its graph, keeps the vector
// store in step with it and watches the tree for changes.
package ingestion

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileEntry is one document file found in the knowledge base.
type FileEntry struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the slash-separated path relative to the root.
	RelPath string

	Modified time.Time
	Size     int64
}

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	".notegraph/",
	".obsidian/",
	".trash/",
	"node_modules/",
	".DS_Store",
	"Thumbs.db",
}

// Extensions that look like notes but have no extractor.
var unsupportedExtensions = map[string]bool{
	".pdf": true,
}

// Walk returns every file under root accepted by accept, skipping hidden
// entries, the default ignore patterns and anything matched by the root
// .gitignore. Entries are ordered by RelPath.
func Walk(root string, accept func(path string) bool, logger *slog.Logger) ([]FileEntry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	patterns, err := loadGitignore(root)
	if err != nil {
		return nil, err
	}
	matcher := newMatcher(patterns)

	var entries []FileEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		if d.IsDir() {
			if shouldSkipDir(d.Name(), path, root, matcher) {
				return filepath.SkipDir
			}
			return nil
		}
		if isIgnored(path, root, matcher) {
			return nil
		}

		if !accept(path) {
			if unsupportedExtensions[strings.ToLower(filepath.Ext(path))] {
				logger.Warn("skipping unsupported document",
					slog.String("path", path),
					slog.String("format", strings.TrimPrefix(filepath.Ext(path), ".")),
				)
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, FileEntry{
			Path:     path,
			RelPath:  filepath.ToSlash(rel),
			Modified: info.ModTime(),
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })
	return entries, nil
}

// Paths returns the absolute paths of entries.
func Paths(entries []FileEntry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}

// loadGitignore loads .gitignore patterns from the knowledge-base root.
func loadGitignore(root string) ([]gitignore.Pattern, error) {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, nil
}

// newMatcher combines the default patterns with the loaded ones.
func newMatcher(patterns []gitignore.Pattern) gitignore.Matcher {
	all := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+len(patterns))
	for _, p := range defaultIgnorePatterns {
		all = append(all, gitignore.ParsePattern(p, nil))
	}
	all = append(all, patterns...)
	return gitignore.NewMatcher(all)
}

// shouldSkipDir checks if a directory should be skipped.
func shouldSkipDir(name, path, root string, matcher gitignore.Matcher) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return matcher.Match(splitPath(rel), true)
}

// isIgnored checks whether a file is hidden or matched by the ignore rules.
func isIgnored(path, root string, matcher gitignore.Matcher) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	parts := splitPath(rel)
	for _, p := range parts {
		if strings.HasPrefix(p, ".") {
			return true
		}
	}
	return matcher.Match(parts, false)
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
