// Package resolver maps raw link references to documents in a knowledge base.
package resolver

import (
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Benny93/notegraph/internal/graph"
)

// DefaultExt is appended to extensionless link targets.
const DefaultExt = ".md"

// Resolver resolves wiki and inline links against a stem index of every
// document in the knowledge base.
//
// Wiki links are tried in order: explicit relative path, exact stem,
// case-insensitive stem, substring within the source directory, then
// substring across the whole index. Candidates are kept in lexicographic
// path order so every step, including the global fallback, is deterministic.
type Resolver struct {
	mu   sync.RWMutex
	root string

	// byStem maps exact and lowercase stems to sorted absolute paths.
	byStem map[string][]string

	// paths holds every indexed path in lexicographic order.
	paths []string
}

// New creates a Resolver for root indexing the given absolute paths.
func New(root string, paths []string) *Resolver {
	r := &Resolver{root: filepath.Clean(root)}
	r.Index(paths)
	return r
}

// Index replaces the index with paths.
func (r *Resolver) Index(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byStem = make(map[string][]string)
	r.paths = nil
	for _, p := range paths {
		r.add(filepath.Clean(p))
	}
}

// Add indexes additional paths. Already indexed paths are ignored.
func (r *Resolver) Add(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range paths {
		r.add(filepath.Clean(p))
	}
}

// Remove drops paths from the index.
func (r *Resolver) Remove(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range paths {
		p = filepath.Clean(p)
		s := stem(p)
		for _, key := range stemKeys(s) {
			r.byStem[key] = without(r.byStem[key], p)
			if len(r.byStem[key]) == 0 {
				delete(r.byStem, key)
			}
		}
		r.paths = without(r.paths, p)
	}
}

// Len returns the number of indexed paths.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.paths)
}

func (r *Resolver) add(p string) {
	i := sort.SearchStrings(r.paths, p)
	if i < len(r.paths) && r.paths[i] == p {
		return
	}
	r.paths = insertAt(r.paths, i, p)
	for _, key := range stemKeys(stem(p)) {
		r.byStem[key] = insertSorted(r.byStem[key], p)
	}
}

// Resolve sets link.Target and link.Broken. A link that cannot be resolved,
// or whose target is missing on disk, is marked broken; Resolve never fails.
func (r *Resolver) Resolve(link *graph.Link) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var target string
	switch link.Kind {
	case graph.LinkWiki:
		target = r.resolveWiki(strings.TrimSpace(link.Text), link.Source)
	case graph.LinkInline:
		target = r.resolveInline(strings.TrimSpace(link.Text), link.Source)
	}

	link.Target = target
	link.Broken = target == "" || !isFile(target)
}

func (r *Resolver) resolveWiki(text, source string) string {
	if text == "" {
		return ""
	}
	sourceDir := filepath.Dir(source)

	if strings.ContainsAny(text, `/\`) {
		rel := filepath.FromSlash(text) + DefaultExt
		for _, base := range []string{sourceDir, r.root} {
			candidate := filepath.Join(base, rel)
			if r.within(candidate) && isFile(candidate) {
				return candidate
			}
		}
	}

	if p := preferDir(r.byStem[text], sourceDir); p != "" {
		return p
	}

	lower := strings.ToLower(text)
	if p := preferDir(r.byStem[lower], sourceDir); p != "" {
		return p
	}

	for _, p := range r.paths {
		if filepath.Dir(p) == sourceDir && strings.Contains(strings.ToLower(stem(p)), lower) {
			return p
		}
	}

	for _, p := range r.paths {
		if strings.Contains(strings.ToLower(stem(p)), lower) {
			return p
		}
	}
	return ""
}

func (r *Resolver) resolveInline(text, source string) string {
	if strings.HasPrefix(text, "#") {
		return source
	}
	if i := strings.Index(text, "#"); i >= 0 {
		text = text[:i]
	}
	if unescaped, err := url.PathUnescape(text); err == nil {
		text = unescaped
	}
	if text == "" {
		return ""
	}

	base := filepath.Join(filepath.Dir(source), filepath.FromSlash(text))
	candidates := []string{base, base + DefaultExt}
	if strings.EqualFold(filepath.Ext(base), DefaultExt) {
		candidates = append(candidates, strings.TrimSuffix(base, filepath.Ext(base)))
	}

	for _, c := range candidates {
		if !r.within(c) {
			continue
		}
		if isFile(c) {
			return c
		}
	}
	return ""
}

// within reports whether p lies inside the knowledge-base root.
func (r *Resolver) within(p string) bool {
	rel, err := filepath.Rel(r.root, filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// preferDir returns the candidate in dir if any, else the first candidate.
func preferDir(candidates []string, dir string) string {
	for _, c := range candidates {
		if filepath.Dir(c) == dir {
			return c
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func stemKeys(s string) []string {
	lower := strings.ToLower(s)
	if lower == s {
		return []string{s}
	}
	return []string{s, lower}
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func insertAt(s []string, i int, v string) []string {
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	if i < len(s) && s[i] == v {
		return s
	}
	return insertAt(s, i, v)
}

func without(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
