// Package skeleton loads the fixed HTML skeletons of template types and fills their
// {field} placeholders.
package skeleton

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

//go:embed assets
var assetsFS embed.FS

// DefaultCacheSize bounds the number of parsed skeletons kept in memory.
const DefaultCacheSize = 64

// ErrNotFound is returned when no skeleton exists for a type and size.
var ErrNotFound = errors.New("skeleton not found")

// NotFoundError names the missing asset.
type NotFoundError struct {
	Type string
	Size int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("skeleton not found: %s/%d.html", e.Type, e.Size)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Store reads skeleton assets and caches them by type and size.
type Store struct {
	fsys  fs.FS
	cache *lru.Cache[string, string]
}

// NewStore returns a store over the embedded assets.
func NewStore() (*Store, error) {
	sub, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		return nil, fmt.Errorf("open embedded skeletons: %w", err)
	}
	return NewStoreFS(sub, DefaultCacheSize)
}

// NewStoreFS returns a store reading <type>/<size>.html from fsys.
func NewStoreFS(fsys fs.FS, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create skeleton cache: %w", err)
	}
	return &Store{fsys: fsys, cache: cache}, nil
}

// Load returns the skeleton for typeID at size.
func (s *Store) Load(typeID string, size int) (string, error) {
	key := path.Join(typeID, strconv.Itoa(size)+".html")
	if html, ok := s.cache.Get(key); ok {
		return html, nil
	}
	raw, err := fs.ReadFile(s.fsys, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &NotFoundError{Type: typeID, Size: size}
		}
		return "", fmt.Errorf("read skeleton %s: %w", key, err)
	}
	html := string(raw)
	s.cache.Add(key, html)
	return html, nil
}

// Sizes lists the sizes available for typeID, ascending.
func (s *Store) Sizes(typeID string) []int {
	entries, err := fs.ReadDir(s.fsys, typeID)
	if err != nil {
		return nil
	}
	var sizes []int
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".html")
		if n, err := strconv.Atoi(name); err == nil && name != e.Name() {
			sizes = append(sizes, n)
		}
	}
	sort.Ints(sizes)
	return sizes
}

var placeholderPattern = regexp.MustCompile(`\{[^}]+\}`)

// Placeholders returns the distinct token names in html, in order of first appearance.
func Placeholders(html string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderPattern.FindAllString(html, -1) {
		name := m[1 : len(m)-1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Fill replaces palette tokens, then field tokens, literally, and strips any token
// left unresolved. The output never contains a {...} placeholder.
func Fill(html string, fields, palette map[string]string) string {
	pairs := make([]string, 0, 2*(len(fields)+len(palette)))
	for name, value := range palette {
		pairs = append(pairs, "{"+name+"}", value)
	}
	out := strings.NewReplacer(pairs...).Replace(html)

	pairs = pairs[:0]
	for name, value := range fields {
		pairs = append(pairs, "{"+name+"}", value)
	}
	out = strings.NewReplacer(pairs...).Replace(out)

	return Cleanup(out)
}

// Cleanup removes every remaining {token}.
func Cleanup(html string) string {
	return placeholderPattern.ReplaceAllString(html, "")
}
