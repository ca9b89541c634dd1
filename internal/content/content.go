// Package content associates cited URLs with the site's content entities.
// The CMS owns the data; citewatch only reads a URL map exported from it.
package content

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Post identifies a content entity on the tracked site.
type Post struct {
	ID    uint   `yaml:"id"`
	Title string `yaml:"title"`
	Path  string `yaml:"path"`
}

// Resolver maps a page URL to its content entity.
type Resolver interface {
	Resolve(pageURL string) (Post, bool)
	Title(postID uint) (string, bool)
}

// NopResolver never resolves anything.
type NopResolver struct{}

func (NopResolver) Resolve(string) (Post, bool) { return Post{}, false }
func (NopResolver) Title(uint) (string, bool)   { return "", false }

// Directory is an in-memory Resolver keyed by normalized path.
type Directory struct {
	mu     sync.RWMutex
	byPath map[string]Post
	byID   map[uint]Post
}

// NewDirectory builds a Directory from posts. Later entries win on duplicate paths.
func NewDirectory(posts []Post) *Directory {
	d := &Directory{
		byPath: make(map[string]Post, len(posts)),
		byID:   make(map[uint]Post, len(posts)),
	}
	for _, post := range posts {
		d.add(post)
	}
	return d
}

func (d *Directory) add(post Post) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byPath[normalizePath(post.Path)] = post
	if post.ID != 0 {
		d.byID[post.ID] = post
	}
}

// LoadFile reads a YAML list of posts:
//
//	- id: 42
//	  title: Best HVAC software
//	  path: /blog/best-hvac-software/
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content map: %w", err)
	}
	var posts []Post
	if err := yaml.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("failed to parse content map %s: %w", path, err)
	}
	return NewDirectory(posts), nil
}

// Resolve matches the URL's path, ignoring query, fragment and trailing slash.
func (d *Directory) Resolve(pageURL string) (Post, bool) {
	parsed, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return Post{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	post, ok := d.byPath[normalizePath(parsed.Path)]
	return post, ok
}

// Title returns the title of a known post.
func (d *Directory) Title(postID uint) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	post, ok := d.byID[postID]
	if !ok {
		return "", false
	}
	return post.Title, true
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
