package content_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citewatch/internal/content"
)

func TestDirectoryResolve(t *testing.T) {
	dir := content.NewDirectory([]content.Post{
		{ID: 7, Title: "Best HVAC software", Path: "/blog/best-hvac-software/"},
		{ID: 9, Title: "Home", Path: "/"},
	})

	post, ok := dir.Resolve("https://example.com/blog/best-hvac-software?utm_source=chatgpt.com#top")
	require.True(t, ok)
	assert.Equal(t, uint(7), post.ID)
	assert.Equal(t, "Best HVAC software", post.Title)

	post, ok = dir.Resolve("https://example.com")
	require.True(t, ok)
	assert.Equal(t, uint(9), post.ID)

	_, ok = dir.Resolve("https://example.com/missing")
	assert.False(t, ok)

	title, ok := dir.Title(7)
	assert.True(t, ok)
	assert.Equal(t, "Best HVAC software", title)

	_, ok = dir.Title(100)
	assert.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yml")
	data := "- id: 42\n  title: Pricing\n  path: /pricing\n- id: 43\n  title: About\n  path: about/\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	dir, err := content.LoadFile(path)
	require.NoError(t, err)

	post, ok := dir.Resolve("https://example.com/pricing/")
	require.True(t, ok)
	assert.Equal(t, uint(42), post.ID)

	post, ok = dir.Resolve("https://example.com/about")
	require.True(t, ok)
	assert.Equal(t, "About", post.Title)

	_, err = content.LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestNopResolver(t *testing.T) {
	var r content.Resolver = content.NopResolver{}
	_, ok := r.Resolve("https://example.com/")
	assert.False(t, ok)
	_, ok = r.Title(1)
	assert.False(t, ok)
}
