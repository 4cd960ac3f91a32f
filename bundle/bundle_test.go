package bundle_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sagarc03/pagehaven"
	"github.com/sagarc03/pagehaven/bundle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"index.html":          "<h1>home</h1>",
		"assets/app.css":      "body{}",
		"assets/img/logo.png": "png",
		"docs/index.html":     "docs",
		".env":                "SECRET=1",
		".git/config":         "[core]",
		"assets/.DS_Store":    "junk",
		bundle.ManifestName:   "headers: []",
		"docs/pagehaven.yaml": "nested manifests are plain files",
	})

	files, err := bundle.Collect(dir)
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{
		"assets/app.css",
		"assets/img/logo.png",
		"docs/index.html",
		"docs/pagehaven.yaml",
		"index.html",
	}, paths)

	assert.Equal(t, int64(len("body{}")), files[0].Size)
	assert.Equal(t, filepath.Join(dir, "assets", "app.css"), files[0].FullPath)
}

func TestCollect_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := bundle.Collect(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("not a directory", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{"file.txt": "x"})

		_, err := bundle.Collect(filepath.Join(dir, "file.txt"))
		assert.ErrorIs(t, err, pagehaven.ErrInvalidInput)
	})
}

func TestLoadManifest(t *testing.T) {
	t.Run("missing manifest is empty", func(t *testing.T) {
		m, err := bundle.LoadManifest(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, m.Headers)
	})

	t.Run("parses rules", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{bundle.ManifestName: `
headers:
  - match: "assets/*"
    cache_control: "public, max-age=31536000, immutable"
  - match: "*.html"
    cache_control: "no-cache"
    content_type: "text/html; charset=utf-8"
`})

		m, err := bundle.LoadManifest(dir)
		require.NoError(t, err)
		require.Len(t, m.Headers, 2)
		assert.Equal(t, "assets/*", m.Headers[0].Match)
		assert.Equal(t, "text/html; charset=utf-8", m.Headers[1].ContentType)
	})

	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid yaml", content: "headers: [unclosed"},
		{name: "empty pattern", content: "headers:\n  - cache_control: no-cache\n"},
		{name: "bad pattern", content: "headers:\n  - match: \"[\"\n"},
	}

	for _, tt := range tests {
		t.Run("error - "+tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFiles(t, dir, map[string]string{bundle.ManifestName: tt.content})

			_, err := bundle.LoadManifest(dir)
			assert.ErrorIs(t, err, pagehaven.ErrInvalidInput)
		})
	}
}

func TestManifest_Lookup(t *testing.T) {
	m := bundle.Manifest{Headers: []bundle.HeaderRule{
		{Match: "assets/*", CacheControl: "immutable"},
		{Match: "*.html", CacheControl: "no-cache", ContentType: "text/html; charset=utf-8"},
		{Match: "*", CacheControl: "max-age=60", ContentType: "application/x-fallback"},
	}}

	tests := []struct {
		path             string
		wantContentType  string
		wantCacheControl string
	}{
		{path: "assets/app.css", wantContentType: "application/x-fallback", wantCacheControl: "immutable"},
		{path: "index.html", wantContentType: "text/html; charset=utf-8", wantCacheControl: "no-cache"},
		{path: "docs/guide/index.html", wantContentType: "text/html; charset=utf-8", wantCacheControl: "no-cache"},
		{path: "assets/img/logo.png", wantContentType: "application/x-fallback", wantCacheControl: "max-age=60"},
		{path: "robots.txt", wantContentType: "application/x-fallback", wantCacheControl: "max-age=60"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ct, cc := m.Lookup(tt.path)
			assert.Equal(t, tt.wantContentType, ct)
			assert.Equal(t, tt.wantCacheControl, cc)
		})
	}
}

func TestManifest_Object(t *testing.T) {
	m := bundle.Manifest{Headers: []bundle.HeaderRule{{Match: "*.css", CacheControl: "immutable"}}}

	assert.Equal(t,
		pagehaven.PutObject{Path: "a/site.css", CacheControl: "immutable"},
		m.Object(bundle.File{Path: "a/site.css"}))

	assert.Equal(t,
		pagehaven.PutObject{Path: "index.html"},
		bundle.Manifest{}.Object(bundle.File{Path: "index.html"}))
}

func TestCheckPaths(t *testing.T) {
	t.Run("valid bundle", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{
			"index.html":         "home",
			"assets/app.css":     "body{}",
			"docs/r%C3%A9.html":  "escaped",
			"files/résumé.pdf":   "utf-8",
			"files/report-1.pdf": "x",
		})

		files, err := bundle.Collect(dir)
		require.NoError(t, err)
		assert.NoError(t, bundle.CheckPaths(files))
	})

	t.Run("rejects unsupported names before anything else", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir, map[string]string{
			"a.html":         "a",
			"b c.html":       "space",
			"docs/~old.html": "tilde",
			"z.html":         "z",
		})

		files, err := bundle.Collect(dir)
		require.NoError(t, err)
		require.Len(t, files, 4)

		err = bundle.CheckPaths(files)
		require.ErrorIs(t, err, pagehaven.ErrInvalidInput)
		assert.Contains(t, err.Error(), `"b c.html"`)
		assert.Contains(t, err.Error(), `"docs/~old.html"`)
		assert.NotContains(t, err.Error(), `"a.html"`)
	})
}
