// Package bundle reads a local site bundle for deployment.
//
// A bundle is a directory of static files. An optional pagehaven.yaml at
// its root assigns Cache-Control and Content-Type headers by path pattern:
//
//	headers:
//	  - match: "assets/*"
//	    cache_control: "public, max-age=31536000, immutable"
//	  - match: "*.html"
//	    cache_control: "no-cache"
//
// Patterns use path.Match syntax against the slash-separated path relative
// to the bundle root. A pattern without a "/" is also matched against the
// file's base name, so "*.html" covers nested pages too.
package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sagarc03/pagehaven"
	"gopkg.in/yaml.v3"
)

// ManifestName is the header manifest file at the bundle root.
const ManifestName = "pagehaven.yaml"

// File is one deployable file of a bundle.
type File struct {
	// Path is relative to the bundle root, slash-separated.
	Path string
	// FullPath is the location on disk.
	FullPath string
	Size     int64
}

// Collect walks dir and returns its regular files sorted by path. The
// manifest, dotfiles and anything inside dot-directories are skipped.
func Collect(dir string) ([]File, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("collect bundle: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("collect bundle: %s is not a directory: %w", dir, pagehaven.ErrInvalidInput)
	}

	var files []File
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == dir {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == ManifestName {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}

		files = append(files, File{Path: rel, FullPath: p, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect bundle: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// CheckPaths rejects a bundle containing any file whose path cannot be
// stored as an object, such as names with whitespace or "~". All offending
// paths are reported together so nothing is uploaded from a bad bundle.
func CheckPaths(files []File) error {
	var invalid []string
	for _, f := range files {
		if !pagehaven.IsValidPath(f.Path) {
			invalid = append(invalid, strconv.Quote(f.Path))
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	return fmt.Errorf("check bundle: %w: unsupported file names: %s", pagehaven.ErrInvalidInput, strings.Join(invalid, ", "))
}

// HeaderRule sets headers for the files matching Match. Empty fields leave
// the header to later rules or the defaults.
type HeaderRule struct {
	Match        string `yaml:"match"`
	CacheControl string `yaml:"cache_control,omitempty"`
	ContentType  string `yaml:"content_type,omitempty"`
}

// Manifest is the parsed pagehaven.yaml.
type Manifest struct {
	Headers []HeaderRule `yaml:"headers"`
}

// LoadManifest reads the manifest of the bundle at dir. A bundle without
// one yields an empty Manifest.
func LoadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, nil
		}
		return Manifest{}, fmt.Errorf("load manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("load manifest: %w: %w", pagehaven.ErrInvalidInput, err)
	}

	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("load manifest: %w", err)
	}

	return m, nil
}

// Validate rejects rules with an empty or malformed pattern.
func (m Manifest) Validate() error {
	for i, rule := range m.Headers {
		if rule.Match == "" {
			return fmt.Errorf("%w: header rule %d has no match pattern", pagehaven.ErrInvalidInput, i)
		}
		if _, err := path.Match(rule.Match, ""); err != nil {
			return fmt.Errorf("%w: header rule %d: %q: %w", pagehaven.ErrInvalidInput, i, rule.Match, err)
		}
	}
	return nil
}

// Lookup returns the headers for p. Each field comes from the first rule
// that matches p and sets it.
func (m Manifest) Lookup(p string) (contentType, cacheControl string) {
	for _, rule := range m.Headers {
		if !rule.matches(p) {
			continue
		}
		if contentType == "" {
			contentType = rule.ContentType
		}
		if cacheControl == "" {
			cacheControl = rule.CacheControl
		}
		if contentType != "" && cacheControl != "" {
			break
		}
	}
	return contentType, cacheControl
}

// Object describes f as an upload for the object service. An unset
// content type is inferred from the path later on.
func (m Manifest) Object(f File) pagehaven.PutObject {
	contentType, cacheControl := m.Lookup(f.Path)
	return pagehaven.PutObject{
		Path:         f.Path,
		ContentType:  contentType,
		CacheControl: cacheControl,
	}
}

func (r HeaderRule) matches(p string) bool {
	if ok, _ := path.Match(r.Match, p); ok {
		return true
	}
	if !strings.Contains(r.Match, "/") {
		ok, _ := path.Match(r.Match, path.Base(p))
		return ok
	}
	return false
}
