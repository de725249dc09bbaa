package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxFilenameStem bounds the readable part of a cache filename. The
// hash suffix keeps truncated names unique.
const maxFilenameStem = 120

// urlToFilename turns a URL into a safe, unique, mostly readable
// filename. The scheme is dropped, every byte outside [a-zA-Z0-9._-]
// becomes an underscore, long names are truncated, and a short content
// hash of the full URL is appended so distinct URLs never collide after
// mangling.
func urlToFilename(rawURL string) string {
	stem := rawURL
	for _, prefix := range []string{"https://", "http://"} {
		stem = strings.TrimPrefix(stem, prefix)
	}

	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	safe := b.String()
	if len(safe) > maxFilenameStem {
		safe = safe[:maxFilenameStem]
	}

	sum := sha256.Sum256([]byte(rawURL))
	return safe + "." + hex.EncodeToString(sum[:])[:12]
}

// ContentCache stores fetched page bodies, one file per URL. It
// implements the fetcher's cache interface.
type ContentCache struct {
	dir      string
	compress bool
}

// Store writes the body under the URL's mangled filename and returns
// the filename as the cache reference.
func (c *ContentCache) Store(finalURL string, body []byte) (string, error) {
	name := urlToFilename(finalURL)
	if c.compress {
		name += ".gz"
	}
	path := filepath.Join(c.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	if c.compress {
		zw := gzip.NewWriter(f)
		if _, err := zw.Write(body); err != nil {
			return "", fmt.Errorf("failed to write cache file: %w", err)
		}
		if err := zw.Close(); err != nil {
			return "", fmt.Errorf("failed to finish cache file: %w", err)
		}
	} else {
		if _, err := f.Write(body); err != nil {
			return "", fmt.Errorf("failed to write cache file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close cache file: %w", err)
	}
	return name, nil
}

// Load reads a body back by its cache reference, inflating compressed
// entries transparently.
func (c *ContentCache) Load(ref string) ([]byte, error) {
	f, err := os.Open(filepath.Join(c.dir, ref))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(ref, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read cache file: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	}
	return io.ReadAll(f)
}

// XMLCache stores raw sitemap documents, one file per sitemap URL. It
// implements the resolver's raw cache interface. Files keep a .xml
// extension so the cache is browsable.
type XMLCache struct {
	dir string
}

// StoreXML writes one raw sitemap document.
func (c *XMLCache) StoreXML(sitemapURL string, data []byte) error {
	path := filepath.Join(c.dir, urlToFilename(sitemapURL)+".xml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write sitemap cache: %w", err)
	}
	return nil
}
