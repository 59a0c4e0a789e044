// Package zip bundles generated thumbnails into one downloadable archive.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
)

// Entry is one file inside the archive.
type Entry struct {
	Name string
	Data []byte
}

// Archive writes the entries into an in-memory zip, in order. Duplicate
// names get a numeric suffix so every entry survives extraction.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	seen := map[string]int{}
	for _, entry := range entries {
		name := entry.Name
		if name == "" {
			name = "thumbnail"
		}
		n := seen[name]
		seen[name] = n + 1
		if n > 0 {
			name = numberedName(name, n)
		}

		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func numberedName(name string, n int) string {
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}
