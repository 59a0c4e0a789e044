// Package storage persists generated thumbnails and exposes their public
// locations. The filesystem implementation targets single-node deployments;
// the store and normalizer interfaces are what the rest of the code sees.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore persists assets onto the local filesystem. Writes are atomic:
// bytes land in a temp directory first and move into place with a rename, so
// readers never observe a partial file.
type FileStore struct {
	basePath      string
	publicBaseURL string
}

// NewFileStore initializes a FileStore rooted at basePath. Stored keys are
// advertised under publicBaseURL.
func NewFileStore(basePath, publicBaseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(basePath, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure temp path: %w", err)
	}

	return &FileStore{
		basePath:      basePath,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// TempDir returns the staging directory used for atomic writes. Interrupted
// writes leave orphans here; the janitor sweeps them.
func (s *FileStore) TempDir() string {
	return filepath.Join(s.basePath, "tmp")
}

// Write persists the provided bytes at the given relative key and returns
// the canonicalized storage key. Keys are cleaned to prevent directory
// traversal.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}

	staging := filepath.Join(s.TempDir(), uuid.NewString())
	if err := os.WriteFile(staging, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write staging file: %w", err)
	}
	if err := os.Rename(staging, fullPath); err != nil {
		_ = os.Remove(staging)
		return "", fmt.Errorf("storage: move into place: %w", err)
	}

	return cleanKey, nil
}

// Store persists one image under folder with a generated name and returns
// its public location.
func (s *FileStore) Store(ctx context.Context, data []byte, mime, folder string) (string, error) {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = "generated"
	}

	key := fmt.Sprintf("%s/%s.%s", folder, uuid.NewString(), ExtensionForMIME(mime))
	cleanKey, err := s.Write(ctx, key, data)
	if err != nil {
		return "", err
	}
	return s.Location(cleanKey), nil
}

// Location maps a storage key to its public URL.
func (s *FileStore) Location(key string) string {
	return s.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}

// KeyFromLocation reverses Location. It reports false for locations outside
// this store.
func (s *FileStore) KeyFromLocation(location string) (string, bool) {
	if s.publicBaseURL == "" {
		return "", false
	}
	rest, ok := strings.CutPrefix(location, s.publicBaseURL+"/")
	if !ok || rest == "" {
		return "", false
	}

	clean, err := sanitizeKey(rest)
	if err != nil {
		return "", false
	}
	return clean, true
}

// Read returns the bytes stored at key.
func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.basePath, filepath.FromSlash(cleanKey)))
	if err != nil {
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	return data, nil
}

// Remove deletes the file at key. A missing file is not an error.
func (s *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(cleanKey))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

// ExtensionForMIME maps an image MIME type onto a file extension.
func ExtensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

// MIMEForKey infers a MIME type from a storage key's extension.
func MIMEForKey(key string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(key), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
