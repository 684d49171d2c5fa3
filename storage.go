package stylegen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage is an interface for persisting generated images.
// This is a minimal interface designed for easy integration - implementations
// can wrap existing storage clients (GCS, S3, etc.) with this interface.
type Storage interface {
	// SaveFile saves image data to storage and returns the public URL.
	// The path should include the full object path (e.g., "styled/2024/01/output.png").
	// The contentType is typically the image's MIME type (e.g., "image/png").
	SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error)
}

// StorageResult contains information about a saved image.
type StorageResult struct {
	// URL is the public URL where the image can be accessed
	URL string

	// Path is the storage path/key where the image was saved
	Path string

	// Size is the number of bytes saved
	Size int
}

// SaveImageRef persists a generated image reference. A data URI is decoded
// and saved to {basePath}.{extension}; any other reference (a degraded result
// still pointing at the original image) is returned unchanged without
// touching storage.
func SaveImageRef(ctx context.Context, storage Storage, ref string, basePath string) (StorageResult, error) {
	if !IsDataURI(ref) {
		return StorageResult{URL: ref}, nil
	}
	if storage == nil {
		return StorageResult{}, ErrStorageNotConfigured
	}

	img, err := ParseDataURI(ref)
	if err != nil {
		return StorageResult{}, err
	}

	path := basePath + "." + ExtensionForMIMEType(img.MIMEType())
	url, err := storage.SaveFile(ctx, img.Bytes(), path, img.MIMEType())
	if err != nil {
		return StorageResult{}, err
	}

	return StorageResult{
		URL:  url,
		Path: path,
		Size: img.Len(),
	}, nil
}

// LocalStorage writes files under a root directory and serves them from a
// URL prefix.
type LocalStorage struct {
	root      string
	urlPrefix string
}

var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage creates a LocalStorage rooted at dir. Saved files are
// addressed as urlPrefix + "/" + path.
func NewLocalStorage(dir, urlPrefix string) *LocalStorage {
	return &LocalStorage{root: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

// SaveFile writes data to root/path.
func (s *LocalStorage) SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.root, clean)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return s.urlPrefix + filepath.ToSlash(clean), nil
}

// GetMIMEType returns the image MIME type for a file path's extension.
func GetMIMEType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return MIMETypePNG
	case ".jpg", ".jpeg":
		return MIMETypeJPEG
	case ".webp":
		return MIMETypeWebP
	default:
		return MIMETypePNG
	}
}
