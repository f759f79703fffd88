// Package blobstore stores contribution images on the local filesystem.
// The returned URL is what gets persisted on the contribution and handed
// to the vision gateway as the image reference.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/perundhu/perundhu-backend/internal/config"
)

// Local writes image blobs under a single upload directory. Files are
// grouped per owner so one contributor cannot shadow another's uploads.
type Local struct {
	uploadDir string
	baseURL   string
	log       *slog.Logger
}

// NewLocal creates a Local store and ensures the upload directory exists.
func NewLocal(cfg config.StorageConfig, logger *slog.Logger) (*Local, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create upload dir: %w", err)
	}
	return &Local{
		uploadDir: cfg.UploadDir,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		log:       logger.With("adapter", "blobstore"),
	}, nil
}

// Store writes the blob and returns its URL. The stored name is a fresh
// UUID with the original extension; the caller's filename is never trusted
// as a path.
func (s *Local) Store(ctx context.Context, r io.Reader, ownerID, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	name := uuid.New().String() + ext
	dir := filepath.Join(s.uploadDir, ownerID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("blobstore: create owner dir: %w", err)
	}

	dst := filepath.Join(dir, name)
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("blobstore: create file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("blobstore: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("blobstore: close file: %w", err)
	}

	url := s.baseURL + "/" + path.Join(ownerID, name)
	s.log.DebugContext(ctx, "blob stored", slog.String("url", url))
	return url, nil
}

// Remove deletes a previously stored blob by its URL. Unknown URLs are a
// no-op so a failed upload cleanup can run unconditionally.
func (s *Local) Remove(ctx context.Context, url string) error {
	rel, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok {
		return nil
	}

	// Guard against path traversal through a crafted URL.
	rel = path.Clean(rel)
	if strings.HasPrefix(rel, "..") || path.IsAbs(rel) {
		return nil
	}

	err := os.Remove(filepath.Join(s.uploadDir, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blobstore: remove file: %w", err)
	}
	return nil
}
