// Package blob provides content-addressed storage for item images.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Extension is the only file extension served and written by the store.
const Extension = ".jpg"

// DefaultName is the placeholder served when a requested blob is missing.
const DefaultName = "default" + Extension

// Store errors.
var (
	ErrInvalidExtension = errors.New("image path does not end with " + Extension)
	ErrInvalidName      = errors.New("invalid image name")
	ErrNotFound         = errors.New("image not found")
)

var blobWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "listing",
		Name:      "blob_writes_total",
		Help:      "Image blob writes by result (stored or deduplicated)",
	},
	[]string{"result"},
)

// FileStore keeps blobs as <digest>.jpg files in a single directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a FileStore.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("blob store: directory must not be empty")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

// Digest returns the lowercase hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Dir returns the blob directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Put stores data under its digest and returns the digest.
// Storing bytes that are already present is a no-op.
func (s *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("put blob: %w", ctx.Err())
	default:
	}

	digest := Digest(data)
	path := s.path(digest)

	if _, err := os.Stat(path); err == nil {
		blobWritesTotal.WithLabelValues("deduplicated").Inc()
		return digest, nil
	}

	// Readers only ever observe the renamed, complete file.
	tmp, err := os.CreateTemp(s.dir, "."+digest+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("put blob: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("put blob: writing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("put blob: closing: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("put blob: renaming: %w", err)
	}

	blobWritesTotal.WithLabelValues("stored").Inc()

	return digest, nil
}

// Has reports whether a blob for digest exists.
func (s *FileStore) Has(digest string) bool {
	info, err := os.Stat(s.path(digest))
	return err == nil && info.Mode().IsRegular()
}

// Resolve maps a requested file name to a path on disk. Missing blobs
// resolve to the default placeholder.
func (s *FileStore) Resolve(name string) (string, error) {
	if !strings.HasSuffix(name, Extension) {
		return "", ErrInvalidExtension
	}

	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}

	path := filepath.Join(s.dir, name)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return path, nil
	}

	fallback := filepath.Join(s.dir, DefaultName)
	if _, err := os.Stat(fallback); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return fallback, nil
}

func (s *FileStore) path(digest string) string {
	return filepath.Join(s.dir, digest+Extension)
}
