package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()

	s, err := NewFileStore(filepath.Join(t.TempDir(), "images"))
	require.NoError(t, err)
	return s
}

func TestNewFileStore(t *testing.T) {
	t.Run("creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "images")

		s, err := NewFileStore(dir)

		require.NoError(t, err)
		assert.Equal(t, dir, s.Dir())
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := NewFileStore("")

		assert.Error(t, err)
	})
}

func TestDigest(t *testing.T) {
	// sha256 of the empty string
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Digest(nil),
	)
	assert.Len(t, Digest([]byte("JPEGDATA")), 64)
}

func TestFileStore_Put(t *testing.T) {
	// Arrange
	s := newTestStore(t)
	ctx := context.Background()
	data := []byte("JPEGDATA-17-bytes")

	// Act
	digest, err := s.Put(ctx, data)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Digest(data), digest)
	assert.True(t, s.Has(digest))

	stored, err := os.ReadFile(filepath.Join(s.Dir(), digest+Extension))
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestFileStore_Put_Deduplicates(t *testing.T) {
	// Arrange
	s := newTestStore(t)
	ctx := context.Background()
	data := []byte("same bytes")

	// Act
	first, err := s.Put(ctx, data)
	require.NoError(t, err)
	second, err := s.Put(ctx, data)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "exactly one blob and no leftover temp files")
}

func TestFileStore_Put_CanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, []byte("x"))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileStore_Has(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, s.Has(Digest([]byte("never stored"))))
}

func TestFileStore_Resolve(t *testing.T) {
	// Arrange
	s := newTestStore(t)
	ctx := context.Background()
	digest, err := s.Put(ctx, []byte("real image"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), DefaultName), []byte("placeholder"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "file.png"), []byte("png"), 0o644))

	tests := []struct {
		name     string
		file     string
		wantPath string
		wantErr  error
	}{
		{
			name:     "existing blob",
			file:     digest + Extension,
			wantPath: filepath.Join(s.Dir(), digest+Extension),
		},
		{
			name:     "missing blob falls back to placeholder",
			file:     "doesnotexist.jpg",
			wantPath: filepath.Join(s.Dir(), DefaultName),
		},
		{
			name:    "wrong extension even when file exists",
			file:    "file.png",
			wantErr: ErrInvalidExtension,
		},
		{
			name:    "path traversal",
			file:    "../secret.jpg",
			wantErr: ErrInvalidName,
		},
		{
			name:    "hidden temp file",
			file:    ".tmp.jpg",
			wantErr: ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			path, err := s.Resolve(tt.file)

			// Assert
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestFileStore_Resolve_MissingPlaceholder(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Resolve("doesnotexist.jpg")

	assert.ErrorIs(t, err, ErrNotFound)
}
