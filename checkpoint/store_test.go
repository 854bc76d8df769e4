package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_WriteCreatesDirLazily(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	s := NewFileStore(root)

	_, err := os.Stat(s.Dir("2024-01-01"))
	require.True(t, os.IsNotExist(err))

	path, err := s.Write("2024-01-01", GeneratedPost, []byte("Liebes Tagebuch"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "2024-01-01", "generated_post.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Liebes Tagebuch", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not remain")
}

func TestFileStore_ExistsAndRead(t *testing.T) {
	s := NewFileStore(t.TempDir())

	ok, err := s.Exists("2024-01-01", InputPrompt)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Write("2024-01-01", InputPrompt, []byte("prompt"))
	require.NoError(t, err)

	ok, err = s.Exists("2024-01-01", InputPrompt)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := s.Read("2024-01-01", InputPrompt)
	require.NoError(t, err)
	assert.Equal(t, "prompt", string(data))
}

func TestFileStore_ReadMissing(t *testing.T) {
	s := NewFileStore(t.TempDir())
	_, err := s.Read("2024-01-01", GeneratedPost)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generated_post.txt")
}

func TestFileStore_WriteOverwrites(t *testing.T) {
	s := NewFileStore(t.TempDir())
	_, err := s.Write("2024-01-01", InputPrompt, []byte("old"))
	require.NoError(t, err)
	_, err = s.Write("2024-01-01", InputPrompt, []byte("new"))
	require.NoError(t, err)

	data, err := s.Read("2024-01-01", InputPrompt)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestFileStore_EnsureDirIdempotent(t *testing.T) {
	s := NewFileStore(t.TempDir())
	require.NoError(t, s.EnsureDir("2024-01-01"))
	require.NoError(t, s.EnsureDir("2024-01-01"))

	info, err := os.Stat(s.Dir("2024-01-01"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileStore_EnsureDirRejectsFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "2024-01-01"), []byte("x"), 0o644))

	err := NewFileStore(root).EnsureDir("2024-01-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestFileStore_ExistsRejectsDirectory(t *testing.T) {
	s := NewFileStore(t.TempDir())
	require.NoError(t, os.MkdirAll(s.Path("2024-01-01", PublishMarker), 0o755))

	_, err := s.Exists("2024-01-01", PublishMarker)
	assert.Error(t, err)
}

func TestFileStore_BinaryRoundTrip(t *testing.T) {
	s := NewFileStore(t.TempDir())
	img := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
	_, err := s.Write("2024-01-01", GeneratedImage, img)
	require.NoError(t, err)

	data, err := s.Read("2024-01-01", GeneratedImage)
	require.NoError(t, err)
	assert.Equal(t, img, data)
}

func TestValidateDate(t *testing.T) {
	tests := []struct {
		date    string
		wantErr bool
	}{
		{"2024-01-01", false},
		{"2024-02-29", false},
		{"2023-02-29", true},
		{"01.01.2024", true},
		{"", true},
		{"2024-1-1", true},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			err := ValidateDate(tt.date)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
