// Package checkpoint persists the per-date artifacts of a diary run. The
// presence of an artifact doubles as the marker that its stage has completed.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DateLayout is the key format of a run context directory.
const DateLayout = "2006-01-02"

// Kind names one artifact of a run. Its value is the file name on disk.
type Kind string

const (
	InputPrompt    Kind = "input.txt"
	GeneratedPost  Kind = "generated_post.txt"
	ImagePrompt    Kind = "generated_image_prompt.txt"
	GeneratedImage Kind = "generated_image.png"
	PublishMarker  Kind = "ig_post_id.txt"
)

// Reader is the read side of a store. Stage predicates only need this.
type Reader interface {
	Exists(date string, kind Kind) (bool, error)
	Read(date string, kind Kind) ([]byte, error)
}

// Store reads and writes artifacts keyed by date.
type Store interface {
	Reader
	// Write persists data and returns the artifact location.
	Write(date string, kind Kind, data []byte) (string, error)
	// Path returns where the artifact lives, whether or not it exists yet.
	Path(date string, kind Kind) string
	// Dir returns the run directory for date.
	Dir(date string) string
	// EnsureDir creates the run directory when it is absent.
	EnsureDir(date string) error
}

// ValidateDate checks that date is a YYYY-MM-DD key.
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
	}
	return nil
}

// FileStore keeps each date in its own directory below root.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at root (usually "data").
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Dir(date string) string {
	return filepath.Join(s.root, date)
}

func (s *FileStore) Path(date string, kind Kind) string {
	return filepath.Join(s.Dir(date), string(kind))
}

func (s *FileStore) EnsureDir(date string) error {
	dir := s.Dir(date)
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("checkpoint: %s exists and is not a directory", dir)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checkpoint: stat %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: create %s: %w", dir, err)
	}
	return nil
}

func (s *FileStore) Exists(date string, kind Kind) (bool, error) {
	path := s.Path(date, kind)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checkpoint: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("checkpoint: expected file, got directory at %s", path)
	}
	return true, nil
}

func (s *FileStore) Read(date string, kind Kind) ([]byte, error) {
	path := s.Path(date, kind)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}
	return data, nil
}

func (s *FileStore) Write(date string, kind Kind, data []byte) (string, error) {
	if err := s.EnsureDir(date); err != nil {
		return "", err
	}
	path := s.Path(date, kind)
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("checkpoint: write %s: %w", path, err)
	}
	return path, nil
}

// writeFileAtomic writes to a sibling temp file, syncs it and renames it over
// path, so readers never see a partial artifact.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
