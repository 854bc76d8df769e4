package checkpoint

import (
	"fmt"
	"io/fs"
	"path"
	"sync"
)

// MemoryStore is a Store held in memory. Paths are synthetic and never touch
// the filesystem. It remembers the order in which artifacts were written.
type MemoryStore struct {
	mu     sync.Mutex
	dirs   map[string]bool
	files  map[string][]byte
	writes []Write
}

// Write records one call to MemoryStore.Write.
type Write struct {
	Date string
	Kind Kind
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dirs:  make(map[string]bool),
		files: make(map[string][]byte),
	}
}

func (m *MemoryStore) Dir(date string) string {
	return path.Join("memory", date)
}

func (m *MemoryStore) Path(date string, kind Kind) string {
	return path.Join(m.Dir(date), string(kind))
}

func (m *MemoryStore) EnsureDir(date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[date] = true
	return nil
}

func (m *MemoryStore) Exists(date string, kind Kind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[m.Path(date, kind)]
	return ok, nil
}

func (m *MemoryStore) Read(date string, kind Kind) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.Path(date, kind)
	data, ok := m.files[p]
	if !ok {
		return nil, fmt.Errorf("checkpoint: read %s: %w", p, fs.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Write(date string, kind Kind, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[date] = true
	p := m.Path(date, kind)
	m.files[p] = append([]byte(nil), data...)
	m.writes = append(m.writes, Write{Date: date, Kind: kind})
	return p, nil
}

// HasDir reports whether the run directory for date was created.
func (m *MemoryStore) HasDir(date string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirs[date]
}

// Writes returns every write so far, oldest first.
func (m *MemoryStore) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Write(nil), m.writes...)
}
