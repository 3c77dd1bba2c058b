package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps one file per key under a results directory. It is the
// default backend: results survive across runs and are easy to inspect or
// delete by hand.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// path maps a key to a file path. Path separators in keys are flattened so
// a key cannot escape the results directory.
func (s *FileStore) path(key string) string {
	key = strings.ReplaceAll(key, string(os.PathSeparator), "_")
	if !strings.HasSuffix(key, ".bin") {
		key += ".bin"
	}
	return filepath.Join(s.dir, key)
}

// Get returns the stored value for key.
func (s *FileStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Put stores val under key. The write goes through a temp file and rename
// so a crash cannot leave a truncated entry behind.
func (s *FileStore) Put(key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.path(key)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(val); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }
