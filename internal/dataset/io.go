package dataset

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
)

// Save writes the set to path as gzipped gob.
func (s *Set) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := gob.NewEncoder(gz).Encode(s); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return nil
}

// LoadSet reads a set written by Save.
func LoadSet(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer gz.Close()

	var s Set
	if err := gob.NewDecoder(gz).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &s, nil
}
