package movie

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
)

// SaveStack writes an image stack to path as gzipped gob.
func SaveStack(s *ImageStack, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("movie: creating %s: %w", path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := gob.NewEncoder(gz).Encode(s); err != nil {
		return fmt.Errorf("movie: encoding %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("movie: flushing %s: %w", path, err)
	}
	return nil
}

// LoadStack reads an image stack written by SaveStack.
func LoadStack(path string) (*ImageStack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("movie: opening %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("movie: reading %s: %w", path, err)
	}
	defer gz.Close()

	var s ImageStack
	if err := gob.NewDecoder(gz).Decode(&s); err != nil {
		return nil, fmt.Errorf("movie: decoding %s: %w", path, err)
	}
	return &s, nil
}
