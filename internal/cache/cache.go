// Package cache provides disk-backed memoization of expensive results:
// a function from (key, compute closure) to result, with pluggable storage
// backends. There is no invalidation and no integrity check — identical
// keys are assumed to mean identical results, so a stale entry for a
// changed computation is returned as-is.
package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
)

// Store is a byte-oriented key/value backend for cached results.
type Store interface {
	// Get returns the stored value for key and whether it was present.
	Get(key string) ([]byte, bool, error)

	// Put stores val under key, replacing any previous value.
	Put(key string, val []byte) error

	// Close releases any resources held by the backend.
	Close() error
}

// Cached memoizes compute through the store: on a hit the stored value is
// decoded and returned without running compute; on a miss compute runs
// exactly once and its result is persisted before being returned. Values
// are gob-encoded and gzipped.
func Cached[T any](store Store, key string, compute func() (T, error)) (T, error) {
	var zero T

	raw, ok, err := store.Get(key)
	if err != nil {
		return zero, fmt.Errorf("cache: reading %q: %w", key, err)
	}
	if ok {
		var out T
		if err := decode(raw, &out); err != nil {
			return zero, fmt.Errorf("cache: decoding %q: %w", key, err)
		}
		return out, nil
	}

	out, err := compute()
	if err != nil {
		return zero, err
	}
	raw, err = encode(out)
	if err != nil {
		return zero, fmt.Errorf("cache: encoding %q: %w", key, err)
	}
	if err := store.Put(key, raw); err != nil {
		return zero, fmt.Errorf("cache: writing %q: %w", key, err)
	}
	return out, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(v); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(raw []byte, v any) error {
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer gz.Close()
	if err := gob.NewDecoder(gz).Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}
