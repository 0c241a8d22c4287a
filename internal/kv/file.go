package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File keeps every key in one JSON document on disk, rewritten on each change.
// It is the default medium: state survives restarts without external services.
//
// Several processes may open the same path (the API and the admin CLI). Reads
// reload the document when it changed on disk and writes always re-read it
// first, so one process never writes back another's stale snapshot.
type File struct {
	path  string
	mu    sync.Mutex
	data  map[string]string
	stamp fileStamp
}

// fileStamp identifies the version of the document last loaded.
type fileStamp struct {
	exists  bool
	modTime time.Time
	size    int64
}

func (s fileStamp) same(o fileStamp) bool {
	return s.exists == o.exists && s.size == o.size && s.modTime.Equal(o.modTime)
}

// OpenFile loads the document at path, creating parent directories as needed.
// A missing file starts an empty medium.
func OpenFile(path string) (*File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("kv: create dir: %w", err)
		}
	}
	f := &File{path: path, data: make(map[string]string)}
	if err := f.reload(true); err != nil {
		return nil, err
	}
	return f, nil
}

// Get returns the value stored under key.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reload(false); err != nil {
		return nil, err
	}
	v, ok := f.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

// Set stores value under key and flushes the document.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reload(true); err != nil {
		return err
	}
	prev, had := f.data[key]
	f.data[key] = string(value)
	if err := f.flush(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

// Delete removes keys and flushes the document.
func (f *File) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reload(true); err != nil {
		return err
	}
	removed := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := f.data[k]; ok {
			removed[k] = v
			delete(f.data, k)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	if err := f.flush(); err != nil {
		for k, v := range removed {
			f.data[k] = v
		}
		return err
	}
	return nil
}

// Close releases nothing: every change is flushed when it is made.
func (f *File) Close() error {
	return nil
}

// reload re-reads the document when force is set or its stamp changed.
// Caller holds mu.
func (f *File) reload(force bool) error {
	var cur fileStamp
	fi, err := os.Stat(f.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("kv: stat %s: %w", f.path, err)
	default:
		cur = fileStamp{exists: true, modTime: fi.ModTime(), size: fi.Size()}
	}
	if !force && cur.same(f.stamp) {
		return nil
	}

	data := make(map[string]string)
	if cur.exists {
		raw, err := os.ReadFile(f.path)
		if err != nil {
			return fmt.Errorf("kv: read %s: %w", f.path, err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("kv: decode %s: %w", f.path, err)
			}
		}
	}
	f.data = data
	f.stamp = cur
	return nil
}

// flush writes to a temp file and renames it over the document. Caller holds mu.
func (f *File) flush() error {
	raw, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("kv: encode: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("kv: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("kv: rename %s: %w", tmp, err)
	}
	// unknown stamp: the next Get re-reads, catching writers racing this one
	f.stamp = fileStamp{exists: true, size: -1}
	return nil
}
