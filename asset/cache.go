// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package asset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// The on-disk asset cache records each known source file's path and last
// write time, so a cook step can skip re-processing unchanged assets on
// the next run. Format: a fixed header (magic, version, entry count)
// followed by one variable-length entry per asset (path length,
// NUL-terminated path, fixed-size info).
const (
	cacheMagic   uint32 = 0x55555555
	cacheVersion uint32 = 0
)

// CacheEntry holds enough to decide whether a source file changed since
// it was last cooked.
type CacheEntry struct {
	Path          string
	LastWriteTime int64 // unix nanoseconds.
}

// LoadCache reads a cache file written by SaveCache. A missing file, a
// foreign magic number, or a version this build does not understand all
// read as an empty cache — the file is simply discarded and rebuilt on
// the next save, never treated as an error.
func LoadCache(path string) (map[string]CacheEntry, error) {
	entries := map[string]CacheEntry{}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("asset: open cache %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic, version, count uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("asset: read cache header: %w", err)
	}
	if magic != cacheMagic {
		return entries, nil
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("asset: read cache header: %w", err)
	}
	if version != cacheVersion {
		return entries, nil
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("asset: read cache header: %w", err)
	}

	for i := uint32(0); i < count; i++ {
		var pathLen uint32
		if err := binary.Read(r, binary.LittleEndian, &pathLen); err != nil {
			return nil, fmt.Errorf("asset: read cache entry %d: %w", i, err)
		}
		buf := make([]byte, pathLen+1) // +1 for the trailing NUL, kept for format parity.
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("asset: read cache entry %d path: %w", i, err)
		}
		var lastWrite int64
		if err := binary.Read(r, binary.LittleEndian, &lastWrite); err != nil {
			return nil, fmt.Errorf("asset: read cache entry %d info: %w", i, err)
		}
		p := string(buf[:pathLen])
		entries[p] = CacheEntry{Path: p, LastWriteTime: lastWrite}
	}
	return entries, nil
}

// SaveCache writes entries to path in the format LoadCache reads.
func SaveCache(path string, entries map[string]CacheEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("asset: create cache %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, cacheMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, cacheVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(entries))); err != nil {
		return err
	}
	for p, e := range entries {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(p))); err != nil {
			return err
		}
		if _, err := w.WriteString(p); err != nil {
			return err
		}
		if err := w.WriteByte(0); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, e.LastWriteTime); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Stat returns a CacheEntry describing path's current on-disk state,
// for comparing against a loaded cache to decide whether to re-cook it.
func Stat(path string) (CacheEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return CacheEntry{}, err
	}
	return CacheEntry{Path: path, LastWriteTime: info.ModTime().UnixNano()}, nil
}

// Changed reports whether current differs from what the cache recorded
// for the same path (or the path is unknown to the cache at all).
func Changed(cache map[string]CacheEntry, current CacheEntry) bool {
	prev, ok := cache[current.Path]
	return !ok || prev.LastWriteTime != current.LastWriteTime
}

// UseCache loads the cooker's asset cache from path and turns on write-time
// tracking: ImportAsset consults the recorded last_write_time to decide
// whether an already-imported path must be re-read and re-hashed, and
// records the current write time of everything it imports. Call WriteCache
// to persist the refreshed entries.
func (m *Manager) UseCache(path string) error {
	entries, err := LoadCache(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cachePath = path
	m.cache = entries
	m.cacheDirty = false
	m.mu.Unlock()
	return nil
}

// WriteCache saves the tracked entries back to the file UseCache loaded
// them from. A no-op when no cache is in use or nothing changed.
func (m *Manager) WriteCache() error {
	m.mu.Lock()
	path, dirty := m.cachePath, m.cacheDirty
	entries := make(map[string]CacheEntry, len(m.cache))
	for k, v := range m.cache {
		entries[k] = v
	}
	m.cacheDirty = false
	m.mu.Unlock()
	if path == "" || !dirty {
		return nil
	}
	return SaveCache(path, entries)
}

// noteCached records a just-imported file's write time in the tracked
// cache. Callers hold no Manager locks.
func (m *Manager) noteCached(e CacheEntry) {
	m.mu.Lock()
	if m.cache != nil && m.cache[e.Path] != e {
		m.cache[e.Path] = e
		m.cacheDirty = true
	}
	m.mu.Unlock()
}
