// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/havenforge/engine/handle"
)

// ChildAsset is one embedded asset discovered while importing a composite
// asset (e.g. a model's meshes, materials, and textures).
type ChildAsset struct {
	LocalName string
	Type      Type
	Data      []byte
}

// CompositeParser extracts a composite asset's embedded children from its
// raw bytes. Registered per Type; TypeModel is the only built-in composite
// kind, but any Type can have one wired in.
type CompositeParser interface {
	ParseChildren(data []byte) ([]ChildAsset, error)
}

// RegisterCompositeParser wires p as the child-discovery strategy for
// assets imported as Type t.
func (m *Manager) RegisterCompositeParser(t Type, p CompositeParser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.composites == nil {
		m.composites = map[Type]CompositeParser{}
	}
	m.composites[t] = p
}

// ImportAsset registers relativePath as an asset: computes its UUID from
// content, inserts an Unloaded record, and returns its handle. Composite
// assets additionally register their embedded children and set up
// parent↔children links. Importing the same path twice is a no-op that
// returns the existing handle — unless a cooker cache is in use (UseCache)
// and its recorded write time says the file changed on disk, in which case
// the path is re-read and re-hashed rather than trusted stale.
func (m *Manager) ImportAsset(relativePath string) (handle.Handle, error) {
	var cur CacheEntry
	haveStat := false
	m.mu.Lock()
	tracking := m.cache != nil
	m.mu.Unlock()
	if tracking {
		if e, err := Stat(filepath.Join(m.root, relativePath)); err == nil {
			cur = CacheEntry{Path: relativePath, LastWriteTime: e.LastWriteTime}
			haveStat = true
		}
	}

	m.mu.Lock()
	if id, ok := m.byPath[relativePath]; ok {
		stale := tracking && haveStat && Changed(m.cache, cur)
		if !stale {
			h := m.byUUID[id]
			m.mu.Unlock()
			return h, nil
		}
	}
	ext := filepath.Ext(relativePath)
	t, known := m.extByType[ext]
	m.mu.Unlock()
	if !known {
		return handle.Handle{}, fmt.Errorf("asset: unregistered extension %q for %s", ext, relativePath)
	}

	data, err := os.ReadFile(filepath.Join(m.root, relativePath))
	if err != nil {
		return handle.Handle{}, fmt.Errorf("asset: import %s: %w", relativePath, err)
	}
	h, err := m.importContent(relativePath, t, data, UUID(0))
	if err == nil && haveStat {
		m.noteCached(cur)
	}
	return h, err
}

// importContent registers one asset record (top-level or embedded child)
// and, if a CompositeParser is registered for t, recursively imports its
// discovered children. An embedded child keeps its content bytes on the
// record, since its "path" is a local name inside the parent's file, not
// anything a load job could read from disk.
func (m *Manager) importContent(path string, t Type, data []byte, parent UUID) (handle.Handle, error) {
	var id UUID
	if parent == UUID(0) {
		id = FromContent(data)
	} else {
		id = Child(parent, path)
	}

	m.mu.Lock()
	if h, ok := m.byUUID[id]; ok {
		m.byPath[path] = id
		m.mu.Unlock()
		return h, nil
	}
	m.mu.Unlock()

	h, rec := m.resources.Acquire()
	rec.UUID = id
	rec.Path = path
	rec.Type = t
	rec.parent = parent
	if parent != UUID(0) {
		rec.embedded = append([]byte(nil), data...)
	}
	atomic.StoreInt32(&rec.state, int32(Unloaded))

	m.mu.Lock()
	m.byUUID[id] = h
	m.byPath[path] = id
	parser := m.composites[t]
	scanner := m.scanners[t]
	m.mu.Unlock()

	if scanner != nil {
		deps, err := scanner.ScanDependencies(data)
		if err != nil {
			return h, fmt.Errorf("asset: scan dependencies of %s: %w", path, err)
		}
		rec.mu.Lock()
		rec.deps = deps
		rec.mu.Unlock()
	}

	if parser == nil {
		return h, nil
	}

	children, err := parser.ParseChildren(data)
	if err != nil {
		return h, fmt.Errorf("asset: parse children of %s: %w", path, err)
	}
	childIDs := make([]UUID, 0, len(children))
	for _, c := range children {
		ch, err := m.importContent(c.LocalName, c.Type, c.Data, id)
		if err != nil {
			return h, fmt.Errorf("asset: import child %s of %s: %w", c.LocalName, path, err)
		}
		childRec, ok := m.resources.Get(ch)
		if ok {
			childIDs = append(childIDs, childRec.UUID)
		}
	}
	rec.mu.Lock()
	rec.children = childIDs
	rec.mu.Unlock()
	return h, nil
}
