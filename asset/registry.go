// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package asset

import (
	"sync"
	"sync/atomic"

	"github.com/havenforge/engine/handle"
	"github.com/havenforge/engine/job"
)

// Type identifies what kind of GPU resource an asset ultimately becomes.
// The renderer exposes a distinct create/destroy path per kind, so the
// kind travels with the resource record rather than in a class hierarchy.
type Type int

const (
	TypeUnknown Type = iota
	TypeMesh
	TypeMaterial
	TypeTexture
	TypeShader
	TypeModel
	TypeFont
)

// State is a Resource's lifecycle stage: Unloaded → Pending → Loaded,
// with a Failed sink reachable only from Pending (load-job failure) or by
// watcher-observed deletion.
type State int32

const (
	Unloaded State = iota
	Pending
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Pending:
		return "pending"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Renderer is the capability a Manager needs from the graphics subsystem:
// turn a decoded asset blob into a GPU resource, and tear one down. The
// asset package never imports gfx directly — gfx.System implements this
// interface and is injected at construction.
type Renderer interface {
	// CreateResource decodes data (the raw asset bytes already read from
	// disk) into a GPU resource of the given type, using deps (already
	// acquired dependency handles, e.g. a material's shader and textures)
	// to resolve cross-references, and returns the handle the renderer
	// will recognize in subsequent draw calls.
	CreateResource(t Type, data []byte, deps []handle.Handle) (handle.Handle, error)

	// DestroyResource releases the GPU resource addressed by h. Called
	// either directly (ref count reached zero, no in-flight reads) or via
	// the deferred-destruction queue (hot reload, §4.3's "destroy the old
	// one at the end of the frame").
	DestroyResource(t Type, h handle.Handle)
}

// Resource is one imported or loaded asset. Resources referencing other
// resources (a material's shader and textures) hold those as deps, which
// are acquired/released transitively alongside the owning resource.
type Resource struct {
	UUID UUID
	Path string
	Type Type

	mu       sync.Mutex
	state    int32 // atomic State
	refCount int32 // atomic

	parent   UUID   // zero UUID if this is a top-level import.
	children []UUID // embedded children; also acquired/released as this resource's dependencies.
	deps     []UUID // scanned references to other assets (a material's shader and textures).
	embedded []byte // child content carried inline by the parent's file; nil for on-disk assets.

	loadJob       job.Handle
	typed         handle.Handle // GPU resource handle once Loaded.
	lastErr       error
	pendingUnload bool // refCount reached zero while state was Pending; see runLoad.
}

// dependencies returns the full set of assets this resource needs loaded
// before it can load itself: embedded children first, then scanned
// references, deduplicated in that order.
func (r *Resource) dependencies() []UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UUID, 0, len(r.children)+len(r.deps))
	seen := map[UUID]bool{}
	for _, id := range r.children {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range r.deps {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// State returns the resource's current lifecycle stage.
func (r *Resource) State() State { return State(atomic.LoadInt32(&r.state)) }

// RefCount returns the resource's current reference count.
func (r *Resource) RefCount() int32 { return atomic.LoadInt32(&r.refCount) }

// Handle returns the GPU resource handle, valid only once State() == Loaded.
func (r *Resource) Handle() handle.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typed
}

// Err returns the error recorded by the most recent failed load, if any.
func (r *Resource) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Manager is the asset registry: the import pipeline, acquire/release
// with transitive dependencies, hot reload, and the
// Unloaded/Pending/Loaded/Failed state machine, all guarded by a single
// mutex for lookup-table mutations with ref counts and state kept in
// atomics so readers never need the mutex.
type Manager struct {
	mu         sync.Mutex // guards byUUID/byPath/extensions, not per-Resource fields.
	resources  *handle.Pool[Resource]
	byUUID     map[UUID]handle.Handle
	byPath     map[string]UUID
	extByType  map[string]Type
	composites map[Type]CompositeParser
	scanners   map[Type]DependencyScanner

	root     string // filesystem root every relative_path is resolved against.
	jobs     *job.System
	renderer Renderer

	cachePath  string // cooker cache file consulted at import time; "" when disabled.
	cache      map[string]CacheEntry
	cacheDirty bool

	coalesce   coalescer // collapses concurrent first-acquires for the same UUID.
	watch      *watcher  // nil until EnableHotReload is called.
	frameIndex int64     // atomic: advanced by AdvanceFrame, indexes the deferred-destroy bins.
}

// New creates an asset manager rooted at assetRoot, scheduling load jobs
// on jobs and creating/destroying GPU resources through renderer.
func New(assetRoot string, jobs *job.System, renderer Renderer) *Manager {
	m := &Manager{
		resources: handle.New[Resource](),
		byUUID:    map[UUID]handle.Handle{},
		byPath:    map[string]UUID{},
		extByType: defaultExtensions(),
		root:      assetRoot,
		jobs:      jobs,
		renderer:  renderer,
	}
	return m
}

// defaultExtensions maps file extensions to their asset Types. Textures
// are decoded as PNG only, so a .jpg or .jpeg import fails when its load
// job runs. Other formats without a decoder (IQM skeletal meshes,
// glTF/GLB containers, TTF vector fonts) are left unmapped; callers can
// add a RegisterExtension entry once a decoder exists.
func defaultExtensions() map[string]Type {
	return map[string]Type{
		".obj":      TypeMesh,
		".mtl":      TypeMaterial,
		".material": TypeMaterial,
		".png":      TypeTexture,
		".jpg":      TypeTexture,
		".jpeg":     TypeTexture,
		".vert":     TypeShader,
		".frag":     TypeShader,
		".glsl":     TypeShader,
		".model":    TypeModel,
		".fnt":      TypeFont,
	}
}

// RegisterExtension maps an additional file extension (including the
// leading dot) to an asset Type, extending the built-in table.
func (m *Manager) RegisterExtension(ext string, t Type) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extByType[ext] = t
}

// lookupResource resolves a UUID to its Resource pointer and handle.
func (m *Manager) lookupResource(id UUID) (handle.Handle, *Resource, bool) {
	m.mu.Lock()
	h, ok := m.byUUID[id]
	m.mu.Unlock()
	if !ok {
		return handle.Handle{}, nil, false
	}
	rec, ok := m.resources.Get(h)
	return h, rec, ok
}

// Lookup returns the Resource for an already-imported UUID.
func (m *Manager) Lookup(id UUID) (*Resource, bool) {
	_, rec, ok := m.lookupResource(id)
	return rec, ok
}

// LookupByPath returns the Resource imported from relativePath.
func (m *Manager) LookupByPath(relativePath string) (*Resource, bool) {
	m.mu.Lock()
	id, ok := m.byPath[relativePath]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return m.Lookup(id)
}
