// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/havenforge/engine/handle"
	"github.com/havenforge/engine/job"
	"github.com/havenforge/engine/mem"
)

// Acquire resolves uuid to its load job, scheduling one on first acquire
// and incrementing the reference count on every call thereafter. The
// returned job.Handle can be waited on (via the job system) before the
// caller touches Resource.Handle().
func (m *Manager) Acquire(id UUID) (job.Handle, error) {
	_, rec, ok := m.lookupResource(id)
	if !ok {
		return job.Handle{}, fmt.Errorf("asset: acquire: unknown uuid %v", id)
	}

	if atomic.AddInt32(&rec.refCount, 1) > 1 {
		// not the first acquire: an identical load job is already
		// scheduled or finished, reuse it.
		rec.mu.Lock()
		jh := rec.loadJob
		rec.mu.Unlock()
		return jh, nil
	}

	// First acquire. singleflight still protects the race where two
	// goroutines both observe refCount transitioning 0->1 concurrently
	// for the *same* uuid before either has stored loadJob.
	result, err, _ := m.coalesce.do(id, func() (interface{}, error) {
		return m.scheduleLoad(rec)
	})
	if err != nil {
		return job.Handle{}, err
	}
	return result.(job.Handle), nil
}

// scheduleLoad performs a first acquire: mark Pending, recursively acquire
// every dependency, then schedule a load job gated on the dependency jobs.
func (m *Manager) scheduleLoad(rec *Resource) (job.Handle, error) {
	atomic.StoreInt32(&rec.state, int32(Pending))

	depUUIDs := rec.dependencies()

	depJobs := make([]job.Handle, 0, len(depUUIDs))
	for _, depID := range depUUIDs {
		if _, _, ok := m.lookupResource(depID); !ok {
			continue
		}
		jh, err := m.Acquire(depID)
		if err != nil {
			m.fail(rec, err)
			return job.Handle{}, err
		}
		depJobs = append(depJobs, jh)
	}

	// rec and depUUIDs are captured by closure instead of passed through
	// the job's []byte parameter buffer: a Resource pointer and a
	// dependency list do not serialize cleanly into the flat parameter
	// heap job.System.Execute expects, and the registry already
	// guarantees rec outlives the job.
	jh := m.jobs.Execute(func(params []byte, scratch *mem.Scratch) job.Result {
		return m.runLoad(rec, depUUIDs)
	}, nil, depJobs)

	rec.mu.Lock()
	rec.loadJob = jh
	rec.mu.Unlock()
	return jh, nil
}

// runLoad is the body of a resource's load job: read the asset blob,
// resolve dependency GPU handles (now available, since the job system
// only runs this after every dependency job finished), decode/create the
// GPU resource, and transition Pending→Loaded or Pending→Failed.
func (m *Manager) runLoad(rec *Resource, depUUIDs []UUID) job.Result {
	data := rec.embedded
	if data == nil {
		var err error
		data, err = os.ReadFile(filepath.Join(m.root, rec.Path))
		if err != nil {
			m.fail(rec, err)
			return job.Failed
		}
	}

	deps := make([]handle.Handle, 0, len(depUUIDs))
	for _, depID := range depUUIDs {
		if depRec, ok := m.Lookup(depID); ok {
			deps = append(deps, depRec.Handle())
		}
	}

	typed, err := m.renderer.CreateResource(rec.Type, data, deps)
	if err != nil {
		m.fail(rec, err)
		return job.Failed
	}

	rec.mu.Lock()
	rec.typed = typed
	rec.lastErr = nil
	unload := rec.pendingUnload
	rec.pendingUnload = false
	rec.mu.Unlock()
	atomic.StoreInt32(&rec.state, int32(Loaded))

	if unload {
		// refCount reached zero while this load was still in flight: let
		// the load finish normally, then immediately apply the deferred
		// unload so the resource does not outlive its last reference.
		m.renderer.DestroyResource(rec.Type, typed)
		atomic.StoreInt32(&rec.state, int32(Unloaded))
		rec.mu.Lock()
		rec.typed = handle.Handle{}
		rec.mu.Unlock()
	}
	return job.Succeeded
}

func (m *Manager) fail(rec *Resource, err error) {
	rec.mu.Lock()
	rec.lastErr = err
	rec.mu.Unlock()
	atomic.StoreInt32(&rec.state, int32(Failed))
}

// Release decrements uuid's reference count. Once it reaches zero the
// resource is torn down immediately if no load is in flight; a resource
// still Pending is torn down by its load job once that job notices
// refCount is zero. Dependencies are released transitively.
func (m *Manager) Release(id UUID) {
	_, rec, ok := m.lookupResource(id)
	if !ok {
		return
	}
	if atomic.AddInt32(&rec.refCount, -1) > 0 {
		return
	}

	depUUIDs := rec.dependencies()
	rec.mu.Lock()
	state := State(atomic.LoadInt32(&rec.state))
	typed := rec.typed
	if state == Pending {
		rec.pendingUnload = true
	}
	rec.mu.Unlock()

	if state == Loaded {
		m.renderer.DestroyResource(rec.Type, typed)
		atomic.StoreInt32(&rec.state, int32(Unloaded))
		rec.mu.Lock()
		rec.typed = handle.Handle{}
		rec.mu.Unlock()
	}
	// a Pending resource with refCount==0 is left to finish loading; its
	// load job applies the deferred unload itself once it reaches Loaded
	// (see runLoad's pendingUnload check), so the GPU resource it creates
	// never outlives this release.

	for _, dep := range depUUIDs {
		m.Release(dep)
	}
}
