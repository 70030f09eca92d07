// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package asset

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/havenforge/engine/handle"
	"github.com/havenforge/engine/job"
	"github.com/havenforge/engine/mem"
)

// pendingDestroy is one GPU resource whose teardown is deferred until the
// renderer has proven the frame that last read it is no longer in flight.
type pendingDestroy struct {
	typ Type
	h   handle.Handle
}

// watcher wires an fsnotify.Watcher to the registry and owns the deferred
// destruction queue, one bucket per frame-in-flight slot: a swapped-out
// GPU handle is destroyed only once its slot's fence has cycled back
// around, never while a recorded frame might still read it.
type watcher struct {
	fsw  *fsnotify.Watcher
	mgr  *Manager
	mu   sync.Mutex
	bins [][]pendingDestroy // len == frameSlots
}

// EnableHotReload starts a filesystem watcher over the asset root and
// prepares frameSlots deferred-destruction bins, one per swapchain
// frame-in-flight slot. Call AdvanceFrame once per rendered frame
// thereafter to drain the bin whose slot has cycled back around.
func (m *Manager) EnableHotReload(frameSlots int) error {
	if frameSlots < 1 {
		frameSlots = 1
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w := &watcher{fsw: fsw, mgr: m, bins: make([][]pendingDestroy, frameSlots)}

	err = filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return err
	}

	m.mu.Lock()
	m.watch = w
	m.mu.Unlock()

	go w.run()
	return nil
}

// Close stops the hot-reload watcher, if one is running.
func (m *Manager) Close() error {
	m.mu.Lock()
	w := m.watch
	m.watch = nil
	m.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.fsw.Close()
}

// AdvanceFrame drains the deferred-destruction bin for the slot that is
// now frameSlots frames old (safe to destroy: its fence has long since
// signaled) and rotates to the next slot. Call once per rendered frame.
func (m *Manager) AdvanceFrame() {
	m.mu.Lock()
	w := m.watch
	m.mu.Unlock()
	if w == nil {
		return
	}
	slot := int(atomic.AddInt64(&m.frameIndex, 1)) % len(w.bins)
	w.mu.Lock()
	due := w.bins[slot]
	w.bins[slot] = nil
	w.mu.Unlock()
	for _, pd := range due {
		m.renderer.DestroyResource(pd.typ, pd.h)
	}
}

func (w *watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("asset: watcher error: %v", err)
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	m := w.mgr
	rel, err := filepath.Rel(m.root, ev.Name)
	if err != nil {
		return
	}

	m.mu.Lock()
	id, known := m.byPath[rel]
	m.mu.Unlock()
	if !known {
		return // not an imported asset; ignore.
	}

	switch {
	case ev.Op&fsnotify.Write == fsnotify.Write:
		w.reload(id, rel)
	case ev.Op&fsnotify.Remove == fsnotify.Remove:
		if _, rec, ok := m.lookupResource(id); ok {
			m.fail(rec, errors.New("asset: source file removed"))
		}
	// Rename: the UUID is content-derived and unchanged; byPath already
	// maps the old path, nothing further to do until a matching Create
	// event (handled as a fresh ImportAsset by the caller) arrives at
	// the new path.
	case ev.Op&fsnotify.Rename == fsnotify.Rename:
	}
}

// reload marks a Loaded, still-referenced resource Pending again and
// schedules a re-load job that swaps in a fresh GPU handle, deferring
// destruction of the old one. The fsnotify goroutine never touches the
// renderer itself; the work runs on the job system's workers like any
// other load.
func (w *watcher) reload(id UUID, rel string) {
	m := w.mgr
	_, rec, ok := m.lookupResource(id)
	if !ok {
		return
	}
	if rec.State() != Loaded || rec.RefCount() == 0 {
		return
	}
	atomic.StoreInt32(&rec.state, int32(Pending))

	jh := m.jobs.Execute(func(params []byte, scratch *mem.Scratch) job.Result {
		return w.runReload(rec, rel)
	}, nil, nil)
	rec.mu.Lock()
	rec.loadJob = jh
	rec.mu.Unlock()
}

// runReload is the body of a hot-reload job: re-read the source, build
// the replacement GPU resource, swap it in, and queue the displaced
// handle for deferred destruction once its frame slot cycles back.
func (w *watcher) runReload(rec *Resource, rel string) job.Result {
	m := w.mgr
	data, err := os.ReadFile(filepath.Join(m.root, rel))
	if err != nil {
		m.fail(rec, err)
		return job.Failed
	}

	depUUIDs := rec.dependencies()
	deps := make([]handle.Handle, 0, len(depUUIDs))
	for _, depID := range depUUIDs {
		if depRec, ok := m.Lookup(depID); ok {
			deps = append(deps, depRec.Handle())
		}
	}

	fresh, err := m.renderer.CreateResource(rec.Type, data, deps)
	if err != nil {
		m.fail(rec, err)
		return job.Failed
	}

	rec.mu.Lock()
	old := rec.typed
	rec.typed = fresh
	unload := rec.pendingUnload
	rec.pendingUnload = false
	rec.mu.Unlock()
	atomic.StoreInt32(&rec.state, int32(Loaded))

	w.mu.Lock()
	slot := int(atomic.LoadInt64(&m.frameIndex)) % len(w.bins)
	w.bins[slot] = append(w.bins[slot], pendingDestroy{typ: rec.Type, h: old})
	w.mu.Unlock()

	if unload {
		// the last reference was released while this reload was in flight:
		// finish the swap, then immediately tear the fresh handle down so
		// the resource does not outlive its refcount.
		m.renderer.DestroyResource(rec.Type, fresh)
		atomic.StoreInt32(&rec.state, int32(Unloaded))
		rec.mu.Lock()
		rec.typed = handle.Handle{}
		rec.mu.Unlock()
	}
	return job.Succeeded
}
