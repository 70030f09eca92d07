// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package asset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/havenforge/engine/handle"
	"github.com/havenforge/engine/job"
)

// fakeRenderer satisfies Renderer without any real GPU: every
// CreateResource call hands out a fresh handle from a pool keyed by a
// monotonic counter, and DestroyResource just records the call.
type fakeRenderer struct {
	mu        sync.Mutex
	created   int
	destroyed []handle.Handle
	fail      map[string]bool // not consulted: every CreateResource call succeeds.
}

func newFakeRenderer() *fakeRenderer { return &fakeRenderer{fail: map[string]bool{}} }

func (r *fakeRenderer) CreateResource(t Type, data []byte, deps []handle.Handle) (handle.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
	return handle.Handle{Index: uint32(r.created), Generation: 1}, nil
}

func (r *fakeRenderer) DestroyResource(t Type, h handle.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed = append(r.destroyed, h)
}

func newTestManager(t *testing.T) (*Manager, *fakeRenderer, *job.System) {
	t.Helper()
	dir := t.TempDir()
	js := job.New(2, 1<<16, 1<<20)
	t.Cleanup(js.Shutdown)
	r := newFakeRenderer()
	m := New(dir, js, r)
	return m, r, js
}

func writeAsset(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t)
	writeAsset(t, m.root, "mesh.obj", "v 0 0 0")

	h1, err := m.ImportAsset("mesh.obj")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := m.ImportAsset("mesh.obj")
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("re-importing the same path returned a different handle: %v != %v", h1, h2)
	}
}

func TestImportUnknownExtensionFails(t *testing.T) {
	m, _, _ := newTestManager(t)
	writeAsset(t, m.root, "notes.txt", "hello")
	if _, err := m.ImportAsset("notes.txt"); err == nil {
		t.Fatalf("expected an error importing an unregistered extension")
	}
}

func TestContentIdenticalFilesShareUUID(t *testing.T) {
	m, _, _ := newTestManager(t)
	writeAsset(t, m.root, "a.obj", "v 0 0 0")
	writeAsset(t, m.root, "b.obj", "v 0 0 0")

	ha, err := m.ImportAsset("a.obj")
	if err != nil {
		t.Fatal(err)
	}
	hb, err := m.ImportAsset("b.obj")
	if err != nil {
		t.Fatal(err)
	}
	recA, _ := m.resources.Get(ha)
	recB, _ := m.resources.Get(hb)
	if recA.UUID != recB.UUID {
		t.Fatalf("byte-identical content produced different UUIDs: %v != %v", recA.UUID, recB.UUID)
	}
}

func TestAcquireLoadsAndReleaseDestroys(t *testing.T) {
	m, r, js := newTestManager(t)
	writeAsset(t, m.root, "tex.png", "fake-png-bytes")

	h, err := m.ImportAsset("tex.png")
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := m.resources.Get(h)

	if _, err := m.Acquire(rec.UUID); err != nil {
		t.Fatal(err)
	}
	js.WaitForAll()

	if rec.State() != Loaded {
		t.Fatalf("state = %v, want Loaded", rec.State())
	}
	if !rec.Handle().Valid() {
		t.Fatalf("expected a valid GPU handle after load")
	}

	m.Release(rec.UUID)
	if rec.State() != Unloaded {
		t.Fatalf("state after release = %v, want Unloaded", rec.State())
	}
	r.mu.Lock()
	destroyed := len(r.destroyed)
	r.mu.Unlock()
	if destroyed != 1 {
		t.Fatalf("destroyed count = %d, want 1", destroyed)
	}
}

func TestSecondAcquireIncrementsRefCountWithoutReload(t *testing.T) {
	m, r, js := newTestManager(t)
	writeAsset(t, m.root, "tex.png", "fake-png-bytes")
	h, _ := m.ImportAsset("tex.png")
	rec, _ := m.resources.Get(h)

	m.Acquire(rec.UUID)
	m.Acquire(rec.UUID)
	js.WaitForAll()

	if rec.RefCount() != 2 {
		t.Fatalf("refcount = %d, want 2", rec.RefCount())
	}
	r.mu.Lock()
	created := r.created
	r.mu.Unlock()
	if created != 1 {
		t.Fatalf("created count = %d, want 1 (second acquire must not reload)", created)
	}

	m.Release(rec.UUID)
	if rec.State() != Loaded {
		t.Fatalf("state after one release of two acquires = %v, want still Loaded", rec.State())
	}
	m.Release(rec.UUID)
	if rec.State() != Unloaded {
		t.Fatalf("state after final release = %v, want Unloaded", rec.State())
	}
}

// compositeModel is a trivial CompositeParser: it always declares one
// embedded mesh child and one embedded material child.
type compositeModel struct{}

func (compositeModel) ParseChildren(data []byte) ([]ChildAsset, error) {
	return []ChildAsset{
		{LocalName: "mesh0", Type: TypeMesh, Data: []byte("mesh-bytes")},
		{LocalName: "mat0", Type: TypeMaterial, Data: []byte("mat-bytes")},
	}, nil
}

func TestCompositeImportRegistersChildrenAndTransitiveAcquire(t *testing.T) {
	m, r, js := newTestManager(t)
	m.RegisterCompositeParser(TypeModel, compositeModel{})
	writeAsset(t, m.root, "hero.model", "model-bytes")

	h, err := m.ImportAsset("hero.model")
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := m.resources.Get(h)
	if len(rec.children) != 2 {
		t.Fatalf("children = %d, want 2", len(rec.children))
	}

	if _, err := m.Acquire(rec.UUID); err != nil {
		t.Fatal(err)
	}
	js.WaitForAll()

	if rec.State() != Loaded {
		t.Fatalf("parent state = %v, want Loaded", rec.State())
	}
	for _, childID := range rec.children {
		childRec, ok := m.Lookup(childID)
		if !ok {
			t.Fatalf("child %v not registered", childID)
		}
		if childRec.State() != Loaded {
			t.Fatalf("child state = %v, want Loaded", childRec.State())
		}
		if childRec.RefCount() != 1 {
			t.Fatalf("child refcount = %d, want 1 (acquired transitively once)", childRec.RefCount())
		}
	}

	r.mu.Lock()
	created := r.created
	r.mu.Unlock()
	if created != 3 { // parent + 2 children.
		t.Fatalf("created = %d, want 3", created)
	}

	m.Release(rec.UUID)
	for _, childID := range rec.children {
		childRec, _ := m.Lookup(childID)
		if childRec.State() != Unloaded {
			t.Fatalf("child state after parent release = %v, want Unloaded", childRec.State())
		}
	}
}

// blockingRenderer behaves like fakeRenderer but lets a test hold
// CreateResource open until the test is ready for it to complete, so a
// Release can land while the resource is still Pending.
type blockingRenderer struct {
	fakeRenderer
	release chan struct{}
}

func newBlockingRenderer() *blockingRenderer {
	return &blockingRenderer{fakeRenderer: fakeRenderer{fail: map[string]bool{}}, release: make(chan struct{})}
}

func (r *blockingRenderer) CreateResource(t Type, data []byte, deps []handle.Handle) (handle.Handle, error) {
	<-r.release
	return r.fakeRenderer.CreateResource(t, data, deps)
}

func TestReleaseDuringPendingLoadDefersUnloadUntilLoadCompletes(t *testing.T) {
	dir := t.TempDir()
	js := job.New(2, 1<<16, 1<<20)
	defer js.Shutdown()
	r := newBlockingRenderer()
	m := New(dir, js, r)
	writeAsset(t, m.root, "tex.png", "fake-png-bytes")

	h, err := m.ImportAsset("tex.png")
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := m.resources.Get(h)

	if _, err := m.Acquire(rec.UUID); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rec.State() != Pending && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if rec.State() != Pending {
		t.Fatalf("state = %v, want Pending while load job is blocked", rec.State())
	}

	// release while the load is still in flight.
	m.Release(rec.UUID)
	if rec.State() != Pending {
		t.Fatalf("state right after release-during-load = %v, want still Pending", rec.State())
	}

	close(r.release) // let the load job proceed.
	js.WaitForAll()

	deadline = time.Now().Add(2 * time.Second)
	for rec.State() == Pending && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if rec.State() != Unloaded {
		t.Fatalf("state after deferred load = %v, want Unloaded", rec.State())
	}
	r.mu.Lock()
	created, destroyed := r.created, len(r.destroyed)
	r.mu.Unlock()
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	if destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1 (no GPU leak after release-during-load)", destroyed)
	}
}

func TestConcurrentAcquireCoalescesIntoOneLoad(t *testing.T) {
	m, r, js := newTestManager(t)
	writeAsset(t, m.root, "tex.png", "fake-png-bytes")
	h, _ := m.ImportAsset("tex.png")
	rec, _ := m.resources.Get(h)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Acquire(rec.UUID)
		}()
	}
	wg.Wait()
	js.WaitForAll()

	if rec.RefCount() != 16 {
		t.Fatalf("refcount = %d, want 16", rec.RefCount())
	}
	r.mu.Lock()
	created := r.created
	r.mu.Unlock()
	if created != 1 {
		t.Fatalf("created = %d, want exactly 1 load despite 16 concurrent acquires", created)
	}
}

func TestFailedLoadSetsFailedState(t *testing.T) {
	dir := t.TempDir()
	js := job.New(1, 1<<16, 1<<20)
	defer js.Shutdown()
	r := newFakeRenderer()
	m := New(dir, js, r)
	writeAsset(t, m.root, "bad.png", "bytes")

	h, _ := m.ImportAsset("bad.png")
	rec, _ := m.resources.Get(h)

	// delete the file after import so the load job's re-read fails.
	os.Remove(filepath.Join(m.root, "bad.png"))

	m.Acquire(rec.UUID)
	js.WaitForAll()

	if rec.State() != Failed {
		t.Fatalf("state = %v, want Failed", rec.State())
	}
	if rec.Err() == nil {
		t.Fatalf("expected a recorded load error")
	}
}

// TestMaterialAcquireLoadsDependencyGraph: a material text asset
// referencing a shader and two textures by uuid. Acquiring the material
// loads all four resources; releasing it unloads all four.
func TestMaterialAcquireLoadsDependencyGraph(t *testing.T) {
	m, r, js := newTestManager(t)
	m.RegisterDependencyScanner(TypeMaterial, UUIDRefScanner{})

	writeAsset(t, m.root, "lit.glsl", "uniform vec4 tint;")
	writeAsset(t, m.root, "albedo.png", "albedo-bytes")
	writeAsset(t, m.root, "normal.png", "normal-bytes")

	uuidOf := func(rel string) UUID {
		t.Helper()
		h, err := m.ImportAsset(rel)
		if err != nil {
			t.Fatal(err)
		}
		rec, _ := m.resources.Get(h)
		return rec.UUID
	}
	shader := uuidOf("lit.glsl")
	albedo := uuidOf("albedo.png")
	normal := uuidOf("normal.png")

	matText := fmt.Sprintf(
		"version 0\nshader_uuid %d\nproperty texture albedo_tex %d\nproperty texture normal_tex %d\n",
		uint64(shader), uint64(albedo), uint64(normal))
	writeAsset(t, m.root, "lit.material", matText)

	h, err := m.ImportAsset("lit.material")
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := m.resources.Get(h)
	if got := rec.dependencies(); len(got) != 3 {
		t.Fatalf("scanned dependencies = %v, want 3 entries", got)
	}

	if _, err := m.Acquire(rec.UUID); err != nil {
		t.Fatal(err)
	}
	js.WaitForAll()

	if rec.State() != Loaded {
		t.Fatalf("material state = %v, want Loaded", rec.State())
	}
	for _, dep := range []UUID{shader, albedo, normal} {
		depRec, ok := m.Lookup(dep)
		if !ok {
			t.Fatalf("dependency %v not registered", dep)
		}
		if depRec.State() != Loaded {
			t.Fatalf("dependency state = %v, want Loaded", depRec.State())
		}
		if depRec.RefCount() != 1 {
			t.Fatalf("dependency refcount = %d, want 1", depRec.RefCount())
		}
	}
	r.mu.Lock()
	created := r.created
	r.mu.Unlock()
	if created != 4 {
		t.Fatalf("created = %d, want 4 (material + shader + 2 textures)", created)
	}

	m.Release(rec.UUID)
	if rec.State() != Unloaded {
		t.Fatalf("material state after release = %v, want Unloaded", rec.State())
	}
	for _, dep := range []UUID{shader, albedo, normal} {
		depRec, _ := m.Lookup(dep)
		if depRec.State() != Unloaded {
			t.Fatalf("dependency state after release = %v, want Unloaded", depRec.State())
		}
	}
	r.mu.Lock()
	destroyed := len(r.destroyed)
	r.mu.Unlock()
	if destroyed != 4 {
		t.Fatalf("destroyed = %d, want 4 (no GPU leaks)", destroyed)
	}
}

func TestUUIDRefScannerFindsReferencesInFileOrder(t *testing.T) {
	data := []byte("version 0\nshader_uuid 11\nproperty texture a 22\nproperty texture b 33\nproperty float r 0.5\nshader_uuid 11\n")
	deps, err := UUIDRefScanner{}.ScanDependencies(data)
	if err != nil {
		t.Fatal(err)
	}
	want := []UUID{11, 22, 33}
	if len(deps) != len(want) {
		t.Fatalf("deps = %v, want %v", deps, want)
	}
	for i := range want {
		if deps[i] != want[i] {
			t.Fatalf("deps = %v, want %v", deps, want)
		}
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assets.cache")
	entries := map[string]CacheEntry{
		"models/hero.obj":  {Path: "models/hero.obj", LastWriteTime: 1234},
		"shaders/lit.vert": {Path: "shaders/lit.vert", LastWriteTime: 5678},
	}
	if err := SaveCache(path, entries); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadCache(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != len(entries) {
		t.Fatalf("loaded %d entries, want %d", len(loaded), len(entries))
	}
	for k, v := range entries {
		got, ok := loaded[k]
		if !ok || got != v {
			t.Fatalf("entry %q = %+v, want %+v (ok=%v)", k, got, v, ok)
		}
	}
}

// TestImportConsultsCacheForStaleEntries: with write-time tracking on, a
// repeat import of an unchanged path trusts the cache, while a changed
// file is re-read and re-hashed to a new identity.
func TestImportConsultsCacheForStaleEntries(t *testing.T) {
	m, _, _ := newTestManager(t)
	cachePath := filepath.Join(t.TempDir(), "assets.cache")
	if err := m.UseCache(cachePath); err != nil {
		t.Fatal(err)
	}

	writeAsset(t, m.root, "a.obj", "v 0 0 0")
	full := filepath.Join(m.root, "a.obj")
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(full, old, old); err != nil {
		t.Fatal(err)
	}

	h1, err := m.ImportAsset("a.obj")
	if err != nil {
		t.Fatal(err)
	}
	rec1, _ := m.resources.Get(h1)
	uuid1 := rec1.UUID

	h2, err := m.ImportAsset("a.obj")
	if err != nil {
		t.Fatal(err)
	}
	if h2 != h1 {
		t.Fatalf("unchanged re-import returned a different handle: %v != %v", h2, h1)
	}

	writeAsset(t, m.root, "a.obj", "v 1 1 1")
	newer := time.Now()
	if err := os.Chtimes(full, newer, newer); err != nil {
		t.Fatal(err)
	}

	h3, err := m.ImportAsset("a.obj")
	if err != nil {
		t.Fatal(err)
	}
	rec3, _ := m.resources.Get(h3)
	if rec3.UUID == uuid1 {
		t.Fatalf("changed file re-imported with its stale identity %v", uuid1)
	}

	if err := m.WriteCache(); err != nil {
		t.Fatal(err)
	}
	entries, err := LoadCache(cachePath)
	if err != nil {
		t.Fatal(err)
	}
	e, ok := entries["a.obj"]
	if !ok {
		t.Fatalf("written cache is missing the imported entry: %v", entries)
	}
	cur, err := Stat(full)
	if err != nil {
		t.Fatal(err)
	}
	if e.LastWriteTime != cur.LastWriteTime {
		t.Fatalf("cache write time %d does not match the file's %d", e.LastWriteTime, cur.LastWriteTime)
	}
}

// TestLoadCacheDiscardsMismatchedHeader: a foreign magic number or an
// unknown version reads as an empty cache to be rebuilt, never an error.
func TestLoadCacheDiscardsMismatchedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.cache")

	if err := os.WriteFile(path, []byte{1, 2, 3, 4, 0, 0, 0, 0, 0, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := LoadCache(path)
	if err != nil || len(entries) != 0 {
		t.Fatalf("bad magic: entries=%v err=%v, want empty and nil", entries, err)
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(0x55555555))
	binary.Write(&buf, binary.LittleEndian, uint32(999))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err = LoadCache(path)
	if err != nil || len(entries) != 0 {
		t.Fatalf("bad version: entries=%v err=%v, want empty and nil", entries, err)
	}
}

func TestLoadCacheMissingFileIsNotAnError(t *testing.T) {
	entries, err := LoadCache(filepath.Join(t.TempDir(), "missing.cache"))
	if err != nil {
		t.Fatalf("LoadCache on a missing file should not error, got %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected an empty cache, got %d entries", len(entries))
	}
}

func TestChangedDetectsModifiedAndUnknownPaths(t *testing.T) {
	cache := map[string]CacheEntry{
		"a.obj": {Path: "a.obj", LastWriteTime: 100},
	}
	if Changed(cache, CacheEntry{Path: "a.obj", LastWriteTime: 100}) {
		t.Fatalf("unchanged entry reported as changed")
	}
	if !Changed(cache, CacheEntry{Path: "a.obj", LastWriteTime: 200}) {
		t.Fatalf("modified entry not reported as changed")
	}
	if !Changed(cache, CacheEntry{Path: "b.obj", LastWriteTime: 100}) {
		t.Fatalf("unknown path not reported as changed")
	}
}

func TestHotReloadSwapsHandleAndDefersDestroy(t *testing.T) {
	m, r, js := newTestManager(t)
	writeAsset(t, m.root, "tex.png", "v1")
	h, _ := m.ImportAsset("tex.png")
	rec, _ := m.resources.Get(h)
	m.Acquire(rec.UUID)
	js.WaitForAll()

	if err := m.EnableHotReload(3); err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	oldHandle := rec.Handle()
	writeAsset(t, m.root, "tex.png", "v2-different-content")

	deadline := time.Now().Add(2 * time.Second)
	for rec.Handle() == oldHandle && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if rec.Handle() == oldHandle {
		t.Fatalf("hot reload never swapped in a new handle")
	}

	// the old handle is not destroyed immediately: it waits in a deferred bin.
	r.mu.Lock()
	destroyedImmediately := len(r.destroyed)
	r.mu.Unlock()
	if destroyedImmediately != 0 {
		t.Fatalf("old handle destroyed before its frame-in-flight slot rotated around")
	}

	for i := 0; i < 3; i++ {
		m.AdvanceFrame()
	}
	r.mu.Lock()
	destroyedAfter := len(r.destroyed)
	r.mu.Unlock()
	if destroyedAfter != 1 {
		t.Fatalf("destroyed = %d after 3 AdvanceFrame calls, want 1", destroyedAfter)
	}
}

func TestUUIDStableAcrossRuns(t *testing.T) {
	a := FromContent([]byte("same bytes"))
	b := FromContent([]byte("same bytes"))
	if a != b {
		t.Fatalf("FromContent is not deterministic: %v != %v", a, b)
	}
	c := FromContent([]byte("different bytes"))
	if a == c {
		t.Fatalf("different content collided onto the same UUID")
	}
}

func TestChildUUIDDependsOnParentAndName(t *testing.T) {
	parent := FromContent([]byte("parent"))
	c1 := Child(parent, "mesh0")
	c2 := Child(parent, "mesh1")
	if c1 == c2 {
		t.Fatalf("two differently-named children of the same parent collided")
	}
	otherParent := FromContent([]byte("other-parent"))
	c3 := Child(otherParent, "mesh0")
	if c1 == c3 {
		t.Fatalf("same local name under a different parent collided")
	}
}
