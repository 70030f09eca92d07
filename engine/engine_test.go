// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/havenforge/engine/asset"
	"github.com/havenforge/engine/config"
	"github.com/havenforge/engine/gfx"
	"github.com/havenforge/engine/scene"
)

type noopDevice struct{}

func (noopDevice) UploadTexture(w, h int, pixels []byte) (uint32, error) { return 1, nil }
func (noopDevice) UploadMesh(vertices []byte, indices []uint16) (uint32, error) {
	return 1, nil
}
func (noopDevice) CompileShader(vsh, fsh string) (uint32, error) { return 1, nil }
func (noopDevice) DestroyTexture(slot uint32)                    {}
func (noopDevice) DestroyMesh(slot uint32)                       {}
func (noopDevice) DestroyShader(program uint32)                  {}
func (noopDevice) BeginPass(name string, clear bool)             {}
func (noopDevice) EndPass()                                      {}
func (noopDevice) Barrier()                                      {}
func (noopDevice) Draw(entry gfx.DrawEntry)                      {}
func (noopDevice) AcquireSwapImage() (bool, error)               { return false, nil }
func (noopDevice) Submit() error                                 { return nil }
func (noopDevice) Present() error                                { return nil }

func TestFromConfigAppliesWorkerCountOverride(t *testing.T) {
	cf, err := config.Load(strings.NewReader("@job\n:u32 worker_count 3\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg := FromConfig(cf)
	if cfg.WorkerCount != 3 {
		t.Errorf("got worker count %d, want 3", cfg.WorkerCount)
	}
}

// TestBuildDrawListResolvesLoadedSceneMeshes: a node referencing a loaded
// mesh asset produces one draw entry; a node whose mesh never loaded
// produces none.
func TestBuildDrawListResolvesLoadedSceneMeshes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	cfg.HotReloadSlots = 0
	cfg.AssetRoot = t.TempDir()

	objText := "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0 0\nvt 1 0\nvt 0 1\nvn 0 0 1\nf 1/1/1 2/2/1 3/3/1\n"
	if err := os.WriteFile(filepath.Join(cfg.AssetRoot, "tri.obj"), []byte(objText), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := Init(cfg, noopDevice{})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer e.Shutdown()

	if _, err := e.Assets.ImportAsset("tri.obj"); err != nil {
		t.Fatalf("import: %v", err)
	}
	rec, ok := e.Assets.LookupByPath("tri.obj")
	if !ok {
		t.Fatal("imported mesh not found by path")
	}
	if _, err := e.Assets.Acquire(rec.UUID); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	e.Jobs.WaitForAll()
	if rec.State() != asset.Loaded {
		t.Fatalf("mesh state = %v, want Loaded", rec.State())
	}

	n := e.Scene.AddChildLast(scene.Root)
	e.Scene.SetMesh(n, scene.AssetRef(rec.UUID))
	ghost := e.Scene.AddChildLast(scene.Root)
	e.Scene.SetMesh(ghost, scene.AssetRef(0xdead)) // never imported.

	list := e.BuildDrawList()
	if len(list) != 1 {
		t.Fatalf("draw list has %d entries, want 1", len(list))
	}
	if list[0].Mesh != rec.Handle() {
		t.Fatalf("draw entry mesh = %v, want %v", list[0].Mesh, rec.Handle())
	}
}

func TestInitWiresSubsystemsAndShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerCount = 1
	cfg.HotReloadSlots = 0
	cfg.AssetRoot = t.TempDir()

	e, err := Init(cfg, noopDevice{})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if e.Mem == nil || e.Jobs == nil || e.Assets == nil || e.GFX == nil || e.Scene == nil {
		t.Fatal("Init left a subsystem nil")
	}
	if !e.Scene.Alive(0) {
		t.Error("scene root should exist after Init")
	}
	e.Shutdown()
}
