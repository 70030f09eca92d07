// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

// Package engine wires the subsystems together: the memory system, job
// system, asset manager, gfx renderer, and scene model, all configured at
// startup from a config.File. It is pure glue — no subsystem logic of its
// own — exposing Init/Advance/Shutdown as the one seam a host binary
// calls into.
package engine

import (
	"fmt"
	"runtime"

	"github.com/havenforge/engine/asset"
	"github.com/havenforge/engine/config"
	"github.com/havenforge/engine/gfx"
	"github.com/havenforge/engine/job"
	"github.com/havenforge/engine/mem"
	"github.com/havenforge/engine/scene"
)

// defaultWorkerCount leaves one core for the main thread and one for the
// host's windowing/input loop, clamped to a minimum of 1.
func defaultWorkerCount() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		return 1
	}
	return n
}

// Config bundles the knobs Init reads, either supplied directly or loaded
// from a config.File via FromConfig.
type Config struct {
	AssetRoot        string
	CacheFile        string // cooker asset-cache path; "" skips cache tracking.
	WorkerCount      int
	ScratchBlockSize int
	PermanentBlock   int
	TransientBlock   int
	DebugBlock       int
	ParamHeapSize    int
	HotReloadSlots   int // 0 disables hot reload.
}

// DefaultConfig returns the engine's out-of-the-box settings.
func DefaultConfig() Config {
	return Config{
		AssetRoot:        "assets",
		WorkerCount:      defaultWorkerCount(),
		ScratchBlockSize: 64 * 1024,
		PermanentBlock:   1 << 20,
		TransientBlock:   1 << 20,
		DebugBlock:       64 * 1024,
		ParamHeapSize:    1 << 16,
		HotReloadSlots:   gfx.FramesInFlight,
	}
}

// FromConfig overlays cf's overrides (`@job worker_count`, `@asset root`,
// `@asset cache_file`) onto the default config. A fixed worker count
// gives tests a deterministic pool size.
func FromConfig(cf *config.File) Config {
	c := DefaultConfig()
	if v, ok := cf.U64("job", "worker_count"); ok {
		c.WorkerCount = int(v)
	}
	if v, ok := cf.String("asset", "root"); ok {
		c.AssetRoot = v
	}
	if v, ok := cf.String("asset", "cache_file"); ok {
		c.CacheFile = v
	}
	return c
}

// Engine is the root object owning every subsystem instance.
type Engine struct {
	Mem    *mem.System
	Jobs   *job.System
	Assets *asset.Manager
	GFX    *gfx.System
	Scene  *scene.Scene

	cfg Config
}

// Init constructs every subsystem in dependency order (mem and jobs have
// no dependencies; asset depends on jobs and a gfx.System implementing
// asset.Renderer; scene depends on nothing but is created last by
// convention) and returns the wired Engine.
func Init(cfg Config, device gfx.Device) (*Engine, error) {
	memSys := mem.NewSystem(cfg.PermanentBlock, cfg.TransientBlock, cfg.DebugBlock, cfg.ScratchBlockSize)
	jobs := job.New(cfg.WorkerCount, cfg.ScratchBlockSize, cfg.ParamHeapSize)
	gfxSys := gfx.New(device)
	assets := asset.New(cfg.AssetRoot, jobs, gfxSys)
	assets.RegisterCompositeParser(asset.TypeModel, asset.ModelParser{})
	assets.RegisterDependencyScanner(asset.TypeMaterial, asset.UUIDRefScanner{})

	if cfg.CacheFile != "" {
		if err := assets.UseCache(cfg.CacheFile); err != nil {
			return nil, fmt.Errorf("engine: load asset cache: %w", err)
		}
	}

	if cfg.HotReloadSlots > 0 {
		if err := assets.EnableHotReload(cfg.HotReloadSlots); err != nil {
			return nil, fmt.Errorf("engine: enable hot reload: %w", err)
		}
	}

	return &Engine{
		Mem:    memSys,
		Jobs:   jobs,
		Assets: assets,
		GFX:    gfxSys,
		Scene:  scene.New(),
		cfg:    cfg,
	}, nil
}

// Advance runs one frame: drains the asset manager's deferred-destruction
// bin for the newly-reused fence slot, then drives frame's per-frame loop
// with list.
func (e *Engine) Advance(frame *gfx.Frame, list gfx.DrawList) error {
	e.Assets.AdvanceFrame()
	return frame.Advance(list)
}

// BuildDrawList walks the scene and collects one draw entry per node with
// a loaded mesh, resolving mesh and material asset references to their
// current GPU handles. Nodes whose mesh resource is not Loaded are
// skipped rather than drawn stale; a node without a loaded material draws
// with the zero material handle and the renderer's bucket pass sorts it
// to the front.
func (e *Engine) BuildDrawList() gfx.DrawList {
	var list gfx.DrawList
	var walk func(idx int)
	walk = func(idx int) {
		if ref := e.Scene.Mesh(idx); ref != 0 {
			if rec, ok := e.Assets.Lookup(asset.UUID(ref)); ok && rec.State() == asset.Loaded {
				entry := gfx.DrawEntry{Mesh: rec.Handle()}
				if matRef := e.Scene.Material(idx); matRef != 0 {
					if matRec, ok := e.Assets.Lookup(asset.UUID(matRef)); ok && matRec.State() == asset.Loaded {
						entry.Material = matRec.Handle()
					}
				}
				list = append(list, entry)
			}
		}
		e.Scene.Children(idx, walk)
	}
	walk(scene.Root)
	return list
}

// Shutdown waits for every in-flight job to finish, persists the asset
// cache's refreshed write times, and tears down the job system's workers.
// Asset and GPU resources are not force-destroyed here: the host binary
// is expected to have already released every resource it acquired before
// calling Shutdown.
func (e *Engine) Shutdown() error {
	e.Jobs.WaitForAll()
	err := e.Assets.WriteCache()
	e.Jobs.Shutdown()
	return err
}
