// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

// Package job implements the engine's work-stealing-style job system: a
// fixed worker pool with typed dependencies between jobs. Jobs are placed
// on the least-loaded worker at submission time, WaitForAll drains by
// LIFO-stealing from the deepest queue, and the lock order — always the
// predecessor's dependents list before a dependent's counters — is the
// only cross-job lock, so lock cycles are impossible.
package job

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/havenforge/engine/handle"
	"github.com/havenforge/engine/mem"
)

var bgCtx = context.Background()

// Result is what a Proc returns.
type Result int

const (
	Succeeded Result = iota
	Failed
)

// State tracks a Job's lifecycle: Waiting → Queued → Running →
// Finished/Failed/Cancelled.
type State int32

const (
	Waiting State = iota
	Queued
	Running
	Finished
	FailedState
	Cancelled
)

// Proc is the unit of work a job runs. params is scratch-arena-backed
// memory valid only for the duration of the call; scratch is the running
// worker's own per-thread scratch arena, for allocations the proc needs
// beyond what was passed in params.
type Proc func(params []byte, scratch *mem.Scratch) Result

// Handle addresses one scheduled Job.
type Handle = handle.Handle

type record struct {
	proc   Proc
	params []byte
	ptr    mem.Ptr // backing allocation in the system's parameter heap.

	mu         sync.Mutex // "dependents_lock": guards dependents and finished together.
	dependents []Handle
	finished   bool

	remaining int32 // atomic: unfinished prerequisites, +1 while Execute is still attaching.
	state     int32 // atomic State.
	result    Result
}

// System owns the worker pool, the job handle table, and the shared
// free-list heap that job parameter buffers are allocated from.
type System struct {
	jobs     *handle.Pool[record]
	params   *mem.FreeList
	workers  []*worker
	inFlight int64 // atomic: jobs scheduled but not yet finished/cancelled.
}

type worker struct {
	sys     *System
	index   int
	mu      sync.Mutex
	queue   []Handle
	sem     *semaphore.Weighted
	scratch *mem.Scratch
	done    chan struct{}
}

// New creates a job system with the given number of workers, each sized
// with a scratch arena of scratchBlockSize bytes, and a shared parameter
// heap of paramHeapSize bytes. Workers start running immediately.
func New(workerCount, scratchBlockSize, paramHeapSize int) *System {
	if workerCount < 1 {
		workerCount = 1
	}
	s := &System{
		jobs:   handle.New[record](),
		params: mem.NewFreeList(paramHeapSize),
	}
	s.workers = make([]*worker, workerCount)
	for i := range s.workers {
		w := &worker{
			sys:     s,
			index:   i,
			sem:     semaphore.NewWeighted(1 << 30),
			scratch: mem.NewScratch(fmt.Sprintf("worker-%d", i), scratchBlockSize),
			done:    make(chan struct{}),
		}
		// start with no free permits: each schedule Release hands out one.
		w.sem.Acquire(bgCtx, 1<<30)
		s.workers[i] = w
		go w.run()
	}
	return s
}

// Shutdown stops every worker the next time it wakes; jobs still in its
// queue are not run. It does not cancel in-flight jobs; call WaitForAll
// first if a clean drain is required.
func (s *System) Shutdown() {
	for _, w := range s.workers {
		close(w.done)
		w.sem.Release(1) // wake the worker so it observes done being closed.
	}
}

// Execute registers a job, attaches it as a dependent of each predecessor
// in waitFor that has not yet finished, and schedules it immediately if
// every predecessor has already finished successfully. A predecessor that
// has already failed or been cancelled cancels the new job instead.
func (s *System) Execute(proc Proc, params []byte, waitFor []Handle) Handle {
	h, rec := s.jobs.Acquire()
	rec.proc = proc
	if len(params) > 0 {
		rec.ptr = s.params.Allocate(len(params), 1)
		copy(s.params.Bytes(rec.ptr), params)
		rec.params = s.params.Bytes(rec.ptr)
	}
	rec.finished = false
	atomic.StoreInt32(&rec.state, int32(Waiting))
	atomic.AddInt64(&s.inFlight, 1)

	// remaining starts at 1: a registration guard held while predecessors
	// are being attached. Attached predecessors run concurrently with this
	// loop and may finish (and decrement) before it ends, so the count must
	// be live from the first append — a predecessor that finishes mid-attach
	// decrements the real counter, but can never reach zero until the guard
	// is dropped below. Exactly one party schedules the job: the guard drop
	// here, or the decrement-to-zero in finalize.
	atomic.StoreInt32(&rec.remaining, 1)
	predFailed := false
	for _, pred := range waitFor {
		predRec, ok := s.jobs.Get(pred)
		if !ok {
			continue // stale predecessor handle: treat as already resolved.
		}
		predRec.mu.Lock()
		if predRec.finished {
			predFailed = predFailed || predRec.result == Failed || State(atomic.LoadInt32(&predRec.state)) == Cancelled
			predRec.mu.Unlock()
			continue
		}
		predRec.dependents = append(predRec.dependents, h)
		atomic.AddInt32(&rec.remaining, 1)
		predRec.mu.Unlock()
	}
	if predFailed {
		s.cancel(h) // the guard is never dropped, so no predecessor schedules it.
	} else if atomic.AddInt32(&rec.remaining, -1) == 0 {
		s.schedule(h)
	}
	return h
}

// schedule assigns h to the least-loaded worker: queue depths are read
// under each worker's lock and the minimum wins.
func (s *System) schedule(h Handle) {
	rec, ok := s.jobs.Get(h)
	if !ok {
		return
	}
	atomic.StoreInt32(&rec.state, int32(Queued))

	var best *worker
	bestDepth := -1
	for _, w := range s.workers {
		w.mu.Lock()
		depth := len(w.queue)
		w.mu.Unlock()
		if bestDepth == -1 || depth < bestDepth {
			bestDepth = depth
			best = w
		}
	}
	best.mu.Lock()
	best.queue = append(best.queue, h)
	best.mu.Unlock()
	best.sem.Release(1)
}

func (w *worker) run() {
	for {
		if err := w.sem.Acquire(bgCtx, 1); err != nil {
			return
		}
		select {
		case <-w.done:
			return
		default:
		}
		h, ok := w.popFront()
		if !ok {
			continue
		}
		w.sys.runInline(h, w.scratch)
	}
}

func (w *worker) popFront() (Handle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return Handle{}, false
	}
	h := w.queue[0]
	w.queue = w.queue[1:]
	return h, true
}

// runInline executes h's proc on the calling goroutine using the given
// scratch arena, then runs the predecessor-finished protocol.
func (s *System) runInline(h Handle, scratch *mem.Scratch) {
	rec, ok := s.jobs.Get(h)
	if !ok {
		return
	}
	atomic.StoreInt32(&rec.state, int32(Running))

	save := scratch.Begin()
	result := rec.proc(rec.params, scratch)
	scratch.End(save)

	s.finalize(h, rec, result)
}

// finalize runs the predecessor protocol: lock the finishing job's
// dependents list, mark it finished, then either cancel every dependent
// (on Failed) or decrement each dependent's remaining count and schedule
// it if that decrement reached zero (on Succeeded).
func (s *System) finalize(h Handle, rec *record, result Result) {
	rec.mu.Lock()
	rec.finished = true
	rec.result = result
	deps := rec.dependents
	rec.dependents = nil
	rec.mu.Unlock()

	if result == Failed {
		atomic.StoreInt32(&rec.state, int32(FailedState))
		for _, d := range deps {
			s.cancel(d)
		}
	} else {
		atomic.StoreInt32(&rec.state, int32(Finished))
		for _, d := range deps {
			drec, ok := s.jobs.Get(d)
			if !ok {
				continue
			}
			if atomic.AddInt32(&drec.remaining, -1) == 0 {
				s.schedule(d)
			}
		}
	}

	if rec.ptr != 0 {
		s.params.Deallocate(rec.ptr)
	}
	atomic.AddInt64(&s.inFlight, -1)
}

// cancel recursively cancels h and all of its transitive dependents.
// Cancellation is cooperative: a running proc is never interrupted, this
// only prevents not-yet-scheduled dependents from ever running.
func (s *System) cancel(h Handle) {
	rec, ok := s.jobs.Get(h)
	if !ok {
		return
	}
	rec.mu.Lock()
	if rec.finished {
		rec.mu.Unlock()
		return // already ran to completion before the cancellation arrived.
	}
	rec.finished = true
	atomic.StoreInt32(&rec.state, int32(Cancelled))
	deps := rec.dependents
	rec.dependents = nil
	rec.mu.Unlock()

	if rec.ptr != 0 {
		s.params.Deallocate(rec.ptr)
	}
	atomic.AddInt64(&s.inFlight, -1)

	for _, d := range deps {
		s.cancel(d)
	}
}

// State returns h's current lifecycle state and whether h still resolves
// (a released/stale handle returns Cancelled, false).
func (s *System) State(h Handle) (State, bool) {
	rec, ok := s.jobs.Get(h)
	if !ok {
		return Cancelled, false
	}
	return State(atomic.LoadInt32(&rec.state)), true
}

// Result returns h's terminal result once finished; ok is false while the
// job is still in flight or the handle is stale.
func (s *System) Result(h Handle) (Result, bool) {
	rec, ok := s.jobs.Get(h)
	if !ok {
		return Failed, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.finished {
		return Failed, false
	}
	return rec.result, true
}

// Release recycles h's job-table slot. Call once a consumer no longer
// needs State/Result for h.
func (s *System) Release(h Handle) { s.jobs.Release(h) }

// WaitForAll cooperatively drains the system: the calling goroutine steals
// work from the most-loaded worker (LIFO) until no jobs remain in flight,
// rather than sleeping while workers finish.
func (s *System) WaitForAll() {
	mine := mem.NewScratch("wait-for-all", 1<<16)
	for atomic.LoadInt64(&s.inFlight) > 0 {
		h, ok := s.stealFromDeepestQueue()
		if !ok {
			// nothing stealable right now; a worker holds the remaining
			// jobs. Yield so it gets scheduled instead of spinning hot.
			runtime.Gosched()
			continue
		}
		s.runInline(h, mine)
	}
}

// stealFromDeepestQueue picks the worker with the deepest queue (at least
// two items so a worker always keeps something to do) and pops its tail.
func (s *System) stealFromDeepestQueue() (Handle, bool) {
	var best *worker
	bestDepth := 1 // require >=2 before stealing.
	for _, w := range s.workers {
		w.mu.Lock()
		depth := len(w.queue)
		if depth > bestDepth {
			bestDepth = depth
			best = w
		}
		w.mu.Unlock()
	}
	if best == nil {
		return Handle{}, false
	}
	best.mu.Lock()
	defer best.mu.Unlock()
	if len(best.queue) < 2 {
		return Handle{}, false
	}
	n := len(best.queue)
	h := best.queue[n-1]
	best.queue = best.queue[:n-1]
	return h, true
}

// InFlight returns the number of jobs scheduled but not yet finished or
// cancelled. Exposed for tests and diagnostics.
func (s *System) InFlight() int64 { return atomic.LoadInt64(&s.inFlight) }
