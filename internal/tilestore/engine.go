package tilestore

import (
	"runtime"
	"sync"
)

// Engine schedules asynchronous tile copies between a bank and staging
// memory. Read and Write return as soon as the request is queued; Barrier
// blocks until every request issued since the previous Barrier has
// completed. Requests between two barriers may complete in any order.
type Engine interface {
	// Read copies tile id of acc into dst and then runs after, if non-nil,
	// on the completed tile. dst length selects the payload size.
	Read(acc Accessor, id uint32, dst []uint32, after func())
	// Write copies src into tile id of acc. src length selects the payload
	// size, so a compact tile writes fewer words than the transfer unit.
	Write(acc Accessor, id uint32, src []uint32)
	Barrier()
}

type request struct {
	acc   Accessor
	id    uint32
	buf   []uint32
	read  bool
	after func()
}

// AsyncEngine runs tile copies on a fixed pool of worker goroutines.
type AsyncEngine struct {
	requests chan request
	pending  sync.WaitGroup
	once     sync.Once
}

// NewAsyncEngine starts an engine with the given worker count; workers <= 0
// selects GOMAXPROCS.
func NewAsyncEngine(workers int) *AsyncEngine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	e := &AsyncEngine{
		requests: make(chan request, workers*2),
	}
	for w := 0; w < workers; w++ {
		go e.worker()
	}
	return e
}

func (e *AsyncEngine) worker() {
	for req := range e.requests {
		if req.read {
			copy(req.buf, req.acc.TileRange(req.id, len(req.buf)))
			if req.after != nil {
				req.after()
			}
		} else {
			copy(req.acc.TileRange(req.id, len(req.buf)), req.buf)
		}
		e.pending.Done()
	}
}

func (e *AsyncEngine) Read(acc Accessor, id uint32, dst []uint32, after func()) {
	e.pending.Add(1)
	e.requests <- request{acc: acc, id: id, buf: dst, read: true, after: after}
}

func (e *AsyncEngine) Write(acc Accessor, id uint32, src []uint32) {
	e.pending.Add(1)
	e.requests <- request{acc: acc, id: id, buf: src}
}

// Barrier blocks until all issued copies have completed. Only the issuing
// goroutine may call it; issue and barrier interleave on one pipeline
// thread, matching the transfer model the pipelines assume.
func (e *AsyncEngine) Barrier() {
	e.pending.Wait()
}

// Close stops the workers once all queued requests drain. The engine must
// not be used afterwards.
func (e *AsyncEngine) Close() {
	e.once.Do(func() { close(e.requests) })
}
