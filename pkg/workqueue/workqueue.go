// Package workqueue implements a priority-ordered background work queue.
//
// The queue runs one-shot work items on a pool of background goroutines.
// Item priorities are dynamic: the queue re-reads Priority() every time it
// selects the next item to run, so an item whose priority changes while
// queued is reordered automatically. Because priorities are mutable, the
// queue uses a linear scan rather than a heap; queue depths here are small
// (one item per cache record being populated).
//
// Ties are broken by insertion order (FIFO).
package workqueue

import (
	"sync"
)

// Item is a one-shot unit of background work.
//
// Run is called exactly once, on a queue worker goroutine. Priority is
// consulted by the queue whenever it picks the next item; it must be safe
// to call concurrently with Run on other items.
type Item interface {
	Run()
	Priority() float64
}

// Comparator reports whether a should run before b.
//
// Comparators must be strict: returning false for equal items keeps the
// queue's FIFO tie-break intact.
type Comparator func(a, b Item) bool

// MostRecentFirst prefers the item with the highest priority value.
//
// Cache records use their last-access timestamp as priority, so this runs
// the most recently consulted record's work first.
func MostRecentFirst(a, b Item) bool {
	return a.Priority() > b.Priority()
}

// entry pairs an item with its insertion sequence for stable ordering.
type entry struct {
	item Item
	seq  uint64
}

// Queue is a priority work queue with a fixed worker pool.
//
// Lifecycle:
//   - Created via New with a comparator
//   - Started via Start which spawns the worker goroutines
//   - Stopped via Stop which lets in-flight items finish, drops queued
//     items, and waits for the workers to exit
//
// There is no per-item cancellation: once a worker picks an item, it runs
// to completion. Callers that must observe a quiescent queue use Drain.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []entry
	seq     uint64
	compare Comparator
	running int
	stopped bool
	wg      sync.WaitGroup
}

// New creates a queue using the given comparator.
// A nil comparator defaults to MostRecentFirst.
func New(compare Comparator) *Queue {
	if compare == nil {
		compare = MostRecentFirst
	}
	q := &Queue{compare: compare}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start spawns the worker pool. Must be called once before Add.
func (q *Queue) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Add enqueues an item. Items added after Stop are silently dropped.
func (q *Queue) Add(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return
	}

	q.items = append(q.items, entry{item: item, seq: q.seq})
	q.seq++
	q.cond.Signal()
}

// Len returns the number of queued (not yet running) items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain blocks until the queue is empty and no item is running, or until
// the queue is stopped. It does not prevent new items from being added;
// callers must serialize Drain against producers themselves.
func (q *Queue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for (len(q.items) > 0 || q.running > 0) && !q.stopped {
		q.cond.Wait()
	}
}

// Stop drops queued items, waits for in-flight items to finish, and shuts
// the workers down. Idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.items = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
}

// worker is the run loop of one background goroutine.
func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if q.stopped {
			q.mu.Unlock()
			return
		}

		// Re-evaluate priorities now, not at Add time. Iteration follows
		// insertion order and the comparison is strict, so equal-priority
		// items run FIFO.
		best := 0
		for i := 1; i < len(q.items); i++ {
			if q.compare(q.items[i].item, q.items[best].item) {
				best = i
			}
		}

		item := q.items[best].item
		q.items = append(q.items[:best], q.items[best+1:]...)
		q.running++
		q.mu.Unlock()

		item.Run()

		q.mu.Lock()
		q.running--
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}
