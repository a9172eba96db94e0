// Package queue is bounded FIFO mailbox of snapshots between sampler and delivery.
// Overflow drops incoming item, accepted items are never reordered or evicted.
package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/embarcatech/sensorlink/snapshot"
)

type Stat struct {
	Pushed  uint64
	Dropped uint64
	Popped  uint64
	Len     int
	Cap     int
}

type Queue struct {
	pushed  uint64 // atomic align
	dropped uint64
	popped  uint64
	ch      chan snapshot.Snapshot
}

func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan snapshot.Snapshot, capacity)}
}

// Push waits at most timeout for free slot.
// Returns false and counts drop when queue stays full.
func (q *Queue) Push(s snapshot.Snapshot, timeout time.Duration) bool {
	select {
	case q.ch <- s:
		atomic.AddUint64(&q.pushed, 1)
		return true
	default:
	}
	if timeout > 0 {
		tmr := time.NewTimer(timeout)
		defer tmr.Stop()
		select {
		case q.ch <- s:
			atomic.AddUint64(&q.pushed, 1)
			return true
		case <-tmr.C:
		}
	}
	atomic.AddUint64(&q.dropped, 1)
	return false
}

// Pop waits at most timeout for next item, timeout<=0 means no wait.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (snapshot.Snapshot, bool) {
	select {
	case s := <-q.ch:
		atomic.AddUint64(&q.popped, 1)
		return s, true
	default:
	}
	if timeout <= 0 {
		return snapshot.Snapshot{}, false
	}
	tmr := time.NewTimer(timeout)
	defer tmr.Stop()
	select {
	case s := <-q.ch:
		atomic.AddUint64(&q.popped, 1)
		return s, true
	case <-tmr.C:
	case <-ctx.Done():
	}
	return snapshot.Snapshot{}, false
}

func (q *Queue) Len() int { return len(q.ch) }
func (q *Queue) Cap() int { return cap(q.ch) }

func (q *Queue) Stat() Stat {
	return Stat{
		Pushed:  atomic.LoadUint64(&q.pushed),
		Dropped: atomic.LoadUint64(&q.dropped),
		Popped:  atomic.LoadUint64(&q.popped),
		Len:     len(q.ch),
		Cap:     cap(q.ch),
	}
}
