package helpers

import (
	"sync/atomic"
	"time"

	"github.com/embarcatech/sensorlink/helpers/atomic_clock"
)

// Limited exponential backoff for retry delays, measured from attempt start.
// First attempt is always allowed immediately.
// Failure() multiplies next delay by K, bounded by [Min, Max].
// K<=1 gives fixed cool-down window of Min.
type Backoff struct {
	next int64 // atomic align
	last atomic_clock.Clock

	Min time.Duration
	Max time.Duration
	K   float32
	Res time.Duration // delay resolution for nice logs, default=1ms

	// Now overrides clock source, unix nanoseconds. Used by tests.
	Now func() int64
}

// Use scenario:
//
//	for {
//	  if backoff.DelayBefore() > 0 { continue later }
//	  backoff.Begin()
//	  err := op()
//	  backoff.Update(err==nil)
//	}
func (b *Backoff) DelayBefore() time.Duration {
	if b.last.IsZero() {
		return 0
	}
	next := time.Duration(atomic.LoadInt64(&b.next))
	delay := b.limit(next)
	since := time.Duration(b.now() - b.last.UnixNano())
	if since >= delay {
		return 0
	}
	return b.round(delay - since)
}

// Begin marks attempt start, the reference point for next delay.
func (b *Backoff) Begin() { b.last.Set(b.now()) }

// Last returns start of previous attempt, zero if none.
func (b *Backoff) Last() time.Time { return b.last.Time() }

// Increase next delay.
func (b *Backoff) Failure() {
	next := time.Duration(atomic.LoadInt64(&b.next))
	if next == 0 {
		next = b.Min
	} else if b.K > 1 {
		next = time.Duration(float32(next) * b.K)
	}
	atomic.StoreInt64(&b.next, int64(b.limit(next)))
}

func (b *Backoff) Reset() {
	atomic.StoreInt64(&b.next, int64(b.Min))
}

func (b *Backoff) Update(success bool) {
	if success {
		b.Reset()
	} else {
		b.Failure()
	}
}

func (b *Backoff) now() int64 {
	if b.Now != nil {
		return b.Now()
	}
	return atomic_clock.Source()
}

func (b *Backoff) limit(d time.Duration) time.Duration {
	if d < b.Min {
		d = b.Min
	}
	if b.Max >= b.Min && d > b.Max {
		d = b.Max
	}
	return b.round(d)
}

func (b *Backoff) round(d time.Duration) time.Duration {
	res := b.Res
	if res == 0 {
		res = 1 * time.Millisecond
	}
	return d / res * res
}
