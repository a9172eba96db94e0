// Package atomic_clock is lock-free unix nanosecond timestamp.
// Zero value means "never", useful for last attempt/success markers.
package atomic_clock

import (
	"sync/atomic"
	"time"
)

type Clock struct{ v int64 }

func (c *Clock) get() int64 { return atomic.LoadInt64(&c.v) }

func (c *Clock) IsZero() bool    { return c.get() == 0 }
func (c *Clock) UnixNano() int64 { return c.get() }

func (c *Clock) Set(new int64) { atomic.StoreInt64(&c.v, new) }
func (c *Clock) SetNow()       { c.Set(Source()) }
func (c *Clock) Reset()        { c.Set(0) }

// Time returns zero time.Time for zero clock.
func (c *Clock) Time() time.Time {
	v := c.get()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}

// Source is default clock, unix nanoseconds.
func Source() int64 { return time.Now().UnixNano() }
