// Package cacheval keeps values with validity timeout.
// Usage scenario examples: DNS resolve, sensor reading.
// All methods except `Init` are thread-safe.
package cacheval

import (
	"sync"
	"time"

	"github.com/embarcatech/sensorlink/helpers/atomic_clock"
)

// Addr caches resolved network address.
// valid=0 means value never expires until Invalidate.
type Addr struct {
	mu      sync.RWMutex
	value   string
	updated atomic_clock.Clock
	valid   time.Duration
	now     func() int64
}

// Not thread-safe. `valid` duration cannot be changed later.
func (c *Addr) Init(valid time.Duration, now func() int64) {
	c.valid = valid
	c.now = now
	if c.now == nil {
		c.now = atomic_clock.Source
	}
}

// Returns current value and true if it's set and fresh.
func (c *Addr) GetFresh() (string, bool) {
	c.mu.RLock()
	v := c.value
	c.mu.RUnlock()
	if v == "" || c.updated.IsZero() {
		return v, false
	}
	if c.valid == 0 {
		return v, true
	}
	age := time.Duration(c.clock() - c.updated.UnixNano())
	return v, age >= 0 && age <= c.valid
}

func (c *Addr) Set(new string) {
	c.mu.Lock()
	c.value = new
	c.mu.Unlock()
	c.updated.Set(c.clock())
}

// Invalidate forces next GetFresh miss, used after connect failure to cached address.
func (c *Addr) Invalidate() { c.updated.Reset() }

func (c *Addr) clock() int64 {
	if c.now == nil {
		return atomic_clock.Source()
	}
	return c.now()
}
