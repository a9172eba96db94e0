package cacheval

import (
	"sync/atomic"
	"time"

	"github.com/embarcatech/sensorlink/helpers/atomic_clock"
)

// Int32 is sensor reading cache, e.g. millidegree temperature.
// "updated" timestamp is stored after value, without consistency.
type Int32 struct {
	value   int32
	updated atomic_clock.Clock
	valid   time.Duration
}

// Not thread-safe. `valid` duration cannot be changed later.
func (c *Int32) Init(valid time.Duration) { c.valid = valid }

func (c *Int32) get(now int64) (int32, bool) {
	v := atomic.LoadInt32(&c.value)
	if c.updated.IsZero() {
		return v, false
	}
	age := time.Duration(now - c.updated.UnixNano())
	return v, age >= 0 && age <= c.valid
}

// Returns current (possibly stale) value.
func (c *Int32) Get() int32 { return atomic.LoadInt32(&c.value) }

// Returns current value and true if it's fresh.
func (c *Int32) GetFresh() (int32, bool) { return c.get(atomic_clock.Source()) }

// GetOrUpdate returns fresh value or runs `f()` to refresh.
// `f()` returns new value and error, value is stored only on success.
// No cache stampede guard.
func (c *Int32) GetOrUpdate(f func() (int32, error)) (int32, error) {
	if v, ok := c.get(atomic_clock.Source()); ok {
		return v, nil
	}
	v, err := f()
	if err != nil {
		return c.Get(), err
	}
	c.Set(v)
	return v, nil
}

func (c *Int32) Set(new int32) {
	atomic.StoreInt32(&c.value, new)
	c.updated.SetNow()
}
