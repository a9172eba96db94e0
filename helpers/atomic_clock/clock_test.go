package atomic_clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	t.Parallel()

	var c Clock
	assert.True(t, c.IsZero())
	assert.True(t, c.Time().IsZero(), "zero clock must be zero time, not 1970")

	c.Set(1500 * int64(time.Millisecond))
	assert.False(t, c.IsZero())
	assert.Equal(t, int64(1500*time.Millisecond), c.UnixNano())
	assert.Equal(t, time.Unix(1, 500*int64(time.Millisecond)), c.Time())

	before := Source()
	c.SetNow()
	assert.True(t, c.UnixNano() >= before)
	assert.True(t, time.Since(c.Time()) < time.Second)

	c.Reset()
	assert.True(t, c.IsZero())
}
