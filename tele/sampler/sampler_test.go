package sampler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/embarcatech/sensorlink/log2"
	"github.com/embarcatech/sensorlink/snapshot"
	"github.com/embarcatech/sensorlink/tele/queue"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
)

type varSource struct {
	mu  sync.Mutex
	r   snapshot.Reading
	err error
}

func (vs *varSource) Read() (snapshot.Reading, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.r, vs.err
}

func (vs *varSource) Set(f func(*snapshot.Reading)) {
	vs.mu.Lock()
	f(&vs.r)
	vs.mu.Unlock()
}

func newTestSampler(t testing.TB, src Reader, q *queue.Queue, schema snapshot.Schema) *Sampler {
	s, err := New(log2.NewTest(t, log2.LDebug), Options{
		Source:      src,
		Queue:       q,
		Schema:      schema,
		Period:      50 * time.Millisecond,
		PushTimeout: 10 * time.Millisecond,
		EmitInitial: schema == snapshot.SchemaJoystick,
	})
	require.NoError(t, err)
	return s
}

// Buttons both unpressed, press A: snapshot {a:1,b:0} emitted on next tick.
func TestButtonPress(t *testing.T) {
	t.Parallel()

	src := &varSource{r: snapshot.Reading{Temperature: 25}}
	q := queue.New(5)
	s := newTestSampler(t, src, q, snapshot.SchemaButtons)
	t0 := time.Unix(1000, 0)

	assert.False(t, s.Tick(t0), "baseline")
	assert.False(t, s.Tick(t0.Add(50*time.Millisecond)))
	src.Set(func(r *snapshot.Reading) { r.ButtonA = true })
	assert.True(t, s.Tick(t0.Add(100*time.Millisecond)))

	got, ok := q.Pop(context.Background(), 0)
	require.True(t, ok)
	assert.True(t, got.ButtonA)
	assert.False(t, got.ButtonB)
	assert.Equal(t, t0.Add(100*time.Millisecond), got.Time)
	assert.Equal(t, int64(1), s.Stat().Changes.Value())
	assert.Equal(t, int64(3), s.Stat().Ticks.Value())
}

func TestTemperatureNotTrigger(t *testing.T) {
	t.Parallel()

	src := &varSource{r: snapshot.Reading{Temperature: 25}}
	q := queue.New(5)
	s := newTestSampler(t, src, q, snapshot.SchemaButtons)
	t0 := time.Now()
	s.Tick(t0)
	for i := 1; i <= 10; i++ {
		src.Set(func(r *snapshot.Reading) { r.Temperature += 0.5 })
		assert.False(t, s.Tick(t0.Add(time.Duration(i)*50*time.Millisecond)))
	}
	assert.Equal(t, 0, q.Len())
}

func TestJoystickInitialAndDirection(t *testing.T) {
	t.Parallel()

	src := &varSource{r: snapshot.Reading{X: 50, Y: 50}}
	q := queue.New(5)
	s := newTestSampler(t, src, q, snapshot.SchemaJoystick)
	t0 := time.Now()
	assert.True(t, s.Tick(t0), "joystick reports initial position")
	src.Set(func(r *snapshot.Reading) { r.Y = 90 })
	assert.True(t, s.Tick(t0.Add(50*time.Millisecond)))

	first, _ := q.Pop(context.Background(), 0)
	assert.Equal(t, snapshot.DirCenter, first.Direction)
	second, _ := q.Pop(context.Background(), 0)
	assert.Equal(t, snapshot.DirNorth, second.Direction)
}

func TestQueueFull(t *testing.T) {
	t.Parallel()

	src := &varSource{}
	q := queue.New(5)
	s := newTestSampler(t, src, q, snapshot.SchemaButtons)
	t0 := time.Now()
	s.Tick(t0)
	for i := 1; i <= 6; i++ {
		src.Set(func(r *snapshot.Reading) { r.ButtonA = !r.ButtonA })
		pushed := s.Tick(t0.Add(time.Duration(i) * 50 * time.Millisecond))
		assert.Equal(t, i <= 5, pushed, "i=%d", i)
	}
	assert.Equal(t, int64(1), s.Stat().Dropped.Value())
	assert.Equal(t, uint64(1), q.Stat().Dropped)
	assert.Equal(t, int64(6), s.Stat().Changes.Value())
	for i := 1; i <= 5; i++ {
		got, ok := q.Pop(context.Background(), 0)
		require.True(t, ok)
		assert.Equal(t, i%2 == 1, got.ButtonA, "order i=%d", i)
	}
}

func TestReadError(t *testing.T) {
	t.Parallel()

	src := &varSource{err: errors.New("gpio read")}
	q := queue.New(5)
	s := newTestSampler(t, src, q, snapshot.SchemaButtons)
	assert.False(t, s.Tick(time.Now()))
	assert.Equal(t, int64(1), s.Stat().ReadErrors.Value())
	_, ok := s.Last()
	assert.False(t, ok, "failed read must not become baseline")
}

func TestRun(t *testing.T) {
	t.Parallel()

	src := &varSource{}
	q := queue.New(5)
	s := newTestSampler(t, src, q, snapshot.SchemaButtons)
	s.opt.Period = time.Millisecond
	a := alive.NewAlive()
	go s.Run(a)
	require.Eventually(t, func() bool { return s.Stat().Ticks.Value() > 0 }, time.Second, time.Millisecond)
	src.Set(func(r *snapshot.Reading) { r.ButtonB = true })
	got, ok := q.Pop(context.Background(), time.Second)
	require.True(t, ok)
	assert.True(t, got.ButtonB)
	a.Stop()
	a.Wait()
}

// Last is polled by other goroutines while Run writes accepted state.
func TestLastConcurrent(t *testing.T) {
	t.Parallel()

	src := &varSource{}
	q := queue.New(5)
	s := newTestSampler(t, src, q, snapshot.SchemaButtons)
	s.opt.Period = time.Millisecond
	a := alive.NewAlive()
	go s.Run(a)
	defer func() {
		a.Stop()
		a.Wait()
	}()

	require.Eventually(t, func() bool { _, ok := s.Last(); return ok }, time.Second, time.Millisecond)
	src.Set(func(r *snapshot.Reading) { r.ButtonA = true })
	require.Eventually(t, func() bool {
		last, _ := s.Last()
		return last.ButtonA
	}, time.Second, time.Millisecond)
}

func TestNewValidate(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Options{Queue: queue.New(1), Period: time.Second})
	assert.Error(t, err)
	_, err = New(nil, Options{Source: &varSource{}, Queue: queue.New(1)})
	assert.Error(t, err)
	_, err = New(nil, Options{Source: &varSource{}, Queue: queue.New(1), Period: time.Second,
		DeadZone: snapshot.DeadZone{Min: 80, Max: 20}})
	assert.Error(t, err)
}
