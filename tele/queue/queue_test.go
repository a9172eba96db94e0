package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/embarcatech/sensorlink/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mk(x int) snapshot.Snapshot {
	return snapshot.New(snapshot.Reading{X: x}, snapshot.DefaultDeadZone, time.Now())
}

// 6 rapid changes into capacity 5 before any pop: 6th is dropped, first 5 kept in order.
func TestOverflowDropsIncoming(t *testing.T) {
	t.Parallel()

	q := New(5)
	for i := 1; i <= 5; i++ {
		require.True(t, q.Push(mk(i), 10*time.Millisecond))
	}
	begin := time.Now()
	assert.False(t, q.Push(mk(6), 10*time.Millisecond))
	assert.True(t, time.Since(begin) >= 10*time.Millisecond, "push must wait for timeout")
	assert.True(t, time.Since(begin) < time.Second, "push must not block beyond timeout")
	st := q.Stat()
	assert.Equal(t, uint64(1), st.Dropped)
	assert.Equal(t, uint64(5), st.Pushed)
	assert.Equal(t, 5, st.Len)

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		s, ok := q.Pop(ctx, 0)
		require.True(t, ok)
		assert.Equal(t, i, s.X)
	}
	_, ok := q.Pop(ctx, 0)
	assert.False(t, ok)
	assert.Equal(t, uint64(5), q.Stat().Popped)
}

func TestPushWaitsForSlot(t *testing.T) {
	t.Parallel()

	q := New(1)
	require.True(t, q.Push(mk(1), 0))
	go func() {
		time.Sleep(5 * time.Millisecond)
		_, _ = q.Pop(context.Background(), time.Second)
	}()
	assert.True(t, q.Push(mk(2), time.Second))
	assert.Equal(t, uint64(0), q.Stat().Dropped)
}

func TestPopTimeout(t *testing.T) {
	t.Parallel()

	q := New(5)
	begin := time.Now()
	_, ok := q.Pop(context.Background(), 20*time.Millisecond)
	assert.False(t, ok)
	assert.True(t, time.Since(begin) >= 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	begin = time.Now()
	_, ok = q.Pop(ctx, time.Minute)
	assert.False(t, ok)
	assert.True(t, time.Since(begin) < time.Second)
}

func TestConcurrentProducersOrder(t *testing.T) {
	t.Parallel()

	const producers = 4
	const N = 100
	q := New(5)
	wg := sync.WaitGroup{}
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			defer wg.Done()
			for i := 0; i < N; i++ {
				s := mk(i)
				s.Y = p
				q.Push(s, 0)
			}
		}()
	}
	produced := make(chan struct{})
	done := make(chan struct{})
	last := make(map[int]int)
	go func() {
		defer close(done)
		ctx := context.Background()
		for {
			s, ok := q.Pop(ctx, 10*time.Millisecond)
			if !ok {
				select {
				case <-produced:
					if q.Len() == 0 {
						return
					}
				default:
				}
				continue
			}
			if prev, seen := last[s.Y]; seen && s.X <= prev {
				t.Errorf("producer=%d reordered %d after %d", s.Y, s.X, prev)
			}
			last[s.Y] = s.X
		}
	}()
	wg.Wait()
	close(produced)
	<-done
	st := q.Stat()
	assert.Equal(t, uint64(producers*N), st.Pushed+st.Dropped)
	assert.Equal(t, st.Pushed, st.Popped)
}
