package pending

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock { return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestCreatePeekConsume(t *testing.T) {
	clk := newClock()
	r := NewRegistry(5*time.Minute, WithClock(clk.Now))
	uid := primitive.NewObjectID()

	n, err := r.Create(uid, "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, n)

	e, ok := r.Peek(n)
	require.True(t, ok)
	assert.Equal(t, uid, e.UserID)
	assert.Equal(t, "a@x.com", e.Email)
	assert.Equal(t, clk.Now().Add(5*time.Minute), e.ExpiresAt)

	// peek does not consume
	_, ok = r.Peek(n)
	require.True(t, ok)

	e, ok = r.Consume(n)
	require.True(t, ok)
	assert.Equal(t, uid, e.UserID)

	_, ok = r.Consume(n)
	assert.False(t, ok, "nonce must be single use")
	_, ok = r.Peek(n)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestExpiryIsLazyAndRemoves(t *testing.T) {
	clk := newClock()
	r := NewRegistry(5*time.Minute, WithClock(clk.Now))

	n, err := r.Create(primitive.NewObjectID(), "a@x.com")
	require.NoError(t, err)

	// exactly at expiresAt the entry is still valid
	clk.Advance(5 * time.Minute)
	_, ok := r.Peek(n)
	require.True(t, ok)

	clk.Advance(time.Millisecond)
	_, ok = r.Consume(n)
	assert.False(t, ok, "expired nonce must be absent without a sweep")
	assert.Equal(t, 0, r.Len(), "observing expiry removes the entry")
}

func TestPeekRemovesExpired(t *testing.T) {
	clk := newClock()
	r := NewRegistry(time.Minute, WithClock(clk.Now))
	n, _ := r.Create(primitive.NewObjectID(), "a@x.com")

	clk.Advance(2 * time.Minute)
	_, ok := r.Peek(n)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestSweep(t *testing.T) {
	clk := newClock()
	r := NewRegistry(5*time.Minute, WithClock(clk.Now))

	for i := 0; i < 3; i++ {
		_, err := r.Create(primitive.NewObjectID(), fmt.Sprintf("old%d@x.com", i))
		require.NoError(t, err)
	}
	clk.Advance(4 * time.Minute)
	fresh, err := r.Create(primitive.NewObjectID(), "fresh@x.com")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 3, r.Sweep())
	assert.Equal(t, 1, r.Len())

	_, ok := r.Peek(fresh)
	assert.True(t, ok)
}

func TestCreateRetriesOnCollision(t *testing.T) {
	vals := []string{"dup", "dup", "other"}
	var i int
	r := NewRegistry(time.Minute, WithNonceFunc(func() (string, error) {
		v := vals[i]
		i++
		return v, nil
	}))
	a, err := r.Create(primitive.NewObjectID(), "a@x.com")
	require.NoError(t, err)
	b, err := r.Create(primitive.NewObjectID(), "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "dup", a)
	assert.Equal(t, "other", b)
}

func TestConsume_ConcurrentSingleWinner(t *testing.T) {
	r := NewRegistry(time.Minute)
	n, err := r.Create(primitive.NewObjectID(), "a@x.com")
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Consume(n); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestRun_SweepsUntilCancelled(t *testing.T) {
	clk := newClock()
	r := NewRegistry(time.Minute, WithClock(clk.Now))
	_, _ = r.Create(primitive.NewObjectID(), "a@x.com")
	clk.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 16)
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 5*time.Millisecond, func(n int) { swept <- n })
		close(done)
	}()

	select {
	case n := <-swept:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
