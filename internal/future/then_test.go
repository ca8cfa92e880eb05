package future

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectExecutor records scheduled functions for manual draining, letting
// tests observe the state between completion dispatch and continuation run.
type collectExecutor struct {
	mu  sync.Mutex
	fns []func()
}

func (e *collectExecutor) Execute(fn func()) {
	e.mu.Lock()
	e.fns = append(e.fns, fn)
	e.mu.Unlock()
}

func (e *collectExecutor) drain() {
	for {
		e.mu.Lock()
		if len(e.fns) == 0 {
			e.mu.Unlock()
			return
		}
		fn := e.fns[0]
		e.fns = e.fns[1:]
		e.mu.Unlock()
		fn()
	}
}

func TestThen(t *testing.T) {
	t.Run("value transformation", func(t *testing.T) {
		f := NewImmediate(21)
		g := Then(f, Inline, func(v int) (string, error) {
			return strconv.Itoa(v * 2), nil
		})
		assert.False(t, f.IsValid(), "Then consumes the antecedent future")
		v, err := g.Result()
		require.NoError(t, err)
		assert.Equal(t, "42", v)
	})

	t.Run("runs exactly once", func(t *testing.T) {
		p := NewPromise[int]()
		f := p.Future()
		calls := 0
		g := Then(f, Inline, func(v int) (int, error) {
			calls++
			return v, nil
		})
		p.SetStarted()
		p.SetResult(1)
		p.Finish()
		p.Close()
		_, err := g.Result()
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("error propagates without running fn", func(t *testing.T) {
		wantErr := errors.New("upstream failed")
		ran := false
		g := Then(NewFailed[int](wantErr), Inline, func(int) (int, error) {
			ran = true
			return 0, nil
		})
		_, err := g.Result()
		assert.Equal(t, wantErr, err)
		assert.False(t, ran)
	})

	t.Run("continuation error is stored", func(t *testing.T) {
		wantErr := errors.New("step failed")
		g := Then(NewImmediate(1), Inline, func(int) (int, error) {
			return 0, wantErr
		})
		_, err := g.Result()
		assert.Equal(t, wantErr, err)
	})

	t.Run("panic becomes an error", func(t *testing.T) {
		g := Then(NewImmediate(1), Inline, func(int) (int, error) {
			panic("kaboom")
		})
		_, err := g.Result()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kaboom")
	})

	t.Run("antecedent cancellation cancels the continuation", func(t *testing.T) {
		ran := false
		g := Then(NewCanceled[int](), Inline, func(int) (int, error) {
			ran = true
			return 0, nil
		})
		assert.True(t, g.IsCanceled())
		assert.False(t, ran)
		_, err := g.Result()
		assert.ErrorIs(t, err, ErrCanceled)
	})

	t.Run("releasing the continuation cancels upstream", func(t *testing.T) {
		p := NewPromise[int]()
		f := p.Future()
		g := Then(f, Inline, func(v int) (int, error) { return v, nil })

		g.Release()
		assert.True(t, p.IsCanceled(),
			"withdrawing interest in the continuation must cascade to the antecedent")
		p.Close()
	})

	t.Run("late release after completion does not cancel", func(t *testing.T) {
		g := Then(NewImmediate(5), Inline, func(v int) (int, error) { return v, nil })
		require.True(t, g.IsFinished())
		g.Release()
		assert.False(t, g.IsCanceled())
	})

	t.Run("executor decides the running context", func(t *testing.T) {
		ex := &collectExecutor{}
		g := Then(NewImmediate(3), ex, func(v int) (int, error) { return v + 1, nil })
		assert.False(t, g.IsFinished(), "nothing runs before the executor drains")
		ex.drain()
		v, err := g.Result()
		require.NoError(t, err)
		assert.Equal(t, 4, v)
	})

	t.Run("continuation canceled before the executor runs is skipped", func(t *testing.T) {
		ex := &collectExecutor{}
		ran := false
		g := Then(NewImmediate(3), ex, func(int) (int, error) {
			ran = true
			return 0, nil
		})
		g.Cancel()
		ex.drain()
		assert.False(t, ran)
		_, err := g.Result()
		assert.ErrorIs(t, err, ErrCanceled)
	})
}

func TestThenDo(t *testing.T) {
	t.Run("side effect continuation", func(t *testing.T) {
		got := 0
		g := ThenDo(NewImmediate(9), Inline, func(v int) error {
			got = v
			return nil
		})
		_, err := g.Result()
		require.NoError(t, err)
		assert.Equal(t, 9, got)
	})

	t.Run("error from the body", func(t *testing.T) {
		wantErr := errors.New("side effect failed")
		g := ThenDo(NewImmediate(1), Inline, func(int) error { return wantErr })
		_, err := g.Result()
		assert.Equal(t, wantErr, err)
	})
}

func TestThenFuture(t *testing.T) {
	t.Run("unwraps the inner future", func(t *testing.T) {
		g := ThenFuture(NewImmediate(6), Inline, func(v int) (*Future[int], error) {
			return NewImmediate(v * 7), nil
		})
		v, err := g.Result()
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("tracks a pending inner future", func(t *testing.T) {
		p := NewPromise[int]()
		inner := p.Future()
		g := ThenFuture(NewImmediateEmpty(), Inline, func(struct{}) (*Future[int], error) {
			return inner, nil
		})
		assert.False(t, g.IsFinished())

		p.SetStarted()
		p.SetResult(10)
		p.Finish()
		p.Close()

		v, err := g.Result()
		require.NoError(t, err)
		assert.Equal(t, 10, v)
	})

	t.Run("inner cancellation propagates", func(t *testing.T) {
		g := ThenFuture(NewImmediateEmpty(), Inline, func(struct{}) (*Future[int], error) {
			return NewCanceled[int](), nil
		})
		_, err := g.Result()
		assert.ErrorIs(t, err, ErrCanceled)
	})

	t.Run("inner error propagates", func(t *testing.T) {
		wantErr := errors.New("inner failed")
		g := ThenFuture(NewImmediateEmpty(), Inline, func(struct{}) (*Future[int], error) {
			return NewFailed[int](wantErr), nil
		})
		_, err := g.Result()
		assert.Equal(t, wantErr, err)
	})

	t.Run("nil inner future is an error", func(t *testing.T) {
		g := ThenFuture(NewImmediateEmpty(), Inline, func(struct{}) (*Future[int], error) {
			return nil, nil
		})
		_, err := g.Result()
		assert.Error(t, err)
	})
}

func TestThenShared(t *testing.T) {
	t.Run("does not consume the shared antecedent", func(t *testing.T) {
		s := NewImmediate(5).Shared()
		g := ThenShared(s, Inline, func(v int) (int, error) { return v * 2, nil })

		v, err := g.Result()
		require.NoError(t, err)
		assert.Equal(t, 10, v)

		// The sibling read still sees the original value.
		sv, err := s.Result()
		require.NoError(t, err)
		assert.Equal(t, 5, sv)
		s.Release()
	})

	t.Run("two continuations on one shared future", func(t *testing.T) {
		s := NewImmediate(3).Shared()
		g1 := ThenShared(s, Inline, func(v int) (int, error) { return v + 1, nil })
		g2 := ThenShared(s, Inline, func(v int) (int, error) { return v + 2, nil })

		v1, err := g1.Result()
		require.NoError(t, err)
		v2, err := g2.Result()
		require.NoError(t, err)
		assert.Equal(t, 4, v1)
		assert.Equal(t, 5, v2)
		s.Release()
	})
}

// TestChainEndToEnd walks a full producer/continuation chain across
// goroutines the way application code composes pipelines.
func TestChainEndToEnd(t *testing.T) {
	t.Run("value flows through the chain", func(t *testing.T) {
		p := NewPromise[int]()
		f := p.Future()

		doubled := Then(f, Inline, func(v int) (int, error) { return v * 2, nil })
		text := Then(doubled, Inline, func(v int) (string, error) {
			return strconv.Itoa(v), nil
		})

		go func() {
			p.SetStarted()
			time.Sleep(10 * time.Millisecond)
			p.SetResult(21)
			p.Finish()
			p.Close()
		}()

		<-text.Done()
		v, err := text.Result()
		require.NoError(t, err)
		assert.Equal(t, "42", v)
	})

	t.Run("cancellation tears the chain down", func(t *testing.T) {
		p := NewPromise[int]()
		f := p.Future()
		g := Then(f, Inline, func(v int) (int, error) { return v, nil })

		g.Cancel()
		assert.True(t, p.IsCanceled())
		_, err := g.Result()
		assert.ErrorIs(t, err, ErrCanceled)
		p.Close()
	})
}
