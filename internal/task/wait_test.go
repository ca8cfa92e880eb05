package task

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitFor(t *testing.T) {
	t.Run("returns once the awaited task finishes", func(t *testing.T) {
		waiting := New(false)
		waiting.SetStarted()
		awaited := New(false)
		awaited.SetStarted()

		var wg sync.WaitGroup
		var ok bool
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok = WaitFor(waiting, awaited)
		}()

		time.Sleep(20 * time.Millisecond)
		awaited.SetFinished()
		wg.Wait()

		assert.True(t, ok)
		assert.False(t, waiting.IsCanceled())
		waiting.SetFinished()
	})

	t.Run("already finished awaited task returns immediately", func(t *testing.T) {
		waiting := New(false)
		waiting.SetStarted()
		awaited := NewImmediateEmpty()
		assert.True(t, WaitFor(waiting, awaited))
		waiting.SetFinished()
	})

	t.Run("awaited cancellation propagates to the waiter", func(t *testing.T) {
		waiting := New(false)
		waiting.SetStarted()
		awaited := New(false)

		var wg sync.WaitGroup
		var ok bool
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok = WaitFor(waiting, awaited)
		}()

		time.Sleep(20 * time.Millisecond)
		awaited.Cancel()
		wg.Wait()

		assert.False(t, ok)
		assert.True(t, waiting.IsCanceled(), "cancellation must propagate to the waiting task")
	})

	t.Run("canceling the waiter ends the wait", func(t *testing.T) {
		waiting := New(false)
		waiting.SetStarted()
		awaited := New(false)

		var wg sync.WaitGroup
		var ok bool
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok = WaitFor(waiting, awaited)
		}()

		time.Sleep(20 * time.Millisecond)
		waiting.Cancel()
		wg.Wait()

		assert.False(t, ok)
		assert.False(t, awaited.IsFinished(), "the awaited task keeps running")
		awaited.Cancel()
	})

	t.Run("already canceled waiter returns false without blocking", func(t *testing.T) {
		waiting := NewCanceled()
		awaited := New(false)
		assert.False(t, WaitFor(waiting, awaited))
		awaited.Cancel()
	})

	t.Run("nil tasks panic", func(t *testing.T) {
		tk := New(false)
		assert.Panics(t, func() { WaitFor(nil, tk) })
		assert.Panics(t, func() { WaitFor(tk, nil) })
		tk.Cancel()
	})
}
