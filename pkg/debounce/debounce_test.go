package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTriggerRunsLatestOnce(t *testing.T) {
	d := New(20 * time.Millisecond)
	var calls, last int32
	done := make(chan struct{}, 1)

	for i := int32(1); i <= 5; i++ {
		v := i
		d.Trigger(func() {
			atomic.AddInt32(&calls, 1)
			atomic.StoreInt32(&last, v)
			done <- struct{}{}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Debounced function never ran")
	}
	time.Sleep(60 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}
	if got := atomic.LoadInt32(&last); got != 5 {
		t.Errorf("Expected latest trigger (5) to run, got %d", got)
	}
}

func TestFlushRunsSynchronously(t *testing.T) {
	d := New(time.Hour)
	ran := false
	d.Trigger(func() { ran = true })

	if !d.Pending() {
		t.Fatal("Expected pending task")
	}
	if !d.Flush() {
		t.Fatal("Expected Flush to report a pending task")
	}
	if !ran {
		t.Error("Flush did not run the task")
	}
	if d.Pending() || d.Flush() {
		t.Error("Task should run only once")
	}
}

func TestCancel(t *testing.T) {
	d := New(10 * time.Millisecond)
	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })

	if !d.Cancel() {
		t.Fatal("Expected Cancel to report a pending task")
	}
	time.Sleep(40 * time.Millisecond)

	if atomic.LoadInt32(&calls) != 0 {
		t.Error("Cancelled task ran")
	}
	if d.Cancel() {
		t.Error("Second Cancel should report nothing pending")
	}
}

func TestFlushFromWithinTask(t *testing.T) {
	d := New(time.Hour)
	inner := false
	d.Trigger(func() {
		d.Trigger(func() { inner = true })
	})

	d.Flush()
	if !d.Pending() {
		t.Fatal("Re-triggered task should be pending")
	}
	d.Flush()
	if !inner {
		t.Error("Re-triggered task did not run")
	}
}

func TestDispatcherReceivesTimerTasks(t *testing.T) {
	queue := make(chan func(), 1)
	d := NewWithDispatcher(5*time.Millisecond, func(fn func()) { queue <- fn })
	ran := false
	d.Trigger(func() { ran = true })

	var fn func()
	select {
	case fn = <-queue:
	case <-time.After(2 * time.Second):
		t.Fatal("Task was never dispatched")
	}
	if ran {
		t.Fatal("Task ran before the dispatcher invoked it")
	}
	fn()
	if !ran {
		t.Error("Dispatched task did not run")
	}
}

func TestCancelAfterDispatchSkipsTask(t *testing.T) {
	queue := make(chan func(), 1)
	d := NewWithDispatcher(5*time.Millisecond, func(fn func()) { queue <- fn })
	ran := false
	d.Trigger(func() { ran = true })

	fn := <-queue
	d.Cancel()
	fn()
	if ran {
		t.Error("Cancelled task ran after dispatch")
	}
}
