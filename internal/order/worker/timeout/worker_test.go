package timeout

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeCanceler struct {
	mu    sync.Mutex
	calls []int64
	fired chan int64
}

func newFakeCanceler() *fakeCanceler {
	return &fakeCanceler{fired: make(chan int64, 16)}
}

func (f *fakeCanceler) CancelIfUnpaid(_ context.Context, orderNo int64) error {
	f.mu.Lock()
	f.calls = append(f.calls, orderNo)
	f.mu.Unlock()

	f.fired <- orderNo

	return nil
}

func (f *fakeCanceler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

func TestSchedulerFiresCancellationAfterDelay(t *testing.T) {
	t.Parallel()

	c := newFakeCanceler()
	s := NewSchedulerWithDelay(c, 5*time.Millisecond, 2)
	s.Start(context.Background())
	defer s.Stop()

	s.Schedule(1001)

	select {
	case orderNo := <-c.fired:
		if orderNo != 1001 {
			t.Fatalf("cancellation fired for order %d, want 1001", orderNo)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not fire")
	}
}

func TestSchedulerDrainsMultipleTimeouts(t *testing.T) {
	t.Parallel()

	c := newFakeCanceler()
	s := NewSchedulerWithDelay(c, time.Millisecond, 3)
	s.Start(context.Background())
	defer s.Stop()

	want := map[int64]bool{1: false, 2: false, 3: false, 4: false, 5: false}
	for orderNo := range want {
		s.Schedule(orderNo)
	}

	deadline := time.After(2 * time.Second)
	for i := 0; i < len(want); i++ {
		select {
		case orderNo := <-c.fired:
			if seen, ok := want[orderNo]; !ok || seen {
				t.Fatalf("unexpected or duplicate cancellation for order %d", orderNo)
			}
			want[orderNo] = true
		case <-deadline:
			t.Fatalf("only %d of %d cancellations fired", i, len(want))
		}
	}
}

func TestSchedulerStopDropsPendingTimers(t *testing.T) {
	t.Parallel()

	c := newFakeCanceler()
	s := NewSchedulerWithDelay(c, 10*time.Millisecond, 2)
	s.Start(context.Background())

	s.Schedule(1001)
	s.Stop()

	time.Sleep(50 * time.Millisecond)

	if got := c.callCount(); got != 0 {
		t.Fatalf("canceler called %d times after Stop, want 0", got)
	}
}
