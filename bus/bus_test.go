package bus

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pacekeeper/pacekeeper/core"
)

func TestBus_SubscribeIdempotent(t *testing.T) {
	b := New()
	calls := 0
	handler := func(core.BusEvent) error {
		calls++
		return nil
	}

	b.Subscribe(core.CheckinDue, handler)
	b.Subscribe(core.CheckinDue, handler)

	b.Publish(core.CheckinDue, map[string]any{"n": 1})
	if calls != 1 {
		t.Fatalf("expected handler registered once, got %d calls", calls)
	}
}

func TestBus_RegistrationOrderAndFaultIsolation(t *testing.T) {
	b := New()
	var order []string

	failing := func(core.BusEvent) error {
		order = append(order, "failing")
		return errors.New("subscriber blew up")
	}
	panicking := func(core.BusEvent) error {
		order = append(order, "panicking")
		panic("subscriber panicked")
	}
	healthy := func(core.BusEvent) error {
		order = append(order, "healthy")
		return nil
	}

	b.Subscribe(core.TaskCompleted, failing)
	b.Subscribe(core.TaskCompleted, panicking)
	b.Subscribe(core.TaskCompleted, healthy)

	b.Publish(core.TaskCompleted, nil)

	assert.Equal(t, []string{"failing", "panicking", "healthy"}, order,
		"a failing handler must not prevent later handlers from running")
}

// countingHandler builds a fresh closure per call. Marked noinline so every
// instance shares one code pointer, which is exactly the case that must not
// collapse registrations.
//
//go:noinline
func countingHandler(counts []int, slot int) core.Handler {
	return func(core.BusEvent) error {
		counts[slot]++
		return nil
	}
}

func TestBus_DistinctClosuresBothDelivered(t *testing.T) {
	b := New()
	counts := make([]int, 2)

	b.Subscribe(core.TaskStarted, countingHandler(counts, 0))
	b.Subscribe(core.TaskStarted, countingHandler(counts, 1))

	b.Publish(core.TaskStarted, nil)

	assert.Equal(t, []int{1, 1}, counts,
		"two closures from one factory are distinct handlers and both must run")
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()
	calls := 0
	handler := func(core.BusEvent) error {
		calls++
		return nil
	}

	// Removing an unknown handler is a no-op, not an error.
	b.Unsubscribe(core.EnergyUpdated, handler)

	b.Subscribe(core.EnergyUpdated, handler)
	b.Publish(core.EnergyUpdated, nil)
	b.Unsubscribe(core.EnergyUpdated, handler)
	b.Publish(core.EnergyUpdated, nil)

	if calls != 1 {
		t.Fatalf("expected 1 call after unsubscribe, got %d", calls)
	}
}

func TestBus_UnsubscribeAll(t *testing.T) {
	b := New()
	calls := 0
	b.Subscribe(core.PatternDetected, func(core.BusEvent) error { calls++; return nil })
	b.UnsubscribeAll(core.PatternDetected)
	b.Publish(core.PatternDetected, nil)
	if calls != 0 {
		t.Fatalf("expected no calls after UnsubscribeAll, got %d", calls)
	}
}

func TestBus_RecentEventsBounded(t *testing.T) {
	b := New(func(o *Options) { o.RingSize = 5 })

	for i := 0; i < 12; i++ {
		b.Publish(core.CheckinDue, map[string]any{"n": i})
	}

	recent := b.RecentEvents(100)
	assert.Len(t, recent, 5, "ring must never exceed its configured bound")
	// Oldest entries were evicted first.
	assert.Equal(t, 7, recent[0].Payload["n"])
	assert.Equal(t, 11, recent[4].Payload["n"])

	last2 := b.RecentEvents(2)
	assert.Len(t, last2, 2)
	assert.Equal(t, 10, last2[0].Payload["n"])
}

func TestBus_HandlerMayUnsubscribeDuringDispatch(t *testing.T) {
	b := New()
	var self core.Handler
	calls := 0
	self = func(core.BusEvent) error {
		calls++
		b.Unsubscribe(core.FocusBlockEnded, self)
		return nil
	}
	b.Subscribe(core.FocusBlockEnded, self)

	b.Publish(core.FocusBlockEnded, nil)
	b.Publish(core.FocusBlockEnded, nil)

	if calls != 1 {
		t.Fatalf("expected handler to run once then remove itself, got %d", calls)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := New(func(o *Options) { o.RingSize = 1000 })
	var mu sync.Mutex
	seen := 0
	b.Subscribe(core.TaskStarted, func(core.BusEvent) error {
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(core.TaskStarted, nil)
			}
		}()
	}
	wg.Wait()

	if seen != 500 {
		t.Fatalf("expected 500 deliveries, got %d", seen)
	}
	if got := len(b.RecentEvents(1000)); got != 500 {
		t.Fatalf("expected 500 retained events, got %d", got)
	}
}
