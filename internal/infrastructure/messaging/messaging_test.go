package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

var at = time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)

func statusChanged(studentID string) shared.Event {
	return shared.NewAssignmentStatusChangedEvent(studentID, "a1", "todo", "completed", at)
}

func TestInMemoryEventBus_Sync(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	var got []string
	require.NoError(t, bus.Subscribe(shared.EventAssignmentStatusChanged, func(e shared.Event) error {
		got = append(got, "typed:"+e.AggregateID())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		got = append(got, "all:"+string(e.EventType()))
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(statusChanged("s1")))
	require.NoError(t, bus.Publish(shared.NewRewardSetEvent("s1", "Beginner", "ice cream", at)))

	assert.Equal(t, []string{"typed:s1", "all:assignment.status_changed", "all:achievement.reward_set"}, got)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.Published[shared.EventAssignmentStatusChanged])
	assert.Equal(t, int64(3), snap.HandlerExecutions)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})
	var n atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventAssignmentStatusChanged, func(shared.Event) error {
		time.Sleep(time.Millisecond)
		n.Add(1)
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Publish(statusChanged("s1"))
		}()
	}
	wg.Wait()
	require.NoError(t, bus.Close())
	assert.Equal(t, int32(20), n.Load())

	assert.ErrorIs(t, bus.Publish(statusChanged("s1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventRewardSet, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	assert.ErrorIs(t, bus.Subscribe(shared.EventRewardSet, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	d := NewDispatcher(DispatcherConfig{Bus: bus, Retry: RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}})

	var calls int
	require.NoError(t, d.Register("flaky", func(shared.Event) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, shared.EventAssignmentStatusChanged))

	require.NoError(t, bus.Publish(statusChanged("s1")))
	assert.Equal(t, 3, calls)
	assert.Zero(t, d.DeadLetterQueue().Len())
}

func TestDispatcher_DeadLettersExhaustedHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	d := NewDispatcher(DispatcherConfig{Bus: bus, Retry: RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}})
	d.Use(RecoveryMiddleware(bus.log))

	require.NoError(t, d.RegisterHandler(shared.EventRewardSet, Registration{
		Name:    "panics",
		Handler: func(shared.Event) error { panic("boom") },
	}))

	require.NoError(t, bus.Publish(shared.NewRewardSetEvent("s1", "Beginner", "x", at)))

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "panics", entries[0].HandlerName)
	assert.Equal(t, 2, entries[0].Attempts)
	assert.Contains(t, entries[0].Error.Error(), "handler panic: boom")
}

func TestDeadLetterQueue_DropsOldest(t *testing.T) {
	q := NewDeadLetterQueue(2)
	for _, name := range []string{"a", "b", "c"} {
		q.Add(DeadLetterEntry{HandlerName: name})
	}
	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].HandlerName)
	assert.Equal(t, "c", entries[1].HandlerName)
}
