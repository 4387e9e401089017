package server

import (
	"testing"
	"time"
)

func TestEventBroadcaster_SubscribeBroadcast(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job-1")
	defer eb.Unsubscribe("job-1", ch)

	event := ProgressEvent{
		JobID:      "job-1",
		State:      StateRunning,
		Iterations: 10,
		Objective:  0.5,
		Timestamp:  time.Now(),
	}
	eb.Broadcast(event)

	select {
	case got := <-ch:
		if got.Iterations != 10 {
			t.Errorf("Iterations = %d, want 10", got.Iterations)
		}
		if got.State != StateRunning {
			t.Errorf("State = %s, want running", got.State)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestEventBroadcaster_LateSubscriberGetsLastEvent(t *testing.T) {
	eb := NewEventBroadcaster()

	eb.Broadcast(ProgressEvent{JobID: "job-1", Iterations: 42})

	// A client subscribing after the fact receives the cached event.
	ch := eb.Subscribe("job-1")
	defer eb.Unsubscribe("job-1", ch)

	select {
	case got := <-ch:
		if got.Iterations != 42 {
			t.Errorf("Iterations = %d, want 42", got.Iterations)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for cached event")
	}
}

func TestEventBroadcaster_IsolatesJobs(t *testing.T) {
	eb := NewEventBroadcaster()

	chA := eb.Subscribe("job-a")
	defer eb.Unsubscribe("job-a", chA)
	chB := eb.Subscribe("job-b")
	defer eb.Unsubscribe("job-b", chB)

	eb.Broadcast(ProgressEvent{JobID: "job-a", Iterations: 1})

	select {
	case <-chA:
	case <-time.After(time.Second):
		t.Fatal("job-a subscriber should receive event")
	}

	select {
	case got := <-chB:
		t.Errorf("job-b subscriber received foreign event: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBroadcaster_CleanupJob(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job-1")
	eb.Broadcast(ProgressEvent{JobID: "job-1", Iterations: 1})
	eb.CleanupJob("job-1")

	// Drain the buffered event, then expect a closed channel.
	for {
		if _, ok := <-ch; !ok {
			return
		}
	}
}

func TestEventBroadcaster_FullChannelDoesNotBlock(t *testing.T) {
	eb := NewEventBroadcaster()

	ch := eb.Subscribe("job-1")
	defer eb.Unsubscribe("job-1", ch)

	// Overflow the buffer; Broadcast must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			eb.Broadcast(ProgressEvent{JobID: "job-1", Iterations: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full channel")
	}
}
