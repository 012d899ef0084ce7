package telemetry

import "testing"

func TestBroadcasterPublishSubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	b.Publish(Snapshot{Iteration: 7})
	s := <-ch
	if s.Iteration != 7 {
		t.Fatalf("iteration = %d, want 7", s.Iteration)
	}
	b.Unsubscribe(ch)
}

func TestBroadcasterDropsWhenFull(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	for i := 0; i < 200; i++ {
		b.Publish(Snapshot{Iteration: i})
	}
	// No deadlock above is the point; the subscriber still sees the
	// oldest buffered snapshots in order.
	s := <-ch
	if s.Iteration != 0 {
		t.Fatalf("first buffered snapshot is %d, want 0", s.Iteration)
	}
}

func TestBroadcasterFinalEvicts(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	for i := 0; i < 200; i++ {
		b.Publish(Snapshot{Iteration: i})
	}
	b.Publish(Snapshot{Iteration: 200, Final: true})
	var got []Snapshot
	b.Close()
	for s := range ch {
		got = append(got, s)
	}
	if len(got) == 0 || !got[len(got)-1].Final {
		t.Fatalf("final snapshot not delivered, got %d snapshots", len(got))
	}
}

func TestBroadcasterLast(t *testing.T) {
	b := NewBroadcaster()
	if _, ok := b.Last(); ok {
		t.Fatalf("fresh broadcaster claims a last snapshot")
	}
	b.Publish(Snapshot{Iteration: 3})
	s, ok := b.Last()
	if !ok || s.Iteration != 3 {
		t.Fatalf("Last = %+v, %v", s, ok)
	}
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	b.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("ch1 not closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("ch2 not closed")
	}
	// Unsubscribe after close must not panic.
	b.Unsubscribe(ch1)
	if ch := b.Subscribe(); ch == nil {
		t.Fatalf("subscribe after close returned nil channel")
	}
}
