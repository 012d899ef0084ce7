package telemetry

import "sync"

// Broadcaster fans snapshots out to subscribers. Regular snapshots are
// delivered best-effort: a subscriber that stops draining loses the oldest
// ones, never blocks the search. Final snapshots evict the oldest buffered
// entry instead, so every subscriber sees the end of a run.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   []chan Snapshot
	last   Snapshot
	seen   bool
	closed bool
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster { return &Broadcaster{} }

// Publish delivers s to every subscriber without blocking.
func (b *Broadcaster) Publish(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last, b.seen = s, true
	for _, ch := range b.subs {
		if !s.Final {
			select {
			case ch <- s:
			default:
			}
			continue
		}
		// Make room for the flush snapshot if the buffer is full.
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// Subscribe registers a subscriber and returns its channel. Subscribing to
// a closed broadcaster yields a closed channel.
func (b *Broadcaster) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 64)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(sub <-chan Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Last returns the most recently published snapshot, if any.
func (b *Broadcaster) Last() (Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.seen
}

// Close closes every subscriber channel. Further publishes are dropped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}

// Forward drains the broadcaster into a sink until the subscription closes.
// Run it in its own goroutine; it returns the first sink error or nil.
func Forward(sub <-chan Snapshot, sink Sink) error {
	for s := range sub {
		if err := sink.RecordSnapshot(s); err != nil {
			return err
		}
	}
	return nil
}
