package metrics

import (
	"context"

	"github.com/harvestplan/harvestplan/core/telemetry"
)

// StartSnapshotCollector subscribes to the broadcaster and forwards every
// snapshot to the sink. It stops when the context is canceled or the
// broadcaster closes.
func StartSnapshotCollector(ctx context.Context, b *telemetry.Broadcaster, sink telemetry.Sink) {
	if b == nil || sink == nil {
		return
	}
	sub := b.Subscribe()
	go func() {
		defer b.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub:
				if !ok {
					return
				}
				_ = sink.RecordSnapshot(snap)
			}
		}
	}()
}
