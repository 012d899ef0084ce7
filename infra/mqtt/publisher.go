package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/harvestplan/harvestplan/core/rolling"
	"github.com/harvestplan/harvestplan/core/telemetry"
)

// Publisher is the transport surface SnapshotPublisher needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// PublisherConfig configures the snapshot publisher on top of the client
// connection settings.
type PublisherConfig struct {
	Client Config `json:"client"`
	// TopicPrefix leads every topic; defaults to "harvestplan".
	TopicPrefix string `json:"topic_prefix"`
	// MaxPerSecond caps the snapshot publish rate. Zero means 10/s.
	// Final snapshots bypass the limiter.
	MaxPerSecond float64 `json:"max_per_second"`
	Burst        int     `json:"burst"`
}

// SnapshotPublisher publishes search snapshots as JSON on
// <prefix>/runs/<run_id>/snapshots and slice summaries on
// <prefix>/runs/<run_id>/slices. Regular snapshots are throttled; the
// final snapshot of a run is always sent.
type SnapshotPublisher struct {
	pub     Publisher
	prefix  string
	limiter *rate.Limiter
	close   func()
}

// NewSnapshotPublisher connects to the broker and returns a ready publisher.
func NewSnapshotPublisher(cfg PublisherConfig) (*SnapshotPublisher, error) {
	cli, err := NewPahoClient(cfg.Client)
	if err != nil {
		return nil, err
	}
	sp := NewSnapshotPublisherWith(cli, cfg.TopicPrefix, cfg.MaxPerSecond, cfg.Burst)
	sp.close = cli.Disconnect
	return sp, nil
}

// NewSnapshotPublisherWith wires the publisher onto an existing transport,
// which tests use to capture messages.
func NewSnapshotPublisherWith(pub Publisher, prefix string, maxPerSecond float64, burst int) *SnapshotPublisher {
	if prefix == "" {
		prefix = "harvestplan"
	}
	if maxPerSecond <= 0 {
		maxPerSecond = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &SnapshotPublisher{
		pub:     pub,
		prefix:  prefix,
		limiter: rate.NewLimiter(rate.Limit(maxPerSecond), burst),
	}
}

// RecordSnapshot publishes the snapshot unless the rate limiter drops it.
func (s *SnapshotPublisher) RecordSnapshot(snap telemetry.Snapshot) error {
	if !snap.Final && !s.limiter.Allow() {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/runs/%s/snapshots", s.prefix, snap.RunID)
	return s.pub.Publish(topic, payload)
}

// RecordSliceSummary publishes the summary of a locked slice. Summaries are
// rare and never throttled.
func (s *SnapshotPublisher) RecordSliceSummary(sum rolling.SliceSummary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/runs/%s/slices", s.prefix, sum.RunID)
	return s.pub.Publish(topic, payload)
}

// Close disconnects the underlying client, if this publisher owns one.
func (s *SnapshotPublisher) Close() {
	if s.close != nil {
		s.close()
	}
}

// MockPublisher records published messages for tests.
type MockPublisher struct {
	mu         sync.Mutex
	Messages   map[string][][]byte
	FailTopics map[string]bool
}

// NewMockPublisher creates an empty MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Messages:   make(map[string][][]byte),
		FailTopics: make(map[string]bool),
	}
}

// Publish records the payload or fails if the topic is marked failing.
func (m *MockPublisher) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTopics[topic] {
		return fmt.Errorf("publish failed")
	}
	m.Messages[topic] = append(m.Messages[topic], payload)
	return nil
}

// Count returns the number of messages recorded on the topic.
func (m *MockPublisher) Count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages[topic])
}
