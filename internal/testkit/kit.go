package testkit

import (
	"context"
	"sort"
	"sync"
	"time"

	"edgeproof/domain/core"
	"edgeproof/domain/result"
	"edgeproof/ports"
)

// InMemoryResultRepository implements ports.ResultRepository for tests
type InMemoryResultRepository struct {
	records map[core.RunID]result.Record
	order   []core.RunID
	mu      sync.RWMutex
}

var _ ports.ResultRepository = (*InMemoryResultRepository)(nil)

func NewInMemoryResultRepository() *InMemoryResultRepository {
	return &InMemoryResultRepository{records: make(map[core.RunID]result.Record)}
}

func (s *InMemoryResultRepository) Save(ctx context.Context, record result.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.RunID]; !exists {
		s.order = append(s.order, record.RunID)
	}
	s.records[record.RunID] = record
	return nil
}

func (s *InMemoryResultRepository) Get(ctx context.Context, runID core.RunID) (*result.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[runID]
	if !exists {
		return nil, core.ErrResultNotFound
	}
	return &record, nil
}

// List returns the newest records first
// Len returns the number of stored records
func (s *InMemoryResultRepository) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *InMemoryResultRepository) List(ctx context.Context, limit int) ([]ports.RecordSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ports.RecordSummary, 0, len(s.order))
	for _, id := range s.order {
		r := s.records[id]
		out = append(out, ports.RecordSummary{
			RunID:         r.RunID,
			SchemaVersion: r.SchemaVersion,
			Primary:       r.Primary,
			CreatedAt:     r.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountingCache is a map-backed ports.ResultCache that records traffic
type CountingCache struct {
	mu      sync.Mutex
	entries map[core.Hash][]byte
	Gets    int
	Hits    int
	Sets    int
	Err     error // returned from every call when set
}

var _ ports.ResultCache = (*CountingCache)(nil)

func NewCountingCache() *CountingCache {
	return &CountingCache{entries: make(map[core.Hash][]byte)}
}

func (c *CountingCache) Get(ctx context.Context, key core.Hash) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Gets++
	if c.Err != nil {
		return nil, false, c.Err
	}
	v, ok := c.entries[key]
	if ok {
		c.Hits++
	}
	return v, ok, nil
}

func (c *CountingCache) Set(ctx context.Context, key core.Hash, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return c.Err
	}
	c.Sets++
	c.entries[key] = append([]byte(nil), value...)
	return nil
}

// FixedClock returns a clock frozen at t
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// RecordingSink collects progress events in publish order
type RecordingSink struct {
	mu     sync.Mutex
	events []ports.ProgressEvent
}

var _ ports.ProgressSink = (*RecordingSink)(nil)

func (s *RecordingSink) Publish(event ports.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Stages returns the stage names seen so far
func (s *RecordingSink) Stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Stage
	}
	return out
}
