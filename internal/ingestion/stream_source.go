package ingestion

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/feed"
	"storm-align-lab/internal/idhash"
)

// DefaultBufferHorizon is how far back the stream buffer retains detections.
const DefaultBufferHorizon = 2 * time.Hour

// GroupFeed is the live detection stream consumed by a StreamSource.
type GroupFeed interface {
	SubscribeGroups(ctx context.Context, filter feed.Filter) (<-chan feed.GroupEvent, error)
}

// StreamSource adapts a live detection feed to the batch-oriented
// observation interface by buffering events into minute buckets. Bin
// windows land on whole minutes, so minute buckets listed by start time
// cover a window exactly. Buckets older than the horizon are evicted;
// the source only serves recent windows.
type StreamSource struct {
	horizon time.Duration
	logger  *log.Logger

	mu      sync.RWMutex
	buckets map[int64][]domain.Observation // keyed by minute start, unix seconds
	counts  map[int64]int                  // rows ever assigned per bucket, for stable ids

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// StreamSourceOptions configures a stream source.
type StreamSourceOptions struct {
	// Feed is the live detection stream. Required.
	Feed GroupFeed

	// Filter selects the detection stream to join.
	Filter feed.Filter

	// Horizon bounds buffer retention. Defaults to DefaultBufferHorizon.
	Horizon time.Duration

	// Logger for lifecycle output. Defaults to log.Default().
	Logger *log.Logger
}

// NewStreamSource subscribes to the feed and starts buffering detections.
func NewStreamSource(ctx context.Context, opts StreamSourceOptions) (*StreamSource, error) {
	if opts.Feed == nil {
		return nil, fmt.Errorf("%w: feed is required", domain.ErrInvalidInput)
	}
	if opts.Horizon <= 0 {
		opts.Horizon = DefaultBufferHorizon
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	events, err := opts.Feed.SubscribeGroups(ctx, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("subscribe groups: %w", err)
	}

	s := &StreamSource{
		horizon: opts.Horizon,
		logger:  opts.Logger,
		buckets: make(map[int64][]domain.Observation),
		counts:  make(map[int64]int),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.collect(events)

	return s, nil
}

// collect drains the feed channel into the buffer until Close or the feed
// channel closes.
func (s *StreamSource) collect(events <-chan feed.GroupEvent) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case event, ok := <-events:
			if !ok {
				s.logger.Printf("Detection feed closed; stream buffer is frozen")
				return
			}
			s.append(event)
		}
	}
}

func (s *StreamSource) append(event feed.GroupEvent) {
	ts := event.Timestamp.UTC()
	minute := ts.Truncate(time.Minute)
	key := minute.Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.counts[key]
	s.counts[key] = idx + 1

	s.buckets[key] = append(s.buckets[key], domain.Observation{
		ID:          idhash.ComputeObservationID(streamBucketID(key), idx, ts.UnixMilli()),
		Timestamp:   ts,
		Lat:         event.Lat,
		Lon:         event.Lon,
		AreaM2:      event.AreaM2,
		EnergyJ:     event.EnergyJ,
		QualityFlag: event.QualityFlag,
	})

	cutoff := minute.Add(-s.horizon)
	for k := range s.buckets {
		if time.Unix(k, 0).Before(cutoff) {
			delete(s.buckets, k)
			delete(s.counts, k)
		}
	}
}

func streamBucketID(key int64) string {
	return idhash.ComputeBatchID("live", strconv.FormatInt(key, 10))
}

// ListBatches returns one handle per buffered minute whose start falls in
// the window.
func (s *StreamSource) ListBatches(ctx context.Context, window TimeWindow) ([]BatchHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var handles []BatchHandle
	for key, rows := range s.buckets {
		if len(rows) == 0 {
			continue
		}
		start := time.Unix(key, 0).UTC()
		if !window.Contains(start) {
			continue
		}
		handles = append(handles, BatchHandle{
			ID:        streamBucketID(key),
			URL:       fmt.Sprintf("live/%d", key),
			StartTime: start,
		})
	}

	sort.Slice(handles, func(i, j int) bool {
		return handles[i].StartTime.Before(handles[j].StartTime)
	})
	return handles, nil
}

// ReadBatch returns the buffered detections behind a handle. A bucket
// evicted between list and read yields domain.ErrNotFound.
func (s *StreamSource) ReadBatch(ctx context.Context, handle BatchHandle) ([]domain.Observation, error) {
	key := handle.StartTime.Unix()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.buckets[key]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s no longer buffered", domain.ErrNotFound, handle.ID)
	}

	result := make([]domain.Observation, len(rows))
	copy(result, rows)
	return result, nil
}

// Close stops the collector. It does not close the underlying feed client.
func (s *StreamSource) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

var _ ObservationSource = (*StreamSource)(nil)
