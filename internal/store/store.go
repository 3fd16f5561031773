package store

import (
	"sync"

	"github.com/Pyramid-Technical-Consultants/ic256-sampler-sub001/internal/domain"
)

// channel is one time-ordered series. dropped counts points pruned off
// the front so callers can keep stable absolute arrival indices across
// prunes.
type channel struct {
	points  []domain.DataPoint
	dropped int
}

// Store holds every channel's samples for one acquisition. The epoch is
// pinned by the first sample written after creation or Clear, and all
// elapsed times are measured against it.
type Store struct {
	mu       sync.Mutex
	channels map[string]*channel
	startNS  int64
	total    int64
	dropped  int64
	bad      int64
}

func New() *Store {
	return &Store{channels: make(map[string]*channel)}
}

// AddSample appends one normalized point to path's series. The first
// sample of an acquisition fixes the store epoch.
func (s *Store) AddSample(path string, value float64, tsNS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startNS == 0 {
		s.startNS = tsNS
	}
	ch := s.channels[path]
	if ch == nil {
		ch = &channel{}
		s.channels[path] = ch
	}
	ch.points = append(ch.points, domain.DataPoint{TimestampNS: tsNS, Value: value})
	s.total++
}

// NoteMalformed counts a datum rejected before storage.
func (s *Store) NoteMalformed() {
	s.mu.Lock()
	s.bad++
	s.mu.Unlock()
}

// View returns path's live points plus the count already pruned off the
// front. The slice header stays valid across later prunes because
// pruning copies into fresh backing arrays.
func (s *Store) View(path string) ([]domain.DataPoint, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.channels[path]
	if ch == nil {
		return nil, 0
	}
	return ch.points, ch.dropped
}

// Latest returns path's newest value, false when the channel is empty.
func (s *Store) Latest(path string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.channels[path]
	if ch == nil || len(ch.points) == 0 {
		return 0, false
	}
	return ch.points[len(ch.points)-1].Value, true
}

// StartNS reports the store epoch, zero until the first sample lands.
func (s *Store) StartNS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startNS
}

// Statistics is one consistent snapshot of the ingest counters:
// lifetime samples accepted, pruned and rejected, plus the points
// currently held overall and per channel.
type Statistics struct {
	Total      int64
	Pruned     int64
	Malformed  int64
	Held       int64
	PerChannel map[string]int
}

func (s *Store) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Statistics{
		Total:      s.total,
		Pruned:     s.dropped,
		Malformed:  s.bad,
		PerChannel: make(map[string]int, len(s.channels)),
	}
	for path, ch := range s.channels {
		st.PerChannel[path] = len(ch.points)
		st.Held += int64(len(ch.points))
	}
	return st
}

// Prune discards points older than minElapsed seconds from every
// channel, but never shrinks a channel below maxPoints. It returns the
// per-channel drop counts.
func (s *Store) Prune(minElapsed float64, maxPoints int) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startNS == 0 {
		return nil
	}
	cutoff := s.startNS + int64(minElapsed*1e9)
	counts := make(map[string]int)
	for path, ch := range s.channels {
		n := len(ch.points)
		if n <= maxPoints {
			continue
		}
		drop := 0
		for drop < n && ch.points[drop].TimestampNS < cutoff {
			drop++
		}
		// Retention floor: keep at least maxPoints recent points.
		if n-drop < maxPoints {
			drop = n - maxPoints
		}
		if drop <= 0 {
			continue
		}
		kept := make([]domain.DataPoint, n-drop)
		copy(kept, ch.points[drop:])
		ch.points = kept
		ch.dropped += drop
		counts[path] = drop
		s.dropped += int64(drop)
	}
	return counts
}

// Clear empties every channel and resets the epoch so the next sample
// starts a new acquisition.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make(map[string]*channel)
	s.startNS = 0
	s.total = 0
	s.dropped = 0
	s.bad = 0
}
