package orchestrator

import (
	"sync"

	"bookingsync/pkg/metrics"
)

// InFlightSet tracks message ids currently being processed, per source. It is
// process-local liveness state, lost on restart; labels carry durable
// outcome. An id is added before any side-effecting call and removed in a
// deferred block regardless of outcome.
type InFlightSet struct {
	mu    sync.Mutex
	items map[string]map[string]struct{}
}

func NewInFlightSet() *InFlightSet {
	return &InFlightSet{items: make(map[string]map[string]struct{})}
}

// Add returns false when the id is already in flight.
func (s *InFlightSet) Add(source, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.items[source]
	if !ok {
		ids = make(map[string]struct{})
		s.items[source] = ids
	}
	if _, exists := ids[messageID]; exists {
		return false
	}

	ids[messageID] = struct{}{}
	metrics.InFlightItems.WithLabelValues(source).Set(float64(len(ids)))
	return true
}

func (s *InFlightSet) Remove(source, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.items[source]
	if !ok {
		return
	}
	delete(ids, messageID)
	metrics.InFlightItems.WithLabelValues(source).Set(float64(len(ids)))
}

func (s *InFlightSet) Contains(source, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.items[source]
	if !ok {
		return false
	}
	_, exists := ids[messageID]
	return exists
}

// Counts returns the current in-flight count per source.
func (s *InFlightSet) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int, len(s.items))
	for source, ids := range s.items {
		counts[source] = len(ids)
	}
	return counts
}
