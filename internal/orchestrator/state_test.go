package orchestrator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInFlightAddIsExclusive(t *testing.T) {
	s := NewInFlightSet()

	assert.True(t, s.Add("tripcom", "1"))
	assert.False(t, s.Add("tripcom", "1"))
	assert.True(t, s.Add("kkday", "1"))

	s.Remove("tripcom", "1")
	assert.True(t, s.Add("tripcom", "1"))
}

func TestInFlightCounts(t *testing.T) {
	s := NewInFlightSet()
	s.Add("tripcom", "1")
	s.Add("tripcom", "2")
	s.Add("kkday", "9")

	counts := s.Counts()
	assert.Equal(t, 2, counts["tripcom"])
	assert.Equal(t, 1, counts["kkday"])

	s.Remove("tripcom", "1")
	s.Remove("tripcom", "2")
	assert.Equal(t, 0, s.Counts()["tripcom"])
}

func TestInFlightConcurrentClaims(t *testing.T) {
	s := NewInFlightSet()

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("tripcom", "same") {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, claimed)
}
