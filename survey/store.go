package survey

import "sync"

// ResultStore holds the latest registration result for concurrent readers
type ResultStore struct {
	mu     sync.RWMutex
	latest *Result
	runs   int
}

// NewResultStore creates an empty store
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// Set replaces the latest result
func (s *ResultStore) Set(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = r
	s.runs++
}

// Latest returns the latest result, or nil before the first run
func (s *ResultStore) Latest() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Runs returns how many results have been stored
func (s *ResultStore) Runs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs
}
