// Package store contains the core logic for the in-memory key-value store.
// Individual map operations are safe for concurrent use; making a sequence of
// operations appear atomic is the caller's job.
package store

import (
	"sync"

	"go.uber.org/atomic"
)

// DefaultRounds is the number of increments (and then decrements) performed by
// a single BumpAndRestore call.
const DefaultRounds = 900000

// Store is an in-memory key-value store with a counter used to demonstrate
// atomicity of a bracketed increment-then-decrement sequence.
type Store struct {
	mu   sync.RWMutex
	data map[string]string

	// counter is changed one step at a time. Each step is atomic, the
	// whole BumpAndRestore sequence is not.
	counter atomic.Int64
	rounds  int
}

// NewStore initializes and returns a new empty Store using DefaultRounds.
func NewStore() *Store {
	return New(DefaultRounds)
}

// New returns an empty Store whose BumpAndRestore runs the given number of rounds.
// A non-positive value falls back to DefaultRounds.
func New(rounds int) *Store {
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	return &Store{
		data:   make(map[string]string),
		rounds: rounds,
	}
}

// Put adds or overwrites a key-value pair. No validation is performed.
func (s *Store) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get retrieves the value for a given key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	return value, ok
}

// Delete removes a key-value pair from the store and reports whether it existed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return false
	}
	delete(s.data, key)
	return true
}

// Len returns the number of keys currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// BumpAndRestore increments the counter Rounds times and then decrements it
// the same number of times. Run alone it leaves the counter where it found it;
// a ReadCounter that overlaps it sees an intermediate value.
func (s *Store) BumpAndRestore() {
	for i := 0; i < s.rounds; i++ {
		s.counter.Inc()
	}
	for i := 0; i < s.rounds; i++ {
		s.counter.Dec()
	}
}

// ReadCounter returns the current counter value.
func (s *Store) ReadCounter() int64 {
	return s.counter.Load()
}

// Rounds returns the length of one half of a BumpAndRestore sequence.
func (s *Store) Rounds() int {
	return s.rounds
}

// State is a point-in-time copy of everything the Store holds.
type State struct {
	Data    map[string]string `json:"data"`
	Counter int64             `json:"counter"`
}

// Snapshot copies the current contents of the store.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data := make(map[string]string, len(s.data))
	for k, v := range s.data {
		data[k] = v
	}
	return State{Data: data, Counter: s.counter.Load()}
}

// Restore replaces the contents of the store with st.
func (s *Store) Restore(st State) {
	data := make(map[string]string, len(st.Data))
	for k, v := range st.Data {
		data[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.counter.Store(st.Counter)
}
