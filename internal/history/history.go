// Package history keeps per-thread conversation logs in process memory.
// A thread is created lazily on first use and lives until process shutdown;
// there is no eviction.
package history

import "sync"

type thread struct {
	// invokeMu serializes whole invocations on the thread, not individual
	// appends: the orchestrator holds it across an entire agent/tools cycle.
	invokeMu sync.Mutex

	mu       sync.Mutex
	messages []Message
}

// Store owns every thread's message log. All methods are safe for concurrent
// use; operations on distinct threads never block each other.
type Store struct {
	mu      sync.Mutex
	threads map[string]*thread
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{threads: make(map[string]*thread)}
}

func (s *Store) thread(threadID string) *thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		t = &thread{messages: make([]Message, 0, 16)}
		s.threads[threadID] = t
	}
	return t
}

// LockThread acquires the thread's single-writer lock and returns the
// matching unlock. Invocations sharing a thread ID are fully serialized by
// holding this across the invocation.
func (s *Store) LockThread(threadID string) func() {
	t := s.thread(threadID)
	t.invokeMu.Lock()
	return t.invokeMu.Unlock
}

// Append adds a message to the end of the thread's log.
func (s *Store) Append(threadID string, msg Message) {
	t := s.thread(threadID)
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
}

// List returns a copy of the thread's messages in append order.
func (s *Store) List(threadID string) []Message {
	t := s.thread(threadID)
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len reports how many messages the thread holds.
func (s *Store) Len(threadID string) int {
	t := s.thread(threadID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}
