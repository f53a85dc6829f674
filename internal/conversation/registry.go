package conversation

import "sync"

// Registry is the process-wide table of active call histories, keyed by call
// id. Entries are added when a media stream starts and removed when the call
// ends. Safe for concurrent use by every call handler.
type Registry struct {
	mu       sync.Mutex
	maxTurns int
	stores   map[string]*Store
}

// NewRegistry creates an empty registry. maxTurns applies to every store it
// creates; zero selects [DefaultMaxTurns].
func NewRegistry(maxTurns int) *Registry {
	return &Registry{
		maxTurns: maxTurns,
		stores:   make(map[string]*Store),
	}
}

// GetOrCreate returns the store for callSID, creating it on first use.
// Idempotent: concurrent calls for the same id observe the same store, and
// the caller value of the first creation wins.
func (r *Registry) GetOrCreate(callSID, caller string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[callSID]; ok {
		return s
	}
	s := NewStore(callSID, caller, r.maxTurns)
	r.stores[callSID] = s
	return s
}

// Get returns the store for callSID, or nil if none exists.
func (r *Registry) Get(callSID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stores[callSID]
}

// Remove cleans up and deletes the store for callSID. Absent keys are a
// no-op.
func (r *Registry) Remove(callSID string) {
	r.mu.Lock()
	s, ok := r.stores[callSID]
	delete(r.stores, callSID)
	r.mu.Unlock()

	if ok {
		s.Cleanup()
	}
}

// Count returns the number of active conversations.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// Clear removes every entry without running cleanup. Intended for tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores = make(map[string]*Store)
}
