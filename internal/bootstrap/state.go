package bootstrap

import "sync"

// State is the process-wide record of whether the store bring-up completed.
// Construct one at process start and share it with every Coordinator that
// targets the same store.
type State struct {
	mu   sync.Mutex
	done bool
}

func NewState() *State {
	return &State{}
}

// Initialized reports whether a bring-up has completed. It blocks while a
// bring-up is in flight.
func (s *State) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
