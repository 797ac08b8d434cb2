package session

import (
	"sort"
	"sync"
)

// PendingRefreshOwner tracks which tool-call ids currently display a
// provisional result that is awaiting an out-of-band correction. Add and
// Remove are idempotent; removal is always caller-driven, the set never
// expires entries on its own, so consumers must tolerate long-lived ids and
// render them as "still updating".
type PendingRefreshOwner interface {
	Add(id string)
	Remove(id string)
	Contains(id string) bool
	IDs() []string
}

// internalPendingSet is the uncontrolled-mode owner: a plain set private to
// one controller, guarded by the controller's mutex.
type internalPendingSet struct {
	ids map[string]struct{}
}

func newInternalPendingSet() *internalPendingSet {
	return &internalPendingSet{ids: make(map[string]struct{})}
}

func (s *internalPendingSet) Add(id string)    { s.ids[id] = struct{}{} }
func (s *internalPendingSet) Remove(id string) { delete(s.ids, id) }

func (s *internalPendingSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *internalPendingSet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SharedPendingSet is the controlled-mode owner: an externally owned,
// self-locking set that a parent coordinator can pass to several controllers
// so independent chat sessions share one pending-refresh tracker. The caller
// owns its lifecycle.
type SharedPendingSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewSharedPendingSet() *SharedPendingSet {
	return &SharedPendingSet{ids: make(map[string]struct{})}
}

func (s *SharedPendingSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *SharedPendingSet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *SharedPendingSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *SharedPendingSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
