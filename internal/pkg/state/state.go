package state

import (
	"sync"

	"github.com/anicoll/diffuser-panel/internal/pkg/model"
)

// Origin tells the merger which endpoint produced a snapshot. The full
// endpoint is the only one allowed to clear hardware-conditional sections;
// the lite endpoint and command echoes simply don't carry them.
type Origin int

const (
	OriginFull Origin = iota
	OriginLite
	OriginEcho
)

// Store owns the merged DeviceState for the session. The original dashboard
// relied on the browser event loop for exclusion; here multiple goroutines
// (pollers, dispatcher, tracker) apply merges, so the store carries the lock.
type Store struct {
	mu    sync.RWMutex
	state model.DeviceState
	seq   uint64

	subMu  sync.Mutex
	subs   map[int]chan model.DeviceState
	nextID int
}

func NewStore() *Store {
	return &Store{
		subs: make(map[int]chan model.DeviceState),
	}
}

// Apply merges a snapshot into the held state and notifies subscribers.
// It returns a copy of the state after the merge.
func (s *Store) Apply(snap *model.Snapshot, origin Origin) model.DeviceState {
	s.mu.Lock()
	Merge(&s.state, snap, origin)
	s.seq++
	merged := s.state
	s.mu.Unlock()

	s.notify(merged)
	return merged
}

// Current returns a copy of the merged state.
func (s *Store) Current() model.DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Seq returns the number of merges applied so far.
func (s *Store) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Platform returns the cached device platform, empty until the first full
// snapshot reports it.
func (s *Store) Platform() model.Platform {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Device.Platform
}

// Subscribe returns a channel receiving the state after every applied merge
// and a cancel func. Slow subscribers miss intermediate states rather than
// blocking the merge path.
func (s *Store) Subscribe() (<-chan model.DeviceState, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan model.DeviceState, 1)
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (s *Store) notify(merged model.DeviceState) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- merged:
		default:
			// drop the stale value, replace with the newest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- merged:
			default:
			}
		}
	}
}
