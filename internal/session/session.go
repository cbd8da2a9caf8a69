package session

import (
	"errors"
	"sync"
)

// ErrExpired is returned when no session entry exists for a user. The usual
// cause is a process restart, so the user-facing remedy is "search again".
var ErrExpired = errors.New("session expired")

// ErrInvalidSelection is returned when a callback references an index that the
// current entry cannot satisfy: out of bounds, or the entry holds a resolved
// link target instead of a candidate list. Stale indices are rejected, never
// clamped.
var ErrInvalidSelection = errors.New("invalid selection")

// Candidate is one selectable search result.
type Candidate struct {
	ID         string
	Title      string
	Channel    string
	SourceLink string
}

// Payload is the per-user session content. Exactly two shapes exist:
// CandidateList (written after a search) and ResolvedTarget (written after a
// direct link is described). Consumers must branch on the shape, not on how
// the user arrived at it.
type Payload interface {
	sessionPayload()
}

// CandidateList holds the ordered results the user was last shown.
type CandidateList struct {
	Items []Candidate
	Query string
}

// ResolvedTarget holds a single item resolved from a direct link.
type ResolvedTarget struct {
	Item       Candidate
	SourceLink string
}

func (CandidateList) sessionPayload()  {}
func (ResolvedTarget) sessionPayload() {}

// Store keeps at most one entry per user. Every Put overwrites; entries live
// for the lifetime of the process and are never evicted, so memory grows with
// the number of distinct users seen.
type Store struct {
	mu      sync.RWMutex
	entries map[int64]Payload
}

func NewStore() *Store {
	return &Store{entries: make(map[int64]Payload)}
}

// Put replaces any existing entry for userID unconditionally.
func (s *Store) Put(userID int64, p Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = p
}

// Get is a non-destructive read.
func (s *Store) Get(userID int64) (Payload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[userID]
	return p, ok
}

// ResolveCandidate validates index against the currently stored list and
// returns the candidate without mutating the store, so repeated selections
// against the same list keep working until the entry is overwritten.
func (s *Store) ResolveCandidate(userID int64, index int) (Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[userID]
	if !ok {
		return Candidate{}, ErrExpired
	}
	list, ok := p.(CandidateList)
	if !ok {
		return Candidate{}, ErrInvalidSelection
	}
	if index < 0 || index >= len(list.Items) {
		return Candidate{}, ErrInvalidSelection
	}
	return list.Items[index], nil
}

// ResolveTarget returns the stored link target, failing the same way
// ResolveCandidate does when the entry is absent or has the wrong shape.
func (s *Store) ResolveTarget(userID int64) (ResolvedTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[userID]
	if !ok {
		return ResolvedTarget{}, ErrExpired
	}
	rt, ok := p.(ResolvedTarget)
	if !ok {
		return ResolvedTarget{}, ErrInvalidSelection
	}
	return rt, nil
}
