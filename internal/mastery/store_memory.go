package mastery

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	profiles map[string]Profile
	mu       sync.Mutex
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory mastery store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]Profile),
		now:      time.Now,
	}
}

func (s *MemoryStore) GetProfile(_ context.Context, studentID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[studentID]
	if !ok {
		return Empty(studentID), nil
	}
	return clone(p), nil
}

func (s *MemoryStore) RecordResult(_ context.Context, studentID string, outcomes []Outcome) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[studentID]
	if !ok {
		p = Empty(studentID)
	}
	p = Apply(p, outcomes)
	p.UpdatedAt = s.now()
	s.profiles[studentID] = p
	return clone(p), nil
}

func (s *MemoryStore) DifficultyFor(ctx context.Context, studentID string) (float64, error) {
	p, err := s.GetProfile(ctx, studentID)
	if err != nil {
		return 0, err
	}
	return Difficulty(p), nil
}

func clone(p Profile) Profile {
	p.Topics = slices.Clone(p.Topics)
	p.WeakTopics = slices.Clone(p.WeakTopics)
	return p
}
