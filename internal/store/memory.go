// Package store provides storage backends for GapBot.
//
// This file implements an in-memory store used by tests and DSN-less runs.
package store

import (
	"sort"
	"sync"

	"github.com/gap-labs/gapbot/internal/models"
)

// InMemoryStore keeps users and progress entries in process memory.
type InMemoryStore struct {
	mu      sync.Mutex
	users   map[string]models.User
	order   []string // user insertion order, preserves leaderboard tie order
	entries []models.ProgressEntry
	nextID  int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]models.User), nextID: 1}
}

func (s *InMemoryStore) GetUser(phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[phone]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *InMemoryStore) CreateUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Phone]; !ok {
		s.order = append(s.order, u.Phone)
	}
	s.users[u.Phone] = *u
	return nil
}

func (s *InMemoryStore) UpdateUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Phone]; !ok {
		return models.ErrUserNotFound
	}
	s.users[u.Phone] = *u
	return nil
}

func (s *InMemoryStore) ListUsers() ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, 0, len(s.order))
	for _, phone := range s.order {
		users = append(users, s.users[phone])
	}
	return users, nil
}

func (s *InMemoryStore) TopUsersByPoints(limit int) ([]models.User, error) {
	users, err := s.ListUsers()
	if err != nil {
		return nil, err
	}
	// Stable sort keeps insertion order for equal points
	sort.SliceStable(users, func(i, j int) bool { return users[i].Points > users[j].Points })
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (s *InMemoryStore) AddProgress(e *models.ProgressEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, *e)
	return nil
}

func (s *InMemoryStore) UpdateProgress(e *models.ProgressEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == e.ID {
			s.entries[i].ProofURL = e.ProofURL
			s.entries[i].ProofStatus = e.ProofStatus
			s.entries[i].PointsAwarded = e.PointsAwarded
			return nil
		}
	}
	return nil
}

func (s *InMemoryStore) PendingProgressForDate(phone, date string) (*models.ProgressEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.Phone == phone && e.Date == date && e.ProofStatus == models.ProofPending {
			return &e, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) RecentProgress(phone string, limit int) ([]models.ProgressEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []models.ProgressEntry
	for _, e := range s.entries {
		if e.Phone == phone {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date > entries[j].Date
		}
		return entries[i].ID > entries[j].ID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *InMemoryStore) ProgressSince(phone, since string) ([]models.ProgressEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []models.ProgressEntry
	for _, e := range s.entries {
		if e.Phone == phone && e.Date >= since {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date < entries[j].Date
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
