// Package store provides storage backends for hvacpilot.
//
// This file implements the in-memory store used for development and tests.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/coilworks/hvacpilot/internal/models"
)

// InMemoryStore keeps all records in process memory. Safe for concurrent use.
type InMemoryStore struct {
	mu      sync.RWMutex
	users   map[string]models.User // keyed by id
	manuals map[string]models.Manual
	history []models.DiagnosisRecord
	events  []models.SubscriptionEvent
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[string]models.User),
		manuals: make(map[string]models.Manual),
	}
}

func (s *InMemoryStore) CreateUser(ctx context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *InMemoryStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (s *InMemoryStore) GetUserByID(ctx context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *InMemoryStore) UpdateUserSubscription(ctx context.Context, userID, subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.SubscriptionID = subscriptionID
	s.users[userID] = u
	return nil
}

func (s *InMemoryStore) AddManual(ctx context.Context, m models.Manual) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manuals[m.ID] = m
	return nil
}

func (s *InMemoryStore) GetManual(ctx context.Context, id string) (models.Manual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manuals[id]
	if !ok {
		return models.Manual{}, ErrManualNotFound
	}
	return m, nil
}

// ListManuals returns all manuals, newest first.
func (s *InMemoryStore) ListManuals(ctx context.Context) ([]models.Manual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	manuals := make([]models.Manual, 0, len(s.manuals))
	for _, m := range s.manuals {
		manuals = append(manuals, m)
	}
	sort.Slice(manuals, func(i, j int) bool {
		return manuals[i].CreatedAt.After(manuals[j].CreatedAt)
	})
	return manuals, nil
}

func (s *InMemoryStore) DeleteManual(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.manuals[id]; !ok {
		return ErrManualNotFound
	}
	delete(s.manuals, id)
	return nil
}

func (s *InMemoryStore) AddDiagnosisRecord(ctx context.Context, rec models.DiagnosisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec)
	return nil
}

// GetDiagnosisHistory returns a user's diagnosis records, newest first.
func (s *InMemoryStore) GetDiagnosisHistory(ctx context.Context, userID string, limit int) ([]models.DiagnosisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var recs []models.DiagnosisRecord
	for _, r := range s.history {
		if r.UserID == userID {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *InMemoryStore) AddSubscriptionEvent(ctx context.Context, ev models.SubscriptionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
