// Package jsonstore keeps every user record in a single JSON array document.
// Each mutation reads the whole document, changes it and writes it back, so
// the Store serialises all access with one mutex.
package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zabira-api/internal/domain"
)

type Store struct {
	mu   sync.Mutex
	blob Blob
	now  func() time.Time
}

func New(blob Blob) *Store {
	return &Store{blob: blob, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Create(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("email %s: %w", u.Email, domain.ErrConflict)
		}
	}
	users = append(users, u.Clone())
	return s.save(ctx, users)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.find(ctx, func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, domain.ErrNotFound
	}
	return s.find(ctx, func(u *domain.User) bool { return strings.EqualFold(u.Username, username) })
}

func (s *Store) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := uniqueAgainst(users, userID, updates); err != nil {
		return err
	}
	for _, u := range users {
		if u.UserID != userID {
			continue
		}
		if err := u.Apply(updates); err != nil {
			return err
		}
		u.UpdatedAt = s.now()
		return s.save(ctx, users)
	}
	return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
}

// uniqueAgainst rejects an email or username already held by another record.
func uniqueAgainst(users []*domain.User, userID string, updates map[string]interface{}) error {
	email, _ := updates[domain.FieldEmail].(string)
	username, _ := updates[domain.FieldUsername].(string)
	if email == "" && username == "" {
		return nil
	}
	for _, other := range users {
		if other.UserID == userID {
			continue
		}
		if email != "" && strings.EqualFold(other.Email, email) {
			return fmt.Errorf("email %s: %w", email, domain.ErrConflict)
		}
		if username != "" && strings.EqualFold(other.Username, username) {
			return fmt.Errorf("username %s: %w", username, domain.ErrConflict)
		}
	}
	return nil
}

func (s *Store) find(ctx context.Context, match func(*domain.User) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if match(u) {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) load(ctx context.Context) ([]*domain.User, error) {
	b, err := s.blob.Read(ctx)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, nil
	}
	var users []*domain.User
	if err := json.Unmarshal(b, &users); err != nil {
		return nil, fmt.Errorf("decode users document: %w", err)
	}
	return users, nil
}

func (s *Store) save(ctx context.Context, users []*domain.User) error {
	if users == nil {
		users = []*domain.User{}
	}
	b, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users document: %w", err)
	}
	return s.blob.Write(ctx, b)
}
