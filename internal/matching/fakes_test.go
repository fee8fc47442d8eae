package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/otoshimono/internal/models"
	"github.com/hyperjump/otoshimono/internal/storage"
)

var baseTime = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

// memStore is an in-memory ItemFinder, UserFinder, and NotificationWriter.
type memStore struct {
	mu            sync.Mutex
	items         []*models.Item
	users         map[string]*models.User
	notifications []*models.Notification
	findErr       error
	// failFor makes CreateNotification fail for these recipients.
	failFor map[string]bool
	// skipFilter returns every item from FindItems, ignoring the filter.
	skipFilter bool
}

func newMemStore(items ...*models.Item) *memStore {
	s := &memStore{users: make(map[string]*models.User), failFor: make(map[string]bool)}
	s.items = append(s.items, items...)
	return s
}

func (s *memStore) addUser(id, email string) {
	s.users[id] = &models.User{ID: id, Email: email}
}

func (s *memStore) FindItems(ctx context.Context, f storage.ItemFilter) ([]*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []*models.Item
	for _, it := range s.items {
		if !s.skipFilter {
			if f.Type != "" && it.Type != f.Type {
				continue
			}
			if f.CampusID != "" && it.CampusID != f.CampusID {
				continue
			}
			if f.Status != "" && it.Status != f.Status {
				continue
			}
			if f.ExcludePostedBy != "" && it.PostedBy == f.ExcludePostedBy {
				continue
			}
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *memStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[n.UserID] {
		return errors.New("write rejected")
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *memStore) notificationsFor(userID string) []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (s *memStore) notificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

type sentEmail struct {
	email, itemType, itemTitle string
	percentage                 int
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	fail map[string]bool
}

func (m *fakeMailer) SendMatchEmail(ctx context.Context, email, itemType, itemTitle string, pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[email] {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, sentEmail{email, itemType, itemTitle, pct})
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func lostBackpack() *models.Item {
	return &models.Item{
		ID:        "lost-1",
		Type:      models.ItemTypeLost,
		Title:     "Black Backpack",
		Category:  "Bags",
		Location:  "Central Library",
		CampusID:  "C1",
		PostedBy:  "U1",
		Status:    models.StatusActive,
		CreatedAt: baseTime,
	}
}

func foundBag() *models.Item {
	return &models.Item{
		ID:        "found-1",
		Type:      models.ItemTypeFound,
		Title:     "Black Bag Found Near Library",
		Category:  "Bags",
		Location:  "Central Library",
		CampusID:  "C1",
		PostedBy:  "U2",
		Status:    models.StatusActive,
		CreatedAt: baseTime.Add(time.Hour),
	}
}

func unrelatedFound() *models.Item {
	return &models.Item{
		ID:        "found-2",
		Type:      models.ItemTypeFound,
		Title:     "Silver Calculator",
		Category:  "Electronics",
		Location:  "Sports Hall",
		CampusID:  "C1",
		PostedBy:  "U3",
		Status:    models.StatusActive,
		CreatedAt: baseTime.Add(29 * 24 * time.Hour),
	}
}
