// Package storage defines the persistence interfaces for items, users, and notifications.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/otoshimono/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ItemFilter selects items for FindItems. Zero-value fields do not filter.
// Results are ordered by creation time, most recent first.
type ItemFilter struct {
	Type            models.ItemType
	CampusID        string
	Status          models.Status
	ExcludePostedBy string
	Limit           int
}

// ItemFinder is the query capability the matching engine reads candidates through.
type ItemFinder interface {
	FindItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error)
}

// UserFinder resolves users (for email addresses).
type UserFinder interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// NotificationWriter persists in-app notifications.
type NotificationWriter interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Storage defines item, user, and notification persistence operations.
type Storage interface {
	ItemFinder
	UserFinder
	NotificationWriter

	// Item operations
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	UpdateItemStatus(ctx context.Context, id string, status models.Status) error
	ArchiveStaleItems(ctx context.Context, cutoff time.Time) ([]string, error)

	// User operations
	CreateUser(ctx context.Context, user *models.User) error

	// Notification operations
	ListNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	// Stats
	CountItems(ctx context.Context) (int64, error)
	CountNotifications(ctx context.Context) (int64, error)

	Close() error
}
