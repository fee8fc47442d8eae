// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/otoshimono/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Timestamps are stored as unix nanoseconds so ORDER BY created_at is exact.
func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		coordinates TEXT,
		campus_id TEXT NOT NULL,
		posted_by TEXT NOT NULL,
		status TEXT NOT NULL,
		tags TEXT,
		embedding TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_candidates ON items(campus_id, type, status, created_at);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		campus_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		type TEXT NOT NULL,
		data TEXT,
		read INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

const itemColumns = `id, type, title, description, category, location, coordinates, campus_id,
	posted_by, status, tags, embedding, created_at, updated_at`

// CreateItem inserts an item. A missing id is generated; a zero CreatedAt is set to now.
func (s *SQLiteStorage) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = models.StatusActive
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	coords, err := marshalNullable(item.Coordinates, item.Coordinates == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal coordinates: %w", err)
	}
	tags, err := marshalNullable(item.Tags, len(item.Tags) == 0)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	embedding, err := marshalNullable(item.Embedding, len(item.Embedding) == 0)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.Type), item.Title, item.Description, item.Category, item.Location,
		coords, item.CampusID, item.PostedBy, string(item.Status), tags, embedding,
		item.CreatedAt.UnixNano(), item.UpdatedAt.UnixNano(),
	)
	return err
}

// GetItem returns an item by ID.
func (s *SQLiteStorage) GetItem(ctx context.Context, id string) (*models.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItemStatus sets the status of an item.
func (s *SQLiteStorage) UpdateItemStatus(ctx context.Context, id string, status models.Status) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().UnixNano(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return nil
}

// FindItems returns items matching filter, most recent first.
func (s *SQLiteStorage) FindItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.CampusID != "" {
		where = append(where, "campus_id = ?")
		args = append(args, filter.CampusID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ExcludePostedBy != "" {
		where = append(where, "posted_by <> ?")
		args = append(args, filter.ExcludePostedBy)
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ArchiveStaleItems marks active items created before cutoff as archived and returns their ids.
func (s *SQLiteStorage) ArchiveStaleItems(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM items WHERE status = ? AND created_at < ?`,
		string(models.StatusActive), cutoff.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC().UnixNano()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET status = ?, updated_at = ? WHERE id = ?`,
			string(models.StatusArchived), now, id,
		); err != nil {
			return nil, err
		}
	}
	return ids, tx.Commit()
}

// CreateUser inserts a user. A missing id is generated.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, campus_id, name, email, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.CampusID, user.Name, user.Email, user.CreatedAt.UnixNano(),
	)
	return err
}

// GetUser returns a user by ID.
func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, campus_id, name, email, created_at FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.CampusID, &user.Name, &user.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = time.Unix(0, created).UTC()
	return &user, nil
}

// CreateNotification inserts a notification. A missing id is generated.
func (s *SQLiteStorage) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	data, err := marshalNullable(n.Data, n.Data == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, title, message, type, data, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, data, n.Read, n.CreatedAt.UnixNano(),
	)
	return err
}

// ListNotifications returns a user's notifications, newest first.
func (s *SQLiteStorage) ListNotifications(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, message, type, data, read, created_at
		 FROM notifications WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		var data sql.NullString
		var created int64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &data, &n.Read, &created); err != nil {
			return nil, err
		}
		if data.Valid && data.String != "" {
			var d models.NotificationData
			if err := json.Unmarshal([]byte(data.String), &d); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
			}
			n.Data = &d
		}
		n.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags a notification as read.
func (s *SQLiteStorage) MarkNotificationRead(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountItems returns the total number of items.
func (s *SQLiteStorage) CountItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	return count, err
}

// CountNotifications returns the total number of notifications.
func (s *SQLiteStorage) CountNotifications(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		item                    models.Item
		itemType, status        string
		coords, tags, embedding sql.NullString
		created, updated        int64
	)
	err := row.Scan(&item.ID, &itemType, &item.Title, &item.Description, &item.Category, &item.Location,
		&coords, &item.CampusID, &item.PostedBy, &status, &tags, &embedding, &created, &updated)
	if err != nil {
		return nil, err
	}
	item.Type = models.ItemType(itemType)
	item.Status = models.Status(status)
	item.CreatedAt = time.Unix(0, created).UTC()
	item.UpdatedAt = time.Unix(0, updated).UTC()

	// Malformed JSON columns leave the field empty; the scorer treats it as missing.
	if coords.Valid && coords.String != "" {
		var c models.Coordinates
		if json.Unmarshal([]byte(coords.String), &c) == nil {
			item.Coordinates = &c
		}
	}
	if tags.Valid && tags.String != "" {
		_ = json.Unmarshal([]byte(tags.String), &item.Tags)
	}
	if embedding.Valid && embedding.String != "" {
		_ = json.Unmarshal([]byte(embedding.String), &item.Embedding)
	}
	return &item, nil
}

// marshalNullable returns nil (SQL NULL) when empty, otherwise the JSON text of v.
func marshalNullable(v interface{}, empty bool) (interface{}, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
