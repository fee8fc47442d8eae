package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/otoshimono/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_ItemCRUD(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	item := &models.Item{
		Type:        models.ItemTypeLost,
		Title:       "Black Backpack",
		Description: "Has a laptop sticker",
		Category:    "Bags",
		Location:    "Central Library",
		Coordinates: &models.Coordinates{Lat: 52.1, Lng: 4.3},
		CampusID:    "c1",
		PostedBy:    "u1",
		Tags:        []string{"black"},
		Embedding:   []float32{0.1, 0.2},
	}
	if err := store.CreateItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	if item.ID == "" {
		t.Fatal("ID should be generated")
	}
	if item.CreatedAt.IsZero() || item.Status != models.StatusActive {
		t.Errorf("defaults not applied: %+v", item)
	}

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Black Backpack" || got.Category != "Bags" || got.Type != models.ItemTypeLost {
		t.Errorf("got %+v", got)
	}
	if got.Coordinates == nil || got.Coordinates.Lat != 52.1 {
		t.Errorf("coordinates not round-tripped: %+v", got.Coordinates)
	}
	if len(got.Tags) != 1 || len(got.Embedding) != 2 {
		t.Errorf("tags/embedding not round-tripped: %v %v", got.Tags, got.Embedding)
	}
	if !got.CreatedAt.Equal(item.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, item.CreatedAt)
	}

	if err := store.UpdateItemStatus(ctx, item.ID, models.StatusResolved); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetItem(ctx, item.ID)
	if got.Status != models.StatusResolved {
		t.Errorf("status = %s, want resolved", got.Status)
	}

	_, err = store.GetItem(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetItem(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.UpdateItemStatus(ctx, "missing", models.StatusArchived); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateItemStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_FindItems(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []*models.Item{
		{ID: "f1", Type: models.ItemTypeFound, Title: "a", CampusID: "c1", PostedBy: "u2", Status: models.StatusActive, CreatedAt: base},
		{ID: "f2", Type: models.ItemTypeFound, Title: "b", CampusID: "c1", PostedBy: "u3", Status: models.StatusActive, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "f3", Type: models.ItemTypeFound, Title: "c", CampusID: "c1", PostedBy: "u1", Status: models.StatusActive, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "f4", Type: models.ItemTypeFound, Title: "d", CampusID: "c2", PostedBy: "u2", Status: models.StatusActive, CreatedAt: base.Add(4 * time.Hour)},
		{ID: "f5", Type: models.ItemTypeFound, Title: "e", CampusID: "c1", PostedBy: "u2", Status: models.StatusResolved, CreatedAt: base.Add(5 * time.Hour)},
		{ID: "l1", Type: models.ItemTypeLost, Title: "f", CampusID: "c1", PostedBy: "u2", Status: models.StatusActive, CreatedAt: base.Add(6 * time.Hour)},
		{ID: "f6", Type: models.ItemTypeFound, Title: "g", CampusID: "c1", PostedBy: "u4", Status: models.StatusActive, CreatedAt: base.Add(time.Hour)},
	}
	for _, it := range seed {
		if err := store.CreateItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.FindItems(ctx, ItemFilter{
		Type:            models.ItemTypeFound,
		CampusID:        "c1",
		Status:          models.StatusActive,
		ExcludePostedBy: "u1",
		Limit:           50,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"f2", "f6", "f1"}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s (most recent first)", i, got[i].ID, id)
		}
	}

	limited, err := store.FindItems(ctx, ItemFilter{CampusID: "c1", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[0].ID != "l1" {
		t.Errorf("limited result = %d items, first %v", len(limited), limited)
	}
}

func TestSQLiteStorage_ArchiveStaleItems(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := &models.Item{ID: "old", Type: models.ItemTypeLost, Title: "old", CampusID: "c1", PostedBy: "u1", CreatedAt: now.Add(-40 * 24 * time.Hour)}
	fresh := &models.Item{ID: "fresh", Type: models.ItemTypeLost, Title: "fresh", CampusID: "c1", PostedBy: "u1", CreatedAt: now.Add(-time.Hour)}
	for _, it := range []*models.Item{old, fresh} {
		if err := store.CreateItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := store.ArchiveStaleItems(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Fatalf("archived = %v, want [old]", ids)
	}
	got, _ := store.GetItem(ctx, "old")
	if got.Status != models.StatusArchived {
		t.Errorf("old status = %s", got.Status)
	}
	got, _ = store.GetItem(ctx, "fresh")
	if got.Status != models.StatusActive {
		t.Errorf("fresh status = %s", got.Status)
	}
}

func TestSQLiteStorage_UsersAndNotifications(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	user := &models.User{CampusID: "c1", Name: "Aiko", Email: "aiko@example.edu"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "aiko@example.edu" {
		t.Errorf("email = %q", got.Email)
	}
	if _, err := store.GetUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(nobody) error = %v", err)
	}

	n := &models.Notification{
		UserID:  user.ID,
		Title:   "Possible match",
		Message: "msg",
		Type:    models.NotificationTypeMatch,
		Data: &models.NotificationData{
			ItemID:     "f1",
			ItemType:   models.ItemTypeFound,
			MatchScore: 80,
			Factors:    models.Factors{"category": {Score: 30, Detail: "Bags"}},
		},
	}
	if err := store.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}
	list, err := store.ListNotifications(ctx, user.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d notifications", len(list))
	}
	if list[0].Data == nil || list[0].Data.MatchScore != 80 || list[0].Data.Factors["category"].Score != 30 {
		t.Errorf("data not round-tripped: %+v", list[0].Data)
	}
	if list[0].Read {
		t.Error("new notification should be unread")
	}

	if err := store.MarkNotificationRead(ctx, n.ID); err != nil {
		t.Fatal(err)
	}
	list, _ = store.ListNotifications(ctx, user.ID, 10)
	if !list[0].Read {
		t.Error("notification should be read")
	}

	count, err := store.CountNotifications(ctx)
	if err != nil || count != 1 {
		t.Errorf("CountNotifications = %d, %v", count, err)
	}
}
