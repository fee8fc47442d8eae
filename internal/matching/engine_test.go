package matching

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/otoshimono/internal/models"
	"github.com/hyperjump/otoshimono/internal/storage"
)

func newTestEngine(store *memStore, mailer *fakeMailer) *Engine {
	return NewEngine(Collaborators{
		Items:         store,
		Users:         store,
		Notifications: store,
		Mailer:        mailer,
	}, nil, nil)
}

func seededStore(items ...*models.Item) *memStore {
	store := newMemStore(items...)
	store.addUser("U1", "u1@example.edu")
	store.addUser("U2", "u2@example.edu")
	store.addUser("U3", "u3@example.edu")
	return store
}

func TestEngine_RunMatching_HighConfidence(t *testing.T) {
	source, candidate := lostBackpack(), foundBag()
	store := seededStore(source, candidate)
	mailer := &fakeMailer{}
	engine := newTestEngine(store, mailer)

	matches := engine.RunMatching(context.Background(), source, models.ItemTypeLost)
	if len(matches) != 1 || matches[0].Item.ID != candidate.ID {
		t.Fatalf("matches = %+v", matches)
	}
	score := matches[0].Score
	if score < 70 {
		t.Errorf("score = %d, want >= 70", score)
	}

	if store.notificationCount() != 2 {
		t.Fatalf("notifications = %d, want 2", store.notificationCount())
	}

	toSource := store.notificationsFor("U1")
	if len(toSource) != 1 {
		t.Fatalf("source poster got %d notifications", len(toSource))
	}
	n := toSource[0]
	if n.Type != models.NotificationTypeMatch {
		t.Errorf("type = %q", n.Type)
	}
	if n.Data.ItemID != candidate.ID || n.Data.ItemType != models.ItemTypeFound || n.Data.MatchScore != score {
		t.Errorf("source payload = %+v", n.Data)
	}
	if len(n.Data.Factors) != 5 {
		t.Errorf("payload factors = %v", n.Data.Factors)
	}
	for _, want := range []string{candidate.Title, candidate.Location, "%"} {
		if !strings.Contains(n.Message, want) {
			t.Errorf("message %q should mention %q", n.Message, want)
		}
	}

	toCandidate := store.notificationsFor("U2")
	if len(toCandidate) != 1 {
		t.Fatalf("candidate poster got %d notifications", len(toCandidate))
	}
	if d := toCandidate[0].Data; d.ItemID != source.ID || d.ItemType != models.ItemTypeLost {
		t.Errorf("candidate payload = %+v", d)
	}
	if !strings.Contains(toCandidate[0].Message, source.Title) {
		t.Errorf("message %q should mention %q", toCandidate[0].Message, source.Title)
	}

	if mailer.count() != 2 {
		t.Fatalf("emails = %d, want 2", mailer.count())
	}
	byAddr := map[string]sentEmail{}
	for _, e := range mailer.sent {
		byAddr[e.email] = e
	}
	if e := byAddr["u1@example.edu"]; e.itemTitle != candidate.Title || e.itemType != "Found" || e.percentage != score {
		t.Errorf("email to source poster = %+v", e)
	}
	if e := byAddr["u2@example.edu"]; e.itemTitle != source.Title || e.itemType != "Lost" || e.percentage != score {
		t.Errorf("email to candidate poster = %+v", e)
	}
}

func TestEngine_RunMatching_NoMatch(t *testing.T) {
	store := seededStore(lostBackpack(), unrelatedFound())
	mailer := &fakeMailer{}

	matches := newTestEngine(store, mailer).RunMatching(context.Background(), lostBackpack(), models.ItemTypeLost)
	if len(matches) != 0 {
		t.Errorf("matches = %d, want 0", len(matches))
	}
	if store.notificationCount() != 0 || mailer.count() != 0 {
		t.Errorf("notifications = %d, emails = %d, want 0 and 0", store.notificationCount(), mailer.count())
	}
}

func TestEngine_RunMatching_BelowEmailThreshold(t *testing.T) {
	// Same category only: notified but not emailed.
	weak := unrelatedFound()
	weak.Category = "Bags"
	store := seededStore(weak)
	mailer := &fakeMailer{}

	matches := newTestEngine(store, mailer).RunMatching(context.Background(), lostBackpack(), models.ItemTypeLost)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if s := matches[0].Score; s < 25 || s >= 50 {
		t.Fatalf("score = %d, want within [25,50)", s)
	}
	if store.notificationCount() != 2 {
		t.Errorf("notifications = %d, want 2", store.notificationCount())
	}
	if mailer.count() != 0 {
		t.Errorf("emails = %d, want 0", mailer.count())
	}
}

func TestEngine_CrossCampusExcluded(t *testing.T) {
	other := foundBag()
	other.CampusID = "C2"
	store := seededStore(other)

	matches := newTestEngine(store, &fakeMailer{}).RunMatching(context.Background(), lostBackpack(), models.ItemTypeLost)
	if len(matches) != 0 {
		t.Errorf("matches = %d, want 0", len(matches))
	}
}

func TestEngine_NotIdempotent(t *testing.T) {
	store := seededStore(foundBag())
	mailer := &fakeMailer{}
	engine := newTestEngine(store, mailer)

	engine.RunMatching(context.Background(), lostBackpack(), models.ItemTypeLost)
	engine.RunMatching(context.Background(), lostBackpack(), models.ItemTypeLost)

	if store.notificationCount() != 4 {
		t.Errorf("notifications = %d, want 4", store.notificationCount())
	}
	if mailer.count() != 4 {
		t.Errorf("emails = %d, want 4", mailer.count())
	}
}

func TestEngine_FailureIsolation(t *testing.T) {
	second := foundBag()
	second.ID = "found-b"
	second.PostedBy = "U3"
	store := seededStore(foundBag(), second)
	store.failFor["U1"] = true
	mailer := &fakeMailer{fail: map[string]bool{"u2@example.edu": true}}

	matches := newTestEngine(store, mailer).RunMatching(context.Background(), lostBackpack(), models.ItemTypeLost)
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if got := len(store.notificationsFor("U2")); got != 1 {
		t.Errorf("U2 notifications = %d, want 1", got)
	}
	if got := len(store.notificationsFor("U3")); got != 1 {
		t.Errorf("U3 notifications = %d, want 1", got)
	}
	// Emails to U1 (twice) and U3 succeed; U2 fails.
	if mailer.count() != 3 {
		t.Errorf("emails = %d, want 3", mailer.count())
	}
}

func TestDispatcher_Report(t *testing.T) {
	store := seededStore()
	store.failFor["U2"] = true
	delete(store.users, "U1")
	mailer := &fakeMailer{}
	d := NewDispatcher(store, store, mailer, 50, nil)

	source, candidate := lostBackpack(), foundBag()
	report := d.Dispatch(context.Background(), source, models.ItemTypeLost, []MatchCandidate{
		{Item: candidate, Score: 80, Factors: models.Factors{}},
		{Item: unrelatedFound(), Score: 30, Factors: models.Factors{}},
	})

	want := DispatchReport{
		NotificationsCreated: 3,
		NotificationsFailed:  1,
		EmailsSent:           1,
		EmailsFailed:         1,
	}
	if report != want {
		t.Errorf("report = %+v, want %+v", report, want)
	}
}

func TestDispatcher_NilMailer(t *testing.T) {
	store := seededStore()
	d := NewDispatcher(store, store, nil, 50, nil)
	report := d.Dispatch(context.Background(), lostBackpack(), models.ItemTypeLost, []MatchCandidate{
		{Item: foundBag(), Score: 90},
	})
	if report.NotificationsCreated != 2 || report.EmailsSent != 0 || report.EmailsFailed != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestEngine_RetrievalFailure(t *testing.T) {
	store := seededStore(foundBag())
	store.findErr = storage.ErrNotFound
	matches := newTestEngine(store, &fakeMailer{}).RunMatching(context.Background(), lostBackpack(), models.ItemTypeLost)
	if len(matches) != 0 || store.notificationCount() != 0 {
		t.Errorf("matches = %d, notifications = %d", len(matches), store.notificationCount())
	}
}

func TestEngine_Preview(t *testing.T) {
	store := seededStore(foundBag())
	mailer := &fakeMailer{}
	matches := newTestEngine(store, mailer).Preview(context.Background(), lostBackpack(), models.ItemTypeLost)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if store.notificationCount() != 0 || mailer.count() != 0 {
		t.Error("preview must not notify")
	}
}

func TestEngine_SpawnOutlivesCaller(t *testing.T) {
	store := seededStore(foundBag())
	engine := newTestEngine(store, &fakeMailer{})

	ctx, cancel := context.WithCancel(context.Background())
	engine.Spawn(ctx, lostBackpack(), models.ItemTypeLost)
	cancel()
	engine.Wait()

	if store.notificationCount() != 2 {
		t.Errorf("notifications = %d, want 2", store.notificationCount())
	}
}

type panickingFinder struct{}

func (panickingFinder) FindItems(context.Context, storage.ItemFilter) ([]*models.Item, error) {
	panic("boom")
}

func TestEngine_SpawnRecoversPanic(t *testing.T) {
	store := seededStore()
	engine := NewEngine(Collaborators{
		Items:         panickingFinder{},
		Users:         store,
		Notifications: store,
	}, nil, nil)

	engine.Spawn(context.Background(), lostBackpack(), models.ItemTypeLost)

	done := make(chan struct{})
	go func() {
		engine.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("spawned run did not finish")
	}
}
