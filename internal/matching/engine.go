package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/otoshimono/internal/config"
	"github.com/hyperjump/otoshimono/internal/mail"
	"github.com/hyperjump/otoshimono/internal/metrics"
	"github.com/hyperjump/otoshimono/internal/models"
	"github.com/hyperjump/otoshimono/internal/storage"
)

// Collaborators are the external services a matching run reads and writes through.
type Collaborators struct {
	Items         storage.ItemFinder
	Users         storage.UserFinder
	Notifications storage.NotificationWriter
	Mailer        mail.Mailer
}

// Engine runs one matching pass per newly posted item. Runs share no mutable
// state; two racing runs may both report the same pair.
type Engine struct {
	retriever  *Retriever
	ranker     *Ranker
	dispatcher *Dispatcher
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewEngine wires retriever, scorer, ranker, and dispatcher from cfg.
// A nil cfg uses the defaults.
func NewEngine(deps Collaborators, cfg *config.MatchingConfig, logger *zap.Logger) *Engine {
	if cfg == nil {
		d := config.DefaultMatchingConfig()
		cfg = &d
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	scorer := NewScorer(cfg)
	return &Engine{
		retriever:  NewRetriever(deps.Items, cfg.CandidateLimit, logger),
		ranker:     NewRanker(scorer, cfg.NotifyThreshold, cfg.TopN),
		dispatcher: NewDispatcher(deps.Notifications, deps.Users, deps.Mailer, cfg.EmailThreshold, logger),
		logger:     logger,
	}
}

// RunMatching finds, ranks, and notifies matches for item and returns the ranked list.
// Delivery failures are logged and never change the result.
func (e *Engine) RunMatching(ctx context.Context, item *models.Item, itemType models.ItemType) []MatchCandidate {
	start := time.Now()
	matches := e.rank(ctx, item, itemType)
	if len(matches) == 0 {
		e.logger.Debug("no matches", zap.String("item_id", itemID(item)))
		metrics.RecordMatchingRun(string(itemType), "dispatch", time.Since(start), 0)
		return matches
	}
	report := e.dispatcher.Dispatch(ctx, item, itemType, matches)
	took := time.Since(start)
	metrics.RecordMatchingRun(string(itemType), "dispatch", took, len(matches))
	metrics.RecordDispatch(report.NotificationsCreated, report.NotificationsFailed, report.EmailsSent, report.EmailsFailed)
	e.logger.Info("matching run complete",
		zap.String("item_id", item.ID),
		zap.String("item_type", string(itemType)),
		zap.Int("matches", len(matches)),
		zap.Int("top_score", matches[0].Score),
		zap.Int("notifications_created", report.NotificationsCreated),
		zap.Int("notifications_failed", report.NotificationsFailed),
		zap.Int("emails_sent", report.EmailsSent),
		zap.Int("emails_failed", report.EmailsFailed),
		zap.Duration("took", took))
	return matches
}

// Preview retrieves and ranks matches without notifying anyone.
func (e *Engine) Preview(ctx context.Context, item *models.Item, itemType models.ItemType) []MatchCandidate {
	start := time.Now()
	matches := e.rank(ctx, item, itemType)
	metrics.RecordMatchingRun(string(itemType), "preview", time.Since(start), len(matches))
	return matches
}

func (e *Engine) rank(ctx context.Context, item *models.Item, itemType models.ItemType) []MatchCandidate {
	if item == nil {
		return nil
	}
	candidates := e.retriever.Candidates(ctx, item, itemType)
	return e.ranker.Rank(item, candidates)
}

// Spawn runs RunMatching in the background. The run outlives ctx cancellation
// and a panic inside it is logged instead of propagated.
func (e *Engine) Spawn(ctx context.Context, item *models.Item, itemType models.ItemType) {
	runCtx := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("matching run panicked",
					zap.String("item_id", itemID(item)),
					zap.String("panic", fmt.Sprint(r)))
			}
		}()
		e.RunMatching(runCtx, item, itemType)
	}()
}

// Wait blocks until every spawned run has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func itemID(item *models.Item) string {
	if item == nil {
		return ""
	}
	return item.ID
}
