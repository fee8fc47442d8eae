package matching

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/otoshimono/internal/mail"
	"github.com/hyperjump/otoshimono/internal/models"
	"github.com/hyperjump/otoshimono/internal/storage"
	"github.com/hyperjump/otoshimono/pkg/utils"
)

const maxTitleInMessage = 80

// DispatchReport counts the outcome of one dispatch.
type DispatchReport struct {
	NotificationsCreated int `json:"notifications_created"`
	NotificationsFailed  int `json:"notifications_failed"`
	EmailsSent           int `json:"emails_sent"`
	EmailsFailed         int `json:"emails_failed"`
}

// Dispatcher creates match notifications for both parties of every match and
// emails them when the match is high-confidence. Each write is attempted on
// its own; a failure is logged and counted and the rest of the batch continues.
type Dispatcher struct {
	notifications  storage.NotificationWriter
	users          storage.UserFinder
	mailer         mail.Mailer
	emailThreshold int
	logger         *zap.Logger
}

// NewDispatcher creates a Dispatcher. A nil mailer disables email.
func NewDispatcher(
	notifications storage.NotificationWriter,
	users storage.UserFinder,
	mailer mail.Mailer,
	emailThreshold int,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		notifications:  notifications,
		users:          users,
		mailer:         mailer,
		emailThreshold: emailThreshold,
		logger:         logger,
	}
}

// Dispatch delivers notifications for all matches, then emails.
func (d *Dispatcher) Dispatch(ctx context.Context, source *models.Item, sourceType models.ItemType, matches []MatchCandidate) DispatchReport {
	var report DispatchReport

	for _, m := range matches {
		candidateType := sourceType.Opposite()
		d.notify(ctx, &report, source.PostedBy, source, m.Item, candidateType, m)
		d.notify(ctx, &report, m.Item.PostedBy, m.Item, source, sourceType, m)
	}

	if d.mailer == nil {
		return report
	}
	for _, m := range matches {
		if m.Score < d.emailThreshold {
			continue
		}
		d.email(ctx, &report, source.PostedBy, m.Item, sourceType.Opposite(), m.Score)
		d.email(ctx, &report, m.Item.PostedBy, source, sourceType, m.Score)
	}
	return report
}

// notify tells the owner of own about other, an item of otherType.
func (d *Dispatcher) notify(
	ctx context.Context,
	report *DispatchReport,
	userID string,
	own, other *models.Item,
	otherType models.ItemType,
	m MatchCandidate,
) {
	n := &models.Notification{
		UserID:  userID,
		Title:   fmt.Sprintf("Possible match for your %s item", otherType.Opposite()),
		Message: matchMessage(own, other, otherType, m.Score),
		Type:    models.NotificationTypeMatch,
		Data: &models.NotificationData{
			ItemID:     other.ID,
			ItemType:   otherType,
			MatchScore: m.Score,
			Factors:    m.Factors,
		},
	}
	if err := d.notifications.CreateNotification(ctx, n); err != nil {
		report.NotificationsFailed++
		d.logger.Warn("match notification failed",
			zap.String("user_id", userID),
			zap.String("item_id", own.ID),
			zap.String("candidate_id", other.ID),
			zap.Error(err))
		return
	}
	report.NotificationsCreated++
}

func matchMessage(own, other *models.Item, otherType models.ItemType, score int) string {
	where := ""
	if other.Location != "" {
		where = " at " + utils.Truncate(other.Location, maxTitleInMessage)
	}
	return fmt.Sprintf("%s item %q%s looks like your item %q (%d%% match).",
		otherType.Label(),
		utils.Truncate(other.Title, maxTitleInMessage),
		where,
		utils.Truncate(own.Title, maxTitleInMessage),
		score)
}

// email tells userID about matched, an item of matchedType.
func (d *Dispatcher) email(
	ctx context.Context,
	report *DispatchReport,
	userID string,
	matched *models.Item,
	matchedType models.ItemType,
	score int,
) {
	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		report.EmailsFailed++
		d.logger.Warn("match email recipient lookup failed",
			zap.String("user_id", userID),
			zap.String("item_id", matched.ID),
			zap.Error(err))
		return
	}
	if user.Email == "" {
		report.EmailsFailed++
		d.logger.Warn("match email recipient has no address", zap.String("user_id", userID))
		return
	}
	if err := d.mailer.SendMatchEmail(ctx, user.Email, matchedType.Label(), matched.Title, score); err != nil {
		report.EmailsFailed++
		d.logger.Warn("match email failed",
			zap.String("user_id", userID),
			zap.String("item_id", matched.ID),
			zap.Error(err))
		return
	}
	report.EmailsSent++
}
