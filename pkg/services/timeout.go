package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/cache"
	"github.com/ekaya-inc/content-engine/pkg/metrics"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/repositories"
)

// TimeoutKinds are the entity kinds the timeout checker scans.
var TimeoutKinds = []models.EntityKind{
	models.EntityKindIdea,
	models.EntityKindSuggestion,
	models.EntityKindGeneralContent,
}

// TimeoutService reconciles entities stuck in processing past their deadline.
// An entity is timed out iff status = processing and now > processing_timeout_at.
// Each row flips to failed independently; a second check with no intervening
// change updates nothing.
type TimeoutService interface {
	// ForceTimeoutCheck scans one kind for one user.
	ForceTimeoutCheck(ctx context.Context, userID string, kind models.EntityKind) (*models.TimeoutCheckResult, error)

	// SweepAll scans every kind for every user. ctx must carry a system scope.
	SweepAll(ctx context.Context) ([]*models.TimeoutCheckResult, error)
}

type timedOutMarker func(ctx context.Context, userID string, now time.Time, message string) ([]*models.TimedOutItem, error)

type timeoutService struct {
	markers       map[models.EntityKind]timedOutMarker
	cache         cache.Invalidator
	notifications NotificationService
	audit         AuditService
	timeout       time.Duration
	inflight      singleflight.Group
	now           func() time.Time
	logger        *zap.Logger
}

// NewTimeoutService creates a new TimeoutService.
func NewTimeoutService(
	ideas repositories.IdeaRepository,
	suggestions repositories.SuggestionRepository,
	general repositories.GeneralContentRepository,
	invalidator cache.Invalidator,
	notifications NotificationService,
	audit AuditService,
	processingTimeout time.Duration,
	logger *zap.Logger,
) TimeoutService {
	if processingTimeout <= 0 {
		processingTimeout = models.DefaultProcessingTimeout
	}
	return &timeoutService{
		markers: map[models.EntityKind]timedOutMarker{
			models.EntityKindIdea:           ideas.MarkTimedOut,
			models.EntityKindSuggestion:     suggestions.MarkTimedOut,
			models.EntityKindGeneralContent: general.MarkTimedOut,
		},
		cache:         invalidator,
		notifications: notifications,
		audit:         audit,
		timeout:       processingTimeout,
		now:           time.Now,
		logger:        logger.Named("timeout-checker"),
	}
}

var _ TimeoutService = (*timeoutService)(nil)

func (s *timeoutService) ForceTimeoutCheck(ctx context.Context, userID string, kind models.EntityKind) (*models.TimeoutCheckResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("timeout check: %w", apperrors.ErrForbidden)
	}
	v, err, _ := s.inflight.Do("timeout:"+kind.String()+":"+userID, func() (any, error) {
		return s.check(ctx, userID, kind)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.TimeoutCheckResult), nil
}

func (s *timeoutService) SweepAll(ctx context.Context) ([]*models.TimeoutCheckResult, error) {
	results := make([]*models.TimeoutCheckResult, 0, len(TimeoutKinds))
	for _, kind := range TimeoutKinds {
		result, err := s.check(ctx, "", kind)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *timeoutService) check(ctx context.Context, userID string, kind models.EntityKind) (*models.TimeoutCheckResult, error) {
	mark, ok := s.markers[kind]
	if !ok {
		return nil, apperrors.NewValidationError("kind", fmt.Sprintf("timeout checks are not supported for %s", kind))
	}

	items, err := mark(ctx, userID, s.now(), s.timeoutMessage())
	if err != nil {
		return nil, fmt.Errorf("check timed out %s: %w", inflection.Plural(kindNoun(kind)), err)
	}
	for _, item := range items {
		item.Kind = kind
	}

	result := &models.TimeoutCheckResult{
		Kind:         kind,
		UpdatedCount: len(items),
		FailedItems:  items,
	}
	if len(items) == 0 {
		return result, nil
	}

	metrics.RecordTimedOut(kind.String(), len(items))
	s.settle(ctx, kind, items)

	s.logger.Info("Timed out entities marked failed",
		zap.String("entity_type", kind.String()),
		zap.String("scope_user", userID),
		zap.Int("updated_count", len(items)))
	return result, nil
}

// settle audits each row and, per affected user, invalidates the collection and
// records one notification.
func (s *timeoutService) settle(ctx context.Context, kind models.EntityKind, items []*models.TimedOutItem) {
	byUser := make(map[string]int)
	var users []string
	for _, item := range items {
		id := item.ID
		s.audit.Record(ctx, kind, &id, models.AuditActionTimeout, statusChange(models.StatusProcessing, models.StatusFailed))
		if _, seen := byUser[item.UserID]; !seen {
			users = append(users, item.UserID)
		}
		byUser[item.UserID]++
	}

	for _, user := range users {
		n := byUser[user]
		s.cache.Invalidate(ctx, cache.NewKey(kind, user))
		s.notifications.Notify(ctx, user, models.NotificationProcessingTimedOut,
			"Processing timed out", timedOutSummary(kind, n), kind, nil)
	}
}

func (s *timeoutService) timeoutMessage() string {
	return fmt.Sprintf("processing timed out after %d minutes", int(s.timeout.Minutes()))
}

// kindNoun is the human name of an entity kind: "content_idea" -> "content idea".
func kindNoun(kind models.EntityKind) string {
	return strings.ReplaceAll(kind.String(), "_", " ")
}

// countNoun renders "1 content idea" or "3 content ideas".
func countNoun(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, inflection.Singular(noun))
	}
	return fmt.Sprintf("%d %s", n, inflection.Plural(noun))
}

func timedOutSummary(kind models.EntityKind, n int) string {
	verb := "were"
	if n == 1 {
		verb = "was"
	}
	return fmt.Sprintf("%s %s marked failed after exceeding the processing deadline. You can retry them.", countNoun(n, kindNoun(kind)), verb)
}
