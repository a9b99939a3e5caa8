package service

import (
	"context"
	"strings"
	"time"

	"library_api/internal/logger"
	"library_api/internal/models"
	"library_api/internal/repository"
)

type ActivityLogService struct {
	activityRepo repository.ActivityRepo
}

func NewActivityLogService(activityRepo repository.ActivityRepo) *ActivityLogService {
	return &ActivityLogService{activityRepo: activityRepo}
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeActivityType trims spaces and uppercases the activity type filter.
func normalizeActivityType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}
	return from, to, normalizeActivityType(f.Type), nil
}

func (s *ActivityLogService) List(ctx context.Context, f LogFilter) ([]models.Activity, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.activityRepo.List(ctx, from, to, typ)
}

// recorder appends activity entries on behalf of the write services. Recording is best-effort:
// a failed append is logged and never fails the operation that triggered it.
type recorder struct {
	repo  repository.ActivityRepo
	clock Clock
	log   *logger.Logger
}

func newRecorder(repo repository.ActivityRepo, clock Clock, log *logger.Logger) *recorder {
	return &recorder{repo: repo, clock: clock, log: log}
}

func (r *recorder) record(ctx context.Context, typ string, userID, bookID *int, desc string, meta map[string]any) {
	if r == nil || r.repo == nil {
		return
	}
	a := models.Activity{
		OccurredAt:  r.clock.Now().UTC(),
		Type:        typ,
		UserID:      userID,
		BookID:      bookID,
		Description: desc,
	}
	if meta != nil {
		a.Metadata = meta
	}
	if err := r.repo.Append(ctx, a); err != nil && r.log != nil {
		r.log.Warnw("activity not recorded", "type", typ, "description", desc, "err", err)
	}
}

func intPtr(v int) *int { return &v }
