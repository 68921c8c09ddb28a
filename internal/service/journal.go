package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"tank_edge/internal/models"
	"tank_edge/internal/repository"
)

const maxListLimit = 1000

type JournalService struct {
	repo repository.JournalRepo
}

func NewJournalService(repo repository.JournalRepo) *JournalService {
	return &JournalService{repo: repo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errUnknownStream    = errors.New("unknown stream: expected READINGS or ALERTS")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeStream trims spaces and uppercases the stream filter.
func normalizeStream(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates them.
func normalizeAndValidateFilter(f RunFilter) (RunFilter, error) {
	out := RunFilter{
		From:   normalizeToUTC(f.From),
		To:     normalizeToUTC(f.To),
		Stream: normalizeStream(f.Stream),
		Limit:  f.Limit,
	}

	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return RunFilter{}, errInvalidTimeRange
	}
	switch out.Stream {
	case "", models.StreamReadings, models.StreamAlerts:
	default:
		return RunFilter{}, errUnknownStream
	}
	if out.Limit > maxListLimit {
		out.Limit = maxListLimit
	}
	return out, nil
}

func (s *JournalService) List(ctx context.Context, f RunFilter) ([]models.SyncRun, error) {
	f, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, f.From, f.To, f.Stream, f.Limit)
}

// IsValidationError reports whether err came from filter validation.
func IsValidationError(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errUnknownStream)
}
