package checkInOut

import (
	"context"
	"errors"
	"time"

	"Backend-Volunteer-Hours/src/apperror"
	"Backend-Volunteer-Hours/src/models"
	"Backend-Volunteer-Hours/src/services/hourapi"
)

// fetchLatest reads the latest session with the retry policy.
func (s *Service) fetchLatest(ctx context.Context, subjectUserID string) (*models.HourRecord, error) {
	var record *models.HourRecord
	err := s.retry.Do(ctx, s.clock, retryableRead, func(ctx context.Context) error {
		r, _, err := s.remote.FetchLatestSession(ctx, subjectUserID)
		record = r
		return err
	})
	if err != nil {
		return nil, asTransient(err)
	}
	return record, nil
}

func (s *Service) fetchSessions(ctx context.Context, filter hourapi.Filter) ([]models.HourRecord, error) {
	var rows []models.HourRecord
	err := s.retry.Do(ctx, s.clock, retryableRead, func(ctx context.Context) error {
		r, err := s.remote.FetchSessions(ctx, filter)
		rows = r
		return err
	})
	if err != nil {
		return nil, asTransient(err)
	}
	return rows, nil
}

// retryableRead retries transport failures and server errors.
func retryableRead(err error) bool {
	switch apperror.KindOf(err) {
	case "", apperror.KindTransientNetwork:
		return true
	case apperror.KindRemoteRejection:
		var e *apperror.Error
		if errors.As(err, &e) {
			return e.Code >= 500
		}
	}
	return false
}

// asTransient classifies untyped errors as network failures.
func asTransient(err error) error {
	if err == nil || apperror.KindOf(err) != "" {
		return err
	}
	return apperror.Wrap(err, apperror.KindTransientNetwork, "attendance service unreachable")
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
