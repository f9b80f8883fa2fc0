package checkInOut

import (
	"context"
	"strings"
	"time"

	"Backend-Volunteer-Hours/src/apperror"
	"Backend-Volunteer-Hours/src/models"
	"Backend-Volunteer-Hours/src/services/hourapi"

	"go.uber.org/zap"
)

// overlapLookback is how many recent sessions the overlap check reads.
const overlapLookback = 50

type TimeEntryRequest struct {
	SubjectUserID  string `json:"userId" validate:"required"`
	SubjectName    string `json:"legalName"`
	OperatorUserID string `json:"operateUserId" validate:"required"`
	OperatorName   string `json:"operateLegalName" validate:"required"`
	StartTime      string `json:"startTime" validate:"required"`
	EndTime        string `json:"endTime" validate:"required"`
	Remark         string `json:"remark" validate:"max=500"`
}

// CheckOverlap reports whether [start, end] intersects one of the
// subject's recent sessions. Open sessions end now. An interval starting
// exactly where another ends does not overlap. A failed read reports no
// overlap.
func (s *Service) CheckOverlap(ctx context.Context, subjectUserID string, start, end time.Time) bool {
	rows, err := s.fetchSessions(ctx, hourapi.Filter{UserID: subjectUserID, Limit: overlapLookback})
	if err != nil {
		s.logger.Warn("overlap check skipped, session list unavailable",
			zap.String("subject_user_id", subjectUserID),
			zap.Error(err),
		)
		return false
	}

	now := s.times.Now()
	for _, r := range rows {
		rs, ok := s.times.ParseServerTime(r.StartTime)
		if !ok {
			continue
		}
		re := now
		if !r.IsOpen() {
			if re, ok = s.times.ParseServerTime(*r.EndTime); !ok {
				continue
			}
		}
		if Overlaps(start, end, rs, re) {
			s.logger.Info("overlapping session found",
				zap.String("subject_user_id", subjectUserID),
				zap.String("session_id", r.ID),
				zap.String("start_time", r.StartTime),
			)
			return true
		}
	}
	return false
}

// Overlaps tests candidate [a, b] against stored [s, e).
func Overlaps(a, b, s, e time.Time) bool {
	startsInside := !a.Before(s) && a.Before(e)
	endsInside := b.After(s) && !b.After(e)
	covers := !a.After(s) && !b.Before(e)
	return startsInside || endsInside || covers
}

// PerformTimeEntry backfills a finished session: a check-in at StartTime
// followed by a check-out at EndTime against the new session.
func (s *Service) PerformTimeEntry(ctx context.Context, req TimeEntryRequest) (CheckoutResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return CheckoutResult{}, apperror.Wrap(err, apperror.KindParameter, "volunteer, operator, start and end time are required")
	}

	start, ok := s.times.ParseServerTime(req.StartTime)
	if !ok {
		return CheckoutResult{}, apperror.Newf(apperror.KindParameter, "invalid start time %q", req.StartTime)
	}
	end, ok := s.times.ParseServerTime(req.EndTime)
	if !ok {
		return CheckoutResult{}, apperror.Newf(apperror.KindParameter, "invalid end time %q", req.EndTime)
	}
	if !start.Before(end) {
		return CheckoutResult{}, apperror.New(apperror.KindTimeValidation, "start time must be before end time")
	}
	if end.After(s.times.Now()) {
		return CheckoutResult{}, apperror.New(apperror.KindTimeValidation, "cannot record time in the future")
	}
	if end.Sub(start) > 24*time.Hour {
		return CheckoutResult{}, apperror.New(apperror.KindTimeValidation, "a single entry cannot exceed 24 hours")
	}

	if s.CheckOverlap(ctx, req.SubjectUserID, start, end) {
		return CheckoutResult{}, apperror.Newf(apperror.KindOverlap,
			"%s to %s overlaps an existing session", req.StartTime, req.EndTime)
	}

	startTime := s.times.FormatForServer(start)
	checkin, err := s.submitCheckin(ctx, CheckinRequest{
		SubjectUserID:  req.SubjectUserID,
		SubjectName:    req.SubjectName,
		OperatorUserID: req.OperatorUserID,
		OperatorName:   req.OperatorName,
	}, startTime)
	if err != nil {
		return CheckoutResult{}, err
	}

	checkout := CheckoutRequest{
		SubjectUserID:  req.SubjectUserID,
		OperatorUserID: req.OperatorUserID,
		OperatorName:   req.OperatorName,
		Remark:         req.Remark,
		EndTime:        end,
	}

	// Close the new session by id; the subject's latest session may be a
	// later one.
	var result CheckoutResult
	if strings.HasPrefix(checkin.SessionID, placeholderPrefix) {
		result, err = s.CheckOut(ctx, checkout)
	} else {
		result, err = s.closeSession(ctx, checkout, &models.HourRecord{
			ID:        checkin.SessionID,
			UserID:    req.SubjectUserID,
			StartTime: startTime,
		})
	}
	if err != nil {
		s.logger.Error("time entry left an open session",
			zap.String("subject_user_id", req.SubjectUserID),
			zap.String("operator_user_id", req.OperatorUserID),
			zap.String("session_id", checkin.SessionID),
			zap.String("start_time", req.StartTime),
			zap.String("end_time", req.EndTime),
			zap.Error(err),
		)
		return CheckoutResult{}, err
	}
	return result, nil
}
