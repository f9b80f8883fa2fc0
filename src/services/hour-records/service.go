// Package hourrecords is the server side of volunteer check-in and
// check-out: it opens and closes hour records and sweeps sessions left
// open past 12 hours.
package hourrecords

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"Backend-Volunteer-Hours/src/apperror"
	"Backend-Volunteer-Hours/src/models"
	"Backend-Volunteer-Hours/src/services/approval"
	"Backend-Volunteer-Hours/src/services/timeservice"
	"Backend-Volunteer-Hours/src/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SkewTolerance    = 2 * time.Second
	DefaultListLimit = 50
	MaxListLimit     = 500
	SweepRemark      = "[system-auto-checkout][overtime] server sweep"
	SweepOperatorID  = "system"
	SweepOperator    = "System"
)

// Actor is the authenticated caller, read from the JWT claims.
type Actor struct {
	UserID    string
	LegalName string
	Role      string
}

// privileged actors may act on any volunteer; others only on themselves.
func (a Actor) privileged() bool {
	switch a.Role {
	case utils.RolePrimaryAdmin, utils.RoleSchoolAdmin, utils.RoleStaff:
		return true
	}
	return false
}

type Service struct {
	repo     Repository
	times    *timeservice.Service
	approval *approval.Engine
	logger   *zap.Logger
}

func NewService(repo Repository, times *timeservice.Service, engine *approval.Engine, logger *zap.Logger) *Service {
	if engine == nil {
		engine = approval.NewEngine()
	}
	if logger == nil {
		logger = zap.L().Named("hourrecords")
	}
	return &Service{repo: repo, times: times, approval: engine, logger: logger}
}

func (s *Service) authorize(actor Actor, userID string) error {
	if actor.privileged() || actor.UserID == userID {
		return nil
	}
	return apperror.Rejection(http.StatusForbidden, "operator lacks permission for this volunteer")
}

// Sign opens (type 1) or closes (type 2) a session.
func (s *Service) Sign(ctx context.Context, actor Actor, req models.SignRecordRequest) (*models.HourRecord, error) {
	if err := s.authorize(actor, req.UserID); err != nil {
		return nil, err
	}
	switch req.Type {
	case models.SignTypeCheckin:
		return s.open(ctx, req)
	case models.SignTypeCheckout:
		return s.close(ctx, actor, req)
	}
	return nil, apperror.Newf(apperror.KindParameter, "unknown sign type %d", req.Type)
}

func (s *Service) open(ctx context.Context, req models.SignRecordRequest) (*models.HourRecord, error) {
	start, ok := s.times.ParseServerTime(req.StartTime)
	if !ok {
		return nil, apperror.Newf(apperror.KindParameter, "invalid startTime %q", req.StartTime)
	}

	existing, err := s.repo.FindOpen(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Rejection(http.StatusConflict,
			fmt.Sprintf("user %s already has an open session %s", req.UserID, existing.ID))
	}

	now := s.times.CurrentLocalTime()
	rec := &models.HourRecord{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		LegalName:        req.LegalName,
		OperateUserID:    req.OperateUserID,
		OperateLegalName: req.OperateLegalName,
		StartTime:        s.times.FormatForServer(start),
		Remark:           req.Remark,
		ApprovalStatus:   models.ApprovalStatusPending,
		CreateTime:       now,
		UpdateTime:       now,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("session opened",
		zap.String("session_id", rec.ID),
		zap.String("subject_user_id", rec.UserID),
		zap.String("operator_user_id", rec.OperateUserID),
		zap.String("start_time", rec.StartTime),
	)
	return rec, nil
}

func (s *Service) close(ctx context.Context, actor Actor, req models.SignRecordRequest) (*models.HourRecord, error) {
	rec, err := s.repo.FindByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.UserID != req.UserID {
		return nil, apperror.Newf(apperror.KindNotCheckedIn, "no session %s for user %s", req.ID, req.UserID)
	}
	if !rec.IsOpen() {
		return nil, apperror.Newf(apperror.KindAlreadyCheckedOut, "session %s already closed at %s", rec.ID, *rec.EndTime)
	}

	start, ok := s.times.ParseServerTime(rec.StartTime)
	if !ok {
		return nil, apperror.Newf(apperror.KindDataIntegrity, "session %s has unreadable start %q", rec.ID, rec.StartTime)
	}
	end, ok := s.times.ParseServerTime(req.EndTime)
	if !ok {
		return nil, apperror.Newf(apperror.KindParameter, "invalid endTime %q", req.EndTime)
	}
	if end.Before(start.Add(-SkewTolerance)) {
		return nil, apperror.Newf(apperror.KindTimeValidation,
			"endTime %s is before startTime %s", req.EndTime, rec.StartTime)
	}
	if end.Before(start) {
		end = start
	}

	autoApproved := req.AutoApprovalStatus &&
		s.approval.ShouldAutoApprove(approval.PermissionLevel(actor.Role), start, end, req.Remark, s.times.Now())
	status := models.ApprovalStatusPending
	if autoApproved {
		status = models.ApprovalStatusApproved
	}

	closure := Closure{
		EndTime:          s.times.FormatForServer(end),
		Remark:           req.Remark,
		OperateUserID:    req.OperateUserID,
		OperateLegalName: req.OperateLegalName,
		ApprovalStatus:   status,
		AutoApproved:     autoApproved,
		UpdateTime:       s.times.CurrentLocalTime(),
	}
	closed, err := s.repo.Close(ctx, rec.ID, closure)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, apperror.Newf(apperror.KindAlreadyCheckedOut, "session %s was closed concurrently", rec.ID)
	}

	s.logger.Info("session closed",
		zap.String("session_id", rec.ID),
		zap.String("subject_user_id", rec.UserID),
		zap.String("operator_user_id", req.OperateUserID),
		zap.String("start_time", rec.StartTime),
		zap.String("end_time", closure.EndTime),
		zap.Bool("auto_approved", autoApproved),
	)
	return s.repo.FindByID(ctx, rec.ID)
}

// Latest returns the newest record of userID, or nil.
func (s *Service) Latest(ctx context.Context, actor Actor, userID string) (*models.HourRecord, error) {
	if userID == "" {
		return nil, apperror.New(apperror.KindParameter, "userId is required")
	}
	if err := s.authorize(actor, userID); err != nil {
		return nil, err
	}
	return s.repo.Latest(ctx, userID)
}

// List returns records newest first. An empty userID lists everyone and
// requires a privileged actor.
func (s *Service) List(ctx context.Context, actor Actor, f models.HourRecordFilters, page models.PaginationParams) ([]models.HourRecord, int64, error) {
	if f.UserID == "" && !actor.privileged() {
		return nil, 0, apperror.Rejection(http.StatusForbidden, "operator may not list all hour records")
	}
	if f.UserID != "" {
		if err := s.authorize(actor, f.UserID); err != nil {
			return nil, 0, err
		}
	}
	return s.repo.List(ctx, f, page.Normalize(DefaultListLimit, MaxListLimit))
}

// SweepOvertime closes every session open longer than 12 hours at
// start + 12 hours, pending review. It returns how many were closed.
func (s *Service) SweepOvertime(ctx context.Context) (int, error) {
	cutoff := s.times.FormatForServer(s.times.Now().Add(-timeservice.OvertimeThreshold))
	recs, err := s.repo.FindOpenStartedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, rec := range recs {
		start, ok := s.times.ParseServerTime(rec.StartTime)
		if !ok {
			s.logger.Warn("skipping record with unreadable start",
				zap.String("session_id", rec.ID),
				zap.String("start_time", rec.StartTime),
			)
			continue
		}

		end := s.times.FormatForServer(start.Add(timeservice.OvertimeThreshold))
		done, err := s.repo.Close(ctx, rec.ID, Closure{
			EndTime:          end,
			Remark:           joinRemark(rec.Remark, SweepRemark),
			OperateUserID:    SweepOperatorID,
			OperateLegalName: SweepOperator,
			ApprovalStatus:   models.ApprovalStatusPending,
			UpdateTime:       s.times.CurrentLocalTime(),
		})
		if err != nil {
			return closed, err
		}
		if done {
			closed++
			s.logger.Info("overtime session closed",
				zap.String("session_id", rec.ID),
				zap.String("subject_user_id", rec.UserID),
				zap.String("start_time", rec.StartTime),
				zap.String("end_time", end),
			)
		}
	}
	return closed, nil
}

func joinRemark(existing, tag string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return tag
	}
	return tag + " " + existing
}
