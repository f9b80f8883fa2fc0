package checkInOut

import (
	"context"
	"strings"
	"time"

	"Backend-Volunteer-Hours/src/apperror"
	"Backend-Volunteer-Hours/src/clock"
	"Backend-Volunteer-Hours/src/models"
	"Backend-Volunteer-Hours/src/services/approval"
	"Backend-Volunteer-Hours/src/services/hourapi"
	"Backend-Volunteer-Hours/src/services/identity"
	"Backend-Volunteer-Hours/src/services/sessionstore"
	"Backend-Volunteer-Hours/src/services/timeservice"
	"Backend-Volunteer-Hours/src/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// SkewTolerance is how far a checkout may precede the recorded start.
	SkewTolerance = 2 * time.Second
	// maxClockDrift bounds the format/parse round trip of a generated time.
	maxClockDrift = time.Minute

	placeholderPrefix = "local-"
)

type CheckinRequest struct {
	SubjectUserID  string `json:"userId" validate:"required"`
	SubjectName    string `json:"legalName"`
	OperatorUserID string `json:"operateUserId" validate:"required"`
	OperatorName   string `json:"operateLegalName" validate:"required"`
}

type CheckinResult struct {
	SessionID string `json:"sessionId"`
	StartTime string `json:"startTime"`
	Message   string `json:"message"`
}

type CheckoutRequest struct {
	SubjectUserID  string `json:"userId" validate:"required"`
	OperatorUserID string `json:"operateUserId" validate:"required"`
	OperatorName   string `json:"operateLegalName" validate:"required"`
	Remark         string `json:"remark" validate:"max=500"`
	// EndTime overrides "now", for backfill and overtime closes.
	EndTime time.Time `json:"-"`
}

type CheckoutResult struct {
	SessionID      string                     `json:"sessionId"`
	StartTime      string                     `json:"startTime"`
	EndTime        string                     `json:"endTime"`
	Duration       timeservice.DurationResult `json:"duration"`
	AutoApproved   bool                       `json:"autoApproved"`
	ApprovalReason approval.Reason            `json:"approvalReason,omitempty"`
	Warning        string                     `json:"warning,omitempty"`
	Message        string                     `json:"message"`
}

// Service orchestrates check-in and check-out against the hour-record
// service. Reads are retried with backoff; mutations are sent once.
type Service struct {
	remote   hourapi.Remote
	store    *sessionstore.Store
	times    *timeservice.Service
	identity identity.Provider
	approval *approval.Engine
	retry    utils.RetryPolicy
	clock    clock.Clock
	validate *validator.Validate
	logger   *zap.Logger
}

type Option func(*Service)

func WithApprovalEngine(e *approval.Engine) Option {
	return func(s *Service) { s.approval = e }
}

func WithRetryPolicy(p utils.RetryPolicy) Option {
	return func(s *Service) { s.retry = p }
}

// WithClock sets the clock used for retry backoff.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(remote hourapi.Remote, store *sessionstore.Store, times *timeservice.Service, idp identity.Provider, opts ...Option) *Service {
	s := &Service{
		remote:   remote,
		store:    store,
		times:    times,
		identity: idp,
		approval: approval.NewEngine(),
		retry:    utils.DefaultRetryPolicy(),
		clock:    clock.Real(),
		validate: validator.New(),
		logger:   zap.L().Named("checkInOut"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckIn opens a session for the subject starting now.
func (s *Service) CheckIn(ctx context.Context, req CheckinRequest) (CheckinResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return CheckinResult{}, apperror.Wrap(err, apperror.KindParameter, "volunteer and operator are required")
	}

	now := s.times.Now()
	startTime := s.times.FormatForServer(now)
	parsed, ok := s.times.ParseServerTime(startTime)
	if !ok || absDuration(parsed.Sub(now)) > maxClockDrift {
		s.logger.Error("generated check-in time is implausible",
			zap.String("subject_user_id", req.SubjectUserID),
			zap.String("start_time", startTime),
			zap.Time("now", now),
		)
		return CheckinResult{}, apperror.Newf(apperror.KindClock, "device clock produced an invalid time %q", startTime)
	}

	return s.submitCheckin(ctx, req, startTime)
}

func (s *Service) submitCheckin(ctx context.Context, req CheckinRequest, startTime string) (CheckinResult, error) {
	res, err := s.remote.SubmitSession(ctx, hourapi.SignRequest{
		SubjectUserID:  req.SubjectUserID,
		SubjectName:    req.SubjectName,
		Type:           models.SignTypeCheckin,
		Timestamp:      startTime,
		OperatorUserID: req.OperatorUserID,
		OperatorName:   req.OperatorName,
	})
	if err == nil && !res.OK() {
		err = apperror.Rejection(res.Code, hourapi.FriendlyMessage(res.Code, res.Msg))
	}
	if err != nil {
		err = asTransient(err)
		s.logger.Error("check-in failed",
			zap.String("subject_user_id", req.SubjectUserID),
			zap.String("operator_user_id", req.OperatorUserID),
			zap.String("start_time", startTime),
			zap.Error(err),
		)
		return CheckinResult{}, err
	}

	sessionID := ""
	if res.Data != nil {
		sessionID = res.Data.ID
	}
	if sessionID == "" {
		sessionID = s.resolveSessionID(ctx, req.SubjectUserID, startTime)
	}
	s.store.CacheCheckin(ctx, req.SubjectUserID, sessionID, startTime)

	s.logger.Info("checked in",
		zap.String("subject_user_id", req.SubjectUserID),
		zap.String("operator_user_id", req.OperatorUserID),
		zap.String("session_id", sessionID),
		zap.String("start_time", startTime),
	)
	return CheckinResult{SessionID: sessionID, StartTime: startTime, Message: "checked in"}, nil
}

// resolveSessionID finds the id of a session the server accepted without
// echoing it back. A placeholder is used when the read fails.
func (s *Service) resolveSessionID(ctx context.Context, subjectUserID, startTime string) string {
	record, err := s.store.GetOpenSession(ctx, subjectUserID, s.fetchLatest)
	if err == nil && record != nil && record.ID != "" {
		return record.ID
	}
	id := placeholderPrefix + uuid.NewString()
	s.logger.Warn("session id not yet visible, using placeholder",
		zap.String("subject_user_id", subjectUserID),
		zap.String("start_time", startTime),
		zap.String("session_id", id),
		zap.Error(err),
	)
	return id
}

// CheckOut closes the subject's open session at now, or at req.EndTime
// when set.
func (s *Service) CheckOut(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return CheckoutResult{}, apperror.Wrap(err, apperror.KindParameter, "volunteer and operator are required")
	}

	record, err := s.openSessionForCheckout(ctx, req.SubjectUserID)
	if err != nil {
		return CheckoutResult{}, err
	}
	return s.closeSession(ctx, req, record)
}

// closeSession submits the check-out of record, an open session of
// req.SubjectUserID.
func (s *Service) closeSession(ctx context.Context, req CheckoutRequest, record *models.HourRecord) (CheckoutResult, error) {
	start, ok := s.times.ParseServerTime(record.StartTime)
	if !ok {
		s.logger.Error("open session has no usable start time",
			zap.String("subject_user_id", req.SubjectUserID),
			zap.String("session_id", record.ID),
			zap.String("start_time", record.StartTime),
		)
		return CheckoutResult{}, apperror.Newf(apperror.KindDataIntegrity,
			"session %s has an invalid check-in time, %s", record.ID, apperror.ContactAdmin)
	}

	now := s.times.Now()
	end := now
	if !req.EndTime.IsZero() {
		end = req.EndTime
	}
	if end.Before(start.Add(-SkewTolerance)) {
		return CheckoutResult{}, apperror.Newf(apperror.KindTimeValidation,
			"check-out time %s is before check-in time %s", s.times.FormatForServer(end), record.StartTime)
	}
	if end.Before(start) {
		end = start
	}

	var warning string
	elapsed := end.Sub(start)
	switch {
	case elapsed > timeservice.TooLongThreshold:
		s.logger.Error("session exceeds 24 hours, refusing checkout",
			zap.String("subject_user_id", req.SubjectUserID),
			zap.String("session_id", record.ID),
			zap.String("start_time", record.StartTime),
			zap.Duration("elapsed", elapsed),
		)
		return CheckoutResult{}, apperror.Newf(apperror.KindDataIntegrity,
			"session %s has been open for %.1f hours and needs a manual reset, %s",
			record.ID, elapsed.Hours(), apperror.ContactAdmin)
	case elapsed > timeservice.OvertimeThreshold:
		warning = "session is longer than 12 hours and will be reviewed"
	}

	level := s.operatorLevel(ctx)
	decision := s.approval.Evaluate(level, start, end, req.Remark, now)
	endTime := s.times.FormatForServer(end)

	res, err := s.remote.SubmitSession(ctx, hourapi.SignRequest{
		SubjectUserID:  req.SubjectUserID,
		Type:           models.SignTypeCheckout,
		Timestamp:      endTime,
		OperatorUserID: req.OperatorUserID,
		OperatorName:   req.OperatorName,
		SessionID:      record.ID,
		Remark:         req.Remark,
		AutoApprove:    decision.AutoApprove,
	})
	if err == nil && !res.OK() {
		err = apperror.Rejection(res.Code, hourapi.FriendlyMessage(res.Code, res.Msg))
	}
	if err != nil {
		err = asTransient(err)
		s.logger.Error("check-out failed",
			zap.String("subject_user_id", req.SubjectUserID),
			zap.String("operator_user_id", req.OperatorUserID),
			zap.String("session_id", record.ID),
			zap.String("start_time", record.StartTime),
			zap.String("end_time", endTime),
			zap.Error(err),
		)
		return CheckoutResult{}, err
	}

	s.store.ClearCheckin(ctx, req.SubjectUserID)

	duration := s.times.CalculateDuration(start, end)
	s.logger.Info("checked out",
		zap.String("subject_user_id", req.SubjectUserID),
		zap.String("operator_user_id", req.OperatorUserID),
		zap.String("session_id", record.ID),
		zap.String("start_time", record.StartTime),
		zap.String("end_time", endTime),
		zap.Int("minutes", duration.Minutes),
		zap.Bool("auto_approved", decision.AutoApprove),
	)

	return CheckoutResult{
		SessionID:      record.ID,
		StartTime:      record.StartTime,
		EndTime:        endTime,
		Duration:       duration,
		AutoApproved:   decision.AutoApprove,
		ApprovalReason: decision.Reason,
		Warning:        warning,
		Message:        "checked out, " + duration.Display,
	}, nil
}

// openSessionForCheckout does the authoritative read. A fresh cache entry
// stands in for a session the server has accepted but not yet listed.
func (s *Service) openSessionForCheckout(ctx context.Context, subjectUserID string) (*models.HourRecord, error) {
	record, err := s.store.LatestSession(ctx, subjectUserID, s.fetchLatest)
	if err != nil {
		return nil, err
	}
	if record != nil && record.IsOpen() {
		return record, nil
	}

	// The store keeps the cache entry only while the latest listed
	// session is older than the cached check-in.
	cached, ok := s.store.CachedCheckin(ctx, subjectUserID)
	if !ok {
		if record != nil {
			return nil, apperror.Newf(apperror.KindAlreadyCheckedOut,
				"volunteer %s already checked out at %s", subjectUserID, *record.EndTime)
		}
		return nil, apperror.Newf(apperror.KindNotCheckedIn, "volunteer %s is not checked in", subjectUserID)
	}
	if strings.HasPrefix(cached.SessionID, placeholderPrefix) {
		return nil, apperror.New(apperror.KindNotCheckedIn, "check-in is not confirmed by the server yet, try again shortly")
	}
	fields := []zap.Field{
		zap.String("subject_user_id", subjectUserID),
		zap.String("session_id", cached.SessionID),
		zap.String("start_time", cached.StartTime),
	}
	if record != nil {
		fields = append(fields, zap.String("latest_listed_session_id", record.ID))
	}
	s.logger.Warn("open session not listed yet, using cached check-in", fields...)
	return &models.HourRecord{ID: cached.SessionID, UserID: subjectUserID, StartTime: cached.StartTime}, nil
}

func (s *Service) operatorLevel(ctx context.Context) approval.PermissionLevel {
	op, err := s.identity.OperatorIdentity(ctx)
	if err != nil {
		s.logger.Warn("operator identity unavailable, auto approval disabled", zap.Error(err))
		return ""
	}
	return op.PermissionLevel
}

// LatestSession is the retried authoritative read of the subject's
// latest session.
func (s *Service) LatestSession(ctx context.Context, subjectUserID string) (*models.HourRecord, error) {
	return s.store.LatestSession(ctx, subjectUserID, s.fetchLatest)
}
