package checkInOut

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"Backend-Volunteer-Hours/src/clock"
	"Backend-Volunteer-Hours/src/models"
	"Backend-Volunteer-Hours/src/services/approval"
	"Backend-Volunteer-Hours/src/services/hourapi"
	"Backend-Volunteer-Hours/src/services/identity"
	"Backend-Volunteer-Hours/src/services/sessionstore"
	"Backend-Volunteer-Hours/src/services/timeservice"
	"Backend-Volunteer-Hours/src/utils"

	"go.uber.org/zap"
)

// fakeRemote is an in-memory hour-record service.
type fakeRemote struct {
	mu      sync.Mutex
	records []models.HourRecord
	submits []hourapi.SignRequest
	nextID  int

	// unlisted records accept check-outs but are not returned by reads yet.
	unlisted map[string]bool

	submitErr  error
	submitCode int
	omitID     bool

	latestErrs  []error
	latestCalls int
	listErr     error
	listCalls   int
}

func (f *fakeRemote) SubmitSession(_ context.Context, req hourapi.SignRequest) (hourapi.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, req)

	if f.submitErr != nil {
		return hourapi.Response{}, f.submitErr
	}
	if f.submitCode != 0 {
		return hourapi.Response{Code: f.submitCode, Msg: "rejected"}, nil
	}

	switch req.Type {
	case models.SignTypeCheckin:
		f.nextID++
		rec := models.HourRecord{
			ID:             fmt.Sprintf("rec-%d", f.nextID),
			UserID:         req.SubjectUserID,
			StartTime:      req.Timestamp,
			ApprovalStatus: models.ApprovalStatusPending,
		}
		f.records = append(f.records, rec)
		if f.omitID {
			return hourapi.Response{Code: 200, Msg: "OK"}, nil
		}
		return hourapi.Response{Code: 200, Msg: "OK", Data: &rec}, nil
	case models.SignTypeCheckout:
		for i := range f.records {
			if f.records[i].ID == req.SessionID {
				end := req.Timestamp
				f.records[i].EndTime = &end
				f.records[i].Remark = req.Remark
				f.records[i].AutoApproved = req.AutoApprove
				return hourapi.Response{Code: 200, Msg: "OK"}, nil
			}
		}
		return hourapi.Response{Code: 404, Msg: "record not found"}, nil
	}
	return hourapi.Response{Code: 400, Msg: "bad type"}, nil
}

func (f *fakeRemote) FetchLatestSession(_ context.Context, subjectUserID string) (*models.HourRecord, hourapi.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestCalls++
	if len(f.latestErrs) > 0 {
		err := f.latestErrs[0]
		f.latestErrs = f.latestErrs[1:]
		if err != nil {
			return nil, hourapi.Response{}, err
		}
	}
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].UserID == subjectUserID && !f.unlisted[f.records[i].ID] {
			rec := f.records[i]
			return &rec, hourapi.Response{Code: 200, Data: &rec}, nil
		}
	}
	return nil, hourapi.Response{Code: 200}, nil
}

func (f *fakeRemote) FetchSessions(_ context.Context, filter hourapi.Filter) ([]models.HourRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var rows []models.HourRecord
	for _, r := range f.records {
		if r.UserID == filter.UserID && !f.unlisted[r.ID] {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func (f *fakeRemote) seed(rec models.HourRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
}

// seedUnlisted stores a session the reads do not return yet.
func (f *fakeRemote) seedUnlisted(rec models.HourRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unlisted == nil {
		f.unlisted = map[string]bool{}
	}
	f.unlisted[rec.ID] = true
	f.records = append(f.records, rec)
}

func (f *fakeRemote) lastSubmit() hourapi.SignRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits[len(f.submits)-1]
}

func (f *fakeRemote) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

type harness struct {
	svc    *Service
	remote *fakeRemote
	clk    *clock.FakeClock
	store  *sessionstore.Store
	times  *timeservice.Service
}

func newHarness(t *testing.T, now time.Time, level approval.PermissionLevel) *harness {
	t.Helper()
	clk := clock.Fake(now)
	nop := zap.NewNop()
	times := timeservice.New(timeservice.WithClock(clk), timeservice.WithLocation(time.UTC), timeservice.WithLogger(nop))
	store := sessionstore.New(sessionstore.NewMemoryKV(), sessionstore.WithClock(clk), sessionstore.WithTimes(times), sessionstore.WithLogger(nop))
	remote := &fakeRemote{}
	idp := identity.Static{
		Token:    "tok",
		Operator: identity.Operator{UserID: "900", DisplayName: "Ops", PermissionLevel: level},
	}

	svc := NewService(remote, store, times, idp,
		WithClock(clk),
		WithApprovalEngine(approval.NewEngine()),
		WithRetryPolicy(utils.DefaultRetryPolicy()),
		WithLogger(nop))
	return &harness{svc: svc, remote: remote, clk: clk, store: store, times: times}
}

func strPtr(s string) *string { return &s }
