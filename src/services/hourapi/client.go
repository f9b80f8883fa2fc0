// Package hourapi is the HTTP client of the hour-record service.
package hourapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"Backend-Volunteer-Hours/src/apperror"
	"Backend-Volunteer-Hours/src/models"

	"go.uber.org/zap"
)

// Response is the envelope returned by every endpoint.
type Response = models.APIResponse[models.HourRecord]

// SignRequest is one check-in (Type 1) or check-out (Type 2) submission.
// Timestamp is the naive local start or end time.
type SignRequest struct {
	SubjectUserID  string
	SubjectName    string
	Type           int
	Timestamp      string
	OperatorUserID string
	OperatorName   string
	SessionID      string // check-out only
	Remark         string
	AutoApprove    bool
}

type Filter struct {
	UserID string
	Limit  int
}

// Remote is the attendance service as seen by the client.
type Remote interface {
	SubmitSession(ctx context.Context, req SignRequest) (Response, error)
	FetchLatestSession(ctx context.Context, subjectUserID string) (*models.HourRecord, Response, error)
	FetchSessions(ctx context.Context, filter Filter) ([]models.HourRecord, error)
}

// CredentialSource supplies the bearer token of the current operator.
type CredentialSource interface {
	CurrentCredential(ctx context.Context) (string, bool)
}

type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialSource
	logger  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 20 * time.Second},
		creds:   creds,
		logger:  zap.L().Named("hourapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SubmitSession(ctx context.Context, req SignRequest) (Response, error) {
	form := url.Values{}
	form.Set("userId", req.SubjectUserID)
	form.Set("type", strconv.Itoa(req.Type))
	form.Set("operateUserId", req.OperatorUserID)
	form.Set("operateLegalName", req.OperatorName)
	if req.SubjectName != "" {
		form.Set("legalName", req.SubjectName)
	}
	switch req.Type {
	case models.SignTypeCheckin:
		form.Set("startTime", req.Timestamp)
	case models.SignTypeCheckout:
		form.Set("endTime", req.Timestamp)
		form.Set("id", req.SessionID)
		form.Set("autoApprovalStatus", strconv.FormatBool(req.AutoApprove))
	}
	if req.Remark != "" {
		form.Set("remark", req.Remark)
	}

	body, status, err := c.do(ctx, http.MethodPost, "/app/hour/signRecord", nil,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return Response{}, err
	}
	if status != http.StatusOK {
		c.logger.Warn("sign record rejected",
			zap.Int("status", status),
			zap.String("subject_user_id", req.SubjectUserID),
			zap.Int("type", req.Type),
			zap.String("body", string(body)),
		)
		return Response{}, rejection(status, body)
	}

	// an empty body is a success without payload
	if len(bytes.TrimSpace(body)) == 0 {
		return Response{Code: models.CodeSuccess, Msg: "OK"}, nil
	}
	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return Response{}, apperror.Wrap(fmt.Errorf("decode error: %w, body=%s", err, body),
			apperror.KindTransientNetwork, "unexpected response from attendance service")
	}
	return out, nil
}

// FetchLatestSession returns the subject's latest session, or nil when the
// subject has none. When lastRecordList fails the newest row of
// recordList is used instead.
func (c *Client) FetchLatestSession(ctx context.Context, subjectUserID string) (*models.HourRecord, Response, error) {
	q := url.Values{"userId": {subjectUserID}}
	body, status, err := c.do(ctx, http.MethodGet, "/app/hour/lastRecordList", q, nil, "")
	if err == nil && status == http.StatusOK {
		var out Response
		if err := json.Unmarshal(body, &out); err == nil {
			switch {
			case out.OK():
				return out.Data, out, nil
			case out.Code == http.StatusNotFound:
				return nil, Response{Code: models.CodeSuccess, Msg: out.Msg}, nil
			case out.Code < 500:
				return nil, out, apperror.Rejection(out.Code, FriendlyMessage(out.Code, out.Msg))
			}
		}
	}

	c.logger.Warn("lastRecordList unavailable, falling back to recordList",
		zap.String("subject_user_id", subjectUserID),
		zap.Int("status", status),
		zap.Error(err),
	)
	return c.latestFromRecordList(ctx, subjectUserID)
}

func (c *Client) latestFromRecordList(ctx context.Context, subjectUserID string) (*models.HourRecord, Response, error) {
	rows, err := c.FetchSessions(ctx, Filter{UserID: subjectUserID})
	if err != nil {
		return nil, Response{}, err
	}
	if len(rows) == 0 {
		return nil, Response{Code: models.CodeSuccess, Msg: "no records"}, nil
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].StartTime > rows[j].StartTime })
	latest := rows[0]
	return &latest, Response{Code: models.CodeSuccess, Data: &latest}, nil
}

// FetchSessions lists the subject's sessions. An operator without
// permission to list records gets an empty list.
func (c *Client) FetchSessions(ctx context.Context, filter Filter) ([]models.HourRecord, error) {
	q := url.Values{}
	if filter.UserID != "" {
		q.Set("userId", filter.UserID)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	body, status, err := c.do(ctx, http.MethodGet, "/app/hour/recordList", q, nil, "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, rejection(status, body)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperror.Wrap(err, apperror.KindTransientNetwork, "unexpected response from attendance service")
	}
	if out.Code == http.StatusForbidden {
		c.logger.Warn("operator may not list hour records", zap.String("subject_user_id", filter.UserID))
		return []models.HourRecord{}, nil
	}
	if !out.OK() {
		return nil, apperror.Rejection(out.Code, FriendlyMessage(out.Code, out.Msg))
	}
	return out.Rows, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, int, error) {
	token, ok := c.creds.CurrentCredential(ctx)
	if !ok {
		return nil, 0, apperror.Rejection(http.StatusUnauthorized, FriendlyMessage(http.StatusUnauthorized, ""))
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, 0, apperror.Wrap(err, apperror.KindTransientNetwork, "attendance service unreachable")
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, res.StatusCode, apperror.Wrap(err, apperror.KindTransientNetwork, "attendance service response interrupted")
	}
	return b, res.StatusCode, nil
}

func rejection(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var env struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Msg != "" {
			msg = env.Msg
		} else if env.Message != "" {
			msg = env.Message
		}
	}
	return apperror.Rejection(status, FriendlyMessage(status, msg))
}

// FriendlyMessage replaces known rejection codes with operator-facing text.
func FriendlyMessage(code int, msg string) string {
	switch code {
	case http.StatusUnauthorized:
		return "session expired, please sign in again"
	case http.StatusForbidden:
		return "operator lacks permission for volunteer attendance"
	case http.StatusConflict:
		return "volunteer already has an open session"
	}
	if msg == "" {
		return fmt.Sprintf("attendance service returned code %d", code)
	}
	return msg
}
