package hourrecords

import (
	"context"

	"Backend-Volunteer-Hours/src/models"
)

// Closure is the update applied when a session is checked out.
type Closure struct {
	EndTime          string
	Remark           string
	OperateUserID    string
	OperateLegalName string
	ApprovalStatus   string
	AutoApproved     bool
	UpdateTime       string
}

// Repository persists hour records. Lookups return nil, nil when nothing
// matches.
type Repository interface {
	Insert(ctx context.Context, rec *models.HourRecord) error
	FindByID(ctx context.Context, id string) (*models.HourRecord, error)
	FindOpen(ctx context.Context, userID string) (*models.HourRecord, error)
	Latest(ctx context.Context, userID string) (*models.HourRecord, error)
	List(ctx context.Context, f models.HourRecordFilters, page models.PaginationParams) ([]models.HourRecord, int64, error)

	// Close applies c to record id only while it is still open and
	// reports whether it did.
	Close(ctx context.Context, id string, c Closure) (bool, error)

	// FindOpenStartedBefore lists open records whose start is before cutoff.
	FindOpenStartedBefore(ctx context.Context, cutoff string) ([]models.HourRecord, error)
}
