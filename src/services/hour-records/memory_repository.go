package hourrecords

import (
	"context"
	"sort"
	"sync"

	"Backend-Volunteer-Hours/src/models"
)

// MemoryRepository keeps records in process. It backs STORAGE=memory and
// the handler tests.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]models.HourRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]models.HourRecord)}
}

func (r *MemoryRepository) Insert(_ context.Context, rec *models.HourRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = *rec
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.HourRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *MemoryRepository) FindOpen(_ context.Context, userID string) (*models.HourRecord, error) {
	for _, rec := range r.newestFirst(userID) {
		if rec.IsOpen() {
			return &rec, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Latest(_ context.Context, userID string) (*models.HourRecord, error) {
	rows := r.newestFirst(userID)
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *MemoryRepository) List(_ context.Context, f models.HourRecordFilters, page models.PaginationParams) ([]models.HourRecord, int64, error) {
	rows := r.newestFirst(f.UserID)
	if f.OpenOnly {
		openRows := rows[:0]
		for _, rec := range rows {
			if rec.IsOpen() {
				openRows = append(openRows, rec)
			}
		}
		rows = openRows
	}
	total := int64(len(rows))
	skip := page.GetSkip()
	if skip >= total {
		return []models.HourRecord{}, total, nil
	}
	rows = rows[skip:]
	if page.Limit > 0 && len(rows) > page.Limit {
		rows = rows[:page.Limit]
	}
	return rows, total, nil
}

func (r *MemoryRepository) Close(_ context.Context, id string, c Closure) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || !rec.IsOpen() {
		return false, nil
	}
	end := c.EndTime
	rec.EndTime = &end
	rec.OperateUserID = c.OperateUserID
	rec.OperateLegalName = c.OperateLegalName
	rec.ApprovalStatus = c.ApprovalStatus
	rec.AutoApproved = c.AutoApproved
	rec.UpdateTime = c.UpdateTime
	if c.Remark != "" {
		rec.Remark = c.Remark
	}
	r.records[id] = rec
	return true, nil
}

func (r *MemoryRepository) FindOpenStartedBefore(_ context.Context, cutoff string) ([]models.HourRecord, error) {
	var out []models.HourRecord
	for _, rec := range r.newestFirst("") {
		if rec.IsOpen() && rec.StartTime < cutoff {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (r *MemoryRepository) newestFirst(userID string) []models.HourRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([]models.HourRecord, 0, len(r.records))
	for _, rec := range r.records {
		if userID == "" || rec.UserID == userID {
			rows = append(rows, rec)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].StartTime != rows[j].StartTime {
			return rows[i].StartTime > rows[j].StartTime
		}
		return rows[i].ID > rows[j].ID
	})
	return rows
}
