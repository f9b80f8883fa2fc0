package models

// PaginationParams are the page and size of a list request.
type PaginationParams struct {
	Page  int `json:"page" query:"page" example:"1"`    // 1-based
	Limit int `json:"limit" query:"limit" example:"50"` // rows per page
}

// DefaultPagination is the first page of 50 rows.
func DefaultPagination() PaginationParams {
	return PaginationParams{Page: 1, Limit: 50}
}

// Normalize clamps Page to >= 1 and Limit to [1, max], using def when
// Limit is unset.
func (p PaginationParams) Normalize(def, max int) PaginationParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	return p
}

// GetSkip is the number of rows before the page.
func (p PaginationParams) GetSkip() int64 {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return int64((p.Page - 1) * p.Limit)
}
