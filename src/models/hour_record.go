package models

// HourRecord is one check-in to check-out attendance session. StartTime and
// EndTime are naive local wall-clock strings ("2006-01-02 15:04:05"); the
// backend stores them exactly as received.
type HourRecord struct {
	ID               string  `json:"id" bson:"_id" example:"5f0c1e7a-8a43-4f6b-9a51-2d0f0c8c1b11"`
	UserID           string  `json:"userId" bson:"userId" example:"1024"`                        // subject (volunteer)
	LegalName        string  `json:"legalName,omitempty" bson:"legalName,omitempty"`             // subject display name
	OperateUserID    string  `json:"operateUserId,omitempty" bson:"operateUserId,omitempty"`     // who performed the action
	OperateLegalName string  `json:"operateLegalName,omitempty" bson:"operateLegalName,omitempty"`
	StartTime        string  `json:"startTime" bson:"startTime" example:"2025-01-25 09:00:00"`
	EndTime          *string `json:"endTime" bson:"endTime" example:"2025-01-25 17:30:00"` // nil while open
	Remark           string  `json:"remark,omitempty" bson:"remark,omitempty"`
	ApprovalStatus   string  `json:"approvalStatus" bson:"approvalStatus" example:"pending"` // ApprovalStatus* constants
	AutoApproved     bool    `json:"autoApproved" bson:"autoApproved"`
	CreateTime       string  `json:"createTime,omitempty" bson:"createTime,omitempty"`
	UpdateTime       string  `json:"updateTime,omitempty" bson:"updateTime,omitempty"`
}

const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// Sign record types, as sent in the "type" form field.
const (
	SignTypeCheckin  = 1
	SignTypeCheckout = 2
)

// IsOpen reports whether the session has not been checked out yet.
func (r *HourRecord) IsOpen() bool {
	return r.EndTime == nil || *r.EndTime == ""
}

// HourRecordFilters query parameters of the record list. An empty UserID
// lists every volunteer.
type HourRecordFilters struct {
	UserID   string `json:"userId" query:"userId"`
	OpenOnly bool   `json:"openOnly" query:"openOnly"`
}
