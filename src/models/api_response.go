package models

// APIResponse is the envelope of the hour-record service:
// {"code":200,"msg":"...","data":...} for single objects and
// {"code":200,"total":n,"rows":[...]} for lists.
type APIResponse[T any] struct {
	Code  int    `json:"code" example:"200"`
	Msg   string `json:"msg" example:"OK"`
	Data  *T     `json:"data,omitempty"`
	Total int64  `json:"total,omitempty"`
	Rows  []T    `json:"rows,omitempty"`
}

const CodeSuccess = 200

// OK reports whether the business code signals success.
func (r APIResponse[T]) OK() bool {
	return r.Code == CodeSuccess
}

// SignRecordRequest is the form body of POST /app/hour/signRecord.
type SignRecordRequest struct {
	UserID             string `form:"userId" json:"userId" validate:"required"`
	Type               int    `form:"type" json:"type" validate:"required,oneof=1 2"`
	OperateUserID      string `form:"operateUserId" json:"operateUserId" validate:"required"`
	OperateLegalName   string `form:"operateLegalName" json:"operateLegalName" validate:"required"`
	LegalName          string `form:"legalName" json:"legalName,omitempty"`
	StartTime          string `form:"startTime" json:"startTime,omitempty" validate:"required_if=Type 1"`
	EndTime            string `form:"endTime" json:"endTime,omitempty" validate:"required_if=Type 2"`
	ID                 string `form:"id" json:"id,omitempty" validate:"required_if=Type 2"`
	Remark             string `form:"remark" json:"remark,omitempty" validate:"max=500"`
	AutoApprovalStatus bool   `form:"autoApprovalStatus" json:"autoApprovalStatus,omitempty"`
}
