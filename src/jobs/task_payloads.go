package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeSweepOvertime = "hour:sweep-overtime"

	// SweepSchedule is the cron expression of the periodic overtime sweep.
	SweepSchedule = "@every 30m"
)

type SweepOvertimePayload struct {
	Reason string `json:"reason"`
}

func NewSweepOvertimeTask(reason string) (*asynq.Task, error) {
	payload, err := json.Marshal(SweepOvertimePayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSweepOvertime, payload,
		asynq.MaxRetry(2),
		asynq.Timeout(5*time.Minute),
	), nil
}
