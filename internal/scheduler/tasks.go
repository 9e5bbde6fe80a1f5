// Package scheduler provides the asynq-backed background worker that runs
// the periodic follow-up dispatch sweep.
package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskFollowupSweep = "followups.sweep"

// FollowupSweepPayload carries the tick that triggered the sweep, for logging.
type FollowupSweepPayload struct {
	TriggeredAt time.Time `json:"triggeredAt"`
}

func NewFollowupSweepTask(payload FollowupSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowupSweep, data), nil
}

func ParseFollowupSweepPayload(task *asynq.Task) (FollowupSweepPayload, error) {
	var payload FollowupSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowupSweepPayload{}, err
	}
	return payload, nil
}
