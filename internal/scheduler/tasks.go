package scheduler

import (
	"github.com/hibiken/asynq"
)

const TaskMailboxSweep = "ingest.mailbox.sweep"

const TaskTokenSweep = "mailbox.tokens.sweep"

func NewMailboxSweepTask() *asynq.Task {
	return asynq.NewTask(TaskMailboxSweep, nil)
}

func NewTokenSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTokenSweep, nil)
}
