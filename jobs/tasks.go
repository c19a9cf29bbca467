package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueMail carries outgoing e-mail.
	QueueMail = "mail"
	// QueueMaintenance carries cache rebuilds.
	QueueMaintenance = "maintenance"
	// TaskNotificationEmail delivers a partner notification by e-mail.
	TaskNotificationEmail = "notification:email"
	// TaskLeaderboardWarmup recomputes and caches the monthly ranking.
	TaskLeaderboardWarmup = "leaderboard:warmup"
)

// Queues lists the queues the worker serves.
var Queues = []string{QueueMail, QueueMaintenance}

// NotificationEmailPayload describes one outgoing notification e-mail.
type NotificationEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// LeaderboardWarmupPayload selects the month to warm; empty means the
// current month at run time.
type LeaderboardWarmupPayload struct {
	Month string `json:"month,omitempty"`
}

// NewNotificationEmailTask constructs an Asynq task.
func NewNotificationEmailTask(payload NotificationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationEmail, data, asynq.MaxRetry(5), asynq.Queue(QueueMail)), nil
}

// NewLeaderboardWarmupTask constructs an Asynq task.
func NewLeaderboardWarmupTask(payload LeaderboardWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeaderboardWarmup, data, asynq.MaxRetry(1), asynq.Queue(QueueMaintenance)), nil
}
