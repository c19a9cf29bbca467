package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Client submits tasks on behalf of the web server.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// SendNotificationEmail queues the e-mail for the worker so that partner
// decisions never wait on SMTP.
func (c *Client) SendNotificationEmail(ctx context.Context, to, subject, body string) error {
	task, err := NewNotificationEmailTask(NotificationEmailPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueMail))
	return err
}

// RefreshLeaderboard asks the worker to rebuild one month's ranking. Requests
// for the same month within ten minutes collapse into one task.
func (c *Client) RefreshLeaderboard(ctx context.Context, month string) error {
	task, err := NewLeaderboardWarmupTask(LeaderboardWarmupPayload{Month: month})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueMaintenance), asynq.Unique(10*time.Minute))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
