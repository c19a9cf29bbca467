package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"gopkg.in/gomail.v2"

	jobmetrics "github.com/referral-desk/referral-desk/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Sender delivers one plain-text e-mail.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig points the sender at an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender constructs a sender for cfg.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send notification email: %w", err)
	}
	return nil
}

// NotificationEmailJob handles TaskNotificationEmail.
type NotificationEmailJob struct {
	Sender  Sender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes one notification e-mail task.
func (j *NotificationEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sender == nil {
		return errors.New("notification email: sender not configured")
	}
	var payload NotificationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return fmt.Errorf("notification email: empty recipient: %w", asynq.SkipRetry)
	}

	metrics := j.metrics()
	tracker := metrics.Track(TaskNotificationEmail)
	err := j.Sender.Send(ctx, payload.To, payload.Subject, body(payload))
	if err != nil {
		metrics.AddEmail("failed")
		j.logger().Warn("notification email failed", slog.String("subject", payload.Subject), slog.Any("error", err))
	} else {
		metrics.AddEmail("sent")
	}
	return tracker.End(err)
}

func body(p NotificationEmailPayload) string {
	return p.Body + "\n\n파트너 대시보드에서 자세한 내용을 확인하실 수 있습니다."
}

func (j *NotificationEmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskNotificationEmail))
	}
	return slog.Default().With(slog.String("job", TaskNotificationEmail))
}

func (j *NotificationEmailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
