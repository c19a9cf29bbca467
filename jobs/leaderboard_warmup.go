package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/referral-desk/referral-desk/internal/backend"
	jobmetrics "github.com/referral-desk/referral-desk/internal/jobs"
	"github.com/referral-desk/referral-desk/internal/labels"
)

// LeaderboardRefresher recomputes one month's ranking and replaces its
// cached copy.
type LeaderboardRefresher interface {
	Refresh(ctx context.Context, month string) ([]backend.LeaderboardEntry, error)
}

// LeaderboardWarmupJob keeps the partner ranking cache hot.
type LeaderboardWarmupJob struct {
	Board   LeaderboardRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLeaderboardWarmupJob wires dependencies for the warmup handler.
func NewLeaderboardWarmupJob(board LeaderboardRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *LeaderboardWarmupJob {
	return &LeaderboardWarmupJob{Board: board, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle processes leaderboard warmup tasks.
func (j *LeaderboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Board == nil {
		return errors.New("leaderboard warmup: handler not configured")
	}
	var payload LeaderboardWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Month == "" {
		payload.Month = labels.Month(j.now())
	}

	tracker := j.metrics().Track(TaskLeaderboardWarmup)
	logger := j.logger().With(slog.String("month", payload.Month))

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	entries, err := j.Board.Refresh(runCtx, payload.Month)
	if err != nil {
		logger.Error("leaderboard warmup", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().SetLeaderboardSize(len(entries))
	logger.Info("leaderboard warmed", slog.Int("entries", len(entries)))
	return tracker.End(nil)
}

func (j *LeaderboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLeaderboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskLeaderboardWarmup))
}

func (j *LeaderboardWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LeaderboardWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
