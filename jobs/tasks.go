package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/cargodesk-erp/cargodesk-erp/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditPurge trims audit entries past the retention window.
	TaskTypeAuditPurge = "audit:purge"
	// TaskTypeSessionSweep deletes expired server-side session records.
	TaskTypeSessionSweep = "session:sweep"
)

// AuditPurgePayload carries the retention window for an audit purge run.
type AuditPurgePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditPurgeTask constructs an Asynq task.
func NewAuditPurgeTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPurgePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditPurge, data), nil
}

// NewSessionSweepTask constructs an Asynq task.
func NewSessionSweepTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskTypeSessionSweep, nil), nil
}

// AuditPurger removes audit entries older than a cutoff.
type AuditPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPurgeJob deletes audit entries past retention.
type AuditPurgeJob struct {
	purger  AuditPurger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewAuditPurgeJob constructs the job. metrics may be nil.
func NewAuditPurgeJob(purger AuditPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPurgeJob {
	return &AuditPurgeJob{purger: purger, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeAuditPurge tasks.
func (j *AuditPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("audit_purge")
	var payload AuditPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		return asynq.SkipRetry
	}
	cutoff := time.Now().Add(-payload.Retention)
	removed, err := j.purger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("audit purge", slog.Any("error", err))
		}
		return tracker.End(err)
	}
	if j.logger != nil {
		j.logger.Info("audit purge complete",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff))
	}
	return tracker.End(nil)
}

// SessionSweeper removes expired session records.
type SessionSweeper interface {
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// SessionSweepJob clears stale session rows left behind by cookie expiry.
type SessionSweepJob struct {
	sweeper SessionSweeper
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSessionSweepJob constructs the job. metrics may be nil.
func NewSessionSweepJob(sweeper SessionSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionSweepJob {
	return &SessionSweepJob{sweeper: sweeper, logger: logger, metrics: metrics}
}

// Handle processes TaskTypeSessionSweep tasks.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("session_sweep")
	removed, err := j.sweeper.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		if j.logger != nil {
			j.logger.Error("session sweep", slog.Any("error", err))
		}
		return tracker.End(err)
	}
	if j.logger != nil {
		j.logger.Info("session sweep complete", slog.Int64("removed", removed))
	}
	return tracker.End(nil)
}
