package rbac

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// DefaultExpirySchedule runs the report every five minutes
const DefaultExpirySchedule = "*/5 * * * *"

// GrantCounter counts active and expired grants
type GrantCounter interface {
	CountGrants(ctx context.Context) (active, expired int64, err error)
}

// ExpiryReporter periodically exports how many grants are active and how many
// have lapsed. It only reads; expired grants stay in place for history.
type ExpiryReporter struct {
	counter GrantCounter
	metrics *observability.Metrics
	logger  *observability.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewExpiryReporter creates a reporter that runs on schedule, a standard
// five-field cron expression
func NewExpiryReporter(counter GrantCounter, schedule string, metrics *observability.Metrics, logger *observability.Logger) (*ExpiryReporter, error) {
	if schedule == "" {
		schedule = DefaultExpirySchedule
	}
	r := &ExpiryReporter{
		counter: counter,
		metrics: metrics,
		logger:  logger,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		timeout: 30 * time.Second,
	}
	if _, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		_ = r.Report(ctx)
	}); err != nil {
		return nil, err
	}
	return r, nil
}

// Report counts grants once and updates the gauges
func (r *ExpiryReporter) Report(ctx context.Context) error {
	active, expired, err := r.counter.CountGrants(ctx)
	if err != nil {
		r.logger.WithError(err).Error("failed to count grants")
		return err
	}
	r.metrics.SetGrantCounts(active, expired)
	r.logger.WithFields(map[string]interface{}{
		"active":  active,
		"expired": expired,
	}).Info("grant expiry report")
	return nil
}

// Start runs an initial report and then starts the schedule
func (r *ExpiryReporter) Start(ctx context.Context) {
	_ = r.Report(ctx)
	r.cron.Start()
}

// Stop halts the schedule and waits for a running report to finish or ctx to end
func (r *ExpiryReporter) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
