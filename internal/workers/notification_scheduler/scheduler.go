package notification_scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tm-signals/signals_service/internal/domain/entities"
	"github.com/tm-signals/signals_service/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DigestSource builds the digests sent by the scheduled jobs
type DigestSource interface {
	TopSignals(ctx context.Context, limit int) (entities.Digest, error)
	MarketSummary(ctx context.Context) (entities.Digest, error)
}

// SubscriberSource lists the users to notify
type SubscriberSource interface {
	ActiveSubscribers() []entities.Subscription
}

// Channel delivers a digest to one subscriber
type Channel interface {
	Name() string
	Accepts(sub entities.Subscription) bool
	Deliver(ctx context.Context, sub entities.Subscription, digest entities.Digest) error
}

// Broadcaster publishes a digest once to anonymous listeners
type Broadcaster interface {
	Broadcast(digest entities.Digest)
}

type Config struct {
	Enabled               bool
	TopSignalsSchedule    string
	MarketSummarySchedule string
	TopCount              int
	Timezone              string
	DeliveryTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:               true,
		TopSignalsSchedule:    "@every 1h",
		MarketSummarySchedule: "@every 24h",
		TopCount:              3,
		Timezone:              "UTC",
		DeliveryTimeout:       15 * time.Second,
	}
}

// JobStatistics tracks scheduler runs since start
type JobStatistics struct {
	TotalRuns       int64      `json:"total_runs"`
	SuccessfulRuns  int64      `json:"successful_runs"`
	FailedRuns      int64      `json:"failed_runs"`
	SkippedRuns     int64      `json:"skipped_runs"`
	Delivered       int64      `json:"delivered"`
	DeliveryErrors  int64      `json:"delivery_errors"`
	LastRunTime     time.Time  `json:"last_run_time"`
	LastRunDuration string     `json:"last_run_duration"`
	Errors          []JobError `json:"recent_errors"`
}

type JobError struct {
	Timestamp time.Time `json:"timestamp"`
	Job       string    `json:"job"`
	UserID    string    `json:"user_id,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Error     string    `json:"error"`
}

const maxRecentErrors = 50

type schedulerMetrics struct {
	jobsTotal   metric.Int64Counter
	jobDuration metric.Float64Histogram
	deliveries  metric.Int64Counter
}

// Scheduler sends periodic digests to every active subscriber
type Scheduler struct {
	cron        *cron.Cron
	digests     DigestSource
	subscribers SubscriberSource
	channels    []Channel
	broadcaster Broadcaster
	config      Config
	logger      *zap.Logger
	tracer      trace.Tracer
	metrics     *schedulerMetrics

	mu       sync.RWMutex
	running  bool
	jobStats *JobStatistics
}

// zapCronLogger adapts zap to cron's printf logger
type zapCronLogger struct {
	logger *zap.Logger
}

func (l *zapCronLogger) Printf(format string, args ...interface{}) {
	l.logger.Sugar().Debugf(format, args...)
}

func NewScheduler(
	digests DigestSource,
	subscribers SubscriberSource,
	channels []Channel,
	broadcaster Broadcaster,
	config Config,
	logger *zap.Logger,
) (*Scheduler, error) {
	defaults := DefaultConfig()
	if config.TopSignalsSchedule == "" {
		config.TopSignalsSchedule = defaults.TopSignalsSchedule
	}
	if config.MarketSummarySchedule == "" {
		config.MarketSummarySchedule = defaults.MarketSummarySchedule
	}
	if config.TopCount <= 0 {
		config.TopCount = defaults.TopCount
	}
	if config.Timezone == "" {
		config.Timezone = defaults.Timezone
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = defaults.DeliveryTimeout
	}

	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", config.Timezone, err)
	}

	c := cron.New(
		cron.WithLocation(location),
		cron.WithLogger(cron.VerbosePrintfLogger(&zapCronLogger{logger: logger})),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	m, err := initMetrics(otel.Meter("notification-scheduler"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return &Scheduler{
		cron:        c,
		digests:     digests,
		subscribers: subscribers,
		channels:    channels,
		broadcaster: broadcaster,
		config:      config,
		logger:      logger,
		tracer:      otel.Tracer("notification-scheduler"),
		metrics:     m,
		jobStats:    &JobStatistics{Errors: make([]JobError, 0)},
	}, nil
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if _, err := s.cron.AddFunc(s.config.TopSignalsSchedule, func() {
		s.RunTopSignalsNow(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to add top signals job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.config.MarketSummarySchedule, func() {
		s.RunMarketSummaryNow(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to add market summary job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Notification scheduler started",
		zap.String("top_signals_schedule", s.config.TopSignalsSchedule),
		zap.String("market_summary_schedule", s.config.MarketSummarySchedule),
		zap.Int("channels", len(s.channels)))
	return nil
}

// Stop waits for running jobs up to the deadline of ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.running = false
	s.mu.Unlock()

	// running jobs take mu, so wait without holding it
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Notification scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("Notification scheduler stop timed out")
	}
	return nil
}

// RunTopSignalsNow sends the top signals digest immediately
func (s *Scheduler) RunTopSignalsNow(ctx context.Context) {
	s.run(ctx, string(entities.DigestTopSignals), func(ctx context.Context) (entities.Digest, error) {
		return s.digests.TopSignals(ctx, s.config.TopCount)
	})
}

// RunMarketSummaryNow sends the market summary digest immediately
func (s *Scheduler) RunMarketSummaryNow(ctx context.Context) {
	s.run(ctx, string(entities.DigestMarketSummary), s.digests.MarketSummary)
}

func (s *Scheduler) run(ctx context.Context, job string, build func(context.Context) (entities.Digest, error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "scheduler."+job, trace.WithAttributes(attribute.String("job", job)))
	defer span.End()

	s.logger.Info("Running scheduled job", zap.String("job", job))

	s.mu.Lock()
	s.jobStats.TotalRuns++
	s.jobStats.LastRunTime = start
	s.mu.Unlock()

	subscribers := s.subscribers.ActiveSubscribers()
	if len(subscribers) == 0 {
		s.logger.Info("No active subscribers", zap.String("job", job))
		s.mu.Lock()
		s.jobStats.SkippedRuns++
		s.mu.Unlock()
		s.recordJob(ctx, job, "skipped", start)
		return
	}

	digest, err := build(ctx)
	if err != nil {
		s.logger.Error("Failed to build digest", zap.String("job", job), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.mu.Lock()
		s.jobStats.FailedRuns++
		s.appendError(JobError{Timestamp: time.Now(), Job: job, Error: err.Error()})
		s.mu.Unlock()
		s.recordJob(ctx, job, "failed", start)
		return
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(digest)
		metrics.RecordDigestDelivery(job, "stream", true)
	}

	var delivered, failed int64
	for _, sub := range subscribers {
		for _, ch := range s.channels {
			if !ch.Accepts(sub) {
				continue
			}
			if err := s.deliver(ctx, ch, sub, digest); err != nil {
				failed++
				s.logger.Error("Failed to deliver digest",
					zap.String("job", job),
					zap.String("user_id", sub.UserID),
					zap.String("channel", ch.Name()),
					zap.Error(err))
				s.mu.Lock()
				s.appendError(JobError{Timestamp: time.Now(), Job: job, UserID: sub.UserID, Channel: ch.Name(), Error: err.Error()})
				s.mu.Unlock()
				s.recordDelivery(ctx, job, ch.Name(), false)
				continue
			}
			delivered++
			s.recordDelivery(ctx, job, ch.Name(), true)
		}
	}

	duration := time.Since(start)
	s.mu.Lock()
	s.jobStats.SuccessfulRuns++
	s.jobStats.Delivered += delivered
	s.jobStats.DeliveryErrors += failed
	s.jobStats.LastRunDuration = duration.String()
	s.mu.Unlock()
	s.recordJob(ctx, job, "success", start)

	s.logger.Info("Scheduled job completed",
		zap.String("job", job),
		zap.Int("subscribers", len(subscribers)),
		zap.Int64("delivered", delivered),
		zap.Int64("failed", failed),
		zap.Duration("duration", duration))
}

func (s *Scheduler) deliver(ctx context.Context, ch Channel, sub entities.Subscription, digest entities.Digest) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.DeliveryTimeout)
	defer cancel()
	return ch.Deliver(ctx, sub, digest)
}

// appendError must be called with mu held
func (s *Scheduler) appendError(e JobError) {
	s.jobStats.Errors = append(s.jobStats.Errors, e)
	if len(s.jobStats.Errors) > maxRecentErrors {
		s.jobStats.Errors = s.jobStats.Errors[len(s.jobStats.Errors)-maxRecentErrors:]
	}
}

func (s *Scheduler) recordJob(ctx context.Context, job, status string, start time.Time) {
	s.metrics.jobsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("status", status),
	))
	s.metrics.jobDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("job", job)))
}

func (s *Scheduler) recordDelivery(ctx context.Context, job, channel string, success bool) {
	metrics.RecordDigestDelivery(job, channel, success)
	s.metrics.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("channel", channel),
		attribute.String("success", strconv.FormatBool(success)),
	))
}

// Status is a snapshot of scheduler state for the admin route
type Status struct {
	Running    bool          `json:"running"`
	NextRuns   []time.Time   `json:"next_runs"`
	Statistics JobStatistics `json:"statistics"`
}

func (s *Scheduler) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := *s.jobStats
	stats.Errors = append([]JobError(nil), s.jobStats.Errors...)

	var next []time.Time
	for _, e := range s.cron.Entries() {
		next = append(next, e.Next)
	}
	return Status{Running: s.running, NextRuns: next, Statistics: stats}
}

func initMetrics(meter metric.Meter) (*schedulerMetrics, error) {
	jobsTotal, err := meter.Int64Counter("notification_scheduler_jobs_total",
		metric.WithDescription("Total number of digest jobs executed"))
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram("notification_scheduler_job_duration_seconds",
		metric.WithDescription("Duration of digest jobs in seconds"))
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("notification_scheduler_deliveries_total",
		metric.WithDescription("Digest deliveries by channel and outcome"))
	if err != nil {
		return nil, err
	}

	return &schedulerMetrics{
		jobsTotal:   jobsTotal,
		jobDuration: jobDuration,
		deliveries:  deliveries,
	}, nil
}
