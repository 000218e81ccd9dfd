package app

import (
	"time"

	"quizit-service/internal/domain"
	"go.uber.org/zap"
)

// Metrics receives engine-level events. The prometheus collector in internal/metrics
// implements it; services default to a no-op.
type Metrics interface {
	SubmissionObserved(trigger domain.SubmitTrigger, outcome string)
	ViolationObserved(verdict Verdict)
	SessionStarted(resumed bool)
}

// Submission outcomes reported to Metrics.
const (
	OutcomeAccepted = "accepted"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type noopMetrics struct{}

func (noopMetrics) SubmissionObserved(domain.SubmitTrigger, string) {}
func (noopMetrics) ViolationObserved(Verdict)                       {}
func (noopMetrics) SessionStarted(bool)                             {}

type options struct {
	now     func() time.Time
	logger  *zap.Logger
	metrics Metrics
	events  Publisher
}

// Option customizes a service.
type Option func(*options)

// WithClock swaps the time source; tests use it for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEvents publishes session events (violations, submissions) to live connections.
func WithEvents(p Publisher) Option {
	return func(o *options) { o.events = p }
}

func buildOptions(opts []Option) options {
	o := options{
		now:     time.Now,
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		events:  noopPublisher{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = noopMetrics{}
	}
	if o.events == nil {
		o.events = noopPublisher{}
	}
	return o
}
