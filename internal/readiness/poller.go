// Package readiness blocks startup until a dependency accepts connections.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"prizebot/internal/logging"
)

const (
	DefaultInterval     = time.Second
	DefaultProbeTimeout = time.Second
)

// ErrNotReady is returned when a bounded wait runs out of attempts.
var ErrNotReady = errors.New("dependency not ready")

// Probe checks a single dependency once.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

// Metrics counts probe attempts by outcome.
type Metrics struct {
	attempts *prometheus.CounterVec
}

// NewMetrics creates and registers the readiness metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prizebot_readiness_attempts_total",
				Help: "Readiness probe attempts by probe and result.",
			},
			[]string{"probe", "result"},
		),
	}
	if err := reg.Register(m.attempts); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(probe, result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(probe, result).Inc()
}

// Poller retries a probe at a fixed interval until it succeeds.
//
// MaxAttempts of zero retries forever; only cancellation of the context ends
// such a wait without success.
type Poller struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
	MaxAttempts  int
	Metrics      *Metrics
	Log          *logrus.Entry
}

// Wait blocks until probe succeeds and returns the number of attempts made.
func (p *Poller) Wait(ctx context.Context, probe Probe) (int, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := p.Log
	if log == nil {
		log = logging.Component("readiness")
	}
	log = log.WithField("probe", probe.Name())

	start := time.Now()
	for attempt := 1; ; attempt++ {
		err := p.check(ctx, probe)
		if err == nil {
			p.Metrics.observe(probe.Name(), "success")
			log.WithFields(logging.Fields{
				logging.EventFieldKey:    "dependency_ready",
				logging.StatusFieldKey:   "success",
				"attempt":                attempt,
				logging.DurationFieldKey: time.Since(start).Milliseconds(),
			}).Info("dependency is ready")
			return attempt, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, ctxErr
		}

		p.Metrics.observe(probe.Name(), "failure")
		log.WithError(err).WithFields(logging.Fields{
			logging.EventFieldKey:  "dependency_unavailable",
			logging.StatusFieldKey: "retrying",
			"attempt":              attempt,
		}).Warn("dependency is unavailable - sleeping")

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return attempt, fmt.Errorf("%w: %s after %d attempts: %w", ErrNotReady, probe.Name(), attempt, err)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Poller) check(ctx context.Context, probe Probe) error {
	timeout := p.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return probe.Check(checkCtx)
}
