// Package startup runs the admin container's ordered setup steps.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"prizebot/internal/logging"
)

// Step is one named setup action.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
	// Skip, when it returns true, leaves the step out of this run.
	Skip func() bool
	// IgnoreError logs a failure and carries on instead of aborting.
	IgnoreError bool
}

// StepError reports the step that aborted the sequence.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("startup step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Metrics records how long each step took and how it ended.
type Metrics struct {
	duration *prometheus.GaugeVec
}

// NewMetrics creates and registers the startup metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "prizebot_startup_step_duration_seconds",
				Help: "Duration of the last run of each startup step.",
			},
			[]string{"step", "status"},
		),
	}
	if err := reg.Register(m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(step, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(step, status).Set(d.Seconds())
}

// Sequencer executes steps in order.
type Sequencer struct {
	Steps   []Step
	Metrics *Metrics
	Log     *logrus.Entry
}

// Run executes every step. The first failing step that does not ignore
// errors stops the sequence and is returned as a *StepError.
func (s *Sequencer) Run(ctx context.Context) error {
	log := s.Log
	if log == nil {
		log = logging.Component("startup")
	}

	for _, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}
		stepLog := log.WithField(logging.StepFieldKey, step.Name)

		if step.Skip != nil && step.Skip() {
			s.Metrics.observe(step.Name, "skipped", 0)
			stepLog.WithFields(logging.Fields{
				logging.EventFieldKey:  "startup_step",
				logging.StatusFieldKey: "skipped",
			}).Info("step skipped")
			continue
		}

		start := time.Now()
		err := step.Run(ctx)
		elapsed := time.Since(start)
		fields := logging.Fields{
			logging.EventFieldKey:    "startup_step",
			logging.DurationFieldKey: elapsed.Milliseconds(),
		}

		switch {
		case err == nil:
			s.Metrics.observe(step.Name, "success", elapsed)
			fields[logging.StatusFieldKey] = "success"
			stepLog.WithFields(fields).Info("step completed")
		case step.IgnoreError:
			s.Metrics.observe(step.Name, "ignored", elapsed)
			fields[logging.StatusFieldKey] = "ignored"
			stepLog.WithFields(fields).WithError(err).Warn("step failed, continuing")
		default:
			s.Metrics.observe(step.Name, "error", elapsed)
			fields[logging.StatusFieldKey] = "error"
			stepLog.WithFields(fields).WithError(err).Error("step failed")
			return &StepError{Step: step.Name, Err: err}
		}
	}
	return nil
}
