// Package metrics records provisioning runs as Prometheus metrics and
// publishes them through node_exporter's textfile collector.
package metrics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/execution"
)

const namespace = "nodeexpoctor"

// Recorder collects the outcome of one run into its own registry.
type Recorder struct {
	operation string
	registry  *prometheus.Registry

	stepSuccess  *prometheus.GaugeVec
	stepChanged  *prometheus.GaugeVec
	stepDuration *prometheus.GaugeVec
	runSuccess   prometheus.Gauge
	runDuration  prometheus.Gauge
	runTimestamp prometheus.Gauge
	runSteps     *prometheus.GaugeVec
}

// NewRecorder creates a recorder for an operation such as "install".
func NewRecorder(operation string) *Recorder {
	labels := prometheus.Labels{"operation": operation}
	r := &Recorder{
		operation: operation,
		registry:  prometheus.NewRegistry(),
		stepSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "step_success",
			Help:        "Whether the step completed (1) or failed or was skipped (0) in the last run.",
			ConstLabels: labels,
		}, []string{"step"}),
		stepChanged: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "step_changed",
			Help:        "Whether the step changed the host in the last run.",
			ConstLabels: labels,
		}, []string{"step"}),
		stepDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "step_duration_seconds",
			Help:        "Time the step took in the last run.",
			ConstLabels: labels,
		}, []string{"step"}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_success",
			Help:        "Whether the last run completed without failures.",
			ConstLabels: labels,
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_duration_seconds",
			Help:        "Wall-clock duration of the last run.",
			ConstLabels: labels,
		}),
		runTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_last_timestamp_seconds",
			Help:        "Unix time the last run finished.",
			ConstLabels: labels,
		}),
		runSteps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_steps",
			Help:        "Number of steps in the last run by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(r.stepSuccess, r.stepChanged, r.stepDuration,
		r.runSuccess, r.runDuration, r.runTimestamp, r.runSteps)
	return r
}

// Operation returns the operation label.
func (r *Recorder) Operation() string {
	return r.operation
}

// ObserveStep records one step result. It can be used as an executor observer.
func (r *Recorder) ObserveStep(res execution.StepResult) {
	id := res.StepID().String()
	r.stepSuccess.WithLabelValues(id).Set(boolValue(res.Success()))
	r.stepChanged.WithLabelValues(id).Set(boolValue(res.Changed()))
	r.stepDuration.WithLabelValues(id).Set(res.Duration().Seconds())
}

// ObserveRun records the run totals.
func (r *Recorder) ObserveRun(res execution.ExecuteResult, took time.Duration, finished time.Time) {
	s := res.Summary()
	r.runSuccess.Set(boolValue(res.Succeeded()))
	r.runDuration.Set(took.Seconds())
	r.runTimestamp.Set(float64(finished.Unix()))
	r.runSteps.WithLabelValues("changed").Set(float64(s.Changed))
	r.runSteps.WithLabelValues("unchanged").Set(float64(s.Unchanged))
	r.runSteps.WithLabelValues("failed").Set(float64(s.Failed))
	r.runSteps.WithLabelValues("skipped").Set(float64(s.Skipped))
}

// Encode renders the collected metrics in the text exposition format.
func (r *Recorder) Encode() ([]byte, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
