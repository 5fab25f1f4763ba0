package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/researchteam/internal/consts"
	"github.com/researchteam/internal/workflow"
)

const namespace = "researchteam"

// Metrics records hop and run statistics.
type Metrics struct {
	hops        *prometheus.CounterVec
	hopDuration *prometheus.HistogramVec
	decisions   *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runSteps    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		hops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hops_total",
			Help:      "Node executions by node and outcome.",
		}, []string{"node", "outcome"}),
		hopDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hop_duration_seconds",
			Help:      "Node execution latency.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"node"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supervisor_decisions_total",
			Help:      "Supervisor routing decisions by target.",
		}, []string{"next"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by outcome.",
		}, []string{"outcome"}),
		runSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_steps",
			Help:      "Steps taken per run.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
	}

	for _, c := range []prometheus.Collector{m.hops, m.hopDuration, m.decisions, m.runs, m.runSteps} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Middleware counts hops and supervisor decisions.
func (m *Metrics) Middleware() workflow.Middleware {
	return func(node string, next workflow.NodeFunc) workflow.NodeFunc {
		return func(ctx context.Context, s workflow.State) (workflow.State, error) {
			start := time.Now()
			out, err := next(ctx, s)
			m.hopDuration.WithLabelValues(node).Observe(time.Since(start).Seconds())
			if err != nil {
				m.hops.WithLabelValues(node, "error").Inc()
				return out, err
			}
			m.hops.WithLabelValues(node, "ok").Inc()
			if node == consts.AgentNameSupervisor {
				m.decisions.WithLabelValues(out.Next).Inc()
			}
			return out, nil
		}
	}
}

// ObserveRun records the outcome of a run.
func (m *Metrics) ObserveRun(res *workflow.Result, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		m.runs.WithLabelValues("canceled").Inc()
		return
	case err != nil:
		m.runs.WithLabelValues("error").Inc()
		return
	case res == nil:
		return
	case res.Truncated:
		m.runs.WithLabelValues("truncated").Inc()
	default:
		m.runs.WithLabelValues("complete").Inc()
	}
	m.runSteps.Observe(float64(res.Steps))
}
