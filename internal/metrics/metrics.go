// Package metrics exposes the core's prometheus instruments. All
// instruments are registered on a dedicated registry so embedding hosts
// can mount or ignore them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the instruments the driver and nodes update.
type Set struct {
	Registry *prometheus.Registry

	Ticks            prometheus.Counter
	NodeRuns         *prometheus.CounterVec
	ModeTransitions  *prometheus.CounterVec
	Dispatches       prometheus.Counter
	Cancels          prometheus.Counter
	GuardrailRejects *prometheus.CounterVec
	OracleCalls      prometheus.Counter
	OracleFailures   prometheus.Counter
	ReactIterations  prometheus.Histogram
	Suspensions      prometheus.Counter
}

// New builds and registers the instrument set.
func New() *Set {
	reg := prometheus.NewRegistry()
	s := &Set{
		Registry: reg,
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_ticks_total",
			Help: "Kernel passes executed.",
		}),
		NodeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brain_node_runs_total",
			Help: "Node executions by node name.",
		}, []string{"node"}),
		ModeTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brain_mode_transitions_total",
			Help: "Mode transitions decided by the arbiter.",
		}, []string{"mode"}),
		Dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_skill_dispatches_total",
			Help: "Skill dispatch side effects issued.",
		}),
		Cancels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_skill_cancels_total",
			Help: "Skill cancel side effects issued.",
		}),
		GuardrailRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brain_guardrail_rejects_total",
			Help: "Operations rejected by the guardrail node.",
		}, []string{"code"}),
		OracleCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_oracle_calls_total",
			Help: "Oracle decide calls.",
		}),
		OracleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_oracle_failures_total",
			Help: "Oracle calls that errored or produced malformed output.",
		}),
		ReactIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brain_react_iterations",
			Help:    "Iterations per ReAct invocation.",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		}),
		Suspensions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_suspensions_total",
			Help: "Graph suspensions awaiting human approval.",
		}),
	}
	reg.MustRegister(
		s.Ticks, s.NodeRuns, s.ModeTransitions, s.Dispatches, s.Cancels,
		s.GuardrailRejects, s.OracleCalls, s.OracleFailures,
		s.ReactIterations, s.Suspensions,
	)
	return s
}

// Nop returns a fresh set on its own private registry, safe to update
// and discard.
func Nop() *Set {
	return New()
}
