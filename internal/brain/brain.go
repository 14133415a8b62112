// Package brain wires the adapters, registry, nodes and driver into a
// runnable controller, and owns the host loop around the graph: inject
// user input, tick, surface interrupts, resume with approvals.
package brain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"robotbrain/internal/checkpoint"
	"robotbrain/internal/config"
	"robotbrain/internal/executor"
	"robotbrain/internal/graph"
	"robotbrain/internal/kernel"
	"robotbrain/internal/logging"
	"robotbrain/internal/metrics"
	"robotbrain/internal/oracle"
	"robotbrain/internal/react"
	"robotbrain/internal/skill"
	"robotbrain/internal/state"
	"robotbrain/internal/telemetry"
)

// Store is the persistence the brain needs: checkpoints plus the
// side-effect key table. Both bundled stores implement it.
type Store interface {
	checkpoint.Store
	executor.KeyStore
}

// Approver resolves an approval interrupt. A nil approver leaves the
// thread suspended for an out-of-band Resume call.
type Approver func(graph.Interrupt) (state.ApprovalResponse, error)

// Deps are the external collaborators of one controller.
type Deps struct {
	Oracle    oracle.Oracle
	Telemetry telemetry.Source
	World     telemetry.WorldSource
	Executor  executor.Executor
	Store     Store
	Metrics   *metrics.Set
	Approver  Approver
	// AfterTick runs between ticks, e.g. to advance a simulator.
	AfterTick func()
}

// Brain drives one thread id.
type Brain struct {
	cfg      *config.Config
	threadID string
	graph    *graph.Graph
	registry *skill.Registry
	deps     Deps
	logger   *logging.Logger

	mu      sync.Mutex
	current *state.BrainState
	pending []string // queued utterances, one consumed per tick
}

// New assembles a controller. The thread id comes from config, or is
// generated when unset.
func New(cfg *config.Config, deps Deps) (*Brain, error) {
	if deps.Oracle == nil || deps.Telemetry == nil || deps.World == nil ||
		deps.Executor == nil || deps.Store == nil {
		return nil, fmt.Errorf("brain requires oracle, telemetry, world, executor and store")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	threadID := cfg.ThreadID
	if threadID == "" {
		threadID = "thread_" + uuid.NewString()[:8]
	}

	registry := skill.NewRegistry()
	if cfg.SkillCatalogPath != "" {
		if err := registry.LoadCatalog(cfg.SkillCatalogPath); err != nil {
			return nil, err
		}
	}

	dedup := executor.NewDedup(deps.Executor, threadID, deps.Store, logging.NewComponentLogger("executor"))

	thresholds := kernel.Thresholds{
		BatteryCriticalPct: cfg.BatteryCriticalPct,
		BatteryLowPct:      cfg.BatteryLowPct,
	}
	limits := react.Limits{
		MaxIterations:          cfg.MaxIterations,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	}

	guardrails := react.NewGuardrailsCheck(registry, deps.Metrics)
	stop := react.NewStopOrLoop(limits)

	g, err := graph.New(graph.Options{
		ThreadID: threadID,
		Kernel: []kernel.Node{
			kernel.NewHCIIngress(),
			kernel.NewTelemetrySync(deps.Telemetry),
			kernel.NewWorldUpdate(deps.World),
			kernel.NewEventArbitrate(thresholds, deps.Metrics),
			kernel.NewTaskQueue(),
			kernel.NewKernelRoute(),
		},
		React: []react.Node{
			react.NewBuildObservation(),
			react.NewReActDecide(deps.Oracle, registry.Summary(), deps.Metrics),
			react.NewCompileOps(registry),
			guardrails,
			react.NewHumanApproval(guardrails, deps.Metrics),
			react.NewDispatchSkills(dedup, registry, threadID, deps.Metrics),
			react.NewObserveResult(dedup),
			stop,
		},
		Store:    deps.Store,
		Executor: dedup,
		Registry: registry,
		Metrics:  deps.Metrics,
		StopNode: stop,
	})
	if err != nil {
		return nil, err
	}

	return &Brain{
		cfg:      cfg,
		threadID: threadID,
		graph:    g,
		registry: registry,
		deps:     deps,
		logger:   logging.NewComponentLogger("brain"),
	}, nil
}

// ThreadID returns the thread this controller drives.
func (b *Brain) ThreadID() string { return b.threadID }

// Registry exposes the skill catalog.
func (b *Brain) Registry() *skill.Registry { return b.registry }

// State returns a copy of the current state, nil before the first tick.
func (b *Brain) State() *state.BrainState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil
	}
	return b.current.Clone()
}

// Say queues a user utterance for the next tick.
func (b *Brain) Say(utterance string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, utterance)
}

// Tick runs exactly one kernel pass (plus the inner loop while EXEC).
// The state is restored from the latest checkpoint on the first call,
// recovering a partially executed pass if the process died mid-tick.
func (b *Brain) Tick(ctx context.Context) (graph.TickResult, error) {
	s, err := b.loadOrRecover(ctx)
	if err != nil {
		return graph.TickResult{}, err
	}

	// A restored thread may still be parked at the approval node; it
	// needs a Resume (or the approver), not another kernel pass.
	if s.React.StopReason == react.StopWaitingApproval {
		result := graph.TickResult{
			Route:      kernel.RouteReactLoop,
			StopReason: react.StopWaitingApproval,
			Suspended:  true,
			Interrupt:  b.pendingInterrupt(s),
		}
		if b.deps.Approver != nil {
			response, aerr := b.deps.Approver(*result.Interrupt)
			if aerr != nil {
				return result, aerr
			}
			return b.resume(ctx, response)
		}
		return result, nil
	}

	b.mu.Lock()
	s.HCI.UserUtterance = ""
	if len(b.pending) > 0 {
		s.HCI.UserUtterance = b.pending[0]
		b.pending = b.pending[1:]
	}
	b.mu.Unlock()

	s, result, err := b.graph.Tick(ctx, s)
	b.setState(s)
	if err != nil {
		return result, err
	}

	if result.Suspended && b.deps.Approver != nil {
		response, aerr := b.deps.Approver(*result.Interrupt)
		if aerr != nil {
			return result, aerr
		}
		return b.resume(ctx, response)
	}
	return result, nil
}

// Resume continues a suspended thread with an approval response.
func (b *Brain) Resume(ctx context.Context, response state.ApprovalResponse) (graph.TickResult, error) {
	return b.resume(ctx, response)
}

func (b *Brain) resume(ctx context.Context, response state.ApprovalResponse) (graph.TickResult, error) {
	s, result, err := b.graph.ResumeApproval(ctx, response)
	if s != nil {
		b.setState(s)
	}
	return result, err
}

// Run ticks until the context ends or the configured tick budget is
// exhausted. Suspensions without an approver end the loop so the host
// can collect the interrupt.
func (b *Brain) Run(ctx context.Context) error {
	interval := time.Duration(b.cfg.TickIntervalS) * time.Second
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := b.Tick(ctx)
		if err != nil {
			return err
		}
		if result.Suspended {
			b.logger.Info("thread %s suspended: %s", b.threadID, result.Interrupt.Payload.Reason)
			return nil
		}

		if b.deps.AfterTick != nil {
			b.deps.AfterTick()
		}

		ticks++
		if b.cfg.MaxTicks > 0 && ticks >= b.cfg.MaxTicks {
			return nil
		}
		if interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
}

func (b *Brain) loadOrRecover(ctx context.Context) (*state.BrainState, error) {
	b.mu.Lock()
	current := b.current
	b.mu.Unlock()
	if current != nil {
		return current, nil
	}

	s, lastNode, err := b.graph.Load()
	if err != nil {
		return nil, err
	}
	if lastNode != "" && s.React.StopReason != react.StopWaitingApproval {
		// Finish a tick the previous process did not complete. The
		// idempotency keys make any replayed dispatch a no-op.
		s, _, err = b.graph.Recover(ctx, s, lastNode)
		if err != nil {
			return nil, err
		}
	}
	b.setState(s)
	return s, nil
}

func (b *Brain) pendingInterrupt(s *state.BrainState) *graph.Interrupt {
	payload := state.ApprovalPayload{}
	if s.React.ProposedOps != nil {
		payload = s.React.ProposedOps.ApprovalPayload
	}
	return &graph.Interrupt{ThreadID: b.threadID, Payload: payload}
}

func (b *Brain) setState(s *state.BrainState) {
	b.mu.Lock()
	b.current = s
	b.mu.Unlock()
}
