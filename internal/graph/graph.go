// Package graph sequences the kernel and ReAct nodes over a single
// thread id: one kernel pass per tick, the inner loop to a suspension
// point while mode is EXEC, a checkpoint after every node, and
// resume-after-last-completed-node on restart.
package graph

import (
	"context"
	"fmt"

	"robotbrain/internal/checkpoint"
	"robotbrain/internal/executor"
	"robotbrain/internal/kernel"
	"robotbrain/internal/logging"
	"robotbrain/internal/metrics"
	"robotbrain/internal/react"
	"robotbrain/internal/skill"
	"robotbrain/internal/state"
	"robotbrain/internal/world"
)

// Interrupt is handed to the host when the graph suspends for approval.
type Interrupt struct {
	ThreadID string
	Payload  state.ApprovalPayload
}

// TickResult reports what one tick did and whether the thread is parked.
type TickResult struct {
	Route      kernel.RouteTarget
	StopReason string
	Suspended  bool
	Interrupt  *Interrupt
}

// Options assemble a graph for one thread id.
type Options struct {
	ThreadID string
	Kernel   []kernel.Node
	React    []react.Node
	Store    checkpoint.Store
	Executor *executor.Dedup
	Registry *skill.Registry
	Metrics  *metrics.Set
	StopNode *react.StopOrLoop
}

// Graph drives one thread.
type Graph struct {
	threadID string
	kernel   []kernel.Node
	react    []react.Node
	store    checkpoint.Store
	exec     *executor.Dedup
	registry *skill.Registry
	stop     *react.StopOrLoop
	metrics  *metrics.Set
	logger   *logging.Logger

	step int // persisted via checkpoint StepIndex
}

// New builds a driver. The react slice must follow the canonical R1..R8
// order; the stop node must be the final entry.
func New(opts Options) (*Graph, error) {
	if opts.ThreadID == "" {
		return nil, fmt.Errorf("graph requires a thread id")
	}
	if len(opts.Kernel) == 0 || len(opts.React) == 0 {
		return nil, fmt.Errorf("graph requires kernel and react nodes")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	return &Graph{
		threadID: opts.ThreadID,
		kernel:   opts.Kernel,
		react:    opts.React,
		store:    opts.Store,
		exec:     opts.Executor,
		registry: opts.Registry,
		stop:     opts.StopNode,
		metrics:  opts.Metrics,
		logger:   logging.NewComponentLogger("graph"),
	}, nil
}

// Load restores the latest checkpointed state for the thread, or a
// fresh state when none exists. The second result names the last
// completed node ("" for a fresh thread).
func (g *Graph) Load() (*state.BrainState, string, error) {
	cp, ok, err := g.store.Latest(g.threadID)
	if err != nil {
		return nil, "", fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return state.New(), "", nil
	}
	s, err := state.Deserialize(cp.State)
	if err != nil {
		return nil, "", fmt.Errorf("restore thread %s: %w", g.threadID, err)
	}
	g.step = cp.StepIndex
	g.logger.Info("restored thread %s at step %d (after %s)", g.threadID, cp.StepIndex, cp.NodeName)
	return s, cp.NodeName, nil
}

// Tick runs one full kernel pass and, when routed into EXEC, the inner
// loop until it exits or suspends.
func (g *Graph) Tick(ctx context.Context, s *state.BrainState) (*state.BrainState, TickResult, error) {
	g.metrics.Ticks.Inc()
	if s.Trace.Metrics == nil {
		s.Trace.Metrics = map[string]float64{}
	}
	s.Trace.Metrics["tick"]++

	var err error
	for _, node := range g.kernel {
		s, err = g.runNode(ctx, node.Name(), func(st *state.BrainState) (*state.BrainState, error) {
			return node.Run(ctx, st)
		}, s)
		if err != nil {
			return s, TickResult{}, err
		}
	}

	route := kernel.RouteFor(s.Tasks.Mode)
	switch route {
	case kernel.RouteSafeHandler:
		s, err = g.safeHandler(ctx, s)
		return s, TickResult{Route: route}, err
	case kernel.RouteChargeHandler:
		s, err = g.chargeHandler(ctx, s)
		return s, TickResult{Route: route}, err
	case kernel.RouteIdleYield:
		// A user stop parks the scheduler in IDLE, but whatever is
		// still running must not keep driving the base.
		if s.Tasks.PreemptFlag && len(s.Skills.Running) > 0 {
			s, err = g.cancelPreemptible(ctx, s)
		}
		return s, TickResult{Route: route}, err
	}

	// Fresh EXEC entry: the iteration counter restarts and inner-loop
	// scratch state from the previous entry is dropped.
	s.React.Iter = 0
	s.React.StopReason = ""
	s.React.Decision = nil
	s.React.ProposedOps = nil

	return g.runReact(ctx, s, 0)
}

// ResumeApproval continues a thread suspended at the approval node. The
// response is written into hci and the inner loop re-enters at R5.
func (g *Graph) ResumeApproval(ctx context.Context, response state.ApprovalResponse) (*state.BrainState, TickResult, error) {
	s, _, err := g.Load()
	if err != nil {
		return nil, TickResult{}, err
	}
	if s.React.StopReason != react.StopWaitingApproval {
		return nil, TickResult{}, fmt.Errorf("thread %s is not awaiting approval", g.threadID)
	}
	s.HCI.ApprovalResponse = &response
	s.React.StopReason = ""
	return g.runReact(ctx, s, g.nodeIndex("human_approval"))
}

// Recover finishes an interrupted tick after a crash: execution resumes
// with the node after the last completed one. Only inner-loop nodes are
// recovered mid-pass; an interrupted kernel pass restarts cleanly at
// the next tick since kernel nodes have no side effects.
func (g *Graph) Recover(ctx context.Context, s *state.BrainState, lastNode string) (*state.BrainState, TickResult, error) {
	idx := g.nodeIndex(lastNode)
	if idx < 0 {
		return s, TickResult{}, nil
	}
	if lastNode == "stop_or_loop" {
		return s, TickResult{}, nil
	}
	return g.runReact(ctx, s, idx+1)
}

// runReact executes react nodes from startAt until the stop node exits,
// the approval node suspends, or the loop wraps back to R1.
func (g *Graph) runReact(ctx context.Context, s *state.BrainState, startAt int) (*state.BrainState, TickResult, error) {
	result := TickResult{Route: kernel.RouteReactLoop}
	idx := startAt
	var err error

	for {
		for ; idx < len(g.react); idx++ {
			node := g.react[idx]
			s, err = g.runNode(ctx, node.Name(), func(st *state.BrainState) (*state.BrainState, error) {
				return node.Run(ctx, st)
			}, s)
			if err != nil {
				return s, result, err
			}

			if node.Name() == "human_approval" && s.React.StopReason == react.StopWaitingApproval {
				result.Suspended = true
				result.StopReason = react.StopWaitingApproval
				payload := state.ApprovalPayload{}
				if s.React.ProposedOps != nil {
					payload = s.React.ProposedOps.ApprovalPayload
				}
				result.Interrupt = &Interrupt{ThreadID: g.threadID, Payload: payload}
				return s, result, nil
			}
		}

		decision, reason := g.stop.Evaluate(s)
		if decision == react.LoopExit {
			result.StopReason = reason
			g.metrics.ReactIterations.Observe(float64(s.React.Iter))
			return s, result, nil
		}
		idx = 0
	}
}

// runNode executes one node against a private clone and checkpoints the
// successor state.
func (g *Graph) runNode(ctx context.Context, name string, fn func(*state.BrainState) (*state.BrainState, error), s *state.BrainState) (*state.BrainState, error) {
	select {
	case <-ctx.Done():
		return s, ctx.Err()
	default:
	}

	next, err := fn(s.Clone())
	if err != nil {
		return s, fmt.Errorf("node %s: %w", name, err)
	}
	g.metrics.NodeRuns.WithLabelValues(name).Inc()

	if err := next.Validate(); err != nil {
		return s, fmt.Errorf("node %s broke state invariant: %w", name, err)
	}

	g.step++
	payload, err := next.Serialize()
	if err != nil {
		return s, fmt.Errorf("node %s: %w", name, err)
	}
	if err := g.store.Save(checkpoint.Checkpoint{
		ThreadID:  g.threadID,
		StepIndex: g.step,
		NodeName:  name,
		State:     payload,
	}); err != nil {
		return s, fmt.Errorf("checkpoint after %s: %w", name, err)
	}
	return next, nil
}

// nodeIndex locates a react node by name, -1 if absent.
func (g *Graph) nodeIndex(name string) int {
	for i, node := range g.react {
		if node.Name() == name {
			return i
		}
	}
	return -1
}

// safeHandler issues the one-shot SAFE response: cancel what can be
// cancelled, stop the base. Bypasses the inner loop entirely.
func (g *Graph) safeHandler(ctx context.Context, s *state.BrainState) (*state.BrainState, error) {
	return g.oneShot(ctx, s, "safe_handler", state.DispatchOp{
		SkillName: "StopBase",
		Params:    map[string]any{},
	}, "检测到安全事件，已紧急停止")
}

// chargeHandler sends the robot to the charging station.
func (g *Graph) chargeHandler(ctx context.Context, s *state.BrainState) (*state.BrainState, error) {
	_, pt, _ := world.Resolve(world.ChargingStation)
	return g.oneShot(ctx, s, "charge_handler", state.DispatchOp{
		SkillName: "NavigateToPose",
		Params:    map[string]any{"target_x": pt.X, "target_y": pt.Y},
	}, "电量不足，正在返回充电站")
}

// cancelPreemptible retires running preemptible skills through the
// dispatch node, so cancellation bookkeeping stays on the one path.
func (g *Graph) cancelPreemptible(ctx context.Context, s *state.BrainState) (*state.BrainState, error) {
	toCancel := g.preemptibleGoals(s)
	if len(toCancel) == 0 {
		return g.observeOnly(ctx, s)
	}
	s.React.ProposedOps = &state.ProposedOps{ToCancel: toCancel}
	s.AppendTrace("[idle_preempt] cancelling %d running skill(s)", len(toCancel))

	dispatch := g.dispatchNode()
	s, err := g.runNode(ctx, dispatch.Name(), func(st *state.BrainState) (*state.BrainState, error) {
		return dispatch.Run(ctx, st)
	}, s)
	if err != nil {
		return s, err
	}
	s.React.ProposedOps = nil
	return s, nil
}

func (g *Graph) preemptibleGoals(s *state.BrainState) []string {
	var out []string
	for _, rs := range s.Skills.Running {
		def, err := g.registry.Get(rs.SkillName)
		if err == nil && (!def.CancelSupported || !def.Preemptible) {
			continue
		}
		out = append(out, rs.GoalID)
	}
	return out
}

// oneShot synthesizes a ProposedOps for the mode handler and reuses the
// dispatch and observe nodes, so idempotence and bookkeeping follow the
// same path as oracle-driven dispatches.
func (g *Graph) oneShot(ctx context.Context, s *state.BrainState, name string, op state.DispatchOp, announce string) (*state.BrainState, error) {
	// Skip when the same response is already in flight. For navigation
	// that means the same target, not just the same skill.
	for _, rs := range s.Skills.Running {
		if rs.SkillName == op.SkillName && sameTarget(rs.Params, op.Params) {
			return g.observeOnly(ctx, s)
		}
	}

	toCancel := g.preemptibleGoals(s)

	s.React.ProposedOps = &state.ProposedOps{
		ToCancel:   toCancel,
		ToDispatch: []state.DispatchOp{op},
		ToSpeak:    []string{announce},
	}
	s.AppendTrace("[%s] dispatching %s", name, op.SkillName)

	dispatch := g.dispatchNode()
	observe := g.observeNode()
	var err error
	s, err = g.runNode(ctx, dispatch.Name(), func(st *state.BrainState) (*state.BrainState, error) {
		return dispatch.Run(ctx, st)
	}, s)
	if err != nil {
		return s, err
	}
	s, err = g.runNode(ctx, observe.Name(), func(st *state.BrainState) (*state.BrainState, error) {
		return observe.Run(ctx, st)
	}, s)
	if err != nil {
		return s, err
	}
	s.React.ProposedOps = nil
	return s, nil
}

// observeOnly polls running skills outside the inner loop, used by the
// mode handlers while their one-shot response is in flight.
func (g *Graph) observeOnly(ctx context.Context, s *state.BrainState) (*state.BrainState, error) {
	observe := g.observeNode()
	return g.runNode(ctx, observe.Name(), func(st *state.BrainState) (*state.BrainState, error) {
		return observe.Run(ctx, st)
	}, s)
}

// sameTarget compares navigation targets with a small tolerance; ops
// without coordinates compare equal by skill name alone.
func sameTarget(a, b map[string]any) bool {
	ax, aok := coord(a, "target_x")
	bx, bok := coord(b, "target_x")
	if !aok || !bok {
		return true
	}
	ay, _ := coord(a, "target_y")
	by, _ := coord(b, "target_y")
	const tolerance = 0.05
	return abs(ax-bx) < tolerance && abs(ay-by) < tolerance
}

func coord(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (g *Graph) dispatchNode() react.Node {
	if idx := g.nodeIndex("dispatch_skills"); idx >= 0 {
		return g.react[idx]
	}
	return react.NewDispatchSkills(g.exec, g.registry, g.threadID, g.metrics)
}

func (g *Graph) observeNode() react.Node {
	if idx := g.nodeIndex("observe_result"); idx >= 0 {
		return g.react[idx]
	}
	return react.NewObserveResult(g.exec)
}
