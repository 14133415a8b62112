// Package kernel implements the outer scheduling loop: input parsing,
// telemetry sync, world summary, mode arbitration, task queueing and
// routing. Each node is a State -> State transition with strict writer
// ownership over its sub-state.
package kernel

import (
	"context"

	"robotbrain/internal/state"
)

// Node is one kernel transition. Run receives a private clone of the
// state and returns the successor.
type Node interface {
	Name() string
	Run(ctx context.Context, s *state.BrainState) (*state.BrainState, error)
}

// RouteTarget tells the driver what to do after a kernel pass.
type RouteTarget string

const (
	RouteSafeHandler   RouteTarget = "safe_handler"
	RouteChargeHandler RouteTarget = "charge_handler"
	RouteReactLoop     RouteTarget = "react_loop"
	RouteIdleYield     RouteTarget = "idle_yield"
)

// RouteFor maps the arbitrated mode onto a route target.
func RouteFor(mode state.Mode) RouteTarget {
	switch mode {
	case state.ModeSafe:
		return RouteSafeHandler
	case state.ModeCharge:
		return RouteChargeHandler
	case state.ModeExec:
		return RouteReactLoop
	default:
		return RouteIdleYield
	}
}
