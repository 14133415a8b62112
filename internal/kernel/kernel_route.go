package kernel

import (
	"context"

	"robotbrain/internal/logging"
	"robotbrain/internal/state"
)

// KernelRoute (K6) records the routing decision. It writes nothing
// structural; the driver reads the route target from the mode directly,
// the trace line exists for operators replaying a thread.
type KernelRoute struct {
	logger *logging.Logger
}

func NewKernelRoute() *KernelRoute {
	return &KernelRoute{logger: logging.NewComponentLogger("kernel")}
}

func (n *KernelRoute) Name() string { return "kernel_route" }

func (n *KernelRoute) Run(_ context.Context, s *state.BrainState) (*state.BrainState, error) {
	target := RouteFor(s.Tasks.Mode)
	s.AppendTrace("[kernel_route] mode=%s -> %s", s.Tasks.Mode, target)
	return s, nil
}
