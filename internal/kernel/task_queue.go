package kernel

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"robotbrain/internal/logging"
	"robotbrain/internal/state"
)

// Task priorities. User-issued goals outrank background work.
const (
	PriorityDefault = 50
	PriorityUser    = 80
)

// TaskQueue (K5) drains the inbox into the ordered queue and maintains
// the active task selection.
type TaskQueue struct {
	logger *logging.Logger
	now    func() time.Time
}

func NewTaskQueue() *TaskQueue {
	return &TaskQueue{logger: logging.NewComponentLogger("kernel"), now: time.Now}
}

func (n *TaskQueue) Name() string { return "task_queue" }

func (n *TaskQueue) Run(_ context.Context, s *state.BrainState) (*state.BrainState, error) {
	// A recognized goal utterance enters through the inbox like any
	// other goal source.
	if s.HCI.UserInterrupt == state.InterruptNewGoal {
		if target := s.HCI.InterruptPayload["goal_text"]; target != "" {
			s.Tasks.Inbox = append(s.Tasks.Inbox, map[string]string{
				"goal":     "navigate_to:" + target,
				"target":   target,
				"priority": strconv.Itoa(PriorityUser),
				"source":   "user_interrupt",
			})
		}
	}

	for _, raw := range s.Tasks.Inbox {
		if task, ok := n.taskFromInbox(raw); ok {
			s.Tasks.Queue = append(s.Tasks.Queue, task)
		}
	}
	s.Tasks.Inbox = nil

	sortQueue(s.Tasks.Queue)

	if s.Tasks.PreemptFlag {
		if active := s.ActiveTask(); active != nil && active.Preemptible {
			active.Status = state.TaskPending
			s.Tasks.ActiveTaskID = ""
			s.AppendTrace("[task_queue] preempted active task %s", active.ID)
		}
	}

	if s.Tasks.ActiveTaskID == "" && s.Tasks.Mode == state.ModeExec {
		for i := range s.Tasks.Queue {
			if s.Tasks.Queue[i].Status == state.TaskPending {
				s.Tasks.Queue[i].Status = state.TaskRunning
				s.Tasks.ActiveTaskID = s.Tasks.Queue[i].ID
				break
			}
		}
	}

	s.AppendTrace("[task_queue] queue=%d active=%s", len(s.Tasks.Queue), s.Tasks.ActiveTaskID)
	return s, nil
}

func (n *TaskQueue) taskFromInbox(raw map[string]string) (state.Task, bool) {
	goal := raw["goal"]
	if goal == "" {
		return state.Task{}, false
	}
	priority := PriorityDefault
	if p, err := strconv.Atoi(raw["priority"]); err == nil {
		priority = p
	}
	deadline := 0.0
	if d, err := strconv.ParseFloat(raw["deadline"], 64); err == nil {
		deadline = d
	}
	preemptible := raw["preemptible"] != "false"

	metadata := map[string]string{}
	for _, key := range []string{"source", "target", "original", "sequence", "target_x", "target_y"} {
		if v := raw[key]; v != "" {
			metadata[key] = v
		}
	}

	return state.Task{
		ID:                "task_" + uuid.NewString()[:8],
		Goal:              goal,
		Priority:          priority,
		Deadline:          deadline,
		ResourcesRequired: []string{state.ResourceBase},
		Preemptible:       preemptible,
		Status:            state.TaskPending,
		CreatedAt:         float64(n.now().UnixMilli()) / 1000.0,
		Metadata:          metadata,
	}, true
}

// sortQueue orders by priority desc, then deadline asc (zero deadline
// last), then arrival asc. The sort is stable so equal tasks keep
// insertion order.
func sortQueue(queue []state.Task) {
	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Deadline != b.Deadline {
			if a.Deadline == 0 {
				return false
			}
			if b.Deadline == 0 {
				return true
			}
			return a.Deadline < b.Deadline
		}
		return a.CreatedAt < b.CreatedAt
	})
}
