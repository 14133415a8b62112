package react

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"robotbrain/internal/logging"
	"robotbrain/internal/state"
)

// BuildObservation (R1) compresses the objective state into the
// structured record the oracle reasons over, and advances the iteration
// counter.
type BuildObservation struct {
	logger *logging.Logger
}

func NewBuildObservation() *BuildObservation {
	return &BuildObservation{logger: logging.NewComponentLogger("react")}
}

func (n *BuildObservation) Name() string { return "build_observation" }

func (n *BuildObservation) Run(_ context.Context, s *state.BrainState) (*state.BrainState, error) {
	s.React.Iter++
	observation := Compose(s)
	s.React.Observation = observation

	s.Messages = append(s.Messages, state.Message{
		Role:    "system",
		Content: Format(observation),
		Kind:    "observation",
	})
	s.AppendTrace("[build_observation] iter=%d", s.React.Iter)
	return s, nil
}

// Compose builds the observation record. Floats are rounded so the
// rendered form is stable across runs at the same state.
func Compose(s *state.BrainState) map[string]any {
	riskCount := 0
	for _, obs := range s.World.Obstacles {
		if obs.CollisionRisk {
			riskCount++
		}
	}

	queuePreview := make([]map[string]any, 0, len(s.Tasks.Queue))
	for _, t := range s.Tasks.Queue {
		queuePreview = append(queuePreview, map[string]any{
			"task_id": t.ID,
			"goal":    t.Goal,
			"status":  string(t.Status),
		})
	}

	running := make([]map[string]any, 0, len(s.Skills.Running))
	for _, rs := range s.Skills.Running {
		running = append(running, map[string]any{
			"skill_name": rs.SkillName,
			"goal_id":    rs.GoalID,
		})
	}

	var goal any
	if task := s.ActiveTask(); task != nil {
		goal = task.Goal
	}

	observation := map[string]any{
		"iteration": float64(s.React.Iter),
		"world": map[string]any{
			"summary":              s.World.Summary,
			"zones":                s.World.Zones,
			"obstacle_count":       float64(len(s.World.Obstacles)),
			"obstacles_risk_count": float64(riskCount),
		},
		"robot": map[string]any{
			"position": map[string]any{
				"x": round2(s.Robot.Pose.X),
				"y": round2(s.Robot.Pose.Y),
			},
			"battery_pct":        round1(s.Robot.BatteryPct),
			"battery_state":      s.Robot.BatteryState,
			"distance_to_target": round2(s.Robot.DistanceToTarget),
			"resources":          resourcesAny(s.Robot.Resources),
		},
		"task": map[string]any{
			"active_task_id": s.Tasks.ActiveTaskID,
			"goal":           goal,
			"queue_length":   float64(len(s.Tasks.Queue)),
			"queue_preview":  queuePreview,
			"mode":           string(s.Tasks.Mode),
		},
		"skills": map[string]any{
			"running_count": float64(len(s.Skills.Running)),
			"running":       running,
		},
	}

	if lr := s.Skills.LastResult; lr != nil {
		observation["skills"].(map[string]any)["last_result"] = map[string]any{
			"status":     string(lr.Status),
			"error_code": lr.ErrorCode,
			"error_msg":  lr.ErrorMsg,
		}
	}
	if s.HCI.UserUtterance != "" {
		observation["user_utterance"] = s.HCI.UserUtterance
	}

	return observation
}

// Format renders the observation for the chat log and the oracle prompt.
func Format(observation map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Observation - iteration %v]\n", observation["iteration"])

	if w, ok := observation["world"].(map[string]any); ok {
		fmt.Fprintf(&b, "World: %v\n", w["summary"])
	}
	if r, ok := observation["robot"].(map[string]any); ok {
		pos := r["position"].(map[string]any)
		fmt.Fprintf(&b, "Robot: pos=(%v, %v), battery=%v%%, distance_to_target=%vm\n",
			pos["x"], pos["y"], r["battery_pct"], r["distance_to_target"])
	}
	if t, ok := observation["task"].(map[string]any); ok {
		if t["goal"] != nil {
			fmt.Fprintf(&b, "Task: %v (mode=%v)\n", t["goal"], t["mode"])
		} else {
			fmt.Fprintf(&b, "Task: none (mode=%v)\n", t["mode"])
		}
	}
	if sk, ok := observation["skills"].(map[string]any); ok {
		if lr, ok := sk["last_result"].(map[string]any); ok {
			fmt.Fprintf(&b, "Last result: %v", lr["status"])
			if code, _ := lr["error_code"].(string); code != "" {
				fmt.Fprintf(&b, " (%v: %v)", code, lr["error_msg"])
			}
			b.WriteString("\n")
		}
		if names := runningNames(sk["running"]); len(names) > 0 {
			fmt.Fprintf(&b, "Running skills: %s\n", strings.Join(names, ", "))
		}
	}
	if u, ok := observation["user_utterance"].(string); ok {
		fmt.Fprintf(&b, "User said: %s\n", u)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatJSON renders the observation as compact JSON for transports
// that want structure instead of prose.
func FormatJSON(observation map[string]any) string {
	data, err := json.Marshal(observation)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// runningNames tolerates both the freshly composed slice type and the
// generic slice the JSON codec produces after a state clone.
func runningNames(v any) []string {
	var names []string
	switch slice := v.(type) {
	case []map[string]any:
		for _, rs := range slice {
			names = append(names, fmt.Sprint(rs["skill_name"]))
		}
	case []any:
		for _, item := range slice {
			if rs, ok := item.(map[string]any); ok {
				names = append(names, fmt.Sprint(rs["skill_name"]))
			}
		}
	}
	return names
}

func resourcesAny(in map[string]bool) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
