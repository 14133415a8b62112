package react

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"robotbrain/internal/state"
)

// ReasonMalformed is the canonical reason on unparseable oracle output.
const ReasonMalformed = "malformed_decision"

// ParseDecision turns raw oracle text into a Decision. Parse order:
// strict JSON, then the largest balanced {...} substring, then a
// jsonrepair pass over that substring. Anything still unparseable, or a
// type outside the seven-value set, degrades to ASK_HUMAN so a human
// sees the raw output instead of the robot acting on it.
func ParseDecision(raw string) state.Decision {
	if decision, ok := tryDecode(raw); ok {
		return decision
	}

	candidate := largestBalancedObject(raw)
	if candidate != "" {
		if decision, ok := tryDecode(candidate); ok {
			return decision
		}
		if repaired, err := jsonrepair.JSONRepair(candidate); err == nil {
			if decision, ok := tryDecode(repaired); ok {
				return decision
			}
		}
	}

	return state.Decision{Type: state.DecisionAskHuman, Reason: ReasonMalformed}
}

// rawDecision tolerates loose field types before schema defaulting.
type rawDecision struct {
	Type      string          `json:"type"`
	Reason    string          `json:"reason"`
	PlanPatch map[string]any  `json:"plan_patch"`
	Ops       []state.Op      `json:"ops"`
	NewTasks  []state.NewTask `json:"new_tasks"`
}

func tryDecode(text string) (state.Decision, bool) {
	var raw rawDecision
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return state.Decision{}, false
	}
	kind := state.DecisionType(strings.ToUpper(strings.TrimSpace(raw.Type)))
	if !kind.Valid() {
		return state.Decision{}, false
	}
	// reason and ops are carried verbatim; missing fields keep their
	// zero values.
	return state.Decision{
		Type:      kind,
		Reason:    raw.Reason,
		PlanPatch: raw.PlanPatch,
		Ops:       raw.Ops,
		NewTasks:  raw.NewTasks,
	}, true
}

// largestBalancedObject returns the longest substring that starts at a
// '{', ends at its matching '}', and balances braces outside string
// literals.
func largestBalancedObject(text string) string {
	best := ""
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			c := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					if length := i - start + 1; length > len(best) {
						best = text[start : i+1]
					}
				}
			}
			if depth == 0 && c == '}' {
				break
			}
		}
	}
	return best
}
