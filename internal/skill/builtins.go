package skill

import "robotbrain/internal/state"

// Builtins returns the skills every deployment carries.
func Builtins() []state.SkillDef {
	return []state.SkillDef{
		{
			Name:      "NavigateToPose",
			Interface: state.InterfaceAction,
			ArgsSchema: state.ArgsSchema{
				Required: []string{"target_x", "target_y"},
				Properties: map[string]string{
					"target_x":     "number",
					"target_y":     "number",
					"target_theta": "number",
				},
			},
			ResourcesRequired: []string{state.ResourceBase},
			Preemptible:       true,
			CancelSupported:   true,
			TimeoutS:          300.0,
			ErrorMap: map[string]string{
				"NAV_GOAL_REJECTED": "REPLAN",
				"NAV_TIMEOUT":       "RETRY",
				"NAV_BLOCKED":       "REPLAN",
				"RESOURCE_CONFLICT": "REPLAN",
				"UNKNOWN":           "ASK_HUMAN",
			},
			Description: "Navigate the base to a target pose",
		},
		{
			Name:              "StopBase",
			Interface:         state.InterfaceService,
			ArgsSchema:        state.ArgsSchema{Required: []string{}, Properties: map[string]string{}},
			ResourcesRequired: []string{state.ResourceBase},
			Preemptible:       false,
			CancelSupported:   false,
			TimeoutS:          5.0,
			ErrorMap:          map[string]string{},
			Description:       "Emergency-stop the base",
		},
		{
			Name:      "Speak",
			Interface: state.InterfaceInternal,
			ArgsSchema: state.ArgsSchema{
				Required:   []string{"message"},
				Properties: map[string]string{"message": "string"},
			},
			ResourcesRequired: []string{},
			Preemptible:       false,
			CancelSupported:   true,
			TimeoutS:          30.0,
			ErrorMap:          map[string]string{},
			Description:       "Speak a message to the user",
		},
	}
}
