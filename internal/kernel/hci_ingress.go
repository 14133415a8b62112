package kernel

import (
	"context"
	"regexp"
	"strings"

	"robotbrain/internal/logging"
	"robotbrain/internal/state"
)

// Intent keywords. 中英文指令都接受。
var (
	stopKeywords  = []string{"stop", "紧急停止", "halt", "emergency", "急停"}
	pauseKeywords = []string{"pause", "暂停", "wait", "hold"}

	goalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)go\s+to\s+(.+)`),
		regexp.MustCompile(`(?i)navigate\s+to\s+(.+)`),
		regexp.MustCompile(`去(.+)`),
		regexp.MustCompile(`导航到(.+)`),
		regexp.MustCompile(`前往(.+)`),
	}
)

// HCIIngress (K1) classifies the latest utterance into an interrupt
// kind. The utterance itself is always preserved verbatim.
type HCIIngress struct {
	logger *logging.Logger
}

func NewHCIIngress() *HCIIngress {
	return &HCIIngress{logger: logging.NewComponentLogger("kernel")}
}

func (n *HCIIngress) Name() string { return "hci_ingress" }

func (n *HCIIngress) Run(_ context.Context, s *state.BrainState) (*state.BrainState, error) {
	kind, payload := ParseIntent(s.HCI.UserUtterance)
	s.HCI.UserInterrupt = kind
	s.HCI.InterruptPayload = payload
	s.AppendTrace("[hci_ingress] intent=%s payload=%v", kind, payload)
	n.logger.Debug("intent=%s utterance=%q", kind, s.HCI.UserUtterance)
	return s, nil
}

// ParseIntent performs lexical intent recognition: case-insensitive,
// whitespace-trimmed, first match wins in the order STOP, PAUSE, goal.
func ParseIntent(utterance string) (state.InterruptKind, map[string]string) {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return state.InterruptNone, nil
	}
	lowered := strings.ToLower(trimmed)

	for _, kw := range stopKeywords {
		if strings.Contains(lowered, kw) {
			return state.InterruptStop, map[string]string{"original": utterance}
		}
	}
	for _, kw := range pauseKeywords {
		if strings.Contains(lowered, kw) {
			return state.InterruptPause, map[string]string{"original": utterance}
		}
	}
	for _, pattern := range goalPatterns {
		if m := pattern.FindStringSubmatch(trimmed); m != nil {
			target := strings.TrimSpace(m[1])
			return state.InterruptNewGoal, map[string]string{
				"original":  utterance,
				"goal_text": target,
			}
		}
	}
	return state.InterruptNone, map[string]string{"original": utterance}
}
