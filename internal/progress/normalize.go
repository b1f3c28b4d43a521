package progress

import (
	"strings"

	"github.com/podstudio-labs/podstudio-go/internal/domain"
)

// Normalizer maps raw stage and status strings from pipeline callbacks
// onto the canonical vocabulary. The same inputs always produce the same
// outputs.
type Normalizer struct {
	rules Rules
}

func NewNormalizer(rules Rules) *Normalizer {
	return &Normalizer{rules: rules}
}

// Stage canonicalizes a raw stage name. Unknown stages pass through
// unchanged so new pipeline steps surface without a rules update.
func (n *Normalizer) Stage(raw string) string {
	stage := strings.ToLower(strings.TrimSpace(raw))
	if target, ok := n.rules.StageAliases[stage]; ok {
		return target
	}
	return stage
}

// Status classifies a raw status string. Rules are checked in order and
// the first substring match wins. Unmatched statuses fall back to
// started; the second return reports whether the input matched a rule.
func (n *Normalizer) Status(raw string) (domain.StageStatus, bool) {
	status := strings.ToLower(strings.TrimSpace(raw))
	for _, rule := range n.rules.Statuses {
		for _, needle := range rule.Contains {
			if strings.Contains(status, strings.ToLower(needle)) {
				return domain.StageStatus(strings.ToLower(rule.Status)), true
			}
		}
	}
	return domain.StageStarted, false
}

// Normalize canonicalizes a raw stage/status pair.
func (n *Normalizer) Normalize(rawStage, rawStatus string) (string, domain.StageStatus, bool) {
	stage := n.Stage(rawStage)
	status, recognized := n.Status(rawStatus)
	return stage, status, recognized
}
