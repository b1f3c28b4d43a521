// Package progress normalizes raw pipeline progress callbacks into the
// canonical stage and status vocabulary tracked on a run.
package progress

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const RulesSchemaV1 = "podstudio.progress.v1"

// Rules declares how raw progress values map onto canonical ones. Stage
// aliases rewrite stage names; status rules classify raw status strings
// by substring match, first rule wins.
type Rules struct {
	Schema       string            `json:"schema" yaml:"schema"`
	StageAliases map[string]string `json:"stage_aliases,omitempty" yaml:"stage_aliases,omitempty"`
	Statuses     []StatusRule      `json:"statuses" yaml:"statuses"`
}

type StatusRule struct {
	Status   string   `json:"status" yaml:"status"`
	Contains []string `json:"contains" yaml:"contains"`
}

// Default returns the built-in rules matching the podx CLI vocabulary.
func Default() Rules {
	return Rules{
		Schema: RulesSchemaV1,
		StageAliases: map[string]string{
			"align": "preprocess",
		},
		Statuses: []StatusRule{
			{Status: "started", Contains: []string{"started", "fetching", "transcoding", "transcribing"}},
			{Status: "completed", Contains: []string{"completed", "using existing"}},
			{Status: "failed", Contains: []string{"failed", "error"}},
		},
	}
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(input []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(input, &rules); err != nil {
		return Rules{}, fmt.Errorf("decode rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// LoadRules reads a rules file from disk. An empty path selects the
// built-in defaults.
func LoadRules(path string) (Rules, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

func (r Rules) Validate() error {
	if strings.TrimSpace(r.Schema) != RulesSchemaV1 {
		return fmt.Errorf("rules.schema must be %q", RulesSchemaV1)
	}
	if len(r.Statuses) == 0 {
		return fmt.Errorf("rules.statuses must be non-empty")
	}

	for alias, target := range r.StageAliases {
		if strings.TrimSpace(alias) == "" {
			return fmt.Errorf("rules.stage_aliases key must be non-empty")
		}
		if strings.TrimSpace(target) == "" {
			return fmt.Errorf("rules.stage_aliases[%q] must be non-empty", alias)
		}
	}

	for i, rule := range r.Statuses {
		status := strings.ToLower(strings.TrimSpace(rule.Status))
		if status == "" {
			return fmt.Errorf("rules.statuses[%d].status is required", i)
		}
		if !isStatusAllowed(status) {
			return fmt.Errorf("rules.statuses[%d].status unsupported: %q", i, rule.Status)
		}
		if len(trimNonEmpty(rule.Contains)) == 0 {
			return fmt.Errorf("rules.statuses[%d].contains must be non-empty", i)
		}
	}
	return nil
}

func isStatusAllowed(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "started", "completed", "failed":
		return true
	default:
		return false
	}
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, item := range values {
		v := strings.TrimSpace(item)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
