package progress

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validRulesYAML = `
schema: podstudio.progress.v1
stage_aliases:
  align: preprocess
  asr: transcribe
statuses:
  - status: started
    contains: ["started"]
  - status: completed
    contains: ["completed", "done"]
  - status: failed
    contains: ["failed"]
`

func TestParseRules_Valid(t *testing.T) {
	rules, err := ParseRules([]byte(validRulesYAML))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if rules.StageAliases["asr"] != "transcribe" {
		t.Fatalf("StageAliases[asr]=%q, want transcribe", rules.StageAliases["asr"])
	}
	if len(rules.Statuses) != 3 {
		t.Fatalf("len(Statuses)=%d, want 3", len(rules.Statuses))
	}
}

func TestParseRules_RejectsWrongSchema(t *testing.T) {
	doc := strings.Replace(validRulesYAML, "podstudio.progress.v1", "podstudio.progress.v2", 1)
	if _, err := ParseRules([]byte(doc)); err == nil {
		t.Fatalf("expected schema error")
	}
}

func TestParseRules_RejectsEmptyStatuses(t *testing.T) {
	doc := "schema: podstudio.progress.v1\nstatuses: []\n"
	if _, err := ParseRules([]byte(doc)); err == nil {
		t.Fatalf("expected statuses error")
	}
}

func TestParseRules_RejectsUnknownStatus(t *testing.T) {
	doc := `
schema: podstudio.progress.v1
statuses:
  - status: paused
    contains: ["paused"]
`
	if _, err := ParseRules([]byte(doc)); err == nil {
		t.Fatalf("expected status vocabulary error")
	}
}

func TestParseRules_RejectsEmptyContains(t *testing.T) {
	doc := `
schema: podstudio.progress.v1
statuses:
  - status: started
    contains: ["  "]
`
	if _, err := ParseRules([]byte(doc)); err == nil {
		t.Fatalf("expected contains error")
	}
}

func TestParseRules_RejectsInvalidYAML(t *testing.T) {
	if _, err := ParseRules([]byte("schema: [")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDefault_Valid(t *testing.T) {
	rules := Default()
	if err := rules.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if rules.StageAliases["align"] != "preprocess" {
		t.Fatalf("StageAliases[align]=%q, want preprocess", rules.StageAliases["align"])
	}
}

func TestLoadRules_EmptyPathUsesDefaults(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if rules.Schema != RulesSchemaV1 {
		t.Fatalf("Schema=%q, want %q", rules.Schema, RulesSchemaV1)
	}
}

func TestLoadRules_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(validRulesYAML), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if rules.StageAliases["align"] != "preprocess" {
		t.Fatalf("StageAliases[align]=%q, want preprocess", rules.StageAliases["align"])
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}
