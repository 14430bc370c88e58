package review

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRules_Empty(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules != nil {
		t.Error("expected nil rules for empty path")
	}
}

func TestLoadRules_Valid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	content := `{
		"focus": ["security", "correctness"],
		"blocking": ["secrets committed in plain text"],
		"required": [
			{"id": "go-errors", "text": "Ensure errors are wrapped with context"}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules error: %v", err)
	}
	if len(rules.Focus) != 2 || rules.Focus[0] != "security" {
		t.Errorf("Focus = %v", rules.Focus)
	}
	if len(rules.Required) != 1 || rules.Required[0].ID != "go-errors" {
		t.Errorf("Required = %v", rules.Required)
	}

	section := rules.PromptSection()
	for _, want := range []string{"Focus areas: security, correctness", "[go-errors] Ensure errors", "secrets committed in plain text"} {
		if !strings.Contains(section, want) {
			t.Errorf("PromptSection missing %q:\n%s", want, section)
		}
	}
}

func TestLoadRules_Invalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0o644)
	if _, err := LoadRules(bad); err == nil {
		t.Error("expected parse error")
	}

	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte(`{"required":[{"id":"x","text":" "}]}`), 0o644)
	if _, err := LoadRules(empty); err == nil {
		t.Error("expected error for required check without text")
	}

	if _, err := LoadRules(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPromptSection_Nil(t *testing.T) {
	var r *Rules
	if r.PromptSection() != "" {
		t.Error("nil rules should add nothing")
	}
}
