package review

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Rules is an optional project rules pack appended to reviewer prompts.
type Rules struct {
	Focus    []string        `json:"focus,omitempty"`
	Required []RequiredCheck `json:"required,omitempty"`
	// Blocking lists conditions the reviewer must always treat as BLOCKING.
	Blocking []string `json:"blocking,omitempty"`
}

// RequiredCheck is a policy check that should always be evaluated.
type RequiredCheck struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// LoadRules loads a rules file from disk. Returns nil Rules and nil error if path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rules Rules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	for i, rc := range rules.Required {
		if strings.TrimSpace(rc.Text) == "" {
			return nil, fmt.Errorf("rules file: required[%d] has no text", i)
		}
	}
	return &rules, nil
}

// PromptSection returns prompt instructions derived from r.
func (r *Rules) PromptSection() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	if len(r.Focus) > 0 {
		fmt.Fprintf(&b, "\nFocus areas: %s. Prioritize issues in these areas.\n", strings.Join(r.Focus, ", "))
	}
	if len(r.Blocking) > 0 {
		b.WriteString("\nAlways report these as BLOCKING:\n")
		for _, s := range r.Blocking {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	if len(r.Required) > 0 {
		b.WriteString("\nRequired checks (always evaluate these):\n")
		for _, req := range r.Required {
			if req.ID != "" {
				fmt.Fprintf(&b, "- [%s] %s\n", req.ID, req.Text)
			} else {
				fmt.Fprintf(&b, "- %s\n", req.Text)
			}
		}
	}
	return b.String()
}
