package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/dshills/reviewgate/internal/gate"
)

func TestJSONWriter(t *testing.T) {
	d := blockedCommit()
	d.Err = &gate.InputError{Reason: "cannot read staged diff"}

	var buf bytes.Buffer
	if err := (&JSONWriter{}).Write(&buf, d); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["gate"] != "pre-commit" || got["kind"] != "review-failed" || got["allowed"] != false {
		t.Errorf("unexpected decision fields: %v", got)
	}
	if got["error"] != "cannot read staged diff" {
		t.Errorf("error = %v", got["error"])
	}
	verdicts, ok := got["verdicts"].([]any)
	if !ok || len(verdicts) != 1 {
		t.Fatalf("verdicts = %v", got["verdicts"])
	}
	v := verdicts[0].(map[string]any)
	if v["outcome"] != "FAIL" || v["source"] != "claude" {
		t.Errorf("verdict = %v", v)
	}
}

func TestJSONWriter_OmitsEmpty(t *testing.T) {
	d := gate.Decision{Gate: gate.PreCommitGate, Allowed: true, Kind: gate.KindAllowed, Summary: "nothing to review"}
	var buf bytes.Buffer
	if err := (&JSONWriter{}).Write(&buf, d); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"error", "verdicts", "chunks", "remediation", "pr"} {
		if _, ok := got[key]; ok {
			t.Errorf("key %q should be omitted", key)
		}
	}
}
