package firewall

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// InputError reports a hook payload that cannot be checked.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return "invalid firewall input: " + e.Reason }

// Event is a tool invocation about to run: either a shell command or a file
// write.
type Event struct {
	Tool     string
	Command  string
	FilePath string
}

type hookPayload struct {
	ToolName  string `json:"tool_name"`
	ToolInput struct {
		Command      string `json:"command"`
		FilePath     string `json:"file_path"`
		NotebookPath string `json:"notebook_path"`
		Path         string `json:"path"`
	} `json:"tool_input"`
}

// DecodeEvent reads a hook payload. A payload carrying neither a command nor
// a file path is an InputError.
func DecodeEvent(r io.Reader) (Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Event{}, &InputError{Reason: fmt.Sprintf("read payload: %v", err)}
	}
	if strings.TrimSpace(string(data)) == "" {
		return Event{}, &InputError{Reason: "empty payload"}
	}
	var p hookPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, &InputError{Reason: fmt.Sprintf("decode payload: %v", err)}
	}
	ev := Event{Tool: p.ToolName, Command: p.ToolInput.Command}
	for _, fp := range []string{p.ToolInput.FilePath, p.ToolInput.NotebookPath, p.ToolInput.Path} {
		if fp != "" {
			ev.FilePath = fp
			break
		}
	}
	if ev.Command == "" && ev.FilePath == "" {
		return Event{}, &InputError{Reason: "tool_input has neither command nor file_path"}
	}
	return ev, nil
}
