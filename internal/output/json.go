package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/reviewgate/internal/gate"
)

// JSONWriter outputs the full decision as JSON.
type JSONWriter struct{}

type jsonDecision struct {
	gate.Decision
	Error string `json:"error,omitempty"`
}

func (j *JSONWriter) Write(w io.Writer, d gate.Decision) error {
	data, err := json.MarshalIndent(jsonDecision{Decision: d, Error: d.ErrorText()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
