package agentloop

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrToolNotFound            = errors.New("tool not found")
	ErrToolExecution           = errors.New("tool execution failed")
	ErrMalformedToolArguments  = errors.New("malformed tool arguments")
	ErrInvalidConfiguration    = errors.New("invalid configuration")
	ErrUnstructuredModelOutput = errors.New("unstructured model output")
	ErrToolDescriptionMissing  = errors.New("tool description missing")
)

// ToolError is a failure of a single tool call. The agent loop turns it into
// a tool-result message rather than returning it.
type ToolError struct {
	Kind error
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrToolNotFound):
		return fmt.Sprintf("tool %q not found", e.Tool)
	case errors.Is(e.Kind, ErrToolExecution) && e.Err != nil:
		// Surface the tool's own message untouched; the model reads it.
		return e.Err.Error()
	case e.Err != nil:
		return fmt.Sprintf("%v for tool %q: %v", e.Kind, e.Tool, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Tool)
}

func (e *ToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
