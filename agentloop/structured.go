package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/tibagni/cli-assistant/unifiedllm"
)

// DecodeStructured validates the final text of result against the JSON
// schema of format and decodes it into v. Any mismatch, including an empty
// answer, fails with ErrUnstructuredModelOutput.
func DecodeStructured(result *Result, format *unifiedllm.ResponseFormat, v any) error {
	if result == nil {
		return fmt.Errorf("%w: no result", ErrUnstructuredModelOutput)
	}
	text := strings.TrimSpace(result.Content())
	if text == "" {
		return fmt.Errorf("%w: empty answer", ErrUnstructuredModelOutput)
	}

	if format != nil && format.JSONSchema != nil && format.JSONSchema.Schema != nil {
		res, err := gojsonschema.Validate(
			gojsonschema.NewGoLoader(format.JSONSchema.Schema),
			gojsonschema.NewStringLoader(text),
		)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnstructuredModelOutput, err)
		}
		if !res.Valid() {
			msgs := make([]string, 0, len(res.Errors()))
			for _, e := range res.Errors() {
				msgs = append(msgs, e.String())
			}
			return fmt.Errorf("%w: %s", ErrUnstructuredModelOutput, strings.Join(msgs, "; "))
		}
	}

	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnstructuredModelOutput, err)
	}
	return nil
}
