package agentloop

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Args are the bound arguments of one tool call.
type Args map[string]any

// ParseToolArguments decodes the JSON-encoded argument object of a tool call.
// An empty payload or JSON null yields an empty map.
func ParseToolArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToolArguments, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// String returns a string argument, or "" when absent.
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns an integer argument, or 0 when absent.
func (a Args) Int(key string) int {
	switch n := a[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Float returns a number argument, or 0 when absent.
func (a Args) Float(key string) float64 {
	switch n := a[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// Bool returns a boolean argument, or false when absent.
func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Has reports whether the argument is present.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Decode copies the arguments into the struct pointed to by out, matching
// fields by their json tag.
func (a Args) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(a)); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedToolArguments, err)
	}
	return nil
}
