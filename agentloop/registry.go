package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/tibagni/cli-assistant/unifiedllm"
)

// ParamType is the JSON-Schema type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// normalize maps unknown or empty types to string.
func (t ParamType) normalize() ParamType {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		return t
	default:
		return TypeString
	}
}

// Param declares one tool parameter. A parameter without a Default is required.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Default     any
}

// Required reports whether the model must supply the parameter.
func (p Param) Required() bool {
	return p.Default == nil
}

// Handler implements a tool. Args have already been validated and coerced
// against the tool's parameters, with defaults filled in.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is the registration record of one capability.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler

	// err is set by builders that failed to derive the tool; it surfaces
	// when the tool is registered.
	err error
}

// ToolSpec is the immutable description of a registered tool.
type ToolSpec struct {
	Name        string
	Description string
	params      []Param
}

// Params returns a copy of the tool's parameters in declaration order.
func (s ToolSpec) Params() []Param {
	out := make([]Param, len(s.params))
	copy(out, s.params)
	for i := range out {
		out[i].Default = cloneValue(out[i].Default)
	}
	return out
}

// Schema returns the JSON-Schema object describing the tool's parameters.
func (s ToolSpec) Schema() map[string]any {
	properties := make(map[string]any, len(s.params))
	required := make([]string, 0, len(s.params))
	for _, p := range s.params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required() {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Format returns the tool in the shape the gateway sends to providers.
func (s ToolSpec) Format() unifiedllm.ToolSchema {
	return unifiedllm.ToolSchema{
		Type: "function",
		Function: unifiedllm.FunctionSchema{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.Schema(),
		},
	}
}

type registeredTool struct {
	spec      ToolSpec
	handler   Handler
	validator *gojsonschema.Schema
}

// Registry maps tool names to their specs and handlers. It is built once and
// read-only afterwards, so concurrent lookups are safe.
type Registry struct {
	specs []ToolSpec
	tools map[string]*registeredTool
}

var toolNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// NewRegistry validates and registers tools in order. Tools whose name starts
// with an underscore are private and never registered.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]*registeredTool, len(tools))}
	for _, t := range tools {
		if strings.HasPrefix(t.Name, "_") {
			continue
		}
		if err := r.register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(t Tool) error {
	if t.err != nil {
		return fmt.Errorf("tool %q: %w", t.Name, t.err)
	}
	if !toolNamePattern.MatchString(t.Name) {
		return configError("invalid tool name %q", t.Name)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: tool %q", ErrToolDescriptionMissing, t.Name)
	}
	if t.Handler == nil {
		return configError("tool %q has no handler", t.Name)
	}
	if _, dup := r.tools[t.Name]; dup {
		return configError("tool %q registered twice", t.Name)
	}

	params := make([]Param, 0, len(t.Params))
	seen := make(map[string]bool, len(t.Params))
	for _, p := range t.Params {
		if p.Name == "" || seen[p.Name] {
			return configError("tool %q: empty or duplicate parameter name %q", t.Name, p.Name)
		}
		seen[p.Name] = true
		p.Type = p.Type.normalize()
		p.Default = cloneValue(p.Default)
		params = append(params, p)
	}

	spec := ToolSpec{Name: t.Name, Description: strings.TrimSpace(t.Description), params: params}

	validation := spec.Schema()
	validation["additionalProperties"] = false
	if req, _ := validation["required"].([]string); len(req) == 0 {
		delete(validation, "required")
	}
	validator, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(validation))
	if err != nil {
		return configError("tool %q: %v", t.Name, err)
	}

	r.specs = append(r.specs, spec)
	r.tools[t.Name] = &registeredTool{spec: spec, handler: t.Handler, validator: validator}
	return nil
}

// Specs returns the registered specs in registration order.
func (r *Registry) Specs() []ToolSpec {
	out := make([]ToolSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Spec looks up a tool spec by name.
func (r *Registry) Spec(name string) (ToolSpec, bool) {
	t, ok := r.tools[name]
	if !ok {
		return ToolSpec{}, false
	}
	return t.spec, true
}

// Schemas formats every registered tool for the gateway, in registration order.
func (r *Registry) Schemas() []unifiedllm.ToolSchema {
	if len(r.specs) == 0 {
		return nil
	}
	out := make([]unifiedllm.ToolSchema, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s.Format())
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		names = append(names, s.Name)
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Invoke binds args to the named tool's parameters and runs it. Failures are
// returned as *ToolError; a panicking handler is reported as an execution error.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (out string, err error) {
	t, ok := r.tools[name]
	if !ok {
		return "", &ToolError{Kind: ErrToolNotFound, Tool: name}
	}

	bound, err := t.bind(args)
	if err != nil {
		return "", &ToolError{Kind: ErrMalformedToolArguments, Tool: name, Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			out, err = "", &ToolError{Kind: ErrToolExecution, Tool: name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	result, err := t.handler(ctx, bound)
	if err != nil {
		return "", &ToolError{Kind: ErrToolExecution, Tool: name, Err: err}
	}
	return stringify(result), nil
}

// bind coerces scalar strings to their declared types, validates the
// arguments against the tool schema and fills in defaults.
func (t *registeredTool) bind(args map[string]any) (Args, error) {
	bound := make(Args, len(t.spec.params))
	for k, v := range args {
		bound[k] = v
	}

	for _, p := range t.spec.params {
		if s, ok := bound[p.Name].(string); ok {
			bound[p.Name] = coerceString(s, p.Type)
		}
	}

	result, err := t.validator.Validate(gojsonschema.NewGoLoader(map[string]any(bound)))
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%s", strings.Join(msgs, "; "))
	}

	for _, p := range t.spec.params {
		v, ok := bound[p.Name]
		if !ok {
			if !p.Required() {
				bound[p.Name] = cloneValue(p.Default)
			}
			continue
		}
		if bound[p.Name], err = normalizeValue(v, p.Type); err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
	}
	return bound, nil
}

func coerceString(s string, t ParamType) any {
	switch t {
	case TypeInteger:
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return int(n)
		}
	case TypeNumber:
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b
		}
	}
	return s
}

// normalizeValue converts decoded JSON numbers to int for integer parameters
// and to float64 for number parameters. Integers that do not fit an int are
// rejected.
func normalizeValue(v any, t ParamType) (any, error) {
	switch t {
	case TypeInteger:
		switch n := v.(type) {
		case float64:
			return floatToInt(n)
		case float32:
			return floatToInt(float64(n))
		case int64:
			if n < math.MinInt || n > math.MaxInt {
				return nil, fmt.Errorf("integer %d out of range", n)
			}
			return int(n), nil
		case int32:
			return int(n), nil
		}
	case TypeNumber:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float32:
			return float64(n), nil
		}
	}
	return v, nil
}

func floatToInt(f float64) (any, error) {
	// float64(math.MinInt) is exact; -float64(math.MinInt) is one past MaxInt.
	if f < float64(math.MinInt) || f >= -float64(math.MinInt) {
		return nil, fmt.Errorf("integer %g out of range", f)
	}
	return int(f), nil
}

// cloneValue copies slices and maps so that defaults handed to handlers
// never alias the registered spec.
func cloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	}
	return v
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
