package agentloop

import (
	"context"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// NewTool derives a tool from the struct type T. Each exported field becomes
// a parameter, in declaration order:
//
//   - name: the json tag, or the field name; `json:"-"` skips the field
//   - type: derived from the Go kind (see TypeOf)
//   - description: the `desc` tag
//   - default: the `default` tag; fields without one are required
//
// Example:
//
//	type listArgs struct {
//	    Path string `json:"path" default:"." desc:"Directory to list."`
//	}
//	tool := agentloop.NewTool("list_files_and_dirs", "Lists a directory.",
//	    func(ctx context.Context, in listArgs) (any, error) { ... })
//
// Invalid input types are reported when the tool is registered.
func NewTool[T any](name, description string, fn func(ctx context.Context, in T) (any, error)) Tool {
	params, err := paramsOf(reflect.TypeFor[T]())
	return Tool{
		Name:        name,
		Description: description,
		Params:      params,
		err:         err,
		Handler: func(ctx context.Context, args Args) (any, error) {
			var in T
			if err := args.Decode(&in); err != nil {
				return nil, err
			}
			return fn(ctx, in)
		},
	}
}

// TypeOf maps a Go type to its JSON-Schema parameter type. Types without a
// natural mapping are described as strings.
func TypeOf(t reflect.Type) ParamType {
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Bool:
		return TypeBoolean
	case reflect.Slice, reflect.Array:
		return TypeArray
	case reflect.Map, reflect.Struct:
		return TypeObject
	default:
		return TypeString
	}
}

func paramsOf(t reflect.Type) ([]Param, error) {
	if t.Kind() != reflect.Struct {
		return nil, configError("tool input must be a struct, got %s", t)
	}

	var params []Param
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}

		p := Param{
			Name:        name,
			Type:        TypeOf(f.Type),
			Description: f.Tag.Get("desc"),
		}
		if raw, ok := f.Tag.Lookup("default"); ok {
			def, err := parseDefault(raw, p.Type)
			if err != nil {
				return nil, configError("field %s: bad default %q: %v", f.Name, raw, err)
			}
			p.Default = def
		}
		params = append(params, p)
	}
	return params, nil
}

func parseDefault(raw string, t ParamType) (any, error) {
	switch t {
	case TypeInteger:
		n, err := strconv.Atoi(raw)
		return n, err
	case TypeNumber:
		return strconv.ParseFloat(raw, 64)
	case TypeBoolean:
		return strconv.ParseBool(raw)
	case TypeArray, TypeObject:
		var v any
		err := json.Unmarshal([]byte(raw), &v)
		return v, err
	default:
		return raw, nil
	}
}
