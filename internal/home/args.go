package home

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"home-dispatch/internal/domain"
)

// Args holds arguments after coercion: numbers are float64, booleans bool,
// strings string.
type Args map[string]any

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func decodeArgs(raw json.RawMessage) (Args, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Args{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, fmt.Errorf("%w: arguments are not a JSON object: %v", domain.ErrInvalidArgument, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return Args(args), nil
}

// coerce applies defaults and converts loosely typed model output (numeric
// strings, "true"/"false") to the declared parameter types.
func coerce(params []Parameter, args Args) error {
	for _, p := range params {
		v, present := args[p.Name]
		if !present || v == nil {
			if p.Default != nil {
				args[p.Name] = p.Default
				continue
			}
			if p.Required {
				return fmt.Errorf("%w: missing required parameter %q", domain.ErrInvalidArgument, p.Name)
			}
			delete(args, p.Name)
			continue
		}

		converted, err := coerceValue(p, v)
		if err != nil {
			return err
		}
		args[p.Name] = converted
	}
	return nil
}

func coerceValue(p Parameter, v any) (any, error) {
	switch p.Type {
	case ParamNumber:
		switch t := v.(type) {
		case float64:
			return t, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %q is not a number", domain.ErrInvalidArgument, p.Name, t)
			}
			return f, nil
		}
	case ParamBoolean:
		switch t := v.(type) {
		case bool:
			return t, nil
		case float64:
			if t == 0 || t == 1 {
				return t == 1, nil
			}
		case string:
			if b, ok := parseBool(t); ok {
				return b, nil
			}
			return nil, fmt.Errorf("%w: %s: %q is not a boolean", domain.ErrInvalidArgument, p.Name, t)
		}
	case ParamString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s: expected %s, got %s", domain.ErrInvalidArgument, p.Name, p.Type, jsonTypeName(v))
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true, true
	case "off", "no":
		return false, true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, false
	}
	return b, true
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
