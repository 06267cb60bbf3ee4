package tools

import "fmt"

// Argument extraction helpers. Task payloads arrive as map[string]any (from
// JSON parsing), so every handler goes through these to get safely typed
// values with messages specific enough for a controller to self-correct.

func extractString(args map[string]any, key string, required bool) (string, error) {
	val, exists := args[key]
	if !exists || val == nil {
		if required {
			return "", fmt.Errorf("%w: missing required argument %q", ErrBadArguments, key)
		}
		return "", nil
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %q must be a string, got %T", ErrBadArguments, key, val)
	}
	return str, nil
}

func extractStringDefault(args map[string]any, key, def string) (string, error) {
	val, err := extractString(args, key, false)
	if err != nil {
		return "", err
	}
	if val == "" {
		return def, nil
	}
	return val, nil
}

// extractInt handles both int and float64 — encoding/json decodes numbers
// as float64, so a literal task payload and a hand-built test map both work.
func extractInt(args map[string]any, key string, required bool, defaultVal int) (int, error) {
	val, exists := args[key]
	if !exists || val == nil {
		if required {
			return 0, fmt.Errorf("%w: missing required argument %q", ErrBadArguments, key)
		}
		return defaultVal, nil
	}

	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: argument %q must be an integer, got %T", ErrBadArguments, key, val)
	}
}

func extractBool(args map[string]any, key string, defaultVal bool) (bool, error) {
	val, exists := args[key]
	if !exists || val == nil {
		return defaultVal, nil
	}
	b, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("%w: argument %q must be a boolean, got %T", ErrBadArguments, key, val)
	}
	return b, nil
}

// extractStringSlice accepts either a []string (from in-process callers and
// tests) or a []any of strings (the shape encoding/json produces for a JSON
// array).
func extractStringSlice(args map[string]any, key string, required bool) ([]string, error) {
	val, exists := args[key]
	if !exists || val == nil {
		if required {
			return nil, fmt.Errorf("%w: missing required argument %q", ErrBadArguments, key)
		}
		return nil, nil
	}

	switch v := val.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: argument %q[%d] must be a string, got %T", ErrBadArguments, key, i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: argument %q must be a string array, got %T", ErrBadArguments, key, val)
	}
}
