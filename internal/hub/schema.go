package hub

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Validator checks and normalises one value.
type Validator func(value any) (any, error)

// Field is one key of a Schema.
type Field struct {
	Key      string
	Required bool
	Validate Validator
}

// Required declares a mandatory key.
func Required(key string, v Validator) Field {
	return Field{Key: key, Required: true, Validate: v}
}

// Optional declares a key that may be absent.
func Optional(key string, v Validator) Field {
	return Field{Key: key, Validate: v}
}

// Schema validates map-shaped data such as service data and action configs.
// Keys not declared are rejected unless AllowExtra is set.
type Schema struct {
	Fields     []Field
	AllowExtra bool
}

func NewSchema(fields ...Field) Schema {
	return Schema{Fields: fields}
}

// Extend returns a copy of s with fields added; a field with an existing key
// replaces the old declaration.
func (s Schema) Extend(fields ...Field) Schema {
	out := Schema{AllowExtra: s.AllowExtra}
	out.Fields = append(out.Fields, s.Fields...)
	for _, f := range fields {
		idx := slices.IndexFunc(out.Fields, func(existing Field) bool { return existing.Key == f.Key })
		if idx >= 0 {
			out.Fields[idx] = f
			continue
		}
		out.Fields = append(out.Fields, f)
	}
	return out
}

// Validate returns a new map holding the normalised values.
func (s Schema) Validate(data map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(data))
	known := make(map[string]bool, len(s.Fields))

	for _, f := range s.Fields {
		known[f.Key] = true
		value, ok := data[f.Key]
		if !ok {
			if f.Required {
				return nil, fmt.Errorf("%w: required key not provided @ data['%s']", ErrInvalidData, f.Key)
			}
			continue
		}
		if f.Validate == nil {
			out[f.Key] = value
			continue
		}
		normalised, err := f.Validate(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v for dictionary value @ data['%s']", ErrInvalidData, err, f.Key)
		}
		out[f.Key] = normalised
	}

	for key, value := range data {
		if known[key] {
			continue
		}
		if !s.AllowExtra {
			return nil, fmt.Errorf("%w: extra keys not allowed @ data['%s']", ErrInvalidData, key)
		}
		out[key] = value
	}
	return out, nil
}

// CoerceInt converts numbers, numeric strings and booleans to int. Floats are
// truncated toward zero.
func CoerceInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float32:
		return coerceIntFloat(float64(v))
	case float64:
		return coerceIntFloat(v)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), nil
		}
		return nil, fmt.Errorf("expected int")
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("expected int")
		}
		return n, nil
	default:
		return nil, fmt.Errorf("expected int")
	}
}

func coerceIntFloat(v float64) (any, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("expected int")
	}
	return int(v), nil
}

// CoerceFloat converts numbers, numeric strings and booleans to float64.
func CoerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("expected float")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("expected float")
		}
		return f, nil
	default:
		return nil, fmt.Errorf("expected float")
	}
}

// PositiveInt coerces to int and rejects negatives. Zero is accepted.
func PositiveInt(value any) (any, error) {
	n, err := CoerceInt(value)
	if err != nil {
		return nil, err
	}
	if n.(int) < 0 {
		return nil, fmt.Errorf("value must be at least 0")
	}
	return n, nil
}

// String accepts strings and stringifies numbers.
func String(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int, int32, int64, float32, float64, json.Number:
		return fmt.Sprint(v), nil
	default:
		return nil, fmt.Errorf("expected str")
	}
}

// In accepts one of the given strings.
func In(allowed ...string) Validator {
	return func(value any) (any, error) {
		s, ok := value.(string)
		if !ok || !slices.Contains(allowed, s) {
			return nil, fmt.Errorf("value must be one of %v", allowed)
		}
		return s, nil
	}
}

var entityIDPattern = regexp.MustCompile(`^[a-z0-9_]+\.[a-z0-9_]+$`)

// ValidEntityID reports whether id has the form <domain>.<object_id>.
func ValidEntityID(id string) bool {
	if !entityIDPattern.MatchString(id) || strings.Contains(id, "__") {
		return false
	}
	domain, object, _ := strings.Cut(id, ".")
	for _, part := range []string{domain, object} {
		if strings.HasPrefix(part, "_") || strings.HasSuffix(part, "_") {
			return false
		}
	}
	return true
}

// SplitEntityID returns the domain and object ID of an entity ID.
func SplitEntityID(id string) (string, string) {
	domain, object, _ := strings.Cut(id, ".")
	return domain, object
}

// EntityDomain accepts a single entity ID belonging to one of domains.
func EntityDomain(domains ...string) Validator {
	return func(value any) (any, error) {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected entity id")
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if !ValidEntityID(s) {
			return nil, fmt.Errorf("entity id %s is an invalid entity id", s)
		}
		domain, _ := SplitEntityID(s)
		if !slices.Contains(domains, domain) {
			return nil, fmt.Errorf("entity id %s belongs to domain %s, expected %v", s, domain, domains)
		}
		return s, nil
	}
}

// EntityIDs accepts an entity ID, a comma separated list of them, or a list,
// and returns []string.
func EntityIDs(value any) (any, error) {
	var raw []string
	switch v := value.(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected entity ids")
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("expected entity ids")
	}

	out := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.ToLower(strings.TrimSpace(id))
		if !ValidEntityID(id) {
			return nil, fmt.Errorf("entity id %s is an invalid entity id", id)
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("expected entity ids")
	}
	return out, nil
}
