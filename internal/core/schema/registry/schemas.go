package registry

import (
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// FieldKind is the value kind accepted by a field of a Struct schema.
type FieldKind string

const (
	KindAny    FieldKind = "any"
	KindBool   FieldKind = "bool"
	KindInt    FieldKind = "int"
	KindFloat  FieldKind = "float"
	KindString FieldKind = "string"
	KindList   FieldKind = "list"
	KindMap    FieldKind = "map"
)

// Valid reports whether k is a known kind. The empty kind means KindAny.
func (k FieldKind) Valid() bool {
	switch k {
	case "", KindAny, KindBool, KindInt, KindFloat, KindString, KindList, KindMap:
		return true
	}
	return false
}

// FieldSpec describes one field of a Struct schema.
type FieldSpec struct {
	Kind     FieldKind `json:"kind" yaml:"kind" toml:"kind"`
	Required bool      `json:"required,omitempty" yaml:"required,omitempty" toml:"required"`
	Default  any       `json:"default,omitempty" yaml:"default,omitempty" toml:"default"`
}

// Definition is the declarative form of a Struct schema as found in config
// and scene files.
type Definition struct {
	Fields map[string]FieldSpec `json:"fields" yaml:"fields" toml:"fields"`
}

// Struct validates map[string]any payloads field by field.
type Struct struct {
	name   string
	fields map[string]FieldSpec
}

// NewStruct builds a Struct schema. Unknown kinds fall back to KindAny.
func NewStruct(name string, fields map[string]FieldSpec) *Struct {
	cp := make(map[string]FieldSpec, len(fields))
	for k, f := range fields {
		if f.Kind == "" {
			f.Kind = KindAny
		}
		cp[k] = f
	}
	return &Struct{name: name, fields: cp}
}

// FromDefinitions builds Struct schemas sorted by name so bit assignment is
// stable across runs.
func FromDefinitions(defs map[string]Definition) []TypeSchema {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]TypeSchema, 0, len(names))
	for _, name := range names {
		out = append(out, NewStruct(name, defs[name].Fields))
	}
	return out
}

func (s *Struct) Name() string { return s.name }

func (s *Struct) Default() any {
	out := make(map[string]any, len(s.fields))
	for k, f := range s.fields {
		if f.Default != nil {
			out[k] = f.Default
		}
	}
	return out
}

func (s *Struct) Validate(value any) (any, error) {
	if value == nil {
		value = map[string]any{}
	}
	in, ok := value.(map[string]any)
	if !ok {
		return nil, &SchemaError{Type: s.name, Err: fmt.Errorf("%w: expected object, got %T", ErrInvalidValue, value)}
	}

	out := make(map[string]any, len(s.fields))
	for key, v := range in {
		spec, known := s.fields[key]
		if !known {
			return nil, &SchemaError{Type: s.name, Field: key, Err: fmt.Errorf("%w: unknown field", ErrInvalidValue)}
		}
		norm, err := coerce(spec.Kind, v)
		if err != nil {
			return nil, &SchemaError{Type: s.name, Field: key, Err: err}
		}
		out[key] = norm
	}
	for key, spec := range s.fields {
		if _, set := out[key]; set {
			continue
		}
		if spec.Required {
			return nil, &SchemaError{Type: s.name, Field: key, Err: fmt.Errorf("%w: required", ErrInvalidValue)}
		}
		if spec.Default != nil {
			out[key] = spec.Default
		}
	}
	return out, nil
}

func coerce(kind FieldKind, v any) (any, error) {
	switch kind {
	case KindAny:
		return v, nil
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			if n >= math.MinInt && n <= math.MaxInt {
				return int(n), nil
			}
		case uint64:
			if n <= math.MaxInt {
				return int(n), nil
			}
		case float64:
			// -MinInt is exactly representable; MaxInt is not
			if n == math.Trunc(n) && n >= math.MinInt && n < -float64(math.MinInt) {
				return int(n), nil
			}
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case uint64:
			return float64(n), nil
		}
	case KindList:
		if l, ok := v.([]any); ok {
			return l, nil
		}
	case KindMap:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: expected %s, got %T", ErrInvalidValue, kind, v)
}

// Typed accepts values of the Go type T (or *T, which is dereferenced).
// Generic maps, as decoded from scene files, are converted through their
// yaml field tags.
type Typed[T any] struct {
	name string
	def  T
}

func NewTyped[T any](name string, def T) *Typed[T] {
	return &Typed[T]{name: name, def: def}
}

func (s *Typed[T]) Name() string { return s.name }
func (s *Typed[T]) Default() any { return s.def }

func (s *Typed[T]) Validate(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return s.def, nil
	case T:
		return v, nil
	case *T:
		if v == nil {
			return s.def, nil
		}
		return *v, nil
	case map[string]any:
		out, err := decodeMap[T](v)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	var zero T
	return nil, fmt.Errorf("%w: expected %T, got %T", ErrInvalidValue, zero, value)
}

// Func delegates validation to a function.
type Func struct {
	name string
	def  any
	fn   func(any) (any, error)
}

func NewFunc(name string, def any, fn func(any) (any, error)) *Func {
	return &Func{name: name, def: def, fn: fn}
}

func (s *Func) Name() string { return s.name }
func (s *Func) Default() any { return s.def }

func (s *Func) Validate(value any) (any, error) {
	if value == nil {
		value = s.def
	}
	if s.fn == nil {
		return value, nil
	}
	return s.fn(value)
}

func decodeMap[T any](m map[string]any) (T, error) {
	var out T
	raw, err := yaml.Marshal(m)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return out, nil
}
