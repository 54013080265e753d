package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// MaxTypes bounds the number of component types one Registry can hold; each
// type owns one bit of the matching bitsets.
const MaxTypes = 64

var (
	ErrUnknownType       = errors.New("unknown component type")
	ErrAlreadyRegistered = errors.New("component type already registered")
	ErrTooManyTypes      = errors.New("too many component types")
	ErrInvalidValue      = errors.New("invalid component value")
)

// TypeSchema validates and normalizes the payload of one component type.
type TypeSchema interface {
	Name() string
	// Validate returns the normalized value or an error describing the
	// violation. A nil value asks for the schema default.
	Validate(value any) (any, error)
	Default() any
}

// SchemaError reports a value rejected by its type schema, or a type the
// registry does not know.
type SchemaError struct {
	Type  string
	Field string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema %q field %q: %v", e.Type, e.Field, e.Err)
	}
	return fmt.Sprintf("schema %q: %v", e.Type, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

type entry struct {
	schema TypeSchema
	bit    uint32
}

// Registry is the closed set of component types known to a Stage. It is an
// explicit value so independent stages never share type state.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*entry
	next  uint32
}

func New() *Registry {
	return &Registry{types: make(map[string]*entry)}
}

// Register adds a schema and assigns it the next free bit.
func (r *Registry) Register(s TypeSchema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if name == "" {
		return &SchemaError{Type: name, Err: fmt.Errorf("%w: empty type name", ErrInvalidValue)}
	}
	if _, exists := r.types[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	if r.next >= MaxTypes {
		return fmt.Errorf("%w: limit is %d", ErrTooManyTypes, MaxTypes)
	}
	r.types[name] = &entry{schema: s, bit: r.next}
	r.next++
	return nil
}

// MustRegister registers every schema and panics on the first failure.
func (r *Registry) MustRegister(schemas ...TypeSchema) *Registry {
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Get(name string) (TypeSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.types[name]
	if !ok {
		return nil, false
	}
	return e.schema, true
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Bit returns the bitset index assigned to name.
func (r *Registry) Bit(name string) (uint32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.types[name]
	if !ok {
		return 0, &SchemaError{Type: name, Err: ErrUnknownType}
	}
	return e.bit, nil
}

// Validate checks value against the schema registered for name.
func (r *Registry) Validate(name string, value any) (any, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, &SchemaError{Type: name, Err: ErrUnknownType}
	}
	out, err := s.Validate(value)
	if err != nil {
		var se *SchemaError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &SchemaError{Type: name, Err: err}
	}
	return out, nil
}

// Types lists registered type names in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return r.types[out[i]].bit < r.types[out[j]].bit })
	return out
}
