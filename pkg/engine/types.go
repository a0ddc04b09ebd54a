package engine

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// Type is a class of state values that requirements and ItemsOfType match
// against. A value matching a subtype always matches its parent.
type Type interface {
	// Name returns the registry name of the type (e.g. "Integer").
	Name() string

	// Match reports whether v is an instance of this type.
	Match(v any) bool
}

// predicateType is a Type backed by a match function and an optional parent.
type predicateType struct {
	name   string
	parent Type
	match  func(any) bool
}

func (t *predicateType) Name() string { return t.name }

func (t *predicateType) Match(v any) bool {
	if v == nil {
		return false
	}
	if t.parent != nil && !t.parent.Match(v) {
		return false
	}
	return t.match(v)
}

func (t *predicateType) String() string { return t.name }

// NewType creates a root type matching values accepted by match.
// A nil value never matches any type.
func NewType(name string, match func(v any) bool) Type {
	return &predicateType{name: name, match: match}
}

// Subtype creates a type whose values must satisfy both parent and match,
// so every value of the subtype is also a value of the parent.
func Subtype(name string, parent Type, match func(v any) bool) Type {
	return &predicateType{name: name, parent: parent, match: match}
}

// TypeOf returns a type matching Go values assignable to T. When T is an
// interface this matches every implementation.
func TypeOf[T any]() Type {
	return &predicateType{
		name: reflect.TypeFor[T]().String(),
		match: func(v any) bool {
			_, ok := v.(T)
			return ok
		},
	}
}

// Built-in types.
var (
	// Any matches every non-nil value.
	Any = NewType("Any", func(any) bool { return true })

	// String matches Go strings.
	String = NewType("String", func(v any) bool {
		_, ok := v.(string)
		return ok
	})

	// Numeric matches every integer and floating point value.
	Numeric = NewType("Numeric", func(v any) bool { return isInteger(v) || isFloat(v) })

	// Integer matches all signed and unsigned Go integer kinds.
	Integer = Subtype("Integer", Numeric, isInteger)

	// Float matches float32 and float64.
	Float = Subtype("Float", Numeric, isFloat)

	// Bool matches Go booleans.
	Bool = NewType("Bool", func(v any) bool {
		_, ok := v.(bool)
		return ok
	})

	// List matches slices and arrays.
	List = NewType("List", func(v any) bool {
		k := reflect.TypeOf(v).Kind()
		return k == reflect.Slice || k == reflect.Array
	})

	// Map matches Go maps.
	Map = NewType("Map", func(v any) bool {
		return reflect.TypeOf(v).Kind() == reflect.Map
	})

	// Time matches time.Time values.
	Time = TypeOf[time.Time]()

	// Duration matches time.Duration values.
	Duration = TypeOf[time.Duration]()
)

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr:
		return true
	}
	return false
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

// TypeRegistry resolves type names used by rule sources. Names are unique
// regardless of case.
type TypeRegistry struct {
	mu     sync.RWMutex
	types  map[string]Type
	folded map[string]string
}

// NewTypeRegistry creates a registry holding the given types. When two
// names differ only by case the first one is kept.
func NewTypeRegistry(types ...Type) *TypeRegistry {
	r := &TypeRegistry{
		types:  make(map[string]Type, len(types)),
		folded: make(map[string]string, len(types)),
	}
	for _, t := range types {
		r.add(t.Name(), t)
	}
	return r
}

// DefaultTypes returns a fresh registry with the built-in types. Time and
// Duration are registered under their short names.
func DefaultTypes() *TypeRegistry {
	r := NewTypeRegistry(Any, String, Numeric, Integer, Float, Bool, List, Map)
	r.add("Time", Time)
	r.add("Duration", Duration)
	return r
}

func (r *TypeRegistry) add(name string, t Type) bool {
	key := strings.ToLower(name)
	if _, exists := r.folded[key]; exists {
		return false
	}
	r.folded[key] = name
	r.types[name] = t
	return true
}

// Register adds a type. Registering a name that is already taken, ignoring
// case, is an error.
func (r *TypeRegistry) Register(t Type) error {
	if t == nil {
		return fmt.Errorf("%w: nil type", ErrInvalidRequirement)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.add(t.Name(), t) {
		return fmt.Errorf("type %q is already registered as %q", t.Name(), r.folded[strings.ToLower(t.Name())])
	}
	return nil
}

// Lookup returns the type registered under name, matching case-insensitively.
func (r *TypeRegistry) Lookup(name string) (Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if registered, ok := r.folded[strings.ToLower(name)]; ok {
		return r.types[registered], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Names returns the registered type names in sorted order.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
