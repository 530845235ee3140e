// Package entity defines the versioned record type the rest of the
// engine operates on: an immutable id, an optional parent, a
// registered type name, and a shallow-nested payload.
package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyID is returned when an entity is constructed with no id.
	ErrEmptyID = errors.New("entity: id must not be empty")
	// ErrUnknownType is returned when a type name has no registered factory.
	ErrUnknownType = errors.New("entity: unknown type")
	// ErrNotString is returned when a type name field is not a string.
	ErrNotString = errors.New("entity: type name must be a string")
)

// Value is a single payload field: a scalar (string, float64, bool, nil),
// a []Value, or a nested map[string]Value, to a depth capped by MaxDepth.
type Value = any

// MaxDepth is the deepest a nested payload map may go before canonical
// comparison, sorting, or hashing refuses to proceed further.
const MaxDepth = 3

// Entity is a single versioned record. Its Id is immutable for its
// lifetime; changing identity means delete-then-create (I1 of spec §3).
type Entity struct {
	Id       string
	ParentId string // empty means root-parented
	Type     string
	Payload  map[string]Value
}

// Clone returns a deep copy of e so callers can mutate the result
// without affecting store-internal state.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	return &Entity{
		Id:       e.Id,
		ParentId: e.ParentId,
		Type:     e.Type,
		Payload:  cloneValue(e.Payload, 0).(map[string]Value),
	}
}

func cloneValue(v Value, depth int) Value {
	switch t := v.(type) {
	case map[string]Value:
		out := make(map[string]Value, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv, depth+1)
		}
		return out
	case []Value:
		out := make([]Value, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv, depth+1)
		}
		return out
	default:
		return v
	}
}

// Field reads a single top-level field of e's dict form: "id" and
// "parentId" resolve to Id and ParentId, any other name to the payload.
func (e *Entity) Field(name string) (Value, bool) {
	switch name {
	case "id":
		return e.Id, true
	case "parentId":
		return e.ParentId, true
	}
	v, ok := e.Payload[name]
	return v, ok
}

// Registry maps registered type names to factories, the Go-native
// stand-in for the source system's decorator-based entity registration
// (spec §9): a tagged-variant dispatch keyed by type name.
type Registry struct {
	factories map[string]func() *Entity
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() *Entity)}
}

// Register associates a type name with a zero-value factory. Re-registering
// the same name overwrites the previous factory, matching process-start
// registration semantics (there is no unregister).
func (r *Registry) Register(typeName string, factory func() *Entity) {
	r.factories[typeName] = factory
}

// IsRegistered reports whether typeName has a factory.
func (r *Registry) IsRegistered(typeName string) bool {
	_, ok := r.factories[typeName]
	return ok
}

// New constructs a zero-value Entity of typeName, or ErrUnknownType if
// it was never registered.
func (r *Registry) New(typeName string) (*Entity, error) {
	factory, ok := r.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	e := factory()
	e.Type = typeName
	return e, nil
}

// Load rehydrates an Entity from its serialized dict form: id, parentId,
// __type__, and the remaining fields as payload. This is the Go analogue
// of the source system's loadFromDict dispatch.
func (r *Registry) Load(dict map[string]Value) (*Entity, error) {
	typeNameRaw, ok := dict["__type__"]
	if !ok {
		return nil, fmt.Errorf("%w: missing __type__", ErrUnknownType)
	}
	typeName, ok := typeNameRaw.(string)
	if !ok {
		return nil, ErrNotString
	}

	id, _ := dict["id"].(string)
	if id == "" {
		return nil, ErrEmptyID
	}
	parentId, _ := dict["parentId"].(string)

	e, err := r.New(typeName)
	if err != nil {
		return nil, err
	}
	e.Id = id
	e.ParentId = parentId

	payload := make(map[string]Value, len(dict))
	for k, v := range dict {
		if k == "id" || k == "parentId" || k == "__type__" {
			continue
		}
		payload[k] = v
	}
	e.Payload = payload
	return e, nil
}

// Dump serializes e to its dict form (inverse of Load): id, parentId,
// __type__ plus the payload fields, flattened into one map.
func Dump(e *Entity) map[string]Value {
	dict := make(map[string]Value, len(e.Payload)+3)
	for k, v := range e.Payload {
		dict[k] = v
	}
	dict["id"] = e.Id
	dict["parentId"] = e.ParentId
	dict["__type__"] = e.Type
	return dict
}
