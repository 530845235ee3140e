package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrDepthExceeded is returned by canonicalization, comparison, or
// hashing when a nested payload goes deeper than MaxDepth (spec §7,
// Validation: "depth-exceeded on equality/sort/hash").
var ErrDepthExceeded = errors.New("entity: payload nesting exceeds max depth")

// CanonicalJSON renders dict as UTF-8 JSON with map keys sorted at
// every level, recursively to MaxDepth, arrays preserving order. This
// is the byte form the hash tree hashes (spec §4.3).
func CanonicalJSON(dict map[string]Value) ([]byte, error) {
	node, err := canonicalize(dict, 0)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(node); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// canonicalize walks v, sorting map keys at each level, and fails past
// MaxDepth rather than silently truncating (spec §9's "hard error, not
// a silent truncation").
func canonicalize(v Value, depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, ErrDepthExceeded
	}
	switch t := v.(type) {
	case map[string]Value:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := orderedMap{keys: keys, values: make(map[string]Value, len(t))}
		for _, k := range keys {
			cv, err := canonicalize(t[k], depth+1)
			if err != nil {
				return nil, err
			}
			out.values[k] = cv
		}
		return out, nil
	case []Value:
		out := make([]Value, len(t))
		for i, vv := range t {
			cv, err := canonicalize(vv, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	default:
		return v, nil
	}
}

// orderedMap marshals as a JSON object with keys in a fixed order,
// since encoding/json always sorts map[string]any keys itself — this
// type exists so the sort order is explicit and testable independent
// of the standard library's behavior.
type orderedMap struct {
	keys   []string
	values map[string]Value
}

func (o orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DeepEqual compares two values to MaxDepth, returning ErrDepthExceeded
// if the recursion would go deeper. Used by entitystore's changed-field
// detection and entity equality (spec §3: "Equality is by id +
// serialized payload").
func DeepEqual(a, b Value) (bool, error) {
	return deepEqual(a, b, 0)
}

func deepEqual(a, b Value, depth int) (bool, error) {
	if depth > MaxDepth {
		return false, ErrDepthExceeded
	}
	am, aIsMap := a.(map[string]Value)
	bm, bIsMap := b.(map[string]Value)
	if aIsMap != bIsMap {
		return false, nil
	}
	if aIsMap {
		if len(am) != len(bm) {
			return false, nil
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok {
				return false, nil
			}
			eq, err := deepEqual(av, bv, depth+1)
			if err != nil || !eq {
				return eq, err
			}
		}
		return true, nil
	}

	as, aIsSlice := a.([]Value)
	bs, bIsSlice := b.([]Value)
	if aIsSlice != bIsSlice {
		return false, nil
	}
	if aIsSlice {
		if len(as) != len(bs) {
			return false, nil
		}
		for i := range as {
			eq, err := deepEqual(as[i], bs[i], depth+1)
			if err != nil || !eq {
				return eq, err
			}
		}
		return true, nil
	}

	return fmt.Sprint(a) == fmt.Sprint(b) && sameScalarType(a, b), nil
}

// sameScalarType guards against e.g. float64(1) == string("1") comparing
// equal under fmt.Sprint.
func sameScalarType(a, b Value) bool {
	return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b)
}
