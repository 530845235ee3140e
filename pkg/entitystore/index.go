package entitystore

import (
	"fmt"
	"strings"

	"entitydb/pkg/entity"
)

// Field is one component of an IndexConfig's key. Name is either a
// regular payload property, or the synthetic "__type__" field, which
// is only usable together with AllowedTypes.
type Field struct {
	Name         string
	AllowedTypes []string // only meaningful when Name == TypeField
}

// TypeField is the synthetic field name that indexes on an entity's
// registered type rather than a payload property (spec §4.2).
const TypeField = "__type__"

// IndexConfig describes one index: an ordered list of fields and
// whether the resulting key must be unique. At least one index
// (typically an id index, unique) must be configured for a Store.
type IndexConfig struct {
	Name   string
	Fields []Field
	Unique bool
}

// index is the live, mutable structure backing one IndexConfig.
type index struct {
	cfg     IndexConfig
	buckets map[string][]string // key -> entity ids, in insertion order
	keyOf   map[string]string   // entity id -> its current key in this index, if indexed
}

func newIndex(cfg IndexConfig) *index {
	return &index{
		cfg:     cfg,
		buckets: make(map[string][]string),
		keyOf:   make(map[string]string),
	}
}

// keyForEntity computes this index's key for e, or ok=false if e lacks
// a required field (regular field absent, or __type__ not in the
// whitelist) — such entities are simply not indexed by this config.
func (ix *index) keyForEntity(e *entity.Entity) (key string, ok bool) {
	return keyForFields(ix.cfg.Fields, func(f Field) (string, bool) {
		if f.Name == TypeField {
			for _, t := range f.AllowedTypes {
				if t == e.Type {
					return e.Type, true
				}
			}
			return "", false
		}
		v, present := e.Field(f.Name)
		if !present {
			return "", false
		}
		return fmt.Sprint(v), true
	})
}

// keyForFilter computes this index's key for a query filter, or
// ok=false if the filter does not supply every field this index needs.
func (ix *index) keyForFilter(filter Filter) (key string, ok bool) {
	return keyForFields(ix.cfg.Fields, func(f Field) (string, bool) {
		if f.Name == TypeField {
			tv, present := filter["type"]
			if !present {
				return "", false
			}
			ts, isStr := tv.(string)
			if !isStr {
				return "", false
			}
			for _, t := range f.AllowedTypes {
				if t == ts {
					return ts, true
				}
			}
			return "", false
		}
		v, present := filter[f.Name]
		if !present {
			return "", false
		}
		return fmt.Sprint(v), true
	})
}

func keyForFields(fields []Field, resolve func(Field) (string, bool)) (string, bool) {
	parts := make([]string, len(fields))
	for i, f := range fields {
		part, ok := resolve(f)
		if !ok {
			return "", false
		}
		parts[i] = part
	}
	return strings.Join(parts, "|"), true
}

// fieldsCoveredBy reports whether every field this index needs is
// present in filter (the precondition for the index to be a planner
// candidate at all).
func (ix *index) fieldsCoveredBy(filter Filter) bool {
	_, ok := ix.keyForFilter(filter)
	return ok
}

// insert adds id under key, recording the mapping for later removal.
func (ix *index) insert(id, key string) {
	ix.buckets[key] = append(ix.buckets[key], id)
	ix.keyOf[id] = key
}

// remove drops id from whatever key it is currently filed under.
func (ix *index) remove(id string) {
	key, ok := ix.keyOf[id]
	if !ok {
		return
	}
	bucket := ix.buckets[key]
	for i, existing := range bucket {
		if existing == id {
			ix.buckets[key] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(ix.buckets[key]) == 0 {
		delete(ix.buckets, key)
	}
	delete(ix.keyOf, id)
}

// rekey removes id from its old position (if any) and inserts it under
// key.
func (ix *index) rekey(id, key string) {
	ix.remove(id)
	ix.insert(id, key)
}

// lookup returns the ids filed under key.
func (ix *index) lookup(key string) []string {
	return ix.buckets[key]
}
