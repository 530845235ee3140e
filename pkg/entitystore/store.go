// Package entitystore implements the indexed entity store of spec
// §4.2: insertOne/updateOne/removeOne/find/findOne/applyDelta over a
// registered, pluggable set of indexes, with equality-match query
// planning by estimated selectivity.
package entitystore

import (
	"errors"
	"fmt"
	"iter"
	"sync"

	"entitydb/pkg/delta"
	"entitydb/pkg/entity"
)

var (
	// ErrDuplicateID is returned by InsertOne when the id already exists.
	ErrDuplicateID = errors.New("entitystore: duplicate id")
	// ErrNotFound is returned when an operation targets a missing entity.
	ErrNotFound = errors.New("entitystore: entity not found")
	// ErrNoIndexes is returned by NewStore with an empty config list.
	ErrNoIndexes = errors.New("entitystore: at least one index is required")
	// ErrImmutableID is returned when a mutation attempts to change id (I1).
	ErrImmutableID = errors.New("entitystore: entity id is immutable")
)

// Store is the in-memory, indexed entity store backing a Repository's
// head state.
type Store struct {
	mu sync.RWMutex

	registry *entity.Registry

	entities map[string]*entity.Entity

	indexes    map[string]*index
	indexOrder []string
}

// New constructs a Store with the given registry and index configs.
// At least one index must be configured (spec §4.2).
func New(registry *entity.Registry, configs []IndexConfig) (*Store, error) {
	if len(configs) == 0 {
		return nil, ErrNoIndexes
	}
	s := &Store{
		registry: registry,
		entities: make(map[string]*entity.Entity),
		indexes:  make(map[string]*index, len(configs)),
	}
	for _, cfg := range configs {
		s.indexes[cfg.Name] = newIndex(cfg)
		s.indexOrder = append(s.indexOrder, cfg.Name)
	}
	return s, nil
}

// InsertOne copies e into the store, indexing it under every
// applicable configured index, and returns the resulting CREATE
// Change. Fails with ErrDuplicateID if e.Id already exists.
func (s *Store) InsertOne(e *entity.Entity) (delta.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[e.Id]; exists {
		return delta.Change{}, fmt.Errorf("%w: %q", ErrDuplicateID, e.Id)
	}

	stored := e.Clone()
	s.entities[e.Id] = stored
	s.indexAll(stored)

	return delta.Create(stored.Id, entity.Dump(stored)), nil
}

// indexAll files e into every index it qualifies for.
func (s *Store) indexAll(e *entity.Entity) {
	for _, name := range s.indexOrder {
		ix := s.indexes[name]
		if key, ok := ix.keyForEntity(e); ok {
			ix.insert(e.Id, key)
		}
	}
}

// UpdateOne applies mutate to a clone of the current entity for id,
// stores the result, re-keys only the indexes whose fields actually
// changed, and returns the resulting UPDATE Change (or KindEmpty if
// mutate made no difference).
func (s *Store) UpdateOne(id string, mutate func(*entity.Entity)) (delta.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entities[id]
	if !ok {
		return delta.Change{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	updated := current.Clone()
	mutate(updated)
	if updated.Id != current.Id {
		return delta.Change{}, ErrImmutableID
	}

	reverse, forward, err := diffDumps(entity.Dump(current), entity.Dump(updated))
	if err != nil {
		return delta.Change{}, err
	}
	if len(forward) == 0 {
		return delta.Empty(id), nil
	}

	s.entities[id] = updated
	s.rekeyChanged(current, updated, forward)

	return delta.Update(id, reverse, forward), nil
}

// rekeyChanged re-keys only the indexes whose fields intersect the
// changed-field set (or, for __type__, whose whitelist actually
// distinguishes old vs new type), leaving unaffected indexes' stored
// reference untouched.
func (s *Store) rekeyChanged(oldE, newE *entity.Entity, changedFields map[string]entity.Value) {
	for _, name := range s.indexOrder {
		ix := s.indexes[name]
		if !indexTouchedBy(ix.cfg, changedFields, oldE.Type, newE.Type) {
			continue
		}
		if key, ok := ix.keyForEntity(newE); ok {
			ix.rekey(newE.Id, key)
		} else {
			ix.remove(newE.Id)
		}
	}
}

func indexTouchedBy(cfg IndexConfig, changedFields map[string]entity.Value, oldType, newType string) bool {
	for _, f := range cfg.Fields {
		if f.Name == TypeField {
			if oldType != newType {
				return true
			}
			continue
		}
		if _, ok := changedFields[f.Name]; ok {
			return true
		}
	}
	return false
}

// RemoveOne deletes id from the store and every index it was filed
// under, returning the resulting DELETE Change.
func (s *Store) RemoveOne(id string) (delta.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entities[id]
	if !ok {
		return delta.Change{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	delete(s.entities, id)
	for _, name := range s.indexOrder {
		s.indexes[name].remove(id)
	}

	return delta.Delete(id, entity.Dump(current)), nil
}

// Get returns a deep copy of the entity for id directly, bypassing the
// query planner — used by callers (e.g. the hash tree integration)
// that already know the id and don't need filter matching.
func (s *Store) Get(id string) (*entity.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// FindOne returns a deep copy of the first entity matching filter, or
// ErrNotFound.
func (s *Store) FindOne(filter Filter) (*entity.Entity, error) {
	for e := range s.Find(filter) {
		return e, nil
	}
	return nil, ErrNotFound
}

// Find returns a lazy sequence of deep copies of every entity matching
// filter, chosen via the query planner of planner.go.
func (s *Store) Find(filter Filter) iter.Seq[*entity.Entity] {
	return func(yield func(*entity.Entity) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		ids := s.candidateIDs(filter)
		for _, id := range ids {
			e, ok := s.entities[id]
			if !ok {
				continue
			}
			if !matchesRemaining(e, filter) {
				continue
			}
			if !yield(e.Clone()) {
				return
			}
		}
	}
}

// candidateIDs returns the id set the planner selects for filter: the
// matched index's bucket, or every id (full scan) if no index covers
// all filter fields.
func (s *Store) candidateIDs(filter Filter) []string {
	if ix, key, ok := s.selectIndex(filter); ok {
		bucket := ix.lookup(key)
		out := make([]string, len(bucket))
		copy(out, bucket)
		return out
	}
	out := make([]string, 0, len(s.entities))
	for id := range s.entities {
		out = append(out, id)
	}
	return out
}

// matchesRemaining applies every filter field against e's live values,
// regardless of whether an index already matched on some of them —
// this is cheap and keeps the planner simple rather than tracking
// which specific fields the chosen index consumed.
func matchesRemaining(e *entity.Entity, filter Filter) bool {
	for k, want := range filter {
		if k == "type" {
			if e.Type != want {
				return false
			}
			continue
		}
		got, ok := e.Field(k)
		if !ok {
			return false
		}
		eq, err := entity.DeepEqual(got, want)
		if err != nil || !eq {
			return false
		}
	}
	return true
}

// ApplyDelta materializes d's Changes against current store state: for
// UPDATE it re-reads the current entity and applies forward fields;
// for CREATE it rehydrates from forward via the registry; for DELETE
// it removes by id. Used by Repository.Commit/Pull to replay a net
// Delta onto head state.
func (s *Store) ApplyDelta(d *delta.Delta) error {
	for _, c := range d.Changes() {
		switch c.KindOf() {
		case delta.KindCreate:
			dict := make(map[string]entity.Value, len(c.Forward)+1)
			for k, v := range c.Forward {
				dict[k] = v
			}
			dict["id"] = c.EntityId
			e, err := s.registry.Load(dict)
			if err != nil {
				return err
			}
			if _, err := s.InsertOne(e); err != nil {
				return err
			}
		case delta.KindUpdate:
			_, err := s.UpdateOne(c.EntityId, func(e *entity.Entity) {
				applyForward(e, c.Forward)
			})
			if err != nil {
				return err
			}
		case delta.KindDelete:
			if _, err := s.RemoveOne(c.EntityId); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyForward(e *entity.Entity, forward map[string]entity.Value) {
	for k, v := range forward {
		if k == "parentId" {
			if s, ok := v.(string); ok {
				e.ParentId = s
			}
			continue
		}
		if k == "__type__" || k == "id" {
			continue
		}
		e.Payload[k] = v
	}
}

// diffDumps computes the changed-field reverse/forward maps between
// two full entity dumps, comparing to entity.MaxDepth. id and __type__
// are excluded since they are immutable once created.
func diffDumps(oldDump, newDump map[string]entity.Value) (reverse, forward map[string]entity.Value, err error) {
	reverse = make(map[string]entity.Value)
	forward = make(map[string]entity.Value)

	seen := make(map[string]bool)
	for k := range oldDump {
		seen[k] = true
	}
	for k := range newDump {
		seen[k] = true
	}
	delete(seen, "id")
	delete(seen, "__type__")

	for k := range seen {
		ov, oOk := oldDump[k]
		nv, nOk := newDump[k]
		if oOk && nOk {
			eq, cmpErr := entity.DeepEqual(ov, nv)
			if cmpErr != nil {
				return nil, nil, cmpErr
			}
			if eq {
				continue
			}
		} else if !oOk && !nOk {
			continue
		}
		reverse[k] = ov
		forward[k] = nv
	}
	return reverse, forward, nil
}
