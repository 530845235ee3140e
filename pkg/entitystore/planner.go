package entitystore

// Filter is an equality-matching query: every key must equal the
// corresponding entity field, with "type" matching a __type__ index's
// whitelist by strict equality (spec §4.2).
type Filter map[string]any

// selectIndex picks the index with the lowest estimated selectivity
// whose fields are all covered by filter, falling back to nil (full
// scan over the id index) when no index matches.
//
// Selectivity is bucket size for the generated key: 1 for a unique
// match, 0 for a miss, else the bucket's length.
func (s *Store) selectIndex(filter Filter) (*index, string, bool) {
	var best *index
	var bestKey string
	bestSelectivity := -1

	for _, name := range s.indexOrder {
		ix := s.indexes[name]
		key, ok := ix.keyForFilter(filter)
		if !ok {
			continue
		}
		selectivity := len(ix.lookup(key))
		if best == nil || selectivity < bestSelectivity {
			best = ix
			bestKey = key
			bestSelectivity = selectivity
		}
	}
	return best, bestKey, best != nil
}
