package knowledge

// RelationInverter maps between external relation IDs and the internal ID
// space used when inverse triples are enabled. Real relation r is stored as
// 2r and its synthetic inverse as 2r+1, so inverting an internal ID flips
// the lowest bit.
type RelationInverter struct{}

// DefaultInverter is the process-wide inverter. It holds no state.
var DefaultInverter RelationInverter

// Forward returns the internal ID of real relation r.
func (RelationInverter) Forward(r int64) int64 { return 2 * r }

// Inverse returns the internal ID paired with r. Inverse(Inverse(r)) == r.
func (RelationInverter) Inverse(r int64) int64 { return r ^ 1 }

// IsInverse reports whether an internal ID denotes a synthetic inverse relation.
func (RelationInverter) IsInverse(r int64) bool { return r&1 == 1 }

// Real returns the real relation ID behind an internal ID.
func (RelationInverter) Real(r int64) int64 { return r >> 1 }

// MapTriples returns a copy of batch with the relation column converted to
// internal IDs, optionally pointing at the inverse relation.
func (inv RelationInverter) MapTriples(batch MappedTriples, invert bool) MappedTriples {
	out := batch.Clone()
	for i := range out {
		out[i][1] = inv.mapID(out[i][1], invert)
	}
	return out
}

// MapPairs returns a copy of batch with column index converted to internal IDs.
func (inv RelationInverter) MapPairs(batch Pairs, index int, invert bool) Pairs {
	out := make(Pairs, len(batch))
	copy(out, batch)
	for i := range out {
		out[i][index] = inv.mapID(out[i][index], invert)
	}
	return out
}

func (inv RelationInverter) mapID(r int64, invert bool) int64 {
	id := inv.Forward(r)
	if invert {
		id = inv.Inverse(id)
	}
	return id
}

// InvertTriples rewrites internal (h, r, t) rows into (t, inverse(r), h).
func (inv RelationInverter) InvertTriples(batch MappedTriples) MappedTriples {
	out := make(MappedTriples, len(batch))
	for i, row := range batch {
		out[i] = [3]int64{row[2], inv.Inverse(row[1]), row[0]}
	}
	return out
}

// InvertPairs flips the internal relation ID found at column index and swaps
// the two columns, e.g. (h, r) becomes (inverse(r), h).
func (inv RelationInverter) InvertPairs(batch Pairs, index int) Pairs {
	out := make(Pairs, len(batch))
	for i, row := range batch {
		row[index] = inv.Inverse(row[index])
		out[i] = [2]int64{row[1], row[0]}
	}
	return out
}
