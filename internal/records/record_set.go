package records

// RecordSet is an insertion-ordered collection of records without duplicates.
// Duplicates are detected by Identity, so a later copy with a different TTL is
// dropped.
type RecordSet struct {
	order []Record
	seen  map[string]struct{}
}

// NewRecordSet returns an empty set.
func NewRecordSet() *RecordSet {
	return &RecordSet{seen: make(map[string]struct{})}
}

// Add inserts r and reports whether it was new.
func (s *RecordSet) Add(r Record) bool {
	id := Identity(r)
	if _, dup := s.seen[id]; dup {
		return false
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, r)
	return true
}

// Contains reports whether a record with r's identity is present.
func (s *RecordSet) Contains(r Record) bool {
	_, ok := s.seen[Identity(r)]
	return ok
}

// Records returns the members in insertion order.
func (s *RecordSet) Records() []Record {
	out := make([]Record, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of members.
func (s *RecordSet) Len() int {
	return len(s.order)
}
