package graph

import "sort"

// recordIndex is an integer handle into the resolver's record arena. Edges
// are stored as plain indices so the graph, whose reverse edges are
// inherently cyclic-shaped, carries no pointer cycles of its own.
type recordIndex int32

// Record is one node in the dependency graph: the declared (kind, label)
// identity plus its resolution state. A record exists from the moment it is
// first referenced, by declaration or by being named as a dependency, and
// may hold no payload yet (forward reference placeholder).
//
// Records are mutated only by the Resolver during the loading phase, under
// the per-record critical section the resolver provides. After Finish
// succeeds they are read-only.
type Record struct {
	index recordIndex
	kind  ItemKind
	label Label

	// item is the parsed payload, nil while the record is only a forward
	// reference.
	item *Item

	// allDeps is the deduplicated set of forward edges.
	allDeps map[recordIndex]struct{}

	// waiting is the set of records blocked on this record's resolution.
	// It is drained exactly once, at the moment of resolution.
	waiting map[recordIndex]struct{}

	// unresolvedCount is the number of entries in allDeps not yet
	// resolved.
	unresolvedCount int

	// resolved becomes true at most once and never regresses.
	resolved bool
}

func newRecord(index recordIndex, kind ItemKind, label Label) *Record {
	return &Record{
		index:   index,
		kind:    kind,
		label:   label,
		allDeps: make(map[recordIndex]struct{}),
		waiting: make(map[recordIndex]struct{}),
	}
}

// Kind returns the record's item kind.
func (r *Record) Kind() ItemKind { return r.kind }

// Label returns the record's fully-qualified name.
func (r *Record) Label() Label { return r.label }

// Identity returns the record's unique key.
func (r *Record) Identity() Identity { return Identity{Kind: r.kind, Label: r.label} }

// Item returns the parsed payload, or nil while the record is only a
// forward-reference placeholder.
func (r *Record) Item() *Item { return r.item }

// Resolved reports whether the payload is present and every prerequisite
// has itself resolved.
func (r *Record) Resolved() bool { return r.resolved }

// addDep registers dep as a prerequisite. It is idempotent: a duplicate
// edge neither re-increments the pending count nor re-registers the
// reverse edge. Must be called with both records' critical sections held.
func (r *Record) addDep(dep *Record) {
	if _, ok := r.allDeps[dep.index]; ok {
		return
	}
	r.allDeps[dep.index] = struct{}{}
	if !dep.resolved {
		r.unresolvedCount++
		dep.waiting[r.index] = struct{}{}
	}
}

// onResolvedDep is invoked exactly once per edge when dep transitions to
// resolved. It decrements the pending count and reports whether it reached
// zero. A call without a matching edge, or on a record whose count is
// already zero, is a programming error in the core and yields a
// configuration fault. Must be called with r's critical section held.
func (r *Record) onResolvedDep(dep *Record) (bool, error) {
	if _, ok := r.allDeps[dep.index]; !ok {
		return false, NewConfigFault("resolved dependency has no matching edge", nil).
			WithCode(ErrCodeMissingEdge).
			WithRecord(r.Identity()).
			WithOperation("OnResolvedDep")
	}
	if r.unresolvedCount <= 0 {
		return false, NewConfigFault("pending count underflow", nil).
			WithCode(ErrCodeCountUnderflow).
			WithRecord(r.Identity()).
			WithOperation("OnResolvedDep")
	}
	r.unresolvedCount--
	return r.unresolvedCount == 0, nil
}

// takeWaiting drains and returns the reverse-edge set. Called exactly once,
// at the moment the record resolves, with its critical section held.
func (r *Record) takeWaiting() []recordIndex {
	if len(r.waiting) == 0 {
		return nil
	}
	out := make([]recordIndex, 0, len(r.waiting))
	for idx := range r.waiting {
		out = append(out, idx)
	}
	r.waiting = make(map[recordIndex]struct{})
	return out
}

// unresolvedDeps returns the subset of forward edges that never resolved:
// the prerequisites that still list this record among their waiters. Used
// purely for diagnostics after loading completes.
func (r *Record) unresolvedDeps(arena []*Record) []*Record {
	var out []*Record
	for idx := range r.allDeps {
		dep := arena[idx]
		if _, ok := dep.waiting[r.index]; ok {
			out = append(out, dep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}
