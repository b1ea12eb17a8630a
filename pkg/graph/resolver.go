package graph

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// shardCount is the number of lock shards for per-record critical sections.
// Records hash to shards by arena index, so contention is bounded by the
// number of records that collide on a shard, never by a global lock.
const shardCount = 64

// Resolver owns the shared table of graph records. It accepts concurrent
// declarations of items and edges from parallel loader workers, propagates
// resolution as prerequisites complete, and reports terminal success or a
// stalled graph from Finish.
type Resolver struct {
	logger zerolog.Logger

	// tableMu guards the identity table and the record arena. It is held
	// only for lookups and record creation, never across record mutation.
	tableMu sync.RWMutex
	records map[Identity]*Record
	arena   []*Record

	// shards are the per-record critical sections. Two-record sections
	// (edge declaration) acquire their shards in ascending order.
	shards [shardCount]sync.Mutex

	// failMu guards failure; the first configuration fault wins and
	// poisons the run.
	failMu  sync.Mutex
	failure error

	declared int64
	edges    int64
	resolved int64
}

// NewResolver creates an empty resolver.
func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{
		logger:  logger.With().Str("component", "resolver").Logger(),
		records: make(map[Identity]*Record),
	}
}

// Declare returns the record for the given identity, creating an unresolved
// placeholder if it does not exist yet. It is safe to call before the
// item's own definition has been loaded (forward reference) and safe for
// concurrent use.
func (r *Resolver) Declare(kind ItemKind, label Label) *Record {
	id := Identity{Kind: kind, Label: label}

	r.tableMu.RLock()
	rec, ok := r.records[id]
	r.tableMu.RUnlock()
	if ok {
		return rec
	}

	r.tableMu.Lock()
	defer r.tableMu.Unlock()
	if rec, ok := r.records[id]; ok {
		return rec
	}
	rec = newRecord(recordIndex(len(r.arena)), kind, label)
	r.arena = append(r.arena, rec)
	r.records[id] = rec
	atomic.AddInt64(&r.declared, 1)
	return rec
}

// Get returns the record for the given identity, or nil if it was never
// referenced.
func (r *Resolver) Get(id Identity) *Record {
	r.tableMu.RLock()
	defer r.tableMu.RUnlock()
	return r.records[id]
}

// AddEdge declares that from depends on to, resolving both sides through
// Declare. Duplicate edges are idempotent. Declaring an edge on a record
// that has already resolved is a configuration fault: a record's dependency
// set is frozen no later than the moment it resolves.
func (r *Resolver) AddEdge(from, to Identity) error {
	a := r.Declare(from.Kind, from.Label)
	b := r.Declare(to.Kind, to.Label)

	unlock := r.lockPair(a, b)
	defer unlock()

	if a.resolved {
		err := NewConfigFault("edge declared after record resolved", nil).
			WithCode(ErrCodeLateEdge).
			WithRecord(a.Identity()).
			WithOperation("AddEdge")
		r.fail(err)
		return err
	}

	a.addDep(b)
	atomic.AddInt64(&r.edges, 1)
	return nil
}

// AttachItem supplies the parsed payload for a record. If the payload makes
// the record's gate condition true (payload present and zero unresolved
// prerequisites) the record resolves and resolution propagates, on the
// calling worker, to every record waiting on it.
func (r *Resolver) AttachItem(id Identity, item *Item) error {
	rec := r.Declare(id.Kind, id.Label)

	mu := r.shardFor(rec)
	mu.Lock()

	if rec.item != nil {
		mu.Unlock()
		err := NewConfigFault("item attached twice", nil).
			WithCode(ErrCodeDuplicateItem).
			WithRecord(id).
			WithOperation("AttachItem")
		r.fail(err)
		return err
	}
	if item == nil || item.Kind != id.Kind {
		mu.Unlock()
		err := NewConfigFault("attached item does not match record kind", nil).
			WithCode(ErrCodeKindMismatch).
			WithRecord(id).
			WithOperation("AttachItem")
		r.fail(err)
		return err
	}

	rec.item = item
	var waiters []recordIndex
	becameResolved := false
	if rec.unresolvedCount == 0 && !rec.resolved {
		rec.resolved = true
		becameResolved = true
		waiters = rec.takeWaiting()
	}
	mu.Unlock()

	if !becameResolved {
		return nil
	}
	atomic.AddInt64(&r.resolved, 1)
	return r.propagate(rec, waiters)
}

// wake is one unit of propagation work: dep has resolved and dependent must
// be notified.
type wake struct {
	dependent recordIndex
	dep       recordIndex
}

// propagate walks the reverse edges of newly resolved records iteratively
// through a FIFO queue, so deep dependency chains never grow the call
// stack. The order across independent branches is not observable.
func (r *Resolver) propagate(resolvedRec *Record, waiters []recordIndex) error {
	queue := make([]wake, 0, len(waiters))
	for _, w := range waiters {
		queue = append(queue, wake{dependent: w, dep: resolvedRec.index})
	}

	for len(queue) > 0 {
		wk := queue[0]
		queue = queue[1:]

		dependent := r.recordAt(wk.dependent)
		dep := r.recordAt(wk.dep)

		mu := r.shardFor(dependent)
		mu.Lock()
		ready, err := dependent.onResolvedDep(dep)
		if err != nil {
			mu.Unlock()
			r.fail(err)
			return err
		}
		var next []recordIndex
		becameResolved := false
		if ready && dependent.item != nil && !dependent.resolved {
			dependent.resolved = true
			becameResolved = true
			next = dependent.takeWaiting()
		}
		mu.Unlock()

		if becameResolved {
			atomic.AddInt64(&r.resolved, 1)
			r.logger.Trace().
				Stringer("record", dependent.Identity()).
				Msg("Record resolved")
		}
		for _, n := range next {
			queue = append(queue, wake{dependent: n, dep: dependent.index})
		}
	}
	return nil
}

// Result summarizes a successful resolution run.
type Result struct {
	// Declared is the total number of records in the graph.
	Declared int `json:"declared"`

	// Edges is the total number of edge declarations (including
	// duplicates, which are idempotent).
	Edges int64 `json:"edges"`

	// Modules are the resolved module records, sorted by label for
	// deterministic downstream iteration.
	Modules []*Record `json:"-"`
}

// Finish is called after all loader workers complete. It succeeds iff every
// declared record is resolved; otherwise it returns a StalledError carrying,
// per stalled record, its identity and the prerequisites that never
// completed, distinguishing a missing declaration from a true cycle.
func (r *Resolver) Finish() (*Result, error) {
	if err := r.firstFailure(); err != nil {
		return nil, err
	}

	r.tableMu.RLock()
	defer r.tableMu.RUnlock()

	var stalled []StalledRecord
	res := &Result{Declared: len(r.arena), Edges: atomic.LoadInt64(&r.edges)}

	for _, rec := range r.arena {
		if rec.resolved {
			if rec.kind == ItemModule {
				res.Modules = append(res.Modules, rec)
			}
			continue
		}
		sr := StalledRecord{Identity: rec.Identity(), Reason: ReasonCycle}
		if rec.item == nil {
			sr.Reason = ReasonUndeclared
		}
		for _, dep := range rec.unresolvedDeps(r.arena) {
			sr.UnresolvedDeps = append(sr.UnresolvedDeps, dep.Identity())
			if dep.item == nil {
				sr.Reason = ReasonUndeclared
			}
		}
		stalled = append(stalled, sr)
	}

	if len(stalled) > 0 {
		sortStalled(stalled)
		err := &StalledError{Records: stalled}
		r.logger.Error().
			Int("stalled", len(stalled)).
			Int("declared", res.Declared).
			Msg("Resolution stalled")
		return nil, err
	}

	sort.Slice(res.Modules, func(i, j int) bool {
		return res.Modules[i].label < res.Modules[j].label
	})
	r.logger.Debug().
		Int("declared", res.Declared).
		Int("modules", len(res.Modules)).
		Int64("edges", res.Edges).
		Msg("Resolution complete")
	return res, nil
}

// Records returns every record in declaration order. Intended for
// read-only use after Finish.
func (r *Resolver) Records() []*Record {
	r.tableMu.RLock()
	defer r.tableMu.RUnlock()
	out := make([]*Record, len(r.arena))
	copy(out, r.arena)
	return out
}

func (r *Resolver) recordAt(idx recordIndex) *Record {
	r.tableMu.RLock()
	defer r.tableMu.RUnlock()
	return r.arena[idx]
}

func (r *Resolver) shardFor(rec *Record) *sync.Mutex {
	return &r.shards[int(rec.index)%shardCount]
}

// lockPair acquires the critical sections of both records in ascending
// shard order, collapsing to one acquisition when they share a shard.
func (r *Resolver) lockPair(a, b *Record) func() {
	sa := int(a.index) % shardCount
	sb := int(b.index) % shardCount
	if sa == sb {
		r.shards[sa].Lock()
		return r.shards[sa].Unlock
	}
	lo, hi := sa, sb
	if lo > hi {
		lo, hi = hi, lo
	}
	r.shards[lo].Lock()
	r.shards[hi].Lock()
	return func() {
		r.shards[hi].Unlock()
		r.shards[lo].Unlock()
	}
}

func (r *Resolver) fail(err error) {
	r.failMu.Lock()
	defer r.failMu.Unlock()
	if r.failure == nil {
		r.failure = err
	}
}

func (r *Resolver) firstFailure() error {
	r.failMu.Lock()
	defer r.failMu.Unlock()
	return r.failure
}
