// Package vector provides nearest-neighbor retrieval over training item embeddings.
//
// Searches read an immutable snapshot through an atomic pointer; mutations build a new
// snapshot under a mutex and swap it in, so a search never observes a half-applied change.
// Vectors are stored L2-normalized and the query is normalized before scoring, which makes
// the dot product equal to cosine similarity in [-1, 1].
package vector

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/doubletabai/askdb/pkg/embedding"
	"github.com/doubletabai/askdb/pkg/errs"
	"github.com/doubletabai/askdb/pkg/training"
)

type Hit struct {
	Item  training.Item
	Score float64
}

// Result is ordered by descending score; equal scores keep insertion order.
type Result []Hit

func (r Result) Items() []training.Item {
	out := make([]training.Item, len(r))
	for i, h := range r {
		out[i] = h.Item
	}
	return out
}

type entry struct {
	item training.Item
	vec  []float32
}

type snapshot struct {
	dim     int
	entries []entry
}

type Index struct {
	mu         sync.Mutex
	snap       atomic.Pointer[snapshot]
	initialDim int
}

// New returns an empty index. A dim of 0 fixes the dimension on the first inserted item.
func New(dim int) *Index {
	idx := &Index{initialDim: dim}
	idx.snap.Store(&snapshot{dim: dim})
	return idx
}

func (x *Index) Len() int {
	return len(x.snap.Load().entries)
}

func (x *Index) Dimension() int {
	return x.snap.Load().dim
}

// Rebuild replaces the whole content. Items are indexed in the given order.
func (x *Index) Rebuild(items []training.Item) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	next := &snapshot{dim: x.initialDim, entries: make([]entry, 0, len(items))}
	for _, it := range items {
		if err := checkDim(&next.dim, it); err != nil {
			return err
		}
		next.entries = append(next.entries, newEntry(it))
	}
	x.snap.Store(next)
	return nil
}

// Upsert adds item, or replaces the entry with the same id in place.
func (x *Index) Upsert(item training.Item) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	cur := x.snap.Load()
	next := &snapshot{dim: cur.dim, entries: make([]entry, len(cur.entries), len(cur.entries)+1)}
	copy(next.entries, cur.entries)
	if err := checkDim(&next.dim, item); err != nil {
		return err
	}
	e := newEntry(item)
	if i := slices.IndexFunc(next.entries, func(en entry) bool { return en.item.ID == item.ID }); i >= 0 {
		next.entries[i] = e
	} else {
		next.entries = append(next.entries, e)
	}
	x.snap.Store(next)
	return nil
}

func (x *Index) Remove(id int64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	cur := x.snap.Load()
	i := slices.IndexFunc(cur.entries, func(en entry) bool { return en.item.ID == id })
	if i < 0 {
		return false
	}
	next := &snapshot{dim: cur.dim, entries: slices.Delete(slices.Clone(cur.entries), i, i+1)}
	x.snap.Store(next)
	return true
}

// Reset drops every item and forgets the fixed dimension.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.initialDim = 0
	x.snap.Store(&snapshot{})
}

// Search returns at most k items most similar to query.
func (x *Index) Search(query []float32, k int) (Result, error) {
	return x.search(query, k, func(training.Item) bool { return true })
}

// SearchKind is Search restricted to items of one kind.
func (x *Index) SearchKind(query []float32, k int, kind training.Kind) (Result, error) {
	return x.search(query, k, func(it training.Item) bool { return it.Kind == kind })
}

func (x *Index) search(query []float32, k int, keep func(training.Item) bool) (Result, error) {
	snap := x.snap.Load()
	// An empty index answers any query, whatever dimension it was created with.
	if len(snap.entries) == 0 {
		return Result{}, nil
	}
	if snap.dim != 0 && len(query) != snap.dim {
		return nil, errs.New(errs.DimensionMismatch, "vector.Search",
			fmt.Sprintf("query has %d dimensions, index has %d", len(query), snap.dim))
	}
	if k <= 0 {
		return Result{}, nil
	}

	q := slices.Clone(query)
	embedding.NormalizeL2(q)

	hits := make(Result, 0, len(snap.entries))
	for _, e := range snap.entries {
		if !keep(e.item) {
			continue
		}
		hits = append(hits, Hit{Item: e.item, Score: dot(q, e.vec)})
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func checkDim(dim *int, it training.Item) error {
	if *dim == 0 {
		*dim = len(it.Embedding)
	}
	if len(it.Embedding) != *dim || *dim == 0 {
		return errs.New(errs.DimensionMismatch, "vector.Index",
			fmt.Sprintf("item %d has %d dimensions, index has %d", it.ID, len(it.Embedding), *dim))
	}
	return nil
}

func newEntry(it training.Item) entry {
	vec := slices.Clone(it.Embedding)
	embedding.NormalizeL2(vec)
	it.Embedding = nil
	return entry{item: it, vec: vec}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
