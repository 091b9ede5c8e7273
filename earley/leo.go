package earley

import (
	"github.com/cnf/structhash"

	"github.com/earleyforge/yaep/grammar"
)

// leoItem is a cached "topmost" completion for a deterministic
// reduction chain, keyed by the Earley set holding the chain's single
// waiting item plus the non-terminal that item waits on. Caching this
// single item is what lets
// Leo's optimization avoid re-deriving an entire right-recursion chain
// at every completion step, collapsing what would otherwise be an
// O(n^2) cost for deeply right-recursive rules (e.g. a list built as
// List -> Item List | Item) down to O(n).
//
// The repository this engine grew out of explicitly declined to
// implement anything in this family (it also skipped the related
// Aycock & Horspool split epsilon-DFA); this builds instead
// on the grammar analyzer's DeterministicReductionPath predicate and the
// same iteratable.Set work-queue idiom the rest of the engine uses.
type leoItem struct {
	item grammar.Item
}

// leoTable caches leoItems, one per (Earley set index, symbol) pair
// that the grammar analyzer has certified as having a deterministic
// reduction path.
type leoTable struct {
	table map[string]leoItem
}

func newLeoTable() *leoTable {
	return &leoTable{table: make(map[string]leoItem)}
}

type leoKey struct {
	Set uint64
	Sym string
}

func (t *leoTable) key(setIdx uint64, sym *grammar.Symbol) string {
	h, err := structhash.Hash(leoKey{Set: setIdx, Sym: sym.Name}, 1)
	if err != nil {
		panic(err)
	}
	return h
}

// lookup returns the cached Leo item for (setIdx, sym), if any.
func (t *leoTable) lookup(setIdx uint64, sym *grammar.Symbol) (leoItem, bool) {
	v, ok := t.table[t.key(setIdx, sym)]
	return v, ok
}

// install records item as the Leo item for (setIdx, sym), overwriting
// whatever was cached before — a parse only ever needs the most
// recently derived item for a given (set, symbol) pair, since an
// Earley set is built once per parse; when error recovery rewinds and
// rebuilds sets, rewindTo empties the table.
func (t *leoTable) install(setIdx uint64, sym *grammar.Symbol, item grammar.Item) {
	t.table[t.key(setIdx, sym)] = leoItem{item: item}
}
