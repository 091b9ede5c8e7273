package sppf

import (
	"fmt"
	"io"

	"github.com/earleyforge/yaep"
	"github.com/earleyforge/yaep/grammar"
	"github.com/earleyforge/yaep/internal/arena"
	"github.com/earleyforge/yaep/iteratable"
	"github.com/earleyforge/yaep/yerr"
)

// symbolSearchTree indexes SymbolNodes by (start, end) input position.
type symbolSearchTree map[uint64]map[uint64]*iteratable.Set[*SymbolNode]

// rhsSearchTree indexes rhsNodes by (start, rule).
type rhsSearchTree map[uint64]map[uint64]*iteratable.Set[*rhsNode]

// Forest is a shared packed parse forest. A conventional, unambiguous
// parse produces a forest that is really just a single tree; an
// ambiguous grammar may produce a forest with more than one derivation
// sharing common subtrees.
type Forest struct {
	symbolNodes symbolSearchTree
	rhsNodes    rhsSearchTree
	orEdges     map[*SymbolNode]*iteratable.Set[orEdge]
	andEdges    map[*rhsNode]*iteratable.Set[andEdge]
	parent      map[*SymbolNode]*SymbolNode
	root        *SymbolNode
	startSymbolHint *grammar.Symbol
	symPool *arena.Pool[SymbolNode]
	rhsPool *arena.Pool[rhsNode]
	yerr.Context
}

// NewForest returns an empty forest whose node arena has no allocation
// ceiling — the common case, since the forest of a real parse is
// bounded by input length and grammar size anyway.
func NewForest() *Forest {
	return NewBoundedForest(0, 0)
}

// NewBoundedForest returns an empty forest whose symbol- and rhs-node
// arenas are capped at maxSymbolNodes/maxRHSNodes respectively (0 means
// unbounded). Once a ceiling is reached, node construction fails: the
// method that needed the node returns nil and LastError() reports
// yerr.NoMemory, per §4.1's "callers are required to check".
func NewBoundedForest(maxSymbolNodes, maxRHSNodes int) *Forest {
	return &Forest{
		symbolNodes: make(symbolSearchTree),
		rhsNodes:    make(rhsSearchTree),
		orEdges:     make(map[*SymbolNode]*iteratable.Set[orEdge]),
		andEdges:    make(map[*rhsNode]*iteratable.Set[andEdge]),
		parent:      make(map[*SymbolNode]*SymbolNode),
		symPool:     arena.NewPool[SymbolNode](0, maxSymbolNodes),
		rhsPool:     arena.NewPool[rhsNode](0, maxRHSNodes),
	}
}

// Root returns the forest's root node, if SetRoot or a reduction of the
// grammar's start symbol has established one.
func (f *Forest) Root() *SymbolNode {
	return f.root
}

// AddReduction adds a node for a reduced grammar rule into the forest.
// If rhs is empty, nil is returned — use AddEpsilonReduction instead.
func (f *Forest) AddReduction(sym *grammar.Symbol, rule *grammar.Rule, rhs []*SymbolNode) *SymbolNode {
	if len(rhs) == 0 {
		return nil
	}
	tracer().Debugf("reduction: %s -> RHS = %v", sym.Name, rhs)
	start := rhs[0].Extent.From()
	end := rhs[len(rhs)-1].Extent.To()
	rhsnode := f.addRHSNode(rule, rhs, start)
	if rhsnode == nil {
		return nil
	}
	if !f.addOrEdge(sym, rhsnode, start, end) {
		return nil
	}
	for seq, d := range rhs {
		if _, ok := f.addAndEdge(rhsnode, uint(seq), d.Symbol, d.Extent.From(), d.Extent.To()); !ok {
			return nil
		}
		f.parent[d] = f.findSymNode(sym, start, end)
	}
	symnode := f.findSymNode(sym, start, end)
	if sym == f.startSymbolHint {
		f.root = symnode
	}
	return symnode
}

// SetStartSymbol lets AddReduction/AddEpsilonReduction mark the root
// automatically as soon as this symbol is reduced, instead of requiring
// an explicit SetRoot call after the parse finishes.
func (f *Forest) SetStartSymbol(sym *grammar.Symbol) {
	f.startSymbolHint = sym
}

// AddEpsilonReduction adds a node for a reduced ε-production.
func (f *Forest) AddEpsilonReduction(sym *grammar.Symbol, rule *grammar.Rule, pos uint64) *SymbolNode {
	rhsnode := f.addRHSNode(rule, nil, pos)
	if rhsnode == nil {
		return nil
	}
	if !f.addOrEdge(sym, rhsnode, pos, pos) {
		return nil
	}
	symnode := f.findSymNode(sym, pos, pos)
	eps := epsilonSymbol()
	e, ok := f.addAndEdge(rhsnode, 0, eps, pos, pos)
	if !ok {
		return nil
	}
	f.parent[e.toSym] = symnode
	if sym == f.startSymbolHint {
		f.root = symnode
	}
	return symnode
}

// AddTerminal adds a node for a recognized terminal into the forest.
func (f *Forest) AddTerminal(t *grammar.Symbol, pos uint64) *SymbolNode {
	return f.addSymNode(t, pos, pos+1)
}

// SetRoot explicitly designates the forest's root node.
func (f *Forest) SetRoot(symnode *SymbolNode) {
	f.root = symnode
}

// --- Nodes --------------------------------------------------------------

// SymbolNode represents [A (x…y)]: a grammar symbol reduced (or
// recognized, for a terminal) over input span (x…y).
type SymbolNode struct {
	Symbol *grammar.Symbol
	Extent yaep.Span
}

func (sn *SymbolNode) spanning(from, to uint64) *SymbolNode {
	sn.Extent = yaep.Span{from, to}
	return sn
}

func (sn *SymbolNode) String() string {
	return fmt.Sprintf("%s %s", sn.Symbol, sn.Extent.String())
}

func (f *Forest) findSymNode(sym *grammar.Symbol, start, end uint64) *SymbolNode {
	return f.symbolNodes.findSymbol(start, end, sym)
}

func (f *Forest) addSymNode(sym *grammar.Symbol, start, end uint64) *SymbolNode {
	if sn := f.findSymNode(sym, start, end); sn != nil {
		return sn
	}
	slot, ok := f.symPool.Alloc()
	if !ok {
		f.Set(yerr.New(yerr.NoMemory, "forest symbol-node arena exhausted after %d nodes", f.symPool.Count()))
		return nil
	}
	*slot = SymbolNode{Symbol: sym}
	sn := slot.spanning(start, end)
	f.symbolNodes.add(start, end, sn)
	return sn
}

// rhsNode represents [δ (x) Σ]: a rule's right-hand side, identified by
// rule, start position and a signature over its children so that two
// distinct derivations of the same span with different children are
// not collapsed into one.
type rhsNode struct {
	rule  *grammar.Rule
	start uint64
	sigma int32
}

func (rhs *rhsNode) identified(start uint64, signature int32) *rhsNode {
	rhs.start = start
	rhs.sigma = signature
	return rhs
}

var primes = [...]int64{107, 401, 353, 223, 811, 569, 619, 173, 433, 757, 811,
	823, 857, 863, 883, 907, 929, 947, 971, 983}

func rhsSignature(rhs []*SymbolNode, start uint64) int32 {
	const largePrime = int64(143743)
	if len(rhs) == 0 {
		return int32(primes[start%uint64(len(primes))])
	}
	h := int64(817)
	for _, symnode := range rhs {
		if v := abs(symnode.Symbol.Value); v != 0 {
			h *= v
		}
		h %= largePrime
		from := symnode.Extent.From()
		h *= primes[(from*from)%uint64(len(primes))] + int64(from)
		h %= largePrime
	}
	return int32(h)
}

func (f *Forest) findRHSNode(rule *grammar.Rule, rhs []*SymbolNode, start uint64) *rhsNode {
	signature := rhsSignature(rhs, start)
	return f.rhsNodes.findRHS(start, rule, signature)
}

func (f *Forest) addRHSNode(rule *grammar.Rule, rhs []*SymbolNode, start uint64) *rhsNode {
	if node := f.findRHSNode(rule, rhs, start); node != nil {
		return node
	}
	signature := rhsSignature(rhs, start)
	slot, ok := f.rhsPool.Alloc()
	if !ok {
		f.Set(yerr.New(yerr.NoMemory, "forest rhs-node arena exhausted after %d nodes", f.rhsPool.Count()))
		return nil
	}
	slot.rule = rule
	node := slot.identified(start, signature)
	f.rhsNodes.add(start, uint64(rule.Serial), node)
	return node
}

// --- Edges ----------------------------------------------------------------

type orEdge struct {
	fromSym *SymbolNode
	toRHS   *rhsNode
}

// addOrEdge links sym to rhs, allocating sym's node if needed. It
// reports false, without mutating the forest further, if the node
// arena is exhausted.
func (f *Forest) addOrEdge(sym *grammar.Symbol, rhs *rhsNode, start, end uint64) bool {
	sn := f.addSymNode(sym, start, end)
	if sn == nil {
		return false
	}
	if e := f.findOrEdge(sn, rhs); e.isNull() {
		e = orEdge{sn, rhs}
		if _, ok := f.orEdges[sn]; !ok {
			f.orEdges[sn] = iteratable.NewSet[orEdge](0)
		}
		f.orEdges[sn].Add(e)
	}
	return true
}

func (f *Forest) findOrEdge(sn *SymbolNode, rhs *rhsNode) orEdge {
	if edges := f.orEdges[sn]; edges != nil {
		v, ok := edges.FirstMatch(func(e orEdge) bool {
			return e.fromSym == sn && e.toRHS == rhs
		})
		if ok {
			return v
		}
	}
	return nullOrEdge
}

var nullOrEdge = orEdge{}

func (e orEdge) isNull() bool { return e == nullOrEdge }

type andEdge struct {
	fromRHS  *rhsNode
	toSym    *SymbolNode
	sequence uint
}

// addAndEdge links rhs to sym's node at sequence position seq,
// allocating sym's node if needed. It reports false, without mutating
// the forest further, if the node arena is exhausted.
func (f *Forest) addAndEdge(rhs *rhsNode, seq uint, sym *grammar.Symbol, start, end uint64) (andEdge, bool) {
	sn := f.addSymNode(sym, start, end)
	if sn == nil {
		return andEdge{}, false
	}
	if e := f.findAndEdge(rhs, sn); !e.isNull() {
		if e.sequence != seq {
			panic(fmt.Sprintf("new edge with sequence=%d replaces sequence=%d", seq, e.sequence))
		}
		return e, true
	}
	e := andEdge{rhs, sn, seq}
	if _, ok := f.andEdges[rhs]; !ok {
		f.andEdges[rhs] = iteratable.NewSet[andEdge](0)
	}
	f.andEdges[rhs].Add(e)
	return e, true
}

func (f *Forest) findAndEdge(rhs *rhsNode, sn *SymbolNode) andEdge {
	if edges := f.andEdges[rhs]; edges != nil {
		v, ok := edges.FirstMatch(func(e andEdge) bool {
			return e.fromRHS == rhs && e.toSym == sn
		})
		if ok {
			return v
		}
	}
	return nullAndEdge
}

var nullAndEdge = andEdge{}

func (e andEdge) isNull() bool { return e == nullAndEdge }

// --- search trees -----------------------------------------------------------

func (t symbolSearchTree) findSymbol(from, to uint64, sym *grammar.Symbol) *SymbolNode {
	t1, ok := t[from]
	if !ok {
		return nil
	}
	set, ok := t1[to]
	if !ok {
		return nil
	}
	v, ok := set.FirstMatch(func(s *SymbolNode) bool { return s.Symbol == sym })
	if !ok {
		return nil
	}
	return v
}

func (t symbolSearchTree) add(from, to uint64, node *SymbolNode) {
	t1, ok := t[from]
	if !ok {
		t1 = make(map[uint64]*iteratable.Set[*SymbolNode])
		t[from] = t1
	}
	if _, ok := t1[to]; !ok {
		t1[to] = iteratable.NewSet[*SymbolNode](0)
	}
	t1[to].Add(node)
}

func (t symbolSearchTree) all() *iteratable.Set[*SymbolNode] {
	out := iteratable.NewSet[*SymbolNode](0)
	for _, t1 := range t {
		for _, set := range t1 {
			out.Union(set)
		}
	}
	return out
}

func (t rhsSearchTree) findRHS(start uint64, rule *grammar.Rule, signature int32) *rhsNode {
	t1, ok := t[start]
	if !ok {
		return nil
	}
	set, ok := t1[uint64(rule.Serial)]
	if !ok {
		return nil
	}
	v, ok := set.FirstMatch(func(n *rhsNode) bool { return n.sigma == signature })
	if !ok {
		return nil
	}
	return v
}

func (t rhsSearchTree) add(start, rule uint64, node *rhsNode) {
	t1, ok := t[start]
	if !ok {
		t1 = make(map[uint64]*iteratable.Set[*rhsNode])
		t[start] = t1
	}
	if _, ok := t1[rule]; !ok {
		t1[rule] = iteratable.NewSet[*rhsNode](0)
	}
	t1[rule].Add(node)
}

func (t rhsSearchTree) all() *iteratable.Set[*rhsNode] {
	out := iteratable.NewSet[*rhsNode](0)
	for _, t1 := range t {
		for _, set := range t1 {
			out.Union(set)
		}
	}
	return out
}

// --- GraphViz ---------------------------------------------------------------

// ToGraphViz exports an SPPF to w in Graphviz DOT format.
func ToGraphViz(forest *Forest, w io.Writer) {
	io.WriteString(w, "digraph G {\n{ graph [fontname=\"Helvetica\"];\n"+
		"  node [fontname=\"Helvetica\",shape=box,fontsize=10];\n"+
		"  edge [fontname=\"Helvetica\",fontsize=9];\n")
	rhss := forest.rhsNodes.all()
	rhss.Sort(func(a, b *rhsNode) bool { return a.rule.Serial < b.rule.Serial })
	rhss.Each(func(node *rhsNode) {
		fmt.Fprintf(w, "\"rule %d (%d)\" [style=rounded,color=\"#404040\"]\n", node.rule.Serial, node.sigma)
	})
	syms := forest.symbolNodes.all()
	syms.Sort(func(a, b *SymbolNode) bool { return a.Extent.From() < b.Extent.From() })
	syms.Each(func(node *SymbolNode) {
		if node.Symbol.IsTerminal() {
			fmt.Fprintf(w, "\"%s\" [fillcolor=grey90,style=filled]\n", node)
		} else {
			fmt.Fprintf(w, "\"%s\" []\n", node)
		}
	})
	io.WriteString(w, "}\n")
	for _, set := range forest.orEdges {
		set.Each(func(e orEdge) {
			fmt.Fprintf(w, "\"%s\" -> \"rule %d (%d)\" [style=dashed]\n", e.fromSym, e.toRHS.rule.Serial, e.toRHS.sigma)
		})
	}
	for _, set := range forest.andEdges {
		set.Sort(func(a, b andEdge) bool { return a.sequence < b.sequence })
		set.Each(func(e andEdge) {
			fmt.Fprintf(w, "\"rule %d (%d)\" -> \"%s\" [label=%d]\n", e.fromRHS.rule.Serial, e.fromRHS.sigma, e.toSym, e.sequence)
		})
	}
	io.WriteString(w, "{ rank=max;\n")
	syms.Each(func(node *SymbolNode) {
		if node.Symbol.IsTerminal() {
			fmt.Fprintf(w, "\"%s\";", node)
		}
	})
	io.WriteString(w, "\n}\n}\n")
}

func abs(n int) int64 {
	if n < 0 {
		n = -n
	}
	return int64(n)
}

func epsilonSymbol() *grammar.Symbol {
	return grammar.EpsilonSymbol
}
