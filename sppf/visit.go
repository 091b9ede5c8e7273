package sppf

import (
	"github.com/earleyforge/yaep/grammar"
)

// RuleNode is a node produced while walking the forest: a symbol
// together with whatever value a listener's reduction produced for it.
type RuleNode struct {
	symbol *SymbolNode
	Value  interface{}
}

// Symbol returns the grammar symbol this node stands for, or nil for a
// translated node carrying a constant (§4.3) rather than a forest
// position reference.
func (rn *RuleNode) Symbol() *grammar.Symbol {
	if rn.symbol == nil {
		return nil
	}
	return rn.symbol.Symbol
}

// Span returns the input span this node covers. A translated node
// carrying a constant (§4.3) has no forest position and returns (0, 0).
func (rn *RuleNode) Span() (uint64, uint64) {
	if rn.symbol == nil {
		return 0, 0
	}
	return rn.symbol.Extent.From(), rn.symbol.Extent.To()
}

// Pruner decides, for a SymbolNode with more than one outgoing or-edge
// (an ambiguity), which RHS alternative(s) a traversal should follow.
type Pruner interface {
	// Prune receives the candidate RHS alternatives for a symbol node
	// and returns the subset to keep. Returning all of them preserves
	// the ambiguity; returning exactly one collapses it.
	Prune(f *Forest, sym *SymbolNode, alts []*rhsNode) []*rhsNode
}

// DontCarePruner keeps every alternative: traversal sees the full
// ambiguity, exactly as it exists in the forest.
type DontCarePruner struct{}

func (DontCarePruner) Prune(f *Forest, sym *SymbolNode, alts []*rhsNode) []*rhsNode {
	return alts
}

// MinCostPruner keeps only the alternative(s) with the lowest cost,
// where an alternative's cost is its rule's own Cost plus the
// (recursively memoized) minimum cost of its children. Ties are broken
// by lowest rule serial.
type MinCostPruner struct {
	memo map[*rhsNode]int
}

// NewMinCostPruner creates a pruner implementing cost-based
// disambiguation for a one-parse result.
func NewMinCostPruner() *MinCostPruner {
	return &MinCostPruner{memo: make(map[*rhsNode]int)}
}

func (p *MinCostPruner) Prune(f *Forest, sym *SymbolNode, alts []*rhsNode) []*rhsNode {
	if len(alts) <= 1 {
		return alts
	}
	best := alts[0]
	bestCost := p.costOf(f, best)
	for _, alt := range alts[1:] {
		c := p.costOf(f, alt)
		if c < bestCost || (c == bestCost && alt.rule.Serial < best.rule.Serial) {
			best, bestCost = alt, c
		}
	}
	return []*rhsNode{best}
}

func (p *MinCostPruner) costOf(f *Forest, rhs *rhsNode) int {
	if c, ok := p.memo[rhs]; ok {
		return c
	}
	p.memo[rhs] = 0 // break cycles defensively; grammars shouldn't loop here
	total := rhs.rule.Cost
	if children := f.andEdges[rhs]; children != nil {
		children.Each(func(e andEdge) {
			total += p.minCostOfSymbol(f, e.toSym)
		})
	}
	p.memo[rhs] = total
	return total
}

func (p *MinCostPruner) minCostOfSymbol(f *Forest, sym *SymbolNode) int {
	alts := f.alternatives(sym)
	if len(alts) == 0 {
		return 0
	}
	best := p.costOf(f, alts[0])
	for _, a := range alts[1:] {
		if c := p.costOf(f, a); c < best {
			best = c
		}
	}
	return best
}

// alternatives returns the RHS-nodes a symbol node fans out to, via its
// or-edges.
func (f *Forest) alternatives(sym *SymbolNode) []*rhsNode {
	edges := f.orEdges[sym]
	if edges == nil {
		return nil
	}
	out := make([]*rhsNode, 0, edges.Size())
	edges.Each(func(e orEdge) { out = append(out, e.toRHS) })
	return out
}

// Direction controls child-visit order during a TopDown walk.
type Direction int

const (
	LtoR Direction = iota
	RtoL
)

// Breakmode signals whether a traversal should continue or stop.
type Breakmode int

const (
	Continue Breakmode = iota
	Break
)

// Listener receives callbacks while a forest is walked top-down.
type Listener interface {
	EnterRule(sym *grammar.Symbol, rhs []*grammar.Symbol, span [2]uint64) Breakmode
	ExitRule(sym *grammar.Symbol, children []*RuleNode, span [2]uint64) interface{}
	Terminal(sym *grammar.Symbol, span [2]uint64) interface{}
	Conflict(sym *grammar.Symbol, span [2]uint64) int
	MakeAttrs(sym *grammar.Symbol) interface{}
}

// TopDown walks the forest starting at root, applying pruner at every
// ambiguous symbol node and dispatching to listener. It returns the
// value the listener produced for the root.
func TopDown(f *Forest, root *SymbolNode, dir Direction, pruner Pruner, listener Listener) interface{} {
	if root == nil {
		return nil
	}
	if pruner == nil {
		pruner = DontCarePruner{}
	}
	return traverseTopDown(f, root, dir, pruner, listener)
}

func traverseTopDown(f *Forest, sym *SymbolNode, dir Direction, pruner Pruner, listener Listener) interface{} {
	if sym.Symbol.IsTerminal() {
		return listener.Terminal(sym.Symbol, [2]uint64{sym.Extent.From(), sym.Extent.To()})
	}
	alts := f.alternatives(sym)
	if len(alts) == 0 {
		return listener.MakeAttrs(sym.Symbol)
	}
	alts = pruner.Prune(f, sym, alts)
	if len(alts) > 1 {
		listener.Conflict(sym.Symbol, [2]uint64{sym.Extent.From(), sym.Extent.To()})
	}
	rhs := alts[0]
	span := [2]uint64{sym.Extent.From(), sym.Extent.To()}
	if mode := listener.EnterRule(sym.Symbol, rhs.rule.RHS(), span); mode == Break {
		return nil
	}
	children := f.orderedChildren(rhs, dir)
	nodes := make([]*RuleNode, 0, len(children))
	for _, child := range children {
		v := traverseTopDown(f, child, dir, pruner, listener)
		nodes = append(nodes, &RuleNode{symbol: child, Value: v})
	}
	if dir == RtoL {
		for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
			nodes[i], nodes[j] = nodes[j], nodes[i]
		}
	}
	return listener.ExitRule(sym.Symbol, translateChildren(rhs.rule, nodes), span)
}

// translateChildren projects rule's translation template (§4.3) over
// nodes, its left-to-right RHS decomposition, per §4.8: constants pass
// through as standalone RuleNodes carrying no forest symbol, and
// position references index into nodes. A rule with no translation
// template is a pass-through, returning nodes unchanged.
func translateChildren(rule *grammar.Rule, nodes []*RuleNode) []*RuleNode {
	t := rule.Translation
	if t.IsZero() {
		return nodes
	}
	out := make([]*RuleNode, len(t.Elems))
	for i, el := range t.Elems {
		if el.IsConstant() {
			out[i] = &RuleNode{Value: el.Constant()}
			continue
		}
		if pos := el.Position(); pos >= 0 && pos < len(nodes) {
			out[i] = nodes[pos]
		}
	}
	return out
}

func (f *Forest) orderedChildren(rhs *rhsNode, dir Direction) []*SymbolNode {
	edges := f.andEdges[rhs]
	if edges == nil {
		return nil
	}
	cp := edges.Copy()
	cp.Sort(func(a, b andEdge) bool {
		if dir == RtoL {
			return a.sequence > b.sequence
		}
		return a.sequence < b.sequence
	})
	out := make([]*SymbolNode, 0, cp.Size())
	cp.Each(func(e andEdge) { out = append(out, e.toSym) })
	return out
}

// Cursor is a movable position within the forest, for hosts that prefer
// imperative navigation (Up/Down) over a callback listener.
type Cursor struct {
	forest  *Forest
	current *SymbolNode
	rhs     *rhsNode
	pruner  Pruner
}

// NewCursor creates a Cursor positioned at root.
func NewCursor(f *Forest, root *SymbolNode, pruner Pruner) *Cursor {
	if pruner == nil {
		pruner = DontCarePruner{}
	}
	return &Cursor{forest: f, current: root, pruner: pruner}
}

// RHS returns the (pruned) children of the cursor's current symbol node.
func (c *Cursor) RHS() []*SymbolNode {
	if c.current == nil || c.current.Symbol.IsTerminal() {
		return nil
	}
	alts := c.forest.alternatives(c.current)
	alts = c.pruner.Prune(c.forest, c.current, alts)
	if len(alts) == 0 {
		return nil
	}
	c.rhs = alts[0]
	return c.forest.orderedChildren(c.rhs, LtoR)
}

// Down moves the cursor to the i-th child of its current position.
func (c *Cursor) Down(i int) bool {
	children := c.RHS()
	if i < 0 || i >= len(children) {
		return false
	}
	c.current = children[i]
	return true
}

// Up moves the cursor to the parent of its current position.
func (c *Cursor) Up() bool {
	parent, ok := c.forest.parent[c.current]
	if !ok {
		return false
	}
	c.current = parent
	return true
}

// Node returns the symbol node the cursor currently points at.
func (c *Cursor) Node() *SymbolNode {
	return c.current
}
