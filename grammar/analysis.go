package grammar

import (
	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
	"github.com/npillmayer/schuko/tracing"

	"github.com/earleyforge/yaep/iteratable"
	"github.com/earleyforge/yaep/yerr"
)

// symbolComparator orders symbols by their interned Value, so a
// treeset.Set can hold *Symbol directly; used for the unit-derivation
// adjacency built during loop detection.
func symbolComparator(x, y interface{}) int {
	return utils.IntComparator(x.(*Symbol).Value, y.(*Symbol).Value)
}

// tracer traces with key 'yaep.grammar', following the convention the
// teacher package uses for its own per-package tracer() helper.
func tracer() tracing.Trace {
	return tracing.Select("yaep.grammar")
}

// Lookahead selects how aggressively the parser is allowed to use
// lookahead when deciding whether a deterministic reduction path (and
// therefore a Leo item) may be cached across a parse.
type Lookahead int

const (
	// LookaheadNone performs no lookahead; deterministic chains are
	// always cacheable.
	LookaheadNone Lookahead = iota
	// LookaheadStatic keeps deterministic chains cacheable, as under
	// LookaheadNone.
	LookaheadStatic
	// LookaheadDynamic stops Leo chains from being cached (see
	// Analysis.DeterministicReductionPath).
	//
	// At no level does the parser filter Earley items by lookahead:
	// Analyze computes FIRST/FOLLOW whatever the level, and the level
	// only decides whether Leo chains may be cached.
	LookaheadDynamic
)

// AnalysisOption configures an Analyze run.
type AnalysisOption func(*Analysis)

// WithLookahead sets the lookahead level used to gate Leo chain caching.
func WithLookahead(l Lookahead) AnalysisOption {
	return func(a *Analysis) { a.lookahead = l }
}

// AllowLoops permits a grammar containing a cyclic unit derivation
// (A ⇒+ A) to analyze successfully instead of failing with
// yerr.LoopsGrammar.
func AllowLoops(b bool) AnalysisOption {
	return func(a *Analysis) { a.loopsOK = b }
}

// Analysis is the static analysis of a Grammar: nullability, FIRST and
// FOLLOW sets, reachability and derivability, loop detection, and the
// deterministic-reduction-path predicate the Leo optimizer consults.
type Analysis struct {
	g            *Grammar
	nullable     map[*Symbol]bool
	first        map[*Symbol]*iteratable.Set[int]
	follow       map[*Symbol]*iteratable.Set[int]
	access       map[*Symbol]bool // access_p: reachable from the start symbol
	derivation   map[*Symbol]bool // derivation_p: derives some terminal string
	unreachable  []*Symbol
	unproductive []*Symbol
	detChain     map[*Symbol]bool
	loopsOK      bool
	hasLoops     bool
	lookahead    Lookahead
	yerr.Context
}

// Analyze runs static analysis over g. If g contains a cyclic
// derivation and AllowLoops(true) was not given, it returns a non-nil
// *Analysis (so callers can still inspect HasLoops) together with a
// yerr.LoopsGrammar error.
func Analyze(g *Grammar, opts ...AnalysisOption) (*Analysis, error) {
	a := &Analysis{
		g:          g,
		nullable:   make(map[*Symbol]bool),
		first:      make(map[*Symbol]*iteratable.Set[int]),
		follow:     make(map[*Symbol]*iteratable.Set[int]),
		access:     make(map[*Symbol]bool),
		derivation: make(map[*Symbol]bool),
		detChain:   make(map[*Symbol]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	if undef := a.findUndefined(); undef != nil {
		err := yerr.New(yerr.UndefinedSymbol, "non-terminal %q is referenced in a rule's RHS but never defined by a rule", undef.Name)
		a.Set(err)
		return a, err
	}
	a.computeNullable()
	a.computeFirstFollow()
	a.detectLoops()
	if a.hasLoops && !a.loopsOK {
		err := yerr.New(yerr.LoopsGrammar, "grammar %q contains a cyclic derivation A =>+ A", g.Name)
		a.Set(err)
		return a, err
	}
	a.computeReachability()
	a.computeDerivability()
	a.reportUnreachableUnproductive()
	a.computeDeterministicChains()
	return a, nil
}

// Grammar returns the analyzed grammar.
func (a *Analysis) Grammar() *Grammar {
	return a.g
}

// DerivesEpsilon reports whether sym can derive the empty string.
func (a *Analysis) DerivesEpsilon(sym *Symbol) bool {
	if sym == nil || sym.IsTerminal() {
		return false
	}
	return a.nullable[sym]
}

// First returns the FIRST set of sym as a slice of terminal token codes.
func (a *Analysis) First(sym *Symbol) []int {
	if s, ok := a.first[sym]; ok {
		return s.Values()
	}
	return nil
}

// Follow returns the FOLLOW set of sym as a slice of terminal token
// codes.
func (a *Analysis) Follow(sym *Symbol) []int {
	if s, ok := a.follow[sym]; ok {
		return s.Values()
	}
	return nil
}

// HasLoops reports whether the grammar contains a cyclic unit
// derivation.
func (a *Analysis) HasLoops() bool {
	return a.hasLoops
}

// IsReachable reports whether sym is reachable from the start symbol
// (§4.4 point 2, access_p): terminals are reachable iff some reachable
// rule's RHS mentions them.
func (a *Analysis) IsReachable(sym *Symbol) bool {
	return a.access[sym]
}

// IsProductive reports whether sym derives some finite terminal string
// (§4.4 point 3, derivation_p). Terminals are trivially productive.
func (a *Analysis) IsProductive(sym *Symbol) bool {
	if sym == nil {
		return false
	}
	if sym.IsTerminal() {
		return true
	}
	return a.derivation[sym]
}

// Unreachable returns the non-terminals that are interned in the
// grammar but never reachable from the start symbol (§4.4 point 5).
func (a *Analysis) Unreachable() []*Symbol {
	return a.unreachable
}

// Unproductive returns the non-terminals that can never derive a finite
// terminal string (§4.4 point 5).
func (a *Analysis) Unproductive() []*Symbol {
	return a.unproductive
}

// DeterministicReductionPath reports whether completions of sym always
// advance exactly one waiting item further up the derivation — Leo's
// condition for caching a single "Leo item" instead of re-running the
// standard O(n) completion chain. Under LookaheadDynamic the condition
// can depend on tokens not yet consumed, so this always reports false
// and the engine falls back to standard completion.
func (a *Analysis) DeterministicReductionPath(sym *Symbol) bool {
	if sym == nil || sym.IsTerminal() {
		return false
	}
	if a.lookahead == LookaheadDynamic {
		return false
	}
	return a.detChain[sym]
}

func (a *Analysis) computeNullable() {
	changed := true
	for changed {
		changed = false
		for _, r := range a.g.rules {
			if a.nullable[r.LHS] {
				continue
			}
			all := true
			for _, s := range r.RHS() {
				if s.IsTerminal() || !a.nullable[s] {
					all = false
					break
				}
			}
			if all {
				a.nullable[r.LHS] = true
				changed = true
			}
		}
	}
}

func (a *Analysis) computeFirstFollow() {
	for _, sym := range a.g.symbols {
		if sym.IsTerminal() {
			s := iteratable.NewSet[int](1)
			s.Add(sym.Value)
			a.first[sym] = s
		} else {
			a.first[sym] = iteratable.NewSet[int](0)
		}
	}
	changed := true
	for changed {
		changed = false
		for _, r := range a.g.rules {
			fi := a.first[r.LHS]
			before := fi.Size()
			for _, s := range r.RHS() {
				fi.Union(a.first[s])
				if s.IsTerminal() || !a.nullable[s] {
					break
				}
			}
			if fi.Size() != before {
				changed = true
			}
		}
	}

	for _, sym := range a.g.symbols {
		if !sym.IsTerminal() {
			a.follow[sym] = iteratable.NewSet[int](0)
		}
	}
	if fo, ok := a.follow[a.g.start]; ok {
		fo.Add(eofCode)
	}
	changed = true
	for changed {
		changed = false
		for _, r := range a.g.rules {
			rhs := r.RHS()
			for i, s := range rhs {
				if s.IsTerminal() {
					continue
				}
				fo := a.follow[s]
				before := fo.Size()
				trailerNullable := true
				for j := i + 1; j < len(rhs); j++ {
					t := rhs[j]
					fo.Union(a.first[t])
					if t.IsTerminal() || !a.nullable[t] {
						trailerNullable = false
						break
					}
				}
				if trailerNullable {
					fo.Union(a.follow[r.LHS])
				}
				if fo.Size() != before {
					changed = true
				}
			}
		}
	}
}

// detectLoops builds the "derives as a single unit" graph (A steps to B
// when some rule A → α contains the non-terminal B and every other RHS
// symbol is a nullable non-terminal) and looks for a
// cycle in it, which is exactly a cyclic derivation A ⇒+ A.
func (a *Analysis) detectLoops() {
	derivesUnit := make(map[*Symbol]*treeset.Set)
	for _, r := range a.g.rules {
		rhs := r.RHS()
		for i, s := range rhs {
			if s.IsTerminal() {
				continue
			}
			ok := true
			for j, t := range rhs {
				if j == i {
					continue
				}
				if t.IsTerminal() || !a.nullable[t] {
					ok = false
					break
				}
			}
			if ok {
				edges, found := derivesUnit[r.LHS]
				if !found {
					edges = treeset.NewWith(symbolComparator)
					derivesUnit[r.LHS] = edges
				}
				edges.Add(s)
			}
		}
	}
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[*Symbol]int)
	// Iterative DFS over the unit-derivation graph using an explicit
	// work stack, so a long A -> B -> C -> ... chain can't blow the
	// Go call stack the way a recursive walk would.
	for _, start := range a.g.symbols {
		if start.IsTerminal() || state[start] != unvisited {
			continue
		}
		stack := arraylist.New()
		stack.Add(start)
		state[start] = inStack
		for !stack.Empty() {
			top, _ := stack.Get(stack.Size() - 1)
			sym := top.(*Symbol)
			advanced := false
			if edges, ok := derivesUnit[sym]; ok {
				it := edges.Iterator()
				for it.Next() {
					next := it.Value().(*Symbol)
					switch state[next] {
					case inStack:
						a.hasLoops = true
						return
					case unvisited:
						state[next] = inStack
						stack.Add(next)
						advanced = true
					}
					if advanced {
						break
					}
				}
			}
			if !advanced {
				state[sym] = done
				stack.Remove(stack.Size() - 1)
			}
		}
	}
}

// computeDeterministicChains implements the Leo-chain predicate: a
// non-terminal B has a deterministic reduction path if at most one rule
// ends with B as its final RHS symbol and that rule's LHS in turn has a
// deterministic reduction path — i.e. completing B always feeds into exactly one
// further completion, all the way up. A symbol with no continuation at
// all is trivially deterministic (there's nothing to disambiguate).
func (a *Analysis) computeDeterministicChains() {
	continuations := make(map[*Symbol][]*Rule)
	for _, r := range a.g.rules {
		rhs := r.RHS()
		if len(rhs) == 0 {
			continue
		}
		last := rhs[len(rhs)-1]
		if !last.IsTerminal() {
			continuations[last] = append(continuations[last], r)
		}
	}
	memo := make(map[*Symbol]bool)
	visiting := make(map[*Symbol]bool)
	var det func(*Symbol) bool
	det = func(b *Symbol) bool {
		if v, ok := memo[b]; ok {
			return v
		}
		if visiting[b] {
			return true // closing a cycle still yields a single deterministic path
		}
		visiting[b] = true
		conts := continuations[b]
		result := true
		switch {
		case len(conts) > 1:
			result = false
		case len(conts) == 1:
			result = det(conts[0].LHS)
		}
		visiting[b] = false
		memo[b] = result
		return result
	}
	for _, sym := range a.g.symbols {
		if !sym.IsTerminal() {
			a.detChain[sym] = det(sym)
		}
	}
}

// findUndefined returns the first non-terminal referenced in some
// rule's RHS that has no rule defining it (an empty byLHS entry), or
// nil if every referenced non-terminal is defined somewhere (§4.4
// point 5: "nondefined is fatal"). The builder interns any symbol name
// it sees, whether it ever becomes an LHS or not, so "interned" alone
// cannot distinguish a defined non-terminal from an undefined one; this
// walks the rule set directly instead.
func (a *Analysis) findUndefined() *Symbol {
	for _, r := range a.g.rules {
		for _, s := range r.RHS() {
			if s.IsTerminal() {
				continue
			}
			if len(a.g.byLHS[s]) == 0 {
				return s
			}
		}
	}
	return nil
}

// computeReachability is a BFS from the start symbol through rule RHSs
// (§4.4 point 2): a symbol is access_p as soon as some reachable rule
// mentions it, and a reachable non-terminal's own rules are then
// explored in turn.
func (a *Analysis) computeReachability() {
	a.access[a.g.start] = true
	queue := []*Symbol{a.g.start}
	for len(queue) > 0 {
		sym := queue[0]
		queue = queue[1:]
		for _, idx := range a.g.byLHS[sym] {
			for _, s := range a.g.rules[idx].RHS() {
				if a.access[s] {
					continue
				}
				a.access[s] = true
				if !s.IsTerminal() {
					queue = append(queue, s)
				}
			}
		}
	}
	for name, sym := range a.g.symbols {
		if sym.IsTerminal() || sym == a.g.start || a.access[sym] {
			continue
		}
		tracer().Infof("unreachable non-terminal: %s", name)
		a.unreachable = append(a.unreachable, sym)
	}
}

// computeDerivability is a fixed point over the rule set (§4.4 point 3):
// a non-terminal derives some finite terminal string iff one of its
// rules has every RHS symbol either a terminal or already known
// derivable.
func (a *Analysis) computeDerivability() {
	changed := true
	for changed {
		changed = false
		for _, r := range a.g.rules {
			if a.derivation[r.LHS] {
				continue
			}
			all := true
			for _, s := range r.RHS() {
				if s.IsTerminal() {
					continue
				}
				if !a.derivation[s] {
					all = false
					break
				}
			}
			if all {
				a.derivation[r.LHS] = true
				changed = true
			}
		}
	}
	for name, sym := range a.g.symbols {
		if sym.IsTerminal() || a.derivation[sym] {
			continue
		}
		tracer().Infof("unproductive non-terminal: %s", name)
		a.unproductive = append(a.unproductive, sym)
	}
}

// reportUnreachableUnproductive logs a summary line once both passes
// have run, so a grammar with dead weight is visible in a trace even
// when a caller never queries Unreachable()/Unproductive() directly.
// Neither condition is fatal (§4.4 point 5 reserves that for
// UndefinedSymbol); a grammar with unreachable or unproductive symbols
// still analyzes successfully.
func (a *Analysis) reportUnreachableUnproductive() {
	if len(a.unreachable) > 0 || len(a.unproductive) > 0 {
		tracer().Infof("grammar %q: %d unreachable, %d unproductive non-terminal(s)",
			a.g.Name, len(a.unreachable), len(a.unproductive))
	}
}
