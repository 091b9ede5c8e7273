package earley

import (
	"fmt"

	"github.com/npillmayer/schuko/gconf"

	"github.com/earleyforge/yaep"
	"github.com/earleyforge/yaep/grammar"
	"github.com/earleyforge/yaep/iteratable"
	"github.com/earleyforge/yaep/sppf"
)

// TokenAt returns the input token recognized at input position pos, if
// StoreTokens was enabled.
func (p *Parser) TokenAt(pos uint64) yaep.Token {
	if pos+1 < uint64(len(p.tokens)) {
		return p.tokens[pos+1]
	}
	return nil
}

// --- Derivation listener ---------------------------------------------------

// Listener receives callbacks while the completed Earley item sets are
// walked backwards into a derivation tree.
type Listener interface {
	Reduce(sym *grammar.Symbol, rule *grammar.Rule, rhs []*RuleNode, span yaep.Span, level int) interface{}
	Terminal(tokval int, token yaep.Token, span yaep.Span, level int) interface{}
}

// RuleNode is a node produced while walking the derivation: a symbol
// together with the span it covers and whatever value Reduce/Terminal
// returned for it.
type RuleNode struct {
	sym    *grammar.Symbol
	Extent yaep.Span
	Value  interface{}
}

// Symbol returns the grammar symbol a RuleNode refers to: a terminal,
// or the LHS of the rule it reduces.
func (rnode *RuleNode) Symbol() *grammar.Symbol {
	return rnode.sym
}

// Span returns the input span the node covers.
func (rnode *RuleNode) Span() yaep.Span {
	return rnode.Extent
}

// --- Tree walker -------------------------------------------------------

// WalkDerivation walks the grammar items produced during the last Parse
// run backwards from the accepting item, invoking listener for every
// terminal scanned and every rule reduced.
func (p *Parser) WalkDerivation(listener Listener) *RuleNode {
	tracer().Debugf("=== Walk ===============================")
	var root *RuleNode
	S := p.states[p.sc]
	S.IterateOnce()
	for S.Next() {
		item := S.Item()
		if item.PeekSymbol() == nil && item.Rule().LHS == p.ga.Grammar().Rule(0).LHS {
			root = p.walk(item, p.sc, ruleset{}, listener, 0)
		}
	}
	tracer().Debugf("========================================")
	return root
}

// walk reconstructs the derivation of item backwards from position pos,
// as described by Grune & Jacobs, "Parsing Techniques" §7.2.1.2: a
// completed item only records where its derivation started, so finding
// its children means searching, for each RHS symbol taken right to
// left, for the item that completed it just before the current
// position.
//
// trys remembers which rules have already been picked for the current
// span, so an ambiguous grammar that could re-derive the same span with
// the same rule doesn't loop forever; it is reset whenever the walk
// moves to a genuinely earlier position.
func (p *Parser) walk(item grammar.Item, pos uint64, trys ruleset, listener Listener, level int) *RuleNode {
	rhs := reverse(item.Rule().RHS())
	extent := yaep.Span{item.Origin, pos}
	l := len(rhs)
	ruleNodes := make([]*RuleNode, l)
	end := pos
	leftmost := false
	for n, b := range rhs {
		if n+1 == l {
			leftmost = true
		}
		if b.IsTerminal() {
			value := listener.Terminal(b.Value, p.tokens[pos], yaep.Span{pos - 1, pos}, level+1)
			ruleNodes[l-n-1] = &RuleNode{sym: b, Extent: yaep.Span{pos - 1, pos}, Value: value}
			pos--
			continue
		}
		S := p.states[pos]
		cleanupState(S)
		R := S.Copy().Subset(func(jtem grammar.Item) bool {
			return itemCompletes(jtem, b)
		})
		switch R.Size() {
		case 0:
			if stuck(fmt.Sprintf("predecessor for item missing, parse is stuck: %v", item)) {
				return nil
			}
		case 1:
			child, _ := R.First()
			if leftmost && child.Origin != item.Origin {
				if stuck(fmt.Sprintf("leftmost symbol of RHS(%v) does not reach left side of span", child)) {
					return nil
				}
			}
			ruleNodes[l-n-1] = p.walk(child, pos, try(pos, end, trys), listener, level+1)
			pos = child.Origin
		default:
			var longest grammar.Item
			R.Each(func(rule grammar.Item) {
				if trys.contains(rule.Rule()) {
					return
				}
				if item.Origin > rule.Origin {
					return
				}
				if longest.Rule() == nil {
					longest = rule
				} else if rule.Origin < longest.Origin {
					longest = rule
				} else if rule.Origin == longest.Origin && rule.Rule().Serial < longest.Rule().Serial {
					longest = rule
				}
			})
			if longest.Rule() == nil {
				if stuck(fmt.Sprintf("no completed item available to satisfy %v", item)) {
					return nil
				}
			}
			trys = trys.add(longest.Rule())
			if leftmost && longest.Origin != item.Origin {
				if stuck(fmt.Sprintf("leftmost symbol of RHS(%v) does not reach left side of span", longest)) {
					return nil
				}
			}
			ruleNodes[l-n-1] = p.walk(longest, pos, try(pos, end, trys), listener, level+1)
			pos = longest.Origin
		}
	}
	if pos > item.Origin {
		if stuck("did not reach start of rule derivation, parser is stuck") {
			return nil
		}
	}
	value := listener.Reduce(item.Rule().LHS, item.Rule(), ruleNodes, extent, level)
	return &RuleNode{sym: item.Rule().LHS, Extent: extent, Value: value}
}

func try(pos, end uint64, trys ruleset) ruleset {
	if pos == end {
		return trys
	}
	return ruleset{}
}

func itemCompletes(item grammar.Item, b *grammar.Symbol) bool {
	return item.PeekSymbol() == nil && item.Rule().LHS == b
}

// cleanupState discards every item that does not complete a rule: the
// derivation walk only ever needs completions.
func cleanupState(S *iteratable.Set[grammar.Item]) {
	S.IterateOnce()
	for S.Next() {
		item := S.Item()
		if item.PeekSymbol() != nil {
			S.Remove(item)
		}
	}
}

// stuck reports that the derivation walk cannot make progress — the
// item history needed to reconstruct the tree is missing or
// inconsistent, which should only happen if a caller mutated parser
// state between Parse and WalkDerivation. If the host has opted into
// "panic-on-parser-stuck" (the same debug knob the teacher repository
// exposes for this situation), it panics with the offending message
// instead of silently returning a truncated tree.
func stuck(msg string) bool {
	tracer().Errorf(msg)
	if gconf.GetBool("panic-on-parser-stuck") {
		panic(`Earley parser is stuck.

Configuration flag panic-on-parser-stuck is set to true. It is aimed at
helping debug a parser and post-mortem why it got stuck. If this is a
production environment and you did not expect this to panic, please
unset panic-on-parser-stuck to its default (false).

` + msg)
	}
	return true
}

// --- Tree-building listener ---------------------------------------------

// TreeBuilder is a Listener that assembles a shared packed parse forest
// from the completions the derivation walk visits. Parser.buildTree
// creates one internally whenever GenerateTree is set; ParseForest
// retrieves its result.
type TreeBuilder struct {
	forest   *sppf.Forest
	grammar  *grammar.Grammar
	external Listener
}

// NewTreeBuilder creates a TreeBuilder over g, used to resolve terminal
// symbols by token code while assembling the forest. If external is
// non-nil, it is notified of every reduction and terminal match (for
// semantic side effects) alongside the forest construction; its return
// values are discarded since the walk needs *sppf.SymbolNode values to
// link the forest. The forest's node arena is unbounded; use
// NewBoundedTreeBuilder to cap it.
func NewTreeBuilder(g *grammar.Grammar, external Listener) *TreeBuilder {
	return NewTreeBuilderWithForest(sppf.NewForest(), g, external)
}

// NewBoundedTreeBuilder is NewTreeBuilder with a capped forest node
// arena (see sppf.NewBoundedForest): once the ceiling is reached,
// further reductions fail and the forest's LastError reports
// yerr.NoMemory.
func NewBoundedTreeBuilder(g *grammar.Grammar, external Listener, maxSymbolNodes, maxRHSNodes int) *TreeBuilder {
	return NewTreeBuilderWithForest(sppf.NewBoundedForest(maxSymbolNodes, maxRHSNodes), g, external)
}

// NewTreeBuilderWithForest creates a TreeBuilder that assembles into an
// already-constructed forest, letting callers choose an unbounded or a
// bounded node arena.
func NewTreeBuilderWithForest(forest *sppf.Forest, g *grammar.Grammar, external Listener) *TreeBuilder {
	return &TreeBuilder{forest: forest, grammar: g, external: external}
}

// Forest returns the parse forest built so far.
func (tb *TreeBuilder) Forest() *sppf.Forest {
	return tb.forest
}

// Reduce adds a forest node for a completed rule. The forest itself
// always links the raw RHS decomposition (the structural shape §3's
// parse-forest node requires); an external listener, if any, instead
// receives the rule's translation template projected over that
// decomposition (§4.8): constants pass through and position references
// index into rhs, so a pass-through rule (no Translate call) still
// reaches the listener unchanged.
func (tb *TreeBuilder) Reduce(sym *grammar.Symbol, rule *grammar.Rule, rhs []*RuleNode, span yaep.Span, level int) interface{} {
	if tb.external != nil {
		tb.external.Reduce(sym, rule, translateRHS(rule, rhs), span, level)
	}
	if len(rhs) == 0 {
		return tb.forest.AddEpsilonReduction(sym, rule, span.From())
	}
	children := make([]*sppf.SymbolNode, len(rhs))
	for i, r := range rhs {
		var sn *sppf.SymbolNode
		if r != nil {
			sn, _ = r.Value.(*sppf.SymbolNode)
		}
		if sn == nil {
			// A child already failed (forest node arena exhausted, or
			// the walk got stuck below it); give up on this reduction
			// rather than build on a gap.
			return (*sppf.SymbolNode)(nil)
		}
		children[i] = sn
	}
	return tb.forest.AddReduction(sym, rule, children)
}

// Terminal adds a forest node for a recognized terminal.
func (tb *TreeBuilder) Terminal(tokval int, token yaep.Token, span yaep.Span, level int) interface{} {
	if tb.external != nil {
		tb.external.Terminal(tokval, token, span, level)
	}
	t := tb.grammar.TerminalByCode(tokval)
	return tb.forest.AddTerminal(t, span.From())
}

var _ Listener = &TreeBuilder{}

// translateRHS projects rule's translation template (§4.3) over its
// left-to-right RHS decomposition, per §4.8: constants pass through as
// standalone RuleNodes, and position references index into
// decomposition. A rule with no translation template (Translate was
// never called) is itself a pass-through, returning decomposition
// unchanged.
func translateRHS(rule *grammar.Rule, decomposition []*RuleNode) []*RuleNode {
	t := rule.Translation
	if t.IsZero() {
		return decomposition
	}
	out := make([]*RuleNode, len(t.Elems))
	for i, el := range t.Elems {
		if el.IsConstant() {
			out[i] = &RuleNode{Value: el.Constant()}
			continue
		}
		if pos := el.Position(); pos >= 0 && pos < len(decomposition) {
			out[i] = decomposition[pos]
		}
	}
	return out
}

// reverse returns a reversed copy of syms.
func reverse(syms []*grammar.Symbol) []*grammar.Symbol {
	r := append([]*grammar.Symbol(nil), syms...)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return r
}
