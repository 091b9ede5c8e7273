/*
Package earley implements an Earley recognizer and parser: the core
predict/scan/complete loop over a sequence of Earley item sets, Leo's
optimization for deterministic right recursion, skip/resynchronize
error recovery, and derivation-walk construction of a shared packed
parse forest.

The shape of the engine — a Parser holding a slice of per-position
item sets backed by an iteratable.Set work queue, an outer loop reading
tokens from a scanner.Tokenizer, and an inner loop applying scan/
predict/complete until the set is exhausted — is the same shape the
repository this module grew out of used for its own (optimization-free)
Earley engine; what's added here is Leo chains, error recovery, and
cost-aware forest construction.
*/
package earley

import (
	"fmt"

	"github.com/cnf/structhash"
	"github.com/npillmayer/schuko/tracing"

	"github.com/earleyforge/yaep"
	"github.com/earleyforge/yaep/grammar"
	"github.com/earleyforge/yaep/iteratable"
	"github.com/earleyforge/yaep/scanner"
	"github.com/earleyforge/yaep/sppf"
	"github.com/earleyforge/yaep/yerr"
)

// tracer traces with key 'yaep.earley'.
func tracer() tracing.Trace {
	return tracing.Select("yaep.earley")
}

// Parser is an Earley parser. Create and initialize one with NewParser.
type Parser struct {
	ga        *grammar.Analysis
	scan      scanner.Tokenizer
	states    []*iteratable.Set[grammar.Item]
	tokens    []yaep.Token
	sc        uint64
	mode      uint
	maxErrorTokens   int
	maxRecoveryInsert int
	maxForestNodes   int
	Error     func(p *Parser, msg string)
	forest    *sppf.Forest
	backlinks map[string]grammar.Item
	leo       *leoTable
	recovered []RecoveryAction
	pending   []yaep.Token
	pruner    sppf.Pruner
	yerr.Context
}

// nextToken pops a pending (synthesized, during error recovery) token
// if one is queued, otherwise reads the next real token from the
// scanner.
func (p *Parser) nextToken() yaep.Token {
	if len(p.pending) > 0 {
		t := p.pending[0]
		p.pending = p.pending[1:]
		return t
	}
	return p.scan.NextToken()
}

const (
	optionStoreTokens  uint = 1 << 1
	optionGenerateTree uint = 1 << 2
	optionOneParse     uint = 1 << 3
	optionErrorRecover uint = 1 << 4
	optionLeo          uint = 1 << 5
)

// Option configures a parser.
type Option func(p *Parser)

// StoreTokens configures the parser to remember all input tokens, so a
// tree-walking listener can recover the literal token for a terminal
// leaf. Defaults to true.
func StoreTokens(b bool) Option {
	return func(p *Parser) { p.setMode(optionStoreTokens, b) }
}

// GenerateTree configures the parser to build a parse forest on a
// successful parse. Defaults to false.
func GenerateTree(b bool) Option {
	return func(p *Parser) { p.setMode(optionGenerateTree, b) }
}

// OneParse configures the forest builder to collapse ambiguity down to
// the single minimum-cost derivation, instead of leaving every
// alternative live in the forest.
func OneParse(b bool) Option {
	return func(p *Parser) { p.setMode(optionOneParse, b) }
}

// CostEnabled is an alias for OneParse: a grammar with meaningful rule
// costs should usually ask for a single, cheapest derivation.
func CostEnabled(b bool) Option {
	return OneParse(b)
}

// UseLeo enables Leo's optimization for deterministic right recursion.
// Defaults to true; disable only to compare against the unoptimized
// O(n^2) completion behavior.
func UseLeo(b bool) Option {
	return func(p *Parser) { p.setMode(optionLeo, b) }
}

// ErrorRecovery enables skip/resynchronize error recovery: on a
// syntax error the parser discards input tokens (up to maxDiscard) and
// optionally inserts expected tokens (up to maxInsert) to resynchronize
// instead of aborting the parse immediately.
func ErrorRecovery(b bool) Option {
	return func(p *Parser) { p.setMode(optionErrorRecover, b) }
}

// RecoveryMatch sets the discard/insert ceilings error recovery uses
// while searching for a resynchronization point.
func RecoveryMatch(maxDiscard, maxInsert int) Option {
	return func(p *Parser) {
		p.maxErrorTokens = maxDiscard
		p.maxRecoveryInsert = maxInsert
	}
}

// MaxForestNodes caps the number of nodes the parse forest's arena will
// hand out (0, the default, is unbounded). Reaching the ceiling fails
// forest construction with yerr.NoMemory instead of continuing to grow
// host memory usage without limit — the host-visible edge of §4.1's
// allocator contract.
func MaxForestNodes(n int) Option {
	return func(p *Parser) { p.maxForestNodes = n }
}

func (p *Parser) setMode(m uint, b bool) {
	if b {
		p.mode |= m
	} else {
		p.mode &^= m
	}
}

func (p *Parser) hasmode(m uint) bool {
	return p.mode&m > 0
}

// NewParser creates and initializes an Earley parser over an analyzed
// grammar.
func NewParser(ga *grammar.Analysis, opts ...Option) *Parser {
	p := &Parser{
		ga:                ga,
		states:            make([]*iteratable.Set[grammar.Item], 1, 512),
		tokens:            make([]yaep.Token, 1, 512),
		backlinks:         make(map[string]grammar.Item),
		mode:              optionStoreTokens | optionLeo,
		maxErrorTokens:    3,
		maxRecoveryInsert: 3,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.hasmode(optionLeo) {
		p.leo = newLeoTable()
	}
	return p
}

type inputSymbol struct {
	tokval int
	token  yaep.Token
	span   yaep.Span
}

// Parse recognizes the token stream scan produces against the parser's
// grammar, invoking listener for semantic actions during forest
// construction (if GenerateTree was requested). It returns true if the
// input was accepted.
func (p *Parser) Parse(scan scanner.Tokenizer, listener Listener) (accept bool, err error) {
	p.Clear()
	if p.scan = scan; scan == nil {
		e := fmt.Errorf("earley parser needs a valid scanner, got nil")
		return false, e
	}
	p.scan.SetErrorHandler(func(e error) { err = e })
	p.forest = nil
	p.recovered = nil
	p.pending = nil
	startItem, _ := grammar.StartItem(p.ga.Grammar().Rule(0))
	p.states[0] = iteratable.NewSet[grammar.Item](0)
	p.states[0].Add(startItem)
	token := p.nextToken()
	for {
		tracer().Debugf("scanner read %v @ %v", token, token.Span())
		x := inputSymbol{int(token.TokType()), token, token.Span()}
		i := p.setupNextState(token)
		p.innerLoop(i, x)
		if p.states[i+1].Empty() && x.tokval != scanner.EOF {
			if p.hasmode(optionErrorRecover) {
				recovered, nextToken, ok := p.recover(i, x)
				if !ok {
					p.Set(yerr.New(yerr.SyntaxError, "unable to resynchronize after error at %v", x.span))
					return false, p.LastError()
				}
				p.recovered = append(p.recovered, recovered)
				token = nextToken
				continue
			}
			p.Set(yerr.New(yerr.SyntaxError, "no viable continuation at %v", x.span))
			return false, p.LastError()
		}
		if x.tokval == scanner.EOF {
			break
		}
		token = p.nextToken()
	}
	if accept = p.checkAccept(); accept && p.hasmode(optionGenerateTree) {
		if e := p.buildTree(listener); e != nil {
			return accept, e
		}
	}
	return accept, nil
}

// RecoveryActions returns the resynchronization actions the last parse
// performed, in order, if ErrorRecovery was enabled.
func (p *Parser) RecoveryActions() []RecoveryAction {
	return p.recovered
}

func (p *Parser) setupNextState(token yaep.Token) uint64 {
	p.states = append(p.states, iteratable.NewSet[grammar.Item](0))
	if p.hasmode(optionStoreTokens) {
		p.tokens = append(p.tokens, token)
	}
	i := p.sc
	p.sc++
	return i
}

func (p *Parser) innerLoop(i uint64, x inputSymbol) {
	S := p.states[i]
	S1 := p.states[i+1]
	S.IterateOnce()
	for S.Next() {
		item := S.Item()
		p.scanItem(S, S1, item, x.tokval)
		p.predict(S, S1, item, i)
		p.complete(S, S1, item, i)
	}
	dumpState(p.states, i)
}

// Scanner: if [A -> ... . a ..., j] is in Si and a == xi+1, add
// [A -> ... a . ..., j] to Si+1.
func (p *Parser) scanItem(S, S1 *iteratable.Set[grammar.Item], item grammar.Item, tokval int) {
	if a := item.PeekSymbol(); a != nil {
		if a.IsTerminal() && a.Value == tokval {
			S1.Add(item.Advance())
		}
	}
}

// Predictor: if [A -> ... . B ..., j] is in Si, add [B -> . alpha, i] to
// Si for all rules B -> alpha; if B is nullable also add
// [A -> ... B . ..., j].
func (p *Parser) predict(S, S1 *iteratable.Set[grammar.Item], item grammar.Item, i uint64) {
	b := item.PeekSymbol()
	if b == nil || b.IsTerminal() {
		return
	}
	startItems := p.ga.Grammar().FindNonTermRules(b, true)
	startItems.Each(func(startitem grammar.Item) {
		startitem.Origin = i
		S.Add(startitem)
	})
	if p.ga.DerivesEpsilon(b) {
		S.Add(item.Advance())
	}
}

// Completer: if [A -> ... ., j] is in Si, add [B -> ... A . ..., k] to
// Si for all items [B -> ... . A ..., k] in Sj. When Leo's optimization
// is enabled and the completed symbol has a deterministic reduction
// path, a single cached Leo item is used instead of re-scanning Sj.
func (p *Parser) complete(S, S1 *iteratable.Set[grammar.Item], item grammar.Item, i uint64) {
	if item.PeekSymbol() != nil {
		return
	}
	a, j := item.Rule().LHS, item.Origin
	useLeo := p.hasmode(optionLeo) && p.ga.DeterministicReductionPath(a) && j < i

	if useLeo {
		if leo, ok := p.leo.lookup(j, a); ok {
			p.recordBacklink(leo.item, i, item)
			S.Add(leo.item)
			return
		}
	}

	sj := p.states[j]
	r := sj.Copy().Subset(func(jtem grammar.Item) bool {
		return jtem.PeekSymbol() == a
	})
	var sole grammar.Item
	soleCount := 0
	r.Each(func(jtem grammar.Item) {
		jadv := jtem.Advance()
		if jadv == grammar.NullItem {
			return
		}
		if jadv.PeekSymbol() == nil {
			p.recordBacklink(jadv, i, item)
		}
		S.Add(jadv)
		sole, soleCount = jtem, soleCount+1
	})
	if useLeo && soleCount == 1 && sole.PenultimateItem() {
		// sole is the only item in Sj waiting on a, and a is its last
		// symbol: cache the topmost item of the chain it belongs to.
		top := sole.Advance()
		if up, ok := p.leo.lookup(sole.Origin, sole.Rule().LHS); ok {
			top = up.item
		}
		p.leo.install(j, a, top)
	}
}

func (p *Parser) recordBacklink(completedAdvance grammar.Item, stateIdx uint64, completedBy grammar.Item) {
	h := hash(completedAdvance, stateIdx)
	p.backlinks[h] = completedBy
}

// checkAccept searches the final state for an item completing the
// grammar's start rule.
func (p *Parser) checkAccept() bool {
	dumpState(p.states, p.sc)
	S := p.states[p.sc]
	S.IterateOnce()
	acc := false
	for S.Next() {
		item := S.Item()
		if item.PeekSymbol() == nil && item.Rule().LHS == p.ga.Grammar().StartSymbol() {
			tracer().Debugf("ACCEPT: %s", item)
			acc = true
		}
	}
	return acc
}

// ParseForest returns the parse forest for the last successful Parse
// run, if GenerateTree was requested.
func (p *Parser) ParseForest() *sppf.Forest {
	return p.forest
}

func (p *Parser) buildTree(listener Listener) error {
	var builder *TreeBuilder
	if p.maxForestNodes > 0 {
		builder = NewBoundedTreeBuilder(p.ga.Grammar(), listener, p.maxForestNodes, p.maxForestNodes)
	} else {
		builder = NewTreeBuilder(p.ga.Grammar(), listener)
	}
	builder.Forest().SetStartSymbol(p.ga.Grammar().StartSymbol())
	root := p.WalkDerivation(builder)
	if root == nil {
		return fmt.Errorf("returned parse forest is empty")
	}
	if sn, _ := root.Value.(*sppf.SymbolNode); sn == nil {
		if e := builder.Forest().LastError(); e != nil {
			p.Set(e)
			return e
		}
	}
	if root.Symbol().Name != p.ga.Grammar().StartSymbol().Name {
		p.forest = nil
		return fmt.Errorf("expected root node of forest to be start symbol, got %v", root.Symbol())
	}
	p.forest = builder.Forest()
	if p.hasmode(optionOneParse) {
		p.pruner = sppf.NewMinCostPruner()
	} else {
		p.pruner = sppf.DontCarePruner{}
	}
	return nil
}

// Pruner returns the disambiguation strategy the last successful parse
// selected: a cost-based pruner collapsing every ambiguity down to its
// cheapest derivation if OneParse/CostEnabled was set, or a pruner that
// leaves every alternative live otherwise. Pass it to sppf.TopDown or
// sppf.NewCursor to walk ParseForest().
func (p *Parser) Pruner() sppf.Pruner {
	if p.pruner == nil {
		return sppf.DontCarePruner{}
	}
	return p.pruner
}

func hash(i grammar.Item, stateno uint64) string {
	h, err := structhash.Hash(struct {
		Rule   int
		Dot    int
		Origin uint64
		State  uint64
	}{
		Rule:   i.Rule().Serial,
		Dot:    i.Dot(),
		Origin: i.Origin,
		State:  stateno,
	}, 1)
	if err != nil {
		panic(err)
	}
	return h
}
