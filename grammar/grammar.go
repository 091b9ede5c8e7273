package grammar

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/earleyforge/yaep/iteratable"
	"github.com/earleyforge/yaep/yerr"
)

// Grammar is an immutable, finalized set of rules over interned
// terminal and non-terminal symbols. Construct one with NewBuilder.
//
// A Grammar is safe for concurrent read-only use (parses, FIRST/FOLLOW
// queries) once built; it is never safe to mutate concurrently, and the
// builder that produces it is not safe for concurrent use at all.
type Grammar struct {
	ID            uuid.UUID
	Name          string
	symbols       map[string]*Symbol
	terminalCodes map[int]*Symbol
	rules         []*Rule
	byLHS         map[*Symbol][]int // rule indices grouped by LHS, declaration order preserved
	start         *Symbol           // synthesized S'
	yerr.Context
}

// Rule returns the rule with the given serial id.
func (g *Grammar) Rule(serial int) *Rule {
	return g.rules[serial]
}

// RuleCount returns the number of rules in the grammar, including the
// synthesized start rule.
func (g *Grammar) RuleCount() int {
	return len(g.rules)
}

// StartSymbol returns the synthesized S' symbol wrapping the grammar's
// original start symbol.
func (g *Grammar) StartSymbol() *Symbol {
	return g.start
}

// Symbol looks up an interned symbol (terminal or non-terminal) by name.
func (g *Grammar) Symbol(name string) *Symbol {
	return g.symbols[name]
}

// TerminalByCode looks up the terminal interned under a given token code.
func (g *Grammar) TerminalByCode(code int) *Symbol {
	return g.terminalCodes[code]
}

// EachNonTerminal calls f once per interned non-terminal, in no
// particular order, and visits all of them — it exists so callers can reuse the same mapper shape used for FIRST/FOLLOW
// dumps without building an intermediate slice.
func (g *Grammar) EachNonTerminal(f func(name string, sym *Symbol)) {
	for name, sym := range g.symbols {
		if !sym.IsTerminal() {
			f(name, sym)
		}
	}
}

// FindNonTermRules returns the set of start items [B → •α, 0] for every
// rule with LHS B. If asItems is false, the returned set is empty; the
// flag is kept for symmetry with prior callers, where a non-item variant
// was never actually exercised.
func (g *Grammar) FindNonTermRules(b *Symbol, asItems bool) *iteratable.Set[Item] {
	out := iteratable.NewSet[Item](0)
	if b == nil || b.IsTerminal() || !asItems {
		return out
	}
	for _, ruleIdx := range g.byLHS[b] {
		it, _ := StartItem(g.rules[ruleIdx])
		out.Add(it)
	}
	return out
}

// Dump writes a human-readable listing of the grammar's rules.
func (g *Grammar) Dump() string {
	s := ""
	for _, r := range g.rules {
		s += fmt.Sprintf("%d: %s\n", r.Serial, r)
	}
	return s
}

// --- Builder ----------------------------------------------------------

// GrammarBuilder accumulates rules fluently: b.LHS("A").N("B").T("c",
// code).End(). It is not safe for concurrent use.
type GrammarBuilder struct {
	name          string
	symbols       map[string]*Symbol
	terminalCodes map[int]*Symbol
	rules         []*Rule
	nextNonTerm   int
	yerr.Context
}

// NewBuilder creates an empty grammar builder named name. The name is
// carried through to the finished Grammar for diagnostics only.
func NewBuilder(name string) *GrammarBuilder {
	return &GrammarBuilder{
		name:          name,
		symbols:       make(map[string]*Symbol),
		terminalCodes: make(map[int]*Symbol),
	}
}

func (b *GrammarBuilder) internNonTerminal(name string) *Symbol {
	if sym, ok := b.symbols[name]; ok {
		return sym
	}
	sym := newNonTerminal(name, b.nextNonTerm)
	b.nextNonTerm++
	b.symbols[name] = sym
	return sym
}

// internTerminal interns (name, code). Re-interning the same name with
// the same code is a no-op; a clashing code bound to a different name
// records RepeatedTerminalCode, and binding the same name to a second
// code records InvalidValue.
func (b *GrammarBuilder) internTerminal(name string, code int) *Symbol {
	if sym, ok := b.symbols[name]; ok {
		if !sym.IsTerminal() {
			b.Set(yerr.New(yerr.InvalidValue, "symbol %q already interned as non-terminal", name))
			return sym
		}
		if sym.Value != code {
			b.Set(yerr.New(yerr.InvalidValue, "terminal %q already bound to code %d, got %d", name, sym.Value, code))
		}
		return sym
	}
	if existing, ok := b.terminalCodes[code]; ok {
		b.Set(yerr.New(yerr.RepeatedTerminalCode, "terminal code %d already bound to %q, cannot rebind to %q", code, existing.Name, name))
		return existing
	}
	sym := newTerminal(name, code)
	b.symbols[name] = sym
	b.terminalCodes[code] = sym
	return sym
}

// LHS starts a new rule with the given left-hand-side non-terminal.
func (b *GrammarBuilder) LHS(name string) *RuleBuilder {
	b.Clear()
	return &RuleBuilder{b: b, lhs: b.internNonTerminal(name)}
}

// RuleBuilder accumulates the right-hand side of a single rule.
type RuleBuilder struct {
	b           *GrammarBuilder
	lhs         *Symbol
	rhs         []*Symbol
	cost        int
	translation Translation
}

// N appends a non-terminal to the rule's right-hand side.
func (rb *RuleBuilder) N(name string) *RuleBuilder {
	rb.rhs = append(rb.rhs, rb.b.internNonTerminal(name))
	return rb
}

// T appends a terminal, identified by name and by the numeric token
// code the host scanner will report for it, to the right-hand side.
func (rb *RuleBuilder) T(name string, code int) *RuleBuilder {
	rb.rhs = append(rb.rhs, rb.b.internTerminal(name, code))
	return rb
}

// Cost sets the rule's cost, used for disambiguation among competing
// derivations (§4.8). Rules default to cost 0.
func (rb *RuleBuilder) Cost(c int) *RuleBuilder {
	rb.cost = c
	return rb
}

// Translate attaches a translation template to the rule under
// construction (§4.3): anode names the abstract node produced when the
// rule is reduced (pass-through if empty), and elems projects the
// rule's RHS decomposition — build each with grammar.Ref(position) or
// grammar.Const(value). The forest builder applies this template when
// the abstract node is produced (§4.8).
func (rb *RuleBuilder) Translate(anode string, elems ...TranslationElem) *RuleBuilder {
	rb.translation = Translation{AnodeName: anode, Elems: elems}
	return rb
}

// End finalizes the current rule, checking for an exact duplicate
// (same LHS and RHS sequence, recorded as RepeatedRule) and appends it
// to the grammar under construction. A rule whose symbols failed to
// intern is not added, so the interning error stays the last error.
func (rb *RuleBuilder) End() *GrammarBuilder {
	if rb.b.LastError() != nil {
		return rb.b
	}
	rb.b.addRule(rb.lhs, rb.rhs, rb.cost, rb.translation)
	return rb.b
}

// Epsilon finalizes the current rule as an ε-production (no RHS).
func (rb *RuleBuilder) Epsilon() *GrammarBuilder {
	rb.rhs = nil
	return rb.End()
}

// EOF appends the interned end-of-input terminal and finalizes the rule.
func (rb *RuleBuilder) EOF() *GrammarBuilder {
	rb.rhs = append(rb.rhs, rb.b.internTerminal(eofName, eofCode))
	return rb.End()
}

func (b *GrammarBuilder) addRule(lhs *Symbol, rhs []*Symbol, cost int, translation Translation) {
	for _, r := range b.rules {
		if r.LHS == lhs && sameRHS(r.RHS(), rhs) {
			b.Set(yerr.New(yerr.RepeatedRule, "rule %s already present", r))
			return
		}
	}
	for _, el := range translation.Elems {
		if !el.IsConstant() && (el.Position() < 0 || el.Position() >= len(rhs)) {
			b.Set(yerr.New(yerr.InvalidValue, "translation for %s references RHS position %d, out of range for RHS of length %d", lhs, el.Position(), len(rhs)))
			return
		}
	}
	r := &Rule{Serial: len(b.rules), LHS: lhs, rhs: rhs, Cost: cost, Translation: translation}
	b.rules = append(b.rules, r)
}

func sameRHS(a, c []*Symbol) bool {
	if len(a) != len(c) {
		return false
	}
	for i := range a {
		if a[i] != c[i] {
			return false
		}
	}
	return true
}

// Grammar finalizes the builder into an immutable Grammar, wrapping the
// declared start symbol (the LHS of the first rule added) in a
// synthesized S' → Start #eof rule: an artificial top-level rule 0 used
// as the accept rule.
func (b *GrammarBuilder) Grammar() (*Grammar, error) {
	if len(b.rules) == 0 {
		err := yerr.New(yerr.InvalidValue, "grammar %q has no rules", b.name)
		b.Set(err)
		return nil, err
	}
	if err := b.LastError(); err != nil {
		return nil, err
	}
	origStart := b.rules[0].LHS
	startSym := &Symbol{Name: origStart.Name + "'", Value: -(b.nextNonTerm + 1)}
	b.symbols[startSym.Name] = startSym
	eof := b.internTerminal(eofName, eofCode)
	startRule := &Rule{Serial: 0, LHS: startSym, rhs: []*Symbol{origStart, eof}}
	rules := make([]*Rule, 0, len(b.rules)+1)
	rules = append(rules, startRule)
	for _, r := range b.rules {
		r.Serial++
		rules = append(rules, r)
	}
	byLHS := make(map[*Symbol][]int)
	for idx, r := range rules {
		byLHS[r.LHS] = append(byLHS[r.LHS], idx)
	}
	g := &Grammar{
		ID:            uuid.New(),
		Name:          b.name,
		symbols:       b.symbols,
		terminalCodes: b.terminalCodes,
		rules:         rules,
		byLHS:         byLHS,
		start:         startSym,
	}
	return g, nil
}
