/*
Package grammar implements the grammar data model and static analyzer:
interned terminal and non-terminal symbols, rules with an attached cost
and translation template, a fluent grammar builder, and an analyzer that
computes FIRST/FOLLOW sets, nullability, loop detection and the
deterministic-reduction-path predicate the Earley engine's Leo
optimization relies on to detect deterministic right-recursion chains.
Items (dotted rules) are created on demand from the rules; no LR(0)
situation automaton or table of situations is built.

The shape of this package — a builder that accumulates LHS/RHS
fluently, finalized into an immutable Grammar, then handed to a
separate analysis step — mirrors package lr of the repository this
module grew out of; what changes is what the analyzer computes and how
failures are reported (see package yerr).
*/
package grammar

import "fmt"

// Symbol is an interned grammar symbol, either a terminal (carrying a
// token code supplied by the host scanner) or a non-terminal.
type Symbol struct {
	Name     string
	Value    int // terminal token code; for non-terminals a synthesized negative id
	terminal bool
}

// IsTerminal reports whether the symbol is a terminal.
func (s *Symbol) IsTerminal() bool {
	return s != nil && s.terminal
}

func (s *Symbol) String() string {
	if s == nil {
		return "<nil symbol>"
	}
	return s.Name
}

// EpsilonSymbol marks an ε-reduction's synthesized RHS symbol; it never
// appears as a regular, interned grammar symbol.
var EpsilonSymbol = &Symbol{Name: "ε", Value: -2, terminal: true}

// eofCode and eofName identify the end-of-input terminal; Grammar()
// interns it for the synthesized start rule, and EOF() for a rule that
// ends in it.
const eofCode = -1
const eofName = "#eof"

func newNonTerminal(name string, id int) *Symbol {
	return &Symbol{Name: name, Value: -(id + 1), terminal: false}
}

func newTerminal(name string, code int) *Symbol {
	return &Symbol{Name: name, Value: code, terminal: true}
}

func (s *Symbol) GoString() string {
	if s.IsTerminal() {
		return fmt.Sprintf("T(%s=%d)", s.Name, s.Value)
	}
	return fmt.Sprintf("N(%s)", s.Name)
}
