/*
Package yaep provides a generalized Earley parser: it accepts arbitrary
context-free grammars, including ambiguous and left- or right-recursive
ones, and produces a shared-packed parse forest for a successful parse.

The package itself only carries the host-facing token/span vocabulary
shared by every sub-package (grammar, earley, sppf, scanner). The
grammar data model lives in package grammar, the recognizer and the
Leo right-recursion optimization live in package earley, and the parse
forest lives in package sppf.

A typical embedding:

	b := grammar.NewBuilder("Expr")
	b.LHS("Sum").N("Sum").T("+", '+').N("Product").End()
	b.LHS("Sum").N("Product").End()
	// ... more rules ...
	g, err := b.Grammar()
	an, err := grammar.Analyze(g, grammar.WithLookahead(grammar.LookaheadStatic))

	p := earley.NewParser(an, earley.GenerateTree(true))
	accept, err := p.Parse(scanner.GoTokenizer("input", reader), nil)
	forest := p.ParseForest()
*/
package yaep

import "fmt"

// TokType is a category type for a Token. Applications define their own
// constants; the zero value has no reserved meaning except where a
// scanner documents one (see package scanner's EOF).
type TokType int

// TokTypeStringer lets a scanner/grammar pairing render a TokType for
// diagnostics and trace output.
type TokTypeStringer func(TokType) string

// Token is produced by a host-supplied scanner (see package scanner) and
// consumed by the Earley engine (see package earley). It reflects a
// terminal matched in the input stream.
type Token interface {
	TokType() TokType
	Lexeme() string
	Value() interface{}
	Span() Span
}

// TokenRetriever retrieves a previously-scanned token by input position,
// for hosts and listeners that need random access to matched tokens.
type TokenRetriever func(uint64) Token

// Span captures an interval of input token positions. It denotes the
// start position and the position just behind the end, so Len() == 0
// for an empty (nullable) derivation.
type Span [2]uint64

// From returns the start of the span.
func (s Span) From() uint64 { return s[0] }

// To returns the position just behind the end of the span.
func (s Span) To() uint64 { return s[1] }

// Len returns the number of positions covered by the span.
func (s Span) Len() uint64 { return s[1] - s[0] }

// IsNull reports whether the span is the zero value.
func (s Span) IsNull() bool { return s == Span{} }

// Extend grows s to also cover other.
func (s Span) Extend(other Span) Span {
	if other[0] < s[0] {
		s[0] = other[0]
	}
	if other[1] > s[1] {
		s[1] = other[1]
	}
	return s
}

func (s Span) String() string {
	return fmt.Sprintf("(%d…%d)", s[0], s[1])
}
