/*
Package scanner defines the Tokenizer interface the Earley engine reads
its input from, plus two ready-to-use implementations: a thin wrapper
over the Go standard library's text/scanner, and a lexmachine-backed DFA
scanner in the lexmach subpackage.
*/
package scanner

import (
	"fmt"
	"io"
	"text/scanner"

	"github.com/npillmayer/schuko/tracing"

	"github.com/earleyforge/yaep"
)

// tracer traces with key 'yaep.scanner'.
func tracer() tracing.Trace {
	return tracing.Select("yaep.scanner")
}

// EOF is identical to text/scanner.EOF, replicated here for convenience.
const (
	EOF       = scanner.EOF
	Ident     = scanner.Ident
	Int       = scanner.Int
	Float     = scanner.Float
	Char      = scanner.Char
	String    = scanner.String
	RawString = scanner.RawString
	Comment   = scanner.Comment
)

// Tokenizer delivers one token at a time to the parser.
type Tokenizer interface {
	NextToken() yaep.Token
	SetErrorHandler(func(error))
}

// DefaultTokenizer is a default implementation, backed by text/scanner.Scanner.
// Create one with GoTokenizer.
type DefaultTokenizer struct {
	scanner.Scanner
	lastToken    rune
	Error        func(error)
	unifyStrings bool
}

var _ Tokenizer = (*DefaultTokenizer)(nil)

func logError(e error) {
	tracer().Errorf("scanner error: %s", e.Error())
}

// GoTokenizer creates a scanner/tokenizer accepting tokens similar to
// the Go language.
func GoTokenizer(sourceID string, input io.Reader, opts ...Option) *DefaultTokenizer {
	t := &DefaultTokenizer{}
	t.Error = logError
	t.Init(input)
	t.Filename = sourceID
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetErrorHandler sets an error handler for the scanner.
func (t *DefaultTokenizer) SetErrorHandler(h func(error)) {
	if h == nil {
		t.Error = logError
		return
	}
	t.Error = h
}

// NextToken is part of the Tokenizer interface.
func (t *DefaultTokenizer) NextToken() yaep.Token {
	t.lastToken = t.Scan()
	if t.lastToken == scanner.EOF {
		tracer().Debugf("DefaultTokenizer reached end of input")
	}
	if t.unifyStrings &&
		(t.lastToken == scanner.RawString || t.lastToken == scanner.Char) {
		t.lastToken = scanner.String
	}
	return DefaultToken{
		kind:   yaep.TokType(t.lastToken),
		lexeme: t.TokenText(),
		span:   yaep.Span{uint64(t.Position.Offset), uint64(t.Pos().Offset)},
	}
}

// DefaultToken is an unsophisticated token type, used as the default
// for both the Go tokenizer and the lexmachine scanner adapter.
type DefaultToken struct {
	kind   yaep.TokType
	lexeme string
	Val    interface{}
	span   yaep.Span
}

// MakeDefaultToken constructs a DefaultToken directly, for scanners that
// don't derive from DefaultTokenizer.
func MakeDefaultToken(typ yaep.TokType, lexeme string, span yaep.Span) DefaultToken {
	return DefaultToken{kind: typ, lexeme: lexeme, span: span}
}

func (t DefaultToken) TokType() yaep.TokType { return t.kind }
func (t DefaultToken) Value() interface{}    { return t.Val }
func (t DefaultToken) Lexeme() string        { return t.lexeme }
func (t DefaultToken) Span() yaep.Span       { return t.span }

// --- Options -----------------------------------------------------------

// Option configures a DefaultTokenizer.
type Option func(t *DefaultTokenizer)

const (
	optionSkipComments uint = 1 << 1
)

// SkipComments sets or clears the SkipComments scanner mode flag.
func SkipComments(b bool) Option {
	return func(t *DefaultTokenizer) {
		if b {
			t.Mode |= scanner.SkipComments
		} else {
			t.Mode &^= scanner.SkipComments
		}
	}
}

// UnifyStrings treats raw strings and single chars as strings.
func UnifyStrings(b bool) Option {
	return func(t *DefaultTokenizer) { t.unifyStrings = b }
}

// Lexeme is a helper to stringify a token's visual representation.
func Lexeme(token interface{}) string {
	switch t := token.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
