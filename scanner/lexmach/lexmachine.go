/*
Package lexmach adapts timtadh/lexmachine as an alternative scanner
backend for hosts that need a real DFA lexer (keywords, literals,
longest-match rules) instead of the default text/scanner wrapper.
*/
package lexmach

import (
	"strings"

	"github.com/npillmayer/schuko/tracing"

	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"

	"github.com/earleyforge/yaep"
	"github.com/earleyforge/yaep/scanner"
)

// tracer traces with key 'yaep.scanner'.
func tracer() tracing.Trace {
	return tracing.Select("yaep.scanner")
}

// LMAdapter wraps a compiled lexmachine DFA as a scanner factory.
type LMAdapter struct {
	Lexer *lexmachine.Lexer
}

// NewLMAdapter creates a new lexmachine adapter from a caller-supplied
// init function (which may add its own patterns/actions), a list of
// single-character literals, a list of keywords, and a map from token
// name to the numeric token code the grammar was built against.
func NewLMAdapter(init func(*lexmachine.Lexer), literals []string, keywords []string, tokenIds map[string]int) (*LMAdapter, error) {
	adapter := &LMAdapter{Lexer: lexmachine.NewLexer()}
	init(adapter.Lexer)
	for _, lit := range literals {
		r := "\\" + strings.Join(strings.Split(lit, ""), "\\")
		adapter.Lexer.Add([]byte(r), MakeToken(lit, tokenIds[lit]))
	}
	for _, name := range keywords {
		adapter.Lexer.Add([]byte(strings.ToLower(name)), MakeToken(name, tokenIds[name]))
	}
	if err := adapter.Lexer.Compile(); err != nil {
		tracer().Errorf("error compiling DFA: %v", err)
		return nil, err
	}
	return adapter, nil
}

// Scanner creates a Tokenizer for a given input string.
func (lm *LMAdapter) Scanner(input string) (*LMScanner, error) {
	s, err := lm.Lexer.Scanner([]byte(input))
	if err != nil {
		return &LMScanner{}, err
	}
	return &LMScanner{scanner: s, Error: logError}, nil
}

// LMScanner implements scanner.Tokenizer over a compiled lexmachine DFA.
type LMScanner struct {
	scanner *lexmachine.Scanner
	Error   func(error)
}

var _ scanner.Tokenizer = (*LMScanner)(nil)

// SetErrorHandler sets an error handler for the scanner.
func (lms *LMScanner) SetErrorHandler(h func(error)) {
	if h == nil {
		lms.Error = logError
		return
	}
	lms.Error = h
}

func logError(e error) {
	tracer().Errorf("scanner error: %s", e.Error())
}

// NextToken is part of the scanner.Tokenizer interface.
func (lms *LMScanner) NextToken() yaep.Token {
	tok, err, eof := lms.scanner.Next()
	for err != nil {
		lms.Error(err)
		if ui, is := err.(*machines.UnconsumedInput); is {
			lms.scanner.TC = ui.FailTC
		}
		tok, err, eof = lms.scanner.Next()
	}
	if eof {
		return scanner.MakeDefaultToken(scanner.EOF, "", yaep.Span{0, 0})
	}
	token := tok.(*lexmachine.Token)
	return scanner.MakeDefaultToken(
		yaep.TokType(token.Type),
		string(token.Lexeme),
		yaep.Span{uint64(token.StartColumn), uint64(token.EndColumn)},
	)
}

// Skip is a pre-defined action which ignores the scanned match.
func Skip(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
	return nil, nil
}

// MakeToken is a pre-defined action which wraps a scanned match into a
// token carrying the given numeric id.
func MakeToken(name string, id int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(id, string(m.Bytes), m), nil
	}
}
