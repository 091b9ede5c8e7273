/*
Package yerr defines the error taxonomy and per-instance error context
shared across the grammar, earley and sppf packages.

The classic YAEP-style API returns an integer status from every public
operation and stashes a human-readable message in a thread-local slot.
This is reshaped for Go as a typed error (Code, satisfying the error
interface) plus a Context value embedded by the owning instance
(grammar.Grammar, earley.Parser) rather than kept in a package-global:
the error state is scoped to the handle that produced it, never
process-global, so that independent grammars/parses never contend over
shared state.
*/
package yerr

import "fmt"

// Code is the error-code taxonomy. Zero is reserved for "no error".
type Code int

const (
	// OK indicates success; never wrapped in an *Error.
	OK Code = iota
	// NoMemory is returned when an internal allocator failed to satisfy
	// a request. Callers should abandon the current parse.
	NoMemory
	// UndefinedSymbol is returned when a rule references a non-terminal
	// that no rule defines.
	UndefinedSymbol
	// InvalidValue is returned for malformed interning requests, such as
	// a terminal name already bound to a different code.
	InvalidValue
	// RepeatedTerminalCode is returned when two distinct terminal names
	// are interned with the same numeric code.
	RepeatedTerminalCode
	// RepeatedRule is returned when an identical rule (same LHS, same
	// RHS sequence) is added twice.
	RepeatedRule
	// DescriptionSyntax is reserved for hosts that layer a textual
	// grammar description on top of this package; the core never
	// produces it itself.
	DescriptionSyntax
	// LoopsGrammar is returned by grammar finalization when the grammar
	// contains a nontrivial A ⇒+ A derivation and loops were not opted
	// into.
	LoopsGrammar
	// SyntaxError is returned by a parse that could not recognize the
	// input, after error recovery (if enabled) was exhausted.
	SyntaxError
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case NoMemory:
		return "NO_MEMORY"
	case UndefinedSymbol:
		return "UNDEFINED_SYMBOL"
	case InvalidValue:
		return "INVALID_VALUE"
	case RepeatedTerminalCode:
		return "REPEATED_TERMINAL_CODE"
	case RepeatedRule:
		return "REPEATED_RULE"
	case DescriptionSyntax:
		return "DESCRIPTION_SYNTAX"
	case LoopsGrammar:
		return "LOOPS_GRAMMAR"
	case SyntaxError:
		return "SYNTAX_ERROR"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error is the concrete error type returned by this module's public
// operations. It carries a Code for callers that branch on status plus
// a human-readable Message for diagnostics.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to a wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// New creates an *Error with the given code and formatted message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given code, message and a wrapped cause.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Context is a per-instance error context. Every public operation on the
// type embedding a Context should clear it on entry and set it on
// failure: (1) clear context on entry, (2) set context on failure,
// (3) return a non-zero error code.
type Context struct {
	last *Error
}

// Clear resets the context. Call at the start of every public operation.
func (c *Context) Clear() { c.last = nil }

// Set records err as the last error. A nil err clears the context.
func (c *Context) Set(err *Error) { c.last = err }

// LastError returns the last recorded error, or nil if the last public
// operation succeeded.
func (c *Context) LastError() *Error { return c.last }

// LastErrorCode returns the code of the last recorded error, or OK.
func (c *Context) LastErrorCode() Code {
	if c.last == nil {
		return OK
	}
	return c.last.Code
}

// LastErrorMessage returns the message of the last recorded error, or
// the empty string.
func (c *Context) LastErrorMessage() string {
	if c.last == nil {
		return ""
	}
	return c.last.Message
}
