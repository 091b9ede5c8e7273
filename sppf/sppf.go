/*
Package sppf implements a Shared Packed Parse Forest (SPPF): the parser
output for an ambiguous grammar represented as a shared, packed DAG
rather than a single tree, plus a cursor-based API for walking it and
an optional minimum-cost disambiguation pass that collapses it down to
one parse.

This follows the same symbol-node / RHS-node / or-edge / and-edge
design as the forest this package is modeled on, extended with rule
cost so a host that wants exactly one parse doesn't have to walk
every alternative itself.
*/
package sppf

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'yaep.sppf'.
func tracer() tracing.Trace {
	return tracing.Select("yaep.sppf")
}
