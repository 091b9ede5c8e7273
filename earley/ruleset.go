package earley

import "github.com/earleyforge/yaep/grammar"

// ruleset remembers which rules the derivation walker has already
// chosen for the current span, so an ambiguous self-recursive grammar
// doesn't loop picking the same rule for the same span forever.
type ruleset map[*grammar.Rule]struct{}

var exists = struct{}{}

func (set ruleset) add(r *grammar.Rule) ruleset {
	if set == nil {
		set = ruleset{}
	}
	set[r] = exists
	return set
}

func (set ruleset) contains(r *grammar.Rule) bool {
	if set == nil || r == nil {
		return false
	}
	_, ok := set[r]
	return ok
}
