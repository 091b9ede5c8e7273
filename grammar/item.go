package grammar

// Item is a dotted rule (a "situation" in Earley terminology): a Rule
// together with a dot position marking how much of the RHS has been
// recognized, and an Origin pointing back to the Earley set in which
// the item's recognition began. Item is a small comparable value type
// so it can live directly in an iteratable.Set[Item] and be copied
// freely, matching how the engine mutates Origin on a freshly started
// item before inserting it into a set.
type Item struct {
	rule   *Rule
	dot    int
	Origin uint64
}

// NullItem is the zero-value sentinel returned by Advance when no
// further advance is possible (dot already at the end of the RHS).
var NullItem = Item{}

// StartItem creates the item [LHS → •RHS, 0] for rule r, together with
// the first symbol after the dot (nil if r is an ε-rule).
func StartItem(r *Rule) (Item, *Symbol) {
	it := Item{rule: r}
	return it, it.PeekSymbol()
}

// Rule returns the underlying grammar rule.
func (i Item) Rule() *Rule {
	return i.rule
}

// PeekSymbol returns the RHS symbol immediately following the dot, or
// nil if the dot has reached the end of the RHS (the item "completes").
func (i Item) PeekSymbol() *Symbol {
	rhs := i.rule.RHS()
	if i.dot >= len(rhs) {
		return nil
	}
	return rhs[i.dot]
}

// Advance returns the item with the dot moved one position to the
// right. It returns NullItem if the dot is already at the end.
func (i Item) Advance() Item {
	if i.dot >= len(i.rule.RHS()) {
		return NullItem
	}
	return Item{rule: i.rule, dot: i.dot + 1, Origin: i.Origin}
}

// Dot returns the item's dot position.
func (i Item) Dot() int {
	return i.dot
}

// Prefix returns the RHS symbols already consumed (left of the dot).
func (i Item) Prefix() []*Symbol {
	return i.rule.RHS()[:i.dot]
}

// IsComplete reports whether the dot has reached the end of the RHS.
func (i Item) IsComplete() bool {
	return i.dot >= len(i.rule.RHS())
}

// PenultimateItem reports whether this item, once advanced, completes
// the rule — i.e. exactly one symbol remains after the dot. The Leo
// optimizer uses this to recognize "final transitions" of a right
// recursion chain.
func (i Item) PenultimateItem() bool {
	return i.dot == len(i.rule.RHS())-1
}

func (i Item) String() string {
	rhs := i.rule.RHS()
	s := i.rule.LHS.Name + " ::="
	for k, sym := range rhs {
		if k == i.dot {
			s += " •"
		}
		s += " " + sym.Name
	}
	if i.dot == len(rhs) {
		s += " •"
	}
	return s
}
