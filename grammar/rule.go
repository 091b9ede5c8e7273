package grammar

// TranslationElem is one entry of a rule's translation template (§4.3):
// either a literal constant passed through unchanged, or a reference to
// a position within the rule's RHS decomposition. Build one with Const
// or Ref rather than the zero value.
type TranslationElem struct {
	position int
	constant interface{}
	isConst  bool
}

// Const creates a translation element that carries a literal value
// through to the abstract node's child list unchanged.
func Const(v interface{}) TranslationElem {
	return TranslationElem{constant: v, isConst: true}
}

// Ref creates a translation element referencing position pos (0-based)
// of the rule's RHS decomposition.
func Ref(pos int) TranslationElem {
	return TranslationElem{position: pos}
}

// IsConstant reports whether e carries a literal constant rather than a
// position reference.
func (e TranslationElem) IsConstant() bool {
	return e.isConst
}

// Constant returns the literal value e carries. Only meaningful when
// IsConstant() is true.
func (e TranslationElem) Constant() interface{} {
	return e.constant
}

// Position returns the RHS index e refers to. Only meaningful when
// IsConstant() is false.
func (e TranslationElem) Position() int {
	return e.position
}

// Translation is a rule's semantic-action template (§3, §4.3): an
// abstract-node name (absent means pass-through) plus an ordered list
// of elements, each either a constant or a reference to a position
// within the rule's RHS. §4.8 projects this template over a rule's
// decomposition when an abstract node is produced.
type Translation struct {
	AnodeName string
	Elems     []TranslationElem
}

// IsZero reports whether t carries no explicit translation template, in
// which case the forest builder passes the decomposition through
// unchanged.
func (t Translation) IsZero() bool {
	return t.AnodeName == "" && len(t.Elems) == 0
}

// Rule is a single production LHS → RHS, with a serial id assigned in
// declaration order, a translation template for semantic actions, and a
// cost used by the forest builder's disambiguation (§4.8): among
// competing derivations of the same span, the one with the lower summed
// rule cost wins.
type Rule struct {
	Serial      int
	LHS         *Symbol
	rhs         []*Symbol
	Cost        int
	Translation Translation
}

// RHS returns the rule's right-hand side symbols.
func (r *Rule) RHS() []*Symbol {
	return r.rhs
}

// IsEpsilon reports whether this rule has an empty right-hand side.
func (r *Rule) IsEpsilon() bool {
	return len(r.rhs) == 0
}

func (r *Rule) String() string {
	s := r.LHS.Name + " ::="
	for _, sym := range r.rhs {
		s += " " + sym.Name
	}
	return s
}
