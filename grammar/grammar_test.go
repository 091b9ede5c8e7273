package grammar

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"github.com/earleyforge/yaep/yerr"
)

func setupTest(t *testing.T) func() {
	return gotestingadapter.QuickConfig(t, "yaep.grammar")
}

// makeArithGrammar builds the S1 arithmetic grammar from the spec's
// end-to-end scenarios: E -> E '+' T | T; T -> T '*' F | F;
// F -> '(' E ')' | id.
func makeArithGrammar(t *testing.T) *Grammar {
	b := NewBuilder("Arith")
	b.LHS("E").N("E").T("+", int('+')).N("T").End()
	b.LHS("E").N("T").End()
	b.LHS("T").N("T").T("*", int('*')).N("F").End()
	b.LHS("T").N("F").End()
	b.LHS("F").T("(", int('(')).N("E").T(")", int(')')).End()
	b.LHS("F").T("id", 256).End()
	g, err := b.Grammar()
	if err != nil {
		t.Fatalf("building arithmetic grammar: %v", err)
	}
	return g
}

func asYerr(t *testing.T, err error) *yerr.Error {
	t.Helper()
	e, ok := err.(*yerr.Error)
	if !ok {
		t.Fatalf("expected a *yerr.Error, got %T: %v", err, err)
	}
	return e
}

func TestSymbolInterningIsIdempotent(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	b := NewBuilder("G")
	b.LHS("A").N("B").End()
	b.LHS("C").N("B").End() // "B" interned a second time, as a rule RHS
	g, err := b.Grammar()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Rule(1) is "A -> B" (rule 0 is the synthesized start rule), and
	// Rule(2) is "C -> B": both must reference the identical *Symbol.
	if g.Rule(1).RHS()[0] != g.Rule(2).RHS()[0] {
		t.Errorf("expected interning 'B' twice to return the same symbol")
	}
	if g.Symbol("B") != g.Rule(1).RHS()[0] {
		t.Errorf("expected Grammar.Symbol to return the interned symbol")
	}
}

func TestRepeatedTerminalCodeIsRejected(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	b := NewBuilder("G")
	b.LHS("A").T("plus", int('+')).End()
	b.LHS("A").T("also-plus", int('+')).End()
	_, err := b.Grammar()
	if e := asYerr(t, err); e.Code != yerr.RepeatedTerminalCode {
		t.Errorf("expected RepeatedTerminalCode, got %v", e.Code)
	}
}

func TestRepeatedRuleIsRejected(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	b := NewBuilder("G")
	b.LHS("A").T("x", int('x')).End()
	b.LHS("A").T("x", int('x')).End()
	_, err := b.Grammar()
	if e := asYerr(t, err); e.Code != yerr.RepeatedRule {
		t.Errorf("expected RepeatedRule, got %v", e.Code)
	}
}

func TestEmptyGrammarIsRejected(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	b := NewBuilder("Empty")
	if _, err := b.Grammar(); err == nil {
		t.Fatalf("expected an error building a grammar with no rules")
	}
}

func TestTranslationTemplateRejectsOutOfRangePosition(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	b := NewBuilder("G")
	// RHS is just ["z"], a single position (0); Ref(2) is out of range.
	b.LHS("A").T("z", int('z')).Translate("anode", Ref(2)).End()
	_, err := b.Grammar()
	if e := asYerr(t, err); e.Code != yerr.InvalidValue {
		t.Errorf("expected InvalidValue for an out-of-range translation position, got %v", e.Code)
	}
}

func TestTranslationTemplateAcceptsConstantsAndPositions(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	b := NewBuilder("G")
	b.LHS("A").T("x", int('x')).N("B").Translate("anode", Const("lit"), Ref(1), Ref(0)).End()
	b.LHS("B").T("y", int('y')).End()
	g, err := b.Grammar()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := g.Rule(1) // rule 0 is the synthesized start rule
	if r.Translation.AnodeName != "anode" {
		t.Errorf("expected anode name %q, got %q", "anode", r.Translation.AnodeName)
	}
	if len(r.Translation.Elems) != 3 {
		t.Fatalf("expected 3 translation elements, got %d", len(r.Translation.Elems))
	}
	if !r.Translation.Elems[0].IsConstant() || r.Translation.Elems[0].Constant() != "lit" {
		t.Errorf("expected element 0 to be the constant %q", "lit")
	}
	if r.Translation.Elems[1].IsConstant() || r.Translation.Elems[1].Position() != 1 {
		t.Errorf("expected element 1 to reference RHS position 1")
	}
}

func TestStartRuleSynthesis(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	g := makeArithGrammar(t)
	if g.Rule(0).LHS.Name != "E'" {
		t.Errorf("expected synthesized start rule LHS to be E', got %s", g.Rule(0).LHS.Name)
	}
	if g.StartSymbol() != g.Rule(0).LHS {
		t.Errorf("StartSymbol() should match synthesized rule 0's LHS")
	}
	rhs := g.Rule(0).RHS()
	if len(rhs) != 2 || rhs[0].Name != "E" || !rhs[1].IsTerminal() {
		t.Errorf("expected start rule E' -> E #eof, got %v", g.Rule(0))
	}
}
