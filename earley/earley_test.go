package earley

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"github.com/earleyforge/yaep"
	"github.com/earleyforge/yaep/grammar"
	"github.com/earleyforge/yaep/scanner"
	"github.com/earleyforge/yaep/sppf"
)

func setupTest(t *testing.T) func() {
	return gotestingadapter.QuickConfig(t, "yaep.earley")
}

// makeArithGrammar builds the S1 arithmetic grammar from the spec's
// end-to-end scenarios: E -> E '+' T | T; T -> T '*' F | F;
// F -> '(' E ')' | number.
func makeArithGrammar(t *testing.T) *grammar.Analysis {
	b := grammar.NewBuilder("Expressions")
	b.LHS("E").N("E").T("+", int('+')).N("T").End()
	b.LHS("E").N("T").End()
	b.LHS("T").N("T").T("*", int('*')).N("F").End()
	b.LHS("T").N("F").End()
	b.LHS("F").T("(", int('(')).N("E").T(")", int(')')).End()
	b.LHS("F").T("number", scanner.Int).End()
	g, err := b.Grammar()
	if err != nil {
		t.Fatalf("building arithmetic grammar: %v", err)
	}
	ga, err := grammar.Analyze(g)
	if err != nil {
		t.Fatalf("analyzing arithmetic grammar: %v", err)
	}
	return ga
}

func makeArithParser(t *testing.T, input string, opts ...Option) (*Parser, scanner.Tokenizer) {
	ga := makeArithGrammar(t)
	reader := strings.NewReader(input)
	sc := scanner.GoTokenizer(fmt.Sprintf("test input %q", input), reader)
	return NewParser(ga, opts...), sc
}

var arithInputs = []string{
	"1", "1+2", "1*2", "1+2*3", "1*(2+3)", "1+2+3+4", "1*2+3*4",
}

func TestParseAcceptsArithmeticExpressions(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	for _, input := range arithInputs {
		parser, sc := makeArithParser(t, input)
		accept, err := parser.Parse(sc, nil)
		if err != nil {
			t.Errorf("parsing %q: %v", input, err)
		}
		if !accept {
			t.Errorf("expected %q to be accepted", input)
		}
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	parser, sc := makeArithParser(t, "1+*2")
	accept, err := parser.Parse(sc, nil)
	if accept {
		t.Errorf("expected malformed input to be rejected")
	}
	if err == nil {
		t.Errorf("expected a syntax error for malformed input")
	}
}

// --- arithmetic evaluation listener -----------------------------------

type reducer func(rule *grammar.Rule, children []*RuleNode, level int) interface{}

type arithListener struct {
	dispatch map[string]reducer
}

func newArithListener() *arithListener {
	el := &arithListener{}
	el.dispatch = map[string]reducer{
		"E": el.reduceBinary('+'),
		"T": el.reduceBinary('*'),
	}
	return el
}

func (el *arithListener) reduceBinary(op rune) reducer {
	return func(rule *grammar.Rule, children []*RuleNode, level int) interface{} {
		if len(children) == 1 {
			return children[0].Value
		}
		a := children[0].Value.(int)
		b := children[2].Value.(int)
		if op == '+' {
			return a + b
		}
		return a * b
	}
}

func (el *arithListener) Reduce(sym *grammar.Symbol, rule *grammar.Rule, children []*RuleNode, span yaep.Span, level int) interface{} {
	if r, ok := el.dispatch[sym.Name]; ok {
		return r(rule, children, level)
	}
	switch len(children) {
	case 1:
		// F -> number
		return children[0].Value
	case 2:
		// the synthesized start rule, E' -> E #eof
		return children[0].Value
	default:
		// F -> '(' E ')'
		return children[1].Value
	}
}

func (el *arithListener) Terminal(tokval int, token yaep.Token, span yaep.Span, level int) interface{} {
	if tokval == scanner.Int {
		n, _ := strconv.Atoi(token.Lexeme())
		return n
	}
	return token.Lexeme()
}

func TestArithmeticTreeRespectsOperatorPrecedence(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	parser, sc := makeArithParser(t, "1+2*3")
	accept, err := parser.Parse(sc, nil)
	if err != nil || !accept {
		t.Fatalf("expected '1+2*3' to be accepted, err=%v", err)
	}
	root := parser.WalkDerivation(newArithListener())
	if root == nil {
		t.Fatalf("expected a non-nil derivation root")
	}
	if v, ok := root.Value.(int); !ok || v != 7 {
		t.Errorf("expected 1+2*3 to evaluate to 7, got %v", root.Value)
	}
}

// --- S2: ambiguous grammar and forest disambiguation -------------------

// makeAmbiguousGrammar builds the S2 grammar: S -> S S | a, where a is
// an identifier token.
func makeAmbiguousGrammar(t *testing.T) *grammar.Analysis {
	b := grammar.NewBuilder("Ambiguous")
	b.LHS("S").N("S").N("S").End()
	b.LHS("S").T("a", scanner.Ident).End()
	g, err := b.Grammar()
	if err != nil {
		t.Fatalf("building ambiguous grammar: %v", err)
	}
	ga, err := grammar.Analyze(g)
	if err != nil {
		t.Fatalf("analyzing ambiguous grammar: %v", err)
	}
	return ga
}

// conflictCounter is an sppf.Listener that only counts how many times the
// traversal hit an ambiguous symbol node, ignoring the actual shape.
type conflictCounter struct {
	conflicts int
}

func (c *conflictCounter) EnterRule(sym *grammar.Symbol, rhs []*grammar.Symbol, span [2]uint64) sppf.Breakmode {
	return sppf.Continue
}
func (c *conflictCounter) ExitRule(sym *grammar.Symbol, children []*sppf.RuleNode, span [2]uint64) interface{} {
	return nil
}
func (c *conflictCounter) Terminal(sym *grammar.Symbol, span [2]uint64) interface{} { return nil }
func (c *conflictCounter) Conflict(sym *grammar.Symbol, span [2]uint64) int {
	c.conflicts++
	return 0
}
func (c *conflictCounter) MakeAttrs(sym *grammar.Symbol) interface{} { return nil }

func TestAmbiguousGrammarKeepsSharedForestWithoutOneParse(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	ga := makeAmbiguousGrammar(t)
	reader := strings.NewReader("a a a")
	sc := scanner.GoTokenizer("test 'a a a'", reader)
	parser := NewParser(ga, GenerateTree(true), OneParse(false))
	accept, err := parser.Parse(sc, nil)
	if err != nil || !accept {
		t.Fatalf("expected 'a a a' to be accepted, err=%v", err)
	}
	forest := parser.ParseForest()
	if forest == nil || forest.Root() == nil {
		t.Fatalf("expected a populated parse forest")
	}
	counter := &conflictCounter{}
	sppf.TopDown(forest, forest.Root(), sppf.LtoR, parser.Pruner(), counter)
	if counter.conflicts == 0 {
		t.Errorf("expected 'a a a' under S -> S S | a to be genuinely ambiguous")
	}
}

func TestOneParseCollapsesAmbiguity(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	ga := makeAmbiguousGrammar(t)
	reader := strings.NewReader("a a a")
	sc := scanner.GoTokenizer("test 'a a a'", reader)
	parser := NewParser(ga, GenerateTree(true), OneParse(true))
	accept, err := parser.Parse(sc, nil)
	if err != nil || !accept {
		t.Fatalf("expected 'a a a' to be accepted, err=%v", err)
	}
	forest := parser.ParseForest()
	counter := &conflictCounter{}
	sppf.TopDown(forest, forest.Root(), sppf.LtoR, parser.Pruner(), counter)
	if counter.conflicts != 0 {
		t.Errorf("expected OneParse to collapse every ambiguity, saw %d conflicts", counter.conflicts)
	}
}

// --- S3: nullable rules --------------------------------------------------

func TestEpsilonGrammarParses(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	// S -> A B; A -> epsilon; B -> b (an identifier token).
	b := grammar.NewBuilder("Eps")
	b.LHS("S").N("A").N("B").End()
	b.LHS("A").Epsilon()
	b.LHS("B").T("b", scanner.Ident).End()
	g, err := b.Grammar()
	if err != nil {
		t.Fatalf("building epsilon grammar: %v", err)
	}
	ga, err := grammar.Analyze(g)
	if err != nil {
		t.Fatalf("analyzing epsilon grammar: %v", err)
	}
	reader := strings.NewReader("b")
	sc := scanner.GoTokenizer("test 'b'", reader)
	parser := NewParser(ga)
	accept, err := parser.Parse(sc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !accept {
		t.Errorf("expected 'b' to be accepted via the nullable A")
	}
}

// --- S4: Leo optimization smoke test over long right recursion ---------

// makeListGrammar builds a right-recursive list grammar: List -> Item
// List | Item; Item -> x, where x is an identifier token. This is the
// shape Leo's optimization targets.
func makeListGrammar(t *testing.T) *grammar.Analysis {
	b := grammar.NewBuilder("List")
	b.LHS("List").N("Item").N("List").End()
	b.LHS("List").N("Item").End()
	b.LHS("Item").T("x", scanner.Ident).End()
	g, err := b.Grammar()
	if err != nil {
		t.Fatalf("building list grammar: %v", err)
	}
	ga, err := grammar.Analyze(g)
	if err != nil {
		t.Fatalf("analyzing list grammar: %v", err)
	}
	return ga
}

func TestLeoOptimizationHandlesLongRightRecursion(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	ga := makeListGrammar(t)
	input := strings.Repeat("x ", 300)
	reader := strings.NewReader(input)
	sc := scanner.GoTokenizer("test long list", reader)
	parser := NewParser(ga, UseLeo(true))
	accept, err := parser.Parse(sc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !accept {
		t.Errorf("expected a 300-token right-recursive list to be accepted")
	}
}

func TestLeoOptimizationAgreesWithUnoptimizedParse(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	input := strings.Repeat("x ", 40)
	gaLeo := makeListGrammar(t)
	gaPlain := makeListGrammar(t)
	leoParser := NewParser(gaLeo, UseLeo(true))
	plainParser := NewParser(gaPlain, UseLeo(false))
	acceptLeo, errLeo := leoParser.Parse(scanner.GoTokenizer("leo", strings.NewReader(input)), nil)
	acceptPlain, errPlain := plainParser.Parse(scanner.GoTokenizer("plain", strings.NewReader(input)), nil)
	if errLeo != nil || errPlain != nil {
		t.Fatalf("unexpected errors: leo=%v plain=%v", errLeo, errPlain)
	}
	if acceptLeo != acceptPlain {
		t.Errorf("expected Leo and non-Leo parses to agree, got leo=%v plain=%v", acceptLeo, acceptPlain)
	}
	if !acceptLeo {
		t.Errorf("expected the list grammar to accept a run of 'x' tokens")
	}
}

// --- S5: error recovery ---------------------------------------------------

// makeIDGrammar builds a tiny (ambiguous) addition grammar over an
// identifier terminal: E -> E '+' E | id.
func makeIDGrammar(t *testing.T) *grammar.Analysis {
	b := grammar.NewBuilder("ErrRec")
	b.LHS("E").N("E").T("+", int('+')).N("E").End()
	b.LHS("E").T("id", scanner.Ident).End()
	g, err := b.Grammar()
	if err != nil {
		t.Fatalf("building id grammar: %v", err)
	}
	ga, err := grammar.Analyze(g)
	if err != nil {
		t.Fatalf("analyzing id grammar: %v", err)
	}
	return ga
}

func TestErrorRecoveryDiscardsUnexpectedToken(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	ga := makeIDGrammar(t)
	reader := strings.NewReader("id + + id")
	sc := scanner.GoTokenizer("test recovery", reader)
	parser := NewParser(ga, ErrorRecovery(true), RecoveryMatch(3, 3))
	accept, err := parser.Parse(sc, nil)
	if err != nil {
		t.Fatalf("expected recovery to resynchronize, got error: %v", err)
	}
	if !accept {
		t.Errorf("expected 'id + + id' to be accepted after discarding the repeated '+'")
	}
	actions := parser.RecoveryActions()
	if len(actions) == 0 {
		t.Fatalf("expected at least one recovery action to be recorded")
	}
	if len(actions[0].Discarded) == 0 {
		t.Errorf("expected the recovery action to have discarded at least one token")
	}
}

func TestErrorRecoveryDisabledFailsOnUnexpectedToken(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	ga := makeIDGrammar(t)
	reader := strings.NewReader("id + + id")
	sc := scanner.GoTokenizer("test no recovery", reader)
	parser := NewParser(ga, ErrorRecovery(false))
	accept, err := parser.Parse(sc, nil)
	if accept {
		t.Errorf("expected 'id + + id' to be rejected without error recovery")
	}
	if err == nil {
		t.Errorf("expected a syntax error without error recovery")
	}
}

// --- S6: grammars with unit-derivation loops ----------------------------

func TestLoopyGrammarCanStillParseUnderAllowLoops(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	b := grammar.NewBuilder("Loopy")
	b.LHS("A").N("A").End()
	b.LHS("A").T("a", scanner.Ident).End()
	g, err := b.Grammar()
	if err != nil {
		t.Fatalf("building loopy grammar: %v", err)
	}
	ga, err := grammar.Analyze(g, grammar.AllowLoops(true))
	if err != nil {
		t.Fatalf("unexpected error analyzing a loop-tolerant grammar: %v", err)
	}
	reader := strings.NewReader("a")
	sc := scanner.GoTokenizer("test 'a'", reader)
	parser := NewParser(ga)
	accept, err := parser.Parse(sc, nil)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if !accept {
		t.Errorf("expected 'a' to be accepted under the loop-tolerant grammar")
	}
}

func TestLoopyGrammarRejectedByAnalyzeWithoutAllowLoops(t *testing.T) {
	teardown := setupTest(t)
	defer teardown()
	//
	b := grammar.NewBuilder("Loopy")
	b.LHS("A").N("A").End()
	b.LHS("A").T("a", int('a')).End()
	g, err := b.Grammar()
	if err != nil {
		t.Fatalf("building loopy grammar: %v", err)
	}
	if _, err := grammar.Analyze(g); err == nil {
		t.Errorf("expected Analyze to reject a loopy grammar by default")
	}
}
