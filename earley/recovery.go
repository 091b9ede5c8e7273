package earley

import (
	"github.com/earleyforge/yaep"
	"github.com/earleyforge/yaep/grammar"
	"github.com/earleyforge/yaep/iteratable"
	"github.com/earleyforge/yaep/scanner"
)

// RecoveryAction records what a single resynchronization step did, so a
// host can report it to the user or simply count how much was thrown
// away. Position is the Earley-set index at which the error was
// detected.
type RecoveryAction struct {
	Position  uint64
	Discarded []yaep.Token
	Inserted  []int
}

// recover implements a skip/resynchronize algorithm: first try
// discarding up to maxErrorTokens input tokens looking for one the
// grammar can continue with from the last good state, then try
// inserting up to maxRecoveryInsert tokens the grammar expects at that
// state before retrying the token that got the parser stuck. It
// returns the token the caller should feed next (via the normal
// setupNextState/innerLoop cycle) and whether recovery succeeded.
func (p *Parser) recover(i uint64, stuck inputSymbol) (RecoveryAction, yaep.Token, bool) {
	p.rewindTo(i)
	action := RecoveryAction{Position: i}
	expected := p.expectedTerminals(p.states[i])

	cand := stuck.token
	for n := 0; n < p.maxErrorTokens; n++ {
		action.Discarded = append(action.Discarded, cand)
		cand = p.scan.NextToken()
		if !containsCode(expected, int(cand.TokType())) && int(cand.TokType()) != scanner.EOF {
			continue
		}
		x := inputSymbol{int(cand.TokType()), cand, cand.Span()}
		j := p.setupNextState(cand)
		p.innerLoop(j, x)
		if !p.states[j+1].Empty() || x.tokval == scanner.EOF {
			return action, p.nextToken(), true
		}
		p.rewindTo(i)
	}

	cur := i
	for n := 0; n < p.maxRecoveryInsert; n++ {
		exp := p.expectedTerminals(p.states[cur])
		if len(exp) == 0 {
			break
		}
		code := exp[0]
		synth := scanner.MakeDefaultToken(yaep.TokType(code), "<inserted>", stuck.span)
		action.Inserted = append(action.Inserted, code)
		j := p.setupNextState(synth)
		p.innerLoop(j, inputSymbol{code, synth, synth.Span()})
		if p.states[j+1].Empty() {
			p.rewindTo(cur)
			break
		}
		cur = j + 1
		x := inputSymbol{int(stuck.token.TokType()), stuck.token, stuck.token.Span()}
		k := p.setupNextState(stuck.token)
		p.innerLoop(k, x)
		if !p.states[k+1].Empty() || x.tokval == scanner.EOF {
			return action, p.nextToken(), true
		}
		p.rewindTo(cur)
	}

	return RecoveryAction{}, nil, false
}

// rewindTo discards every Earley set built after idx, so a failed
// recovery attempt can be retried cleanly from the last known-good
// position.
func (p *Parser) rewindTo(idx uint64) {
	p.states = p.states[:idx+1]
	if p.hasmode(optionStoreTokens) && uint64(len(p.tokens)) > idx+1 {
		p.tokens = p.tokens[:idx+1]
	}
	p.sc = idx
	if p.leo != nil {
		p.leo = newLeoTable()
	}
}

// expectedTerminals collects the distinct terminal token codes any item
// in S is waiting to scan next.
func (p *Parser) expectedTerminals(S *iteratable.Set[grammar.Item]) []int {
	seen := make(map[int]bool)
	var out []int
	S.Each(func(item grammar.Item) {
		sym := item.PeekSymbol()
		if sym != nil && sym.IsTerminal() && !seen[sym.Value] {
			seen[sym.Value] = true
			out = append(out, sym.Value)
		}
	})
	return out
}

func containsCode(codes []int, c int) bool {
	for _, v := range codes {
		if v == c {
			return true
		}
	}
	return false
}
