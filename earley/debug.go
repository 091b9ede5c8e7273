package earley

import (
	"bytes"

	"github.com/earleyforge/yaep/grammar"
	"github.com/earleyforge/yaep/iteratable"
)

func dumpState(states []*iteratable.Set[grammar.Item], stateno uint64) {
	tracer().Debugf("--- State %04d ------------------------------------", stateno)
	S := states[stateno]
	n := 1
	S.IterateOnce()
	for S.Next() {
		tracer().Debugf("[%2d] %s", n, S.Item())
		n++
	}
}

func itemSetString(S *iteratable.Set[grammar.Item]) string {
	var b bytes.Buffer
	b.WriteString("{")
	S.IterateOnce()
	first := true
	for S.Next() {
		if first {
			b.WriteString(" ")
			first = false
		} else {
			b.WriteString(", ")
		}
		b.WriteString(S.Item().String())
	}
	b.WriteString(" }")
	return b.String()
}
