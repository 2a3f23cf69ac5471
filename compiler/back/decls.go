package back

import (
	"nikand.dev/go/heap"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

type (
	declKind int

	// decl is a top-level definition hoisted out of a function being compiled.
	decl struct {
		kind declKind
		seq  int
		text []byte

		from loc.PC
	}

	decls struct {
		heap.Heap[decl]
	}
)

const (
	declString declKind = iota
	declQuotation
)

func newDecls() decls {
	return decls{Heap: heap.Heap[decl]{Less: declsLess}}
}

func (d *decls) push(kind declKind, seq int, text []byte) {
	x := decl{kind: kind, seq: seq, text: text, from: loc.Caller(1)}

	tlog.V("decl_push").Printw("decl pushed", "kind", kind, "seq", seq, "size", len(text), "from", x.from)

	d.Heap.Push(x)
}

// appendAll drains the table in (kind, seq) order.
func (d *decls) appendAll(b []byte) []byte {
	last := declKind(-1)

	for d.Len() != 0 {
		x := d.Pop()

		if x.kind != last {
			b = append(b, '\n')
			last = x.kind
		}

		b = append(b, x.text...)
	}

	return b
}

func declsLess(d []decl, i, j int) bool {
	if d[i].kind != d[j].kind {
		return d[i].kind < d[j].kind
	}

	return d[i].seq < d[j].seq
}
