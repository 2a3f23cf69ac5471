package back

import (
	"path/filepath"

	"github.com/nikandfor/hacked/hfmt"
)

type (
	// debugInfo allocates metadata ids on first use and prints them in id order.
	debugInfo struct {
		nodes [][]byte

		files map[string]int
		locs  map[locKey]int

		cu   int
		subr int
	}

	locKey struct {
		file      string
		line, col int
		sp        int
	}
)

func newDebugInfo() *debugInfo {
	return &debugInfo{
		files: map[string]int{},
		locs:  map[locKey]int{},
		cu:    -1,
		subr:  -1,
	}
}

func (d *debugInfo) node(f string, args ...any) int {
	d.nodes = append(d.nodes, hfmt.Appendf(nil, f, args...))

	return len(d.nodes) - 1
}

func (d *debugInfo) file(name string) int {
	if id, ok := d.files[name]; ok {
		return id
	}

	dir, base := filepath.Split(name)
	if dir == "" {
		dir = "."
	}

	id := d.node(`!DIFile(filename: "%s", directory: "%s")`, escapeString(base), escapeString(filepath.Clean(dir)))
	d.files[name] = id

	return id
}

func (d *debugInfo) unit(file string) int {
	if d.cu < 0 {
		f := d.file(file)

		d.cu = d.node(`distinct !DICompileUnit(language: DW_LANG_C, file: !%d, producer: "cem", isOptimized: false, runtimeVersion: 0, emissionKind: FullDebug)`, f)
	}

	return d.cu
}

func (d *debugInfo) subroutine() int {
	if d.subr < 0 {
		d.subr = d.node(`!DISubroutineType(types: !{})`)
	}

	return d.subr
}

func (d *debugInfo) subprogram(name, linkage, file string, line int) int {
	cu := d.unit(file)
	f := d.file(file)
	st := d.subroutine()

	return d.node(`distinct !DISubprogram(name: "%s", linkageName: "%s", scope: !%d, file: !%d, line: %d, type: !%d, scopeLine: %d, spFlags: DISPFlagDefinition, unit: !%d)`,
		escapeString(name), escapeString(linkage), f, f, line, st, line, cu)
}

func (d *debugInfo) location(file string, line, col, sp int) int {
	k := locKey{file: file, line: line, col: col, sp: sp}

	if id, ok := d.locs[k]; ok {
		return id
	}

	id := d.node(`!DILocation(line: %d, column: %d, scope: !%d)`, line, col, sp)
	d.locs[k] = id

	return id
}

func (d *debugInfo) append(b []byte, file string) []byte {
	cu := d.unit(file)

	version := d.node(`!{i32 2, !"Debug Info Version", i32 3}`)
	dwarf := d.node(`!{i32 2, !"Dwarf Version", i32 4}`)

	b = hfmt.Appendf(b, "\n!llvm.dbg.cu = !{!%d}\n", cu)
	b = hfmt.Appendf(b, "!llvm.module.flags = !{!%d, !%d}\n\n", version, dwarf)

	for id, n := range d.nodes {
		b = hfmt.Appendf(b, "!%d = %s\n", id, string(n))
	}

	return b
}
