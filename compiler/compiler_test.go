package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cemlang/cem/compiler/back"
	"github.com/cemlang/cem/compiler/check"
	"github.com/cemlang/cem/compiler/config"
	"github.com/cemlang/cem/compiler/front"
)

var ctx = context.Background()

const program = `
type Option (T) | Some(T) | None

: unwrap-or ( Option(Int) Int -- Int )
	swap match
		Some => [ swap drop ]
		None => [ ]
	end ;

: main ( -- )
	5 Some 0 unwrap-or drop ;
`

func TestCompile(t *testing.T) {
	ir, err := Compile(ctx, "prog.cem", []byte(program), back.Options{Entry: "main"})
	require.NoError(t, err)

	s := string(ir)

	assert.Contains(t, s, `source_filename = "prog.cem"`)
	assert.Contains(t, s, "define ptr @cem.unwrap-or(ptr %stack)")
	assert.Contains(t, s, "define ptr @cem.main(ptr %stack)")
	assert.Contains(t, s, "define i32 @main()")
}

func TestCheckGate(t *testing.T) {
	ir, err := Compile(ctx, "bad.cem", []byte(": main ( -- ) frob ;"), back.Options{Entry: "main"})
	assert.Nil(t, ir)

	var uw *check.UndefinedWordError
	require.ErrorAs(t, err, &uw)
	assert.Equal(t, "frob", uw.Name)
	assert.Equal(t, 1, uw.Loc.Line)

	_, err = Compile(ctx, "bad.cem", []byte(": main ( -- Int ) \"x\" ;"), back.Options{})
	assert.Error(t, err)

	_, err = Check(ctx, "bad.cem", []byte(": main ("))

	var pe *front.ParseError
	require.ErrorAs(t, err, &pe)
}

func TestEntryWord(t *testing.T) {
	ir, err := Compile(ctx, "one.cem", []byte(": run ( -- Int ) 1 ;"), back.Options{Entry: "main"})
	require.NoError(t, err)
	assert.Contains(t, string(ir), "call ptr @cem.run(ptr null)")

	_, err = Compile(ctx, "two.cem", []byte(": a ( -- ) ; : b ( -- ) ;"), back.Options{Entry: "main"})

	var uw *back.UnknownWordError
	require.ErrorAs(t, err, &uw)
	assert.Equal(t, "main", uw.Name)

	p, err := front.Parse(ctx, "", []byte(": run ( -- ) ;"))
	require.NoError(t, err)
	assert.Equal(t, "other", EntryWord(p, "other"))
	assert.Equal(t, "", EntryWord(p, ""))
}

func TestBuildEmitIR(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "prog.cem")

	require.NoError(t, os.WriteFile(input, []byte(program), 0o644))

	cfg := config.Default()
	cfg.EmitIR = true

	out, err := Build(ctx, input, cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prog.ll"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "define i32 @main()")
}

func TestBackOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Debug = true
	cfg.Strands = true

	assert.Equal(t, back.Options{Entry: "main", Debug: true, Strands: true}, BackOptions(cfg))
}
