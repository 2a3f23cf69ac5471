package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
entry: start
runtime: lib/libcem_runtime.a
cc_args: [-O2, -g]
debug: true
strands: true
`), "/proj/cem.yaml")
	require.NoError(t, err)

	assert.Equal(t, "start", c.Entry)
	assert.Equal(t, "/proj/lib/libcem_runtime.a", c.Runtime)
	assert.Equal(t, DefaultCC, c.CC)
	assert.Equal(t, []string{"-O2", "-g"}, c.CCArgs)
	assert.True(t, c.Debug)
	assert.True(t, c.Strands)
	assert.False(t, c.EmitIR)
}

func TestDefaults(t *testing.T) {
	c := Default()

	assert.Equal(t, DefaultEntry, c.Entry)
	assert.Equal(t, DefaultCC, c.CC)
	assert.Equal(t, "x/prog", c.OutputFor("x/prog.cem"))

	c.EmitIR = true
	assert.Equal(t, "x/prog.ll", c.OutputFor("x/prog.cem"))

	c.Output = "out"
	assert.Equal(t, "out", c.OutputFor("x/prog.cem"))
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
	}{
		{"bad entry", "entry: \"a b\""},
		{"runtime with ir", "emit_ir: true\nruntime: x.a"},
		{"empty arg", "cc_args: [\"\"]"},
		{"bad yaml", "entry: [1"},
		{"unknown type", "debug: maybe"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.text), "cem.yaml")
			assert.Error(t, err)
		})
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")

	require.NoError(t, os.MkdirAll(sub, 0o755))

	p, err := Find(sub)
	require.NoError(t, err)

	if p != "" {
		// a config above the temp dir must not be ours
		assert.NotContains(t, p, root)
	}

	cfg := filepath.Join(root, "a", "cem.yml")
	require.NoError(t, os.WriteFile(cfg, []byte("entry: run\n"), 0o644))

	p, err = Find(sub)
	require.NoError(t, err)
	assert.Equal(t, cfg, p)

	c, err := LoadFor(filepath.Join(sub, "prog.cem"))
	require.NoError(t, err)
	assert.Equal(t, "run", c.Entry)
	assert.Equal(t, cfg, c.Path)
}
