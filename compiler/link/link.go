// Package link turns generated IR into an executable using an external compiler.
package link

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	Options struct {
		CC      string // clang if empty
		Runtime string // runtime library
		Output  string
		Args    []string

		// TempDir holds the IR file. os.TempDir if empty.
		TempDir string
		// Keep leaves the IR file in place.
		Keep bool
	}

	LinkerError struct {
		Cmd    []string
		Output []byte
		Err    error
	}
)

const DefaultCC = "clang"

// Link writes ir to a temporary file and builds opts.Output from it.
func Link(ctx context.Context, ir []byte, opts Options) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "link", "output", opts.Output, "runtime", opts.Runtime)
	defer tr.Finish("err", &err)

	if opts.Output == "" {
		return errors.New("no output")
	}

	dir := opts.TempDir
	if dir == "" {
		dir = os.TempDir()
	}

	name := filepath.Join(dir, "cem-"+uuid.NewString()+".ll")

	err = os.WriteFile(name, ir, 0o600)
	if err != nil {
		return errors.Wrap(err, "write ir")
	}

	if !opts.Keep {
		defer func() {
			e := os.Remove(name)
			if err == nil && e != nil {
				err = errors.Wrap(e, "remove ir")
			}
		}()
	}

	args := Command(opts, name)

	tr.Printw("run linker", "cmd", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return &LinkerError{Cmd: args, Output: out, Err: err}
	}

	if len(out) != 0 {
		tr.V("linker_output").Printw("linker output", "output", out)
	}

	return nil
}

// Command returns the linker command line for the IR file.
func Command(opts Options, irFile string) []string {
	cc := opts.CC
	if cc == "" {
		cc = DefaultCC
	}

	args := []string{cc}
	args = append(args, opts.Args...)
	args = append(args, "-o", opts.Output, irFile)

	if opts.Runtime != "" {
		args = append(args, opts.Runtime)
	}

	return args
}

func (e *LinkerError) Error() string {
	var b strings.Builder

	b.WriteString("link: ")
	b.WriteString(strings.Join(e.Cmd, " "))
	b.WriteString(": ")
	b.WriteString(e.Err.Error())

	if out := strings.TrimSpace(string(e.Output)); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}

	return b.String()
}

func (e *LinkerError) Unwrap() error { return e.Err }
