package front

import (
	"sort"
	"strings"

	"github.com/cemlang/cem/compiler/ast"
)

type (
	state struct {
		name string
		b    []byte

		lines []int // offsets of line starts
	}

	token interface{}

	ident   []byte
	punct   []byte
	number  []byte
	str     []byte // unescaped value
	comment []byte

	ParseError struct {
		Loc ast.Loc
		Msg string
	}
)

const delims = " \t\r\n()[]|\"#"

func newState(name string, b []byte) *state {
	s := &state{name: name, b: b, lines: []int{0}}

	for i, c := range b {
		if c == '\n' {
			s.lines = append(s.lines, i+1)
		}
	}

	return s
}

// token reads the token at st. t is nil at the end of input.
func (s *state) token(st int) (t token, i int, err error) {
	st = s.skipSpaces(st)
	i = st

	if i == len(s.b) {
		return nil, i, nil
	}

	switch c := s.b[i]; c {
	case '(', ')', '[', ']', '|':
		return punct(s.b[i : i+1]), i + 1, nil
	case '#':
		i = s.skipLine(i)

		return comment(s.b[st:i]), i, nil
	case '"':
		return s.readString(st)
	}

	i = s.skipWord(i)
	w := s.b[st:i]

	switch {
	case string(w) == "--" || string(w) == "=>" || string(w) == ":":
		return punct(w), i, nil
	case isNumber(w):
		return number(w), i, nil
	}

	return ident(w), i, nil
}

// next is token skipping comments.
func (s *state) next(st int) (t token, i int, err error) {
	i = st

	for {
		t, i, err = s.token(i)
		if err != nil {
			return
		}

		if _, ok := t.(comment); !ok {
			return
		}
	}
}

func (s *state) readString(st int) (t token, i int, err error) {
	var v []byte

	for i = st + 1; i < len(s.b); i++ {
		c := s.b[i]

		switch c {
		case '"':
			if v == nil {
				v = []byte{}
			}

			return str(v), i + 1, nil
		case '\n':
			return nil, st, s.errorf(st, "unterminated string")
		case '\\':
			i++

			if i == len(s.b) {
				return nil, st, s.errorf(st, "unterminated string")
			}

			switch e := s.b[i]; e {
			case 'n':
				c = '\n'
			case 't':
				c = '\t'
			case 'r':
				c = '\r'
			case '0':
				c = 0
			case '\\', '"':
				c = e
			default:
				return nil, st, s.errorf(i-1, "unsupported escape: \\%c", e)
			}
		}

		v = append(v, c)
	}

	return nil, st, s.errorf(st, "unterminated string")
}

func (s *state) skipSpaces(i int) int {
	for i < len(s.b) {
		switch s.b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}

		break
	}

	return i
}

func (s *state) skipWord(i int) int {
	for i < len(s.b) && strings.IndexByte(delims, s.b[i]) < 0 {
		i++
	}

	return i
}

func (s *state) skipLine(i int) int {
	for i < len(s.b) && s.b[i] != '\n' {
		i++
	}

	return i
}

func (s *state) loc(pos int) ast.Loc {
	line := sort.Search(len(s.lines), func(i int) bool { return s.lines[i] > pos }) - 1

	return ast.Loc{
		File: s.name,
		Line: line + 1,
		Col:  pos - s.lines[line] + 1,
	}
}

func isNumber(w []byte) bool {
	if len(w) != 0 && w[0] == '-' {
		w = w[1:]
	}

	if len(w) == 0 {
		return false
	}

	for _, c := range w {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}

func (e *ParseError) Error() string {
	return e.Loc.String() + ": " + e.Msg
}
