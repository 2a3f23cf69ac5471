// Package ir describes the contract between generated code and the runtime:
// the stack cell memory layout and the set of primitive functions.
package ir

type (
	// Layout is the memory layout of a runtime stack cell.
	Layout struct {
		Version int

		Size int64

		Tag         int64 // i32 value tag
		Value       int64 // payload union
		VariantTag  int64 // i32 inside the payload
		VariantData int64 // ptr to the variant fields inside the payload
		Next        int64 // ptr to the rest of the stack

		BoolType string // how a Bool payload is stored
	}

	Func struct {
		Name   string
		Ret    string
		Params []string

		Group string
		Doc   string

		NoReturn bool
	}

	// Value tags of a stack cell.
	Tag int32
)

const (
	TagInt Tag = iota
	TagBool
	TagString
	TagQuotation
	TagVariant
)

// CellV1 is the layout of runtime/stack.h.
var CellV1 = Layout{
	Version: 1,

	Size: 32,

	Tag:         0,
	Value:       8,
	VariantTag:  8,
	VariantData: 16,
	Next:        24,

	BoolType: "i8",
}

const (
	Ptr  = "ptr"
	Void = "void"
	I1   = "i1"
	I32  = "i32"
	I64  = "i64"
)

var stackFn = []string{Ptr}

// Runtime is every function the runtime library provides to generated code.
var Runtime = []Func{
	{Name: "dup", Ret: Ptr, Params: stackFn, Group: "stack", Doc: "( A -- A A )"},
	{Name: "drop", Ret: Ptr, Params: stackFn, Group: "stack", Doc: "( A -- )"},
	{Name: "swap", Ret: Ptr, Params: stackFn, Group: "stack", Doc: "( A B -- B A )"},
	{Name: "over", Ret: Ptr, Params: stackFn, Group: "stack", Doc: "( A B -- A B A )"},
	{Name: "rot", Ret: Ptr, Params: stackFn, Group: "stack", Doc: "( A B C -- B C A )"},

	{Name: "add", Ret: Ptr, Params: stackFn, Group: "arithmetic"},
	{Name: "subtract", Ret: Ptr, Params: stackFn, Group: "arithmetic"},
	{Name: "multiply", Ret: Ptr, Params: stackFn, Group: "arithmetic"},
	{Name: "divide", Ret: Ptr, Params: stackFn, Group: "arithmetic"},

	{Name: "less_than", Ret: Ptr, Params: stackFn, Group: "comparison"},
	{Name: "greater_than", Ret: Ptr, Params: stackFn, Group: "comparison"},
	{Name: "equal", Ret: Ptr, Params: stackFn, Group: "comparison"},

	{Name: "push_int", Ret: Ptr, Params: []string{Ptr, I64}, Group: "constructor"},
	{Name: "push_bool", Ret: Ptr, Params: []string{Ptr, I1}, Group: "constructor"},
	{Name: "push_string", Ret: Ptr, Params: []string{Ptr, Ptr}, Group: "constructor", Doc: "copies the string"},
	{Name: "push_quotation", Ret: Ptr, Params: []string{Ptr, Ptr}, Group: "constructor"},
	{Name: "push_variant", Ret: Ptr, Params: []string{Ptr, I32, I32}, Group: "constructor", Doc: "pops n fields into a variant"},
	{Name: "push_cell", Ret: Ptr, Params: []string{Ptr, Ptr}, Group: "constructor", Doc: "pushes a copy of a cell"},

	{Name: "call_quotation", Ret: Ptr, Params: stackFn, Group: "control"},

	{Name: "string_length", Ret: Ptr, Params: stackFn, Group: "string"},
	{Name: "string_concat", Ret: Ptr, Params: stackFn, Group: "string"},
	{Name: "string_equal", Ret: Ptr, Params: stackFn, Group: "string"},

	{Name: "write_line", Ret: Ptr, Params: stackFn, Group: "io"},
	{Name: "read_line", Ret: Ptr, Params: stackFn, Group: "io"},

	{Name: "scheduler_init", Ret: Void, Group: "scheduler"},
	{Name: "scheduler_run", Ret: Ptr, Group: "scheduler"},
	{Name: "scheduler_shutdown", Ret: Void, Group: "scheduler"},
	{Name: "strand_spawn", Ret: I64, Params: []string{Ptr, Ptr}, Group: "scheduler"},
	{Name: "strand_yield", Ret: Void, Group: "scheduler"},

	{Name: "print_stack", Ret: Void, Params: stackFn, Group: "utility"},
	{Name: "free_stack", Ret: Void, Params: stackFn, Group: "utility"},
	{Name: "runtime_error", Ret: Void, Params: []string{Ptr}, Group: "utility", NoReturn: true},
}

// builtins maps source words to the runtime function implementing them.
var builtins = map[string]string{
	"dup":  "dup",
	"drop": "drop",
	"swap": "swap",
	"over": "over",
	"rot":  "rot",

	"+": "add",
	"-": "subtract",
	"*": "multiply",
	"/": "divide",

	"add":      "add",
	"subtract": "subtract",
	"multiply": "multiply",
	"divide":   "divide",

	"<": "less_than",
	">": "greater_than",
	"=": "equal",

	"less_than":    "less_than",
	"greater_than": "greater_than",
	"equal":        "equal",

	"call": "call_quotation",

	"string_length": "string_length",
	"string_concat": "string_concat",
	"string_equal":  "string_equal",

	"write_line": "write_line",
	"read_line":  "read_line",

	"yield": "strand_yield",
}

// Builtin returns the runtime function a builtin word compiles to.
func Builtin(word string) (Func, bool) {
	name, ok := builtins[word]
	if !ok {
		return Func{}, false
	}

	return Lookup(name)
}

func Lookup(name string) (Func, bool) {
	for _, f := range Runtime {
		if f.Name == name {
			return f, true
		}
	}

	return Func{}, false
}

// BuiltinWords lists the source words with a runtime implementation.
func BuiltinWords() []string {
	l := make([]string, 0, len(builtins))

	for w := range builtins {
		l = append(l, w)
	}

	return l
}

// Threads reports whether f has the stack in, stack out signature of a compiled word.
func (f Func) Threads() bool {
	return f.Ret == Ptr && len(f.Params) == 1 && f.Params[0] == Ptr
}
