package vm

import (
	"io"
	"os"

	"github.com/kristofer/lily/pkg/compiler"
	"github.com/kristofer/lily/pkg/diag"
	"github.com/kristofer/lily/pkg/lexer"
	"github.com/kristofer/lily/pkg/parser"
	"github.com/kristofer/lily/pkg/symtab"
	"github.com/kristofer/lily/pkg/syspkg"
)

// Interp is the embedder-facing handle spec.md §6 calls new_parser/
// free_parser/parse_file/parse_string/parse_special/puts_sink: one Symtab,
// one Compiler, and one VM shared across every parse_* call, so top-level
// vars, classes, and the global sys::argv slot all persist the way a REPL
// session needs them to (spec.md §7).
type Interp struct {
	st   *symtab.Symtab
	comp *compiler.Compiler
	vm   *VM
}

// New installs the builtin class table, runs the exception-bootstrap
// (symtab.New), seeds sys::argv, and wires puts_sink, matching new_parser's
// contract (spec.md §6).
func New(argv []string, sink func(text string)) *Interp {
	st := symtab.New()
	v := NewVM()
	v.Sink = sink
	v.SeedGlobal(syspkg.GlobalSlot, &List{Elems: syspkg.Argv(argv)})
	return &Interp{
		st:   st,
		comp: compiler.New(st, ""),
		vm:   v,
	}
}

// Close tears the interpreter down. Go's GC reclaims the underlying memory
// regardless of order, but the fields are cleared in the sequence spec.md
// §6 fixes for the C embedder (register storage, then symtab literals/vars,
// then the VM, then the remaining symtab, then lexer/emitter) so a reader
// comparing against the original teardown contract can match each step.
func (ip *Interp) Close() {
	ip.vm = nil
	ip.st = nil
	ip.comp = nil
}

// ParseFile compiles and runs the source in path. templateMode mirrors
// spec.md §4.2's "tagged" input mode: literal text by default, with
// "<?lily" switching into code. A ".lly" file is always implicitly in
// template mode regardless of what's passed, matching the CLI's
// file-extension convention; every other extension defaults to pure code
// unless templateMode is set.
func (ip *Interp) ParseFile(path string, templateMode bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return diag.Wrap(diag.ImportError, 0, err, "could not open "+path)
	}
	return ip.run(path, string(src), templateMode || hasLilySuffix(path))
}

// ParseString compiles and runs src under the given display name.
func (ip *Interp) ParseString(name, src string, templateMode bool) error {
	return ip.run(name, src, templateMode)
}

// ParseSpecial compiles and runs source read from r (the embedder's custom
// reader), closing it via close once fully drained, mirroring parse_special
// (spec.md §6). Go's lexer is string-backed rather than streaming, so the
// reader is fully drained up front instead of pulled incrementally.
func (ip *Interp) ParseSpecial(name string, r io.Reader, close func() error, templateMode bool) error {
	data, err := io.ReadAll(r)
	if close != nil {
		if cerr := close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return diag.Wrap(diag.ImportError, 0, err, "could not read "+name)
	}
	return ip.run(name, string(data), templateMode)
}

// run translates spec.md §4.2's "tagged" input-mode naming (text is the
// default; "<?lily" enters code) to the lexer's own Lexer.tagged field
// (true means "already past the <?lily, currently scanning code"): the two
// are inverses of each other.
func (ip *Interp) run(name, src string, templateMode bool) error {
	lex := lexer.New(name, src, !templateMode)
	p := parser.New(lex)
	prog, err := p.ParseProgram()
	if err != nil {
		return err
	}
	mod, err := ip.comp.Compile(prog)
	if err != nil {
		return err
	}
	return ip.vm.Run(mod)
}

func hasLilySuffix(path string) bool {
	return len(path) >= 4 && path[len(path)-4:] == ".lly"
}
