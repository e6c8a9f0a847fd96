// Virtual Machine Architecture:
//
// Unlike the teacher's stack machine, this VM is register-based (spec.md
// §4.6): every function owns a flat window of registers sized to its
// compiled Function.Registers, and instructions read/write registers by
// index instead of pushing/popping a shared value stack.
//
//   Source Code -> Lexer -> Parser -> AST -> Compiler -> Bytecode -> VM
//
// Execution Model:
//
// run() executes one bytecode.Function's Code vector over one *frame. A
// call pushes a new frame with its own register window; a return pops it
// and writes the result into the caller's destination register. There is
// no value stack: argument passing and returns copy directly between the
// caller's and callee's register windows.
//
// Exceptions propagate without panic/recover (Design Notes §9): OpRaise
// sets the running frame's pending exception and looks for an open
// try-region in the *same* frame; if none is open, run() returns the
// exception as a plain Go error, and the Go call stack (one call per lily
// call) unwinds it back through callFunction until some enclosing frame's
// try-region catches it or it escapes to the embedder as an error whose
// message is the *RuntimeError traceback.
package vm

import (
	"fmt"
	"strings"

	"github.com/kristofer/lily/pkg/bytecode"
	"github.com/kristofer/lily/pkg/diag"
	"github.com/kristofer/lily/pkg/gc"
	"github.com/kristofer/lily/pkg/symtab"
)

const maxCallDepth = 2000

// tryRegion is one open `try` block's catch-chain entry point.
type tryRegion struct {
	catchChainStart int
}

// frame is one activation record: a function, its program counter, its
// register window, and the try-regions currently open within it.
type frame struct {
	fn   *bytecode.Function
	ip   int
	regs []interface{}
	tries []tryRegion

	pendingExc *Instance // set by OpRaise, consumed by OpCatchMatch/OpCatchBind
}

// VM executes a compiled *bytecode.Module.
type VM struct {
	mod     *bytecode.Module
	st      *symtab.Symtab
	globals []interface{}
	stack   []*frame // active call stack, for traceback assembly

	// gcc tracks every gc-tagged value (list, hash, tuple, instance) created
	// during execution (spec.md §4.7). See pkg/gc's package comment for why
	// this verifies reachability rather than reference-counting it.
	gcc *gc.Collector

	// Sink is the embedder's puts_sink (spec.md §6): every OpShow/OpPrint
	// writes through it. Defaults to writing to os.Stdout if left nil.
	Sink func(text string)
}

func (vm *VM) writeSink(text string) {
	if vm.Sink != nil {
		vm.Sink(text)
		return
	}
	fmt.Print(text)
}

// NewVM creates a VM with no module loaded yet, mirroring the teacher's
// vm.New()/v.Run(bc) two-step (cmd/smog/main.go); New is taken by the
// Interp constructor in this package. The same VM (and its
// globals) can Run several compiled modules in sequence against the same
// Symtab, which is what the REPL does (spec.md §7): each line compiles to
// its own Module with its own Main, but globals declared by an earlier
// line are still there for a later one to read.
func NewVM() *VM {
	return &VM{gcc: gc.New()}
}

// SeedGlobal sets global slot i before any module runs, e.g. to populate
// sys::argv (pkg/syspkg) ahead of time.
func (vm *VM) SeedGlobal(i int, v interface{}) {
	vm.setGlobalSlot(i, v)
}

// Run executes mod.Main to completion, then sweeps every gc-tagged value no
// longer reachable from the surviving globals (spec.md §8's "Refcount zero":
// nothing left over from evaluating the program's expressions and locals
// lingers once the top level returns — only values a global var still holds
// remain registered).
func (vm *VM) Run(mod *bytecode.Module) error {
	vm.mod = mod
	vm.st = mod.Symtab
	_, err := vm.callFunction(mod.Main, nil)
	vm.collectGarbage()
	return err
}

// collectGarbage runs one mark-sweep pass rooted at the live call stack's
// registers plus the persistent globals slice, opportunistically or at a
// program's end.
func (vm *VM) collectGarbage() {
	roots := make([]interface{}, 0, len(vm.globals))
	for _, g := range vm.globals {
		roots = append(roots, g)
	}
	for _, f := range vm.stack {
		for _, r := range f.regs {
			roots = append(roots, r)
		}
	}
	vm.gcc.Collect(roots)
}

func (vm *VM) globalSlot(i int) interface{} {
	if i < len(vm.globals) {
		return vm.globals[i]
	}
	return nil
}

func (vm *VM) setGlobalSlot(i int, v interface{}) {
	for len(vm.globals) <= i {
		vm.globals = append(vm.globals, nil)
	}
	vm.globals[i] = v
}

// callFunction invokes fn with args already evaluated, returning its result
// (nil for a void return) or an error if the call raised an uncaught
// exception or exceeded maxCallDepth (spec.md §6 RecursionError).
func (vm *VM) callFunction(fn *bytecode.Function, args []interface{}) (interface{}, error) {
	if fn.Foreign != nil {
		return fn.Foreign(args)
	}
	if len(vm.stack) >= maxCallDepth {
		return nil, diag.Raise(diag.RecursionError, fn.Line, "too many nested calls (recursion limit reached)")
	}
	f := &frame{fn: fn, regs: make([]interface{}, len(fn.Registers))}
	for i, a := range args {
		if i >= len(f.regs) {
			break
		}
		f.regs[i] = a
	}
	vm.stack = append(vm.stack, f)
	defer func() { vm.stack = vm.stack[:len(vm.stack)-1] }()

	result, err := vm.run(f)
	// run also comes back (nil, nil) right after one of f's own try-regions
	// caught a raise from raiseErrf or propagate: f.ip then sits on the
	// except chain instead of just past a return, so resume from there.
	for err == nil && f.ip > 0 && f.ip < len(f.fn.Code) &&
		f.fn.Code[f.ip-1].Op != bytecode.OpReturnVal && f.fn.Code[f.ip-1].Op != bytecode.OpReturnVoid {
		result, err = vm.run(f)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// run executes f's code vector until a return instruction or an uncaught
// raise.
func (vm *VM) run(f *frame) (interface{}, error) {
	for {
		if f.ip >= len(f.fn.Code) {
			return nil, nil
		}
		ins := f.fn.Code[f.ip]
		f.ip++

		if vm.gcc.ShouldCollect() {
			vm.collectGarbage()
		}

		switch ins.Op {
		case bytecode.OpLoadInteger:
			f.regs[ins.A] = vm.st.AllLiterals()[ins.B].IntValue
		case bytecode.OpLoadDouble:
			f.regs[ins.A] = vm.st.AllLiterals()[ins.B].DoubleValue
		case bytecode.OpLoadString:
			f.regs[ins.A] = vm.st.AllLiterals()[ins.B].StringValue
		case bytecode.OpLoadReadonly:
			if ins.B < 0 || ins.B >= len(vm.mod.Functions) {
				return nil, vm.internalErrorf(f, "invalid function constant %d", ins.B)
			}
			f.regs[ins.A] = vm.mod.Functions[ins.B]
		case bytecode.OpLoadGlobal:
			f.regs[ins.A] = vm.globalSlot(ins.B)
		case bytecode.OpLoadLocal:
			f.regs[ins.A] = f.regs[ins.B]

		case bytecode.OpAssignLocal:
			f.regs[ins.A] = f.regs[ins.B]
		case bytecode.OpAssignGlobal:
			vm.setGlobalSlot(ins.A, f.regs[ins.B])
		case bytecode.OpAssignUpvalue:
			return nil, vm.internalErrorf(f, "upvalue assignment is not supported")

		case bytecode.OpIntAdd:
			f.regs[ins.A] = asInt(f.regs[ins.B]) + asInt(f.regs[ins.C])
		case bytecode.OpIntSub:
			f.regs[ins.A] = asInt(f.regs[ins.B]) - asInt(f.regs[ins.C])
		case bytecode.OpIntMul:
			f.regs[ins.A] = asInt(f.regs[ins.B]) * asInt(f.regs[ins.C])
		case bytecode.OpIntDiv:
			divisor := asInt(f.regs[ins.C])
			if divisor == 0 {
				return nil, vm.raiseErrf(f, diag.DivisionByZeroError, "attempt to divide by zero")
			}
			f.regs[ins.A] = asInt(f.regs[ins.B]) / divisor
		case bytecode.OpIntMod:
			divisor := asInt(f.regs[ins.C])
			if divisor == 0 {
				return nil, vm.raiseErrf(f, diag.DivisionByZeroError, "attempt to divide by zero")
			}
			f.regs[ins.A] = asInt(f.regs[ins.B]) % divisor
		case bytecode.OpDblAdd:
			f.regs[ins.A] = asDbl(f.regs[ins.B]) + asDbl(f.regs[ins.C])
		case bytecode.OpDblSub:
			f.regs[ins.A] = asDbl(f.regs[ins.B]) - asDbl(f.regs[ins.C])
		case bytecode.OpDblMul:
			f.regs[ins.A] = asDbl(f.regs[ins.B]) * asDbl(f.regs[ins.C])
		case bytecode.OpDblDiv:
			divisor := asDbl(f.regs[ins.C])
			if divisor == 0 {
				return nil, vm.raiseErrf(f, diag.DivisionByZeroError, "attempt to divide by zero")
			}
			f.regs[ins.A] = asDbl(f.regs[ins.B]) / divisor
		case bytecode.OpConcat:
			f.regs[ins.A] = asStr(f.regs[ins.B]) + asStr(f.regs[ins.C])
		case bytecode.OpNegate:
			switch v := f.regs[ins.B].(type) {
			case int64:
				f.regs[ins.A] = -v
			case float64:
				f.regs[ins.A] = -v
			default:
				return nil, vm.internalErrorf(f, "cannot negate a non-numeric value")
			}
		case bytecode.OpLogicalNot:
			if asInt(f.regs[ins.B]) == 0 {
				f.regs[ins.A] = int64(1)
			} else {
				f.regs[ins.A] = int64(0)
			}
		case bytecode.OpBitAnd:
			f.regs[ins.A] = asInt(f.regs[ins.B]) & asInt(f.regs[ins.C])
		case bytecode.OpBitOr:
			f.regs[ins.A] = asInt(f.regs[ins.B]) | asInt(f.regs[ins.C])
		case bytecode.OpBitXor:
			f.regs[ins.A] = asInt(f.regs[ins.B]) ^ asInt(f.regs[ins.C])
		case bytecode.OpShiftLeft:
			f.regs[ins.A] = asInt(f.regs[ins.B]) << uint(asInt(f.regs[ins.C]))
		case bytecode.OpShiftRight:
			f.regs[ins.A] = asInt(f.regs[ins.B]) >> uint(asInt(f.regs[ins.C]))

		case bytecode.OpEq:
			f.regs[ins.A] = boolToInt(valuesEqual(f.regs[ins.B], f.regs[ins.C]))
		case bytecode.OpNeq:
			f.regs[ins.A] = boolToInt(!valuesEqual(f.regs[ins.B], f.regs[ins.C]))
		case bytecode.OpLt:
			f.regs[ins.A] = boolToInt(compareNumeric(f.regs[ins.B], f.regs[ins.C]) < 0)
		case bytecode.OpLe:
			f.regs[ins.A] = boolToInt(compareNumeric(f.regs[ins.B], f.regs[ins.C]) <= 0)
		case bytecode.OpGt:
			f.regs[ins.A] = boolToInt(compareNumeric(f.regs[ins.B], f.regs[ins.C]) > 0)
		case bytecode.OpGe:
			f.regs[ins.A] = boolToInt(compareNumeric(f.regs[ins.B], f.regs[ins.C]) >= 0)
		case bytecode.OpJump:
			f.ip = ins.A
		case bytecode.OpJumpIfFalse:
			if asInt(f.regs[ins.B]) == 0 {
				f.ip = ins.A
			}
		case bytecode.OpJumpIfTrue:
			if asInt(f.regs[ins.B]) != 0 {
				f.ip = ins.A
			}

		case bytecode.OpBuildList:
			elems := make([]interface{}, ins.B)
			for i := 0; i < ins.B; i++ {
				elems[i] = f.regs[ins.A+i]
			}
			l := &List{Elems: elems}
			vm.gcc.Register(l)
			f.regs[ins.Result] = l
		case bytecode.OpBuildHash:
			h := &Hash{}
			for i := 0; i < ins.B; i += 2 {
				h.set(f.regs[ins.A+i], f.regs[ins.A+i+1])
			}
			vm.gcc.Register(h)
			f.regs[ins.Result] = h
		case bytecode.OpBuildTuple:
			elems := make([]interface{}, ins.B)
			for i := 0; i < ins.B; i++ {
				elems[i] = f.regs[ins.A+i]
			}
			t := &Tuple{Elems: elems}
			vm.gcc.Register(t)
			f.regs[ins.Result] = t
		case bytecode.OpSubscriptGet:
			v, err := vm.subscriptGet(f, f.regs[ins.A], f.regs[ins.B])
			if err != nil {
				return nil, err
			}
			f.regs[ins.Result] = v
		case bytecode.OpSubscriptSet:
			if err := vm.subscriptSet(f, f.regs[ins.A], f.regs[ins.B], f.regs[ins.C]); err != nil {
				return nil, err
			}
		case bytecode.OpBuildVariant:
			cls := vm.st.ClassByID(uint16(ins.B))
			if cls == nil {
				return nil, vm.internalErrorf(f, "unknown variant class id %d", ins.B)
			}
			n := len(cls.VariantFields)
			fields := make([]interface{}, n)
			for i := 0; i < n; i++ {
				fields[i] = f.regs[ins.C+i]
			}
			inst := &Instance{Class: cls, VariantFields: fields}
			vm.gcc.Register(inst)
			f.regs[ins.Result] = inst

		case bytecode.OpGetProperty:
			inst, ok := f.regs[ins.A].(*Instance)
			if !ok || inst == nil {
				return nil, vm.raiseErrf(f, diag.ValueError, "cannot read a property from an uninitialized value")
			}
			f.regs[ins.Result] = inst.Props[ins.B]
		case bytecode.OpSetProperty:
			inst, ok := f.regs[ins.A].(*Instance)
			if !ok || inst == nil {
				return nil, vm.raiseErrf(f, diag.ValueError, "cannot set a property on an uninitialized value")
			}
			for len(inst.Props) <= ins.B {
				inst.Props = append(inst.Props, nil)
			}
			inst.Props[ins.B] = f.regs[ins.C]
		case bytecode.OpNewInstance:
			cls := vm.st.ClassByID(uint16(ins.B))
			if cls == nil {
				return nil, vm.internalErrorf(f, "unknown class id %d", ins.B)
			}
			inst := &Instance{Class: cls, Props: make([]interface{}, cls.TotalPropertyCount())}
			vm.gcc.Register(inst)
			f.regs[ins.Result] = inst
		case bytecode.OpUpcast:
			v := f.regs[ins.A]
			targetCls := vm.st.ClassByID(uint16(ins.B))
			if targetCls != nil && targetCls.Name != "any" && !valueIsClassOrSub(v, targetCls) {
				return nil, vm.raiseErrf(f, diag.BadTypecastError, "cannot cast this value to %s", targetCls.Name)
			}
			f.regs[ins.Result] = v

		case bytecode.OpCallNative, bytecode.OpCallForeign:
			fn, ok := asCallee(f.regs[ins.A])
			if !ok {
				return nil, vm.raiseErrf(f, diag.ValueError, "value is not callable")
			}
			n := ins.C
			args := make([]interface{}, n)
			for i := 0; i < n; i++ {
				args[i] = f.regs[ins.B+i]
			}
			result, err := vm.callFunction(fn, args)
			if err != nil {
				return nil, vm.propagate(f, err)
			}
			f.regs[ins.Result] = result
		case bytecode.OpReturnVal:
			return f.regs[ins.A], nil
		case bytecode.OpReturnVoid:
			return nil, nil

		case bytecode.OpTryEnter:
			f.tries = append(f.tries, tryRegion{catchChainStart: ins.A})
		case bytecode.OpTryLeave:
			if len(f.tries) > 0 {
				f.tries = f.tries[:len(f.tries)-1]
			}
		case bytecode.OpRaise:
			inst, ok := f.regs[ins.A].(*Instance)
			if !ok {
				return nil, vm.internalErrorf(f, "raise target is not an exception instance")
			}
			if err := vm.enterCatch(f, inst); err != nil {
				return nil, err
			}
		case bytecode.OpCatchMatch:
			var cls *symtab.Class
			if ins.C < 0 {
				if f.pendingExc == nil {
					return nil, vm.internalErrorf(f, "CATCH_MATCH with no pending exception")
				}
				cls = f.pendingExc.Class
			} else {
				inst, ok := f.regs[ins.C].(*Instance)
				if !ok || inst == nil {
					return nil, vm.internalErrorf(f, "match subject is not a variant instance")
				}
				cls = inst.Class
			}
			if !classIsOrInherits(cls, uint16(ins.B)) {
				f.ip = ins.A
			}
		case bytecode.OpCatchBind:
			f.regs[ins.A] = f.pendingExc
			f.pendingExc = nil

		case bytecode.OpMatchDispatch:
			return nil, vm.internalErrorf(f, "MATCH_DISPATCH is unused; matches compile through CATCH_MATCH")
		case bytecode.OpVariantDecompose:
			inst, ok := f.regs[ins.B].(*Instance)
			if !ok {
				return nil, vm.internalErrorf(f, "cannot decompose a non-variant value")
			}
			for i := 0; i < ins.C && i < len(inst.VariantFields); i++ {
				f.regs[ins.A+i] = inst.VariantFields[i]
			}

		case bytecode.OpShow:
			vm.writeSink(formatDisplay(f.regs[ins.A]))
			vm.writeSink("\n")
		case bytecode.OpPrint:
			vm.writeSink(asStr(f.regs[ins.A]))

		case bytecode.OpLen:
			n, err := containerLen(f.regs[ins.A])
			if err != nil {
				return nil, vm.raiseErrf(f, diag.ValueError, "%s", err.Error())
			}
			f.regs[ins.Result] = int64(n)

		default:
			return nil, vm.internalErrorf(f, "unhandled opcode %s", ins.Op)
		}
	}
}

// enterCatch looks for an open try-region in f to handle inst. If one
// exists, it jumps f's ip to the region's catch-chain head and records inst
// as the pending exception for OpCatchMatch/OpCatchBind to consume. If no
// try-region is open in this frame, inst is converted into a Go error so it
// unwinds through callFunction to the caller (spec.md §9's "ordinary Go
// error" re-architecture of non-local exception propagation).
func (vm *VM) enterCatch(f *frame, inst *Instance) error {
	if len(f.tries) == 0 {
		return vm.instanceToError(f, inst)
	}
	top := f.tries[len(f.tries)-1]
	f.tries = f.tries[:len(f.tries)-1]
	f.pendingExc = inst
	f.ip = top.catchChainStart
	return nil
}

// propagate re-raises an error bubbling up from a called function against
// f's own try-regions, so a `try` can catch an exception thrown inside a
// function it called (not just one raised directly in its own body).
func (vm *VM) propagate(f *frame, err error) error {
	inst, ok := vm.errorToInstance(err)
	if !ok {
		return err
	}
	return vm.enterCatch(f, inst)
}

func (vm *VM) instanceToError(f *frame, inst *Instance) error {
	msg := ""
	if prop, ok := vm.st.FindProperty(inst.Class, "message"); ok && prop.Index < len(inst.Props) {
		msg, _ = inst.Props[prop.Index].(string)
	}
	stack := make([]StackFrame, len(vm.stack))
	for i, fr := range vm.stack {
		stack[i] = StackFrame{Name: fr.fn.Name, SourceLine: fr.fn.Line}
	}
	return &exceptionError{inst: inst, rt: newRuntimeError(inst.Class.Name, msg, stack)}
}

// exceptionError wraps a raised Instance in a Go error without losing the
// original value, so an enclosing frame's try-region can still match on the
// instance's class instead of just a formatted string.
type exceptionError struct {
	inst *Instance
	rt   *RuntimeError
}

func (e *exceptionError) Error() string { return e.rt.Error() }

func (vm *VM) errorToInstance(err error) (*Instance, bool) {
	if ee, ok := err.(*exceptionError); ok {
		return ee.inst, true
	}
	return nil, false
}

// valueIsClassOrSub reports whether v's runtime type is cls or a subclass of
// it, covering both boxed primitives/containers and user *Instance values
// (spec.md §7's bad-typecast detection operates on any of these via `.@()`).
func valueIsClassOrSub(v interface{}, cls *symtab.Class) bool {
	switch t := v.(type) {
	case nil:
		return true
	case int64:
		return cls.Name == "integer"
	case float64:
		return cls.Name == "double"
	case string:
		return cls.Name == "string"
	case *List:
		return cls.Name == "list"
	case *Hash:
		return cls.Name == "hash"
	case *Tuple:
		return cls.Name == "tuple"
	case *Instance:
		return classIsOrInherits(t.Class, cls.ID)
	default:
		return false
	}
}

func classIsOrInherits(cls *symtab.Class, id uint16) bool {
	for c := cls; c != nil; c = c.Parent {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (vm *VM) internalErrorf(f *frame, format string, args ...interface{}) error {
	return fmt.Errorf("lily: internal error in %s: %s", f.fn.Name, fmt.Sprintf(format, args...))
}

// raiseErrf builds a bootstrap exception instance of kind and raises it
// through the normal try/catch machinery, so builtin-detected failures
// (division by zero, a bad subscript) behave identically to a user `raise`.
func (vm *VM) raiseErrf(f *frame, kind diag.Kind, format string, args ...interface{}) error {
	clsName := kind.String()
	cls, ok := vm.st.ClassByName(clsName)
	if !ok {
		return diag.Raise(kind, f.fn.Line, format, args...)
	}
	inst := &Instance{Class: cls, Props: make([]interface{}, cls.TotalPropertyCount())}
	if prop, ok := vm.st.FindProperty(cls, "message"); ok {
		inst.Props[prop.Index] = fmt.Sprintf(format, args...)
	}
	return vm.enterCatch(f, inst)
}

func (vm *VM) subscriptGet(f *frame, target, index interface{}) (interface{}, error) {
	switch t := target.(type) {
	case *List:
		i := int(asInt(index))
		if i < 0 || i >= len(t.Elems) {
			return nil, vm.raiseErrf(f, diag.IndexError, "index %d is out of range", i)
		}
		return t.Elems[i], nil
	case *Tuple:
		i := int(asInt(index))
		if i < 0 || i >= len(t.Elems) {
			return nil, vm.raiseErrf(f, diag.IndexError, "index %d is out of range", i)
		}
		return t.Elems[i], nil
	case *Hash:
		v, ok := t.get(index)
		if !ok {
			return nil, vm.raiseErrf(f, diag.KeyError, "key not found in hash")
		}
		return v, nil
	default:
		return nil, vm.raiseErrf(f, diag.ValueError, "value does not support subscripting")
	}
}

func (vm *VM) subscriptSet(f *frame, target, index, value interface{}) error {
	switch t := target.(type) {
	case *List:
		i := int(asInt(index))
		if i < 0 || i >= len(t.Elems) {
			return vm.raiseErrf(f, diag.IndexError, "index %d is out of range", i)
		}
		t.Elems[i] = value
		return nil
	case *Hash:
		t.set(index, value)
		return nil
	default:
		return vm.raiseErrf(f, diag.ValueError, "value does not support subscript assignment")
	}
}

func asCallee(v interface{}) (*bytecode.Function, bool) {
	fn, ok := v.(*bytecode.Function)
	return fn, ok
}

func asInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asDbl(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asStr(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

// formatDisplay renders a value the way show prints it at the top level:
// strings raw (no quotes), everything else in its literal form. Nested
// container elements are rendered by formatLiteral instead, so a string
// inside a list is still distinguishable from its neighbors.
func formatDisplay(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return formatLiteral(v)
}

// formatLiteral renders v the way it would read back as a lily literal
// (spec.md §8's "literal round-trip" property), recursing into containers.
func formatLiteral(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%g", t)
	case string:
		return formatQuotedString(t)
	case *List:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = formatLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Hash:
		parts := make([]string, len(t.Pairs))
		for i, p := range t.Pairs {
			parts[i] = formatLiteral(p.Key) + " => " + formatLiteral(p.Value)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Tuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = formatLiteral(e)
		}
		return "<[" + strings.Join(parts, ", ") + "]>"
	case *Instance:
		if len(t.VariantFields) > 0 || (t.Class.Enum != nil && len(t.Class.VariantFields) == 0) {
			if len(t.VariantFields) == 0 {
				return t.Class.Name
			}
			parts := make([]string, len(t.VariantFields))
			for i, e := range t.VariantFields {
				parts[i] = formatLiteral(e)
			}
			return t.Class.Name + "(" + strings.Join(parts, ", ") + ")"
		}
		return t.Class.Name
	case *bytecode.Function:
		return "function " + t.Name
	default:
		return fmt.Sprintf("%v", t)
	}
}

func formatQuotedString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func compareNumeric(a, b interface{}) int {
	if _, ok := a.(float64); ok {
		da, db := asDbl(a), asDbl(b)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	}
	if _, ok := b.(float64); ok {
		da, db := asDbl(a), asDbl(b)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	}
	ia, ib := asInt(a), asInt(b)
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	default:
		return 0
	}
}
