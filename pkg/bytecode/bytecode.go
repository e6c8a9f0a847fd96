// Package bytecode defines lily's register-machine bytecode: opcodes, the
// instruction format, and the per-function prototype the emitter writes
// into and the vm reads from (spec.md §4.5 "Bytecode").
//
// Architecture:
//
// Unlike the teacher repo's stack machine, this is a register machine: each
// function has its own flat window of registers (sized by its declared
// register count), and opcodes read/write registers by index instead of
// pushing/popping a shared value stack (spec.md §4.6). An instruction is a
// 16-bit opcode plus up to three 16-bit inline operands — register spots,
// literal-table spots, small immediates, or same-function jump offsets
// (spec.md §4.5).
package bytecode

import "github.com/kristofer/lily/pkg/symtab"

// Opcode identifies a single vm operation.
type Opcode uint16

const (
	// ---- Load family ----
	OpLoadInteger Opcode = iota // A: register, B: literal spot
	OpLoadDouble                // A: register, B: literal spot
	OpLoadString                // A: register, B: literal spot
	OpLoadReadonly              // A: register, B: function-table index (constant operand)
	OpLoadGlobal                // A: register, B: global slot
	OpLoadLocal                 // A: register, B: local slot (copies within the same frame)

	// ---- Move family ----
	OpAssignLocal  // A: local slot, B: source register
	OpAssignGlobal // A: global slot, B: source register
	OpAssignUpvalue // unsupported: always raises (Design Notes §9(b))

	// ---- Arithmetic ----
	OpIntAdd
	OpIntSub
	OpIntMul
	OpIntDiv
	OpIntMod
	OpDblAdd
	OpDblSub
	OpDblMul
	OpDblDiv
	OpConcat
	OpNegate
	OpLogicalNot
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShiftLeft
	OpShiftRight

	// ---- Compare + branch ----
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpJump         // A: absolute code offset
	OpJumpIfFalse  // A: absolute code offset, B: condition register
	OpJumpIfTrue   // A: absolute code offset, B: condition register

	// ---- Aggregate ----
	OpBuildList    // A: first source register, B: count, Result: dest register
	OpBuildHash    // A: first key register, B: interleaved key/value slot count, Result: dest register
	OpBuildTuple   // A: first source register, B: count, Result: dest register
	OpSubscriptGet // A: target register, B: index register, Result: dest register
	OpSubscriptSet // A: target register, B: index register, C: value register
	OpBuildVariant // B: class id, C: first field register (field count read from class), Result: dest register

	// ---- Class ----
	OpGetProperty // A: instance register, B: property index, Result: dest register
	OpSetProperty // A: instance register, B: property index, C: value register
	OpNewInstance // B: class id, Result: dest register
	OpUpcast      // A: source register, B: target class id, Result: dest register; raises BadTypecastError if the value isn't a B-or-subclass instance

	// ---- Call ----
	OpCallNative // A: callee register (readonly/function value), B: first arg register, C: arg count; result slot is the next operand (Result field)
	OpCallForeign
	OpReturnVal
	OpReturnVoid

	// ---- Exception ----
	OpTryEnter  // A: code offset of the except-chain head
	OpTryLeave
	OpRaise     // A: register holding the exception instance
	OpCatchMatch // A: code offset to skip to on mismatch (patched in after emission), B: class id to test against, C: subject register, or -1 to test the frame's pending exception instead (try/except uses -1; match/case passes its subject register)
	OpCatchBind  // A: register to bind the pending exception to (also clears it)

	// ---- Match ----
	OpMatchDispatch   // reserved: pkg/compiler never emits it and the vm rejects it; match compiles through OpCatchMatch
	OpVariantDecompose // A: first dest register, B: subject register, C: field count

	// ---- I/O ----
	// show and the lexer's implicit template-mode print are the only two
	// builtin calls wired as dedicated opcodes rather than function values
	// (spec.md §6's puts_sink); both resolve at compile time (compileCall),
	// so there's no general builtin-function table to bootstrap.
	OpShow  // A: value register; formats and writes it plus a trailing newline to the sink
	OpPrint // A: value register holding a string; writes it verbatim, no added newline or quoting

	// OpLen backs the `size` method every builtin container class exposes
	// (spec.md §4.5's emitter example assumes at least one builtin container
	// method exists). Result: element count of the list/hash/tuple in A.
	OpLen
)

// Instruction is one bytecode instruction: an opcode plus up to three
// 16-bit inline operands. Result carries the destination register for the
// opcodes whose operand comments name one (the Call family, the builders,
// subscript/property reads, OpNewInstance, OpUpcast, OpLen).
type Instruction struct {
	Op     Opcode
	A, B, C int
	Result  int
}

// String names an opcode for disassembly and error messages.
func (op Opcode) String() string {
	names := [...]string{
		"LOAD_INTEGER", "LOAD_DOUBLE", "LOAD_STRING", "LOAD_READONLY", "LOAD_GLOBAL", "LOAD_LOCAL",
		"ASSIGN_LOCAL", "ASSIGN_GLOBAL", "ASSIGN_UPVALUE",
		"INT_ADD", "INT_SUB", "INT_MUL", "INT_DIV", "INT_MOD",
		"DBL_ADD", "DBL_SUB", "DBL_MUL", "DBL_DIV",
		"CONCAT", "NEGATE", "LOGICAL_NOT",
		"BIT_AND", "BIT_OR", "BIT_XOR", "SHIFT_LEFT", "SHIFT_RIGHT",
		"EQ", "NEQ", "LT", "LE", "GT", "GE",
		"JUMP", "JUMP_IF_FALSE", "JUMP_IF_TRUE",
		"BUILD_LIST", "BUILD_HASH", "BUILD_TUPLE", "SUBSCRIPT_GET", "SUBSCRIPT_SET", "BUILD_VARIANT",
		"GET_PROPERTY", "SET_PROPERTY", "NEW_INSTANCE", "UPCAST",
		"CALL_NATIVE", "CALL_FOREIGN", "RETURN_VAL", "RETURN_VOID",
		"TRY_ENTER", "TRY_LEAVE", "RAISE", "CATCH_MATCH", "CATCH_BIND",
		"MATCH_DISPATCH", "VARIANT_DECOMPOSE",
		"SHOW", "PRINT", "LEN",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "UNKNOWN"
}

// RegisterInfo describes one register slot of a Function: a static type
// field and whether it's a parameter. pkg/compiler leaves both at their
// zero values, and the vm reads only len(Registers) to size a frame.
type RegisterInfo struct {
	Type      *symtab.Type
	IsParam   bool
}

// Function is one compiled function's complete prototype: its code vector
// and its register-info array (spec.md §4.6: "a pointer to the current
// function (code vector + register-info array)").
type Function struct {
	Name       string
	Code       []Instruction
	Registers  []RegisterInfo
	ParamCount int
	// ParamTypes holds each declared parameter's resolved static type, in
	// order, for the emitter's call-site type-checking (spec.md §4.5); it
	// never includes the implicit leading self of a method/constructor,
	// since self is declared separately from decl.Params.
	ParamTypes []*symtab.Type
	IsVarargs  bool
	ReturnType *symtab.Type

	// Class is non-nil when this function is a method or constructor; it's
	// the declaring class (used for super-dispatch and for building self's
	// type from the class's currently-visible generics).
	Class *symtab.Class
	IsConstructor bool

	// Foreign, when non-nil, makes this a foreign function (spec.md §4.6):
	// the vm calls it directly instead of executing Code. The callback
	// receives boxed vm values (each an interface{} wrapping a *vm.Value,
	// kept opaque here to avoid an import cycle between pkg/bytecode and
	// pkg/vm) and returns a boxed result or an error, modeled as an
	// explicit Go error rather than the C ABI's (vm, function,
	// operand-pointer) triple (Design Notes §9).
	Foreign func(args []interface{}) (interface{}, error)

	// Line is the source line the function was declared on, used for
	// traceback frames naming this function.
	Line int
}

// Module is the compiled output for one source unit: the implicit top-level
// "main" function plus every class/enum/define it declared, and the
// symtab literal table those functions index into.
type Module struct {
	Main      *Function
	Functions []*Function
	Symtab    *symtab.Symtab
}
