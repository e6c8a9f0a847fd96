package bytecode

import (
	"testing"

	"github.com/kristofer/lily/pkg/symtab"
	"github.com/stretchr/testify/require"
)

func TestOpcodeStringNamesKnownOps(t *testing.T) {
	require.Equal(t, "LOAD_INTEGER", OpLoadInteger.String())
	require.Equal(t, "UPCAST", OpUpcast.String())
	require.Equal(t, "CALL_NATIVE", OpCallNative.String())
	require.Equal(t, "LEN", OpLen.String())
}

func TestOpcodeStringUnknownIsUnknown(t *testing.T) {
	require.Equal(t, "UNKNOWN", Opcode(9999).String())
}

func TestOpcodesAreSequentialAndDistinct(t *testing.T) {
	seen := map[Opcode]bool{}
	ops := []Opcode{
		OpLoadInteger, OpLoadDouble, OpLoadString, OpLoadReadonly, OpLoadGlobal, OpLoadLocal,
		OpAssignLocal, OpAssignGlobal, OpAssignUpvalue,
		OpIntAdd, OpIntSub, OpIntMul, OpIntDiv, OpIntMod,
		OpDblAdd, OpDblSub, OpDblMul, OpDblDiv,
		OpConcat, OpNegate, OpLogicalNot,
		OpBitAnd, OpBitOr, OpBitXor, OpShiftLeft, OpShiftRight,
		OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe,
		OpJump, OpJumpIfFalse, OpJumpIfTrue,
		OpBuildList, OpBuildHash, OpBuildTuple, OpSubscriptGet, OpSubscriptSet, OpBuildVariant,
		OpGetProperty, OpSetProperty, OpNewInstance, OpUpcast,
		OpCallNative, OpCallForeign, OpReturnVal, OpReturnVoid,
		OpTryEnter, OpTryLeave, OpRaise, OpCatchMatch, OpCatchBind,
		OpMatchDispatch, OpVariantDecompose,
		OpShow, OpPrint, OpLen,
	}
	for i, op := range ops {
		require.Equal(t, Opcode(i), op)
		require.Falsef(t, seen[op], "duplicate opcode value for %s", op)
		seen[op] = true
	}
}

func TestFunctionParamTypesNeverIncludesSelf(t *testing.T) {
	// A constructor's ParamTypes is populated by the emitter from decl.Params
	// alone; self is never appended to it, so a 2-arg constructor has
	// exactly 2 entries in ParamTypes regardless of IsConstructor.
	st := symtab.New()
	intTyp := st.ClassByNameMust("integer").DefaultType
	fn := &Function{
		Name:          "new",
		ParamCount:    2,
		ParamTypes:    []*symtab.Type{intTyp, intTyp},
		IsConstructor: true,
	}
	require.Len(t, fn.ParamTypes, 2)
}
