package lift

import (
	"fmt"
	"hash/fnv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"github.com/mewmew/liftgo/addr"
)

// injectTypeHints implements spec.md section 4.6's type-hint injection. Two
// options gate its two distinct behaviors: a hint that carries a concrete
// value is only stored back when Options.StoreInferredRegisterValues is
// set ("optionally overwrite it with a provided concrete value"); a hint
// that carries no concrete value, only a goal type, is only routed through
// the opaque taint call when Options.SymbolicRegisterTypes is set. In both
// cases the taint wrap itself only fires for a pointer goal type — a
// non-pointer goal type (e.g. a narrowed integer width) needs no opaque
// wrapper, since only a pointer goal type is the kind of narrowing
// downstream passes must be kept from assuming away.
func (l *FunctionLifter) injectTypeHints(block *ir.BasicBlock, instPC addr.Addr) {
	l.Types.QueryRegisterStateAtInstruction(l.decl.Address, instPC, func(hint RegisterHint) {
		if !l.layout.Has(hint.Register) {
			return
		}
		if hint.Value != nil {
			if !l.Options.StoreInferredRegisterValues {
				return
			}
			val := hint.Value
			if isPointerGoalType(hint.Type) {
				val = l.intrinsics.Taint(block, typeHintDigest(hint.Type), l.layout.RegType, val)
			}
			l.stateArg.Store(block, hint.Register, val)
			return
		}
		if !l.Options.SymbolicRegisterTypes || !isPointerGoalType(hint.Type) {
			return
		}
		var val value.Value = l.stateArg.Load(block, hint.Register)
		val = l.intrinsics.Taint(block, typeHintDigest(hint.Type), l.layout.RegType, val)
		l.stateArg.Store(block, hint.Register, val)
	})
}

// isPointerGoalType reports whether a goal-type name (as resolved by
// provider.TypeRegistry.Resolve) names a pointer type, the only case spec.md
// section 4.6 wraps in a taint call.
func isPointerGoalType(goalType string) bool {
	switch goalType {
	case "ptr", "pointer":
		return true
	default:
		return false
	}
}

// typeHintDigest derives the same short stable digest the taint-function
// cache keys on from a goal-type name, so that two hints naming the same
// goal type reuse one declared taint function (spec.md section 4.6,
// "declared per goal-type, reused across uses").
func typeHintDigest(goalType string) string {
	h := fnv.New32a()
	fmt.Fprint(h, goalType)
	return fmt.Sprintf("%08x", h.Sum32())
}
