package cleanup

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// operandsOf returns the operand values an instruction reads, covering
// exactly the instruction kinds package irbuild emits. The use-counting and
// use-checking stages in this package (dead-code elimination, alloca
// promotion, aggregate scalarization) go through this single switch, so
// adding a new irbuild wrapper means extending this one place.
func operandsOf(inst ir.Instruction) []value.Value {
	switch i := inst.(type) {
	case *ir.InstAlloca:
		return nil
	case *ir.InstLoad:
		return []value.Value{i.Src}
	case *ir.InstStore:
		return []value.Value{i.Src, i.Dst}
	case *ir.InstGetElementPtr:
		ops := []value.Value{i.Src}
		ops = append(ops, i.Indices...)
		return ops
	case *ir.InstCall:
		ops := []value.Value{i.Callee}
		return append(ops, i.Args...)
	case *ir.InstAdd:
		return []value.Value{i.X, i.Y}
	case *ir.InstSub:
		return []value.Value{i.X, i.Y}
	case *ir.InstICmp:
		return []value.Value{i.X, i.Y}
	case *ir.InstPtrToInt:
		return []value.Value{i.From}
	case *ir.InstIntToPtr:
		return []value.Value{i.From}
	case *ir.InstTrunc:
		return []value.Value{i.From}
	case *ir.InstZExt:
		return []value.Value{i.From}
	case *ir.InstInsertValue:
		return []value.Value{i.X, i.Elem}
	case *ir.InstExtractValue:
		return []value.Value{i.X}
	default:
		return nil
	}
}

// termOperands returns the operand values a block terminator reads.
func termOperands(term ir.Terminator) []value.Value {
	switch t := term.(type) {
	case *ir.TermRet:
		if t.X == nil {
			return nil
		}
		return []value.Value{t.X}
	case *ir.TermBr:
		return nil
	case *ir.TermCondBr:
		return []value.Value{t.Cond}
	default:
		return nil
	}
}

// hasSideEffects reports whether an instruction must be kept even if its
// result (if any) has no remaining uses: stores and calls are never
// removed by EliminateDeadCode, only by EliminateDeadStores' narrower
// store-specific analysis.
func hasSideEffects(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.InstStore, *ir.InstCall:
		return true
	default:
		return false
	}
}
