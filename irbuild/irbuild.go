// Package irbuild centralizes this module's use of github.com/llir/llvm's
// IR construction API, the same library teacher's cmd/x/llir.go builds IR
// with. Every other package reaches llir/llvm only through these thin
// wrappers, the way cmd/x/llir.go is the one file in the teacher tool that
// touches ir.NewBlock/ir.NewFunction/constant.NewInt directly — it keeps
// the mechanical "append instruction to block" bookkeeping in one place
// instead of scattered across the lifter.
package irbuild

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// NewModule returns a new, empty LLVM IR module.
func NewModule() *ir.Module {
	return ir.NewModule()
}

// NewFunc declares a function with the given name, return type and
// parameters, without attaching it to any module. Functions with no blocks
// are declarations (see spec.md section 7, "declaration-only function").
func NewFunc(name string, retType types.Type, params ...*ir.Param) *ir.Function {
	return ir.NewFunc(name, retType, params...)
}

// NewParam declares a named function parameter.
func NewParam(name string, typ types.Type) *ir.Param {
	return ir.NewParam(name, typ)
}

// NewBlock creates a detached basic block; the caller is responsible for
// appending it to a function's Blocks slice.
func NewBlock(name string) *ir.BasicBlock {
	return ir.NewBlock(name)
}

// AppendBlock appends block to f's block list.
func AppendBlock(f *ir.Function, block *ir.BasicBlock) {
	f.Blocks = append(f.Blocks, block)
}

// AppendFunc appends f to m's function list.
func AppendFunc(m *ir.Module, f *ir.Function) {
	m.Funcs = append(m.Funcs, f)
}

// Emit appends inst to block's instruction list and returns it, so call
// sites can build and emit in one expression.
func Emit[I ir.Instruction](block *ir.BasicBlock, inst I) I {
	block.Insts = append(block.Insts, inst)
	return inst
}

// Alloca stack-allocates a value of the given type, appending the alloca to
// block.
func Alloca(block *ir.BasicBlock, elemType types.Type) *ir.InstAlloca {
	return Emit(block, ir.NewAlloca(elemType))
}

// Load emits a load of src (a pointer to elemType) into block.
func Load(block *ir.BasicBlock, elemType types.Type, src value.Value) *ir.InstLoad {
	inst := ir.NewLoad(src)
	inst.Typ = elemType
	return Emit(block, inst)
}

// Store emits a store of src into dst.
func Store(block *ir.BasicBlock, src, dst value.Value) *ir.InstStore {
	return Emit(block, ir.NewStore(src, dst))
}

// NewGlobalDecl declares an external global of the given type, with no
// initializer, attached to no module.
func NewGlobalDecl(name string, typ types.Type) *ir.Global {
	return ir.NewGlobalDecl(name, typ)
}

// InsertValue emits an insertvalue, setting one field of an aggregate.
func InsertValue(block *ir.BasicBlock, agg, elem value.Value, index uint64) *ir.InstInsertValue {
	return Emit(block, ir.NewInsertValue(agg, elem, index))
}

// ExtractValue emits an extractvalue, reading one field of an aggregate.
func ExtractValue(block *ir.BasicBlock, agg value.Value, index uint64) *ir.InstExtractValue {
	return Emit(block, ir.NewExtractValue(agg, index))
}

// GEP emits a (constant-index) getelementptr into block, indexing a single
// field of a struct or a single element of an array.
func GEP(block *ir.BasicBlock, elemType types.Type, src value.Value, indices ...int64) *ir.InstGetElementPtr {
	idxVals := make([]value.Value, len(indices))
	for i, idx := range indices {
		idxVals[i] = constant.NewInt(types.I32, idx)
	}
	inst := ir.NewGetElementPtr(src, idxVals...)
	inst.ElemType = elemType
	return Emit(block, inst)
}

// Call emits a call to callee with the given arguments.
func Call(block *ir.BasicBlock, callee value.Value, args ...value.Value) *ir.InstCall {
	return Emit(block, ir.NewCall(callee, args...))
}

// Add emits an integer add.
func Add(block *ir.BasicBlock, x, y value.Value) *ir.InstAdd {
	return Emit(block, ir.NewAdd(x, y))
}

// Sub emits an integer subtract.
func Sub(block *ir.BasicBlock, x, y value.Value) *ir.InstSub {
	return Emit(block, ir.NewSub(x, y))
}

// ICmp emits an integer comparison under the given predicate.
func ICmp(block *ir.BasicBlock, pred enum.IPred, x, y value.Value) *ir.InstICmp {
	return Emit(block, ir.NewICmp(pred, x, y))
}

// PtrToInt emits a pointer-to-integer cast.
func PtrToInt(block *ir.BasicBlock, from value.Value, to types.Type) *ir.InstPtrToInt {
	return Emit(block, ir.NewPtrToInt(from, to))
}

// IntToPtr emits an integer-to-pointer cast.
func IntToPtr(block *ir.BasicBlock, from value.Value, to types.Type) *ir.InstIntToPtr {
	return Emit(block, ir.NewIntToPtr(from, to))
}

// Trunc emits a truncating integer cast.
func Trunc(block *ir.BasicBlock, from value.Value, to types.Type) *ir.InstTrunc {
	return Emit(block, ir.NewTrunc(from, to))
}

// ZExt emits a zero-extending integer cast.
func ZExt(block *ir.BasicBlock, from value.Value, to types.Type) *ir.InstZExt {
	return Emit(block, ir.NewZExt(from, to))
}

// Br sets block's terminator to an unconditional branch to target.
func Br(block *ir.BasicBlock, target *ir.BasicBlock) *ir.TermBr {
	term := ir.NewBr(target)
	block.Term = term
	return term
}

// CondBr sets block's terminator to a conditional branch.
func CondBr(block *ir.BasicBlock, cond value.Value, targetTrue, targetFalse *ir.BasicBlock) *ir.TermCondBr {
	term := ir.NewCondBr(cond, targetTrue, targetFalse)
	block.Term = term
	return term
}

// Ret sets block's terminator to a return of x (or void if x is nil).
func Ret(block *ir.BasicBlock, x value.Value) *ir.TermRet {
	var term *ir.TermRet
	if x == nil {
		term = ir.NewRet(nil)
	} else {
		term = ir.NewRet(x)
	}
	block.Term = term
	return term
}

// ConstInt returns an integer constant of the given width and value.
func ConstInt(typ *types.IntType, x int64) *constant.Int {
	return constant.NewInt(typ, x)
}

// Undef returns an undefined value of the given type, used to mute state
// escapes (spec.md section 4.2, "Mute state escape").
func Undef(typ types.Type) *constant.Undef {
	return constant.NewUndef(typ)
}

// NullPtr returns the null pointer constant of the given pointer type.
func NullPtr(typ *types.PointerType) *constant.Null {
	return constant.NewNull(typ)
}
