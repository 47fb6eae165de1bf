// Package cleanup implements the post-lift flattening and simplification
// pipeline of spec.md section 4.7: nine small, independently testable
// passes over a single *ir.Function, run in a fixed order. None of them are
// LLVM's real optimizer (this module carries no LLVM dependency beyond the
// IR data structures github.com/llir/llvm provides), but each pass's name,
// input and effect matches the corresponding llvm::create...Pass() call the
// source project's RecursivelyInlineLiftedFunctionIntoNativeFunction makes,
// restricted to the instruction shapes package irbuild actually emits.
package cleanup

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Pipeline runs the nine cleanup stages in order. Lookup resolves a callee
// function's name to its current definition, used by InlineCallees; it may
// return nil for names with no known body (e.g. the opaque intrinsics,
// which are never inlined).
type Pipeline struct {
	Lookup func(name string) *ir.Function
}

// NewPipeline returns a Pipeline that resolves callees through lookup.
func NewPipeline(lookup func(name string) *ir.Function) *Pipeline {
	return &Pipeline{Lookup: lookup}
}

// Run applies every stage to fn, in the fixed order spec.md section 4.7
// specifies.
func (p *Pipeline) Run(fn *ir.Function) {
	p.InlineCallees(fn)
	SimplifyCFG(fn)
	PromoteAllocas(fn)
	Reassociate(fn)
	EliminateDeadStores(fn)
	EliminateDeadCode(fn)
	ScalarizeAggregates(fn)
	EliminateDeadCode(fn)
	CombineInstructions(fn)
	StripLocalNames(fn)
}

// InlineCallees recursively inlines calls to known, simple callees to a
// fixed point. A callee is inlinable when Lookup resolves it to a function
// with exactly one basic block containing no nested calls or allocas (the
// "restricted" part of this restricted inliner — anything with its own
// control flow or storage is left as a real call for the entity lifter's
// call graph to track instead).
func (p *Pipeline) InlineCallees(fn *ir.Function) {
	if p.Lookup == nil {
		return
	}
	for {
		if !p.inlineOnePass(fn) {
			return
		}
	}
}

func (p *Pipeline) inlineOnePass(fn *ir.Function) bool {
	changed := false
	for _, block := range fn.Blocks {
		for i := 0; i < len(block.Insts); i++ {
			call, ok := block.Insts[i].(*ir.InstCall)
			if !ok {
				continue
			}
			calleeRef, ok := call.Callee.(*ir.Function)
			if !ok {
				continue
			}
			callee := p.Lookup(calleeRef.Name())
			if callee == nil || !inlinable(callee) {
				continue
			}
			p.inlineCall(fn, block, i, call, callee)
			changed = true
			break // block.Insts was mutated; restart this block next pass
		}
		if changed {
			break
		}
	}
	return changed
}

// inlinable reports whether callee is simple enough for this restricted
// inliner: a single block, no nested calls, no local storage.
func inlinable(callee *ir.Function) bool {
	if len(callee.Blocks) != 1 {
		return false
	}
	for _, inst := range callee.Blocks[0].Insts {
		switch inst.(type) {
		case *ir.InstCall, *ir.InstAlloca:
			return false
		}
	}
	return true
}

// inlineCall replaces call in block with a clone of callee's single block's
// instructions, remapping callee's parameters to call's arguments, then
// rewrites every remaining use of call to the cloned return value (when
// callee returns one).
func (p *Pipeline) inlineCall(fn *ir.Function, block *ir.BasicBlock, callIdx int, call *ir.InstCall, callee *ir.Function) {
	remap := make(map[value.Value]value.Value)
	for i, param := range callee.Params {
		if i < len(call.Args) {
			remap[param] = call.Args[i]
		}
	}

	calleeBlock := callee.Blocks[0]
	cloned := make([]ir.Instruction, 0, len(calleeBlock.Insts))
	for _, inst := range calleeBlock.Insts {
		clone := cloneInst(inst, remap)
		cloned = append(cloned, clone)
	}

	var retVal value.Value
	if term, ok := calleeBlock.Term.(*ir.TermRet); ok && term.X != nil {
		retVal = substitute(term.X, remap)
	}

	rest := append([]ir.Instruction{}, block.Insts[callIdx+1:]...)
	block.Insts = append(block.Insts[:callIdx], cloned...)
	block.Insts = append(block.Insts, rest...)

	if retVal != nil {
		replaceUses(fn, call, retVal)
	} else {
		removeInst(block, call)
	}
}

// substitute returns remap[v] if present, else v unchanged.
func substitute(v value.Value, remap map[value.Value]value.Value) value.Value {
	if mapped, ok := remap[v]; ok {
		return mapped
	}
	return v
}

// SimplifyCFG merges a block ending in an unconditional branch into its
// sole successor when that successor has no other predecessor, and drops
// blocks unreachable from the entry block.
func SimplifyCFG(fn *ir.Function) {
	mergeStraightLineBlocks(fn)
	dropUnreachableBlocks(fn)
}

func mergeStraightLineBlocks(fn *ir.Function) {
	for {
		merged := false
		preds := predecessorCounts(fn)
		for _, block := range fn.Blocks {
			br, ok := block.Term.(*ir.TermBr)
			if !ok {
				continue
			}
			target := br.Target
			if target == block || preds[target] != 1 {
				continue
			}
			block.Insts = append(block.Insts, target.Insts...)
			block.Term = target.Term
			removeBlock(fn, target)
			merged = true
			break
		}
		if !merged {
			return
		}
	}
}

func dropUnreachableBlocks(fn *ir.Function) {
	if len(fn.Blocks) == 0 {
		return
	}
	reachable := map[*ir.BasicBlock]bool{fn.Blocks[0]: true}
	worklist := []*ir.BasicBlock{fn.Blocks[0]}
	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		for _, succ := range successors(b) {
			if !reachable[succ] {
				reachable[succ] = true
				worklist = append(worklist, succ)
			}
		}
	}
	kept := fn.Blocks[:0]
	for _, b := range fn.Blocks {
		if reachable[b] {
			kept = append(kept, b)
		}
	}
	fn.Blocks = kept
}

func successors(b *ir.BasicBlock) []*ir.BasicBlock {
	switch t := b.Term.(type) {
	case *ir.TermBr:
		return []*ir.BasicBlock{t.Target}
	case *ir.TermCondBr:
		return []*ir.BasicBlock{t.TargetTrue, t.TargetFalse}
	default:
		return nil
	}
}

func predecessorCounts(fn *ir.Function) map[*ir.BasicBlock]int {
	counts := make(map[*ir.BasicBlock]int)
	for _, b := range fn.Blocks {
		for _, succ := range successors(b) {
			counts[succ]++
		}
	}
	return counts
}

func removeBlock(fn *ir.Function, target *ir.BasicBlock) {
	kept := fn.Blocks[:0]
	for _, b := range fn.Blocks {
		if b != target {
			kept = append(kept, b)
		}
	}
	fn.Blocks = kept
}

// PromoteAllocas is a restricted mem2reg: only allocas whose every use is a
// plain Load or Store (never passed to a call, GEP, or any other
// instruction — i.e. the address never escapes) and whose loads and stores
// all occur within a single basic block are promoted, replacing every Load
// with the value most recently Stored in program order and dropping the
// alloca and its stores entirely. Allocas threaded across block boundaries
// (true SSA construction with phi nodes) are left in place; spec.md section
// 4.7 calls this pass out as restricted for exactly this reason.
func PromoteAllocas(fn *ir.Function) {
	for _, block := range fn.Blocks {
		promoteAllocasInBlock(fn, block)
	}
}

func promoteAllocasInBlock(fn *ir.Function, block *ir.BasicBlock) {
	for _, inst := range append([]ir.Instruction{}, block.Insts...) {
		alloca, ok := inst.(*ir.InstAlloca)
		if !ok {
			continue
		}
		if !onlyLoadStoreInOneBlock(fn, alloca, block) {
			continue
		}
		promoteSingleBlockAlloca(fn, block, alloca)
	}
}

func onlyLoadStoreInOneBlock(fn *ir.Function, alloca *ir.InstAlloca, owner *ir.BasicBlock) bool {
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			for _, op := range operandsOf(inst) {
				if op != value.Value(alloca) {
					continue
				}
				switch inst.(type) {
				case *ir.InstLoad, *ir.InstStore:
					if block != owner {
						return false
					}
				default:
					return false
				}
			}
		}
		for _, op := range termOperands(block.Term) {
			if op == value.Value(alloca) {
				return false
			}
		}
	}
	return true
}

func promoteSingleBlockAlloca(fn *ir.Function, block *ir.BasicBlock, alloca *ir.InstAlloca) {
	var current value.Value
	kept := make([]ir.Instruction, 0, len(block.Insts))
	for _, inst := range block.Insts {
		switch i := inst.(type) {
		case *ir.InstStore:
			if i.Dst == value.Value(alloca) {
				current = i.Src
				continue
			}
		case *ir.InstLoad:
			if i.Src == value.Value(alloca) && current != nil {
				replaceUses(fn, i, current)
				continue
			}
		case *ir.InstAlloca:
			if i == alloca {
				continue
			}
		}
		kept = append(kept, inst)
	}
	block.Insts = kept
}

// Reassociate canonically reorders the two operands of every commutative
// integer add/mul instruction by operand name, so that equivalent
// expressions built in different orders (e.g. across two lifted call
// sites) compare equal textually. Neither Add nor (this module emits no
// Mul, so only Add is covered) changes value by operand order; this is a
// pure canonicalization with no effect on semantics.
func Reassociate(fn *ir.Function) {
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			add, ok := inst.(*ir.InstAdd)
			if !ok {
				continue
			}
			if operandName(add.X) > operandName(add.Y) {
				add.X, add.Y = add.Y, add.X
			}
		}
	}
}

func operandName(v value.Value) string {
	if named, ok := v.(value.Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("%v", v)
}

// EliminateDeadStores removes a Store to a given destination pointer when
// it is immediately followed, within the same block and with no
// intervening Load of that destination, by another Store to the same
// destination: the first store's value is never observed.
func EliminateDeadStores(fn *ir.Function) {
	for _, block := range fn.Blocks {
		lastStoreIdx := make(map[value.Value]int)
		dead := make(map[int]bool)
		for i, inst := range block.Insts {
			if load, ok := inst.(*ir.InstLoad); ok {
				delete(lastStoreIdx, load.Src)
			}
			store, ok := inst.(*ir.InstStore)
			if !ok {
				continue
			}
			if prev, ok := lastStoreIdx[store.Dst]; ok {
				dead[prev] = true
			}
			lastStoreIdx[store.Dst] = i
		}
		if len(dead) == 0 {
			continue
		}
		kept := block.Insts[:0]
		for i, inst := range block.Insts {
			if !dead[i] {
				kept = append(kept, inst)
			}
		}
		block.Insts = kept
	}
}

// EliminateDeadCode removes every instruction with no remaining uses,
// except those with side effects (stores, calls), to a fixed point.
func EliminateDeadCode(fn *ir.Function) {
	for {
		uses := countAllUses(fn)
		removed := false
		for _, block := range fn.Blocks {
			kept := block.Insts[:0]
			for _, inst := range block.Insts {
				named, isValue := inst.(value.Named)
				if !hasSideEffects(inst) && isValue && uses[named] == 0 {
					removed = true
					continue
				}
				kept = append(kept, inst)
			}
			block.Insts = kept
		}
		if !removed {
			return
		}
	}
}

func countAllUses(fn *ir.Function) map[value.Named]int {
	uses := make(map[value.Named]int)
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			for _, op := range operandsOf(inst) {
				if named, ok := op.(value.Named); ok {
					uses[named]++
				}
			}
		}
		for _, op := range termOperands(block.Term) {
			if named, ok := op.(value.Named); ok {
				uses[named]++
			}
		}
	}
	return uses
}

// ScalarizeAggregates is a restricted SROA: a struct alloca whose every use
// is a GetElementPtr with a constant field index (never a dynamic index,
// never the whole aggregate passed elsewhere) is split into one scalar
// alloca per field, with every such GEP replaced by the corresponding
// scalar alloca directly. The packed multi-return composite is built
// entirely in registers via insertvalue/extractvalue (see lift's
// packReturns), and the native wrapper's emulated-state alloca is passed
// whole to the lifted function, so neither is split by this pass.
func ScalarizeAggregates(fn *ir.Function) {
	for _, block := range fn.Blocks {
		for _, inst := range append([]ir.Instruction{}, block.Insts...) {
			alloca, ok := inst.(*ir.InstAlloca)
			if !ok {
				continue
			}
			scalarizeIfEligible(fn, block, alloca)
		}
	}
}

func scalarizeIfEligible(fn *ir.Function, block *ir.BasicBlock, alloca *ir.InstAlloca) {
	type fieldUse struct {
		gep   *ir.InstGetElementPtr
		field int64
	}
	structType, ok := alloca.ElemType.(*types.StructType)
	if !ok {
		return
	}
	var uses []fieldUse
	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			gep, ok := inst.(*ir.InstGetElementPtr)
			if !ok || gep.Src != value.Value(alloca) {
				for _, op := range operandsOf(inst) {
					if op == value.Value(alloca) {
						return // aggregate used other than through a GEP: not eligible
					}
				}
				continue
			}
			idx, ok := constantFieldIndex(gep)
			if !ok {
				return // dynamic index: not eligible
			}
			uses = append(uses, fieldUse{gep: gep, field: idx})
		}
		for _, op := range termOperands(b.Term) {
			if op == value.Value(alloca) {
				return
			}
		}
	}
	if len(uses) == 0 {
		return
	}
	scalars := make(map[int64]*ir.InstAlloca)
	for _, u := range uses {
		scalar, ok := scalars[u.field]
		if !ok {
			scalar = ir.NewAlloca(structType.Fields[u.field])
			scalars[u.field] = scalar
			insertAfter(block, alloca, scalar)
		}
		replaceUses(fn, u.gep, scalar)
		removeInstAnywhere(fn, u.gep)
	}
	removeInstAnywhere(fn, alloca)
}

func constantFieldIndex(gep *ir.InstGetElementPtr) (int64, bool) {
	if len(gep.Indices) != 2 {
		return 0, false
	}
	idxConst, ok := gep.Indices[1].(*constant.Int)
	if !ok {
		return 0, false
	}
	return idxConst.X.Int64(), true
}

func insertAfter(block *ir.BasicBlock, after, inst ir.Instruction) {
	for i, in := range block.Insts {
		if in == after {
			rest := append([]ir.Instruction{}, block.Insts[i+1:]...)
			block.Insts = append(block.Insts[:i+1], inst)
			block.Insts = append(block.Insts, rest...)
			return
		}
	}
	block.Insts = append(block.Insts, inst)
}

func removeInstAnywhere(fn *ir.Function, target ir.Instruction) {
	for _, block := range fn.Blocks {
		removeInst(block, target)
	}
}

func removeInst(block *ir.BasicBlock, target ir.Instruction) {
	kept := block.Insts[:0]
	for _, inst := range block.Insts {
		if inst != target {
			kept = append(kept, inst)
		}
	}
	block.Insts = kept
}

// CombineInstructions applies local peephole constant folds: an integer
// add or subtract whose two operands are both constant integers is replaced
// by its folded constant result. Comparisons are not folded.
func CombineInstructions(fn *ir.Function) {
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			folded, ok := foldConstant(inst)
			if !ok {
				continue
			}
			replaceUses(fn, inst, folded)
		}
	}
}

func foldConstant(inst ir.Instruction) (value.Value, bool) {
	switch i := inst.(type) {
	case *ir.InstAdd:
		x, ok1 := i.X.(*constant.Int)
		y, ok2 := i.Y.(*constant.Int)
		if ok1 && ok2 {
			return constant.NewInt(x.Typ, x.X.Int64()+y.X.Int64()), true
		}
	case *ir.InstSub:
		x, ok1 := i.X.(*constant.Int)
		y, ok2 := i.Y.(*constant.Int)
		if ok1 && ok2 {
			return constant.NewInt(x.Typ, x.X.Int64()-y.X.Int64()), true
		}
	}
	return nil, false
}

// StripLocalNames clears every instruction's explicit local name, letting
// the textual printer fall back to sequential numbering, matching the
// teacher's tool's preference for unnamed locals throughout cmd/x/llir.go.
func StripLocalNames(fn *ir.Function) {
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if named, ok := inst.(value.Named); ok {
				named.SetName("")
			}
		}
	}
}

// replaceUses rewrites every remaining reference to old, across every block
// of fn (instruction operands and terminator operands), to new.
func replaceUses(fn *ir.Function, old ir.Instruction, new value.Value) {
	oldVal, ok := old.(value.Value)
	if !ok {
		return
	}
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			rewriteOperands(inst, oldVal, new)
		}
		rewriteTermOperands(block.Term, oldVal, new)
	}
}

func rewriteOperands(inst ir.Instruction, old, new value.Value) {
	switch i := inst.(type) {
	case *ir.InstLoad:
		if i.Src == old {
			i.Src = new
		}
	case *ir.InstStore:
		if i.Src == old {
			i.Src = new
		}
		if i.Dst == old {
			i.Dst = new
		}
	case *ir.InstGetElementPtr:
		if i.Src == old {
			i.Src = new
		}
	case *ir.InstCall:
		if i.Callee == old {
			i.Callee = new
		}
		for j, a := range i.Args {
			if a == old {
				i.Args[j] = new
			}
		}
	case *ir.InstAdd:
		if i.X == old {
			i.X = new
		}
		if i.Y == old {
			i.Y = new
		}
	case *ir.InstSub:
		if i.X == old {
			i.X = new
		}
		if i.Y == old {
			i.Y = new
		}
	case *ir.InstICmp:
		if i.X == old {
			i.X = new
		}
		if i.Y == old {
			i.Y = new
		}
	case *ir.InstPtrToInt:
		if i.From == old {
			i.From = new
		}
	case *ir.InstIntToPtr:
		if i.From == old {
			i.From = new
		}
	case *ir.InstTrunc:
		if i.From == old {
			i.From = new
		}
	case *ir.InstZExt:
		if i.From == old {
			i.From = new
		}
	case *ir.InstInsertValue:
		if i.X == old {
			i.X = new
		}
		if i.Elem == old {
			i.Elem = new
		}
	case *ir.InstExtractValue:
		if i.X == old {
			i.X = new
		}
	}
}

func rewriteTermOperands(term ir.Terminator, old, new value.Value) {
	switch t := term.(type) {
	case *ir.TermRet:
		if t.X == old {
			t.X = new
		}
	case *ir.TermCondBr:
		if t.Cond == old {
			t.Cond = new
		}
	}
}

// cloneInst returns a fresh copy of inst with every operand present in
// remap substituted, used by InlineCallees to splice a callee's body into
// a caller without aliasing the callee's own instruction objects (which
// remain part of the callee's still-extant, un-inlined definition).
func cloneInst(inst ir.Instruction, remap map[value.Value]value.Value) ir.Instruction {
	sub := func(v value.Value) value.Value { return substitute(v, remap) }
	var clone ir.Instruction
	switch i := inst.(type) {
	case *ir.InstLoad:
		loadClone := ir.NewLoad(sub(i.Src))
		loadClone.Typ = i.Typ
		clone = loadClone
	case *ir.InstGetElementPtr:
		idxVals := make([]value.Value, len(i.Indices))
		for j, idx := range i.Indices {
			idxVals[j] = sub(idx)
		}
		gepClone := ir.NewGetElementPtr(sub(i.Src), idxVals...)
		gepClone.ElemType = i.ElemType
		clone = gepClone
	case *ir.InstAdd:
		clone = ir.NewAdd(sub(i.X), sub(i.Y))
	case *ir.InstSub:
		clone = ir.NewSub(sub(i.X), sub(i.Y))
	case *ir.InstICmp:
		clone = ir.NewICmp(i.Pred, sub(i.X), sub(i.Y))
	case *ir.InstPtrToInt:
		clone = ir.NewPtrToInt(sub(i.From), i.To)
	case *ir.InstIntToPtr:
		clone = ir.NewIntToPtr(sub(i.From), i.To)
	case *ir.InstTrunc:
		clone = ir.NewTrunc(sub(i.From), i.To)
	case *ir.InstZExt:
		clone = ir.NewZExt(sub(i.From), i.To)
	case *ir.InstInsertValue:
		clone = ir.NewInsertValue(sub(i.X), sub(i.Elem), i.Indices...)
	case *ir.InstExtractValue:
		clone = ir.NewExtractValue(sub(i.X), i.Indices...)
	case *ir.InstStore:
		clone = ir.NewStore(sub(i.Src), sub(i.Dst))
	default:
		clone = inst
	}
	if named, ok := clone.(value.Value); ok {
		remap[inst.(value.Value)] = named
	}
	return clone
}
