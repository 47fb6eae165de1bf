package lift

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/mewmew/liftgo/abi"
	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/decode"
	"github.com/mewmew/liftgo/intrinsic"
	"github.com/mewmew/liftgo/irbuild"
	"github.com/mewmew/liftgo/semantics"
)

// processEdge implements spec.md section 4.1's main worklist loop: decode
// (or recognize as a tail call, or merge into an existing block) the
// instruction at edge.To, then dispatch it by category.
func (l *FunctionLifter) processEdge(edge addr.Edge) error {
	block := l.blocks[edge]
	if len(block.Insts) > 0 || block.Term != nil {
		return nil // filled via another edge already (tail-call rule)
	}

	toPC := edge.To
	isInitialEntry := edge.From == addr.Zero && toPC == l.decl.Address
	if !isInitialEntry {
		if calleeDecl := l.Types.TryGetFunctionType(toPC); calleeDecl != nil {
			return l.emitBlockAsTailCall(block, calleeDecl)
		}
	}

	if prior, ok := l.pcBlocks[toPC]; ok && prior != block {
		irbuild.Br(block, prior)
		return nil
	}
	l.pcBlocks[toPC] = block

	data := l.collectBytes(toPC)
	inst, ok := l.Backend.Decode(toPC, data)
	if !ok || !inst.IsValid() {
		l.emitErrorTerminator(block)
		return nil
	}

	l.injectTypeHints(block, toPC)
	mem := l.emitInstructionSemantics(block, inst)
	l.setMemory(block, mem)

	l.dispatchCategory(block, inst)
	return nil
}

// collectBytes requests up to Backend.MaxInstructionSize bytes at pc,
// accumulating only bytes that are available and executable-or-unknown,
// stopping at the first byte that is neither (spec.md section 4.1,
// "Decoding").
func (l *FunctionLifter) collectBytes(pc addr.Addr) []byte {
	max := l.Backend.MaxInstructionSize()
	data := make([]byte, 0, max)
	for i := 0; i < max; i++ {
		b, availability, permission := l.Oracle.Query(pc + addr.Addr(i))
		if !availability.Available() || !permission.Executable() {
			break
		}
		data = append(data, b)
	}
	return data
}

// emitErrorTerminator implements spec.md section 4.1's "On decode failure,
// terminate the block with a tail call to the error semantics intrinsic
// and mute the state-pointer escape" rule, shared with the Invalid
// category's handling.
func (l *FunctionLifter) emitErrorTerminator(block *ir.BasicBlock) {
	l.emitOpaqueTerminator(block, intrinsic.Error, true, true)
}

// emitBlockAsTailCall fills block with a single reverse-marshalled call to
// calleeDecl and returns its resulting memory pointer as the block's
// terminator, implementing spec.md section 4.1's tail-call recognition rule
// together with section 4.3's typed-call lowering: a worklist edge whose
// destination PC is a known function entry (and is not this function's own
// entry) never gets decoded as an ordinary instruction.
func (l *FunctionLifter) emitBlockAsTailCall(block *ir.BasicBlock, calleeDecl *abi.FunctionDecl) error {
	mem := l.currentMemory(block)
	mem = l.marshaller.CallNative(block, l.stateArg, mem, calleeDecl, l.nativeCalleeFunc(calleeDecl))
	irbuild.Ret(block, mem)
	return nil
}

// emitOpaqueTerminator, if emitCall is true, emits a call to one of the five
// opaque control-flow intrinsics and sets it as the block's terminator (via
// a return of its memory-pointer result), muting the state-pointer argument
// first when mute is set. When emitCall is false it emits nothing.
func (l *FunctionLifter) emitOpaqueTerminator(block *ir.BasicBlock, kind intrinsic.Kind, emitCall, mute bool) {
	if !emitCall {
		return
	}
	pc := irbuild.ConstInt(l.layout.RegType.(*types.IntType), 0)
	mem := l.currentMemory(block)
	call := l.intrinsics.Call(block, kind, l.stateArg.Ptr, mem, pc)
	if mute {
		intrinsic.MuteStateEscape(call, l.stateArg.Ptr.Type())
	}
	irbuild.Ret(block, call)
}

// emitInstructionSemantics looks up and emits inst's Template, if the
// semantics library has one, threading the memory pointer. Instructions
// with no known template (e.g. a synthetic test backend with no semantics
// library coverage) leave memory unchanged: the category dispatcher's
// control-flow shape is still emitted regardless.
func (l *FunctionLifter) emitInstructionSemantics(block *ir.BasicBlock, inst decode.Instruction) value.Value {
	mem := l.currentMemory(block)
	tmpl, ok := l.Semantics.TemplateFor(inst)
	if !ok {
		return mem
	}
	ctx := semantics.Context{
		Block:     block,
		State:     l.stateArg,
		Accessors: l.accessors,
		Memory:    mem,
	}
	return tmpl.Emit(ctx, inst)
}

// liftDelaySlot lifts the instruction occupying fromInst's delay slot into
// block when the architecture reports it should execute along the given
// path (spec.md section 4.1, "Delay slots", and section 9's "lift the
// delayed instruction into the successor block with a taken-flag argument"
// design note).
func (l *FunctionLifter) liftDelaySlot(block *ir.BasicBlock, fromInst decode.Instruction, onTakenPath bool) {
	if !l.Backend.MayHaveDelaySlot(fromInst) {
		return
	}
	data := l.collectBytes(fromInst.NextPC)
	delayed, ok := l.Backend.DecodeDelayed(fromInst.NextPC, data)
	if !ok {
		return
	}
	if !l.Backend.NextInstructionIsDelayed(fromInst, delayed, onTakenPath) {
		return
	}
	mem := l.emitInstructionSemantics(block, delayed)
	l.setMemory(block, mem)
}

// dispatchCategory implements the category dispatch table of spec.md
// section 4.2. inst's own semantics have already been emitted into block
// by the caller.
func (l *FunctionLifter) dispatchCategory(block *ir.BasicBlock, inst decode.Instruction) {
	switch inst.Category {
	case decode.CategoryNormal, decode.CategoryNoOp:
		target := l.getOrCreateTargetBlock(inst.PC, inst.NextPC)
		irbuild.Br(block, target)

	case decode.CategoryDirectJump:
		l.liftDelaySlot(block, inst, true)
		target := l.getOrCreateTargetBlock(inst.PC, inst.BranchTakenPC)
		irbuild.Br(block, target)

	case decode.CategoryIndirectJump:
		l.liftDelaySlot(block, inst, true)
		l.emitOpaqueTerminator(block, intrinsic.Jump, true, false)

	case decode.CategoryConditionalIndirectJump:
		l.dispatchConditional(block, inst, func(taken *ir.BasicBlock) {
			l.emitOpaqueTerminator(taken, intrinsic.Jump, true, false)
		})

	case decode.CategoryFunctionReturn:
		l.liftDelaySlot(block, inst, true)
		l.emitOpaqueTerminator(block, intrinsic.FunctionReturn, true, true)

	case decode.CategoryConditionalFunctionReturn:
		l.dispatchConditional(block, inst, func(taken *ir.BasicBlock) {
			l.emitOpaqueTerminator(taken, intrinsic.FunctionReturn, true, true)
		})

	case decode.CategoryDirectFunctionCall:
		l.liftDelaySlot(block, inst, true)
		l.dispatchCall(block, inst, inst.BranchTakenPC, false)

	case decode.CategoryConditionalDirectFunctionCall:
		l.dispatchConditional(block, inst, func(taken *ir.BasicBlock) {
			l.dispatchCall(taken, inst, inst.BranchTakenPC, false)
		})

	case decode.CategoryIndirectFunctionCall:
		l.liftDelaySlot(block, inst, true)
		l.dispatchCall(block, inst, 0, true)

	case decode.CategoryConditionalIndirectFunctionCall:
		l.dispatchConditional(block, inst, func(taken *ir.BasicBlock) {
			l.dispatchCall(taken, inst, 0, true)
		})

	case decode.CategoryConditionalBranch:
		l.dispatchConditional(block, inst, nil)

	case decode.CategoryAsyncHyperCall:
		l.liftDelaySlot(block, inst, true)
		l.emitOpaqueTerminator(block, intrinsic.AsyncHyperCall, true, false)

	case decode.CategoryConditionalAsyncHyperCall:
		l.dispatchConditional(block, inst, func(taken *ir.BasicBlock) {
			l.emitOpaqueTerminator(taken, intrinsic.AsyncHyperCall, true, false)
		})

	case decode.CategoryError:
		l.liftDelaySlot(block, inst, true)
		l.emitOpaqueTerminator(block, intrinsic.Error, true, true)

	case decode.CategoryInvalid:
		l.emitOpaqueTerminator(block, intrinsic.Error, true, true)
	}
}

// dispatchConditional implements the shared two-successor shape used by
// ConditionalBranch, ConditionalIndirectJump, ConditionalFunctionReturn,
// ConditionalIndirectFunctionCall and ConditionalAsyncHyperCall: two new
// blocks, the delay slot lifted into each with the correct taken-flag, the
// not-taken block branching to target-block(branch-not-taken-PC), and (for
// everything but a plain ConditionalBranch) takenEmit filling the taken
// block's terminator. A plain ConditionalBranch's taken block instead
// branches to target-block(branch-taken-PC).
func (l *FunctionLifter) dispatchConditional(block *ir.BasicBlock, inst decode.Instruction, takenEmit func(taken *ir.BasicBlock)) {
	cond := l.conditionValue(block, inst)

	taken := irbuild.NewBlock(fmt.Sprintf("inst_%016X_taken", uint64(inst.PC)))
	notTaken := irbuild.NewBlock(fmt.Sprintf("inst_%016X_not_taken", uint64(inst.PC)))
	irbuild.AppendBlock(l.fn, taken)
	irbuild.AppendBlock(l.fn, notTaken)
	irbuild.CondBr(block, cond, taken, notTaken)

	l.liftDelaySlot(taken, inst, true)
	l.liftDelaySlot(notTaken, inst, false)

	if takenEmit != nil {
		takenEmit(taken)
	} else {
		target := l.getOrCreateTargetBlock(inst.PC, inst.BranchTakenPC)
		irbuild.Br(taken, target)
	}
	notTakenTarget := l.getOrCreateTargetBlock(inst.PC, inst.BranchNotTakenPC)
	irbuild.Br(notTaken, notTakenTarget)
}

// conditionValue yields the branch-taken predicate for a conditional
// instruction. A full architectural flags model is the external semantics
// library's concern (spec.md section 1, "Out of scope"); this calls a
// declared-once opaque predicate function, the same "opaque call standing
// in for an un-modeled value" idiom spec.md section 4.2 uses for the
// control-flow intrinsics, so downstream passes see an honest "unknown but
// observable" value rather than a fabricated constant.
func (l *FunctionLifter) conditionValue(block *ir.BasicBlock, inst decode.Instruction) value.Value {
	fn := l.branchTakenPredicate()
	pc := irbuild.ConstInt(l.layout.RegType.(*types.IntType), int64(inst.PC))
	return irbuild.Call(block, fn, l.stateArg.Ptr, pc)
}

func (l *FunctionLifter) branchTakenPredicate() *ir.Function {
	const name = "__lift_branch_taken"
	for _, fn := range l.module.Funcs {
		if fn.Name() == name {
			return fn
		}
	}
	fn := irbuild.NewFunc(name, types.I1,
		irbuild.NewParam("state", l.stateArg.Ptr.Type()),
		irbuild.NewParam("pc", l.layout.RegType),
	)
	irbuild.AppendFunc(l.module, fn)
	return fn
}

// dispatchCall implements spec.md section 4.3's typed-call lowering and
// section 4.4's post-call linkage, shared by both direct and indirect call
// categories. When indirect is true (or typed resolution fails), the call
// falls back to the opaque "function_call" intrinsic; otherwise it emits an
// ABI-correct call to the resolved declaration.
func (l *FunctionLifter) dispatchCall(block *ir.BasicBlock, inst decode.Instruction, calleeAddr addr.Addr, indirect bool) {
	mem := l.currentMemory(block)
	if !indirect {
		redirected := l.Redirect.GetRedirection(calleeAddr)
		calleeDecl := l.Types.TryGetFunctionType(redirected)
		if calleeDecl == nil {
			calleeDecl = l.Types.TryGetFunctionType(calleeAddr)
		}
		if calleeDecl != nil {
			mem = l.marshaller.CallNative(block, l.stateArg, mem, calleeDecl, l.nativeCalleeFunc(calleeDecl))
			l.setMemory(block, mem)
			l.linkPostCall(block, inst)
			return
		}
	}
	pc := irbuild.ConstInt(l.layout.RegType.(*types.IntType), int64(inst.PC))
	call := l.intrinsics.Call(block, intrinsic.FunctionCall, l.stateArg.Ptr, mem, pc)
	l.setMemory(block, call)
	l.linkPostCall(block, inst)
}

// nativeCalleeFunc declares (on first use) a reference to a callee's native
// function by name, so a typed call can be emitted before the callee
// itself has necessarily been lifted.
func (l *FunctionLifter) nativeCalleeFunc(decl *abi.FunctionDecl) *ir.Function {
	name := decl.DisplayName()
	for _, fn := range l.module.Funcs {
		if fn.Name() == name {
			return fn
		}
	}
	retType, params := l.nativeSignature(decl)
	fn := irbuild.NewFunc(name, retType, params...)
	irbuild.AppendFunc(l.module, fn)
	return fn
}

// linkPostCall implements spec.md section 4.4's post-call linkage: compute
// the return PC (applying the SPARC structure-return skip via abi package),
// store it into the PC and NEXT_PC state slots, then branch to the target
// block for the return PC.
func (l *FunctionLifter) linkPostCall(block *ir.BasicBlock, inst decode.Instruction) {
	returnPC := abi.PostCallReturnPC(l.Backend, l.Oracle, inst.BranchNotTakenPC)
	pcVal := irbuild.ConstInt(l.layout.RegType.(*types.IntType), int64(returnPC))
	l.stateArg.Store(block, l.Backend.ProgramCounterRegister(), pcVal)
	if nextPC := l.Backend.NextPCRegister(); nextPC != "" && l.layout.Has(nextPC) {
		l.stateArg.Store(block, nextPC, pcVal)
	}
	target := l.getOrCreateTargetBlock(inst.PC, returnPC)
	irbuild.Br(block, target)
}
