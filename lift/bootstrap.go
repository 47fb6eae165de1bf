package lift

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/mewmew/liftgo/abi"
	"github.com/mewmew/liftgo/irbuild"
	"github.com/mewmew/liftgo/memory"
	"github.com/mewmew/liftgo/state"
)

// bootstrapDeclarationOnly returns a body-less native function for decl,
// per spec.md section 7's "Declaration available but bytes absent" rule:
// the function is declared with the right signature but never decoded.
func (l *FunctionLifter) bootstrapDeclarationOnly(decl *abi.FunctionDecl) *ir.Function {
	retType, params := l.nativeSignature(decl)
	fn := irbuild.NewFunc(decl.DisplayName(), retType, params...)
	return fn
}

// bootstrapLiftedFunction declares the inner, three-argument semantics-form
// function (state pointer, memory pointer, PC) and emits its entry block:
// a memory-pointer slot seeded from the incoming memory argument, plus the
// bound Emulated view over the incoming state pointer (spec.md section 3's
// glossary, "Lifted function").
func (l *FunctionLifter) bootstrapLiftedFunction(decl *abi.FunctionDecl) *ir.Function {
	statePtrType := types.NewPointer(l.layout.Type)
	stateParam := irbuild.NewParam("state", statePtrType)
	memParam := irbuild.NewParam("memory", memory.PointerType)
	pcParam := irbuild.NewParam("pc", l.layout.RegType)

	name := fmt.Sprintf("%s_lifted", decl.DisplayName())
	fn := irbuild.NewFunc(name, memory.PointerType, stateParam, memParam, pcParam)

	entry := irbuild.NewBlock("entry")
	irbuild.AppendBlock(fn, entry)

	l.memSlot = irbuild.Alloca(entry, memory.PointerType)
	irbuild.Store(entry, memParam, l.memSlot)
	l.stateArg = state.Bind(stateParam, l.layout)

	return fn
}

// NativeSignature derives the outer native function's LLVM IR signature
// from decl's declared parameter and return value-locations, exported for
// entity lifters that need to declare a callee without lifting its body.
func (l *FunctionLifter) NativeSignature(decl *abi.FunctionDecl) (types.Type, []*ir.Param) {
	return l.nativeSignature(decl)
}

// nativeSignature derives the outer native function's LLVM IR signature
// from decl's declared parameter and return value-locations.
func (l *FunctionLifter) nativeSignature(decl *abi.FunctionDecl) (types.Type, []*ir.Param) {
	params := make([]*ir.Param, len(decl.Params))
	for i, p := range decl.Params {
		params[i] = irbuild.NewParam(fmt.Sprintf("p%d", i), p.Type)
	}
	switch len(decl.Returns) {
	case 0:
		return types.Void, params
	case 1:
		return decl.Returns[0].Type, params
	default:
		fields := make([]types.Type, len(decl.Returns))
		for i, r := range decl.Returns {
			fields[i] = r.Type
		}
		return types.NewStruct(fields...), params
	}
}

// bootstrapNativeWrapper builds the outer, native-ABI function that
// allocates the emulated state, marshals arguments in, calls lifted, reads
// return values back out, and calls the mandatory memory-escape helper
// before returning (spec.md section 4.4, "For the outer function's
// prologue").
func (l *FunctionLifter) bootstrapNativeWrapper(decl *abi.FunctionDecl, lifted *ir.Function) *ir.Function {
	retType, params := l.nativeSignature(decl)
	fn := irbuild.NewFunc(decl.DisplayName(), retType, params...)

	block := irbuild.NewBlock("entry")
	irbuild.AppendBlock(fn, block)

	emulated := state.Allocate(block, l.layout)
	l.initializeState(block, emulated)

	mem := value.Value(irbuild.NullPtr(memory.PointerType))
	for i, p := range decl.Params {
		mem = l.marshaller.StoreArgument(block, emulated, mem, p, fn.Params[i])
	}

	pc := l.seedProgramCounter(block, emulated, decl)
	l.seedStackPointer(block, emulated)
	mem = l.seedReturnAddress(block, emulated, mem, decl)

	mem = irbuild.Call(block, lifted, emulated.Ptr, mem, pc)
	mem = l.intrinsics.MemoryEscape(block, mem)

	switch len(decl.Returns) {
	case 0:
		irbuild.Ret(block, nil)
	case 1:
		ret := l.marshaller.LoadReturn(block, emulated, mem, decl.Returns[0])
		irbuild.Ret(block, ret)
	default:
		irbuild.Ret(block, l.packReturns(block, emulated, mem, decl, retType))
	}
	return fn
}

// packReturns loads every declared return value and packs them into a
// single composite (spec.md section 4.4, "if more than one declared
// return, pack into a composite").
func (l *FunctionLifter) packReturns(block *ir.BasicBlock, emulated *state.Emulated, mem value.Value, decl *abi.FunctionDecl, retType types.Type) value.Value {
	structType := retType.(*types.StructType)
	agg := value.Value(irbuild.Undef(structType))
	for i, r := range decl.Returns {
		val := l.marshaller.LoadReturn(block, emulated, mem, r)
		agg = irbuild.InsertValue(block, agg, val, uint64(i))
	}
	return agg
}

// initializeState applies the configured StateInit procedure (spec.md
// section 4.5).
func (l *FunctionLifter) initializeState(block *ir.BasicBlock, emulated *state.Emulated) {
	switch l.Options.StateInit {
	case StateInitNone:
		return
	case StateInitZeroes:
		l.zeroFillState(block, emulated)
	case StateInitUndef:
		l.undefFillState(block, emulated)
	case StateInitRegGlobals:
		l.copyRegisterGlobals(block, emulated)
	case StateInitRegGlobalsOverZeroes:
		l.zeroFillState(block, emulated)
		l.copyRegisterGlobals(block, emulated)
	case StateInitRegGlobalsOverUndef:
		l.undefFillState(block, emulated)
		l.copyRegisterGlobals(block, emulated)
	}
}

// zeroFillState stores a zero value into every top-level register field.
// emulated.Ptr points at the whole state struct, not a single register, so
// this stores per-field rather than through one struct-wide store of a
// mismatched scalar type.
func (l *FunctionLifter) zeroFillState(block *ir.BasicBlock, emulated *state.Emulated) {
	regType := emulated.Layout.RegType.(*types.IntType)
	zero := irbuild.ConstInt(regType, 0)
	for _, name := range emulated.Layout.Registers() {
		emulated.Store(block, name, zero)
	}
}

// undefFillState stores an undef value into every top-level register field,
// used by StateInitUndef and as the base layer for
// StateInitRegGlobalsOverUndef before the
// per-register globals are overlaid (leaving the fields it is about to
// overwrite truly uninitialized would be equivalent, but an explicit undef
// store keeps this base layer's intent visible regardless of which
// registers copyRegisterGlobals skips).
func (l *FunctionLifter) undefFillState(block *ir.BasicBlock, emulated *state.Emulated) {
	undef := irbuild.Undef(emulated.Layout.RegType)
	for _, name := range emulated.Layout.Registers() {
		emulated.Store(block, name, undef)
	}
}

// copyRegisterGlobals implements the "per-register globals" StateInit
// variants: one external global per top-level register (skipping SP when
// symbolic SP is enabled), copied into the state at entry, surfacing
// unmodeled dependencies to later passes (spec.md section 4.5).
func (l *FunctionLifter) copyRegisterGlobals(block *ir.BasicBlock, emulated *state.Emulated) {
	for _, name := range emulated.Layout.Registers() {
		if l.Options.SymbolicSP && name == l.Backend.StackPointerRegister() {
			continue
		}
		global := l.registerGlobal(name, emulated.Layout.RegType)
		val := irbuild.Load(block, emulated.Layout.RegType, global)
		emulated.Store(block, name, val)
	}
}

// registerGlobal declares (on first use) an external global named after a
// top-level register, used by the RegGlobals StateInit variants.
func (l *FunctionLifter) registerGlobal(name string, typ types.Type) *ir.Global {
	ident := "__lift_reg_" + name
	for _, g := range l.module.Globals {
		if g.Name() == ident {
			return g
		}
	}
	global := irbuild.NewGlobalDecl(ident, typ)
	l.module.Globals = append(l.module.Globals, global)
	return global
}

// seedProgramCounter seeds the PC register per the symbolic-PC policy of
// spec.md section 4.5 and returns the value passed as the lifted
// function's pc argument.
func (l *FunctionLifter) seedProgramCounter(block *ir.BasicBlock, emulated *state.Emulated, decl *abi.FunctionDecl) value.Value {
	var pc value.Value
	if l.Options.SymbolicPC {
		base := l.symbolicBase(l.Backend.ProgramCounterRegister(), emulated.Layout.RegType)
		offset := irbuild.ConstInt(emulated.Layout.RegType.(*types.IntType), int64(decl.Address))
		pc = irbuild.Add(block, irbuild.PtrToInt(block, base, emulated.Layout.RegType), offset)
	} else {
		pc = irbuild.ConstInt(emulated.Layout.RegType.(*types.IntType), int64(decl.Address))
	}
	emulated.Store(block, l.Backend.ProgramCounterRegister(), pc)
	return pc
}

// seedStackPointer seeds the SP register per the symbolic-SP policy.
func (l *FunctionLifter) seedStackPointer(block *ir.BasicBlock, emulated *state.Emulated) {
	regType := emulated.Layout.RegType.(*types.IntType)
	var sp value.Value
	if l.Options.SymbolicSP {
		base := l.symbolicBase(l.Backend.StackPointerRegister(), emulated.Layout.RegType)
		sp = irbuild.PtrToInt(block, base, emulated.Layout.RegType)
	} else {
		sp = irbuild.ConstInt(regType, 0)
	}
	emulated.Store(block, l.Backend.StackPointerRegister(), sp)
}

// seedReturnAddress seeds decl's declared return-address location per the
// symbolic/concrete return-address policy of spec.md section 4.5, threading
// and returning the (possibly updated) memory pointer.
func (l *FunctionLifter) seedReturnAddress(block *ir.BasicBlock, emulated *state.Emulated, mem value.Value, decl *abi.FunctionDecl) value.Value {
	if decl.ReturnAddress.Reg == "" && decl.ReturnAddress.Kind == abi.LocationRegister {
		return mem
	}
	var ra value.Value
	if l.Options.SymbolicRA {
		base := l.symbolicBase("ra", emulated.Layout.RegType)
		ra = irbuild.PtrToInt(block, base, emulated.Layout.RegType)
	} else {
		ra = l.intrinsics.ReturnAddress(block)
	}
	return l.marshaller.StoreArgument(block, emulated, mem, decl.ReturnAddress, ra)
}

// symbolicBase declares (on first use) and returns an opaque external
// global standing in for a symbolic base address, per spec.md section 4.5's
// `&symbolic_*_base` expressions.
func (l *FunctionLifter) symbolicBase(name string, regType types.Type) *ir.Global {
	ident := "__lift_symbolic_" + name
	ptrType := types.NewPointer(regType)
	for _, g := range l.module.Globals {
		if g.Name() == ident {
			return g
		}
	}
	global := irbuild.NewGlobalDecl(ident, ptrType)
	l.module.Globals = append(l.module.Globals, global)
	return global
}
