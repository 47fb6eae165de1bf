package abi

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/mewmew/liftgo/irbuild"
	"github.com/mewmew/liftgo/memory"
	"github.com/mewmew/liftgo/state"
)

// Marshaller stores caller values into the emulated state/memory and loads
// declared return values back out, per spec.md section 4.4. It threads the
// memory pointer across every memory-case value-location, returning the
// updated pointer from each operation so callers can keep a single current
// value as they iterate over a declaration's parameters or returns.
type Marshaller struct {
	Accessors *memory.Accessors
}

// NewMarshaller returns a Marshaller backed by accessors, which supplies
// the per-width memory read/write intrinsics.
func NewMarshaller(accessors *memory.Accessors) *Marshaller {
	return &Marshaller{Accessors: accessors}
}

// StoreArgument writes val into loc (a parameter's declared location),
// threading mem through the memory case. It returns the (possibly updated)
// memory pointer.
func (m *Marshaller) StoreArgument(block *ir.BasicBlock, emulated *state.Emulated, mem value.Value, loc ValueLocation, val value.Value) value.Value {
	switch loc.Kind {
	case LocationRegister:
		emulated.Store(block, loc.Reg, toStateValue(block, val, emulated.Layout.RegType))
		return mem
	case LocationMemory:
		address := m.baseAddress(block, emulated, loc)
		width := bitWidth(loc.Type)
		intType := types.NewInt(uint64(width))
		call := m.Accessors.Write(block, width, mem, address, toStateValue(block, val, intType))
		return call
	default:
		panic("abi: unknown value-location kind")
	}
}

// LoadReturn reads loc's current value back out (a return value after the
// call, or an argument while marshalling a reverse/native-to-lifted call).
func (m *Marshaller) LoadReturn(block *ir.BasicBlock, emulated *state.Emulated, mem value.Value, loc ValueLocation) value.Value {
	switch loc.Kind {
	case LocationRegister:
		val := emulated.Load(block, loc.Reg)
		return fromStateValue(block, val, loc.Type)
	case LocationMemory:
		address := m.baseAddress(block, emulated, loc)
		width := bitWidth(loc.Type)
		val := m.Accessors.Read(block, width, mem, address)
		return fromStateValue(block, val, loc.Type)
	default:
		panic("abi: unknown value-location kind")
	}
}

// toStateValue adapts val to the integer type the state register or memory
// write actually declares: every emulated register is modeled uniformly as
// one address-width integer (state.NewLayout) and every memory access as an
// integer of its declared width (memory.Accessors), so a native pointer
// value is cast down with PtrToInt first, and an integer of the wrong width
// (e.g. a 32-bit return value destined for a 64-bit register field) is
// extended or truncated to match.
func toStateValue(block *ir.BasicBlock, val value.Value, intType types.Type) value.Value {
	if _, ok := val.Type().(*types.PointerType); ok {
		return irbuild.PtrToInt(block, val, intType)
	}
	return matchIntWidth(block, val, intType)
}

// fromStateValue adapts val (always an integer, freshly loaded from a
// register or memory) up to loc's declared native type: IntToPtr when that
// type is a pointer, otherwise a width-matching extend or truncate.
func fromStateValue(block *ir.BasicBlock, val value.Value, typ types.Type) value.Value {
	if ptrType, ok := typ.(*types.PointerType); ok {
		return irbuild.IntToPtr(block, val, ptrType)
	}
	return matchIntWidth(block, val, typ)
}

// matchIntWidth extends or truncates an integer value to want's bit width,
// leaving it unchanged when either side is not a plain integer type or the
// widths already agree.
func matchIntWidth(block *ir.BasicBlock, val value.Value, want types.Type) value.Value {
	from, ok1 := val.Type().(*types.IntType)
	to, ok2 := want.(*types.IntType)
	if !ok1 || !ok2 || from.BitSize == to.BitSize {
		return val
	}
	if from.BitSize < to.BitSize {
		return irbuild.ZExt(block, val, to)
	}
	return irbuild.Trunc(block, val, to)
}

// baseAddress computes the effective address of a memory value-location:
// the named base register's current value plus the location's byte offset.
// The offset constant is built at the register's own address width (not a
// fixed i64), since emulated.Load returns a value of emulated.Layout.RegType
// and llir/llvm's Add requires both operands to share one integer type.
func (m *Marshaller) baseAddress(block *ir.BasicBlock, emulated *state.Emulated, loc ValueLocation) value.Value {
	base := emulated.Load(block, loc.Reg)
	if loc.Offset == 0 {
		return base
	}
	offset := irbuild.ConstInt(emulated.Layout.RegType.(*types.IntType), loc.Offset)
	return irbuild.Add(block, base, offset)
}

// CallNative emits a reverse/native-to-lifted call: it loads decl's declared
// parameter locations out of the current emulated state/memory, calls callee
// with the native ABI, then stores decl's declared return locations back
// into the emulated state/memory (spec.md section 4.3, "Typed call
// lowering" — a tail-call target resolved to a known declaration is invoked
// with the real argument values currently sitting in the caller's state
// rather than through the opaque function_call intrinsic). callee's
// signature is not itself memory-pointer-aware, so the incoming mem is
// returned unchanged: the native function's own prologue/epilogue already
// models its own memory effects in a different module.
func (m *Marshaller) CallNative(block *ir.BasicBlock, emulated *state.Emulated, mem value.Value, decl *FunctionDecl, callee *ir.Function) value.Value {
	args := make([]value.Value, len(decl.Params))
	for i, p := range decl.Params {
		args[i] = m.LoadReturn(block, emulated, mem, p)
	}
	result := irbuild.Call(block, callee, args...)

	switch len(decl.Returns) {
	case 0:
		// void callee, nothing to store back
	case 1:
		mem = m.StoreArgument(block, emulated, mem, decl.Returns[0], result)
	default:
		for i, r := range decl.Returns {
			field := irbuild.ExtractValue(block, result, uint64(i))
			mem = m.StoreArgument(block, emulated, mem, r, field)
		}
	}
	return mem
}

func bitWidth(typ types.Type) int {
	if intType, ok := typ.(*types.IntType); ok {
		return int(intType.BitSize)
	}
	return 64 // pointer-sized values are modeled as i64 addresses, see memory.PointerType's callers.
}
