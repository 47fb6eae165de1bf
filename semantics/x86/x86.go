// Package x86 implements semantics.Library for the x86/x86-64 architecture:
// one Template per supported opcode, emitting IR that models its effect on
// the emulated state and (for memory operands) the memory pointer.
// Coverage mirrors the teacher's disasm/x86 argument-translation shape
// (cmd/x/llir.go's translateArg), extended to the handful of opcodes a
// function lifter needs semantics for once control flow itself is handled
// by the category dispatcher: data movement (mov, lea), arithmetic
// (add, sub, cmp), and the terminators the category dispatcher does not
// already fully model as IR (call/ret/ud2 contribute no additional state
// change beyond what the dispatcher emits, and so are modeled as no-ops
// here; jmp/jcc contribute no state change either, since the category
// dispatcher's branch shape is itself the instruction's semantics).
package x86

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"golang.org/x/arch/x86/x86asm"

	"github.com/mewmew/liftgo/decode"
	"github.com/mewmew/liftgo/irbuild"
	"github.com/mewmew/liftgo/semantics"
)

// regWidth is the integer register type used for general-purpose registers
// in 32-bit mode. 64-bit mode libraries would use types.I64; this library
// targets the teacher's 32-bit x86 decoding (cmd/x/x86.go uses x86asm.Mode
// 32-bit throughout).
var regWidth = types.I32

// Library is a semantics.Library for x86/x86-64.
type Library struct{}

// New returns a new x86 semantics library.
func New() *Library { return &Library{} }

// TemplateFor implements semantics.Library.
func (l *Library) TemplateFor(inst decode.Instruction) (semantics.Template, bool) {
	x86inst, ok := inst.Arch.(x86asm.Inst)
	if !ok {
		return nil, false
	}
	switch x86inst.Op {
	case x86asm.MOV:
		return semantics.TemplateFunc(emitMov), true
	case x86asm.LEA:
		return semantics.TemplateFunc(emitLea), true
	case x86asm.ADD:
		return semantics.TemplateFunc(emitAdd), true
	case x86asm.SUB:
		return semantics.TemplateFunc(emitSub), true
	case x86asm.CMP:
		return semantics.TemplateFunc(emitCmp), true
	case x86asm.NOP, x86asm.RET, x86asm.UD2, x86asm.CALL, x86asm.JMP:
		// The category dispatcher's control-flow shape is these
		// instructions' entire semantics; nothing further to emit.
		return semantics.TemplateFunc(noop), true
	default:
		if isJcc(x86inst.Op) {
			return semantics.TemplateFunc(noop), true
		}
		return nil, false
	}
}

func noop(ctx semantics.Context, inst decode.Instruction) value.Value {
	return ctx.Memory
}

func isJcc(op x86asm.Op) bool {
	switch op {
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ,
		x86asm.JS, x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return true
	default:
		return false
	}
}

// regName converts an x86asm.Reg (e.g. x86asm.EAX, which stringifies as
// "eax") to this module's uppercase register-name convention (matching
// decode/x86.Backend.Registers()).
func regName(reg x86asm.Reg) string {
	return strings.ToUpper(reg.String())
}

// operandValue reads arg's current value: a register is loaded from state;
// an immediate becomes a constant; a memory operand is read through the
// memory accessors at the computed effective address (displacement-only
// addressing, sufficient for the simple cases this library supports).
func operandValue(ctx semantics.Context, arg x86asm.Arg) value.Value {
	switch v := arg.(type) {
	case x86asm.Reg:
		return ctx.State.Load(ctx.Block, regName(v))
	case x86asm.Imm:
		return irbuild.ConstInt(regWidth, int64(v))
	case x86asm.Mem:
		address := effectiveAddress(ctx, v)
		return ctx.Accessors.Read(ctx.Block, int(regWidth.BitSize), ctx.Memory, address)
	default:
		panic(fmt.Sprintf("semantics/x86: unsupported operand type %T", arg))
	}
}

// effectiveAddress computes a Mem operand's address as base + index*scale +
// disp, using whichever of base/index the decoder populated.
func effectiveAddress(ctx semantics.Context, mem x86asm.Mem) value.Value {
	var address value.Value = irbuild.ConstInt(regWidth, mem.Disp)
	if mem.Base != 0 {
		base := ctx.State.Load(ctx.Block, regName(mem.Base))
		address = irbuild.Add(ctx.Block, base, address)
	}
	if mem.Index != 0 {
		var scaled value.Value = ctx.State.Load(ctx.Block, regName(mem.Index))
		for s := int(mem.Scale); s > 1; s >>= 1 {
			scaled = irbuild.Add(ctx.Block, scaled, scaled)
		}
		address = irbuild.Add(ctx.Block, address, scaled)
	}
	return address
}

// storeResult writes val back into arg's location: a register store, or a
// memory write threading ctx.Memory forward.
func storeResult(ctx semantics.Context, arg x86asm.Arg, val value.Value) value.Value {
	switch v := arg.(type) {
	case x86asm.Reg:
		ctx.State.Store(ctx.Block, regName(v), val)
		return ctx.Memory
	case x86asm.Mem:
		address := effectiveAddress(ctx, v)
		call := ctx.Accessors.Write(ctx.Block, int(regWidth.BitSize), ctx.Memory, address, val)
		return call
	default:
		panic(fmt.Sprintf("semantics/x86: unsupported destination operand type %T", arg))
	}
}

func emitMov(ctx semantics.Context, inst decode.Instruction) value.Value {
	x86inst := inst.Arch.(x86asm.Inst)
	src := operandValue(ctx, x86inst.Args[1])
	return storeResult(ctx, x86inst.Args[0], src)
}

func emitLea(ctx semantics.Context, inst decode.Instruction) value.Value {
	x86inst := inst.Arch.(x86asm.Inst)
	mem, ok := x86inst.Args[1].(x86asm.Mem)
	if !ok {
		panic("semantics/x86: lea with non-memory source operand")
	}
	address := effectiveAddress(ctx, mem)
	return storeResult(ctx, x86inst.Args[0], address)
}

func emitAdd(ctx semantics.Context, inst decode.Instruction) value.Value {
	x86inst := inst.Arch.(x86asm.Inst)
	lhs := operandValue(ctx, x86inst.Args[0])
	rhs := operandValue(ctx, x86inst.Args[1])
	sum := irbuild.Add(ctx.Block, lhs, rhs)
	return storeResult(ctx, x86inst.Args[0], sum)
}

func emitSub(ctx semantics.Context, inst decode.Instruction) value.Value {
	x86inst := inst.Arch.(x86asm.Inst)
	lhs := operandValue(ctx, x86inst.Args[0])
	rhs := operandValue(ctx, x86inst.Args[1])
	diff := irbuild.Sub(ctx.Block, lhs, rhs)
	return storeResult(ctx, x86inst.Args[0], diff)
}

// emitCmp emits an equality comparison between its operands, but does not
// model individual flag bits (out of scope: a full x86 flags model
// is the external architecture semantics library's concern per spec.md
// section 1). It discards the comparison result and threads memory
// unchanged, aside from evaluating any memory operand read for its
// observable effect. A comparison (rather than the bare subtraction cmp
// computes) is emitted because it is the one observation a cmp instruction
// exists to make.
func emitCmp(ctx semantics.Context, inst decode.Instruction) value.Value {
	x86inst := inst.Arch.(x86asm.Inst)
	lhs := operandValue(ctx, x86inst.Args[0])
	rhs := operandValue(ctx, x86inst.Args[1])
	irbuild.ICmp(ctx.Block, enum.IPredEQ, lhs, rhs)
	return ctx.Memory
}
