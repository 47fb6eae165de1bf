// Package x86 implements a decode.ArchBackend for the x86 architecture,
// built on golang.org/x/arch/x86/x86asm — the same disassembler dependency
// the teacher tool uses in disasm/x86/x86.go and cmd/x/x86.go.
package x86

import (
	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/decode"
	"golang.org/x/arch/x86/x86asm"
)

// Mode selects the processor's execution mode.
type Mode int

// Supported execution modes, matching x86asm.Mode values.
const (
	Mode16 Mode = 16
	Mode32 Mode = 32
	Mode64 Mode = 64
)

// Backend is a decode.ArchBackend for x86/x86-64.
type Backend struct {
	mode Mode
}

// New returns an x86 ArchBackend running in the given processor mode.
func New(mode Mode) *Backend {
	return &Backend{mode: mode}
}

// Name implements decode.ArchBackend.
func (b *Backend) Name() string {
	if b.mode == Mode64 {
		return "x86-64"
	}
	return "x86"
}

// AddressSize implements decode.ArchBackend.
func (b *Backend) AddressSize() int {
	if b.mode == Mode64 {
		return 64
	}
	return 32
}

// MaxInstructionSize implements decode.ArchBackend. x86 instructions are at
// most 15 bytes long.
func (b *Backend) MaxInstructionSize() int {
	return 15
}

// ProgramCounterRegister implements decode.ArchBackend.
func (b *Backend) ProgramCounterRegister() string {
	if b.mode == Mode64 {
		return "RIP"
	}
	return "EIP"
}

// StackPointerRegister implements decode.ArchBackend.
func (b *Backend) StackPointerRegister() string {
	if b.mode == Mode64 {
		return "RSP"
	}
	return "ESP"
}

// Registers implements decode.ArchBackend, enumerating the top-level
// general-purpose registers.
func (b *Backend) Registers() []string {
	if b.mode == Mode64 {
		return []string{
			"RAX", "RBX", "RCX", "RDX", "RSI", "RDI", "RBP", "RSP",
			"R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15",
			"RIP", "RFLAGS",
		}
	}
	return []string{"EAX", "EBX", "ECX", "EDX", "ESI", "EDI", "EBP", "ESP", "EIP", "EFLAGS"}
}

// NextPCRegister implements decode.ArchBackend; x86 has no NEXT_PC
// register.
func (b *Backend) NextPCRegister() string {
	return ""
}

// IsSPARC implements decode.ArchBackend; x86 is never SPARC.
func (b *Backend) IsSPARC() bool {
	return false
}

// MayHaveDelaySlot implements decode.ArchBackend. x86 has no architectural
// delay slots.
func (b *Backend) MayHaveDelaySlot(decode.Instruction) bool {
	return false
}

// NextInstructionIsDelayed implements decode.ArchBackend; never true on
// x86.
func (b *Backend) NextInstructionIsDelayed(_, _ decode.Instruction, _ bool) bool {
	return false
}

// Decode implements decode.ArchBackend.
func (b *Backend) Decode(pc addr.Addr, data []byte) (decode.Instruction, bool) {
	return b.decode(pc, data)
}

// DecodeDelayed implements decode.ArchBackend. Since x86 never reports a
// delay slot, this is never called in practice, but is implemented
// identically to Decode for completeness and testability.
func (b *Backend) DecodeDelayed(pc addr.Addr, data []byte) (decode.Instruction, bool) {
	inst, ok := b.decode(pc, data)
	inst.IsDelayed = true
	return inst, ok
}

func (b *Backend) decode(pc addr.Addr, data []byte) (decode.Instruction, bool) {
	inst, err := x86asm.Decode(data, int(b.mode))
	if err != nil {
		return decode.Instruction{PC: pc, Category: decode.CategoryInvalid}, false
	}

	out := decode.Instruction{
		PC:     pc,
		Len:    inst.Len,
		NextPC: pc + addr.Addr(inst.Len),
		Arch:   inst,
	}
	out.Category, out.BranchTakenPC, out.BranchNotTakenPC = classify(inst, pc)
	return out, true
}

// classify maps an x86asm.Inst to the architecture-agnostic category and
// computes branch target addresses, following the same relative-target
// arithmetic as cmd/x/llir.go's translateArg for x86asm.Rel operands:
// target = pc + instruction length + relative displacement.
func classify(inst x86asm.Inst, pc addr.Addr) (decode.Category, addr.Addr, addr.Addr) {
	next := pc + addr.Addr(inst.Len)
	notTaken := next

	switch inst.Op {
	case x86asm.JMP:
		if target, ok := relTarget(inst, pc); ok {
			return decode.CategoryDirectJump, target, notTaken
		}
		return decode.CategoryIndirectJump, 0, notTaken

	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE,
		x86asm.JECXZ, x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE,
		x86asm.JNO, x86asm.JNP, x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ,
		x86asm.JS, x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		target, _ := relTarget(inst, pc)
		return decode.CategoryConditionalBranch, target, notTaken

	case x86asm.CALL:
		if target, ok := relTarget(inst, pc); ok {
			return decode.CategoryDirectFunctionCall, target, notTaken
		}
		return decode.CategoryIndirectFunctionCall, 0, notTaken

	case x86asm.RET:
		return decode.CategoryFunctionReturn, 0, 0

	case x86asm.UD2:
		return decode.CategoryError, 0, 0

	case x86asm.INT, x86asm.SYSCALL, x86asm.SYSENTER:
		return decode.CategoryAsyncHyperCall, 0, notTaken

	case x86asm.NOP:
		return decode.CategoryNoOp, 0, next

	default:
		return decode.CategoryNormal, 0, next
	}
}

// relTarget computes the absolute branch target of an instruction whose
// first argument is a PC-relative displacement, mirroring
// cmd/x/llir.go's translateArg case for x86asm.Rel.
func relTarget(inst x86asm.Inst, pc addr.Addr) (addr.Addr, bool) {
	if len(inst.Args) == 0 || inst.Args[0] == nil {
		return 0, false
	}
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	return addr.Addr(int64(pc) + int64(inst.Len) + int64(rel)), true
}
