package decode

import "github.com/mewmew/liftgo/addr"

// ArchBackend is the architecture semantics library's decoding surface: an
// external collaborator that turns raw bytes into Instruction records and
// answers delay-slot questions. The function lifter core never decodes
// bytes itself; it only drives ArchBackend.
//
// Concrete backends live in subpackages, e.g. decode/x86.
type ArchBackend interface {
	// Name returns the architecture name, e.g. "x86", "sparc64".
	Name() string

	// AddressSize returns the pointer width in bits.
	AddressSize() int

	// MaxInstructionSize returns the maximum number of bytes a single
	// instruction can occupy on this architecture.
	MaxInstructionSize() int

	// ProgramCounterRegister returns the name of the program counter
	// register.
	ProgramCounterRegister() string

	// StackPointerRegister returns the name of the stack pointer register.
	StackPointerRegister() string

	// NextPCRegister returns the name of the architecture's "next program
	// counter" register, the second state slot spec.md section 4.4's
	// post-call linkage writes the computed return PC into alongside PC.
	// Returns "" for architectures with no such register (e.g. x86).
	NextPCRegister() string

	// Registers enumerates the names of all top-level (non-sub-register)
	// registers, in a stable order.
	Registers() []string

	// IsSPARC reports whether this backend models a SPARC32/SPARC64
	// variant, which changes post-call return-address handling (see
	// spec.md section 4.4).
	IsSPARC() bool

	// Decode decodes a single, non-delayed instruction starting at pc from
	// the given bytes. Returns false if the bytes do not decode.
	Decode(pc addr.Addr, bytes []byte) (Instruction, bool)

	// DecodeDelayed decodes a single instruction known to occupy a delay
	// slot. Some architectures assign different semantics to an
	// instruction depending on whether it is being decoded as a delay-slot
	// occupant.
	DecodeDelayed(pc addr.Addr, bytes []byte) (Instruction, bool)

	// MayHaveDelaySlot reports whether inst might be followed by a delay
	// slot at all. When false, the lifter never attempts to decode
	// inst.DelayedPC.
	MayHaveDelaySlot(inst Instruction) bool

	// NextInstructionIsDelayed reports whether the instruction physically
	// following inst should actually execute when control is transferred
	// along the given path (taken vs. not-taken). Architectures with
	// annulling delay slots (e.g. SPARC's "annul" bit) answer differently
	// for the taken and not-taken paths of the same instruction.
	NextInstructionIsDelayed(inst, delayed Instruction, onTakenPath bool) bool
}
