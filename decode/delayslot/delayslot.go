// Package delayslot implements a small, synthetic decode.ArchBackend that
// models a SPARC-like architecture: every instruction is 4 bytes wide,
// every control-transfer instruction carries a delay slot, and conditional
// branches may annul their delay slot on the not-taken path. It exists to
// exercise the function lifter's delay-slot handling and SPARC-style
// structure-return detection (spec.md sections 4.1 and 4.4) without
// depending on a real SPARC decoder, which is out of scope for this
// module (see spec.md section 1, "Out of scope").
package delayslot

import (
	"encoding/binary"

	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/decode"
)

// Opcode tags for the 4-byte synthetic encoding. Byte 0 holds the tag; the
// remaining 3 bytes hold a big-endian, word-granularity (x4) signed
// displacement for control-transfer instructions.
const (
	OpNormal          byte = 0x00
	OpConditionalBranch byte = 0x01
	OpFunctionReturn  byte = 0x02
	OpUnimp           byte = 0x03
	OpDirectCall      byte = 0x04
	OpDirectJump      byte = 0x05

	// AnnulBit, when set in byte 1's high bit, means the delay slot
	// instruction does not execute along the not-taken path of a
	// conditional branch.
	AnnulBit byte = 0x80
)

// Arch is the opaque per-instruction payload this backend attaches to
// decode.Instruction.Arch.
type Arch struct {
	Annulled bool
}

// Backend is the synthetic SPARC-like ArchBackend.
type Backend struct{}

// New returns a new synthetic delay-slot backend.
func New() *Backend { return &Backend{} }

func (Backend) Name() string                { return "sparc-like" }
func (Backend) AddressSize() int            { return 32 }
func (Backend) MaxInstructionSize() int     { return 4 }
func (Backend) ProgramCounterRegister() string { return "PC" }
func (Backend) StackPointerRegister() string   { return "SP" }
func (Backend) NextPCRegister() string         { return "NPC" }
func (Backend) Registers() []string {
	return []string{"PC", "NPC", "SP", "O0", "O1", "O2", "O3", "O4", "O5", "O7"}
}
func (Backend) IsSPARC() bool { return true }

// MayHaveDelaySlot reports true for every control-transfer category, as
// every synthetic control-transfer instruction in this backend has a
// physically-following delay slot.
func (Backend) MayHaveDelaySlot(inst decode.Instruction) bool {
	return inst.Category.HasDelaySlot()
}

// NextInstructionIsDelayed implements the annul-bit semantics: the delay
// slot always executes on the taken path, and executes on the not-taken
// path unless the instruction's annul bit was set.
func (Backend) NextInstructionIsDelayed(inst, _ decode.Instruction, onTakenPath bool) bool {
	if onTakenPath {
		return true
	}
	a, ok := inst.Arch.(Arch)
	if !ok {
		return true
	}
	return !a.Annulled
}

// Decode implements decode.ArchBackend.
func (b *Backend) Decode(pc addr.Addr, data []byte) (decode.Instruction, bool) {
	return b.decode(pc, data, false)
}

// DecodeDelayed implements decode.ArchBackend.
func (b *Backend) DecodeDelayed(pc addr.Addr, data []byte) (decode.Instruction, bool) {
	return b.decode(pc, data, true)
}

func (b *Backend) decode(pc addr.Addr, data []byte, delayed bool) (decode.Instruction, bool) {
	if len(data) < 4 {
		return decode.Instruction{PC: pc, Category: decode.CategoryInvalid}, false
	}
	word := binary.BigEndian.Uint32(data[:4])
	tag := byte(word >> 24)
	annul := word&(uint32(AnnulBit)<<16) != 0
	disp := int32(word&0x00FFFFFF) << 8 >> 8 // sign-extend 24 bits
	target := addr.Addr(int64(pc) + int64(disp)*4)

	next := pc + 4
	out := decode.Instruction{
		PC:        pc,
		Len:       4,
		NextPC:    next,
		IsDelayed: delayed,
		Arch:      Arch{Annulled: annul},
	}

	switch tag {
	case OpNormal:
		out.Category = decode.CategoryNormal
	case OpConditionalBranch:
		out.Category = decode.CategoryConditionalBranch
		out.BranchTakenPC = target
		out.BranchNotTakenPC = next
	case OpFunctionReturn:
		out.Category = decode.CategoryFunctionReturn
	case OpDirectJump:
		out.Category = decode.CategoryDirectJump
		out.BranchTakenPC = target
	case OpDirectCall:
		out.Category = decode.CategoryDirectFunctionCall
		out.BranchTakenPC = target
		out.BranchNotTakenPC = next
	case OpUnimp:
		out.Category = decode.CategoryInvalid
		return out, false
	default:
		return decode.Instruction{PC: pc, Category: decode.CategoryInvalid}, false
	}
	return out, true
}

// EncodeUnimp encodes a SPARC "unimp <imm22>" Format-0a word, i.e. op=0,
// op2=0, rd=0, imm22=size, as described in spec.md section 4.4.
func EncodeUnimp(size uint32) [4]byte {
	var b [4]byte
	// op:2 (bits 31-30) = 0, rd:5 (bits 29-25) = 0, op2:3 (bits 24-22) = 0,
	// imm22:22 (bits 21-0) = size.
	word := size & 0x3FFFFF
	binary.BigEndian.PutUint32(b[:], word)
	return b
}
