// Package decode defines the architecture-agnostic instruction record the
// function lifter operates on, and the narrow interfaces through which it
// reaches its external collaborators: the byte oracle (memory provider) and
// the architecture backend (decoder, delay-slot predicate, register
// enumeration). Concrete architecture backends live in subpackages (see
// decode/x86).
package decode

import "github.com/mewmew/liftgo/addr"

// Instruction is a decoded instruction, in the architecture-agnostic shape
// the function lifter's CFG builder and category dispatcher need. The
// architecture backend that produced it may stash arbitrary operand detail
// in Arch for the semantics templates to consume; the lifter core never
// inspects Arch itself.
type Instruction struct {
	// Category classifies the control-flow shape of the instruction.
	Category Category
	// PC is the address of the first byte of the instruction.
	PC addr.Addr
	// Len is the instruction length in bytes.
	Len int
	// NextPC is the address of the instruction that follows this one in
	// memory order; meaningful for Normal/NoOp categories.
	NextPC addr.Addr
	// BranchTakenPC is the destination address when a conditional or
	// unconditional transfer is taken.
	BranchTakenPC addr.Addr
	// BranchNotTakenPC is the destination address when a conditional
	// transfer is not taken, or the resumption address after a call.
	BranchNotTakenPC addr.Addr
	// DelayedPC is the address of the instruction occupying this
	// instruction's delay slot, if any.
	DelayedPC addr.Addr
	// IsDelayed reports whether this instruction was itself decoded as
	// occupying another instruction's delay slot.
	IsDelayed bool
	// Arch is the opaque, architecture-specific operand payload consumed by
	// the semantics templates (see package semantics). The lift package
	// never inspects it.
	Arch any
}

// IsValid reports whether the instruction decoded successfully.
func (i Instruction) IsValid() bool {
	return i.Category != CategoryInvalid
}

// IsError reports whether the instruction is guaranteed to trap execution
// (e.g. x86 UD2), as opposed to having failed to decode at all.
func (i Instruction) IsError() bool {
	return i.Category == CategoryError
}
