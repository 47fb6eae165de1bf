// Package semantics implements the per-instruction IR templates spec.md
// section 2 calls out as an external collaborator ("Semantics templates...
// External"): given a decoded instruction, emit IR into a given block that
// models its effect on the emulated state and memory pointers. The function
// lifter owns dispatch by category (decode.Category); this package owns
// dispatch by concrete opcode within a single architecture.
package semantics

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"github.com/mewmew/liftgo/decode"
	"github.com/mewmew/liftgo/memory"
	"github.com/mewmew/liftgo/state"
)

// Context bundles the per-block resources a Template needs to emit IR: the
// block to append into, the emulated state to read/write registers
// through, the accessors to thread memory reads/writes through, and the
// current memory pointer value.
type Context struct {
	Block     *ir.BasicBlock
	State     *state.Emulated
	Accessors *memory.Accessors
	Memory    value.Value
}

// Template models one decoded instruction's effect on state and memory. It
// returns the (possibly updated) memory pointer, since any template that
// touches memory must thread a new pointer value forward.
type Template interface {
	Emit(ctx Context, inst decode.Instruction) value.Value
}

// TemplateFunc adapts a plain function to the Template interface.
type TemplateFunc func(ctx Context, inst decode.Instruction) value.Value

// Emit implements Template.
func (f TemplateFunc) Emit(ctx Context, inst decode.Instruction) value.Value {
	return f(ctx, inst)
}

// Library maps an opaque, architecture-specific opcode key (as produced by
// a decode.ArchBackend's Instruction.Arch payload) to the Template that
// lifts it. Concrete libraries live in architecture subpackages, e.g.
// semantics/x86.
type Library interface {
	TemplateFor(inst decode.Instruction) (Template, bool)
}
