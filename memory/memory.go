// Package memory models the opaque "memory pointer" that is threaded
// alongside the emulated processor state through every lifted block,
// standing in for the external semantics library's `Memory*` (remill-style)
// or `MEMORY` (anvill-style) handle. This package never interprets memory
// contents itself — it only declares and calls the read/write intrinsics
// that thread the pointer, per spec.md section 2 ("Semantics templates...
// External") and section 4.4 (ABI marshaller memory-case parameter/return
// handling).
package memory

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/mewmew/liftgo/irbuild"
)

// PointerType is the type used to represent the memory pointer: an opaque
// handle modeled as a pointer to an empty placeholder struct,
// matching the source project's opaque `Memory*`/`MEMORY` handle types.
var PointerType = types.NewPointer(types.NewStruct())

// Widths of memory access the ABI marshaller and semantics templates read
// and write, mirroring remill's __remill_read_memory_<N>/
// __remill_write_memory_<N> intrinsic family.
var Widths = []int{8, 16, 32, 64}

// Accessors declares and caches the per-width read/write intrinsic
// functions for one module, so every caller within that module shares a
// single declaration per width (spec.md section 4.6's "declared per
// goal-type, reused across uses" rule applies equally here). addrType is
// the integer type used for the intrinsics' addr parameter, matching the
// owning architecture's address width (32-bit backends pass i32 addresses;
// a fixed i64 would be ill-typed IR against a 32-bit state register).
type Accessors struct {
	module   *ir.Module
	addrType types.Type
	reads    map[int]*ir.Function
	writes   map[int]*ir.Function
}

// NewAccessors returns a fresh, empty Accessors bound to module, whose
// read/write intrinsics address memory with addrType-wide addresses.
func NewAccessors(module *ir.Module, addrType types.Type) *Accessors {
	return &Accessors{
		module:   module,
		addrType: addrType,
		reads:    make(map[int]*ir.Function),
		writes:   make(map[int]*ir.Function),
	}
}

// Read declares (on first use) and calls the read intrinsic for the given
// width, returning the loaded value.
func (a *Accessors) Read(block *ir.BasicBlock, width int, mem, address value.Value) *ir.InstCall {
	fn := a.readFunc(width)
	return irbuild.Call(block, fn, mem, address)
}

// Write declares (on first use) and calls the write intrinsic for the given
// width, returning the new memory pointer.
func (a *Accessors) Write(block *ir.BasicBlock, width int, mem, address, val value.Value) *ir.InstCall {
	fn := a.writeFunc(width)
	return irbuild.Call(block, fn, mem, address, val)
}

func (a *Accessors) readFunc(width int) *ir.Function {
	if fn, ok := a.reads[width]; ok {
		return fn
	}
	name := fmt.Sprintf("__lift_read_memory_%d", width)
	valType := types.NewInt(uint64(width))
	fn := irbuild.NewFunc(name, valType,
		irbuild.NewParam("memory", PointerType),
		irbuild.NewParam("addr", a.addrType),
	)
	irbuild.AppendFunc(a.module, fn)
	a.reads[width] = fn
	return fn
}

func (a *Accessors) writeFunc(width int) *ir.Function {
	if fn, ok := a.writes[width]; ok {
		return fn
	}
	name := fmt.Sprintf("__lift_write_memory_%d", width)
	valType := types.NewInt(uint64(width))
	fn := irbuild.NewFunc(name, PointerType,
		irbuild.NewParam("memory", PointerType),
		irbuild.NewParam("addr", a.addrType),
		irbuild.NewParam("value", valType),
	)
	irbuild.AppendFunc(a.module, fn)
	a.writes[width] = fn
	return fn
}
