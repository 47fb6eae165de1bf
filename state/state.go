// Package state models the emulated processor state structure that the
// ABI marshaller and function lifter thread through lifted code: a single
// stack-allocated struct with one field per top-level register, standing
// in for the source project's architecture-specific `State` struct (which
// is the external semantics library's concern — see spec.md section 1,
// "Out of scope").
package state

import (
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/mewmew/liftgo/decode"
	"github.com/mewmew/liftgo/irbuild"
)

// Layout describes the field index of every top-level register within the
// emulated state's backing struct type. It is derived once per
// ArchBackend and reused across every function lift against that
// architecture.
type Layout struct {
	Type    *types.StructType
	RegType types.Type
	index   map[string]int
	order   []string
}

// NewLayout builds a Layout from the backend's register enumeration. Every
// register is modeled uniformly as an integer of the architecture's address
// width; architecture-specific register widths (e.g. x86 flags, vector
// registers) are the external semantics library's concern.
func NewLayout(backend decode.ArchBackend) *Layout {
	names := append([]string(nil), backend.Registers()...)
	sort.Strings(names)

	regType := types.NewInt(uint64(backend.AddressSize()))
	fields := make([]types.Type, len(names))
	index := make(map[string]int, len(names))
	for i, name := range names {
		fields[i] = regType
		index[name] = i
	}

	return &Layout{
		Type:    types.NewStruct(fields...),
		RegType: regType,
		index:   index,
		order:   names,
	}
}

// Has reports whether name is a known top-level register.
func (l *Layout) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}

// Registers returns the registers in the layout's stable field order.
func (l *Layout) Registers() []string {
	return l.order
}

// Emulated is a single instance of the emulated state: a pointer to a
// struct of the given Layout, either freshly stack-allocated (Allocate) or
// bound to an existing pointer value, such as the lifted three-argument
// function's incoming state parameter (Bind).
type Emulated struct {
	Layout *Layout
	Ptr    value.Value
}

// Allocate stack-allocates a new, uninitialized state structure, appending
// the alloca to block.
func Allocate(block *ir.BasicBlock, layout *Layout) *Emulated {
	return &Emulated{
		Layout: layout,
		Ptr:    irbuild.Alloca(block, layout.Type),
	}
}

// Bind wraps an existing state-pointer value (e.g. the lifted three-argument
// function's incoming state parameter) as an Emulated, without allocating
// new storage. This is how the inner lifted function accesses the state
// structure the outer native wrapper already allocated.
func Bind(ptr value.Value, layout *Layout) *Emulated {
	return &Emulated{Layout: layout, Ptr: ptr}
}

// Pointer returns the address of the named register's storage within the
// state structure, emitting a getelementptr into block.
func (e *Emulated) Pointer(block *ir.BasicBlock, name string) *ir.InstGetElementPtr {
	idx, ok := e.Layout.index[name]
	if !ok {
		panic("state: unknown register " + name)
	}
	return irbuild.GEP(block, e.Layout.Type, e.Ptr, 0, int64(idx))
}

// Load reads the named register's current value.
func (e *Emulated) Load(block *ir.BasicBlock, name string) *ir.InstLoad {
	ptr := e.Pointer(block, name)
	return irbuild.Load(block, e.Layout.RegType, ptr)
}

// Store writes val into the named register.
func (e *Emulated) Store(block *ir.BasicBlock, name string, val value.Value) *ir.InstStore {
	ptr := e.Pointer(block, name)
	return irbuild.Store(block, val, ptr)
}
