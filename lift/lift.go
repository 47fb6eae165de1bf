// Package lift implements the function lifter: the worklist-driven decoder
// and CFG builder, category dispatcher, delay-slot handler, type-hint
// injector, and state bootstrap of spec.md sections 2 and 4. It is the
// core this module exists to build; everything else (decode, semantics,
// abi, memory, intrinsic, state, provider) is a collaborator it drives.
package lift

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"

	"github.com/mewmew/liftgo/abi"
	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/cleanup"
	"github.com/mewmew/liftgo/decode"
	"github.com/mewmew/liftgo/intrinsic"
	"github.com/mewmew/liftgo/irbuild"
	"github.com/mewmew/liftgo/memory"
	"github.com/mewmew/liftgo/semantics"
	"github.com/mewmew/liftgo/state"
)

// Context is the long-lived, process-wide lifter context of spec.md
// section 3's "Process-wide state": the name→address map populated as
// functions are declared, surviving across lifts, used to reassociate
// entities copied into the target module. Per section 9's design note,
// this lives in an explicit object rather than package-level globals.
type Context struct {
	NameToAddr map[string]addr.Addr
}

// NewContext returns a fresh, empty lifter context.
func NewContext() *Context {
	return &Context{NameToAddr: make(map[string]addr.Addr)}
}

// FunctionLifter lifts one machine-code function at a time into the
// semantics module it owns. A single FunctionLifter may be reused across
// many LiftFunction calls against the same architecture and providers;
// per-function state is cleared at the start of every call (spec.md
// section 3, "Per-function context").
type FunctionLifter struct {
	Backend    decode.ArchBackend
	Oracle     decode.ByteOracle
	Types      TypeProvider
	Redirect   ControlFlowProvider
	Semantics  semantics.Library
	Options    Options
	Ctx        *Context

	layout     *state.Layout
	module     *ir.Module // semantics module this lifter owns (spec.md section 3, "Ownership")
	intrinsics *intrinsic.Intrinsics
	accessors  *memory.Accessors
	marshaller *abi.Marshaller

	// Per-function state, reset at the start of every LiftFunction call.
	decl     *abi.FunctionDecl
	fn       *ir.Function
	blocks   map[addr.Edge]*ir.BasicBlock
	pcBlocks map[addr.Addr]*ir.BasicBlock
	worklist []addr.Edge
	stateArg *state.Emulated
	memSlot  *ir.InstAlloca
}

// New returns a FunctionLifter over backend, wired to the given
// collaborators. Each FunctionLifter owns one semantics module; lift many
// functions' lifted bodies into it, then hand it (or copies of its
// functions) to an entity lifter for placement into a target module.
func New(backend decode.ArchBackend, oracle decode.ByteOracle, typeProvider TypeProvider, redirect ControlFlowProvider, semLib semantics.Library, options Options, ctx *Context) *FunctionLifter {
	layout := state.NewLayout(backend)
	module := irbuild.NewModule()
	statePtrType := types.NewPointer(layout.Type)
	intrinsics := intrinsic.New(module, statePtrType, layout.RegType)
	accessors := memory.NewAccessors(module, layout.RegType)
	return &FunctionLifter{
		Backend:    backend,
		Oracle:     oracle,
		Types:      typeProvider,
		Redirect:   redirect,
		Semantics:  semLib,
		Options:    options,
		Ctx:        ctx,
		layout:     layout,
		module:     module,
		intrinsics: intrinsics,
		accessors:  accessors,
		marshaller: abi.NewMarshaller(accessors),
	}
}

// Module returns the semantics module this lifter owns, containing every
// lifted and intrinsic function emitted so far.
func (l *FunctionLifter) Module() *ir.Module {
	return l.module
}

// LiftFunction lifts the function described by decl, returning the outer
// native-ABI function (spec.md section 4.4's "outer function's prologue").
// It returns a declaration-only function (no blocks) if the entry address
// has no available, executable bytes (spec.md section 7, "Address
// unusable" / "Declaration available but bytes absent").
func (l *FunctionLifter) LiftFunction(decl *abi.FunctionDecl) (*ir.Function, error) {
	l.decl = decl
	l.blocks = make(map[addr.Edge]*ir.BasicBlock)
	l.pcBlocks = make(map[addr.Addr]*ir.BasicBlock)
	l.worklist = nil

	if decl.Name != "" {
		l.Ctx.NameToAddr[decl.Name] = decl.Address
	}
	l.Ctx.NameToAddr[decl.DisplayName()] = decl.Address

	if !l.entryHasExecutableByte(decl.Address) {
		return l.bootstrapDeclarationOnly(decl), nil
	}

	lifted := l.bootstrapLiftedFunction(decl)
	l.fn = lifted
	irbuild.AppendFunc(l.module, lifted)

	l.getOrCreateBlock(addr.Zero, decl.Address)

	for len(l.worklist) > 0 {
		edge := l.worklist[0]
		l.worklist = l.worklist[1:]
		if err := l.processEdge(edge); err != nil {
			return nil, errors.Wrapf(err, "lifting edge %v", edge)
		}
	}

	native := l.bootstrapNativeWrapper(decl, lifted)
	irbuild.AppendFunc(l.module, native)

	cleanup.NewPipeline(l.lookupCallee).Run(native)

	return native, nil
}

// lookupCallee resolves a callee name to its current definition within this
// lifter's own module, for cleanup.Pipeline's InlineCallees stage. Names
// with no known body (the opaque intrinsics, and any not-yet-lifted native
// callee declared by nativeCalleeFunc) resolve to nil, which the inliner
// treats as "not inlinable."
func (l *FunctionLifter) lookupCallee(name string) *ir.Function {
	for _, fn := range l.module.Funcs {
		if fn.Name() == name && len(fn.Blocks) > 0 {
			return fn
		}
	}
	return nil
}

// entryHasExecutableByte reports whether at least the first byte at a is
// available and executable (an optimistic pre-check; full decoding happens
// lazily per block).
func (l *FunctionLifter) entryHasExecutableByte(a addr.Addr) bool {
	_, availability, permission := l.Oracle.Query(a)
	return availability.Available() && permission.Executable()
}

// getOrCreateBlock implements spec.md section 4.1's GetOrCreateBlock: the
// block that will hold the instruction at toPC, keyed by the (fromPC, toPC)
// edge. On first creation it enqueues the edge on the worklist.
func (l *FunctionLifter) getOrCreateBlock(fromPC, toPC addr.Addr) *ir.BasicBlock {
	key := addr.Edge{From: fromPC, To: toPC}
	if block, ok := l.blocks[key]; ok {
		return block
	}
	name := fmt.Sprintf("inst_%016X", uint64(toPC))
	block := irbuild.NewBlock(name)
	l.blocks[key] = block
	irbuild.AppendBlock(l.fn, block)
	l.worklist = append(l.worklist, key)
	return block
}

// getOrCreateTargetBlock implements GetOrCreateTargetBlock: consult the
// redirection provider first, modeling trampolines and hook rewrites.
func (l *FunctionLifter) getOrCreateTargetBlock(fromPC, toPC addr.Addr) *ir.BasicBlock {
	redirected := l.Redirect.GetRedirection(toPC)
	return l.getOrCreateBlock(fromPC, redirected)
}

// currentMemory loads the current memory-pointer value from this
// function's memory slot (see bootstrap.go).
func (l *FunctionLifter) currentMemory(block *ir.BasicBlock) value.Value {
	return irbuild.Load(block, memory.PointerType, l.memSlot)
}

// setMemory stores val as the function's current memory-pointer value.
func (l *FunctionLifter) setMemory(block *ir.BasicBlock, val value.Value) {
	irbuild.Store(block, val, l.memSlot)
}
