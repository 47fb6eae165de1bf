// Package entitylifter implements the entity-lifter glue of spec.md
// section 4.8: a shared target module, address→entity bookkeeping, and a
// call graph built as functions are copied in, following the source
// project's EntityLifter::LiftEntity/DeclareEntity/AddFunctionToContext.
package entitylifter

import (
	"github.com/dominikbraun/graph"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/mewmew/liftgo/abi"
	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/lift"
)

// LifterContext owns the target module that accumulates every entity
// lifted across many FunctionLifter.LiftFunction calls, a per-address index
// of the entities declared there (for dedupe-by-address-and-type), and a
// caller→callee call graph discovered by walking each newly copied
// function's instructions. Mutating a shared LifterContext concurrently
// requires external serialization (spec.md section 5).
type LifterContext struct {
	Module *ir.Module

	lifter    *lift.FunctionLifter
	liftCtx   *lift.Context
	byAddress map[addr.Addr][]*ir.Function
	callGraph graph.Graph[string, string]
}

// New returns a LifterContext that places every lifted entity into target,
// driving l (already constructed against the architecture and providers
// this binary needs) for the actual per-function lift work.
func New(target *ir.Module, l *lift.FunctionLifter, liftCtx *lift.Context) *LifterContext {
	return &LifterContext{
		Module:    target,
		lifter:    l,
		liftCtx:   liftCtx,
		byAddress: make(map[addr.Addr][]*ir.Function),
		callGraph: graph.New(graph.StringHash, graph.Directed()),
	}
}

// entitiesAtAddress invokes fn once per entity already known at a.
func (c *LifterContext) entitiesAtAddress(a addr.Addr, fn func(*ir.Function)) {
	for _, f := range c.byAddress[a] {
		fn(f)
	}
}

// LiftEntity lifts decl's body (if the lifter has bytes for it) and copies
// the resulting function into the target module, deduping by address and
// signature type exactly as EntityLifter::LiftEntity does: an existing
// entity at the same address with the same LLVM function type is reused
// (renamed back to its prior user-assigned name, if it had one and decl's
// generated name would otherwise clobber it); an existing entity at the
// same address with a different type is superseded rather than merged.
// Every *ir.InstCall in the copied body that targets a name this context
// has already placed at a known address is recorded as a caller→callee
// call-graph edge.
func (c *LifterContext) LiftEntity(decl *abi.FunctionDecl) (*ir.Function, error) {
	lifted, err := c.lifter.LiftFunction(decl)
	if err != nil {
		return nil, err
	}
	return c.placeEntity(decl, lifted), nil
}

// DeclareEntity registers decl's native signature in the target module
// without lifting a body, for addresses referenced only as call targets
// (spec.md section 7, "Declaration available but bytes absent").
func (c *LifterContext) DeclareEntity(decl *abi.FunctionDecl) *ir.Function {
	retType, params := c.lifter.NativeSignature(decl)

	var foundByType *ir.Function
	c.entitiesAtAddress(decl.Address, func(f *ir.Function) {
		if foundByType == nil && sameSignature(f, retType, params) {
			foundByType = f
		}
	})
	if foundByType != nil {
		return foundByType
	}

	fn := ir.NewFunc(decl.DisplayName(), retType, params...)
	return c.addFunctionToContext(fn, decl.Address)
}

// placeEntity implements AddFunctionToContext: find-or-create the target
// module's function by name, replacing any existing body, and index it by
// address. Only a same-signature entity at the address (foundByType) is
// looked up; an entity with a different signature at the same address is
// neither distinguished nor recorded.
func (c *LifterContext) placeEntity(decl *abi.FunctionDecl, lifted *ir.Function) *ir.Function {
	retType, params := c.lifter.NativeSignature(decl)

	var foundByType *ir.Function
	c.entitiesAtAddress(decl.Address, func(f *ir.Function) {
		if foundByType == nil && sameSignature(f, retType, params) {
			foundByType = f
		}
	})

	placed := c.addFunctionToContext(lifted, decl.Address)

	if foundByType != nil && foundByType != placed && foundByType.Name() != "" {
		placed.SetName(foundByType.Name())
	}
	c.recordCallEdges(placed)
	return placed
}

// addFunctionToContext finds an existing function of the same name in the
// target module and replaces that module entry with fn, or appends fn as
// new, then indexes it by address, mirroring AddFunctionToContext. Existing
// references to a replaced function are not redirected to fn.
func (c *LifterContext) addFunctionToContext(fn *ir.Function, address addr.Addr) *ir.Function {
	name := fn.Name()
	replaced := false
	for i, existing := range c.Module.Funcs {
		if existing.Name() == name {
			c.Module.Funcs[i] = fn
			replaced = true
			break
		}
	}
	if !replaced {
		c.Module.Funcs = append(c.Module.Funcs, fn)
	}
	c.byAddress[address] = appendUnique(c.byAddress[address], fn)
	c.liftCtx.NameToAddr[name] = address
	c.callGraph.AddVertex(name)
	return fn
}

func appendUnique(fns []*ir.Function, fn *ir.Function) []*ir.Function {
	for _, f := range fns {
		if f == fn {
			return fns
		}
	}
	return append(fns, fn)
}

// recordCallEdges walks fn's body for calls whose callee name this context
// has already placed at a known address, adding a caller→callee call-graph
// edge for each (spec.md section 4.8).
func (c *LifterContext) recordCallEdges(fn *ir.Function) {
	c.callGraph.AddVertex(fn.Name())
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			call, ok := inst.(*ir.InstCall)
			if !ok {
				continue
			}
			callee, ok := call.Callee.(*ir.Function)
			if !ok {
				continue
			}
			if _, ok := c.liftCtx.NameToAddr[callee.Name()]; !ok {
				continue
			}
			c.callGraph.AddVertex(callee.Name())
			// Re-adding an edge that already exists (two calls to the same
			// callee) or a parallel edge is harmless; ignore the error.
			_ = c.callGraph.AddEdge(fn.Name(), callee.Name())
		}
	}
}

// CallGraph returns the caller→callee call graph accumulated so far.
func (c *LifterContext) CallGraph() graph.Graph[string, string] {
	return c.callGraph
}

// sameSignature reports whether fn's existing LLVM signature matches a
// native signature described by retType and params.
func sameSignature(fn *ir.Function, retType types.Type, params []*ir.Param) bool {
	if fn.Sig.RetType.String() != retType.String() {
		return false
	}
	if len(fn.Params) != len(params) {
		return false
	}
	for i, p := range fn.Params {
		if p.Type().String() != params[i].Type().String() {
			return false
		}
	}
	return true
}
