// Package intrinsic declares and calls the small set of opaque helper
// functions the category dispatcher tail-calls into when control flow
// cannot be resolved statically (spec.md section 4.2): "jump",
// "function_call", "function_return", "async_hyper_call" and "error", plus
// the mandatory memory-escape helper of section 4.4 and the per-type
// "taint" functions of section 4.6. Every one of these is declared once per
// module and reused across call sites, following the same "declared per
// goal-type, reused across uses" rule the type-hint injector uses for taint
// functions.
package intrinsic

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/mewmew/liftgo/irbuild"
	"github.com/mewmew/liftgo/memory"
)

// Kind names one of the five opaque control-flow intrinsics.
type Kind int

const (
	Jump Kind = iota
	FunctionCall
	FunctionReturn
	AsyncHyperCall
	Error
)

func (k Kind) String() string {
	switch k {
	case Jump:
		return "jump"
	case FunctionCall:
		return "function_call"
	case FunctionReturn:
		return "function_return"
	case AsyncHyperCall:
		return "async_hyper_call"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// taintCacheSize bounds the number of distinct goal-type taint functions
// kept alive per Intrinsics instance; one module rarely lifts more than a
// few dozen distinct pointer goal types.
const taintCacheSize = 256

// Intrinsics declares and caches, per module, every opaque helper function
// the function lifter may call: the five control-flow intrinsics, the
// memory-escape helper, and per-digest taint functions.
type Intrinsics struct {
	module        *ir.Module
	stateType     *types.PointerType
	pcType        types.Type
	controlFlow   map[Kind]*ir.Function
	memoryEscape  *ir.Function
	returnAddress *ir.Function
	taintFuncs    *lru.Cache[string, *ir.Function]
}

// New returns a new Intrinsics bound to module. stateType is the pointer
// type of the emulated state structure; pcType is the register width used
// for the program counter argument of the three-argument semantics form.
func New(module *ir.Module, stateType *types.PointerType, pcType types.Type) *Intrinsics {
	cache, err := lru.New[string, *ir.Function](taintCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size, which taintCacheSize never is
	}
	return &Intrinsics{
		module:      module,
		stateType:   stateType,
		pcType:      pcType,
		controlFlow: make(map[Kind]*ir.Function),
		taintFuncs:  cache,
	}
}

// params returns the three-argument semantics-form parameter list: state
// pointer, memory pointer, program counter.
func (n *Intrinsics) params() []*ir.Param {
	return []*ir.Param{
		irbuild.NewParam("state", n.stateType),
		irbuild.NewParam("memory", memory.PointerType),
		irbuild.NewParam("pc", n.pcType),
	}
}

func (n *Intrinsics) controlFlowFunc(kind Kind) *ir.Function {
	if fn, ok := n.controlFlow[kind]; ok {
		return fn
	}
	fn := irbuild.NewFunc("__lift_"+kind.String(), memory.PointerType, n.params()...)
	irbuild.AppendFunc(n.module, fn)
	n.controlFlow[kind] = fn
	return fn
}

// Call emits a tail-call to the named control-flow intrinsic, returning the
// call instruction whose result is the resulting memory pointer.
func (n *Intrinsics) Call(block *ir.BasicBlock, kind Kind, state, mem, pc value.Value) *ir.InstCall {
	fn := n.controlFlowFunc(kind)
	return irbuild.Call(block, fn, state, mem, pc)
}

// MuteStateEscape replaces call's state-pointer argument (assumed to be
// argument 0, per the three-argument semantics form) with an undefined
// value, per spec.md section 4.2's "Mute state escape": this preserves
// observability of the PC argument while not blocking optimization passes
// that would otherwise treat the state pointer as having escaped.
func MuteStateEscape(call *ir.InstCall, stateType types.Type) {
	if len(call.Args) == 0 {
		return
	}
	call.Args[0] = irbuild.Undef(stateType)
}

// MemoryEscape declares (on first use) and calls the mandatory
// memory-escape helper of spec.md section 4.4, which exists solely so that
// terminal memory writes in a lifted function cannot be eliminated as dead
// stores by the post-lift cleanup pipeline.
func (n *Intrinsics) MemoryEscape(block *ir.BasicBlock, mem value.Value) *ir.InstCall {
	if n.memoryEscape == nil {
		fn := irbuild.NewFunc("__lift_memory_escape", memory.PointerType,
			irbuild.NewParam("memory", memory.PointerType))
		irbuild.AppendFunc(n.module, fn)
		n.memoryEscape = fn
	}
	return irbuild.Call(block, n.memoryEscape, mem)
}

// ReturnAddress declares (on first use) and calls an opaque helper standing
// in for the compiler's "return address of current frame" intrinsic, per
// spec.md section 4.5's concrete return-address seeding policy: that value
// is a codegen-time construct with no meaningful value during IR
// construction at a fixed entry point, so this module models it the same
// way it models every other environment-supplied value it cannot compute
// itself — an opaque external call, the same idiom as the five control-flow
// intrinsics.
func (n *Intrinsics) ReturnAddress(block *ir.BasicBlock) *ir.InstCall {
	if n.returnAddress == nil {
		fn := irbuild.NewFunc("__lift_return_address", n.pcType)
		irbuild.AppendFunc(n.module, fn)
		n.returnAddress = fn
	}
	return irbuild.Call(block, n.returnAddress)
}

// Taint declares (on first use, and thereafter serves from an LRU cache)
// and calls the opaque taint function for the given goal-type digest, per
// spec.md section 4.6. The taint function is a pure identity over its
// register-width integer argument, named so that downstream passes can
// recover the intended pointer goal type from the call site alone.
func (n *Intrinsics) Taint(block *ir.BasicBlock, digest string, regType types.Type, val value.Value) *ir.InstCall {
	fn, ok := n.taintFuncs.Get(digest)
	if !ok {
		// The taint function is declared as a bodiless function (a
		// declaration), which callers of this module should treat as
		// reading no memory: it has no side effects to model, only an
		// identity transform over its argument.
		name := fmt.Sprintf("__lift_taint_%s", digest)
		fn = irbuild.NewFunc(name, regType, irbuild.NewParam("value", regType))
		irbuild.AppendFunc(n.module, fn)
		n.taintFuncs.Add(digest, fn)
	}
	return irbuild.Call(block, fn, val)
}
