package intrinsic

import (
	"testing"

	"github.com/llir/llvm/ir/types"

	"github.com/mewmew/liftgo/irbuild"
	"github.com/mewmew/liftgo/memory"
)

func TestControlFlowCallDeclaresOncePerKind(t *testing.T) {
	module := irbuild.NewModule()
	stateType := types.NewPointer(types.NewStruct())
	n := New(module, stateType, types.I64)
	block := irbuild.NewBlock("entry")

	state := irbuild.NullPtr(stateType)
	mem := irbuild.NullPtr(memory.PointerType)
	pc := irbuild.ConstInt(types.I64, 0x1000)

	n.Call(block, Jump, state, mem, pc)
	n.Call(block, Jump, state, mem, pc)
	n.Call(block, FunctionReturn, state, mem, pc)

	if len(module.Funcs) != 2 {
		t.Fatalf("got %d declared funcs, want 2 (jump, function_return)", len(module.Funcs))
	}
	if len(block.Insts) != 3 {
		t.Fatalf("got %d instructions, want 3 calls", len(block.Insts))
	}
}

func TestMuteStateEscapeReplacesFirstArg(t *testing.T) {
	module := irbuild.NewModule()
	stateType := types.NewPointer(types.NewStruct())
	n := New(module, stateType, types.I64)
	block := irbuild.NewBlock("entry")

	state := irbuild.NullPtr(stateType)
	mem := irbuild.NullPtr(memory.PointerType)
	pc := irbuild.ConstInt(types.I64, 0)

	call := n.Call(block, Error, state, mem, pc)
	MuteStateEscape(call, stateType)

	if call.Args[0] == state {
		t.Error("state-pointer argument was not replaced with an undefined value")
	}
}

func TestTaintCachesByDigest(t *testing.T) {
	module := irbuild.NewModule()
	stateType := types.NewPointer(types.NewStruct())
	n := New(module, stateType, types.I64)
	block := irbuild.NewBlock("entry")

	val := irbuild.ConstInt(types.I64, 0)
	n.Taint(block, "abc123", types.I64, val)
	n.Taint(block, "abc123", types.I64, val)
	n.Taint(block, "def456", types.I64, val)

	if len(module.Funcs) != 2 {
		t.Fatalf("got %d declared taint funcs, want 2 distinct digests", len(module.Funcs))
	}
}

func TestMemoryEscapeDeclaresOnce(t *testing.T) {
	module := irbuild.NewModule()
	stateType := types.NewPointer(types.NewStruct())
	n := New(module, stateType, types.I64)
	block := irbuild.NewBlock("entry")

	mem := irbuild.NullPtr(memory.PointerType)
	n.MemoryEscape(block, mem)
	n.MemoryEscape(block, mem)

	count := 0
	for _, fn := range module.Funcs {
		if fn.Name() == "__lift_memory_escape" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("memory escape helper declared %d times, want 1", count)
	}
}
