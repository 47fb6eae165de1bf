package memory

import (
	"testing"

	"github.com/llir/llvm/ir/types"

	"github.com/mewmew/liftgo/irbuild"
)

func TestAccessorsDeclareOncePerWidth(t *testing.T) {
	module := irbuild.NewModule()
	accessors := NewAccessors(module, types.I64)
	block := irbuild.NewBlock("entry")

	mem := irbuild.NullPtr(PointerType)
	addrVal := irbuild.ConstInt(types.I64, 0x1000)
	val := irbuild.ConstInt(types.I32, 7)

	accessors.Read(block, 32, mem, addrVal)
	accessors.Read(block, 32, mem, addrVal)
	accessors.Write(block, 32, mem, addrVal, val)
	accessors.Write(block, 32, mem, addrVal, val)

	if len(module.Funcs) != 2 {
		t.Fatalf("got %d declared funcs, want 2 (one read, one write)", len(module.Funcs))
	}
	if len(block.Insts) != 4 {
		t.Fatalf("got %d instructions, want 4 calls", len(block.Insts))
	}
}

func TestAccessorsDistinctPerWidth(t *testing.T) {
	module := irbuild.NewModule()
	accessors := NewAccessors(module, types.I64)
	block := irbuild.NewBlock("entry")
	mem := irbuild.NullPtr(PointerType)
	addrVal := irbuild.ConstInt(types.I64, 0)

	accessors.Read(block, 8, mem, addrVal)
	accessors.Read(block, 64, mem, addrVal)

	if len(module.Funcs) != 2 {
		t.Fatalf("got %d declared funcs, want 2 distinct widths", len(module.Funcs))
	}
}
