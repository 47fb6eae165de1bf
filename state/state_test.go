package state

import (
	"testing"

	"github.com/llir/llvm/ir/types"

	"github.com/mewmew/liftgo/decode/delayslot"
	"github.com/mewmew/liftgo/irbuild"
)

func TestNewLayoutIndexesEveryRegister(t *testing.T) {
	backend := delayslot.New()
	layout := NewLayout(backend)
	for _, name := range backend.Registers() {
		if !layout.Has(name) {
			t.Errorf("layout missing register %q", name)
		}
	}
	if got, want := len(layout.Type.Fields), len(backend.Registers()); got != want {
		t.Errorf("struct field count = %d, want %d", got, want)
	}
}

func TestAllocateAndRoundTrip(t *testing.T) {
	backend := delayslot.New()
	layout := NewLayout(backend)
	block := irbuild.NewBlock("entry")

	emulated := Allocate(block, layout)
	intType, ok := layout.RegType.(*types.IntType)
	if !ok {
		t.Fatal("register type is not an integer type")
	}
	emulated.Store(block, "SP", irbuild.ConstInt(intType, 42))
	emulated.Load(block, "SP")

	if len(block.Insts) != 5 {
		t.Fatalf("got %d instructions, want 5 (alloca, gep, store, gep, load)", len(block.Insts))
	}
}

func TestPointerPanicsOnUnknownRegister(t *testing.T) {
	backend := delayslot.New()
	layout := NewLayout(backend)
	block := irbuild.NewBlock("entry")
	emulated := Allocate(block, layout)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown register")
		}
	}()
	emulated.Pointer(block, "NOT_A_REGISTER")
}
