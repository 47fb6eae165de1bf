package x86

import (
	"testing"

	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/decode"
)

func TestDecodeDirectJump(t *testing.T) {
	b := New(Mode32)
	// jmp $+2 (EB 00): short jump past itself, relative displacement 0.
	inst, ok := b.Decode(0x1000, []byte{0xEB, 0x00})
	if !ok {
		t.Fatal("expected successful decode")
	}
	if inst.Category != decode.CategoryDirectJump {
		t.Fatalf("category = %v, want %v", inst.Category, decode.CategoryDirectJump)
	}
	want := addr.Addr(0x1002)
	if inst.BranchTakenPC != want {
		t.Errorf("BranchTakenPC = %v, want %v", inst.BranchTakenPC, want)
	}
}

func TestDecodeIndirectJump(t *testing.T) {
	b := New(Mode32)
	// jmp eax (FF E0)
	inst, ok := b.Decode(0x2000, []byte{0xFF, 0xE0})
	if !ok {
		t.Fatal("expected successful decode")
	}
	if inst.Category != decode.CategoryIndirectJump {
		t.Fatalf("category = %v, want %v", inst.Category, decode.CategoryIndirectJump)
	}
}

func TestDecodeReturn(t *testing.T) {
	b := New(Mode32)
	inst, ok := b.Decode(0x3000, []byte{0xC3})
	if !ok {
		t.Fatal("expected successful decode")
	}
	if inst.Category != decode.CategoryFunctionReturn {
		t.Fatalf("category = %v, want %v", inst.Category, decode.CategoryFunctionReturn)
	}
}

func TestDecodeInvalid(t *testing.T) {
	b := New(Mode32)
	if _, ok := b.Decode(0x4000, nil); ok {
		t.Fatal("expected decode failure on empty input")
	}
}

func TestDecodeDirectCall(t *testing.T) {
	b := New(Mode32)
	// call $+5 (E8 00 00 00 00): relative call, displacement 0.
	inst, ok := b.Decode(0x5000, []byte{0xE8, 0x00, 0x00, 0x00, 0x00})
	if !ok {
		t.Fatal("expected successful decode")
	}
	if inst.Category != decode.CategoryDirectFunctionCall {
		t.Fatalf("category = %v, want %v", inst.Category, decode.CategoryDirectFunctionCall)
	}
	want := addr.Addr(0x5005)
	if inst.BranchTakenPC != want {
		t.Errorf("BranchTakenPC = %v, want %v", inst.BranchTakenPC, want)
	}
	if inst.BranchNotTakenPC != 0x5005 {
		t.Errorf("BranchNotTakenPC = %v, want 0x5005", inst.BranchNotTakenPC)
	}
}

func TestMayHaveDelaySlotAlwaysFalse(t *testing.T) {
	b := New(Mode64)
	if b.MayHaveDelaySlot(decode.Instruction{}) {
		t.Error("x86 must never report a delay slot")
	}
}
