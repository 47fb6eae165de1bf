package x86

import (
	"testing"

	"github.com/mewmew/liftgo/decode"
	decodex86 "github.com/mewmew/liftgo/decode/x86"
	"github.com/mewmew/liftgo/irbuild"
	"github.com/mewmew/liftgo/memory"
	"github.com/mewmew/liftgo/semantics"
	"github.com/mewmew/liftgo/state"
)

func TestTemplateForKnownOpcodes(t *testing.T) {
	backend := decodex86.New(decodex86.Mode32)
	lib := New()

	// add eax, ebx (01 D8)
	inst, ok := backend.Decode(0x1000, []byte{0x01, 0xD8})
	if !ok {
		t.Fatal("expected successful decode")
	}
	tmpl, ok := lib.TemplateFor(inst)
	if !ok {
		t.Fatal("expected a template for ADD")
	}

	layout := state.NewLayout(backend)
	module := irbuild.NewModule()
	block := irbuild.NewBlock("entry")
	emulated := state.Allocate(block, layout)
	accessors := memory.NewAccessors(module, layout.RegType)
	mem := irbuild.NullPtr(memory.PointerType)

	ctx := semantics.Context{Block: block, State: emulated, Accessors: accessors, Memory: mem}
	tmpl.Emit(ctx, inst)

	if len(block.Insts) == 0 {
		t.Fatal("expected instructions to be emitted for ADD")
	}
}

func TestTemplateForNonX86PayloadIsFalse(t *testing.T) {
	lib := New()
	_, ok := lib.TemplateFor(decode.Instruction{Arch: "not an x86asm.Inst"})
	if ok {
		t.Fatal("expected no template for a non-x86 instruction payload")
	}
}
