package lift_test

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"

	"github.com/mewmew/liftgo/abi"
	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/decode"
	"github.com/mewmew/liftgo/decode/delayslot"
	"github.com/mewmew/liftgo/decode/x86"
	"github.com/mewmew/liftgo/lift"
	"github.com/mewmew/liftgo/semantics"
	semx86 "github.com/mewmew/liftgo/semantics/x86"
	"github.com/mewmew/liftgo/state"
)

// flatOracle serves bytes from a single contiguous, fully-available,
// executable buffer starting at base, for tests that do not need the full
// permission-range modeling provider.MapByteOracle offers.
type flatOracle struct {
	base addr.Addr
	data []byte
}

func (o flatOracle) Query(a addr.Addr) (byte, decode.ByteAvailability, decode.BytePermission) {
	if a < o.base || uint64(a-o.base) >= uint64(len(o.data)) {
		return 0, decode.AvailabilityUnavailable, decode.PermissionUnknown
	}
	return o.data[uint64(a-o.base)], decode.AvailabilityAvailable, decode.PermissionReadableExecutable
}

// nopProviders resolves no declarations and no hints; GetRedirection is the
// identity.
type nopProviders struct{}

func (nopProviders) TryGetFunctionType(addr.Addr) *abi.FunctionDecl                         { return nil }
func (nopProviders) QueryRegisterStateAtInstruction(_, _ addr.Addr, _ func(lift.RegisterHint)) {}
func (nopProviders) GetRedirection(a addr.Addr) addr.Addr                                   { return a }

func TestLiftFunctionDeclarationOnlyWhenEntryUnavailable(t *testing.T) {
	backend := x86.New(x86.Mode32)
	oracle := flatOracle{base: 0x1000, data: nil}
	l := lift.New(backend, oracle, nopProviders{}, nopProviders{}, semx86.New(), lift.DefaultOptions(), lift.NewContext())

	decl := &abi.FunctionDecl{Address: 0x2000, Name: "unavailable_fn"}
	fn, err := l.LiftFunction(decl)
	if err != nil {
		t.Fatalf("LiftFunction returned error: %v", err)
	}
	if len(fn.Blocks) != 0 {
		t.Errorf("declaration-only function has %d blocks, want 0", len(fn.Blocks))
	}
	if fn.Name() != "unavailable_fn" {
		t.Errorf("Name() = %q, want %q", fn.Name(), "unavailable_fn")
	}
}

// encodeRet returns the single-byte x86 RET opcode.
func encodeRet() []byte { return []byte{0xC3} }

func TestLiftFunctionSimpleReturnProducesTwoFunctions(t *testing.T) {
	backend := x86.New(x86.Mode32)
	oracle := flatOracle{base: 0x1000, data: encodeRet()}
	l := lift.New(backend, oracle, nopProviders{}, nopProviders{}, semx86.New(), lift.DefaultOptions(), lift.NewContext())

	decl := &abi.FunctionDecl{Address: 0x1000, Name: "ret_only"}
	fn, err := l.LiftFunction(decl)
	if err != nil {
		t.Fatalf("LiftFunction returned error: %v", err)
	}
	if len(fn.Blocks) == 0 {
		t.Fatalf("native wrapper has no blocks")
	}

	module := l.Module()
	var foundLifted bool
	for _, f := range module.Funcs {
		if f.Name() == "ret_only_lifted" {
			foundLifted = true
			if len(f.Blocks) == 0 {
				t.Errorf("lifted function has no blocks")
			}
		}
	}
	if !foundLifted {
		t.Errorf("module does not contain the inner lifted function")
	}
}

type staticTypes struct {
	decls map[addr.Addr]*abi.FunctionDecl
}

func (s staticTypes) TryGetFunctionType(a addr.Addr) *abi.FunctionDecl { return s.decls[a] }
func (s staticTypes) QueryRegisterStateAtInstruction(_, _ addr.Addr, _ func(lift.RegisterHint)) {
}

func TestLiftFunctionTailCallToKnownDeclarationEmitsCallAndRet(t *testing.T) {
	backend := x86.New(x86.Mode32)
	// A direct jmp rel8 (0xEB) to a known, declared function's entry:
	// jmp +0 lands on the instruction immediately following the jmp itself.
	data := []byte{0xEB, 0x00}
	oracle := flatOracle{base: 0x1000, data: data}

	callee := &abi.FunctionDecl{Address: 0x1002, Name: "callee"}
	types := staticTypes{decls: map[addr.Addr]*abi.FunctionDecl{0x1002: callee}}

	l := lift.New(backend, oracle, types, nopProviders{}, semx86.New(), lift.DefaultOptions(), lift.NewContext())
	decl := &abi.FunctionDecl{Address: 0x1000, Name: "tailcaller"}
	_, err := l.LiftFunction(decl)
	if err != nil {
		t.Fatalf("LiftFunction returned error: %v", err)
	}

	module := l.Module()
	var calleeCalled bool
	for _, f := range module.Funcs {
		if f.Name() != "tailcaller_lifted" {
			continue
		}
		for _, block := range f.Blocks {
			for _, inst := range block.Insts {
				if call, ok := inst.(*ir.InstCall); ok {
					if calleeFn, ok := call.Callee.(*ir.Function); ok && calleeFn.Name() == "callee" {
						calleeCalled = true
					}
				}
			}
		}
	}
	if !calleeCalled {
		t.Errorf("expected a call to the declared callee function in the lifted body")
	}
}

// noopSemantics answers false for every instruction, exercising the "no
// template" fallback path while still letting the category dispatcher drive
// control flow.
type noopSemantics struct{}

func (noopSemantics) TemplateFor(decode.Instruction) (semantics.Template, bool) {
	return nil, false
}

// delayedCounter answers false for every instruction like noopSemantics,
// and counts how often it is asked about a delay-slot instruction.
type delayedCounter struct{ n *int }

func (c delayedCounter) TemplateFor(inst decode.Instruction) (semantics.Template, bool) {
	if inst.IsDelayed {
		*c.n++
	}
	return nil, false
}

func TestLiftFunctionDelaySlotDuplicatedOnTakenAndNotTakenPaths(t *testing.T) {
	backend := delayslot.New()
	// conditional branch (tag 0x01) with a displacement of +2 words,
	// immediately followed by a "normal" delay-slot instruction.
	branch := []byte{delayslot.OpConditionalBranch, 0x00, 0x00, 0x02}
	delayed := []byte{delayslot.OpNormal, 0x00, 0x00, 0x00}
	data := append(append([]byte{}, branch...), delayed...)
	oracle := flatOracle{base: 0x1000, data: data}

	var delayedLifts int
	l := lift.New(backend, oracle, nopProviders{}, nopProviders{}, delayedCounter{n: &delayedLifts}, lift.DefaultOptions(), lift.NewContext())
	decl := &abi.FunctionDecl{Address: 0x1000, Name: "branchy"}
	fn, err := l.LiftFunction(decl)
	if err != nil {
		t.Fatalf("LiftFunction returned error: %v", err)
	}
	if len(fn.Blocks) == 0 {
		t.Fatalf("native wrapper has no blocks")
	}

	module := l.Module()
	var takenBlocks, notTakenBlocks int
	for _, f := range module.Funcs {
		for _, block := range f.Blocks {
			switch {
			case hasSuffix(block.Name(), "_not_taken"):
				notTakenBlocks++
			case hasSuffix(block.Name(), "_taken"):
				takenBlocks++
			}
		}
	}
	if takenBlocks == 0 || notTakenBlocks == 0 {
		t.Errorf("expected both taken and not-taken blocks, got %d taken, %d not-taken", takenBlocks, notTakenBlocks)
	}
	if delayedLifts != 2 {
		t.Errorf("delay-slot instruction lifted %d times, want 2 (once on each path)", delayedLifts)
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// fieldIndexOf returns layout's field index for register name.
func fieldIndexOf(t *testing.T, layout *state.Layout, name string) int64 {
	t.Helper()
	for i, n := range layout.Registers() {
		if n == name {
			return int64(i)
		}
	}
	t.Fatalf("register %q not present in layout", name)
	return -1
}

// constantStoresToField returns, across every block of every function in
// module, the constant integer values stored through a GetElementPtr
// addressing the state struct's field at the given index.
func constantStoresToField(module *ir.Module, target int64) []int64 {
	var got []int64
	for _, f := range module.Funcs {
		for _, block := range f.Blocks {
			for _, inst := range block.Insts {
				store, ok := inst.(*ir.InstStore)
				if !ok {
					continue
				}
				gep, ok := store.Dst.(*ir.InstGetElementPtr)
				if !ok || len(gep.Indices) != 2 {
					continue
				}
				idx, ok := gep.Indices[1].(*constant.Int)
				if !ok || idx.X.Int64() != target {
					continue
				}
				val, ok := store.Src.(*constant.Int)
				if !ok {
					continue
				}
				got = append(got, val.X.Int64())
			}
		}
	}
	return got
}

func containsInt64(vals []int64, want int64) bool {
	for _, v := range vals {
		if v == want {
			return true
		}
	}
	return false
}

func TestLiftFunctionDirectCallLinksBothPCAndNextPC(t *testing.T) {
	backend := delayslot.New()
	// direct call (tag 0x04) targeting its own address (disp 0), followed by
	// a normal delay-slot instruction.
	call := []byte{delayslot.OpDirectCall, 0x00, 0x00, 0x00}
	delayed := []byte{delayslot.OpNormal, 0x00, 0x00, 0x00}
	data := append(append([]byte{}, call...), delayed...)
	oracle := flatOracle{base: 0x1000, data: data}

	l := lift.New(backend, oracle, nopProviders{}, nopProviders{}, noopSemantics{}, lift.DefaultOptions(), lift.NewContext())
	decl := &abi.FunctionDecl{Address: 0x1000, Name: "caller"}
	if _, err := l.LiftFunction(decl); err != nil {
		t.Fatalf("LiftFunction returned error: %v", err)
	}

	layout := state.NewLayout(backend)
	pcIdx := fieldIndexOf(t, layout, "PC")
	npcIdx := fieldIndexOf(t, layout, "NPC")

	// The delay-slot bytes following the call decode as a zero "unimp",
	// which sparcUnimpReturnSkip treats as no structure-return skip, so the
	// expected return PC is simply the instruction following the call.
	const wantReturnPC = 0x1004

	pcStores := constantStoresToField(l.Module(), pcIdx)
	if !containsInt64(pcStores, wantReturnPC) {
		t.Errorf("PC stores = %#x, want one store of %#x (the post-call return PC)", pcStores, wantReturnPC)
	}
	npcStores := constantStoresToField(l.Module(), npcIdx)
	if !containsInt64(npcStores, wantReturnPC) {
		t.Errorf("NPC stores = %#x, want one store of %#x (the post-call return PC)", npcStores, wantReturnPC)
	}
}
