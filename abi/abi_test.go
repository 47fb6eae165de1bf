package abi

import (
	"testing"

	"github.com/llir/llvm/ir/types"

	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/decode"
)

type fakeBackend struct{ sparc bool }

func (f fakeBackend) Name() string                  { return "fake" }
func (f fakeBackend) AddressSize() int              { return 32 }
func (f fakeBackend) MaxInstructionSize() int       { return 4 }
func (f fakeBackend) ProgramCounterRegister() string { return "PC" }
func (f fakeBackend) StackPointerRegister() string  { return "SP" }
func (f fakeBackend) NextPCRegister() string        { return "" }
func (f fakeBackend) Registers() []string           { return []string{"PC", "SP"} }
func (f fakeBackend) IsSPARC() bool                 { return f.sparc }
func (f fakeBackend) Decode(addr.Addr, []byte) (decode.Instruction, bool)        { return decode.Instruction{}, false }
func (f fakeBackend) DecodeDelayed(addr.Addr, []byte) (decode.Instruction, bool) { return decode.Instruction{}, false }
func (f fakeBackend) MayHaveDelaySlot(decode.Instruction) bool                   { return false }
func (f fakeBackend) NextInstructionIsDelayed(decode.Instruction, decode.Instruction, bool) bool {
	return false
}

type fakeOracle struct {
	bytes map[addr.Addr]byte
}

func (o fakeOracle) Query(a addr.Addr) (byte, decode.ByteAvailability, decode.BytePermission) {
	b, ok := o.bytes[a]
	if !ok {
		return 0, decode.AvailabilityUnavailable, decode.PermissionUnknown
	}
	return b, decode.AvailabilityAvailable, decode.PermissionReadableExecutable
}

func TestPostCallReturnPCSkipsNonZeroUnimp(t *testing.T) {
	// op=0, op2=0, imm22=16 at 0xB008.
	oracle := fakeOracle{bytes: map[addr.Addr]byte{
		0xB008: 0x00, 0xB009: 0x00, 0xB00A: 0x00, 0xB00B: 0x10,
	}}
	got := PostCallReturnPC(fakeBackend{sparc: true}, oracle, 0xB008)
	if want := addr.Addr(0xB00C); got != want {
		t.Errorf("PostCallReturnPC = %v, want %v", got, want)
	}
}

func TestPostCallReturnPCIgnoresZeroUnimp(t *testing.T) {
	oracle := fakeOracle{bytes: map[addr.Addr]byte{
		0xB008: 0x00, 0xB009: 0x00, 0xB00A: 0x00, 0xB00B: 0x00,
	}}
	got := PostCallReturnPC(fakeBackend{sparc: true}, oracle, 0xB008)
	if want := addr.Addr(0xB008); got != want {
		t.Errorf("PostCallReturnPC = %v, want %v (zero unimp is not a skip)", got, want)
	}
}

func TestPostCallReturnPCNonSPARCNeverSkips(t *testing.T) {
	oracle := fakeOracle{bytes: map[addr.Addr]byte{
		0x1000: 0x00, 0x1001: 0x00, 0x1002: 0x00, 0x1003: 0x10,
	}}
	got := PostCallReturnPC(fakeBackend{sparc: false}, oracle, 0x1000)
	if want := addr.Addr(0x1000); got != want {
		t.Errorf("PostCallReturnPC = %v, want %v (non-SPARC never skips)", got, want)
	}
}

func TestPostCallReturnPCUnavailableBytesFallBack(t *testing.T) {
	oracle := fakeOracle{bytes: map[addr.Addr]byte{}}
	got := PostCallReturnPC(fakeBackend{sparc: true}, oracle, 0x2000)
	if want := addr.Addr(0x2000); got != want {
		t.Errorf("PostCallReturnPC = %v, want %v (probe failure falls back)", got, want)
	}
}

func TestDigestTypeStableAndDistinguishing(t *testing.T) {
	d1 := &FunctionDecl{Params: []ValueLocation{Register("O0", types.I32)}}
	d2 := &FunctionDecl{Params: []ValueLocation{Register("O0", types.I32)}}
	d3 := &FunctionDecl{Params: []ValueLocation{Register("O0", types.I64)}}

	if DigestType(d1) != DigestType(d2) {
		t.Error("identical declarations must digest identically")
	}
	if DigestType(d1) == DigestType(d3) {
		t.Error("declarations with different param types must digest differently")
	}
}

func TestDisplayNameUsesUserSymbolWhenSet(t *testing.T) {
	d := &FunctionDecl{Address: 0x1000, Name: "main"}
	if got := d.DisplayName(); got != "main" {
		t.Errorf("DisplayName = %q, want %q", got, "main")
	}
}

func TestDisplayNameGeneratesSubName(t *testing.T) {
	d := &FunctionDecl{Address: 0x1000, CallingConv: "cdecl"}
	got := d.DisplayName()
	want := "sub_0000000000001000_" + DigestType(d) + "_cdecl"
	if got != want {
		t.Errorf("DisplayName = %q, want %q", got, want)
	}
}
