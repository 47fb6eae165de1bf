package provider

import (
	"testing"

	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/decode"
)

const testSpecJSON = `{
  "functions": [
    {
      "address": "0x1000",
      "name": "main",
      "calling_convention": "cdecl",
      "params": [{"kind": "register", "reg": "EDI", "type": "i32"}],
      "returns": [{"kind": "register", "reg": "EAX", "type": "i32"}],
      "return_address": {"kind": "memory", "reg": "ESP", "offset": 0, "type": "i32"}
    }
  ],
  "memory_ranges": [
    {"address": "0x1000", "permission": "rx", "bytes": "ebfe"}
  ],
  "redirections": [["0x2000", "0x3000"]]
}`

func TestParseProgramSpecRoundTrip(t *testing.T) {
	spec, err := ParseProgramSpec([]byte(testSpecJSON))
	if err != nil {
		t.Fatalf("ParseProgramSpec: %v", err)
	}
	if len(spec.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(spec.Functions))
	}
	if spec.Functions[0].Name != "main" {
		t.Errorf("function name = %q, want %q", spec.Functions[0].Name, "main")
	}
}

func TestStaticTypeProviderResolvesDeclarations(t *testing.T) {
	spec, err := ParseProgramSpec([]byte(testSpecJSON))
	if err != nil {
		t.Fatalf("ParseProgramSpec: %v", err)
	}
	types := NewTypeRegistry()
	tp, err := NewStaticTypeProvider(spec, types)
	if err != nil {
		t.Fatalf("NewStaticTypeProvider: %v", err)
	}
	var a addr.Addr
	a.Set("0x1000")
	decl := tp.TryGetFunctionType(a)
	if decl == nil {
		t.Fatal("expected a declaration at 0x1000")
	}
	if decl.DisplayName() != "main" {
		t.Errorf("DisplayName = %q, want %q", decl.DisplayName(), "main")
	}
	if len(decl.Params) != 1 || decl.Params[0].Reg != "EDI" {
		t.Errorf("unexpected params: %+v", decl.Params)
	}

	var unknown addr.Addr
	unknown.Set("0x9999")
	if tp.TryGetFunctionType(unknown) != nil {
		t.Error("expected nil declaration at an undeclared address")
	}
}

func TestMapByteOracleReportsUnavailableOutsideRanges(t *testing.T) {
	spec, err := ParseProgramSpec([]byte(testSpecJSON))
	if err != nil {
		t.Fatalf("ParseProgramSpec: %v", err)
	}
	oracle, err := NewMapByteOracle(spec.MemoryRanges)
	if err != nil {
		t.Fatalf("NewMapByteOracle: %v", err)
	}

	var inRange addr.Addr
	inRange.Set("0x1000")
	b, availability, permission := oracle.Query(inRange)
	if !availability.Available() {
		t.Fatal("expected byte at 0x1000 to be available")
	}
	if b != 0xeb {
		t.Errorf("byte = 0x%02x, want 0xeb", b)
	}
	if !permission.Executable() {
		t.Error("expected executable permission at 0x1000")
	}

	var outOfRange addr.Addr
	outOfRange.Set("0x5000")
	_, availability, _ = oracle.Query(outOfRange)
	if availability != decode.AvailabilityUnavailable {
		t.Errorf("availability = %v, want Unavailable", availability)
	}
}

func TestMapRedirectProviderIdentityWhenUnregistered(t *testing.T) {
	spec, err := ParseProgramSpec([]byte(testSpecJSON))
	if err != nil {
		t.Fatalf("ParseProgramSpec: %v", err)
	}
	redirect, err := NewMapRedirectProvider(spec.Redirections)
	if err != nil {
		t.Fatalf("NewMapRedirectProvider: %v", err)
	}

	var from addr.Addr
	from.Set("0x2000")
	var want addr.Addr
	want.Set("0x3000")
	if got := redirect.GetRedirection(from); got != want {
		t.Errorf("GetRedirection(0x2000) = %v, want %v", got, want)
	}

	var unregistered addr.Addr
	unregistered.Set("0xABCD")
	if got := redirect.GetRedirection(unregistered); got != unregistered {
		t.Errorf("GetRedirection should be identity when unregistered, got %v", got)
	}
}
