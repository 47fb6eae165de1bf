// Package abi marshals values between a function's high-level native
// signature and the three-argument semantics form (state pointer, memory
// pointer, program counter), per spec.md section 4.4. It also names lifted
// functions (section 6, "Output") and implements the SPARC post-call
// return-address probe of section 4.4's "Post-call linkage".
package abi

import (
	"fmt"
	"hash/fnv"

	"github.com/llir/llvm/ir/types"

	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/decode"
)

// CallingConv is a tagged calling-convention identifier, carried through to
// the lifted function's output name (spec.md section 6, "Output").
type CallingConv string

// LocationKind is a tagged variant distinguishing where a parameter or return
// value lives, per spec.md section 3's "value-location".
type LocationKind int

const (
	// LocationRegister places the value in a named top-level register.
	LocationRegister LocationKind = iota
	// LocationMemory places the value at {base register} + {offset}.
	LocationMemory
)

// ValueLocation is a single tagged value-location: either {register} or
// {memory base r + offset i}.
type ValueLocation struct {
	Kind   LocationKind
	Reg    string // register name; base register when Kind == LocationMemory
	Offset int64  // byte offset from Reg; only meaningful when Kind == LocationMemory
	Type   types.Type
}

// Register returns a register value-location.
func Register(reg string, typ types.Type) ValueLocation {
	return ValueLocation{Kind: LocationRegister, Reg: reg, Type: typ}
}

// Memory returns a memory-relative value-location.
func Memory(base string, offset int64, typ types.Type) ValueLocation {
	return ValueLocation{Kind: LocationMemory, Reg: base, Offset: offset, Type: typ}
}

// FunctionDecl is a function declaration as described by spec.md section 3:
// entry address, signature type, calling convention, parameter and return
// value-locations, return-address location, return stack-pointer
// expression, and the noreturn/variadic flags.
type FunctionDecl struct {
	Address        addr.Addr
	Name           string // user-applied symbol name, if any; empty selects the generated name
	CallingConv    CallingConv
	Params         []ValueLocation
	Returns        []ValueLocation
	ReturnAddress  ValueLocation
	ReturnStackPtr *int64 // byte delta applied to SP on return, if the ABI specifies one; nil if unspecified
	NoReturn       bool
	Variadic       bool
}

// DisplayName returns decl's output name: the user-applied symbol name if
// one was set, otherwise the generated `sub_<hex-addr>_<type-digest>_<cc>`
// form of spec.md section 6.
func (d *FunctionDecl) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("sub_%016X_%s_%s", uint64(d.Address), DigestType(d), d.CallingConv)
}

// DigestType returns a short, stable hex digest of decl's parameter and
// return type shapes, used to disambiguate two declarations at different
// addresses that would otherwise share a generated name (spec.md section 6
// names the generated form but leaves the digest algorithm unspecified).
// hash/fnv is used rather than a third-party digest: this is a
// disambiguating tag embedded in a human-facing symbol name, not a
// security- or collision-resistance-sensitive value, so the stdlib
// non-cryptographic hash already in Go's standard library is the
// appropriate tool and no pack example reaches for a digest library for
// this kind of naming concern.
func DigestType(d *FunctionDecl) string {
	h := fnv.New32a()
	write := func(loc ValueLocation) {
		fmt.Fprintf(h, "%d:%s:%d:%s;", loc.Kind, loc.Reg, loc.Offset, loc.Type)
	}
	for _, p := range d.Params {
		write(p)
	}
	fmt.Fprint(h, "|")
	for _, r := range d.Returns {
		write(r)
	}
	if d.Variadic {
		fmt.Fprint(h, ";variadic")
	}
	return fmt.Sprintf("%08x", h.Sum32())
}

// sparcUnimpReturnSkip reports whether the four bytes at callNotTakenPC
// hold a SPARC Format-0a `unimp <imm22>` word (op=0, op2=0) with a non-zero
// imm22 — in which case the real return address is four bytes past the
// not-taken PC (spec.md section 4.4, "Post-call linkage", and section 8's
// testable property 7). The bit layout is read directly off the raw word,
// grounded in the source project's structure-return detection
// (FunctionLifter.cpp probes the same four bytes and the same op/op2
// fields), rather than through the architecture decoder: this probe runs
// whether or not the decoder recognizes `unimp` as a category of its own.
// It reports false, leaving the not-taken PC unchanged, whenever the probe
// bytes are unavailable or non-executable (section 7's "SPARC
// return-address probe failure" rule), or when imm22 is zero (section 9's
// resolved Open Question: a zero `unimp 0` is not treated as a
// structure-return skip).
func sparcUnimpReturnSkip(backend decode.ArchBackend, oracle decode.ByteOracle, callNotTakenPC addr.Addr) bool {
	if !backend.IsSPARC() {
		return false
	}
	data := make([]byte, 4)
	for i := 0; i < 4; i++ {
		b, availability, permission := oracle.Query(callNotTakenPC + addr.Addr(i))
		if !availability.Available() {
			return false
		}
		if permission != decode.PermissionUnknown && !permission.Executable() {
			return false
		}
		data[i] = b
	}
	word := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	op := word >> 30
	op2 := (word >> 22) & 0x7
	imm22 := word & 0x3FFFFF
	return op == 0 && op2 == 0 && imm22 != 0
}

// PostCallReturnPC computes the PC execution resumes at after a call
// instruction, applying the SPARC structure-return skip when applicable
// (spec.md section 4.4, section 8 testable property 7).
func PostCallReturnPC(backend decode.ArchBackend, oracle decode.ByteOracle, callNotTakenPC addr.Addr) addr.Addr {
	if sparcUnimpReturnSkip(backend, oracle, callNotTakenPC) {
		return callNotTakenPC + 4
	}
	return callNotTakenPC
}
