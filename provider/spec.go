// Package provider implements the external collaborators spec.md section 6
// describes only by shape: the JSON input-spec parser, a byte oracle backed
// by the spec's memory ranges, a static type provider driven by declared
// function signatures and per-instruction register-type hints, and a
// control-flow redirection provider. None of this is the function lifter's
// concern (section 1, "Out of scope"); this package exists only so the
// function lifter has something real to drive in tests and in the cmd/
// entry point.
package provider

import (
	"encoding/hex"
	"encoding/json"

	"github.com/mewkiz/pkg/jsonutil"
	"github.com/mewkiz/pkg/osutil"
	"github.com/pkg/errors"

	"github.com/mewmew/liftgo/abi"
	"github.com/mewmew/liftgo/addr"
)

// ValueLocationSpec is the JSON shape of a single value-location.
type ValueLocationSpec struct {
	Kind   string `json:"kind"` // "register" or "memory"
	Reg    string `json:"reg"`
	Offset int64  `json:"offset,omitempty"`
	Type   string `json:"type"`
}

// FunctionSpec is the JSON shape of one declared function, per spec.md
// section 6's "Input spec" bullet.
type FunctionSpec struct {
	Address        string              `json:"address"`
	Name           string              `json:"name,omitempty"`
	CallingConv    string              `json:"calling_convention"`
	Params         []ValueLocationSpec `json:"params"`
	Returns        []ValueLocationSpec `json:"returns"`
	ReturnAddress  ValueLocationSpec   `json:"return_address"`
	ReturnStackPtr *int64              `json:"return_stack_ptr,omitempty"`
	NoReturn       bool                `json:"noreturn,omitempty"`
	Variadic       bool                `json:"variadic,omitempty"`
}

// VariableSpec is the JSON shape of one declared global variable.
type VariableSpec struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type"`
}

// MemoryRangeSpec is the JSON shape of one described region of binary
// contents: an address, a permission string, and its hex-encoded bytes.
type MemoryRangeSpec struct {
	Address    string `json:"address"`
	Permission string `json:"permission"` // "r", "rw", "rx", "rwx"
	Bytes      string `json:"bytes"`      // hex-encoded
}

// SymbolSpec pairs a symbol name with an address, used to override a
// function's generated display name (spec.md section 6, "unless renamed
// via the symbol map").
type SymbolSpec struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// RedirectionSpec is a `[from, to]` control-flow redirection pair.
type RedirectionSpec [2]string

// ProgramSpec is the root JSON shape of an input spec.
type ProgramSpec struct {
	Functions     []FunctionSpec    `json:"functions"`
	Variables     []VariableSpec    `json:"variables,omitempty"`
	MemoryRanges  []MemoryRangeSpec `json:"memory_ranges"`
	Symbols       []SymbolSpec      `json:"symbols,omitempty"`
	Redirections  []RedirectionSpec `json:"redirections,omitempty"`
}

// LoadProgramSpec reads and parses a ProgramSpec from path, following the
// teacher's osutil.Exists-then-jsonutil.ParseFile convention for loading
// ad-hoc JSON configuration.
func LoadProgramSpec(path string) (*ProgramSpec, error) {
	if !osutil.Exists(path) {
		return nil, errors.Errorf("unable to locate program spec %q", path)
	}
	spec := new(ProgramSpec)
	if err := jsonutil.ParseFile(path, spec); err != nil {
		return nil, errors.WithStack(err)
	}
	return spec, nil
}

// ParseProgramSpec parses a ProgramSpec from raw JSON bytes, for callers
// that already have the spec in memory (e.g. tests).
func ParseProgramSpec(data []byte) (*ProgramSpec, error) {
	spec := new(ProgramSpec)
	if err := json.Unmarshal(data, spec); err != nil {
		return nil, errors.WithStack(err)
	}
	return spec, nil
}

// decodeRangeBytes hex-decodes a MemoryRangeSpec's byte payload.
func decodeRangeBytes(spec MemoryRangeSpec) ([]byte, error) {
	data, err := hex.DecodeString(spec.Bytes)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed hex bytes for memory range at %s", spec.Address)
	}
	return data, nil
}

// parsePermission maps a permission string to a (readable, writable,
// executable) triple.
func parsePermission(s string) (readable, writable, executable bool, err error) {
	switch s {
	case "r":
		return true, false, false, nil
	case "rw":
		return true, true, false, nil
	case "rx":
		return true, false, true, nil
	case "rwx":
		return true, true, true, nil
	default:
		return false, false, false, errors.Errorf("unknown permission %q", s)
	}
}

// valueLocationFromSpec resolves a ValueLocationSpec into an abi.ValueLocation.
func valueLocationFromSpec(spec ValueLocationSpec, types *TypeRegistry) (abi.ValueLocation, error) {
	typ, err := types.Resolve(spec.Type)
	if err != nil {
		return abi.ValueLocation{}, err
	}
	switch spec.Kind {
	case "register":
		return abi.Register(spec.Reg, typ), nil
	case "memory":
		return abi.Memory(spec.Reg, spec.Offset, typ), nil
	default:
		return abi.ValueLocation{}, errors.Errorf("unknown value-location kind %q", spec.Kind)
	}
}

// functionDeclFromSpec resolves a FunctionSpec into an abi.FunctionDecl.
func functionDeclFromSpec(spec FunctionSpec, types *TypeRegistry) (*abi.FunctionDecl, error) {
	var a addr.Addr
	if err := a.Set(spec.Address); err != nil {
		return nil, errors.Wrapf(err, "function %s", spec.Address)
	}
	decl := &abi.FunctionDecl{
		Address:        a,
		Name:           spec.Name,
		CallingConv:    abi.CallingConv(spec.CallingConv),
		ReturnStackPtr: spec.ReturnStackPtr,
		NoReturn:       spec.NoReturn,
		Variadic:       spec.Variadic,
	}
	for _, p := range spec.Params {
		loc, err := valueLocationFromSpec(p, types)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s param", spec.Address)
		}
		decl.Params = append(decl.Params, loc)
	}
	for _, r := range spec.Returns {
		loc, err := valueLocationFromSpec(r, types)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s return", spec.Address)
		}
		decl.Returns = append(decl.Returns, loc)
	}
	if spec.ReturnAddress.Kind != "" {
		loc, err := valueLocationFromSpec(spec.ReturnAddress, types)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s return address", spec.Address)
		}
		decl.ReturnAddress = loc
	}
	return decl, nil
}

