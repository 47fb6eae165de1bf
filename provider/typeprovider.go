package provider

import (
	"github.com/mewmew/liftgo/abi"
	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/lift"
)

// StaticTypeProvider is a type provider backed by function declarations
// parsed from the input spec plus a fixed, address-keyed table of
// per-instruction register hints, per spec.md section 6's TryGetFunctionType
// and QueryRegisterStateAtInstruction contracts. It implements
// lift.TypeProvider.
type StaticTypeProvider struct {
	functions map[addr.Addr]*abi.FunctionDecl
	hints     map[addr.Addr][]lift.RegisterHint // keyed by instruction PC
}

// NewStaticTypeProvider builds a StaticTypeProvider from a parsed
// ProgramSpec's function declarations. A symbol-map entry names the
// function declared at its address when that declaration has no name.
func NewStaticTypeProvider(spec *ProgramSpec, types *TypeRegistry) (*StaticTypeProvider, error) {
	p := &StaticTypeProvider{
		functions: make(map[addr.Addr]*abi.FunctionDecl, len(spec.Functions)),
		hints:     make(map[addr.Addr][]lift.RegisterHint),
	}
	for _, fnSpec := range spec.Functions {
		decl, err := functionDeclFromSpec(fnSpec, types)
		if err != nil {
			return nil, err
		}
		p.functions[decl.Address] = decl
	}
	for _, sym := range spec.Symbols {
		var a addr.Addr
		if err := a.Set(sym.Address); err != nil {
			return nil, err
		}
		if decl, ok := p.functions[a]; ok && decl.Name == "" {
			decl.Name = sym.Name
		}
	}
	return p, nil
}

// TryGetFunctionType returns the declaration registered at a, or nil if
// none was declared.
func (p *StaticTypeProvider) TryGetFunctionType(a addr.Addr) *abi.FunctionDecl {
	return p.functions[a]
}

// Declarations returns every function declaration this provider was built
// from, letting a driver (e.g. cmd/liftgo) enumerate the addresses to lift
// without re-parsing the program spec.
func (p *StaticTypeProvider) Declarations() []*abi.FunctionDecl {
	decls := make([]*abi.FunctionDecl, 0, len(p.functions))
	for _, decl := range p.functions {
		decls = append(decls, decl)
	}
	return decls
}

// SetRegisterHints registers the register-type hints the type provider
// should yield at instPC, overwriting any previously registered hints for
// that instruction. Tests and callers that need type-hint injection
// coverage populate this directly; a real deployment would instead derive
// it from the input spec's type-recovery metadata, which is out of scope
// here (spec.md section 1, "Out of scope").
func (p *StaticTypeProvider) SetRegisterHints(instPC addr.Addr, hints []lift.RegisterHint) {
	p.hints[instPC] = hints
}

// QueryRegisterStateAtInstruction invokes callback once per registered
// register hint at instPC. funcAddr is accepted for interface conformance
// but unused by this static, instruction-keyed implementation.
func (p *StaticTypeProvider) QueryRegisterStateAtInstruction(funcAddr, instPC addr.Addr, callback func(lift.RegisterHint)) {
	for _, hint := range p.hints[instPC] {
		callback(hint)
	}
}
