package lift

import (
	"github.com/llir/llvm/ir/value"

	"github.com/mewmew/liftgo/abi"
	"github.com/mewmew/liftgo/addr"
)

// RegisterHint is one (register-name, type, optional concrete value) tuple
// yielded by TypeProvider.QueryRegisterStateAtInstruction, per spec.md
// section 6 and the type-hint injection contract of section 4.6.
type RegisterHint struct {
	Register string
	Type     string
	Value    value.Value // nil when the provider supplies no concrete value
}

// TypeProvider is the external per-address function-type and
// per-instruction register-type-hint collaborator of spec.md section 6.
type TypeProvider interface {
	// TryGetFunctionType returns the function declaration at a, or nil if
	// none is known.
	TryGetFunctionType(a addr.Addr) *abi.FunctionDecl

	// QueryRegisterStateAtInstruction invokes callback once per known
	// register-type hint at instPC within the function at funcAddr.
	QueryRegisterStateAtInstruction(funcAddr, instPC addr.Addr, callback func(RegisterHint))
}

// ControlFlowProvider is the external redirection collaborator of spec.md
// section 6: `GetRedirection(addr) → addr` (identity if none).
type ControlFlowProvider interface {
	GetRedirection(a addr.Addr) addr.Addr
}
