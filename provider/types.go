package provider

import (
	"github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"
)

// TypeRegistry resolves the small set of type-name spellings the input spec
// uses for value-location and register-hint types into concrete IR types.
// Recovering full high-level types is explicitly out of scope (spec.md
// section 1, "Non-goals"); this registry only needs to distinguish integer
// widths and pointers, which is all the ABI marshaller and type-hint
// injector consume.
type TypeRegistry struct {
	pointer *types.PointerType
}

// NewTypeRegistry returns a TypeRegistry whose pointer type is an opaque
// pointer to i8, matching the generic "pointer-sized value" the type
// provider hands the type-hint injector (spec.md section 4.6).
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{pointer: types.NewPointer(types.I8)}
}

// Resolve maps a type-name spelling ("i8", "i16", "i32", "i64", "ptr") to a
// concrete IR type.
func (r *TypeRegistry) Resolve(name string) (types.Type, error) {
	switch name {
	case "i8":
		return types.I8, nil
	case "i16":
		return types.I16, nil
	case "i32":
		return types.I32, nil
	case "i64":
		return types.I64, nil
	case "ptr", "pointer":
		return r.pointer, nil
	case "":
		return types.I64, nil
	default:
		return nil, errors.Errorf("unsupported type name %q", name)
	}
}
