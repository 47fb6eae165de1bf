package lift

// StateInit selects the emulated state structure's initialization
// procedure at function entry, per spec.md section 4.5.
type StateInit int

const (
	// StateInitNone leaves the state structure uninitialized.
	StateInitNone StateInit = iota
	// StateInitZeroes zero-initializes every register field.
	StateInitZeroes
	// StateInitUndef initializes every register field to undef.
	StateInitUndef
	// StateInitRegGlobals copies one external global per top-level register
	// (skipping SP when symbolic SP is enabled) into the state at entry.
	StateInitRegGlobals
	// StateInitRegGlobalsOverZeroes zero-initializes the state, then
	// overwrites it with per-register globals.
	StateInitRegGlobalsOverZeroes
	// StateInitRegGlobalsOverUndef undef-initializes the state, then
	// overwrites it with per-register globals.
	StateInitRegGlobalsOverUndef
)

// Options configures the symbolic-seed policy and state-init procedure of
// spec.md section 4.5 and section 9's "Configuration surface" design note.
type Options struct {
	StateInit StateInit

	// SymbolicPC seeds the PC register with a relocatable
	// `&symbolic_pc_base + entry_addr` expression instead of the concrete
	// entry address.
	SymbolicPC bool
	// SymbolicSP seeds the SP register with `&symbolic_sp_base`.
	SymbolicSP bool
	// SymbolicRA stores `&symbolic_ra_base` into the declared
	// return-address location instead of a concrete return address.
	SymbolicRA bool

	// StoreInferredRegisterValues, when true, lets the type-hint injector
	// overwrite a top-level register's value with the type provider's
	// supplied concrete value (spec.md section 4.6).
	StoreInferredRegisterValues bool
	// SymbolicRegisterTypes, when true, routes a register's value through
	// the opaque taint function even when the type provider supplied no
	// concrete value, for registers whose type alone is known and is a
	// pointer goal type.
	SymbolicRegisterTypes bool
}

// DefaultOptions returns the conservative default: zero-initialized state,
// fully concrete seeding, and type hints stored only when a concrete value
// is given.
func DefaultOptions() Options {
	return Options{
		StateInit:                   StateInitZeroes,
		StoreInferredRegisterValues: true,
	}
}
