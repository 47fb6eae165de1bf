package decode

import "github.com/mewmew/liftgo/addr"

// ByteAvailability reports whether a byte oracle has an opinion about the
// availability of a given byte of memory.
type ByteAvailability int

const (
	// AvailabilityUnknown means the oracle has no information; the byte is
	// treated optimistically, as if it were available.
	AvailabilityUnknown ByteAvailability = iota
	// AvailabilityUnavailable means the byte is known not to be present in
	// the described binary (e.g. outside of any mapped range).
	AvailabilityUnavailable
	// AvailabilityAvailable means the byte is present and its value is
	// meaningful.
	AvailabilityAvailable
)

// BytePermission reports the memory protection bits the byte oracle
// associates with a byte.
type BytePermission int

const (
	// PermissionUnknown means the oracle has no information; the byte is
	// treated optimistically, as if it were executable.
	PermissionUnknown BytePermission = iota
	PermissionReadable
	PermissionReadableWritable
	PermissionReadableExecutable
	PermissionReadableWritableExecutable
)

// Executable reports whether decoding may proceed through a byte with this
// permission. Unknown permission is treated optimistically.
func (p BytePermission) Executable() bool {
	switch p {
	case PermissionUnknown, PermissionReadableExecutable, PermissionReadableWritableExecutable:
		return true
	default:
		return false
	}
}

// Available reports whether decoding may proceed through a byte with this
// availability. Unknown availability is treated optimistically.
func (a ByteAvailability) Available() bool {
	return a != AvailabilityUnavailable
}

// ByteOracle is the memory provider: a byte + availability + permission
// query over the described binary's address space. It is an external
// collaborator of the function lifter; implementations must be safe for
// concurrent read-only use.
type ByteOracle interface {
	// Query returns the byte at addr along with its availability and
	// permission. The byte value is meaningless unless availability is
	// AvailabilityAvailable.
	Query(a addr.Addr) (b byte, availability ByteAvailability, permission BytePermission)
}
