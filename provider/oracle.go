package provider

import (
	"github.com/pkg/errors"

	"github.com/mewmew/liftgo/addr"
	"github.com/mewmew/liftgo/decode"
)

// rangeEntry is one parsed, decoded memory range.
type rangeEntry struct {
	start      addr.Addr
	data       []byte
	executable bool
	writable   bool
}

func (e *rangeEntry) contains(a addr.Addr) bool {
	return a >= e.start && uint64(a-e.start) < uint64(len(e.data))
}

func (e *rangeEntry) permission() decode.BytePermission {
	switch {
	case e.executable && e.writable:
		return decode.PermissionReadableWritableExecutable
	case e.executable:
		return decode.PermissionReadableExecutable
	case e.writable:
		return decode.PermissionReadableWritable
	default:
		return decode.PermissionReadable
	}
}

// MapByteOracle is a decode.ByteOracle backed by a fixed set of described
// memory ranges, per spec.md section 6's "memory ranges with address,
// permissions, hex byte data" input-spec shape. Bytes outside every range
// report AvailabilityUnavailable.
type MapByteOracle struct {
	ranges []*rangeEntry
}

// NewMapByteOracle builds a MapByteOracle from the program spec's memory
// ranges.
func NewMapByteOracle(specs []MemoryRangeSpec) (*MapByteOracle, error) {
	oracle := &MapByteOracle{}
	for _, spec := range specs {
		var start addr.Addr
		if err := start.Set(spec.Address); err != nil {
			return nil, errors.Wrapf(err, "memory range %s", spec.Address)
		}
		data, err := decodeRangeBytes(spec)
		if err != nil {
			return nil, err
		}
		_, writable, executable, err := parsePermission(spec.Permission)
		if err != nil {
			return nil, errors.Wrapf(err, "memory range %s", spec.Address)
		}
		oracle.ranges = append(oracle.ranges, &rangeEntry{
			start:      start,
			data:       data,
			executable: executable,
			writable:   writable,
		})
	}
	return oracle, nil
}

// Query implements decode.ByteOracle.
func (o *MapByteOracle) Query(a addr.Addr) (byte, decode.ByteAvailability, decode.BytePermission) {
	for _, r := range o.ranges {
		if r.contains(a) {
			return r.data[uint64(a-r.start)], decode.AvailabilityAvailable, r.permission()
		}
	}
	return 0, decode.AvailabilityUnavailable, decode.PermissionUnknown
}
