// Package addr provides a uniform representation of machine addresses,
// independent of the pointer width of any particular architecture.
package addr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Addr is a virtual address that may be specified in hexadecimal notation. It
// implements the flag.Value and encoding.TextUnmarshaler interfaces.
//
// Unlike the 32-bit PE addresses of the teacher tool this package is
// generalized from, Addr is wide enough to hold any architecture's pointer;
// callers that need a narrower width (e.g. to render canonical per-arch hex)
// truncate explicitly.
type Addr uint64

// Zero is the conventional "no address" / entry-edge sentinel, used as the
// from-PC of the entry edge (Addr(0), From) in edge keys.
const Zero Addr = 0

// String returns the hexadecimal string representation of v.
func (v Addr) String() string {
	return fmt.Sprintf("0x%016X", uint64(v))
}

// Set sets v to the numeric value represented by s.
func (v *Addr) Set(s string) error {
	x, err := parseUint64(s)
	if err != nil {
		return errors.WithStack(err)
	}
	*v = Addr(x)
	return nil
}

// UnmarshalText unmarshals the text into v.
func (v *Addr) UnmarshalText(text []byte) error {
	return v.Set(string(text))
}

// MarshalText returns the textual representation of v.
func (v Addr) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalJSON unmarshals the given quoted hex string representation of the
// address. Addr is always encoded as a JSON string (e.g. "0x00401000"),
// never a bare JSON number, so that precision is never at the mercy of a
// JSON decoder's float64 default.
func (v *Addr) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.WithStack(err)
	}
	return v.Set(s)
}

// MarshalJSON returns the quoted hex string representation of v.
func (v Addr) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(v.String())), nil
}

// Addrs implements the sort.Interface, sorting addresses in ascending order.
type Addrs []Addr

func (as Addrs) Len() int           { return len(as) }
func (as Addrs) Swap(i, j int)      { as[i], as[j] = as[j], as[i] }
func (as Addrs) Less(i, j int) bool { return as[i] < as[j] }

// Edge is an ordered (from, to) pair identifying a successor edge in an
// intra-procedural control-flow graph. The entry edge of a function always
// has From == Zero.
type Edge struct {
	From Addr
	To   Addr
}

// String returns the string representation of the edge, e.g. "0x0000000000000000 -> 0x0000000000001000".
func (e Edge) String() string {
	return fmt.Sprintf("%v -> %v", e.From, e.To)
}

// parseUint64 interprets the given string in base 10 or base 16 (if prefixed
// with "0x" or "0X") and returns the corresponding value.
func parseUint64(s string) (uint64, error) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[len("0x"):]
		base = 16
	}
	x, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return x, nil
}
