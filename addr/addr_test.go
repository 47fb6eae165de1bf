package addr

import (
	"sort"
	"testing"
)

func TestAddrString(t *testing.T) {
	got := Addr(0x401000).String()
	want := "0x0000000000401000"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestAddrSet(t *testing.T) {
	var v Addr
	if err := v.Set("0x1000"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if v != 0x1000 {
		t.Errorf("Set(\"0x1000\") = %v, want 0x1000", v)
	}
	if err := v.Set("4096"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if v != 4096 {
		t.Errorf("Set(\"4096\") = %v, want 4096", v)
	}
}

func TestAddrJSONRoundTrip(t *testing.T) {
	v := Addr(0xDEADBEEF)
	b, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON returned error: %v", err)
	}
	var got Addr
	if err := got.UnmarshalJSON(b); err != nil {
		t.Fatalf("UnmarshalJSON returned error: %v", err)
	}
	if got != v {
		t.Errorf("round-trip = %v, want %v", got, v)
	}
}

func TestAddrsSort(t *testing.T) {
	as := Addrs{0x2000, 0x1000, 0x3000}
	sort.Sort(as)
	want := Addrs{0x1000, 0x2000, 0x3000}
	for i := range want {
		if as[i] != want[i] {
			t.Fatalf("sorted[%d] = %v, want %v", i, as[i], want[i])
		}
	}
}

func TestEdgeString(t *testing.T) {
	e := Edge{From: 0, To: 0x401000}
	want := "0x0000000000000000 -> 0x0000000000401000"
	if got := e.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
