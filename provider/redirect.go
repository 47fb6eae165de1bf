package provider

import (
	"github.com/pkg/errors"

	"github.com/mewmew/liftgo/addr"
)

// MapRedirectProvider is a control-flow redirection provider backed by a
// fixed set of `[from, to]` pairs, per spec.md section 6's "control-flow
// redirections" input-spec shape and section 4.1's "models trampolines and
// hook rewrites".
type MapRedirectProvider struct {
	redirects map[addr.Addr]addr.Addr
}

// NewMapRedirectProvider builds a MapRedirectProvider from the program
// spec's redirection pairs.
func NewMapRedirectProvider(specs []RedirectionSpec) (*MapRedirectProvider, error) {
	p := &MapRedirectProvider{redirects: make(map[addr.Addr]addr.Addr, len(specs))}
	for _, spec := range specs {
		var from, to addr.Addr
		if err := from.Set(spec[0]); err != nil {
			return nil, errors.Wrapf(err, "redirection from %s", spec[0])
		}
		if err := to.Set(spec[1]); err != nil {
			return nil, errors.Wrapf(err, "redirection to %s", spec[1])
		}
		p.redirects[from] = to
	}
	return p, nil
}

// GetRedirection returns the redirected address for a, or a unchanged if no
// redirection is registered (spec.md section 6: "identity if none").
func (p *MapRedirectProvider) GetRedirection(a addr.Addr) addr.Addr {
	if to, ok := p.redirects[a]; ok {
		return to
	}
	return a
}
