// Package generic implements the pluggable account-model chain family:
// one fully-built XRP handler plus a metadata table for the other SLIP-44
// account-model chains an embedder might plug a handler in for later.
package generic

import (
	"strings"

	"github.com/arcsign/walletcore/corechain"
)

// CoinMetadata is the SLIP-44 metadata for one generic-family chain:
// the derivation coin type plus a flag marking whether a concrete handler
// (as opposed to a metadata-only stub) backs it.
type CoinMetadata struct {
	Symbol      string
	Name        string
	CoinType    uint32
	Implemented bool
}

// Registry is the fixed, in-process table of generic-family chains this
// build knows about. Unlike corechain.HandlerRegistry (which is keyed by
// installed vtable), Registry is consulted by Install to decide whether a
// chain type gets the concrete XRP-shaped vtable or a stub that rejects
// every operation explicitly.
var Registry = []CoinMetadata{
	{Symbol: "XRP", Name: "Ripple", CoinType: 144, Implemented: true},
	{Symbol: "XLM", Name: "Stellar", CoinType: 148, Implemented: false},
	{Symbol: "XTZ", Name: "Tezos", CoinType: 1729, Implemented: false},
	{Symbol: "ATOM", Name: "Cosmos Hub", CoinType: 118, Implemented: false},
	{Symbol: "ALGO", Name: "Algorand", CoinType: 283, Implemented: false},
}

// ChainType returns the corechain.ChainType tag a generic chain's symbol
// is registered under (lowercased, e.g. "xrp").
func (m CoinMetadata) ChainType() corechain.ChainType {
	return corechain.ChainType(strings.ToLower(m.Symbol))
}

// Install registers every entry in Registry into r: XRP gets the full
// Handlers built by xrp.go, every other entry gets a stub vtable whose
// every error-returning operation returns ErrCodeUnsupportedAsset. An embedder asking
// this build for XTZ/ATOM/ALGO/XLM gets a clear error instead of a
// handler that quietly does nothing.
func Install(r *corechain.HandlerRegistry) {
	for _, m := range Registry {
		var h *corechain.Handlers
		if m.Implemented {
			h = xrpHandlers(m)
		} else {
			h = stubHandlers(m)
		}
		if err := r.Install(h); err != nil {
			panic(err) // programmer error: a built-in vtable must always validate
		}
	}
}

func init() {
	corechain.RegisterBuiltin(Install)
}
