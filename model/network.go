package model

import (
	"sync/atomic"
	"time"

	"github.com/arcsign/walletcore/corechain"
)

// FeeTier maps an expected confirmation time to a price.
type FeeTier struct {
	ConfirmationTime time.Duration
	Price            interface{} // chain-specific: sat/byte, gas price, price-per-cost-factor
}

// Network is an immutable descriptor (except for Height, which is mutable
// and monotonic non-decreasing) naming a single blockchain the core can
// connect to.
type Network struct {
	UID              string
	Name             string
	Type             corechain.ChainType
	IsMainnet        bool
	Confirmations    uint64
	height           uint64 // atomic; see Height/SetHeight
	Currencies       []*Currency
	FeeTiers         []FeeTier
	Native           interface{} // UTXO chaincfg.Params, Ethereum chain id, or generic network tag
}

// NewNetwork constructs a Network descriptor. height starts at 0.
func NewNetwork(uid, name string, typ corechain.ChainType, mainnet bool, confirmations uint64, native interface{}) *Network {
	return &Network{
		UID:           uid,
		Name:          name,
		Type:          typ,
		IsMainnet:     mainnet,
		Confirmations: confirmations,
		Native:        native,
	}
}

// Height returns the network's current known height.
func (n *Network) Height() uint64 {
	return atomic.LoadUint64(&n.height)
}

// SetHeight updates the known height. Per the invariant that height is
// monotonic non-decreasing, a lower value is silently ignored.
func (n *Network) SetHeight(h uint64) {
	for {
		cur := atomic.LoadUint64(&n.height)
		if h <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&n.height, cur, h) {
			return
		}
	}
}

// CurrencyByCode looks up a registered currency by its ticker code.
func (n *Network) CurrencyByCode(code string) (*Currency, bool) {
	for _, c := range n.Currencies {
		if c.Code == code {
			return c, true
		}
	}
	return nil, false
}

// AddCurrency registers a currency (native or token) on this network.
func (n *Network) AddCurrency(c *Currency) {
	n.Currencies = append(n.Currencies, c)
}

// NativeCurrency returns the first currency of type CurrencyNative, which
// by convention is always registered first.
func (n *Network) NativeCurrency() *Currency {
	for _, c := range n.Currencies {
		if c.Type == CurrencyNative {
			return c
		}
	}
	return nil
}

// TokenCurrencies returns every issued (non-native) currency on the
// network, the set the WalletManager walks at creation time to install
// Ethereum ERC-20 token records.
func (n *Network) TokenCurrencies() []*Currency {
	var out []*Currency
	for _, c := range n.Currencies {
		if c.IsToken() {
			out = append(out, c)
		}
	}
	return out
}
