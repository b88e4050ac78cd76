package manager

import (
	"context"
	"time"

	"github.com/arcsign/walletcore/account"
	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/wallet"
)

// Sign derives the seed from phrase, calls the chain-specific sign, then
// zeros the seed buffer on every exit path, including error paths.
func (m *Manager) Sign(ctx context.Context, w *wallet.Wallet, transfer corechain.ChainTransfer, phrase string) error {
	if !account.ValidatePaperKey(phrase) {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidPath, "invalid paper key for signing", nil)
	}
	seed := account.DeriveSeed(phrase)
	defer zeroizeBytes(seed)

	key, err := keyFromSeed(seed, m.ChainType)
	if err != nil {
		return err
	}
	defer key.Zeroize()

	start := time.Now()
	err = m.sub.Sign(ctx, w.SubWallet(), transfer, key)
	m.metrics.RecordTransferSign(string(m.ChainType), time.Since(start), err == nil)
	return err
}

// Submit signs then submits through the chain-family sub-manager; neither
// this method nor the sub-managers emit a wallet event.
func (m *Manager) Submit(ctx context.Context, w *wallet.Wallet, transfer corechain.ChainTransfer, phrase string) error {
	if err := m.Sign(ctx, w, transfer, phrase); err != nil {
		return err
	}
	start := time.Now()
	err := m.sub.Submit(ctx, w.SubWallet(), transfer)
	m.metrics.RecordTransferSubmit(string(m.ChainType), time.Since(start), err == nil)
	return err
}

// SubmitForKey signs with a raw private key (used for sweeps) instead of a
// mnemonic phrase. key must carry a secret or this is a no-op, matching
// the "submit-for-key" contract.
func (m *Manager) SubmitForKey(ctx context.Context, w *wallet.Wallet, transfer corechain.ChainTransfer, key *corechain.Key) error {
	if !key.HasSecret() {
		return nil
	}
	if err := m.sub.Sign(ctx, w.SubWallet(), transfer, key); err != nil {
		return err
	}
	return m.sub.SubmitSigned(ctx, w.SubWallet(), transfer)
}

func zeroizeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// keyFromSeed derives the signing key appropriate to chainType from seed.
// UTXO and Ethereum use their conventional BIP-44 paths; generic handlers
// derive their own path internally via Account.FromSeed and are expected
// to carry key derivation behind their own vtable, so keyFromSeed only
// needs to cover the two built-in chain families directly.
func keyFromSeed(seed []byte, chainType corechain.ChainType) (*corechain.Key, error) {
	switch chainType {
	case corechain.ChainTypeETH:
		return deriveETHSigningKey(seed)
	default:
		return deriveUTXOSigningKey(seed)
	}
}
