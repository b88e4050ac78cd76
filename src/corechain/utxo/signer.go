package utxo

import (
	"github.com/arcsign/walletcore/corechain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// signTransaction signs every input of tx as a P2WPKH spend using key,
// assuming (as this single-address wallet always does) that every input
// belongs to the same receive address as key's public key. inputs carries
// the spent outputs index-aligned with tx.TxIn; the segwit sighash commits
// to each input's value, so it must be the on-chain value, not a
// placeholder.
func signTransaction(tx *wire.MsgTx, inputs []UTXOOutput, key *corechain.Key) error {
	if !key.HasSecret() {
		return corechain.NewNonRetryableError(corechain.ErrCodeSeedRequired, "signing key has no private material", nil)
	}
	if len(inputs) != len(tx.TxIn) {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidTransaction, "input value set does not match transaction inputs", nil)
	}
	priv, _ := btcec.PrivKeyFromBytes(key.PrivateKey().D.Bytes())
	pub := priv.PubKey()

	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), &chaincfg.MainNetParams)
	if err != nil {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidSignature, "failed to rebuild signing address", err)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return corechain.NewNonRetryableError(corechain.ErrCodeInvalidSignature, "failed to rebuild signing script", err)
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, u := range inputs {
		fetcher.AddPrevOut(tx.TxIn[i].PreviousOutPoint, wire.NewTxOut(u.Value, pkScript))
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, in := range tx.TxIn {
		witness, err := txscript.WitnessSignature(tx, sigHashes, i, inputs[i].Value, pkScript, txscript.SigHashAll, priv, true)
		if err != nil {
			return corechain.NewNonRetryableError(corechain.ErrCodeInvalidSignature, "witness signing failed", err)
		}
		in.Witness = witness
	}
	return nil
}
