package utxo

import (
	"bytes"

	"github.com/arcsign/walletcore/corechain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// wireHash is corechain.Hash reinterpreted as a chainhash.Hash; both are
// plain [32]byte, differing only in byte order convention the caller
// already accounts for.
type wireHash = chainhash.Hash

func addressToScript(encoded string, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(encoded, params)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidAddress, "malformed bitcoin address", err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeInvalidAddress, "failed to build output script", err)
	}
	return script, nil
}

func serializeTx(tx *wire.MsgTx) []byte {
	var buf bytes.Buffer
	_ = tx.Serialize(&buf)
	return buf.Bytes()
}
