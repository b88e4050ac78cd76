package account

import (
	"time"

	"github.com/arcsign/walletcore/corechain"
)

// Serialize produces the versioned byte layout:
//
//	[0..2)     checksum16          (Fletcher-16 over everything from offset 2 onward)
//	[2..6)     size32              (total byte count)
//	[6..8)     version             (CurrentVersion)
//	[8..16)    timestamp64
//	[16..20)   utxo-mpk-size32
//	[20..20+N) utxo-mpk bytes
//	[..4)      eth-pubkey-size32   (always 65)
//	[..65)     eth-pubkey bytes    (uncompressed)
//	[..4)      generic-size32
//	[..M)      generic bytes
//
// All multi-byte integers are big-endian.
func (a *Account) Serialize() []byte {
	mpk := a.UTXOMasterPublicKey.Serialize()
	ethPub := uncompressedPublicKey(a.Ethereum.Public)
	generic := serializeGenericRecords(a.Generic)

	rest := make([]byte, 0, 256+len(generic))
	rest = putUint16(rest, CurrentVersion)
	rest = putUint64(rest, uint64(a.Timestamp.Unix()))
	rest = putSized(rest, mpk)
	rest = putSized(rest, ethPub)
	rest = putSized(rest, generic)

	total := 6 + len(rest)
	header := make([]byte, 0, 6)
	header = putUint32(header, uint32(total))
	sizeAndVersion := append(header, rest...)

	checksum := fletcher16(sizeAndVersion)
	out := make([]byte, 0, 2+len(sizeAndVersion))
	out = putUint16(out, checksum)
	out = append(out, sizeAndVersion...)
	return out
}

// Deserialize rejects a mismatched checksum, a mismatched declared size, a
// wrong version, or any length that would overrun the buffer; on any such
// condition it returns (nil, error) without partial state — the caller
// must treat this as "no account", not as a fatal error, since a version
// mismatch is a signal to rebuild from the phrase rather than a corruption.
func Deserialize(data []byte) (*Account, error) {
	c := newCursor(data)
	checksum, err := c.takeUint16()
	if err != nil {
		return nil, err
	}
	rest := data[2:]
	if fletcher16(rest) != checksum {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeChecksumMismatch, "account checksum mismatch", nil)
	}

	size, err := c.takeUint32()
	if err != nil {
		return nil, err
	}
	if int(size) != len(data) {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "account declared size mismatch", nil)
	}

	version, err := c.takeUint16()
	if err != nil {
		return nil, err
	}
	if version != CurrentVersion {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountVersion, "account version unsupported; rebuild from phrase", nil)
	}

	tsRaw, err := c.takeUint64()
	if err != nil {
		return nil, err
	}

	mpkBytes, err := c.takeSized()
	if err != nil {
		return nil, err
	}
	mpk, err := deserializeMasterPublicKey(mpkBytes)
	if err != nil {
		return nil, err
	}

	ethPubBytes, err := c.takeSized()
	if err != nil {
		return nil, err
	}
	if len(ethPubBytes) != 65 {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "ethereum public key must be 65 bytes uncompressed", nil)
	}
	ethPub, err := uncompressedToPublicKey(ethPubBytes)
	if err != nil {
		return nil, err
	}

	genericBytes, err := c.takeSized()
	if err != nil {
		return nil, err
	}
	generic, err := deserializeGenericRecords(genericBytes)
	if err != nil {
		return nil, err
	}

	if c.remaining() != 0 {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "trailing bytes after account payload", nil)
	}

	var ethAddrBytes [20]byte
	copy(ethAddrBytes[:], ethAddressFromPublicKey(ethPub))

	return &Account{
		UTXOMasterPublicKey: mpk,
		Ethereum: &EthereumAccount{
			Public:  ethPub,
			Address: ethAddrBytes,
		},
		Generic:   generic,
		Timestamp: time.Unix(int64(tsRaw), 0).UTC(),
	}, nil
}

func serializeGenericRecords(records []GenericRecord) []byte {
	var buf []byte
	buf = putUint32(buf, uint32(len(records)))
	for _, r := range records {
		buf = putSized(buf, []byte(r.ChainType))
		buf = putSized(buf, r.Payload)
	}
	return buf
}

func deserializeGenericRecords(data []byte) ([]GenericRecord, error) {
	c := newCursor(data)
	count, err := c.takeUint32()
	if err != nil {
		return nil, err
	}
	out := make([]GenericRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		ct, err := c.takeSized()
		if err != nil {
			return nil, err
		}
		payload, err := c.takeSized()
		if err != nil {
			return nil, err
		}
		out = append(out, GenericRecord{ChainType: corechain.ChainType(ct), Payload: payload})
	}
	if c.remaining() != 0 {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "trailing bytes in generic records", nil)
	}
	return out, nil
}

func deserializeMasterPublicKey(data []byte) (*corechain.MasterPublicKey, error) {
	if len(data) != 74 {
		return nil, corechain.NewNonRetryableError(corechain.ErrCodeAccountCorrupt, "master public key must be 74 bytes", nil)
	}
	c := newCursor(data)
	depthB, err := c.take(1)
	if err != nil {
		return nil, err
	}
	fp, err := c.takeUint32()
	if err != nil {
		return nil, err
	}
	cn, err := c.takeUint32()
	if err != nil {
		return nil, err
	}
	chainCode, err := c.take(32)
	if err != nil {
		return nil, err
	}
	pub, err := c.take(33)
	if err != nil {
		return nil, err
	}
	mpk := &corechain.MasterPublicKey{Fingerprint: fp, Depth: depthB[0], ChildNumber: cn}
	copy(mpk.ChainCode[:], chainCode)
	copy(mpk.PublicKey[:], pub)
	return mpk, nil
}
