package model

import (
	"math/big"

	"github.com/holiman/uint256"
)

// FeeBasisKind discriminates the FeeBasis tagged union.
type FeeBasisKind int

const (
	FeeBasisUTXO FeeBasisKind = iota
	FeeBasisETH
	FeeBasisGeneric
)

// FeeBasis is a tagged variant over the three supported fee models.
type FeeBasis struct {
	Kind FeeBasisKind

	// UTXO: fee-per-kilobyte and the transaction's size in bytes.
	FeePerKB *uint256.Int
	SizeInBytes uint64

	// ETH: gas limit and gas price (wei).
	GasLimit uint64
	GasPrice *uint256.Int

	// Generic: price-per-cost-factor (256-bit) and a real-valued cost factor.
	PricePerCostFactor *uint256.Int
	CostFactor         float64

	Unit *Unit // the fee's denominating unit
}

// NewUTXOFeeBasis constructs a UTXO fee basis.
func NewUTXOFeeBasis(feePerKB *uint256.Int, sizeBytes uint64, unit *Unit) *FeeBasis {
	return &FeeBasis{Kind: FeeBasisUTXO, FeePerKB: feePerKB, SizeInBytes: sizeBytes, Unit: unit}
}

// NewETHFeeBasis constructs an Ethereum fee basis.
func NewETHFeeBasis(gasLimit uint64, gasPrice *uint256.Int, unit *Unit) *FeeBasis {
	return &FeeBasis{Kind: FeeBasisETH, GasLimit: gasLimit, GasPrice: gasPrice, Unit: unit}
}

// NewGenericFeeBasis constructs a generic-chain fee basis.
func NewGenericFeeBasis(pricePerCostFactor *uint256.Int, costFactor float64, unit *Unit) *FeeBasis {
	return &FeeBasis{Kind: FeeBasisGeneric, PricePerCostFactor: pricePerCostFactor, CostFactor: costFactor, Unit: unit}
}

// Fee computes total fee = price x cost, per variant.
func (f *FeeBasis) Fee() *Amount {
	switch f.Kind {
	case FeeBasisUTXO:
		// fee-per-KB * size-in-bytes / 1000, rounded down.
		total := new(big.Int).Mul(f.FeePerKB.ToBig(), big.NewInt(int64(f.SizeInBytes)))
		total.Quo(total, big.NewInt(1000))
		mag, _ := uint256.FromBig(total)
		return &Amount{Unit: f.Unit, Magnitude: mag}
	case FeeBasisETH:
		total := new(big.Int).Mul(f.GasPrice.ToBig(), new(big.Int).SetUint64(f.GasLimit))
		mag, _ := uint256.FromBig(total)
		return &Amount{Unit: f.Unit, Magnitude: mag}
	case FeeBasisGeneric:
		// price (integer) * cost (real) -> integer, truncated.
		costScaled := new(big.Float).Mul(new(big.Float).SetInt(f.PricePerCostFactor.ToBig()), big.NewFloat(f.CostFactor))
		total, _ := costScaled.Int(nil)
		mag, _ := uint256.FromBig(total)
		return &Amount{Unit: f.Unit, Magnitude: mag}
	default:
		return nil
	}
}
