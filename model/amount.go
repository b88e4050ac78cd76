package model

import (
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// Amount is a currency-bound 256-bit magnitude with an independent sign.
// Arithmetic is fixed-point over the magnitude; overflow is detected and
// reported rather than silently wrapping.
type Amount struct {
	Unit      *Unit
	Magnitude *uint256.Int
	Negative  bool
}

// NewAmountFromUint64 constructs a non-negative Amount directly from an
// integer count of unit's smallest representable increment.
func NewAmountFromUint64(v uint64, unit *Unit) *Amount {
	return &Amount{Unit: unit, Magnitude: uint256.NewInt(v), Negative: false}
}

// pow10 returns 10^n as a big.Int, n small (<= 77 for any real decimals value).
func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// CreateDouble scales v by 10^unit.Decimals (relative to unit's base) and
// stores the result as a 256-bit magnitude with sign. Returns ok=false
// if |v| * 10^decimals overflows 256 bits (e.g. 1e100 in a base unit).
func CreateDouble(v float64, unit *Unit) (*Amount, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	neg := v < 0
	if neg {
		v = -v
	}

	// Decompose v into a big.Rat to avoid losing precision before scaling;
	// the stored value is fixed-point, not floating-point.
	rat := new(big.Rat).SetFloat64(v)
	if rat == nil {
		return nil, false
	}
	scale := new(big.Rat).SetInt(pow10(unit.Decimals))
	scaled := new(big.Rat).Mul(rat, scale)

	// Truncate to an integer; a base-unit amount keeps only the whole part.
	intVal := new(big.Int).Quo(scaled.Num(), scaled.Denom())

	if intVal.BitLen() > 256 {
		return nil, false
	}
	mag, overflow := uint256.FromBig(intVal)
	if overflow {
		return nil, false
	}
	return &Amount{Unit: unit, Magnitude: mag, Negative: neg && !mag.IsZero()}, true
}

// GetDouble reverses CreateDouble's scaling, reporting the magnitude in the
// given (compatible) unit's decimal representation. ok is false if the
// 256-bit magnitude cannot be represented as a float64 or unit is
// incompatible with a.Unit.
func (a *Amount) GetDouble(unit *Unit) (float64, bool) {
	if !a.Unit.Compatible(unit) {
		return 0, false
	}
	// The magnitude is always denominated in base-unit increments; re-express
	// it in the requested unit by dividing out that unit's power of ten.
	rat := new(big.Rat).SetInt(a.Magnitude.ToBig())
	if unit.Decimals > 0 {
		rat.Quo(rat, new(big.Rat).SetInt(pow10(unit.Decimals)))
	}
	f, _ := rat.Float64()
	if math.IsInf(f, 0) {
		return 0, false
	}
	if a.Negative {
		f = -f
	}
	return f, true
}

// IsZero reports whether the magnitude is zero (sign is irrelevant for zero).
func (a *Amount) IsZero() bool {
	return a.Magnitude.IsZero()
}

// Add returns a + b if their units are compatible, detecting 256-bit
// overflow of the resulting magnitude.
func (a *Amount) Add(b *Amount) (*Amount, error) {
	if !a.Unit.Compatible(b.Unit) {
		return nil, fmt.Errorf("incompatible currencies: %s vs %s", a.Unit.Currency.UID, b.Unit.Currency.UID)
	}
	ab, bb := a.asSigned(), b.asSigned()
	sum := new(big.Int).Add(ab, bb)
	if sum.BitLen() > 256 {
		return nil, fmt.Errorf("amount overflow")
	}
	return fromSigned(sum, a.Unit), nil
}

// Sub returns a - b.
func (a *Amount) Sub(b *Amount) (*Amount, error) {
	neg := *b
	neg.Negative = !b.Negative && !b.IsZero()
	if b.Negative {
		neg.Negative = false
	}
	return a.Add(&neg)
}

// Compare returns -1, 0, 1 comparing a and b, which must share a compatible
// unit.
func (a *Amount) Compare(b *Amount) (int, error) {
	if !a.Unit.Compatible(b.Unit) {
		return 0, fmt.Errorf("incompatible currencies: %s vs %s", a.Unit.Currency.UID, b.Unit.Currency.UID)
	}
	return a.asSigned().Cmp(b.asSigned()), nil
}

func (a *Amount) asSigned() *big.Int {
	v := a.Magnitude.ToBig()
	if a.Negative {
		v = new(big.Int).Neg(v)
	}
	return v
}

func fromSigned(v *big.Int, unit *Unit) *Amount {
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	mag, _ := uint256.FromBig(abs)
	return &Amount{Unit: unit, Magnitude: mag, Negative: neg && !mag.IsZero()}
}

func (a *Amount) String() string {
	sign := ""
	if a.Negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%s %s", sign, a.Magnitude.Dec(), a.Unit.Symbol)
}
