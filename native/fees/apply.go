package fees

import "math/big"

const (
	// BpsDenominator is the scaling factor for basis point math.
	BpsDenominator = 10_000
	// MaxFeeBps bounds the marketplace fee percentage.
	MaxFeeBps = 10_000
)

// Breakdown summarises the fee split for a gross amount: Net goes to the
// affiliate, Fee to the registry reserve.
type Breakdown struct {
	Gross *big.Int
	Fee   *big.Int
	Net   *big.Int
}

// ValidBps reports whether the fee percentage is within [0, MaxFeeBps].
func ValidBps(bps uint32) bool {
	return bps <= MaxFeeBps
}

// Apply computes the marketplace fee on gross using floor division so the
// affiliate is never over-credited. The fee never exceeds the gross amount;
// non-positive gross yields a zero breakdown.
func Apply(gross *big.Int, feeBps uint32) Breakdown {
	result := Breakdown{Gross: big.NewInt(0), Fee: big.NewInt(0), Net: big.NewInt(0)}
	if gross == nil || gross.Sign() <= 0 {
		return result
	}
	result.Gross = new(big.Int).Set(gross)
	result.Net = new(big.Int).Set(gross)
	if feeBps == 0 {
		return result
	}
	fee := new(big.Int).Mul(result.Gross, new(big.Int).SetUint64(uint64(feeBps)))
	fee = fee.Div(fee, big.NewInt(BpsDenominator))
	if fee.Sign() <= 0 {
		return result
	}
	if fee.Cmp(result.Gross) >= 0 {
		result.Fee = new(big.Int).Set(result.Gross)
		result.Net = big.NewInt(0)
		return result
	}
	result.Fee = fee
	result.Net = new(big.Int).Sub(result.Gross, fee)
	return result
}
