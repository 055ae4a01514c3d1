package campaign

import (
	"fmt"

	"admarket/native/fees"
)

// sanitizeConfig validates and deep-copies the configuration before it is
// persisted. The regular and premium cost maps must share an identical
// op-code key set so pricing can never diverge asymmetrically between tiers.
func sanitizeConfig(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrNotInitialized)
	}
	if len(cfg.RegularCosts) == 0 {
		return nil, fmt.Errorf("%w: at least one op-code required", ErrUnknownOpCode)
	}
	if len(cfg.RegularCosts) != len(cfg.PremiumCosts) {
		return nil, ErrOpCodeCostMismatch
	}
	for op, cost := range cfg.RegularCosts {
		premiumCost, ok := cfg.PremiumCosts[op]
		if !ok {
			return nil, fmt.Errorf("%w: op-code %d missing premium cost", ErrOpCodeCostMismatch, op)
		}
		if cost == nil || cost.Sign() <= 0 {
			return nil, fmt.Errorf("%w: op-code %d regular cost", ErrInvalidAmount, op)
		}
		if premiumCost == nil || premiumCost.Sign() <= 0 {
			return nil, fmt.Errorf("%w: op-code %d premium cost", ErrInvalidAmount, op)
		}
	}
	if !fees.ValidBps(cfg.FeeBps) {
		return nil, ErrFeeBpsOutOfRange
	}
	if cfg.Payment != PaymentNative && cfg.Payment != PaymentStable {
		return nil, fmt.Errorf("%w: unknown payment method %d", ErrWrongPaymentMethod, cfg.Payment)
	}
	return cfg.Clone(), nil
}
