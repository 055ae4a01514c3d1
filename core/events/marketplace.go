package events

import (
	"math/big"
	"strconv"

	"admarket/core/types"
)

const (
	// TypeMarketplacePaused is emitted when the administrator pauses the
	// registry; deployments and forwarded actions are refused while paused.
	TypeMarketplacePaused = "marketplace.paused"
	// TypeMarketplaceResumed is emitted when the administrator lifts the
	// registry pause.
	TypeMarketplaceResumed = "marketplace.resumed"
	// TypeReserveWithdrawn is emitted when the administrator withdraws from
	// the registry reserve.
	TypeReserveWithdrawn = "marketplace.reserve.withdrawn"
)

// MarketplacePaused captures a registry-wide pause.
type MarketplacePaused struct {
	Caller [20]byte
}

// EventType implements the Event interface.
func (MarketplacePaused) EventType() string { return TypeMarketplacePaused }

// Event converts the pause to the generic event payload.
func (e MarketplacePaused) Event() *types.Event {
	return &types.Event{Type: TypeMarketplacePaused, Attributes: map[string]string{
		"caller": addrHex(e.Caller),
	}}
}

// MarketplaceResumed captures the registry pause being lifted.
type MarketplaceResumed struct {
	Caller [20]byte
}

// EventType implements the Event interface.
func (MarketplaceResumed) EventType() string { return TypeMarketplaceResumed }

// Event converts the resume to the generic event payload.
func (e MarketplaceResumed) Event() *types.Event {
	return &types.Event{Type: TypeMarketplaceResumed, Attributes: map[string]string{
		"caller": addrHex(e.Caller),
	}}
}

// ReserveWithdrawn captures an administrator withdrawal from the shared
// reserve, split across the recipient set.
type ReserveWithdrawn struct {
	Amount     *big.Int
	Recipients int
	Remaining  *big.Int
}

// EventType implements the Event interface.
func (ReserveWithdrawn) EventType() string { return TypeReserveWithdrawn }

// Event converts the withdrawal to the generic event payload.
func (e ReserveWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeReserveWithdrawn, Attributes: map[string]string{
		"amount":     bigString(e.Amount),
		"recipients": strconv.Itoa(e.Recipients),
		"remaining":  bigString(e.Remaining),
	}}
}
