package marketplace

import "errors"

var (
	// ErrAdminOnly rejects administrative commands from any other identity.
	ErrAdminOnly = errors.New("marketplace: admin only")
	// ErrUnauthorizedVerifier rejects bot-channel submissions from
	// identities other than the verification bot.
	ErrUnauthorizedVerifier = errors.New("marketplace: unauthorized verifier")
	// ErrInsufficientFunds rejects an advertiser deployment whose attached
	// value does not cover the deployment fee.
	ErrInsufficientFunds = errors.New("marketplace: attached value below deployment fee")
	// ErrWrongChannel rejects attached value above the deployment fee so an
	// overpayment can never be mistaken for a replenishment.
	ErrWrongChannel = errors.New("marketplace: attached value exceeds deployment fee")
	// ErrDeployerMismatch rejects a fee-paying deployment submitted by
	// anyone other than the named advertiser.
	ErrDeployerMismatch = errors.New("marketplace: deployment requester must be the advertiser")
	// ErrNoRecipients rejects a reserve withdrawal with an empty recipient
	// set.
	ErrNoRecipients = errors.New("marketplace: no recipients")
	// ErrReserveBelowBuffer rejects a withdrawal that would leave the
	// reserve under the configured minimum buffer.
	ErrReserveBelowBuffer = errors.New("marketplace: reserve would fall below minimum buffer")
	// ErrNoChange rejects a toggle that would not alter state.
	ErrNoChange = errors.New("marketplace: no change")
)
