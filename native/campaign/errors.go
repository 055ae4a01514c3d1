package campaign

import "errors"

// Authorization failures. Fatal to the command, never retried automatically.
var (
	ErrUnauthorizedVerifier     = errors.New("campaign: unauthorized verifier for op-code class")
	ErrOnlyAdvertiser           = errors.New("campaign: only the advertiser may perform this operation")
	ErrOnlyAffiliateCanWithdraw = errors.New("campaign: only the affiliate on record may withdraw")
)

// State-gating failures. Surfaced to the caller verbatim.
var (
	ErrAlreadyInitialized = errors.New("campaign: details already set")
	ErrNotInitialized     = errors.New("campaign: details not set")
	ErrCampaignExpired    = errors.New("campaign: validity window elapsed")
	ErrContractStopped    = errors.New("campaign: stopped by administrator")
	ErrCampaignNotFound   = errors.New("campaign: not found")
	ErrAffiliateNotFound  = errors.New("campaign: affiliate not found")
)

// Resource failures. Expected in normal operation; callers should pre-check.
var (
	ErrInsufficientCampaignBalance = errors.New("campaign: insufficient campaign balance")
	ErrCampaignHasNoFunds          = errors.New("campaign: no funds")
	ErrNoEarningsToWithdraw        = errors.New("campaign: no earnings to withdraw")
	ErrInsufficientPendingEarnings = errors.New("campaign: insufficient pending earnings")
)

// Configuration failures. Caller-correctable.
var (
	ErrOpCodeCostMismatch          = errors.New("campaign: regular and premium cost maps must share op-codes")
	ErrUnknownOpCode               = errors.New("campaign: op-code not configured")
	ErrMaxAffiliatesReached        = errors.New("campaign: affiliate cap reached")
	ErrNotOnAllowedList            = errors.New("campaign: affiliate not on allowed list")
	ErrAffiliateExists             = errors.New("campaign: affiliate already registered")
	ErrAffiliateOutstandingBalance = errors.New("campaign: affiliate has outstanding balance")
	ErrOpenCampaign                = errors.New("campaign: open campaign accepts self-registration")
	ErrReplenishBelowMinimum       = errors.New("campaign: replenish amount below minimum")
	ErrWrongPaymentMethod          = errors.New("campaign: operation does not match payment method")
	ErrApprovalNotRequired         = errors.New("campaign: advertiser approval not required")
	ErrFeeBpsOutOfRange            = errors.New("campaign: fee bps out of range")
	ErrInvalidAmount               = errors.New("campaign: amount must be positive")
	ErrNoChange                    = errors.New("campaign: no change")
)
