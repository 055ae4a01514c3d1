package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"admarket/core/types"
)

const (
	// TypeCampaignCreated is emitted when the registry deploys a new
	// campaign ledger.
	TypeCampaignCreated = "campaign.created"
	// TypeCampaignDetailsSigned is emitted when the advertiser commits the
	// immutable campaign configuration.
	TypeCampaignDetailsSigned = "campaign.details.signed"
	// TypeCampaignReplenished is emitted whenever the campaign balance is
	// topped up, natively or via a confirmed stable-asset deposit.
	TypeCampaignReplenished = "campaign.replenished"
	// TypeAffiliateCreated is emitted when an affiliate account is first
	// registered inside a campaign.
	TypeAffiliateCreated = "campaign.affiliate.created"
	// TypeAffiliateRemoved is emitted when the advertiser deletes an
	// affiliate account with no outstanding balance.
	TypeAffiliateRemoved = "campaign.affiliate.removed"
	// TypeAllowedListJoinRequested is emitted when an affiliate asks to be
	// added to a closed campaign's allow-list.
	TypeAllowedListJoinRequested = "campaign.allowlist.join_requested"
	// TypeAllowedListApproved is emitted when the advertiser adds an
	// affiliate to the allow-list.
	TypeAllowedListApproved = "campaign.allowlist.approved"
	// TypeAllowedListRemoved is emitted when the advertiser removes an
	// affiliate from the allow-list.
	TypeAllowedListRemoved = "campaign.allowlist.removed"
	// TypeUserActionRecorded is emitted for every successfully charged user
	// action.
	TypeUserActionRecorded = "campaign.action.recorded"
	// TypeEarningsApproved is emitted when pending earnings move to the
	// withdrawable balance.
	TypeEarningsApproved = "campaign.earnings.approved"
	// TypeAffiliateWithdrewEarnings is emitted when an affiliate withdraws
	// accrued earnings.
	TypeAffiliateWithdrewEarnings = "campaign.earnings.withdrawn"
	// TypeAdvertiserWithdrewFunds is emitted when the advertiser pulls funds
	// out of the campaign balance.
	TypeAdvertiserWithdrewFunds = "campaign.funds.advertiser_withdrawn"
	// TypeCampaignBalanceBelowThreshold is emitted when a charge drops the
	// balance under the advertiser notification threshold.
	TypeCampaignBalanceBelowThreshold = "campaign.balance.below_threshold"
	// TypeCampaignFundsInsufficient is emitted when the balance can no
	// longer cover the most expensive configured action.
	TypeCampaignFundsInsufficient = "campaign.funds.insufficient"
	// TypeCampaignFeeUpdated is emitted when the administrator changes the
	// marketplace fee for a campaign.
	TypeCampaignFeeUpdated = "campaign.fee.updated"
	// TypeCampaignStopped is emitted when the administrator freezes a
	// campaign.
	TypeCampaignStopped = "campaign.stopped"
	// TypeCampaignResumed is emitted when the administrator lifts a freeze.
	TypeCampaignResumed = "campaign.resumed"
	// TypeCampaignSeized is emitted when the administrator confiscates the
	// campaign balance into the registry reserve.
	TypeCampaignSeized = "campaign.seized"
	// TypeCampaignRemoved is emitted when the advertiser dissolves a
	// campaign and withdraws the remaining balance.
	TypeCampaignRemoved = "campaign.removed"
	// TypeCompensationCredited is emitted when the administrator credits an
	// affiliate for a bounced stable-asset payout.
	TypeCompensationCredited = "campaign.compensation.credited"
)

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addrHex(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func campaignAttrs(id uint64) map[string]string {
	return map[string]string{
		"campaignId": strconv.FormatUint(id, 10),
	}
}

// CampaignCreated captures a freshly deployed campaign ledger.
type CampaignCreated struct {
	CampaignID    uint64
	Advertiser    [20]byte
	LedgerAddress [20]byte
}

// EventType implements the Event interface.
func (CampaignCreated) EventType() string { return TypeCampaignCreated }

// Event converts the deployment details to the generic event payload.
func (e CampaignCreated) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["advertiser"] = addrHex(e.Advertiser)
	attrs["ledgerAddress"] = addrHex(e.LedgerAddress)
	return &types.Event{Type: TypeCampaignCreated, Attributes: attrs}
}

// CampaignDetailsSigned captures the one-time configuration commit.
type CampaignDetailsSigned struct {
	CampaignID uint64
	Advertiser [20]byte
	FeeBps     uint32
	Payment    string
	StartAt    int64
}

// EventType implements the Event interface.
func (CampaignDetailsSigned) EventType() string { return TypeCampaignDetailsSigned }

// Event converts the configuration commit to the generic event payload.
func (e CampaignDetailsSigned) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["advertiser"] = addrHex(e.Advertiser)
	attrs["feeBps"] = strconv.FormatUint(uint64(e.FeeBps), 10)
	attrs["payment"] = e.Payment
	attrs["startAt"] = strconv.FormatInt(e.StartAt, 10)
	return &types.Event{Type: TypeCampaignDetailsSigned, Attributes: attrs}
}

// CampaignReplenished captures a balance top-up. DepositRef is empty for
// synchronous native replenishments.
type CampaignReplenished struct {
	CampaignID uint64
	Amount     *big.Int
	Balance    *big.Int
	DepositRef string
}

// EventType implements the Event interface.
func (CampaignReplenished) EventType() string { return TypeCampaignReplenished }

// Event converts the top-up details to the generic event payload.
func (e CampaignReplenished) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["amount"] = bigString(e.Amount)
	attrs["balance"] = bigString(e.Balance)
	if e.DepositRef != "" {
		attrs["depositRef"] = e.DepositRef
	}
	return &types.Event{Type: TypeCampaignReplenished, Attributes: attrs}
}

// AffiliateCreated captures a newly registered affiliate account.
type AffiliateCreated struct {
	CampaignID  uint64
	AffiliateID uint64
	Address     [20]byte
}

// EventType implements the Event interface.
func (AffiliateCreated) EventType() string { return TypeAffiliateCreated }

// Event converts the registration details to the generic event payload.
func (e AffiliateCreated) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["affiliateId"] = strconv.FormatUint(e.AffiliateID, 10)
	attrs["address"] = addrHex(e.Address)
	return &types.Event{Type: TypeAffiliateCreated, Attributes: attrs}
}

// AffiliateRemoved captures the deletion of a settled affiliate account.
type AffiliateRemoved struct {
	CampaignID  uint64
	AffiliateID uint64
}

// EventType implements the Event interface.
func (AffiliateRemoved) EventType() string { return TypeAffiliateRemoved }

// Event converts the removal details to the generic event payload.
func (e AffiliateRemoved) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["affiliateId"] = strconv.FormatUint(e.AffiliateID, 10)
	return &types.Event{Type: TypeAffiliateRemoved, Attributes: attrs}
}

// AllowedListJoinRequested captures an affiliate's request to join a closed
// campaign. The advertiser approves it via the allow-list add operation.
type AllowedListJoinRequested struct {
	CampaignID uint64
	Requester  [20]byte
}

// EventType implements the Event interface.
func (AllowedListJoinRequested) EventType() string { return TypeAllowedListJoinRequested }

// Event converts the join request to the generic event payload.
func (e AllowedListJoinRequested) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["requester"] = addrHex(e.Requester)
	return &types.Event{Type: TypeAllowedListJoinRequested, Attributes: attrs}
}

// AllowedListApproved captures an allow-list addition.
type AllowedListApproved struct {
	CampaignID uint64
	Affiliate  [20]byte
}

// EventType implements the Event interface.
func (AllowedListApproved) EventType() string { return TypeAllowedListApproved }

// Event converts the approval to the generic event payload.
func (e AllowedListApproved) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["affiliate"] = addrHex(e.Affiliate)
	return &types.Event{Type: TypeAllowedListApproved, Attributes: attrs}
}

// AllowedListRemoved captures an allow-list removal.
type AllowedListRemoved struct {
	CampaignID uint64
	Affiliate  [20]byte
}

// EventType implements the Event interface.
func (AllowedListRemoved) EventType() string { return TypeAllowedListRemoved }

// Event converts the removal to the generic event payload.
func (e AllowedListRemoved) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["affiliate"] = addrHex(e.Affiliate)
	return &types.Event{Type: TypeAllowedListRemoved, Attributes: attrs}
}

// UserActionRecorded captures a successfully charged user action.
type UserActionRecorded struct {
	CampaignID  uint64
	AffiliateID uint64
	OpCode      uint16
	Premium     bool
	Cost        *big.Int
	Balance     *big.Int
}

// EventType implements the Event interface.
func (UserActionRecorded) EventType() string { return TypeUserActionRecorded }

// Event converts the charge details to the generic event payload.
func (e UserActionRecorded) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["affiliateId"] = strconv.FormatUint(e.AffiliateID, 10)
	attrs["opCode"] = strconv.FormatUint(uint64(e.OpCode), 10)
	attrs["premium"] = strconv.FormatBool(e.Premium)
	attrs["cost"] = bigString(e.Cost)
	attrs["balance"] = bigString(e.Balance)
	return &types.Event{Type: TypeUserActionRecorded, Attributes: attrs}
}

// EarningsApproved captures the advertiser sign-off moving pending earnings to
// the withdrawable balance.
type EarningsApproved struct {
	CampaignID  uint64
	AffiliateID uint64
	Amount      *big.Int
}

// EventType implements the Event interface.
func (EarningsApproved) EventType() string { return TypeEarningsApproved }

// Event converts the approval to the generic event payload.
func (e EarningsApproved) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["affiliateId"] = strconv.FormatUint(e.AffiliateID, 10)
	attrs["amount"] = bigString(e.Amount)
	return &types.Event{Type: TypeEarningsApproved, Attributes: attrs}
}

// AffiliateWithdrewEarnings captures an affiliate payout and the marketplace
// fee retained by the registry.
type AffiliateWithdrewEarnings struct {
	CampaignID  uint64
	AffiliateID uint64
	Amount      *big.Int
	Fee         *big.Int
}

// EventType implements the Event interface.
func (AffiliateWithdrewEarnings) EventType() string { return TypeAffiliateWithdrewEarnings }

// Event converts the payout details to the generic event payload.
func (e AffiliateWithdrewEarnings) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["affiliateId"] = strconv.FormatUint(e.AffiliateID, 10)
	attrs["amount"] = bigString(e.Amount)
	attrs["fee"] = bigString(e.Fee)
	return &types.Event{Type: TypeAffiliateWithdrewEarnings, Attributes: attrs}
}

// AdvertiserWithdrewFunds captures an advertiser withdrawal from the campaign
// balance.
type AdvertiserWithdrewFunds struct {
	CampaignID uint64
	Amount     *big.Int
	Remaining  *big.Int
}

// EventType implements the Event interface.
func (AdvertiserWithdrewFunds) EventType() string { return TypeAdvertiserWithdrewFunds }

// Event converts the withdrawal to the generic event payload.
func (e AdvertiserWithdrewFunds) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["amount"] = bigString(e.Amount)
	attrs["remaining"] = bigString(e.Remaining)
	return &types.Event{Type: TypeAdvertiserWithdrewFunds, Attributes: attrs}
}

// CampaignBalanceBelowThreshold warns the advertiser that the balance crossed
// under the configured notification threshold.
type CampaignBalanceBelowThreshold struct {
	CampaignID uint64
	Balance    *big.Int
	Threshold  *big.Int
}

// EventType implements the Event interface.
func (CampaignBalanceBelowThreshold) EventType() string { return TypeCampaignBalanceBelowThreshold }

// Event converts the warning to the generic event payload.
func (e CampaignBalanceBelowThreshold) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["balance"] = bigString(e.Balance)
	attrs["threshold"] = bigString(e.Threshold)
	return &types.Event{Type: TypeCampaignBalanceBelowThreshold, Attributes: attrs}
}

// CampaignFundsInsufficient signals that the balance no longer covers the most
// expensive configured action and the campaign flipped inactive. Independent
// of the below-threshold warning; the two may or may not co-occur.
type CampaignFundsInsufficient struct {
	CampaignID    uint64
	Balance       *big.Int
	MaxActionCost *big.Int
}

// EventType implements the Event interface.
func (CampaignFundsInsufficient) EventType() string { return TypeCampaignFundsInsufficient }

// Event converts the signal to the generic event payload.
func (e CampaignFundsInsufficient) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["balance"] = bigString(e.Balance)
	attrs["maxActionCost"] = bigString(e.MaxActionCost)
	return &types.Event{Type: TypeCampaignFundsInsufficient, Attributes: attrs}
}

// CampaignFeeUpdated captures an administrator fee change.
type CampaignFeeUpdated struct {
	CampaignID uint64
	OldBps     uint32
	NewBps     uint32
}

// EventType implements the Event interface.
func (CampaignFeeUpdated) EventType() string { return TypeCampaignFeeUpdated }

// Event converts the fee change to the generic event payload.
func (e CampaignFeeUpdated) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["oldBps"] = strconv.FormatUint(uint64(e.OldBps), 10)
	attrs["newBps"] = strconv.FormatUint(uint64(e.NewBps), 10)
	return &types.Event{Type: TypeCampaignFeeUpdated, Attributes: attrs}
}

// CampaignStopped captures an administrator freeze.
type CampaignStopped struct {
	CampaignID uint64
}

// EventType implements the Event interface.
func (CampaignStopped) EventType() string { return TypeCampaignStopped }

// Event converts the freeze to the generic event payload.
func (e CampaignStopped) Event() *types.Event {
	return &types.Event{Type: TypeCampaignStopped, Attributes: campaignAttrs(e.CampaignID)}
}

// CampaignResumed captures an administrator unfreeze.
type CampaignResumed struct {
	CampaignID uint64
}

// EventType implements the Event interface.
func (CampaignResumed) EventType() string { return TypeCampaignResumed }

// Event converts the unfreeze to the generic event payload.
func (e CampaignResumed) Event() *types.Event {
	return &types.Event{Type: TypeCampaignResumed, Attributes: campaignAttrs(e.CampaignID)}
}

// CampaignSeized captures a compliance confiscation of the campaign balance.
type CampaignSeized struct {
	CampaignID uint64
	Amount     *big.Int
}

// EventType implements the Event interface.
func (CampaignSeized) EventType() string { return TypeCampaignSeized }

// Event converts the seizure to the generic event payload.
func (e CampaignSeized) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["amount"] = bigString(e.Amount)
	return &types.Event{Type: TypeCampaignSeized, Attributes: attrs}
}

// CampaignRemoved captures the advertiser dissolving a campaign after the
// remaining balance was refunded.
type CampaignRemoved struct {
	CampaignID uint64
	Refunded   *big.Int
}

// EventType implements the Event interface.
func (CampaignRemoved) EventType() string { return TypeCampaignRemoved }

// Event converts the dissolution to the generic event payload.
func (e CampaignRemoved) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["refunded"] = bigString(e.Refunded)
	return &types.Event{Type: TypeCampaignRemoved, Attributes: attrs}
}

// CompensationCredited captures the corrective credit applied after a bounced
// stable-asset payout returned funds to the registry.
type CompensationCredited struct {
	CampaignID  uint64
	AffiliateID uint64
	Amount      *big.Int
}

// EventType implements the Event interface.
func (CompensationCredited) EventType() string { return TypeCompensationCredited }

// Event converts the corrective credit to the generic event payload.
func (e CompensationCredited) Event() *types.Event {
	attrs := campaignAttrs(e.CampaignID)
	attrs["affiliateId"] = strconv.FormatUint(e.AffiliateID, 10)
	attrs["amount"] = bigString(e.Amount)
	return &types.Event{Type: TypeCompensationCredited, Attributes: attrs}
}
