package campaign

import (
	"math/big"
	"sort"
)

// OpCode identifies a priced user-action type within a campaign.
type OpCode uint16

// AdvertiserOpCodeFloor is the first op-code reserved for actions the
// advertiser reports directly. Codes below it must arrive through the
// verification-bot path forwarded by the registry.
const AdvertiserOpCodeFloor OpCode = 0x1000

// VerifierClass names the party authorised to submit a given op-code.
type VerifierClass uint8

const (
	// VerifierBot marks op-codes submitted by the verification bot via the
	// registry.
	VerifierBot VerifierClass = iota
	// VerifierAdvertiser marks op-codes submitted directly by the
	// advertiser.
	VerifierAdvertiser
)

// VerifierClassFor derives the required verifier class from the op-code range.
func VerifierClassFor(op OpCode) VerifierClass {
	if op < AdvertiserOpCodeFloor {
		return VerifierBot
	}
	return VerifierAdvertiser
}

// PaymentMethod selects how a campaign is funded and settled.
type PaymentMethod uint8

const (
	// PaymentNative settles synchronously in the native asset.
	PaymentNative PaymentMethod = iota
	// PaymentStable settles in the stable asset; deposits arrive as
	// asynchronous transfer notifications.
	PaymentStable
)

// String returns the payment method ticker used in events.
func (m PaymentMethod) String() string {
	if m == PaymentStable {
		return "STABLE"
	}
	return "NATIVE"
}

// Status is the stored campaign lifecycle state. Expiry is a derived
// predicate, never a stored status.
type Status uint8

const (
	// StatusCreated is the state of a deployed ledger before the advertiser
	// signs the configuration.
	StatusCreated Status = iota
	// StatusDetailsSet follows the one-time configuration commit.
	StatusDetailsSet
	// StatusActive means the balance covers the most expensive configured
	// action and the campaign is neither expired nor stopped.
	StatusActive
	// StatusInactive means the campaign is configured but cannot currently
	// fund its most expensive action.
	StatusInactive
	// StatusStopped is the administrative freeze set by the registry.
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusDetailsSet:
		return "DETAILS_SET"
	case StatusActive:
		return "ACTIVE"
	case StatusInactive:
		return "INACTIVE"
	case StatusStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config is the campaign configuration committed exactly once by the
// advertiser. FeeBps is the single field the administrator may adjust later.
type Config struct {
	RegularCosts     map[OpCode]*big.Int `json:"regularCosts"`
	PremiumCosts     map[OpCode]*big.Int `json:"premiumCosts"`
	OpenCampaign     bool                `json:"openCampaign"`
	Payment          PaymentMethod       `json:"payment"`
	ValidityDays     uint32              `json:"validityDays"`
	RequiresApproval bool                `json:"requiresApproval"`
	FeeBps           uint32              `json:"feeBps"`
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.RegularCosts = cloneCosts(c.RegularCosts)
	clone.PremiumCosts = cloneCosts(c.PremiumCosts)
	return &clone
}

// MaxSingleCost returns the most expensive configured cost-per-action across
// both tiers. The activity predicate compares the balance against it.
func (c *Config) MaxSingleCost() *big.Int {
	max := big.NewInt(0)
	if c == nil {
		return max
	}
	for _, cost := range c.RegularCosts {
		if cost != nil && cost.Cmp(max) > 0 {
			max = cost
		}
	}
	for _, cost := range c.PremiumCosts {
		if cost != nil && cost.Cmp(max) > 0 {
			max = cost
		}
	}
	return new(big.Int).Set(max)
}

func cloneCosts(costs map[OpCode]*big.Int) map[OpCode]*big.Int {
	if costs == nil {
		return nil
	}
	clone := make(map[OpCode]*big.Int, len(costs))
	for op, cost := range costs {
		clone[op] = cloneBigInt(cost)
	}
	return clone
}

// UserActionStat tracks per-op-code usage for one affiliate and tier.
type UserActionStat struct {
	Count  uint64 `json:"count"`
	LastAt int64  `json:"lastAt"`
}

// AffiliateAccount is the per-affiliate earnings record owned by one campaign
// ledger.
type AffiliateAccount struct {
	ID                   uint64                    `json:"id"`
	Address              [20]byte                  `json:"address"`
	RegularStats         map[OpCode]UserActionStat `json:"regularStats"`
	PremiumStats         map[OpCode]UserActionStat `json:"premiumStats"`
	PendingEarnings      *big.Int                  `json:"pendingEarnings"`
	AccruedEarnings      *big.Int                  `json:"accruedEarnings"`
	TotalEarnings        *big.Int                  `json:"totalEarnings"`
	LastWithdrawalAmount *big.Int                  `json:"lastWithdrawalAmount"`
	LastWithdrawalAt     int64                     `json:"lastWithdrawalAt"`
	JoinedAt             int64                     `json:"joinedAt"`
}

// Clone returns a deep copy of the account.
func (a *AffiliateAccount) Clone() *AffiliateAccount {
	if a == nil {
		return nil
	}
	clone := *a
	clone.PendingEarnings = cloneBigInt(a.PendingEarnings)
	clone.AccruedEarnings = cloneBigInt(a.AccruedEarnings)
	clone.TotalEarnings = cloneBigInt(a.TotalEarnings)
	clone.LastWithdrawalAmount = cloneBigInt(a.LastWithdrawalAmount)
	clone.RegularStats = cloneStats(a.RegularStats)
	clone.PremiumStats = cloneStats(a.PremiumStats)
	return &clone
}

func (a *AffiliateAccount) ensureFunds() {
	if a.PendingEarnings == nil {
		a.PendingEarnings = big.NewInt(0)
	}
	if a.AccruedEarnings == nil {
		a.AccruedEarnings = big.NewInt(0)
	}
	if a.TotalEarnings == nil {
		a.TotalEarnings = big.NewInt(0)
	}
	if a.LastWithdrawalAmount == nil {
		a.LastWithdrawalAmount = big.NewInt(0)
	}
}

func cloneStats(stats map[OpCode]UserActionStat) map[OpCode]UserActionStat {
	if stats == nil {
		return nil
	}
	clone := make(map[OpCode]UserActionStat, len(stats))
	for op, stat := range stats {
		clone[op] = stat
	}
	return clone
}

// LeaderboardEntry ranks an affiliate by lifetime earnings.
type LeaderboardEntry struct {
	AffiliateID uint64   `json:"affiliateId"`
	Total       *big.Int `json:"total"`
}

// Ledger is the runtime state of one campaign.
type Ledger struct {
	ID                       uint64             `json:"id"`
	Advertiser               [20]byte           `json:"advertiser"`
	Registry                 [20]byte           `json:"registry"`
	Payout                   [20]byte           `json:"payout"`
	Status                   Status             `json:"status"`
	Config                   *Config            `json:"config,omitempty"`
	Balance                  *big.Int           `json:"balance"`
	NumAffiliates            uint64             `json:"numAffiliates"`
	NumAdvertiserWithdrawals uint64             `json:"numAdvertiserWithdrawals"`
	NumReplenishments        uint64             `json:"numReplenishments"`
	NumUserActions           uint64             `json:"numUserActions"`
	NextAffiliateID          uint64             `json:"nextAffiliateId"`
	StartAt                  int64              `json:"startAt"`
	LastUserActionAt         int64              `json:"lastUserActionAt"`
	Leaderboard              []LeaderboardEntry `json:"leaderboard,omitempty"`
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Config = l.Config.Clone()
	clone.Balance = cloneBigInt(l.Balance)
	if l.Leaderboard != nil {
		clone.Leaderboard = make([]LeaderboardEntry, len(l.Leaderboard))
		for i, entry := range l.Leaderboard {
			clone.Leaderboard[i] = LeaderboardEntry{AffiliateID: entry.AffiliateID, Total: cloneBigInt(entry.Total)}
		}
	}
	return &clone
}

// IsExpired reports whether the validity window has elapsed at the supplied
// unix timestamp. Campaigns without a window never expire.
func (l *Ledger) IsExpired(now int64) bool {
	if l == nil || l.Config == nil || l.Config.ValidityDays == 0 || l.StartAt == 0 {
		return false
	}
	return now > l.StartAt+int64(l.Config.ValidityDays)*86_400
}

// updateLeaderboard re-ranks the affiliate's lifetime total, keeping at most
// size entries ordered by total descending, affiliate id ascending on ties.
func (l *Ledger) updateLeaderboard(affiliateID uint64, total *big.Int, size int) {
	if size <= 0 {
		return
	}
	entries := l.Leaderboard
	found := false
	for i := range entries {
		if entries[i].AffiliateID == affiliateID {
			entries[i].Total = cloneBigInt(total)
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, LeaderboardEntry{AffiliateID: affiliateID, Total: cloneBigInt(total)})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		cmp := entries[i].Total.Cmp(entries[j].Total)
		if cmp != 0 {
			return cmp > 0
		}
		return entries[i].AffiliateID < entries[j].AffiliateID
	})
	if len(entries) > size {
		entries = entries[:size]
	}
	l.Leaderboard = entries
}

// dropFromLeaderboard removes the affiliate after an account deletion.
func (l *Ledger) dropFromLeaderboard(affiliateID uint64) {
	for i := range l.Leaderboard {
		if l.Leaderboard[i].AffiliateID == affiliateID {
			l.Leaderboard = append(l.Leaderboard[:i], l.Leaderboard[i+1:]...)
			return
		}
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
