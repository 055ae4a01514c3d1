package campaign

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"admarket/core/events"
	"admarket/native/fees"
)

var (
	errNilState      = errors.New("campaign engine: state not configured")
	errNilSettlement = errors.New("campaign engine: settlement not configured")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVHas(key []byte) (bool, error)
	KVDelete(key []byte) error
}

// Settlement remits value out of the campaign core: payouts to affiliates and
// advertisers, and fee or seizure credits into the registry reserve. The
// registry implements it in production; tests use an in-memory bank.
type Settlement interface {
	Pay(to [20]byte, method PaymentMethod, amount *big.Int) error
	CreditReserve(amount *big.Int) error
}

// Limits carries the operator-tunable campaign parameters that are not part
// of the per-campaign configuration.
type Limits struct {
	MaxAffiliates       uint64
	MinReplenish        *big.Int
	LowBalanceThreshold *big.Int
	LeaderboardSize     int
}

// DefaultLimits mirrors the defaults written into a fresh config file.
func DefaultLimits() Limits {
	return Limits{
		MaxAffiliates:       10_000,
		MinReplenish:        big.NewInt(1),
		LowBalanceThreshold: big.NewInt(0),
		LeaderboardSize:     10,
	}
}

// Engine applies every campaign command. Each command is serialised by the
// engine mutex, loads the ledger, validates against a copy, and persists only
// after all checks pass, so a failed command leaves no partial mutation.
type Engine struct {
	mu      sync.Mutex
	st      engineState
	settle  Settlement
	emitter events.Emitter
	nowFn   func() int64
	limits  Limits
}

// NewEngine creates a campaign engine with a no-op emitter and default
// limits. Callers configure the state backend and settlement sink before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		limits:  DefaultLimits(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st engineState) { e.st = st }

// SetSettlement configures the sink receiving payouts and reserve credits.
func (e *Engine) SetSettlement(s Settlement) { e.settle = s }

// SetLimits overrides the operator limits.
func (e *Engine) SetLimits(l Limits) {
	if l.MinReplenish == nil {
		l.MinReplenish = big.NewInt(1)
	}
	if l.LowBalanceThreshold == nil {
		l.LowBalanceThreshold = big.NewInt(0)
	}
	e.limits = l
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadLedger(id uint64) (*Ledger, error) {
	if e.st == nil {
		return nil, errNilState
	}
	ledger := new(Ledger)
	found, err := e.st.KVGet(ledgerKey(id), ledger)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrCampaignNotFound
	}
	if ledger.Balance == nil {
		ledger.Balance = big.NewInt(0)
	}
	return ledger, nil
}

func (e *Engine) storeLedger(ledger *Ledger) error {
	return e.st.KVPut(ledgerKey(ledger.ID), ledger)
}

func (e *Engine) loadAllowList(id uint64) (map[string]bool, error) {
	allow := make(map[string]bool)
	if _, err := e.st.KVGet(allowListKey(id), &allow); err != nil {
		return nil, err
	}
	return allow, nil
}

func (e *Engine) loadAffiliate(campaignID, affiliateID uint64) (*AffiliateAccount, error) {
	account := new(AffiliateAccount)
	found, err := e.st.KVGet(affiliateKey(campaignID, affiliateID), account)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrAffiliateNotFound
	}
	account.ensureFunds()
	return account, nil
}

// deriveStatus recomputes the ACTIVE/INACTIVE predicate. It returns true when
// the recomputation flipped an active campaign inactive, which is the trigger
// for the funds-insufficient signal.
func (e *Engine) deriveStatus(ledger *Ledger, now int64) (flippedInactive bool) {
	if ledger.Config == nil || ledger.Status == StatusStopped || ledger.Status == StatusCreated {
		return false
	}
	wasActive := ledger.Status == StatusActive
	active := !ledger.IsExpired(now) && ledger.Balance.Cmp(ledger.Config.MaxSingleCost()) >= 0
	if active {
		ledger.Status = StatusActive
	} else {
		ledger.Status = StatusInactive
	}
	return wasActive && !active
}

// CreateCampaign persists a fresh ledger in state CREATED. Invoked by the
// registry during deployment; the payout identity defaults to the advertiser.
func (e *Engine) CreateCampaign(id uint64, advertiser, registry [20]byte) (*Ledger, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st == nil {
		return nil, errNilState
	}
	exists, err := e.st.KVHas(ledgerKey(id))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("campaign: id %d already deployed", id)
	}
	ledger := &Ledger{
		ID:              id,
		Advertiser:      advertiser,
		Registry:        registry,
		Payout:          advertiser,
		Status:          StatusCreated,
		Balance:         big.NewInt(0),
		NextAffiliateID: 1,
	}
	if err := e.storeLedger(ledger); err != nil {
		return nil, err
	}
	return ledger.Clone(), nil
}

// SetDetails commits the campaign configuration exactly once and records the
// campaign start timestamp.
func (e *Engine) SetDetails(id uint64, caller [20]byte, cfg *Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status == StatusStopped {
		return ErrContractStopped
	}
	if ledger.Status != StatusCreated || ledger.Config != nil {
		return ErrAlreadyInitialized
	}
	if caller != ledger.Advertiser {
		return ErrOnlyAdvertiser
	}
	sanitized, err := sanitizeConfig(cfg)
	if err != nil {
		return err
	}
	now := e.now()
	ledger.Config = sanitized
	ledger.Status = StatusDetailsSet
	ledger.StartAt = now
	if err := e.storeLedger(ledger); err != nil {
		return err
	}
	e.emit(events.CampaignDetailsSigned{
		CampaignID: id,
		Advertiser: ledger.Advertiser,
		FeeBps:     sanitized.FeeBps,
		Payment:    sanitized.Payment.String(),
		StartAt:    now,
	})
	return nil
}

// Replenish credits the campaign balance on the synchronous native-asset
// path. Stable-asset campaigns must use NotifyStableDeposit instead.
func (e *Engine) Replenish(id uint64, caller [20]byte, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if err := e.checkFundable(ledger, caller); err != nil {
		return err
	}
	if ledger.Config.Payment != PaymentNative {
		return ErrWrongPaymentMethod
	}
	if err := e.creditBalance(ledger, amount); err != nil {
		return err
	}
	if err := e.storeLedger(ledger); err != nil {
		return err
	}
	e.emit(events.CampaignReplenished{CampaignID: id, Amount: cloneBigInt(amount), Balance: cloneBigInt(ledger.Balance)})
	return nil
}

// NotifyStableDeposit credits the campaign balance when the external
// stable-asset transfer identified by ref has landed. The external transfer
// and this notification are decoupled in time, so a duplicate or reordered
// notification for the same ref is a no-op rather than a double credit.
func (e *Engine) NotifyStableDeposit(id uint64, ref uuid.UUID, from [20]byte, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if err := e.checkFundable(ledger, from); err != nil {
		return err
	}
	if ledger.Config.Payment != PaymentStable {
		return ErrWrongPaymentMethod
	}
	seen, err := e.st.KVHas(depositKey(id, ref.String()))
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	if err := e.creditBalance(ledger, amount); err != nil {
		return err
	}
	record := struct {
		From   [20]byte `json:"from"`
		Amount *big.Int `json:"amount"`
		At     int64    `json:"at"`
	}{From: from, Amount: cloneBigInt(amount), At: e.now()}
	if err := e.st.KVPut(depositKey(id, ref.String()), record); err != nil {
		return err
	}
	var refs []string
	if _, err := e.st.KVGet(depositIndexKey(id), &refs); err != nil {
		return err
	}
	if err := e.st.KVPut(depositIndexKey(id), append(refs, ref.String())); err != nil {
		return err
	}
	if err := e.storeLedger(ledger); err != nil {
		return err
	}
	e.emit(events.CampaignReplenished{
		CampaignID: id,
		Amount:     cloneBigInt(amount),
		Balance:    cloneBigInt(ledger.Balance),
		DepositRef: ref.String(),
	})
	return nil
}

func (e *Engine) checkFundable(ledger *Ledger, caller [20]byte) error {
	if ledger.Status == StatusStopped {
		return ErrContractStopped
	}
	if ledger.Config == nil {
		return ErrNotInitialized
	}
	if caller != ledger.Advertiser {
		return ErrOnlyAdvertiser
	}
	if ledger.IsExpired(e.now()) {
		return ErrCampaignExpired
	}
	return nil
}

func (e *Engine) creditBalance(ledger *Ledger, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if e.limits.MinReplenish != nil && amount.Cmp(e.limits.MinReplenish) < 0 {
		return ErrReplenishBelowMinimum
	}
	ledger.Balance = new(big.Int).Add(ledger.Balance, amount)
	ledger.NumReplenishments++
	e.deriveStatus(ledger, e.now())
	return nil
}

// RegisterAffiliate creates an affiliate account. Open campaigns accept any
// requester; closed campaigns require allow-list membership.
func (e *Engine) RegisterAffiliate(id uint64, requester [20]byte) (*AffiliateAccount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return nil, err
	}
	if ledger.Status == StatusStopped {
		return nil, ErrContractStopped
	}
	if ledger.Config == nil {
		return nil, ErrNotInitialized
	}
	registered, err := e.st.KVHas(affiliateAddrKey(id, requester))
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, ErrAffiliateExists
	}
	if !ledger.Config.OpenCampaign {
		allow, err := e.loadAllowList(id)
		if err != nil {
			return nil, err
		}
		if !allow[addrString(requester)] {
			return nil, ErrNotOnAllowedList
		}
	}
	if e.limits.MaxAffiliates > 0 && ledger.NumAffiliates >= e.limits.MaxAffiliates {
		return nil, ErrMaxAffiliatesReached
	}
	account := &AffiliateAccount{
		ID:       ledger.NextAffiliateID,
		Address:  requester,
		JoinedAt: e.now(),
	}
	account.ensureFunds()
	ledger.NextAffiliateID++
	ledger.NumAffiliates++
	if err := e.st.KVPut(affiliateKey(id, account.ID), account); err != nil {
		return nil, err
	}
	if err := e.st.KVPut(affiliateAddrKey(id, requester), account.ID); err != nil {
		return nil, err
	}
	if err := e.storeLedger(ledger); err != nil {
		return nil, err
	}
	e.emit(events.AffiliateCreated{CampaignID: id, AffiliateID: account.ID, Address: requester})
	return account.Clone(), nil
}

// AddToAllowedList grants a closed-campaign registration slot. Idempotent.
func (e *Engine) AddToAllowedList(id uint64, caller, affiliate [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status == StatusStopped {
		return ErrContractStopped
	}
	if caller != ledger.Advertiser {
		return ErrOnlyAdvertiser
	}
	allow, err := e.loadAllowList(id)
	if err != nil {
		return err
	}
	allow[addrString(affiliate)] = true
	if err := e.st.KVPut(allowListKey(id), allow); err != nil {
		return err
	}
	e.emit(events.AllowedListApproved{CampaignID: id, Affiliate: affiliate})
	return nil
}

// RemoveFromAllowedList revokes a registration slot. Existing affiliate
// accounts are unaffected; removal only blocks future registrations.
func (e *Engine) RemoveFromAllowedList(id uint64, caller, affiliate [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status == StatusStopped {
		return ErrContractStopped
	}
	if caller != ledger.Advertiser {
		return ErrOnlyAdvertiser
	}
	allow, err := e.loadAllowList(id)
	if err != nil {
		return err
	}
	delete(allow, addrString(affiliate))
	if err := e.st.KVPut(allowListKey(id), allow); err != nil {
		return err
	}
	e.emit(events.AllowedListRemoved{CampaignID: id, Affiliate: affiliate})
	return nil
}

// AskToJoinAllowedList records a join request as an event the advertiser can
// approve via AddToAllowedList.
func (e *Engine) AskToJoinAllowedList(id uint64, requester [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status == StatusStopped {
		return ErrContractStopped
	}
	if ledger.Config == nil {
		return ErrNotInitialized
	}
	if ledger.Config.OpenCampaign {
		return ErrOpenCampaign
	}
	e.emit(events.AllowedListJoinRequested{CampaignID: id, Requester: requester})
	return nil
}

// RecordUserAction is the single pricing and crediting operation. viaBot marks
// commands forwarded by the registry after authenticating the verification
// bot; direct advertiser submissions carry the verifier address instead.
func (e *Engine) RecordUserAction(id uint64, verifier [20]byte, viaBot bool, affiliateID uint64, op OpCode, premium bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settle == nil {
		return errNilSettlement
	}
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status == StatusStopped {
		return ErrContractStopped
	}
	if ledger.Config == nil {
		return ErrNotInitialized
	}
	now := e.now()
	if ledger.IsExpired(now) {
		return ErrCampaignExpired
	}
	switch VerifierClassFor(op) {
	case VerifierBot:
		if !viaBot {
			return ErrUnauthorizedVerifier
		}
	case VerifierAdvertiser:
		if viaBot || verifier != ledger.Advertiser {
			return ErrUnauthorizedVerifier
		}
	}
	regularCost, haveRegular := ledger.Config.RegularCosts[op]
	premiumCost, havePremium := ledger.Config.PremiumCosts[op]
	if haveRegular != havePremium {
		return ErrOpCodeCostMismatch
	}
	if !haveRegular {
		return ErrUnknownOpCode
	}
	cost := regularCost
	if premium {
		cost = premiumCost
	}
	if cost == nil || cost.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if cost.Cmp(ledger.Balance) > 0 {
		return ErrInsufficientCampaignBalance
	}
	account, err := e.loadAffiliate(id, affiliateID)
	if err != nil {
		return err
	}

	balanceBefore := cloneBigInt(ledger.Balance)
	ledger.Balance = new(big.Int).Sub(ledger.Balance, cost)
	ledger.NumUserActions++
	ledger.LastUserActionAt = now

	// The marketplace fee is charged once, at withdrawal time; accrual
	// therefore carries the full action cost.
	if ledger.Config.RequiresApproval {
		account.PendingEarnings = new(big.Int).Add(account.PendingEarnings, cost)
	} else {
		account.AccruedEarnings = new(big.Int).Add(account.AccruedEarnings, cost)
	}
	account.TotalEarnings = new(big.Int).Add(account.TotalEarnings, cost)

	stats := account.RegularStats
	if premium {
		if account.PremiumStats == nil {
			account.PremiumStats = make(map[OpCode]UserActionStat)
		}
		stats = account.PremiumStats
	} else if stats == nil {
		account.RegularStats = make(map[OpCode]UserActionStat)
		stats = account.RegularStats
	}
	stat := stats[op]
	stat.Count++
	stat.LastAt = now
	stats[op] = stat

	ledger.updateLeaderboard(account.ID, account.TotalEarnings, e.limits.LeaderboardSize)
	flipped := e.deriveStatus(ledger, now)

	if err := e.st.KVPut(affiliateKey(id, affiliateID), account); err != nil {
		return err
	}
	if err := e.storeLedger(ledger); err != nil {
		return err
	}

	e.emit(events.UserActionRecorded{
		CampaignID:  id,
		AffiliateID: affiliateID,
		OpCode:      uint16(op),
		Premium:     premium,
		Cost:        cloneBigInt(cost),
		Balance:     cloneBigInt(ledger.Balance),
	})
	if threshold := e.limits.LowBalanceThreshold; threshold != nil && threshold.Sign() > 0 {
		if balanceBefore.Cmp(threshold) >= 0 && ledger.Balance.Cmp(threshold) < 0 {
			e.emit(events.CampaignBalanceBelowThreshold{
				CampaignID: id,
				Balance:    cloneBigInt(ledger.Balance),
				Threshold:  cloneBigInt(threshold),
			})
		}
	}
	if flipped {
		e.emit(events.CampaignFundsInsufficient{
			CampaignID:    id,
			Balance:       cloneBigInt(ledger.Balance),
			MaxActionCost: ledger.Config.MaxSingleCost(),
		})
	}
	return nil
}

// AffiliateWithdraw pays out the affiliate's accrued earnings, splitting the
// marketplace fee into the registry reserve. Permitted on expired campaigns:
// already-accrued earnings always remain withdrawable.
func (e *Engine) AffiliateWithdraw(id uint64, requester [20]byte, affiliateID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settle == nil {
		return errNilSettlement
	}
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status == StatusStopped {
		return ErrContractStopped
	}
	if ledger.Config == nil {
		return ErrNotInitialized
	}
	account, err := e.loadAffiliate(id, affiliateID)
	if err != nil {
		return err
	}
	if requester != account.Address {
		return ErrOnlyAffiliateCanWithdraw
	}
	if account.AccruedEarnings.Sign() == 0 {
		return ErrNoEarningsToWithdraw
	}
	split := fees.Apply(account.AccruedEarnings, ledger.Config.FeeBps)
	if split.Net.Sign() > 0 {
		if err := e.settle.Pay(account.Address, ledger.Config.Payment, split.Net); err != nil {
			return err
		}
	}
	if split.Fee.Sign() > 0 {
		if err := e.settle.CreditReserve(split.Fee); err != nil {
			return err
		}
	}
	account.LastWithdrawalAmount = cloneBigInt(account.AccruedEarnings)
	account.LastWithdrawalAt = e.now()
	account.AccruedEarnings = big.NewInt(0)
	if err := e.st.KVPut(affiliateKey(id, affiliateID), account); err != nil {
		return err
	}
	e.emit(events.AffiliateWithdrewEarnings{
		CampaignID:  id,
		AffiliateID: affiliateID,
		Amount:      cloneBigInt(split.Net),
		Fee:         cloneBigInt(split.Fee),
	})
	return nil
}

// AdvertiserWithdraw pays part of the campaign balance back to the payout
// identity. Permitted on expired campaigns.
func (e *Engine) AdvertiserWithdraw(id uint64, caller [20]byte, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advertiserWithdrawLocked(id, caller, amount, false)
}

// AdvertiserWithdrawAll drains the campaign balance to the payout identity.
func (e *Engine) AdvertiserWithdrawAll(id uint64, caller [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advertiserWithdrawLocked(id, caller, nil, true)
}

func (e *Engine) advertiserWithdrawLocked(id uint64, caller [20]byte, amount *big.Int, all bool) error {
	if e.settle == nil {
		return errNilSettlement
	}
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status == StatusStopped {
		return ErrContractStopped
	}
	if ledger.Config == nil {
		return ErrNotInitialized
	}
	if caller != ledger.Advertiser {
		return ErrOnlyAdvertiser
	}
	if ledger.Balance.Sign() == 0 {
		return ErrCampaignHasNoFunds
	}
	if all {
		amount = cloneBigInt(ledger.Balance)
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if amount.Cmp(ledger.Balance) > 0 {
		return ErrInsufficientCampaignBalance
	}
	if err := e.settle.Pay(ledger.Payout, ledger.Config.Payment, amount); err != nil {
		return err
	}
	ledger.Balance = new(big.Int).Sub(ledger.Balance, amount)
	ledger.NumAdvertiserWithdrawals++
	flipped := e.deriveStatus(ledger, e.now())
	if err := e.storeLedger(ledger); err != nil {
		return err
	}
	e.emit(events.AdvertiserWithdrewFunds{CampaignID: id, Amount: cloneBigInt(amount), Remaining: cloneBigInt(ledger.Balance)})
	if flipped {
		e.emit(events.CampaignFundsInsufficient{
			CampaignID:    id,
			Balance:       cloneBigInt(ledger.Balance),
			MaxActionCost: ledger.Config.MaxSingleCost(),
		})
	}
	return nil
}

// ApproveEarnings moves funds from the pending-approval bucket to the
// withdrawable balance on campaigns requiring advertiser sign-off.
func (e *Engine) ApproveEarnings(id uint64, caller [20]byte, affiliateID uint64, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status == StatusStopped {
		return ErrContractStopped
	}
	if ledger.Config == nil {
		return ErrNotInitialized
	}
	if caller != ledger.Advertiser {
		return ErrOnlyAdvertiser
	}
	if !ledger.Config.RequiresApproval {
		return ErrApprovalNotRequired
	}
	if ledger.IsExpired(e.now()) {
		return ErrCampaignExpired
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	account, err := e.loadAffiliate(id, affiliateID)
	if err != nil {
		return err
	}
	if amount.Cmp(account.PendingEarnings) > 0 {
		return ErrInsufficientPendingEarnings
	}
	account.PendingEarnings = new(big.Int).Sub(account.PendingEarnings, amount)
	account.AccruedEarnings = new(big.Int).Add(account.AccruedEarnings, amount)
	if err := e.st.KVPut(affiliateKey(id, affiliateID), account); err != nil {
		return err
	}
	e.emit(events.EarningsApproved{CampaignID: id, AffiliateID: affiliateID, Amount: cloneBigInt(amount)})
	return nil
}

// RemoveAffiliate deletes an affiliate account. Deletion is refused while any
// accrued or pending balance remains, otherwise funds would be stranded.
func (e *Engine) RemoveAffiliate(id uint64, caller [20]byte, affiliateID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status == StatusStopped {
		return ErrContractStopped
	}
	if caller != ledger.Advertiser {
		return ErrOnlyAdvertiser
	}
	account, err := e.loadAffiliate(id, affiliateID)
	if err != nil {
		return err
	}
	if account.AccruedEarnings.Sign() != 0 || account.PendingEarnings.Sign() != 0 {
		return ErrAffiliateOutstandingBalance
	}
	if err := e.st.KVDelete(affiliateKey(id, affiliateID)); err != nil {
		return err
	}
	if err := e.st.KVDelete(affiliateAddrKey(id, account.Address)); err != nil {
		return err
	}
	if ledger.NumAffiliates > 0 {
		ledger.NumAffiliates--
	}
	ledger.dropFromLeaderboard(affiliateID)
	if err := e.storeLedger(ledger); err != nil {
		return err
	}
	e.emit(events.AffiliateRemoved{CampaignID: id, AffiliateID: affiliateID})
	return nil
}

// RemoveCampaign dissolves the campaign: the remaining balance is refunded to
// the payout identity and every record is deleted. Refused while any
// affiliate still holds accrued or pending earnings.
func (e *Engine) RemoveCampaign(id uint64, caller [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settle == nil {
		return errNilSettlement
	}
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status == StatusStopped {
		return ErrContractStopped
	}
	if caller != ledger.Advertiser {
		return ErrOnlyAdvertiser
	}
	accounts, err := e.listAffiliates(ledger)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if account.AccruedEarnings.Sign() != 0 || account.PendingEarnings.Sign() != 0 {
			return ErrAffiliateOutstandingBalance
		}
	}
	refunded := cloneBigInt(ledger.Balance)
	if refunded.Sign() > 0 && ledger.Config != nil {
		if err := e.settle.Pay(ledger.Payout, ledger.Config.Payment, refunded); err != nil {
			return err
		}
	}
	for _, account := range accounts {
		if err := e.st.KVDelete(affiliateKey(id, account.ID)); err != nil {
			return err
		}
		if err := e.st.KVDelete(affiliateAddrKey(id, account.Address)); err != nil {
			return err
		}
	}
	if err := e.st.KVDelete(allowListKey(id)); err != nil {
		return err
	}
	var refs []string
	if _, err := e.st.KVGet(depositIndexKey(id), &refs); err != nil {
		return err
	}
	for _, ref := range refs {
		if err := e.st.KVDelete(depositKey(id, ref)); err != nil {
			return err
		}
	}
	if err := e.st.KVDelete(depositIndexKey(id)); err != nil {
		return err
	}
	if err := e.st.KVDelete(ledgerKey(id)); err != nil {
		return err
	}
	e.emit(events.CampaignRemoved{CampaignID: id, Refunded: refunded})
	return nil
}

// SetFeeBps adjusts the marketplace fee, the one configuration field that
// stays administrator-mutable. Authorization happens in the registry.
func (e *Engine) SetFeeBps(id uint64, bps uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Config == nil {
		return ErrNotInitialized
	}
	if !fees.ValidBps(bps) {
		return ErrFeeBpsOutOfRange
	}
	if ledger.Config.FeeBps == bps {
		return ErrNoChange
	}
	old := ledger.Config.FeeBps
	ledger.Config.FeeBps = bps
	if err := e.storeLedger(ledger); err != nil {
		return err
	}
	e.emit(events.CampaignFeeUpdated{CampaignID: id, OldBps: old, NewBps: bps})
	return nil
}

// Stop freezes the campaign. While stopped every non-administrative command
// fails with ErrContractStopped.
func (e *Engine) Stop(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status == StatusStopped {
		return ErrNoChange
	}
	ledger.Status = StatusStopped
	if err := e.storeLedger(ledger); err != nil {
		return err
	}
	e.emit(events.CampaignStopped{CampaignID: id})
	return nil
}

// Resume lifts the administrative freeze and re-derives the activity state.
func (e *Engine) Resume(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	if ledger.Status != StatusStopped {
		return ErrNoChange
	}
	if ledger.Config == nil {
		ledger.Status = StatusCreated
	} else {
		ledger.Status = StatusInactive
		e.deriveStatus(ledger, e.now())
	}
	if err := e.storeLedger(ledger); err != nil {
		return err
	}
	e.emit(events.CampaignResumed{CampaignID: id})
	return nil
}

// Seize zeroes the campaign balance into the registry reserve. Administrative
// path for abuse and compliance takedowns; works on stopped campaigns.
func (e *Engine) Seize(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settle == nil {
		return errNilSettlement
	}
	ledger, err := e.loadLedger(id)
	if err != nil {
		return err
	}
	amount := cloneBigInt(ledger.Balance)
	if amount.Sign() > 0 {
		if err := e.settle.CreditReserve(amount); err != nil {
			return err
		}
	}
	ledger.Balance = big.NewInt(0)
	e.deriveStatus(ledger, e.now())
	if err := e.storeLedger(ledger); err != nil {
		return err
	}
	e.emit(events.CampaignSeized{CampaignID: id, Amount: amount})
	return nil
}

// CreditAffiliate restores accrued earnings for an affiliate whose asynchronous
// stable-asset payout bounced back to the registry. Administrative path; the
// registry debits its reserve before calling.
func (e *Engine) CreditAffiliate(id, affiliateID uint64, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, err := e.loadLedger(id); err != nil {
		return err
	}
	account, err := e.loadAffiliate(id, affiliateID)
	if err != nil {
		return err
	}
	account.AccruedEarnings = new(big.Int).Add(account.AccruedEarnings, amount)
	if err := e.st.KVPut(affiliateKey(id, affiliateID), account); err != nil {
		return err
	}
	e.emit(events.CompensationCredited{CampaignID: id, AffiliateID: affiliateID, Amount: cloneBigInt(amount)})
	return nil
}

// GetLedger retrieves a campaign ledger by id.
func (e *Engine) GetLedger(id uint64) (*Ledger, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger(id)
	if err != nil {
		return nil, false
	}
	return ledger.Clone(), true
}

// GetAffiliate retrieves an affiliate account by campaign and affiliate id.
func (e *Engine) GetAffiliate(id, affiliateID uint64) (*AffiliateAccount, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	account, err := e.loadAffiliate(id, affiliateID)
	if err != nil {
		return nil, false
	}
	return account.Clone(), true
}

// IsAllowed reports allow-list membership for a closed campaign.
func (e *Engine) IsAllowed(id uint64, affiliate [20]byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	allow, err := e.loadAllowList(id)
	return err == nil && allow[addrString(affiliate)]
}

func (e *Engine) listAffiliates(ledger *Ledger) ([]*AffiliateAccount, error) {
	accounts := make([]*AffiliateAccount, 0, ledger.NumAffiliates)
	for affiliateID := uint64(1); affiliateID < ledger.NextAffiliateID; affiliateID++ {
		account, err := e.loadAffiliate(ledger.ID, affiliateID)
		if err != nil {
			if errors.Is(err, ErrAffiliateNotFound) {
				continue
			}
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}
