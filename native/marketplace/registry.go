package marketplace

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"admarket/core/events"
	"admarket/native/campaign"
	nativecommon "admarket/native/common"
	"admarket/observability"
)

const moduleName = "marketplace"

type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVHas(key []byte) (bool, error)
	KVDelete(key []byte) error
}

// PaymentSender remits value to identities outside the core: affiliate and
// advertiser payouts and reserve withdrawals. In production this is the
// settlement bridge to the execution substrate; tests use an in-memory bank.
type PaymentSender interface {
	Pay(to [20]byte, method campaign.PaymentMethod, amount *big.Int) error
}

// Params are the registry's operating parameters, fixed at construction.
type Params struct {
	Address          [20]byte
	Admin            [20]byte
	Bot              [20]byte
	DeploymentFee    *big.Int
	MinReserveBuffer *big.Int
}

// Registry owns the campaign set and the shared reserve. It validates
// authorization on the first hop of every two-hop command and forwards the
// action to the target campaign engine. The registry mutex serialises
// registry-local state only; forwarded commands are serialised by the engine,
// and reserve movements by their own lock so engine callbacks into
// CreditReserve cannot deadlock.
type Registry struct {
	mu        sync.Mutex
	reserveMu sync.Mutex
	st        registryState
	engine    *campaign.Engine
	sender    PaymentSender
	emitter   events.Emitter
	params    Params
}

// NewRegistry creates a registry backed by the provided state manager and
// campaign engine. The registry registers itself as the engine's settlement
// sink so withdrawal fees and seizures land in the reserve.
func NewRegistry(st registryState, engine *campaign.Engine, params Params) *Registry {
	if params.DeploymentFee == nil {
		params.DeploymentFee = big.NewInt(0)
	}
	if params.MinReserveBuffer == nil {
		params.MinReserveBuffer = big.NewInt(0)
	}
	r := &Registry{
		st:      st,
		engine:  engine,
		emitter: events.NoopEmitter{},
		params:  params,
	}
	if engine != nil {
		engine.SetSettlement(r)
	}
	return r
}

// SetEmitter configures the event emitter used for registry-level events.
// Passing nil resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetSender configures the outbound payment bridge.
func (r *Registry) SetSender(sender PaymentSender) { r.sender = sender }

// Engine exposes the campaign engine for direct advertiser and affiliate
// commands that need no registry hop.
func (r *Registry) Engine() *campaign.Engine { return r.engine }

func (r *Registry) emit(evt events.Event) {
	if r.emitter != nil && evt != nil {
		r.emitter.Emit(evt)
	}
}

func record(command string, err error) error {
	observability.Commands().RecordCommand(moduleName, command, err)
	return err
}

// --- Settlement (campaign engine callbacks) ---

// Pay implements campaign.Settlement by delegating to the payment bridge.
func (r *Registry) Pay(to [20]byte, method campaign.PaymentMethod, amount *big.Int) error {
	if r.sender == nil {
		return ErrNoRecipients
	}
	return r.sender.Pay(to, method, amount)
}

// CreditReserve implements campaign.Settlement: marketplace fees, seizures,
// and deployment-refund fan-backs accumulate here.
func (r *Registry) CreditReserve(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	r.reserveMu.Lock()
	defer r.reserveMu.Unlock()
	reserve, err := r.loadReserve()
	if err != nil {
		return err
	}
	return r.st.KVPut(reserveKey(), new(big.Int).Add(reserve, amount))
}

// Reserve returns the current shared reserve balance.
func (r *Registry) Reserve() *big.Int {
	r.reserveMu.Lock()
	defer r.reserveMu.Unlock()
	reserve, err := r.loadReserve()
	if err != nil {
		return big.NewInt(0)
	}
	return reserve
}

func (r *Registry) loadReserve() (*big.Int, error) {
	reserve := new(big.Int)
	found, err := r.st.KVGet(reserveKey(), reserve)
	if err != nil {
		return nil, err
	}
	if !found {
		return big.NewInt(0), nil
	}
	return reserve, nil
}

func (r *Registry) debitReserve(amount, floor *big.Int) error {
	r.reserveMu.Lock()
	defer r.reserveMu.Unlock()
	reserve, err := r.loadReserve()
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(reserve, amount)
	if remaining.Cmp(floor) < 0 {
		return ErrReserveBelowBuffer
	}
	return r.st.KVPut(reserveKey(), remaining)
}

// --- Pause ---

// IsPaused implements the pause view over registry state.
func (r *Registry) IsPaused(module string) bool {
	if module != moduleName {
		return false
	}
	paused := false
	if found, err := r.st.KVGet(pausedKey(), &paused); err != nil || !found {
		return false
	}
	return paused
}

// AdminPause freezes deployments and bot forwarding.
func (r *Registry) AdminPause(caller [20]byte) error {
	return record("admin_pause", r.setPaused(caller, true))
}

// AdminResume lifts the registry pause.
func (r *Registry) AdminResume(caller [20]byte) error {
	return record("admin_resume", r.setPaused(caller, false))
}

func (r *Registry) setPaused(caller [20]byte, paused bool) error {
	if caller != r.params.Admin {
		return ErrAdminOnly
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.IsPaused(moduleName) == paused {
		return ErrNoChange
	}
	if err := r.st.KVPut(pausedKey(), paused); err != nil {
		return err
	}
	if paused {
		r.emit(events.MarketplacePaused{Caller: caller})
	} else {
		r.emit(events.MarketplaceResumed{Caller: caller})
	}
	return nil
}

// --- Deployment ---

// DeployCampaign allocates the next campaign id and spawns its ledger. The
// verification bot uses the no-fee channel and must attach nothing; an
// advertiser must attach exactly the deployment fee — underpayment fails and
// overpayment is rejected outright so the call can never be confused with a
// replenishment.
func (r *Registry) DeployCampaign(requester, advertiser [20]byte, attached *big.Int) (uint64, [20]byte, error) {
	id, addr, err := r.deployCampaign(requester, advertiser, attached)
	return id, addr, record("deploy_campaign", err)
}

func (r *Registry) deployCampaign(requester, advertiser [20]byte, attached *big.Int) (uint64, [20]byte, error) {
	if err := nativecommon.Guard(r, moduleName); err != nil {
		return 0, [20]byte{}, err
	}
	value := big.NewInt(0)
	if attached != nil {
		value = attached
	}
	if requester == r.params.Bot {
		if value.Sign() != 0 {
			return 0, [20]byte{}, ErrWrongChannel
		}
	} else {
		if requester != advertiser {
			return 0, [20]byte{}, ErrDeployerMismatch
		}
		switch value.Cmp(r.params.DeploymentFee) {
		case -1:
			return 0, [20]byte{}, ErrInsufficientFunds
		case 1:
			return 0, [20]byte{}, ErrWrongChannel
		}
		if err := r.CreditReserve(value); err != nil {
			return 0, [20]byte{}, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.nextCampaignID()
	if err != nil {
		return 0, [20]byte{}, err
	}
	if _, err := r.engine.CreateCampaign(id, advertiser, r.params.Address); err != nil {
		return 0, [20]byte{}, err
	}
	addr := LedgerAddress(r.params.Address, id)
	if err := r.st.KVPut(campaignAddrKey(id), addr); err != nil {
		return 0, [20]byte{}, err
	}
	r.emit(events.CampaignCreated{CampaignID: id, Advertiser: advertiser, LedgerAddress: addr})
	return id, addr, nil
}

func (r *Registry) nextCampaignID() (uint64, error) {
	var next uint64
	if _, err := r.st.KVGet(nextCampaignIDKey(), &next); err != nil {
		return 0, err
	}
	next++
	if err := r.st.KVPut(nextCampaignIDKey(), next); err != nil {
		return 0, err
	}
	return next, nil
}

// RemoveCampaign forwards the advertiser's dissolve command and clears the
// address record once the ledger is gone.
func (r *Registry) RemoveCampaign(caller [20]byte, campaignID uint64) error {
	err := func() error {
		if err := r.engine.RemoveCampaign(campaignID, caller); err != nil {
			return err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.st.KVDelete(campaignAddrKey(campaignID))
	}()
	return record("remove_campaign", err)
}

// CampaignAddress resolves the ledger address recorded at deployment.
func (r *Registry) CampaignAddress(id uint64) ([20]byte, bool) {
	var addr [20]byte
	found, err := r.st.KVGet(campaignAddrKey(id), &addr)
	if err != nil || !found {
		return [20]byte{}, false
	}
	return addr, true
}

// LedgerAddress derives the deterministic campaign ledger address from the
// registry identity and the campaign id.
func LedgerAddress(registry [20]byte, id uint64) [20]byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	digest := ethcrypto.Keccak256(registry[:], buf)
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

// --- Bot forwarding ---

// SubmitBotUserAction is the registry hop of the bot-verified action channel:
// the sender must be the verification bot; the target engine then enforces
// the op-code class against the forwarded provenance.
func (r *Registry) SubmitBotUserAction(caller [20]byte, campaignID, affiliateID uint64, op campaign.OpCode, premium bool) error {
	err := func() error {
		if err := nativecommon.Guard(r, moduleName); err != nil {
			return err
		}
		if caller != r.params.Bot {
			return ErrUnauthorizedVerifier
		}
		return r.engine.RecordUserAction(campaignID, caller, true, affiliateID, op, premium)
	}()
	return record("bot_user_action", err)
}

// --- Admin surface ---

// AdminModifyFeePercentage forwards a fee change to the target campaign.
func (r *Registry) AdminModifyFeePercentage(caller [20]byte, campaignID uint64, bps uint32) error {
	err := func() error {
		if caller != r.params.Admin {
			return ErrAdminOnly
		}
		return r.engine.SetFeeBps(campaignID, bps)
	}()
	return record("admin_modify_fee", err)
}

// AdminStopCampaign freezes the target campaign.
func (r *Registry) AdminStopCampaign(caller [20]byte, campaignID uint64) error {
	err := func() error {
		if caller != r.params.Admin {
			return ErrAdminOnly
		}
		return r.engine.Stop(campaignID)
	}()
	return record("admin_stop_campaign", err)
}

// AdminResumeCampaign lifts a campaign freeze.
func (r *Registry) AdminResumeCampaign(caller [20]byte, campaignID uint64) error {
	err := func() error {
		if caller != r.params.Admin {
			return ErrAdminOnly
		}
		return r.engine.Resume(campaignID)
	}()
	return record("admin_resume_campaign", err)
}

// AdminSeizeCampaignBalance confiscates the campaign balance into the
// reserve. Used for abuse and compliance takedowns.
func (r *Registry) AdminSeizeCampaignBalance(caller [20]byte, campaignID uint64) error {
	err := func() error {
		if caller != r.params.Admin {
			return ErrAdminOnly
		}
		return r.engine.Seize(campaignID)
	}()
	return record("admin_seize_campaign", err)
}

// AdminWithdraw pays out part of the reserve, splitting the amount evenly
// across recipients with the final recipient absorbing the integer
// remainder. The withdrawal is refused when it would leave the reserve below
// the minimum buffer, regardless of nominal availability.
func (r *Registry) AdminWithdraw(caller [20]byte, amount *big.Int, recipients [][20]byte) error {
	return record("admin_withdraw", r.adminWithdraw(caller, amount, recipients))
}

func (r *Registry) adminWithdraw(caller [20]byte, amount *big.Int, recipients [][20]byte) error {
	if caller != r.params.Admin {
		return ErrAdminOnly
	}
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInsufficientFunds
	}
	if r.sender == nil {
		return ErrNoRecipients
	}
	if err := r.debitReserve(amount, r.params.MinReserveBuffer); err != nil {
		return err
	}
	shares := splitEvenly(amount, len(recipients))
	for i, share := range shares {
		if share.Sign() == 0 {
			continue
		}
		if err := r.sender.Pay(recipients[i], campaign.PaymentNative, share); err != nil {
			// Restore the shares that never left so the reserve keeps
			// matching the value actually disbursed.
			unpaid := big.NewInt(0)
			for _, rest := range shares[i:] {
				unpaid.Add(unpaid, rest)
			}
			if restoreErr := r.CreditReserve(unpaid); restoreErr != nil {
				return fmt.Errorf("restore reserve after failed payout: %v: %w", restoreErr, err)
			}
			return err
		}
	}
	r.emit(events.ReserveWithdrawn{Amount: new(big.Int).Set(amount), Recipients: len(recipients), Remaining: r.Reserve()})
	return nil
}

// AdminCompensateBouncedPayment restores an affiliate's accrued earnings out
// of the reserve after a failed asynchronous stable-asset payout was returned
// to the registry, so the funds are not stranded.
func (r *Registry) AdminCompensateBouncedPayment(caller [20]byte, campaignID, affiliateID uint64, amount *big.Int) error {
	err := func() error {
		if caller != r.params.Admin {
			return ErrAdminOnly
		}
		if amount == nil || amount.Sign() <= 0 {
			return ErrInsufficientFunds
		}
		if err := r.debitReserve(amount, big.NewInt(0)); err != nil {
			return err
		}
		if err := r.engine.CreditAffiliate(campaignID, affiliateID, amount); err != nil {
			// A rejected credit (typoed campaign or affiliate id) must not
			// strand the debited amount outside both ledgers.
			if restoreErr := r.CreditReserve(amount); restoreErr != nil {
				return fmt.Errorf("restore reserve after failed compensation: %v: %w", restoreErr, err)
			}
			return err
		}
		return nil
	}()
	return record("admin_compensate_bounced", err)
}

// splitEvenly divides amount into count integer shares; the last share
// absorbs the division remainder so no minimal unit is lost.
func splitEvenly(amount *big.Int, count int) []*big.Int {
	shares := make([]*big.Int, count)
	quotient := new(big.Int).Div(amount, big.NewInt(int64(count)))
	distributed := big.NewInt(0)
	for i := 0; i < count-1; i++ {
		shares[i] = new(big.Int).Set(quotient)
		distributed.Add(distributed, quotient)
	}
	shares[count-1] = new(big.Int).Sub(amount, distributed)
	return shares
}
