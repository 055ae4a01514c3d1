package marketplace_test

import (
	"errors"
	"math/big"
	"testing"

	"admarket/core/events"
	"admarket/native/campaign"
	nativecommon "admarket/native/common"
	"admarket/native/marketplace"
	"admarket/state"
	"admarket/storage"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) {
	c.events = append(c.events, e)
}

func (c *capturingEmitter) ofType(eventType string) []events.Event {
	var matched []events.Event
	for _, e := range c.events {
		if e.EventType() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type memoryBank struct {
	payments map[[20]byte]*big.Int
}

func newMemoryBank() *memoryBank {
	return &memoryBank{payments: make(map[[20]byte]*big.Int)}
}

func (b *memoryBank) Pay(to [20]byte, method campaign.PaymentMethod, amount *big.Int) error {
	total, ok := b.payments[to]
	if !ok {
		total = big.NewInt(0)
	}
	b.payments[to] = new(big.Int).Add(total, amount)
	return nil
}

func (b *memoryBank) paidTo(addr [20]byte) *big.Int {
	if total, ok := b.payments[addr]; ok {
		return total
	}
	return big.NewInt(0)
}

func addr(last byte) [20]byte {
	var a [20]byte
	a[19] = last
	return a
}

var (
	admin        = addr(0x01)
	bot          = addr(0x02)
	registryID   = addr(0x03)
	advertiser   = addr(0xA1)
	affiliate    = addr(0xC3)
	treasury1    = addr(0xE1)
	treasury2    = addr(0xE2)
	treasury3    = addr(0xE3)
	unauthorized = addr(0xF0)
)

func newTestRegistry(t *testing.T) (*marketplace.Registry, *memoryBank, *capturingEmitter) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)
	engine := campaign.NewEngine()
	engine.SetState(manager)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)
	registry := marketplace.NewRegistry(manager, engine, marketplace.Params{
		Address:          registryID,
		Admin:            admin,
		Bot:              bot,
		DeploymentFee:    big.NewInt(50),
		MinReserveBuffer: big.NewInt(10),
	})
	bank := newMemoryBank()
	registry.SetSender(bank)
	registry.SetEmitter(emitter)
	return registry, bank, emitter
}

func testConfig() *campaign.Config {
	return &campaign.Config{
		RegularCosts: map[campaign.OpCode]*big.Int{1: big.NewInt(100)},
		PremiumCosts: map[campaign.OpCode]*big.Int{1: big.NewInt(1500)},
		OpenCampaign: true,
		Payment:      campaign.PaymentNative,
		FeeBps:       200,
	}
}

func deployViaBot(t *testing.T, registry *marketplace.Registry) uint64 {
	t.Helper()
	id, _, err := registry.DeployCampaign(bot, advertiser, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	return id
}

func TestDeployViaBotChannel(t *testing.T) {
	registry, _, emitter := newTestRegistry(t)
	id, ledgerAddr, err := registry.DeployCampaign(bot, advertiser, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if id != 1 {
		t.Fatalf("first campaign id: got %d", id)
	}
	if registry.Reserve().Sign() != 0 {
		t.Fatalf("reserve after free deployment: got %s", registry.Reserve())
	}
	resolved, ok := registry.CampaignAddress(id)
	if !ok || resolved != ledgerAddr {
		t.Fatalf("address lookup: got %x ok=%v want %x", resolved, ok, ledgerAddr)
	}
	if ledgerAddr != marketplace.LedgerAddress(registryID, id) {
		t.Fatal("ledger address not derived from registry identity and id")
	}
	if got := len(emitter.ofType(events.TypeCampaignCreated)); got != 1 {
		t.Fatalf("created events: got %d", got)
	}
	// Ids are sequential across channels.
	if next := deployViaBot(t, registry); next != 2 {
		t.Fatalf("second campaign id: got %d", next)
	}
}

func TestDeployBotChannelRejectsAttachedValue(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if _, _, err := registry.DeployCampaign(bot, advertiser, big.NewInt(1)); !errors.Is(err, marketplace.ErrWrongChannel) {
		t.Fatalf("bot deploy with value: got %v", err)
	}
}

func TestDeployAdvertiserChannelFee(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if _, _, err := registry.DeployCampaign(advertiser, advertiser, big.NewInt(49)); !errors.Is(err, marketplace.ErrInsufficientFunds) {
		t.Fatalf("underpaid deploy: got %v", err)
	}
	if _, _, err := registry.DeployCampaign(advertiser, advertiser, big.NewInt(51)); !errors.Is(err, marketplace.ErrWrongChannel) {
		t.Fatalf("overpaid deploy: got %v", err)
	}
	if _, _, err := registry.DeployCampaign(unauthorized, advertiser, big.NewInt(50)); !errors.Is(err, marketplace.ErrDeployerMismatch) {
		t.Fatalf("deploy for someone else: got %v", err)
	}
	id, _, err := registry.DeployCampaign(advertiser, advertiser, big.NewInt(50))
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if id != 1 {
		t.Fatalf("campaign id: got %d", id)
	}
	if registry.Reserve().Int64() != 50 {
		t.Fatalf("reserve: got %s want 50", registry.Reserve())
	}
}

func TestPauseBlocksDeploymentAndForwarding(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	id := deployViaBot(t, registry)

	if err := registry.AdminPause(unauthorized); !errors.Is(err, marketplace.ErrAdminOnly) {
		t.Fatalf("pause by non-admin: got %v", err)
	}
	if err := registry.AdminPause(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := registry.AdminPause(admin); !errors.Is(err, marketplace.ErrNoChange) {
		t.Fatalf("double pause: got %v", err)
	}
	if _, _, err := registry.DeployCampaign(bot, advertiser, nil); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("deploy while paused: got %v", err)
	}
	if err := registry.SubmitBotUserAction(bot, id, 1, 1, false); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("forward while paused: got %v", err)
	}
	if err := registry.AdminResume(admin); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, _, err := registry.DeployCampaign(bot, advertiser, nil); err != nil {
		t.Fatalf("deploy after resume: %v", err)
	}
}

func TestBotForwardedAction(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	engine := registry.Engine()
	id := deployViaBot(t, registry)
	if err := engine.SetDetails(id, advertiser, testConfig()); err != nil {
		t.Fatalf("set details: %v", err)
	}
	if err := engine.Replenish(id, advertiser, big.NewInt(1000)); err != nil {
		t.Fatalf("replenish: %v", err)
	}
	account, err := engine.RegisterAffiliate(id, affiliate)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.SubmitBotUserAction(unauthorized, id, account.ID, 1, false); !errors.Is(err, marketplace.ErrUnauthorizedVerifier) {
		t.Fatalf("forward by non-bot: got %v", err)
	}
	if err := registry.SubmitBotUserAction(bot, id, account.ID, 1, false); err != nil {
		t.Fatalf("forward: %v", err)
	}
	account, _ = engine.GetAffiliate(id, account.ID)
	if account.AccruedEarnings.Int64() != 100 {
		t.Fatalf("accrued after forwarded action: got %s", account.AccruedEarnings)
	}
}

func TestWithdrawalFeeLandsInReserve(t *testing.T) {
	registry, bank, _ := newTestRegistry(t)
	engine := registry.Engine()
	id := deployViaBot(t, registry)
	if err := engine.SetDetails(id, advertiser, testConfig()); err != nil {
		t.Fatalf("set details: %v", err)
	}
	if err := engine.Replenish(id, advertiser, big.NewInt(1000)); err != nil {
		t.Fatalf("replenish: %v", err)
	}
	account, err := engine.RegisterAffiliate(id, affiliate)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.SubmitBotUserAction(bot, id, account.ID, 1, false); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if err := engine.AffiliateWithdraw(id, affiliate, account.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := bank.paidTo(affiliate); got.Int64() != 98 {
		t.Fatalf("net payout: got %s want 98", got)
	}
	if registry.Reserve().Int64() != 2 {
		t.Fatalf("reserve: got %s want 2", registry.Reserve())
	}
}

func TestAdminWithdrawSplitsEvenly(t *testing.T) {
	registry, bank, emitter := newTestRegistry(t)
	if err := registry.CreditReserve(big.NewInt(200)); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}

	recipients := [][20]byte{treasury1, treasury2, treasury3}
	if err := registry.AdminWithdraw(unauthorized, big.NewInt(100), recipients); !errors.Is(err, marketplace.ErrAdminOnly) {
		t.Fatalf("withdraw by non-admin: got %v", err)
	}
	if err := registry.AdminWithdraw(admin, big.NewInt(100), nil); !errors.Is(err, marketplace.ErrNoRecipients) {
		t.Fatalf("withdraw without recipients: got %v", err)
	}
	if err := registry.AdminWithdraw(admin, big.NewInt(100), recipients); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// 100 over three recipients: 33 + 33 + 34, the tail takes the remainder.
	if got := bank.paidTo(treasury1); got.Int64() != 33 {
		t.Fatalf("first share: got %s", got)
	}
	if got := bank.paidTo(treasury2); got.Int64() != 33 {
		t.Fatalf("second share: got %s", got)
	}
	if got := bank.paidTo(treasury3); got.Int64() != 34 {
		t.Fatalf("last share: got %s", got)
	}
	if registry.Reserve().Int64() != 100 {
		t.Fatalf("reserve remaining: got %s", registry.Reserve())
	}
	if got := len(emitter.ofType(events.TypeReserveWithdrawn)); got != 1 {
		t.Fatalf("withdrawal events: got %d", got)
	}
}

func TestAdminWithdrawKeepsBuffer(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if err := registry.CreditReserve(big.NewInt(100)); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}
	// Buffer is 10: taking 91 would leave 9.
	if err := registry.AdminWithdraw(admin, big.NewInt(91), [][20]byte{treasury1}); !errors.Is(err, marketplace.ErrReserveBelowBuffer) {
		t.Fatalf("withdraw into buffer: got %v", err)
	}
	if err := registry.AdminWithdraw(admin, big.NewInt(90), [][20]byte{treasury1}); err != nil {
		t.Fatalf("withdraw to buffer edge: %v", err)
	}
	if registry.Reserve().Int64() != 10 {
		t.Fatalf("reserve: got %s want 10", registry.Reserve())
	}
}

func TestAdminFeeChange(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	engine := registry.Engine()
	id := deployViaBot(t, registry)
	if err := engine.SetDetails(id, advertiser, testConfig()); err != nil {
		t.Fatalf("set details: %v", err)
	}
	if err := registry.AdminModifyFeePercentage(unauthorized, id, 300); !errors.Is(err, marketplace.ErrAdminOnly) {
		t.Fatalf("fee change by non-admin: got %v", err)
	}
	if err := registry.AdminModifyFeePercentage(admin, id, 200); !errors.Is(err, campaign.ErrNoChange) {
		t.Fatalf("unchanged fee: got %v", err)
	}
	if err := registry.AdminModifyFeePercentage(admin, id, 300); err != nil {
		t.Fatalf("fee change: %v", err)
	}
	ledger, _ := engine.GetLedger(id)
	if ledger.Config.FeeBps != 300 {
		t.Fatalf("fee bps: got %d", ledger.Config.FeeBps)
	}
}

func TestAdminStopResumeSeize(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	engine := registry.Engine()
	id := deployViaBot(t, registry)
	if err := engine.SetDetails(id, advertiser, testConfig()); err != nil {
		t.Fatalf("set details: %v", err)
	}
	if err := engine.Replenish(id, advertiser, big.NewInt(500)); err != nil {
		t.Fatalf("replenish: %v", err)
	}

	if err := registry.AdminStopCampaign(unauthorized, id); !errors.Is(err, marketplace.ErrAdminOnly) {
		t.Fatalf("stop by non-admin: got %v", err)
	}
	if err := registry.AdminStopCampaign(admin, id); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := engine.Replenish(id, advertiser, big.NewInt(100)); !errors.Is(err, campaign.ErrContractStopped) {
		t.Fatalf("replenish while stopped: got %v", err)
	}
	if err := registry.AdminSeizeCampaignBalance(admin, id); err != nil {
		t.Fatalf("seize: %v", err)
	}
	if registry.Reserve().Int64() != 500 {
		t.Fatalf("reserve after seize: got %s", registry.Reserve())
	}
	if err := registry.AdminResumeCampaign(admin, id); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := engine.Replenish(id, advertiser, big.NewInt(100)); err != nil {
		t.Fatalf("replenish after resume: %v", err)
	}
}

// faultyBank fails payments to one address to exercise mid-loop payout
// failures.
type faultyBank struct {
	*memoryBank
	failOn [20]byte
}

func (b *faultyBank) Pay(to [20]byte, method campaign.PaymentMethod, amount *big.Int) error {
	if to == b.failOn {
		return errors.New("payment rejected")
	}
	return b.memoryBank.Pay(to, method, amount)
}

func TestAdminWithdrawRestoresUnpaidShares(t *testing.T) {
	registry, bank, _ := newTestRegistry(t)
	registry.SetSender(&faultyBank{memoryBank: bank, failOn: treasury2})
	if err := registry.CreditReserve(big.NewInt(200)); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}

	err := registry.AdminWithdraw(admin, big.NewInt(90), [][20]byte{treasury1, treasury2, treasury3})
	if err == nil {
		t.Fatal("withdraw with failing recipient succeeded")
	}
	// One 30-unit share left before the failure; the two that never left
	// must be back in the reserve.
	if got := bank.paidTo(treasury1); got.Int64() != 30 {
		t.Fatalf("first share: got %s want 30", got)
	}
	if got := bank.paidTo(treasury3); got.Sign() != 0 {
		t.Fatalf("share past the failure was paid: %s", got)
	}
	if registry.Reserve().Int64() != 170 {
		t.Fatalf("reserve: got %s want 170", registry.Reserve())
	}
}

func TestFailedCompensationLeavesReserveIntact(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if err := registry.CreditReserve(big.NewInt(1000)); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}

	if err := registry.AdminCompensateBouncedPayment(admin, 42, 1, big.NewInt(100)); !errors.Is(err, campaign.ErrCampaignNotFound) {
		t.Fatalf("compensate unknown campaign: got %v", err)
	}
	if registry.Reserve().Int64() != 1000 {
		t.Fatalf("reserve after unknown campaign: got %s want 1000", registry.Reserve())
	}

	id := deployViaBot(t, registry)
	if err := registry.Engine().SetDetails(id, advertiser, testConfig()); err != nil {
		t.Fatalf("set details: %v", err)
	}
	if err := registry.AdminCompensateBouncedPayment(admin, id, 9, big.NewInt(100)); !errors.Is(err, campaign.ErrAffiliateNotFound) {
		t.Fatalf("compensate unknown affiliate: got %v", err)
	}
	if registry.Reserve().Int64() != 1000 {
		t.Fatalf("reserve after unknown affiliate: got %s want 1000", registry.Reserve())
	}
}

func TestRemoveCampaignClearsAddressRecord(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	id := deployViaBot(t, registry)
	if err := registry.Engine().SetDetails(id, advertiser, testConfig()); err != nil {
		t.Fatalf("set details: %v", err)
	}
	if err := registry.RemoveCampaign(unauthorized, id); !errors.Is(err, campaign.ErrOnlyAdvertiser) {
		t.Fatalf("remove by outsider: got %v", err)
	}
	if err := registry.RemoveCampaign(advertiser, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := registry.CampaignAddress(id); ok {
		t.Fatal("address record survived campaign removal")
	}
	if _, ok := registry.Engine().GetLedger(id); ok {
		t.Fatal("ledger survived campaign removal")
	}
}

func TestCompensateBouncedPayment(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	engine := registry.Engine()
	id := deployViaBot(t, registry)
	if err := engine.SetDetails(id, advertiser, testConfig()); err != nil {
		t.Fatalf("set details: %v", err)
	}
	account, err := engine.RegisterAffiliate(id, affiliate)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.AdminCompensateBouncedPayment(admin, id, account.ID, big.NewInt(40)); !errors.Is(err, marketplace.ErrReserveBelowBuffer) {
		t.Fatalf("compensate from empty reserve: got %v", err)
	}
	if err := registry.CreditReserve(big.NewInt(100)); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}
	if err := registry.AdminCompensateBouncedPayment(unauthorized, id, account.ID, big.NewInt(40)); !errors.Is(err, marketplace.ErrAdminOnly) {
		t.Fatalf("compensate by non-admin: got %v", err)
	}
	if err := registry.AdminCompensateBouncedPayment(admin, id, account.ID, big.NewInt(40)); err != nil {
		t.Fatalf("compensate: %v", err)
	}
	if registry.Reserve().Int64() != 60 {
		t.Fatalf("reserve: got %s want 60", registry.Reserve())
	}
	account, _ = engine.GetAffiliate(id, account.ID)
	if account.AccruedEarnings.Int64() != 40 {
		t.Fatalf("accrued compensation: got %s", account.AccruedEarnings)
	}
}
