package farm

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/mailgun/holster/v4/clock"
	"github.com/shopspring/decimal"

	"github.com/umi-digital/umi-farmd/internal/lib/bank"
	"github.com/umi-digital/umi-farmd/internal/lib/misc"
)

// presetBonusTiers seeds bonus percentage points for booster categories 1-50,
// one tier per decade. Owner configuration overrides any of them.
var presetBonusTiers = [...]int64{10, 20, 40, 60, 80}

type boostedAccount struct {
	balance   decimal.Decimal
	stakeDate int64
	holdings  map[uint64]uint64
	ids       []uint64 // categories in first-deposit order
}

// BoostedFarm is a single-position accrual ledger: one stake token whose
// deposits accumulate into one balance per account, with the base APY raised
// by deposited booster categories. Principal moves in the stake token,
// funding and interest in the reward token (the two may be the same backend).
type BoostedFarm struct {
	logger  *slog.Logger
	stake   bank.Token
	reward  bank.Token
	nft     bank.NFT
	custody string
	owner   string

	mu           sync.RWMutex
	paused       bool
	baseAPY      int64
	bonuses      map[uint64]int64
	totalStaked  decimal.Decimal
	totalFunding decimal.Decimal
	funding      map[string]decimal.Decimal
	accounts     map[string]*boostedAccount
}

func NewBoostedFarm(logger *slog.Logger, stake, reward bank.Token, nft bank.NFT, owner, custody string) *BoostedFarm {
	f := &BoostedFarm{
		logger:       logger,
		stake:        stake,
		reward:       reward,
		nft:          nft,
		owner:        owner,
		custody:      custody,
		baseAPY:      DefaultAPY,
		bonuses:      map[uint64]int64{},
		totalStaked:  decimal.Zero,
		totalFunding: decimal.Zero,
		funding:      map[string]decimal.Decimal{},
		accounts:     map[string]*boostedAccount{},
	}
	for id := uint64(1); id <= 50; id++ {
		f.bonuses[id] = presetBonusTiers[(id-1)/10]
	}
	return f
}

// Fund moves amount of the reward token from caller into the reserve.
func (f *BoostedFarm) Fund(caller string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reward.Transfer(caller, f.custody, amount); err != nil {
		return err
	}
	f.totalFunding = f.totalFunding.Add(amount)
	f.funding[caller] = f.fundingLocked(caller).Add(amount)
	misc.Debugf(f.logger, "boosted farm funded amount:%s from:%s", amount, caller)
	return nil
}

// SetBaseAPY configures the rate applied to every account with a nonzero
// balance, before booster bonuses. Owner only.
func (f *BoostedFarm) SetBaseAPY(caller string, percent int64) error {
	if caller != f.owner {
		return ErrNotOwner
	}
	if percent <= 0 {
		return ErrAPYNotPositive
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseAPY = percent
	misc.Infof(f.logger, "base apy set to %d%%", percent)
	return nil
}

func (f *BoostedFarm) BaseAPY() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.baseAPY
}

// SetBonus configures the percentage points one deposited unit of a booster
// category adds. A nonzero bonus is what puts a category in the whitelist.
func (f *BoostedFarm) SetBonus(caller string, category uint64, percent int64) error {
	if caller != f.owner {
		return ErrNotOwner
	}
	if category == 0 || percent <= 0 {
		return ErrBadBonus
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bonuses[category] = percent
	misc.Infof(f.logger, "booster bonus for category:%d set to %d points", category, percent)
	return nil
}

func (f *BoostedFarm) Bonus(category uint64) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bonuses[category]
}

// InWhitelist reports whether a category carries a nonzero bonus. The
// whitelist is derived from the bonus table, there is no second list to
// drift from it.
func (f *BoostedFarm) InWhitelist(category uint64) bool {
	return f.Bonus(category) > 0
}

// TotalAPYOf is zero for an empty balance no matter what boosters are held;
// otherwise the base APY plus bonus*quantity over every held category.
func (f *BoostedFarm) TotalAPYOf(account string) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.totalAPYLocked(f.accounts[account])
}

func (f *BoostedFarm) totalAPYLocked(acct *boostedAccount) int64 {
	if acct == nil || !acct.balance.IsPositive() {
		return 0
	}
	total := f.baseAPY
	for _, id := range acct.ids {
		total += f.bonuses[id] * int64(acct.holdings[id])
	}
	return total
}

// Stake adds amount to the caller's single balance. Interest accrued on the
// existing balance is settled first: paid straight to the caller's reward
// holdings when the reserve covers it (never compounded into the principal),
// silently skipped when it cannot.
func (f *BoostedFarm) Stake(caller string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return ErrPaused
	}
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}
	acct := f.account(caller)
	now := clock.Now().Unix()

	interest := decimal.Zero
	if acct.balance.IsPositive() {
		owed := Interest(acct.balance, f.totalAPYLocked(acct), now-acct.stakeDate)
		if owed.IsPositive() && f.totalFunding.GreaterThanOrEqual(owed) {
			interest = owed
		}
	}
	if err := f.stake.Transfer(caller, f.custody, amount); err != nil {
		return err
	}
	if interest.IsPositive() {
		if err := f.reward.Transfer(f.custody, caller, interest); err != nil {
			// undo the deposit so the whole call is a no-op
			_ = f.stake.Transfer(f.custody, caller, amount)
			return err
		}
		f.totalFunding = f.totalFunding.Sub(interest)
	}
	acct.balance = acct.balance.Add(amount)
	acct.stakeDate = now
	f.totalStaked = f.totalStaked.Add(amount)
	misc.Infof(f.logger, "boosted stake account:%s amount:%s interest:%s", caller, amount, interest)
	return nil
}

// Unstake closes the caller's whole balance, paying principal in the stake
// token and accrued interest in the reward token when the reserve covers it.
func (f *BoostedFarm) Unstake(caller string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return decimal.Zero, ErrPaused
	}
	acct := f.accounts[caller]
	if acct == nil || !acct.balance.IsPositive() {
		return decimal.Zero, ErrInsufficientStake
	}
	now := clock.Now().Unix()
	interest := Interest(acct.balance, f.totalAPYLocked(acct), now-acct.stakeDate)
	if !interest.IsPositive() || f.totalFunding.LessThan(interest) {
		if interest.IsPositive() {
			misc.Warnf(f.logger, "boosted reserve short, paying principal only (owed interest:%s, reserve:%s)",
				interest, f.totalFunding)
		}
		interest = decimal.Zero
	}
	principal := acct.balance
	if interest.IsPositive() {
		if err := f.reward.Transfer(f.custody, caller, interest); err != nil {
			return decimal.Zero, err
		}
	}
	if err := f.stake.Transfer(f.custody, caller, principal); err != nil {
		if interest.IsPositive() {
			_ = f.reward.Transfer(caller, f.custody, interest)
		}
		return decimal.Zero, err
	}
	f.totalFunding = f.totalFunding.Sub(interest)
	f.totalStaked = f.totalStaked.Sub(principal)
	acct.balance = decimal.Zero
	acct.stakeDate = 0
	misc.Infof(f.logger, "boosted unstake account:%s principal:%s interest:%s", caller, principal, interest)
	return principal.Add(interest), nil
}

// Claim pays accrued interest only. A reserve that cannot cover it fails the
// whole call, matching the multi-position ledger's claim policy.
func (f *BoostedFarm) Claim(caller string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return decimal.Zero, ErrPaused
	}
	acct := f.accounts[caller]
	if acct == nil || !acct.balance.IsPositive() {
		return decimal.Zero, ErrEmptyBalance
	}
	now := clock.Now().Unix()
	interest := Interest(acct.balance, f.totalAPYLocked(acct), now-acct.stakeDate)
	if f.totalFunding.LessThan(interest) {
		return decimal.Zero, ErrReserveTooLow
	}
	if err := f.reward.Transfer(f.custody, caller, interest); err != nil {
		return decimal.Zero, err
	}
	f.totalFunding = f.totalFunding.Sub(interest)
	acct.stakeDate = now
	misc.Infof(f.logger, "boosted claim account:%s interest:%s", caller, interest)
	return interest, nil
}

// StakeNFT deposits quantity of one whitelisted booster category. The
// category stays on the account's enumeration list even if later drained to
// zero by UnstakeNFT (BatchUnstakeNFTs removes it; see that method).
func (f *BoostedFarm) StakeNFT(caller string, category uint64, quantity uint64) error {
	return f.BatchStakeNFTs(caller, []uint64{category}, []uint64{quantity})
}

// BatchStakeNFTs deposits several categories in one transfer.
func (f *BoostedFarm) BatchStakeNFTs(caller string, categories []uint64, quantities []uint64) error {
	if len(categories) != len(quantities) {
		return ErrBatchMismatch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return ErrPaused
	}
	for i, id := range categories {
		if f.bonuses[id] <= 0 {
			return ErrNotWhitelisted
		}
		if quantities[i] == 0 {
			return ErrAmountNotPositive
		}
	}
	if err := f.nft.TransferBatch(caller, caller, f.custody, categories, quantities); err != nil {
		return err
	}
	acct := f.account(caller)
	for i, id := range categories {
		acct.holdings[id] += quantities[i]
		if !slices.Contains(acct.ids, id) {
			acct.ids = append(acct.ids, id)
		}
	}
	misc.Infof(f.logger, "boosters deposited account:%s categories:%v quantities:%v", caller, categories, quantities)
	return nil
}

// UnstakeNFT returns quantity of one category to the caller. The category is
// left on the enumeration list even when its deposited quantity hits zero.
func (f *BoostedFarm) UnstakeNFT(caller string, category uint64, quantity uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return ErrPaused
	}
	if f.bonuses[category] <= 0 {
		return ErrNotWhitelisted
	}
	if quantity == 0 {
		return ErrAmountNotPositive
	}
	acct := f.accounts[caller]
	if acct == nil || acct.holdings[category] < quantity {
		return ErrInsufficientStake
	}
	if err := f.nft.TransferBatch(f.custody, f.custody, caller, []uint64{category}, []uint64{quantity}); err != nil {
		return err
	}
	acct.holdings[category] -= quantity
	misc.Infof(f.logger, "booster returned account:%s category:%d quantity:%d", caller, category, quantity)
	return nil
}

// BatchUnstakeNFTs returns several categories in one transfer. Unlike the
// single-category path, categories whose deposited quantity reaches zero are
// removed from the enumeration list. The asymmetry is deliberate: it matches
// the behavior downstream consumers already depend on.
func (f *BoostedFarm) BatchUnstakeNFTs(caller string, categories []uint64, quantities []uint64) error {
	if len(categories) != len(quantities) {
		return ErrBatchMismatch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return ErrPaused
	}
	acct := f.accounts[caller]
	for i, id := range categories {
		if f.bonuses[id] <= 0 {
			return ErrNotWhitelisted
		}
		if quantities[i] == 0 {
			return ErrAmountNotPositive
		}
		if acct == nil || acct.holdings[id] < quantities[i] {
			return ErrInsufficientStake
		}
	}
	if err := f.nft.TransferBatch(f.custody, f.custody, caller, categories, quantities); err != nil {
		return err
	}
	for i, id := range categories {
		acct.holdings[id] -= quantities[i]
		if acct.holdings[id] == 0 {
			delete(acct.holdings, id)
			acct.ids = slices.DeleteFunc(acct.ids, func(v uint64) bool { return v == id })
		}
	}
	misc.Infof(f.logger, "boosters returned account:%s categories:%v quantities:%v", caller, categories, quantities)
	return nil
}

func (f *BoostedFarm) Pause(caller string) error {
	return f.setPaused(caller, true)
}

func (f *BoostedFarm) Unpause(caller string) error {
	return f.setPaused(caller, false)
}

func (f *BoostedFarm) setPaused(caller string, paused bool) error {
	if caller != f.owner {
		return ErrNotOwner
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = paused
	misc.Infof(f.logger, "boosted farm paused:%v", paused)
	return nil
}

func (f *BoostedFarm) Paused() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.paused
}

func (f *BoostedFarm) Balance(account string) decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if acct := f.accounts[account]; acct != nil {
		return acct.balance
	}
	return decimal.Zero
}

func (f *BoostedFarm) StakeDate(account string) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if acct := f.accounts[account]; acct != nil {
		return acct.stakeDate
	}
	return 0
}

func (f *BoostedFarm) TotalStaked() decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.totalStaked
}

func (f *BoostedFarm) TotalFunding() decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.totalFunding
}

func (f *BoostedFarm) FundingBy(account string) decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fundingLocked(account)
}

// NFTBalance is the quantity the account has deposited into the farm, not a
// wallet balance.
func (f *BoostedFarm) NFTBalance(account string, category uint64) uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if acct := f.accounts[account]; acct != nil {
		return acct.holdings[category]
	}
	return 0
}

func (f *BoostedFarm) NFTIDs(account string) []uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if acct := f.accounts[account]; acct != nil {
		return slices.Clone(acct.ids)
	}
	return nil
}

func (f *BoostedFarm) NFTIDCount(account string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if acct := f.accounts[account]; acct != nil {
		return len(acct.ids)
	}
	return 0
}

func (f *BoostedFarm) HasNFTID(account string, category uint64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if acct := f.accounts[account]; acct != nil {
		return slices.Contains(acct.ids, category)
	}
	return false
}

// RewardBalance passes through to the reward token.
func (f *BoostedFarm) RewardBalance(account string) decimal.Decimal {
	return f.reward.BalanceOf(account)
}

// StakeTokenBalance passes through to the stake token.
func (f *BoostedFarm) StakeTokenBalance(account string) decimal.Decimal {
	return f.stake.BalanceOf(account)
}

func (f *BoostedFarm) Owner() string { return f.owner }

func (f *BoostedFarm) account(name string) *boostedAccount {
	acct := f.accounts[name]
	if acct == nil {
		acct = &boostedAccount{balance: decimal.Zero, holdings: map[uint64]uint64{}}
		f.accounts[name] = acct
	}
	return acct
}

func (f *BoostedFarm) fundingLocked(account string) decimal.Decimal {
	if amt, ok := f.funding[account]; ok {
		return amt
	}
	return decimal.Zero
}
