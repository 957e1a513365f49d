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

// position is one independently accruing stake. A zero openedAt marks an
// exhausted slot whose id stays burned.
type position struct {
	principal decimal.Decimal
	openedAt  int64
	// requestedAt is a leftover of the old two-step unstake flow. Nothing
	// sets it anymore; it is kept so the accessor keeps reading zero.
	requestedAt int64
}

type accountState struct {
	lastStakeID uint64
	positions   map[uint64]*position
}

type tokenState struct {
	apy          int64 // 0 = unset, reads as DefaultAPY
	totalStaked  decimal.Decimal
	totalFunding decimal.Decimal
	funding      map[string]decimal.Decimal
	accounts     map[string]*accountState
}

// TokenFarm is an accrual ledger over any number of fungible tokens. Each
// stake call opens a fresh position with its own clock; interest is paid from
// a commingled per-token funding reserve.
type TokenFarm struct {
	logger  *slog.Logger
	tokens  bank.Registry
	custody string // account holding staked principal and the reserve
	owner   string

	mu     sync.RWMutex
	paused bool
	state  map[string]*tokenState
	order  []string // tokens in first-staked-or-funded order
}

func NewTokenFarm(logger *slog.Logger, tokens bank.Registry, owner, custody string) *TokenFarm {
	return &TokenFarm{
		logger:  logger,
		tokens:  tokens,
		owner:   owner,
		custody: custody,
		state:   map[string]*tokenState{},
	}
}

// Fund moves amount of token from caller into the reward reserve. Anyone can
// fund; contributions are commingled and not withdrawable through the farm.
func (f *TokenFarm) Fund(caller, token string, amount decimal.Decimal) error {
	t, ok := f.tokens.Token(token)
	if !ok {
		return ErrUnknownToken
	}
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := t.Transfer(caller, f.custody, amount); err != nil {
		return err
	}
	ts := f.ensure(token)
	f.register(token)
	ts.totalFunding = ts.totalFunding.Add(amount)
	ts.funding[caller] = fundingOf(ts, caller).Add(amount)
	misc.Debugf(f.logger, "funded token:%s amount:%s from:%s", token, amount, caller)
	return nil
}

// SetAPY configures the annual percent rate for a token. Owner only.
func (f *TokenFarm) SetAPY(caller, token string, percent int64) error {
	if caller != f.owner {
		return ErrNotOwner
	}
	if _, ok := f.tokens.Token(token); !ok {
		return ErrUnknownToken
	}
	if percent <= 0 {
		return ErrAPYNotPositive
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensure(token).apy = percent
	misc.Infof(f.logger, "apy for token:%s set to %d%%", token, percent)
	return nil
}

// APY reads a token's rate, falling back to DefaultAPY when never configured.
func (f *TokenFarm) APY(token string) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.apyLocked(f.state[token])
}

func (f *TokenFarm) apyLocked(ts *tokenState) int64 {
	if ts == nil || ts.apy == 0 {
		return DefaultAPY
	}
	return ts.apy
}

// Stake opens a new position for caller: every call mints the next stake id
// for the (token, caller) pair, it never tops up an existing one.
func (f *TokenFarm) Stake(caller, token string, amount decimal.Decimal) (uint64, error) {
	t, ok := f.tokens.Token(token)
	if !ok {
		return 0, ErrUnknownToken
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return 0, ErrPaused
	}
	if !amount.IsPositive() {
		return 0, ErrAmountNotPositive
	}
	if err := t.Transfer(caller, f.custody, amount); err != nil {
		return 0, err
	}
	ts := f.ensure(token)
	f.register(token)
	acct := ts.account(caller)
	acct.lastStakeID++
	id := acct.lastStakeID
	acct.positions[id] = &position{principal: amount, openedAt: clock.Now().Unix()}
	ts.totalStaked = ts.totalStaked.Add(amount)
	misc.Infof(f.logger, "stake opened token:%s account:%s id:%d amount:%s", token, caller, id, amount)
	return id, nil
}

// Unstake closes the position entirely, paying principal plus any interest
// the reserve can cover.
func (f *TokenFarm) Unstake(caller, token string, stakeID uint64) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, err := f.openPosition(token, caller, stakeID)
	if err != nil {
		return decimal.Zero, err
	}
	return f.unstakeLocked(caller, token, stakeID, pos, pos.principal)
}

// UnstakeAmount withdraws part (or all) of a position's principal. Interest
// accrues on the full current principal for the whole elapsed period
// regardless of the fraction withdrawn; the clock then restarts on whatever
// principal remains.
func (f *TokenFarm) UnstakeAmount(caller, token string, stakeID uint64, amount decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, err := f.openPosition(token, caller, stakeID)
	if err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrAmountNotPositive
	}
	if amount.GreaterThan(pos.principal) {
		return decimal.Zero, ErrInsufficientStake
	}
	return f.unstakeLocked(caller, token, stakeID, pos, amount)
}

func (f *TokenFarm) unstakeLocked(caller, token string, stakeID uint64, pos *position, amount decimal.Decimal) (decimal.Decimal, error) {
	t, _ := f.tokens.Token(token)
	ts := f.state[token]
	now := clock.Now().Unix()

	interest := Interest(pos.principal, f.apyLocked(ts), now-pos.openedAt)
	if interest.IsPositive() && ts.totalFunding.GreaterThanOrEqual(interest) {
		// reserve covers it
	} else {
		// short reserve: principal only, nothing accrues for later
		if interest.IsPositive() {
			misc.Warnf(f.logger, "reserve short for token:%s, paying principal only (owed interest:%s, reserve:%s)",
				token, interest, ts.totalFunding)
		}
		interest = decimal.Zero
	}
	payout := amount.Add(interest)
	if err := t.Transfer(f.custody, caller, payout); err != nil {
		return decimal.Zero, err
	}
	ts.totalFunding = ts.totalFunding.Sub(interest)
	ts.totalStaked = ts.totalStaked.Sub(amount)
	pos.principal = pos.principal.Sub(amount)
	if pos.principal.IsZero() {
		pos.openedAt = 0
	} else {
		pos.openedAt = now
	}
	misc.Infof(f.logger, "unstaked token:%s account:%s id:%d amount:%s interest:%s", token, caller, stakeID, amount, interest)
	return payout, nil
}

// Claim pays out the accrued interest of one position, leaving its principal
// in place. Unlike Unstake there is no degraded mode: a reserve that cannot
// cover the interest fails the whole call.
func (f *TokenFarm) Claim(caller, token string, stakeID uint64) (decimal.Decimal, error) {
	t, ok := f.tokens.Token(token)
	if !ok {
		return decimal.Zero, ErrUnknownToken
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return decimal.Zero, ErrPaused
	}
	ts := f.state[token]
	acct := ts.lookup(caller)
	if acct == nil || stakeID == 0 || stakeID > acct.lastStakeID {
		return decimal.Zero, ErrWrongStakeID
	}
	pos := acct.positions[stakeID]
	if pos == nil || !pos.principal.IsPositive() {
		return decimal.Zero, ErrEmptyPosition
	}
	now := clock.Now().Unix()
	interest := Interest(pos.principal, f.apyLocked(ts), now-pos.openedAt)
	if ts.totalFunding.LessThan(interest) {
		return decimal.Zero, ErrReserveTooLow
	}
	if err := t.Transfer(f.custody, caller, interest); err != nil {
		return decimal.Zero, err
	}
	ts.totalFunding = ts.totalFunding.Sub(interest)
	pos.openedAt = now
	misc.Infof(f.logger, "claimed token:%s account:%s id:%d interest:%s", token, caller, stakeID, interest)
	return interest, nil
}

// Pause stops stake/unstake/claim for everyone, owner included.
func (f *TokenFarm) Pause(caller string) error {
	return f.setPaused(caller, true)
}

func (f *TokenFarm) Unpause(caller string) error {
	return f.setPaused(caller, false)
}

func (f *TokenFarm) setPaused(caller string, paused bool) error {
	if caller != f.owner {
		return ErrNotOwner
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = paused
	misc.Infof(f.logger, "paused:%v", paused)
	return nil
}

func (f *TokenFarm) Paused() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.paused
}

// Tokens returns every token ever staked or funded, in first-seen order.
func (f *TokenFarm) Tokens() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.order)
}

func (f *TokenFarm) LastStakeID(token, account string) uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if acct := f.state[token].lookup(account); acct != nil {
		return acct.lastStakeID
	}
	return 0
}

func (f *TokenFarm) Balance(token, account string, stakeID uint64) decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if pos := f.state[token].lookupPosition(account, stakeID); pos != nil {
		return pos.principal
	}
	return decimal.Zero
}

// StakeDate returns the position's last-touched Unix timestamp, zero for an
// empty or unknown slot.
func (f *TokenFarm) StakeDate(token, account string, stakeID uint64) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if pos := f.state[token].lookupPosition(account, stakeID); pos != nil {
		return pos.openedAt
	}
	return 0
}

// UnstakeRequestDate reads the retired request-timestamp slot.
func (f *TokenFarm) UnstakeRequestDate(token, account string, stakeID uint64) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if pos := f.state[token].lookupPosition(account, stakeID); pos != nil {
		return pos.requestedAt
	}
	return 0
}

// TotalBalanceOf sums the open principal across every position the account
// holds for the token.
func (f *TokenFarm) TotalBalanceOf(token, account string) decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	acct := f.state[token].lookup(account)
	if acct == nil {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, pos := range acct.positions {
		total = total.Add(pos.principal)
	}
	return total
}

// OpenPositions counts nonempty positions across all accounts for a token.
func (f *TokenFarm) OpenPositions(token string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ts := f.state[token]
	if ts == nil {
		return 0
	}
	var n int
	for _, acct := range ts.accounts {
		for _, pos := range acct.positions {
			if pos.openedAt != 0 {
				n++
			}
		}
	}
	return n
}

func (f *TokenFarm) TotalStaked(token string) decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if ts := f.state[token]; ts != nil {
		return ts.totalStaked
	}
	return decimal.Zero
}

func (f *TokenFarm) TotalFunding(token string) decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if ts := f.state[token]; ts != nil {
		return ts.totalFunding
	}
	return decimal.Zero
}

// FundingBy reports one account's lifetime contribution to a token's reserve.
// Informational only, funding is commingled.
func (f *TokenFarm) FundingBy(token, account string) decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return fundingOf(f.state[token], account)
}

// TokenBalance passes through to the underlying token's balance accessor.
func (f *TokenFarm) TokenBalance(token, account string) (decimal.Decimal, error) {
	t, ok := f.tokens.Token(token)
	if !ok {
		return decimal.Zero, ErrUnknownToken
	}
	return t.BalanceOf(account), nil
}

// Custody returns the account name the farm holds principal and reserve in.
func (f *TokenFarm) Custody() string { return f.custody }

// Owner returns the configuration authority account.
func (f *TokenFarm) Owner() string { return f.owner }

// openPosition validates the common unstake preconditions under f.mu.
func (f *TokenFarm) openPosition(token, account string, stakeID uint64) (*position, error) {
	if _, ok := f.tokens.Token(token); !ok {
		return nil, ErrUnknownToken
	}
	if f.paused {
		return nil, ErrPaused
	}
	pos := f.state[token].lookupPosition(account, stakeID)
	if pos == nil || pos.openedAt == 0 {
		return nil, ErrWrongStakeID
	}
	return pos, nil
}

func (f *TokenFarm) ensure(token string) *tokenState {
	ts := f.state[token]
	if ts == nil {
		ts = &tokenState{
			totalStaked:  decimal.Zero,
			totalFunding: decimal.Zero,
			funding:      map[string]decimal.Decimal{},
			accounts:     map[string]*accountState{},
		}
		f.state[token] = ts
	}
	return ts
}

func (f *TokenFarm) register(token string) {
	if !slices.Contains(f.order, token) {
		f.order = append(f.order, token)
	}
}

func (ts *tokenState) account(name string) *accountState {
	acct := ts.accounts[name]
	if acct == nil {
		acct = &accountState{positions: map[uint64]*position{}}
		ts.accounts[name] = acct
	}
	return acct
}

func (ts *tokenState) lookup(name string) *accountState {
	if ts == nil {
		return nil
	}
	return ts.accounts[name]
}

func (ts *tokenState) lookupPosition(account string, stakeID uint64) *position {
	acct := ts.lookup(account)
	if acct == nil {
		return nil
	}
	return acct.positions[stakeID]
}

func fundingOf(ts *tokenState, account string) decimal.Decimal {
	if ts == nil {
		return decimal.Zero
	}
	if amt, ok := ts.funding[account]; ok {
		return amt
	}
	return decimal.Zero
}
