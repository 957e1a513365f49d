package farm

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mailgun/holster/v4/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umi-digital/umi-farmd/internal/lib/bank"
)

const (
	farmOwner   = "owner"
	farmCustody = "custody"
	alice       = "alice"
	bob         = "bob"
	umi         = "umi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestFarm builds a farm over a single in-process token with generous
// balances for alice and bob.
func newTestFarm(t *testing.T) (*TokenFarm, *bank.Ledger) {
	t.Helper()
	ledger := bank.NewLedger()
	ledger.Mint(alice, decimal.NewFromInt(100000))
	ledger.Mint(bob, decimal.NewFromInt(100000))
	ledger.Mint(farmOwner, decimal.NewFromInt(100000))
	dir := bank.NewDirectory()
	dir.Add(umi, ledger)
	return NewTokenFarm(testLogger(), dir, farmOwner, farmCustody), ledger
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestStakeMintsSequentialIDs(t *testing.T) {
	f, _ := newTestFarm(t)

	id1, err := f.Stake(alice, umi, d("100"))
	require.NoError(t, err)
	id2, err := f.Stake(alice, umi, d("200"))
	require.NoError(t, err)
	id3, err := f.Stake(bob, umi, d("50"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)
	assert.Equal(t, uint64(1), id3, "ids are per (token, account)")
	assert.Equal(t, uint64(2), f.LastStakeID(umi, alice))

	assert.Equal(t, "300", f.TotalBalanceOf(umi, alice).String())
	assert.Equal(t, "350", f.TotalStaked(umi).String())
	assert.Equal(t, 3, f.OpenPositions(umi))
	assert.Equal(t, []string{umi}, f.Tokens())
}

func TestStakeMovesPrincipalToCustody(t *testing.T) {
	f, ledger := newTestFarm(t)

	before := ledger.BalanceOf(alice)
	_, err := f.Stake(alice, umi, d("1000"))
	require.NoError(t, err)

	assert.Equal(t, before.Sub(d("1000")).String(), ledger.BalanceOf(alice).String())
	assert.Equal(t, "1000", ledger.BalanceOf(farmCustody).String())
}

func TestStakeChecks(t *testing.T) {
	f, _ := newTestFarm(t)

	_, err := f.Stake(alice, "unknown", d("10"))
	assert.ErrorIs(t, err, ErrUnknownToken)

	_, err = f.Stake(alice, umi, decimal.Zero)
	assert.ErrorIs(t, err, ErrAmountNotPositive)

	_, err = f.Stake(alice, umi, d("100001"))
	assert.ErrorIs(t, err, bank.ErrExceedsBalance)
	assert.Equal(t, "0", f.TotalStaked(umi).String(), "failed stake leaves no trace")

	require.NoError(t, f.Pause(farmOwner))
	_, err = f.Stake(alice, umi, d("10"))
	assert.ErrorIs(t, err, ErrPaused)
	// the token check still runs ahead of the pause gate
	_, err = f.Stake(alice, "unknown", d("10"))
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestUnstakeFullPaysPrincipalPlusInterest(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, ledger := newTestFarm(t)
	require.NoError(t, f.SetAPY(farmOwner, umi, 33))
	require.NoError(t, f.Fund(farmOwner, umi, d("100")))

	_, err := f.Stake(alice, umi, d("1000"))
	require.NoError(t, err)
	before := ledger.BalanceOf(alice)

	clock.Advance(10 * 24 * time.Hour)

	paid, err := f.Unstake(alice, umi, 1)
	require.NoError(t, err)
	assert.Equal(t, "1009.077968351419404439", paid.String())
	assert.Equal(t, before.Add(paid).String(), ledger.BalanceOf(alice).String())

	assert.Equal(t, "0", f.Balance(umi, alice, 1).String())
	assert.Equal(t, int64(0), f.StakeDate(umi, alice, 1))
	assert.Equal(t, "0", f.TotalStaked(umi).String())
	assert.Equal(t, d("100").Sub(d("9.077968351419404439")).String(), f.TotalFunding(umi).String())

	// the slot is burned, not recycled
	_, err = f.Unstake(alice, umi, 1)
	assert.ErrorIs(t, err, ErrWrongStakeID)
	id, err := f.Stake(alice, umi, d("10"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id)
}

func TestUnstakePartialAccruesOnFullPrincipal(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, _ := newTestFarm(t)
	require.NoError(t, f.SetAPY(farmOwner, umi, 33))
	require.NoError(t, f.Fund(farmOwner, umi, d("100")))

	_, err := f.Stake(alice, umi, d("1000"))
	require.NoError(t, err)

	clock.Advance(10 * 24 * time.Hour)

	// interest is computed on the whole 1000 even though only 400 leaves
	paid, err := f.UnstakeAmount(alice, umi, 1, d("400"))
	require.NoError(t, err)
	assert.Equal(t, d("400").Add(d("9.077968351419404439")).String(), paid.String())
	assert.Equal(t, "600", f.Balance(umi, alice, 1).String())
	assert.Equal(t, clock.Now().Unix(), f.StakeDate(umi, alice, 1), "clock restarts on the remainder")

	// an immediate follow-up accrues nothing
	paid, err = f.UnstakeAmount(alice, umi, 1, d("600"))
	require.NoError(t, err)
	assert.Equal(t, "600", paid.String())
	assert.Equal(t, int64(0), f.StakeDate(umi, alice, 1))
}

func TestUnstakeAmountChecks(t *testing.T) {
	f, _ := newTestFarm(t)
	_, err := f.Stake(alice, umi, d("100"))
	require.NoError(t, err)

	_, err = f.UnstakeAmount(alice, umi, 1, decimal.Zero)
	assert.ErrorIs(t, err, ErrAmountNotPositive)

	_, err = f.UnstakeAmount(alice, umi, 1, d("100.000000000000000001"))
	assert.ErrorIs(t, err, ErrInsufficientStake)

	_, err = f.UnstakeAmount(alice, umi, 2, d("10"))
	assert.ErrorIs(t, err, ErrWrongStakeID)

	_, err = f.UnstakeAmount(bob, umi, 1, d("10"))
	assert.ErrorIs(t, err, ErrWrongStakeID, "positions are not reachable cross-account")
}

func TestUnstakeDegradesWhenReserveShort(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, ledger := newTestFarm(t)

	_, err := f.Stake(alice, umi, d("1000"))
	require.NoError(t, err)
	before := ledger.BalanceOf(alice)

	clock.Advance(30 * 24 * time.Hour)

	paid, err := f.Unstake(alice, umi, 1)
	require.NoError(t, err)
	assert.Equal(t, "1000", paid.String(), "principal only, interest forfeited")
	assert.Equal(t, before.Add(d("1000")).String(), ledger.BalanceOf(alice).String())
	assert.Equal(t, "0", f.TotalFunding(umi).String(), "reserve untouched")
}

func TestUnstakeLeavesSiblingPositionsAlone(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, _ := newTestFarm(t)

	_, err := f.Stake(alice, umi, d("100"))
	require.NoError(t, err)
	_, err = f.Stake(alice, umi, d("200"))
	require.NoError(t, err)

	openedAt := f.StakeDate(umi, alice, 2)
	clock.Advance(time.Hour)

	_, err = f.Unstake(alice, umi, 1)
	require.NoError(t, err)

	assert.Equal(t, "200", f.Balance(umi, alice, 2).String())
	assert.Equal(t, openedAt, f.StakeDate(umi, alice, 2))
	assert.Equal(t, "200", f.TotalBalanceOf(umi, alice).String())
	assert.Equal(t, 1, f.OpenPositions(umi))
}

func TestClaimPaysInterestOnly(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, ledger := newTestFarm(t)
	require.NoError(t, f.SetAPY(farmOwner, umi, 33))
	require.NoError(t, f.Fund(farmOwner, umi, d("100")))

	_, err := f.Stake(alice, umi, d("1000"))
	require.NoError(t, err)
	before := ledger.BalanceOf(alice)

	clock.Advance(10 * 24 * time.Hour)

	paid, err := f.Claim(alice, umi, 1)
	require.NoError(t, err)
	assert.Equal(t, "9.077968351419404439", paid.String())
	assert.Equal(t, before.Add(paid).String(), ledger.BalanceOf(alice).String())
	assert.Equal(t, "1000", f.Balance(umi, alice, 1).String(), "principal stays")
	assert.Equal(t, clock.Now().Unix(), f.StakeDate(umi, alice, 1), "accrual clock restarts")

	// claiming again right away pays zero, clock just restarted
	paid, err = f.Claim(alice, umi, 1)
	require.NoError(t, err)
	assert.Equal(t, "0", paid.String())
}

func TestClaimFailsWhenReserveShort(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, _ := newTestFarm(t)

	_, err := f.Stake(alice, umi, d("1000"))
	require.NoError(t, err)
	clock.Advance(10 * 24 * time.Hour)

	_, err = f.Claim(alice, umi, 1)
	assert.ErrorIs(t, err, ErrReserveTooLow, "claim has no principal-only fallback")
	assert.Equal(t, "1000", f.Balance(umi, alice, 1).String())
}

func TestClaimIDChecks(t *testing.T) {
	f, _ := newTestFarm(t)
	require.NoError(t, f.Fund(farmOwner, umi, d("100")))

	_, err := f.Stake(alice, umi, d("100"))
	require.NoError(t, err)

	// an id never minted for the account
	_, err = f.Claim(alice, umi, 2)
	assert.ErrorIs(t, err, ErrWrongStakeID)
	_, err = f.Claim(alice, umi, 0)
	assert.ErrorIs(t, err, ErrWrongStakeID)

	// a minted id whose position was drained reads as empty, not wrong
	_, err = f.Unstake(alice, umi, 1)
	require.NoError(t, err)
	_, err = f.Claim(alice, umi, 1)
	assert.ErrorIs(t, err, ErrEmptyPosition)
}

func TestPauseGatesEveryone(t *testing.T) {
	f, _ := newTestFarm(t)
	require.NoError(t, f.Fund(farmOwner, umi, d("100")))
	_, err := f.Stake(farmOwner, umi, d("100"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.Pause(alice), ErrNotOwner)
	require.NoError(t, f.Pause(farmOwner))
	assert.True(t, f.Paused())

	// the owner is not exempt
	_, err = f.Stake(farmOwner, umi, d("10"))
	assert.ErrorIs(t, err, ErrPaused)
	_, err = f.Unstake(farmOwner, umi, 1)
	assert.ErrorIs(t, err, ErrPaused)
	_, err = f.Claim(farmOwner, umi, 1)
	assert.ErrorIs(t, err, ErrPaused)

	assert.ErrorIs(t, f.Unpause(alice), ErrNotOwner)
	require.NoError(t, f.Unpause(farmOwner))
	_, err = f.Stake(farmOwner, umi, d("10"))
	assert.NoError(t, err)
}

func TestAPYConfiguration(t *testing.T) {
	f, _ := newTestFarm(t)

	assert.Equal(t, int64(DefaultAPY), f.APY(umi), "unset rate reads as the default")

	assert.ErrorIs(t, f.SetAPY(alice, umi, 20), ErrNotOwner)
	assert.ErrorIs(t, f.SetAPY(farmOwner, umi, 0), ErrAPYNotPositive)
	assert.ErrorIs(t, f.SetAPY(farmOwner, "unknown", 20), ErrUnknownToken)

	require.NoError(t, f.SetAPY(farmOwner, umi, 40))
	assert.Equal(t, int64(40), f.APY(umi))
}

func TestFundTallies(t *testing.T) {
	f, ledger := newTestFarm(t)

	assert.ErrorIs(t, f.Fund(alice, "unknown", d("10")), ErrUnknownToken)
	assert.ErrorIs(t, f.Fund(alice, umi, decimal.Zero), ErrAmountNotPositive)

	require.NoError(t, f.Fund(alice, umi, d("30")))
	require.NoError(t, f.Fund(bob, umi, d("70")))
	require.NoError(t, f.Fund(alice, umi, d("5")))

	assert.Equal(t, "105", f.TotalFunding(umi).String())
	assert.Equal(t, "35", f.FundingBy(umi, alice).String())
	assert.Equal(t, "70", f.FundingBy(umi, bob).String())
	assert.Equal(t, "0", f.FundingBy(umi, farmOwner).String())
	assert.Equal(t, "105", ledger.BalanceOf(farmCustody).String())
	assert.Equal(t, []string{umi}, f.Tokens(), "funding registers the token too")
}

func TestTokensFirstSeenOrder(t *testing.T) {
	ledgerA, ledgerB := bank.NewLedger(), bank.NewLedger()
	ledgerA.Mint(alice, d("100"))
	ledgerB.Mint(alice, d("100"))
	dir := bank.NewDirectory()
	dir.Add("atoken", ledgerA)
	dir.Add("btoken", ledgerB)
	f := NewTokenFarm(testLogger(), dir, farmOwner, farmCustody)

	require.NoError(t, f.Fund(alice, "btoken", d("10")))
	_, err := f.Stake(alice, "atoken", d("10"))
	require.NoError(t, err)
	require.NoError(t, f.Fund(alice, "btoken", d("10")))

	assert.Equal(t, []string{"btoken", "atoken"}, f.Tokens())
}

func TestUnstakeRequestDateAlwaysZero(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, _ := newTestFarm(t)
	_, err := f.Stake(alice, umi, d("100"))
	require.NoError(t, err)
	clock.Advance(time.Hour)
	assert.Equal(t, int64(0), f.UnstakeRequestDate(umi, alice, 1))
}

func TestSnapshotRoundTrip(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, _ := newTestFarm(t)
	require.NoError(t, f.SetAPY(farmOwner, umi, 33))
	require.NoError(t, f.Fund(farmOwner, umi, d("100")))
	_, err := f.Stake(alice, umi, d("1000"))
	require.NoError(t, err)
	_, err = f.Stake(bob, umi, d("250"))
	require.NoError(t, err)
	require.NoError(t, f.Pause(farmOwner))

	snap := f.Snapshot()

	restored, _ := newTestFarm(t)
	restored.Restore(snap)

	assert.True(t, restored.Paused())
	assert.Equal(t, int64(33), restored.APY(umi))
	assert.Equal(t, "1250", restored.TotalStaked(umi).String())
	assert.Equal(t, "100", restored.TotalFunding(umi).String())
	assert.Equal(t, "1000", restored.Balance(umi, alice, 1).String())
	assert.Equal(t, "250", restored.Balance(umi, bob, 1).String())
	assert.Equal(t, f.StakeDate(umi, alice, 1), restored.StakeDate(umi, alice, 1))
	assert.Equal(t, []string{umi}, restored.Tokens())
}
