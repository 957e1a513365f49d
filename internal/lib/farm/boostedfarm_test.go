package farm

import (
	"testing"
	"time"

	"github.com/mailgun/holster/v4/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umi-digital/umi-farmd/internal/lib/bank"
)

// newTestBoostedFarm keeps stake and reward on one ledger, the way the
// production deployment runs it, with booster categories 1 and 11 minted to
// alice.
func newTestBoostedFarm(t *testing.T) (*BoostedFarm, *bank.Ledger, *bank.Collection) {
	t.Helper()
	ledger := bank.NewLedger()
	ledger.Mint(alice, decimal.NewFromInt(100000))
	ledger.Mint(bob, decimal.NewFromInt(100000))
	ledger.Mint(farmOwner, decimal.NewFromInt(100000))
	nfts := bank.NewCollection()
	nfts.Mint(alice, 1, 5)
	nfts.Mint(alice, 11, 5)
	nfts.Mint(alice, 50, 1)
	f := NewBoostedFarm(testLogger(), ledger, ledger, nfts, farmOwner, farmCustody)
	return f, ledger, nfts
}

func TestPresetBonusTiers(t *testing.T) {
	f, _, _ := newTestBoostedFarm(t)

	assert.Equal(t, int64(10), f.Bonus(1))
	assert.Equal(t, int64(10), f.Bonus(10))
	assert.Equal(t, int64(20), f.Bonus(11))
	assert.Equal(t, int64(40), f.Bonus(25))
	assert.Equal(t, int64(60), f.Bonus(31))
	assert.Equal(t, int64(80), f.Bonus(41))
	assert.Equal(t, int64(80), f.Bonus(50))

	assert.True(t, f.InWhitelist(1))
	assert.True(t, f.InWhitelist(50))
	assert.False(t, f.InWhitelist(51), "only the first fifty categories are preset")
	assert.False(t, f.InWhitelist(0))
}

func TestSetBonus(t *testing.T) {
	f, _, _ := newTestBoostedFarm(t)

	assert.ErrorIs(t, f.SetBonus(alice, 60, 15), ErrNotOwner)
	assert.ErrorIs(t, f.SetBonus(farmOwner, 0, 15), ErrBadBonus)
	assert.ErrorIs(t, f.SetBonus(farmOwner, 60, 0), ErrBadBonus)

	require.NoError(t, f.SetBonus(farmOwner, 60, 15))
	assert.Equal(t, int64(15), f.Bonus(60))
	assert.True(t, f.InWhitelist(60), "a configured bonus whitelists the category")

	// presets can be overridden
	require.NoError(t, f.SetBonus(farmOwner, 1, 99))
	assert.Equal(t, int64(99), f.Bonus(1))
}

func TestTotalAPYComposition(t *testing.T) {
	f, _, _ := newTestBoostedFarm(t)
	require.NoError(t, f.SetBaseAPY(farmOwner, 33))

	assert.Equal(t, int64(0), f.TotalAPYOf(alice), "no balance, no rate")

	require.NoError(t, f.Stake(alice, d("1000")))
	assert.Equal(t, int64(33), f.TotalAPYOf(alice))

	require.NoError(t, f.StakeNFT(alice, 1, 1))
	assert.Equal(t, int64(43), f.TotalAPYOf(alice))

	require.NoError(t, f.StakeNFT(alice, 1, 1))
	assert.Equal(t, int64(53), f.TotalAPYOf(alice), "bonus scales with quantity")

	require.NoError(t, f.StakeNFT(alice, 11, 2))
	assert.Equal(t, int64(93), f.TotalAPYOf(alice))

	// boosters held without a token balance contribute nothing
	_, err := f.Unstake(alice)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.TotalAPYOf(alice))
}

func TestStakeAccumulatesOneBalance(t *testing.T) {
	f, ledger, _ := newTestBoostedFarm(t)

	require.NoError(t, f.Stake(alice, d("400")))
	require.NoError(t, f.Stake(alice, d("600")))

	assert.Equal(t, "1000", f.Balance(alice).String(), "boosted stakes accumulate, no second position")
	assert.Equal(t, "1000", f.TotalStaked().String())
	assert.Equal(t, "1000", ledger.BalanceOf(farmCustody).String())
}

func TestTopUpSettlesInterestExternally(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, ledger, _ := newTestBoostedFarm(t)
	require.NoError(t, f.SetBaseAPY(farmOwner, 33))
	require.NoError(t, f.Fund(farmOwner, d("100")))

	require.NoError(t, f.Stake(alice, d("1000")))
	before := ledger.BalanceOf(alice)

	clock.Advance(10 * 24 * time.Hour)

	require.NoError(t, f.Stake(alice, d("500")))

	// the accrued interest goes to alice's wallet, never into the balance
	assert.Equal(t, "1500", f.Balance(alice).String())
	assert.Equal(t, before.Sub(d("500")).Add(d("9.077968351419404439")).String(),
		ledger.BalanceOf(alice).String())
	assert.Equal(t, d("100").Sub(d("9.077968351419404439")).String(), f.TotalFunding().String())
	assert.Equal(t, clock.Now().Unix(), f.StakeDate(alice))
}

func TestTopUpSkipsInterestWhenReserveShort(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, ledger, _ := newTestBoostedFarm(t)

	require.NoError(t, f.Stake(alice, d("1000")))
	clock.Advance(10 * 24 * time.Hour)
	before := ledger.BalanceOf(alice)

	require.NoError(t, f.Stake(alice, d("500")), "a dry reserve is not an error on stake")
	assert.Equal(t, "1500", f.Balance(alice).String())
	assert.Equal(t, before.Sub(d("500")).String(), ledger.BalanceOf(alice).String(), "no interest paid")
	assert.Equal(t, "0", f.TotalFunding().String())
}

func TestBoostedStakeChecks(t *testing.T) {
	f, _, _ := newTestBoostedFarm(t)

	assert.ErrorIs(t, f.Stake(alice, decimal.Zero), ErrAmountNotPositive)
	assert.ErrorIs(t, f.Stake(alice, d("100001")), bank.ErrExceedsBalance)

	require.NoError(t, f.Pause(farmOwner))
	assert.ErrorIs(t, f.Stake(alice, d("10")), ErrPaused)
}

func TestBoostedUnstakeAll(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, ledger, _ := newTestBoostedFarm(t)
	require.NoError(t, f.SetBaseAPY(farmOwner, 33))
	require.NoError(t, f.Fund(farmOwner, d("100")))

	require.NoError(t, f.Stake(alice, d("1000")))
	before := ledger.BalanceOf(alice)

	clock.Advance(10 * 24 * time.Hour)

	paid, err := f.Unstake(alice)
	require.NoError(t, err)
	assert.Equal(t, "1009.077968351419404439", paid.String())
	assert.Equal(t, before.Add(paid).String(), ledger.BalanceOf(alice).String())
	assert.Equal(t, "0", f.Balance(alice).String())
	assert.Equal(t, int64(0), f.StakeDate(alice))
	assert.Equal(t, "0", f.TotalStaked().String())

	_, err = f.Unstake(alice)
	assert.ErrorIs(t, err, ErrInsufficientStake)
}

func TestBoostedUnstakeDegradesWhenReserveShort(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, ledger, _ := newTestBoostedFarm(t)

	require.NoError(t, f.Stake(alice, d("1000")))
	before := ledger.BalanceOf(alice)
	clock.Advance(10 * 24 * time.Hour)

	paid, err := f.Unstake(alice)
	require.NoError(t, err)
	assert.Equal(t, "1000", paid.String(), "principal only")
	assert.Equal(t, before.Add(d("1000")).String(), ledger.BalanceOf(alice).String())
	assert.Equal(t, "0", f.TotalFunding().String())
}

func TestBoostedClaim(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, ledger, _ := newTestBoostedFarm(t)
	require.NoError(t, f.SetBaseAPY(farmOwner, 33))
	require.NoError(t, f.Fund(farmOwner, d("100")))

	require.NoError(t, f.Stake(alice, d("1000")))
	before := ledger.BalanceOf(alice)
	clock.Advance(10 * 24 * time.Hour)

	paid, err := f.Claim(alice)
	require.NoError(t, err)
	assert.Equal(t, "9.077968351419404439", paid.String())
	assert.Equal(t, before.Add(paid).String(), ledger.BalanceOf(alice).String())
	assert.Equal(t, "1000", f.Balance(alice).String())
	assert.Equal(t, clock.Now().Unix(), f.StakeDate(alice))
}

func TestBoostedClaimChecks(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, _, _ := newTestBoostedFarm(t)

	_, err := f.Claim(alice)
	assert.ErrorIs(t, err, ErrEmptyBalance)

	require.NoError(t, f.Stake(alice, d("1000")))
	clock.Advance(10 * 24 * time.Hour)

	_, err = f.Claim(alice)
	assert.ErrorIs(t, err, ErrReserveTooLow, "claim never degrades to a partial payout")
}

func TestNFTStakeWhitelistGating(t *testing.T) {
	f, _, nfts := newTestBoostedFarm(t)

	nfts.Mint(alice, 77, 3)
	assert.ErrorIs(t, f.StakeNFT(alice, 77, 1), ErrNotWhitelisted)
	assert.ErrorIs(t, f.StakeNFT(alice, 1, 0), ErrAmountNotPositive)
	assert.ErrorIs(t, f.StakeNFT(alice, 1, 6), bank.ErrInsufficientNFT)
	assert.ErrorIs(t, f.BatchStakeNFTs(alice, []uint64{1, 11}, []uint64{1}), ErrBatchMismatch)

	require.NoError(t, f.StakeNFT(alice, 1, 2))
	assert.Equal(t, uint64(2), f.NFTBalance(alice, 1))
	assert.Equal(t, uint64(3), nfts.BalanceOf(alice, 1))
	assert.Equal(t, uint64(2), nfts.BalanceOf(farmCustody, 1))
}

func TestBatchStakeValidatesBeforeMoving(t *testing.T) {
	f, _, nfts := newTestBoostedFarm(t)

	// second entry fails whitelist, first must not move
	err := f.BatchStakeNFTs(alice, []uint64{1, 77}, []uint64{1, 1})
	assert.ErrorIs(t, err, ErrNotWhitelisted)
	assert.Equal(t, uint64(5), nfts.BalanceOf(alice, 1))
	assert.Equal(t, uint64(0), f.NFTBalance(alice, 1))
}

func TestNFTUnstakeKeepsCategoryListed(t *testing.T) {
	f, _, nfts := newTestBoostedFarm(t)

	require.NoError(t, f.StakeNFT(alice, 1, 2))
	require.NoError(t, f.UnstakeNFT(alice, 1, 1))
	require.NoError(t, f.UnstakeNFT(alice, 1, 1))

	// drained through the single-category path: quantity zero but the
	// category stays on the enumeration list
	assert.Equal(t, uint64(0), f.NFTBalance(alice, 1))
	assert.True(t, f.HasNFTID(alice, 1))
	assert.Equal(t, 1, f.NFTIDCount(alice))
	assert.Equal(t, uint64(5), nfts.BalanceOf(alice, 1))

	assert.ErrorIs(t, f.UnstakeNFT(alice, 1, 1), ErrInsufficientStake)
}

func TestBatchNFTUnstakeDelistsDrainedCategories(t *testing.T) {
	f, _, _ := newTestBoostedFarm(t)

	require.NoError(t, f.BatchStakeNFTs(alice, []uint64{1, 11}, []uint64{2, 3}))
	assert.Equal(t, []uint64{1, 11}, f.NFTIDs(alice))

	require.NoError(t, f.BatchUnstakeNFTs(alice, []uint64{1, 11}, []uint64{2, 1}))

	// the batch path removes fully drained categories
	assert.False(t, f.HasNFTID(alice, 1))
	assert.True(t, f.HasNFTID(alice, 11))
	assert.Equal(t, []uint64{11}, f.NFTIDs(alice))
	assert.Equal(t, uint64(2), f.NFTBalance(alice, 11))
}

func TestBatchNFTUnstakeChecks(t *testing.T) {
	f, _, _ := newTestBoostedFarm(t)
	require.NoError(t, f.StakeNFT(alice, 1, 1))

	assert.ErrorIs(t, f.BatchUnstakeNFTs(alice, []uint64{1}, []uint64{1, 2}), ErrBatchMismatch)
	assert.ErrorIs(t, f.BatchUnstakeNFTs(alice, []uint64{77}, []uint64{1}), ErrNotWhitelisted)
	assert.ErrorIs(t, f.BatchUnstakeNFTs(alice, []uint64{1}, []uint64{2}), ErrInsufficientStake)
	assert.ErrorIs(t, f.BatchUnstakeNFTs(bob, []uint64{1}, []uint64{1}), ErrInsufficientStake)
}

func TestNFTUnstakeRejectsZeroQuantity(t *testing.T) {
	f, _, _ := newTestBoostedFarm(t)
	require.NoError(t, f.Stake(alice, d("100")))

	// nothing staked yet, so custody holds no boosters at all; a zero
	// quantity must be rejected up front, not forwarded to the transfer
	assert.ErrorIs(t, f.UnstakeNFT(alice, 1, 0), ErrAmountNotPositive)
	assert.ErrorIs(t, f.BatchUnstakeNFTs(alice, []uint64{1}, []uint64{0}), ErrAmountNotPositive)

	require.NoError(t, f.StakeNFT(alice, 1, 2))
	assert.ErrorIs(t, f.UnstakeNFT(alice, 1, 0), ErrAmountNotPositive)
	assert.ErrorIs(t, f.BatchUnstakeNFTs(alice, []uint64{1, 1}, []uint64{1, 0}), ErrAmountNotPositive)
	assert.Equal(t, uint64(2), f.NFTBalance(alice, 1))
}

func TestBoostedPauseGating(t *testing.T) {
	f, _, _ := newTestBoostedFarm(t)
	require.NoError(t, f.Stake(alice, d("100")))
	require.NoError(t, f.StakeNFT(alice, 1, 1))

	assert.ErrorIs(t, f.Pause(alice), ErrNotOwner)
	require.NoError(t, f.Pause(farmOwner))

	assert.ErrorIs(t, f.Stake(alice, d("10")), ErrPaused)
	_, err := f.Unstake(alice)
	assert.ErrorIs(t, err, ErrPaused)
	_, err = f.Claim(alice)
	assert.ErrorIs(t, err, ErrPaused)
	assert.ErrorIs(t, f.StakeNFT(alice, 1, 1), ErrPaused)
	assert.ErrorIs(t, f.UnstakeNFT(alice, 1, 1), ErrPaused)

	require.NoError(t, f.Unpause(farmOwner))
	assert.NoError(t, f.Stake(alice, d("10")))
}

func TestBaseAPYConfiguration(t *testing.T) {
	f, _, _ := newTestBoostedFarm(t)

	assert.Equal(t, int64(DefaultAPY), f.BaseAPY())
	assert.ErrorIs(t, f.SetBaseAPY(alice, 40), ErrNotOwner)
	assert.ErrorIs(t, f.SetBaseAPY(farmOwner, 0), ErrAPYNotPositive)
	require.NoError(t, f.SetBaseAPY(farmOwner, 40))
	assert.Equal(t, int64(40), f.BaseAPY())
}

func TestBoostedFunding(t *testing.T) {
	f, ledger, _ := newTestBoostedFarm(t)

	assert.ErrorIs(t, f.Fund(alice, decimal.Zero), ErrAmountNotPositive)

	require.NoError(t, f.Fund(alice, d("30")))
	require.NoError(t, f.Fund(bob, d("70")))

	assert.Equal(t, "100", f.TotalFunding().String())
	assert.Equal(t, "30", f.FundingBy(alice).String())
	assert.Equal(t, "70", f.FundingBy(bob).String())
	assert.Equal(t, "100", ledger.BalanceOf(farmCustody).String())
}

func TestBoostedSnapshotRoundTrip(t *testing.T) {
	defer clock.Freeze(clock.Now()).Unfreeze()
	f, _, _ := newTestBoostedFarm(t)
	require.NoError(t, f.SetBaseAPY(farmOwner, 33))
	require.NoError(t, f.SetBonus(farmOwner, 60, 15))
	require.NoError(t, f.Fund(farmOwner, d("100")))
	require.NoError(t, f.Stake(alice, d("1000")))
	require.NoError(t, f.BatchStakeNFTs(alice, []uint64{11, 1}, []uint64{2, 1}))

	snap := f.Snapshot()

	restored, _, _ := newTestBoostedFarm(t)
	restored.Restore(snap)

	assert.Equal(t, int64(33), restored.BaseAPY())
	assert.Equal(t, int64(15), restored.Bonus(60))
	assert.Equal(t, "100", restored.TotalFunding().String())
	assert.Equal(t, "1000", restored.Balance(alice).String())
	assert.Equal(t, f.StakeDate(alice), restored.StakeDate(alice))
	assert.Equal(t, []uint64{11, 1}, restored.NFTIDs(alice), "enumeration order survives")
	assert.Equal(t, uint64(2), restored.NFTBalance(alice, 11))
	assert.Equal(t, f.TotalAPYOf(alice), restored.TotalAPYOf(alice))
}
