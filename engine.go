package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/umi-digital/umi-farmd/internal/lib/bank"
	"github.com/umi-digital/umi-farmd/internal/lib/farm"
	"github.com/umi-digital/umi-farmd/internal/lib/misc"
	"github.com/umi-digital/umi-farmd/internal/lib/store"
)

// Engine owns all ledger state for one process: the token directory, both
// accrual farms, the LP converter and the sqlite store they snapshot into.
type Engine struct {
	logger    *slog.Logger
	cfg       *FarmConfig
	directory *bank.Directory
	ledgers   map[string]*bank.Ledger
	nfts      *bank.Collection
	pool      *bank.StaticPool
	farm      *farm.TokenFarm
	boosted   *farm.BoostedFarm
	converter *farm.Converter
	minter    *farm.Minter
	store     *store.Store
}

func newEngine(logger *slog.Logger, cfg *FarmConfig) (*Engine, error) {
	eng := &Engine{
		logger:    logger,
		cfg:       cfg,
		directory: bank.NewDirectory(),
		ledgers:   map[string]*bank.Ledger{},
		nfts:      bank.NewCollection(),
	}

	for _, tc := range cfg.Tokens {
		eng.ledger(tc.ID)
	}
	// the boosted pair may or may not overlap the farm token list
	stakeLedger := eng.ledger(cfg.Boosted.StakeToken)
	rewardLedger := eng.ledger(cfg.Boosted.RewardToken)

	for _, b := range cfg.Balances {
		amount, err := decimal.NewFromString(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("bad seed balance for %s/%s: %w", b.Token, b.Account, err)
		}
		eng.ledger(b.Token).Mint(b.Account, amount)
	}

	reserve, supply := decimal.Zero, decimal.Zero
	var err error
	if cfg.Boosted.PoolReserve != "" {
		if reserve, err = decimal.NewFromString(cfg.Boosted.PoolReserve); err != nil {
			return nil, fmt.Errorf("bad pool_reserve: %w", err)
		}
	}
	if cfg.Boosted.PoolSupply != "" {
		if supply, err = decimal.NewFromString(cfg.Boosted.PoolSupply); err != nil {
			return nil, fmt.Errorf("bad pool_supply: %w", err)
		}
	}
	eng.pool = bank.NewStaticPool(reserve, supply)
	eng.converter = farm.NewConverter(eng.pool)

	eng.farm = farm.NewTokenFarm(logger, eng.directory, cfg.Owner, cfg.Custody)
	eng.boosted = farm.NewBoostedFarm(logger, stakeLedger, rewardLedger, eng.nfts, cfg.Owner, cfg.Custody)
	eng.minter = farm.NewMinter(logger, eng.ledger(cfg.Minter.FeeToken), eng.nfts,
		cfg.Owner, cfg.Minter.Name, cfg.Minter.Symbol, cfg.Minter.URIPrefix)
	if cfg.Minter.Fee != "" {
		fee, err := decimal.NewFromString(cfg.Minter.Fee)
		if err != nil {
			return nil, fmt.Errorf("bad minting fee: %w", err)
		}
		if err := eng.minter.AdjustFee(cfg.Owner, fee); err != nil {
			return nil, fmt.Errorf("setting minting fee: %w", err)
		}
	}

	for _, tc := range cfg.Tokens {
		if tc.APY > 0 {
			if err := eng.farm.SetAPY(cfg.Owner, tc.ID, tc.APY); err != nil {
				return nil, fmt.Errorf("setting apy for %s: %w", tc.ID, err)
			}
		}
	}

	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		eng.store = st
		if err := eng.restore(context.Background()); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return eng, nil
}

func (e *Engine) ledger(token string) *bank.Ledger {
	if l, ok := e.ledgers[token]; ok {
		return l
	}
	l := bank.NewLedger()
	e.ledgers[token] = l
	e.directory.Add(token, l)
	return l
}

func (e *Engine) restore(ctx context.Context) error {
	snap, err := e.store.LoadTokenFarm(ctx)
	if err != nil {
		return fmt.Errorf("loading farm snapshot: %w", err)
	}
	if snap != nil {
		e.farm.Restore(snap)
		misc.Infof(e.logger, "restored farm state, %d tokens", len(snap.Tokens))
	}
	bsnap, err := e.store.LoadBoostedFarm(ctx)
	if err != nil {
		return fmt.Errorf("loading boosted snapshot: %w", err)
	}
	if bsnap != nil {
		e.boosted.Restore(bsnap)
		misc.Infof(e.logger, "restored boosted state, %d accounts", len(bsnap.Accounts))
	}
	msnap, err := e.store.LoadMinter(ctx)
	if err != nil {
		return fmt.Errorf("loading minter snapshot: %w", err)
	}
	if msnap != nil {
		e.minter.Restore(msnap)
		misc.Infof(e.logger, "restored minter state, last id %d", msnap.LastID)
	}
	// bank balances are the ground truth behind the farm bookkeeping; a
	// snapshot without them would restore claims on money nobody holds
	tokens, nfts, err := e.store.LoadBalances(ctx)
	if err != nil {
		return fmt.Errorf("loading balances: %w", err)
	}
	for token, balances := range tokens {
		e.ledger(token).SetBalances(balances)
	}
	if nfts != nil {
		e.nfts.SetBalances(nfts)
	}
	return nil
}

// persist writes every snapshot plus the backing bank balances. Safe to call
// with no store configured.
func (e *Engine) persist(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveTokenFarm(ctx, e.farm.Snapshot()); err != nil {
		return fmt.Errorf("saving farm snapshot: %w", err)
	}
	if err := e.store.SaveBoostedFarm(ctx, e.boosted.Snapshot()); err != nil {
		return fmt.Errorf("saving boosted snapshot: %w", err)
	}
	if err := e.store.SaveMinter(ctx, e.minter.Snapshot()); err != nil {
		return fmt.Errorf("saving minter snapshot: %w", err)
	}
	balances := make(map[string]map[string]decimal.Decimal, len(e.ledgers))
	for token, l := range e.ledgers {
		balances[token] = l.Balances()
	}
	if err := e.store.SaveBalances(ctx, balances, e.nfts.Balances()); err != nil {
		return fmt.Errorf("saving balances: %w", err)
	}
	return nil
}

func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}
