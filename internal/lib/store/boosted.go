package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/umi-digital/umi-farmd/internal/lib/farm"
)

// SaveBoostedFarm replaces the stored boosted ledger snapshot.
func (s *Store) SaveBoostedFarm(ctx context.Context, snap *farm.BoostedSnapshot) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"boosted_state", "boosted_funding", "boosted_bonuses", "boosted_accounts", "boosted_holdings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	state := map[string]string{
		"paused":        boolValue(snap.Paused),
		"base_apy":      fmt.Sprintf("%d", snap.BaseAPY),
		"total_staked":  snap.TotalStaked.String(),
		"total_funding": snap.TotalFunding.String(),
	}
	for key, value := range state {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO boosted_state (key, value) VALUES (?, ?)", key, value); err != nil {
			return err
		}
	}
	for _, e := range snap.Funding {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO boosted_funding (account, amount) VALUES (?, ?)",
			e.Account, e.Amount.String()); err != nil {
			return err
		}
	}
	for _, b := range snap.Bonuses {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO boosted_bonuses (category, percent) VALUES (?, ?)",
			b.Category, b.Percent); err != nil {
			return err
		}
	}
	for _, a := range snap.Accounts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO boosted_accounts (account, balance, stake_date) VALUES (?, ?, ?)",
			a.Account, a.Balance.String(), a.StakeDate); err != nil {
			return err
		}
		for ord, h := range a.Holdings {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO boosted_holdings (account, category, quantity, ord) VALUES (?, ?, ?, ?)",
				a.Account, h.Category, h.Quantity, ord); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// LoadBoostedFarm reads the stored boosted snapshot, nil when never saved.
func (s *Store) LoadBoostedFarm(ctx context.Context) (*farm.BoostedSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM boosted_state")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	state := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		state[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(state) == 0 {
		return nil, nil
	}

	snap := &farm.BoostedSnapshot{}
	snap.Paused = state["paused"] == "1"
	if snap.BaseAPY, err = strconv.ParseInt(state["base_apy"], 10, 64); err != nil {
		return nil, fmt.Errorf("bad base_apy: %w", err)
	}
	if snap.TotalStaked, err = decimal.NewFromString(state["total_staked"]); err != nil {
		return nil, fmt.Errorf("bad total_staked: %w", err)
	}
	if snap.TotalFunding, err = decimal.NewFromString(state["total_funding"]); err != nil {
		return nil, fmt.Errorf("bad total_funding: %w", err)
	}

	if snap.Funding, err = s.loadBoostedFunding(ctx); err != nil {
		return nil, err
	}
	if snap.Bonuses, err = s.loadBonuses(ctx); err != nil {
		return nil, err
	}
	if snap.Accounts, err = s.loadBoostedAccounts(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) loadBoostedFunding(ctx context.Context) ([]farm.FundingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT account, amount FROM boosted_funding ORDER BY account")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []farm.FundingEntry
	for rows.Next() {
		var (
			e   farm.FundingEntry
			amt string
		)
		if err := rows.Scan(&e.Account, &amt); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) loadBonuses(ctx context.Context) ([]farm.BonusEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category, percent FROM boosted_bonuses ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []farm.BonusEntry
	for rows.Next() {
		var e farm.BonusEntry
		if err := rows.Scan(&e.Category, &e.Percent); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) loadBoostedAccounts(ctx context.Context) ([]farm.BoostedAccountSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT account, balance, stake_date FROM boosted_accounts ORDER BY account")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []farm.BoostedAccountSnapshot
	for rows.Next() {
		var (
			a   farm.BoostedAccountSnapshot
			amt string
		)
		if err := rows.Scan(&a.Account, &amt, &a.StakeDate); err != nil {
			return nil, err
		}
		if a.Balance, err = decimal.NewFromString(amt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].Holdings, err = s.loadHoldings(ctx, accounts[i].Account); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

func (s *Store) loadHoldings(ctx context.Context, account string) ([]farm.HoldingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT category, quantity FROM boosted_holdings WHERE account = ? ORDER BY ord", account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []farm.HoldingEntry
	for rows.Next() {
		var e farm.HoldingEntry
		if err := rows.Scan(&e.Category, &e.Quantity); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
