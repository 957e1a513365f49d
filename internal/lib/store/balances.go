package store

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

// SaveBalances replaces the stored bank backend state: every fungible ledger
// balance keyed by token and account, and every NFT holding keyed by account
// and category. The farms only snapshot their own bookkeeping, so without
// this a restarted process would claim principal its custody account no
// longer holds.
func (s *Store) SaveBalances(ctx context.Context, tokens map[string]map[string]decimal.Decimal, nfts map[string]map[uint64]uint64) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"ledger_balances", "nft_balances"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	for token, accounts := range tokens {
		for account, amount := range accounts {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO ledger_balances (token, account, amount) VALUES (?, ?, ?)",
				token, account, amount.String()); err != nil {
				return err
			}
		}
	}
	for account, holdings := range nfts {
		for category, quantity := range holdings {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO nft_balances (account, category, quantity) VALUES (?, ?, ?)",
				account, category, quantity); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// LoadBalances reads the stored bank backend state. Both maps are nil when
// nothing has been saved yet.
func (s *Store) LoadBalances(ctx context.Context) (map[string]map[string]decimal.Decimal, map[string]map[uint64]uint64, error) {
	var tokens map[string]map[string]decimal.Decimal
	rows, err := s.db.QueryContext(ctx, "SELECT token, account, amount FROM ledger_balances")
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var token, account, amountStr string
		if err := rows.Scan(&token, &account, &amountStr); err != nil {
			return nil, nil, err
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, nil, err
		}
		if tokens == nil {
			tokens = map[string]map[string]decimal.Decimal{}
		}
		if tokens[token] == nil {
			tokens[token] = map[string]decimal.Decimal{}
		}
		tokens[token][account] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var nfts map[string]map[uint64]uint64
	nftRows, err := s.db.QueryContext(ctx, "SELECT account, category, quantity FROM nft_balances")
	if err != nil {
		return nil, nil, err
	}
	defer nftRows.Close()
	for nftRows.Next() {
		var (
			account            string
			category, quantity uint64
		)
		if err := nftRows.Scan(&account, &category, &quantity); err != nil {
			return nil, nil, err
		}
		if nfts == nil {
			nfts = map[string]map[uint64]uint64{}
		}
		if nfts[account] == nil {
			nfts[account] = map[uint64]uint64{}
		}
		nfts[account][category] = quantity
	}
	if err := nftRows.Err(); err != nil {
		return nil, nil, err
	}
	return tokens, nfts, nil
}
