package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/umi-digital/umi-farmd/internal/lib/farm"
)

// Store persists farm snapshots in an embedded sqlite database. Every Save
// writes a complete snapshot in one transaction, so a crash mid-save leaves
// the previous snapshot intact.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite is single-writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout=5000;")

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmt := `
CREATE TABLE IF NOT EXISTS farm_state (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS farm_tokens (
  id TEXT PRIMARY KEY,
  ord INTEGER NOT NULL,
  apy INTEGER NOT NULL,
  total_staked TEXT NOT NULL,
  total_funding TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS farm_funding (
  token TEXT NOT NULL,
  account TEXT NOT NULL,
  amount TEXT NOT NULL,
  PRIMARY KEY (token, account)
);

CREATE TABLE IF NOT EXISTS farm_stake_ids (
  token TEXT NOT NULL,
  account TEXT NOT NULL,
  last_stake_id INTEGER NOT NULL,
  PRIMARY KEY (token, account)
);

CREATE TABLE IF NOT EXISTS farm_positions (
  token TEXT NOT NULL,
  account TEXT NOT NULL,
  stake_id INTEGER NOT NULL,
  principal TEXT NOT NULL,
  opened_at INTEGER NOT NULL,
  requested_at INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (token, account, stake_id)
);

CREATE TABLE IF NOT EXISTS boosted_state (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS boosted_funding (
  account TEXT PRIMARY KEY,
  amount TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS boosted_bonuses (
  category INTEGER PRIMARY KEY,
  percent INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS boosted_accounts (
  account TEXT PRIMARY KEY,
  balance TEXT NOT NULL,
  stake_date INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS boosted_holdings (
  account TEXT NOT NULL,
  category INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  ord INTEGER NOT NULL,
  PRIMARY KEY (account, category)
);

CREATE TABLE IF NOT EXISTS ledger_balances (
  token TEXT NOT NULL,
  account TEXT NOT NULL,
  amount TEXT NOT NULL,
  PRIMARY KEY (token, account)
);

CREATE TABLE IF NOT EXISTS nft_balances (
  account TEXT NOT NULL,
  category INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  PRIMARY KEY (account, category)
);

CREATE TABLE IF NOT EXISTS minter_state (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS minter_nfts (
  id INTEGER PRIMARY KEY,
  supply INTEGER NOT NULL,
  creator TEXT NOT NULL
);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// SaveTokenFarm replaces the stored multi-position ledger snapshot.
func (s *Store) SaveTokenFarm(ctx context.Context, snap *farm.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"farm_state", "farm_tokens", "farm_funding", "farm_stake_ids", "farm_positions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO farm_state (key, value) VALUES ('paused', ?)", boolValue(snap.Paused)); err != nil {
		return err
	}
	for ord, t := range snap.Tokens {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO farm_tokens (id, ord, apy, total_staked, total_funding) VALUES (?, ?, ?, ?, ?)",
			t.ID, ord, t.APY, t.TotalStaked.String(), t.TotalFunding.String()); err != nil {
			return err
		}
		for _, e := range t.Funding {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO farm_funding (token, account, amount) VALUES (?, ?, ?)",
				t.ID, e.Account, e.Amount.String()); err != nil {
				return err
			}
		}
		for _, e := range t.StakeIDs {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO farm_stake_ids (token, account, last_stake_id) VALUES (?, ?, ?)",
				t.ID, e.Account, e.LastStakeID); err != nil {
				return err
			}
		}
		for _, p := range t.Positions {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO farm_positions (token, account, stake_id, principal, opened_at, requested_at) VALUES (?, ?, ?, ?, ?, ?)",
				t.ID, p.Account, p.StakeID, p.Principal.String(), p.OpenedAt, p.RequestedAt); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// LoadTokenFarm reads the stored snapshot. Returns nil when nothing has been
// saved yet.
func (s *Store) LoadTokenFarm(ctx context.Context) (*farm.Snapshot, error) {
	var pausedStr string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM farm_state WHERE key = 'paused'").Scan(&pausedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap := &farm.Snapshot{Paused: pausedStr == "1"}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, apy, total_staked, total_funding FROM farm_tokens ORDER BY ord")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t                    farm.TokenSnapshot
			stakedStr, fundedStr string
		)
		if err := rows.Scan(&t.ID, &t.APY, &stakedStr, &fundedStr); err != nil {
			return nil, err
		}
		if t.TotalStaked, err = decimal.NewFromString(stakedStr); err != nil {
			return nil, fmt.Errorf("bad total_staked for token %s: %w", t.ID, err)
		}
		if t.TotalFunding, err = decimal.NewFromString(fundedStr); err != nil {
			return nil, fmt.Errorf("bad total_funding for token %s: %w", t.ID, err)
		}
		snap.Tokens = append(snap.Tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range snap.Tokens {
		t := &snap.Tokens[i]
		if t.Funding, err = s.loadFunding(ctx, t.ID); err != nil {
			return nil, err
		}
		if t.StakeIDs, err = s.loadStakeIDs(ctx, t.ID); err != nil {
			return nil, err
		}
		if t.Positions, err = s.loadPositions(ctx, t.ID); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (s *Store) loadFunding(ctx context.Context, token string) ([]farm.FundingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT account, amount FROM farm_funding WHERE token = ? ORDER BY account", token)
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

func (s *Store) loadStakeIDs(ctx context.Context, token string) ([]farm.StakeIDEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT account, last_stake_id FROM farm_stake_ids WHERE token = ? ORDER BY account", token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []farm.StakeIDEntry
	for rows.Next() {
		var e farm.StakeIDEntry
		if err := rows.Scan(&e.Account, &e.LastStakeID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) loadPositions(ctx context.Context, token string) ([]farm.PositionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT account, stake_id, principal, opened_at, requested_at FROM farm_positions WHERE token = ? ORDER BY account, stake_id", token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []farm.PositionSnapshot
	for rows.Next() {
		var (
			p   farm.PositionSnapshot
			amt string
		)
		if err := rows.Scan(&p.Account, &p.StakeID, &amt, &p.OpenedAt, &p.RequestedAt); err != nil {
			return nil, err
		}
		if p.Principal, err = decimal.NewFromString(amt); err != nil {
			return nil, err
		}
		entries = append(entries, p)
	}
	return entries, rows.Err()
}

func boolValue(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
