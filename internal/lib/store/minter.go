package store

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/umi-digital/umi-farmd/internal/lib/farm"
)

// SaveMinter replaces the stored minter snapshot.
func (s *Store) SaveMinter(ctx context.Context, snap *farm.MinterSnapshot) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"minter_state", "minter_nfts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	state := map[string]string{
		"paused":     boolValue(snap.Paused),
		"fee":        snap.Fee.String(),
		"uri_prefix": snap.URIPrefix,
		"last_id":    strconv.FormatUint(snap.LastID, 10),
	}
	for key, value := range state {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO minter_state (key, value) VALUES (?, ?)", key, value); err != nil {
			return err
		}
	}
	for _, n := range snap.NFTs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO minter_nfts (id, supply, creator) VALUES (?, ?, ?)",
			n.ID, n.Supply, n.Creator); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadMinter reads the stored minter snapshot, nil when never saved.
func (s *Store) LoadMinter(ctx context.Context) (*farm.MinterSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM minter_state")
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

	fee, err := decimal.NewFromString(state["fee"])
	if err != nil {
		return nil, err
	}
	lastID, err := strconv.ParseUint(state["last_id"], 10, 64)
	if err != nil {
		return nil, err
	}
	snap := &farm.MinterSnapshot{
		Paused:    state["paused"] == "1",
		Fee:       fee,
		URIPrefix: state["uri_prefix"],
		LastID:    lastID,
	}

	nftRows, err := s.db.QueryContext(ctx, "SELECT id, supply, creator FROM minter_nfts ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer nftRows.Close()
	for nftRows.Next() {
		var n farm.MintedNFTSnapshot
		if err := nftRows.Scan(&n.ID, &n.Supply, &n.Creator); err != nil {
			return nil, err
		}
		snap.NFTs = append(snap.NFTs, n)
	}
	if err := nftRows.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}
