package farm

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Snapshot types are a flat, storage-friendly copy of ledger state. They
// exist for the persistence layer; mutating a snapshot never touches the farm
// it came from.

type PositionSnapshot struct {
	Account     string
	StakeID     uint64
	Principal   decimal.Decimal
	OpenedAt    int64
	RequestedAt int64
}

type FundingEntry struct {
	Account string
	Amount  decimal.Decimal
}

type StakeIDEntry struct {
	Account     string
	LastStakeID uint64
}

type TokenSnapshot struct {
	ID           string
	APY          int64 // 0 = never configured
	TotalStaked  decimal.Decimal
	TotalFunding decimal.Decimal
	Funding      []FundingEntry
	StakeIDs     []StakeIDEntry
	Positions    []PositionSnapshot
}

type Snapshot struct {
	Paused bool
	Tokens []TokenSnapshot
}

func (f *TokenFarm) Snapshot() *Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap := &Snapshot{Paused: f.paused}
	for _, id := range f.order {
		ts := f.state[id]
		tsnap := TokenSnapshot{
			ID:           id,
			APY:          ts.apy,
			TotalStaked:  ts.totalStaked,
			TotalFunding: ts.totalFunding,
		}
		for acct, amt := range ts.funding {
			tsnap.Funding = append(tsnap.Funding, FundingEntry{Account: acct, Amount: amt})
		}
		for name, acct := range ts.accounts {
			tsnap.StakeIDs = append(tsnap.StakeIDs, StakeIDEntry{Account: name, LastStakeID: acct.lastStakeID})
			for sid, pos := range acct.positions {
				tsnap.Positions = append(tsnap.Positions, PositionSnapshot{
					Account:     name,
					StakeID:     sid,
					Principal:   pos.principal,
					OpenedAt:    pos.openedAt,
					RequestedAt: pos.requestedAt,
				})
			}
		}
		sortByAccount(tsnap.Funding, func(e FundingEntry) string { return e.Account })
		sortByAccount(tsnap.StakeIDs, func(e StakeIDEntry) string { return e.Account })
		slices.SortFunc(tsnap.Positions, func(a, b PositionSnapshot) int {
			if a.Account != b.Account {
				return strings.Compare(a.Account, b.Account)
			}
			return int(a.StakeID) - int(b.StakeID)
		})
		snap.Tokens = append(snap.Tokens, tsnap)
	}
	return snap
}

// Restore replaces all ledger state with the snapshot's. Used at startup.
func (f *TokenFarm) Restore(snap *Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = snap.Paused
	f.state = map[string]*tokenState{}
	f.order = nil
	for _, tsnap := range snap.Tokens {
		ts := f.ensure(tsnap.ID)
		f.order = append(f.order, tsnap.ID)
		ts.apy = tsnap.APY
		ts.totalStaked = tsnap.TotalStaked
		ts.totalFunding = tsnap.TotalFunding
		for _, e := range tsnap.Funding {
			ts.funding[e.Account] = e.Amount
		}
		for _, e := range tsnap.StakeIDs {
			ts.account(e.Account).lastStakeID = e.LastStakeID
		}
		for _, p := range tsnap.Positions {
			ts.account(p.Account).positions[p.StakeID] = &position{
				principal:   p.Principal,
				openedAt:    p.OpenedAt,
				requestedAt: p.RequestedAt,
			}
		}
	}
}

type HoldingEntry struct {
	Category uint64
	Quantity uint64
}

type BoostedAccountSnapshot struct {
	Account   string
	Balance   decimal.Decimal
	StakeDate int64
	Holdings  []HoldingEntry // in enumeration (first-deposit) order
}

type BonusEntry struct {
	Category uint64
	Percent  int64
}

type BoostedSnapshot struct {
	Paused       bool
	BaseAPY      int64
	TotalStaked  decimal.Decimal
	TotalFunding decimal.Decimal
	Funding      []FundingEntry
	Bonuses      []BonusEntry
	Accounts     []BoostedAccountSnapshot
}

func (f *BoostedFarm) Snapshot() *BoostedSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap := &BoostedSnapshot{
		Paused:       f.paused,
		BaseAPY:      f.baseAPY,
		TotalStaked:  f.totalStaked,
		TotalFunding: f.totalFunding,
	}
	for acct, amt := range f.funding {
		snap.Funding = append(snap.Funding, FundingEntry{Account: acct, Amount: amt})
	}
	sortByAccount(snap.Funding, func(e FundingEntry) string { return e.Account })
	for id, pct := range f.bonuses {
		snap.Bonuses = append(snap.Bonuses, BonusEntry{Category: id, Percent: pct})
	}
	slices.SortFunc(snap.Bonuses, func(a, b BonusEntry) int { return int(a.Category) - int(b.Category) })
	for name, acct := range f.accounts {
		asnap := BoostedAccountSnapshot{
			Account:   name,
			Balance:   acct.balance,
			StakeDate: acct.stakeDate,
		}
		for _, id := range acct.ids {
			asnap.Holdings = append(asnap.Holdings, HoldingEntry{Category: id, Quantity: acct.holdings[id]})
		}
		snap.Accounts = append(snap.Accounts, asnap)
	}
	sortByAccount(snap.Accounts, func(e BoostedAccountSnapshot) string { return e.Account })
	return snap
}

func (f *BoostedFarm) Restore(snap *BoostedSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = snap.Paused
	f.baseAPY = snap.BaseAPY
	f.totalStaked = snap.TotalStaked
	f.totalFunding = snap.TotalFunding
	f.funding = map[string]decimal.Decimal{}
	for _, e := range snap.Funding {
		f.funding[e.Account] = e.Amount
	}
	f.bonuses = map[uint64]int64{}
	for _, e := range snap.Bonuses {
		f.bonuses[e.Category] = e.Percent
	}
	f.accounts = map[string]*boostedAccount{}
	for _, asnap := range snap.Accounts {
		acct := &boostedAccount{
			balance:   asnap.Balance,
			stakeDate: asnap.StakeDate,
			holdings:  map[uint64]uint64{},
		}
		for _, h := range asnap.Holdings {
			acct.holdings[h.Category] = h.Quantity
			acct.ids = append(acct.ids, h.Category)
		}
		f.accounts[asnap.Account] = acct
	}
}

type MintedNFTSnapshot struct {
	ID      uint64
	Supply  uint64
	Creator string
}

type MinterSnapshot struct {
	Paused    bool
	Fee       decimal.Decimal
	URIPrefix string
	LastID    uint64
	NFTs      []MintedNFTSnapshot
}

func (m *Minter) Snapshot() *MinterSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := &MinterSnapshot{
		Paused:    m.paused,
		Fee:       m.fee,
		URIPrefix: m.uriPrefix,
		LastID:    m.lastID,
	}
	for id, info := range m.infos {
		snap.NFTs = append(snap.NFTs, MintedNFTSnapshot{ID: id, Supply: info.supply, Creator: info.creator})
	}
	slices.SortFunc(snap.NFTs, func(a, b MintedNFTSnapshot) int { return int(a.ID) - int(b.ID) })
	return snap
}

func (m *Minter) Restore(snap *MinterSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = snap.Paused
	m.fee = snap.Fee
	m.uriPrefix = snap.URIPrefix
	m.lastID = snap.LastID
	m.infos = map[uint64]*nftInfo{}
	for _, n := range snap.NFTs {
		m.infos[n.ID] = &nftInfo{supply: n.Supply, creator: n.Creator}
	}
}

func sortByAccount[T any](entries []T, key func(T) string) {
	slices.SortFunc(entries, func(a, b T) int { return strings.Compare(key(a), key(b)) })
}
