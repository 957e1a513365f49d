package farm

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/umi-digital/umi-farmd/internal/lib/bank"
	"github.com/umi-digital/umi-farmd/internal/lib/misc"
)

// FeeShare is one recipient of the minting fee and its share in percentage
// points. The shares of one mint call are independent cuts of the flat fee,
// they do not have to sum to 100.
type FeeShare struct {
	Recipient string
	Percent   int64
}

type nftInfo struct {
	supply  uint64
	creator string
}

// Minter issues new booster categories against a flat fee in the fee token,
// split across the recipients the caller names. Every mint creates a fresh
// sequential category id.
type Minter struct {
	logger    *slog.Logger
	feeToken  bank.Token
	nfts      bank.Issuer
	owner     string
	name      string
	symbol    string

	mu        sync.RWMutex
	paused    bool
	fee       decimal.Decimal
	uriPrefix string
	lastID    uint64
	infos     map[uint64]*nftInfo
}

// DefaultMintingFee is charged per mint call until the owner adjusts it.
var DefaultMintingFee = decimal.NewFromInt(100)

func NewMinter(logger *slog.Logger, feeToken bank.Token, nfts bank.Issuer, owner, name, symbol, uriPrefix string) *Minter {
	return &Minter{
		logger:    logger,
		feeToken:  feeToken,
		nfts:      nfts,
		owner:     owner,
		name:      name,
		symbol:    symbol,
		fee:       DefaultMintingFee,
		uriPrefix: uriPrefix,
		infos:     map[uint64]*nftInfo{},
	}
}

func (m *Minter) Name() string   { return m.name }
func (m *Minter) Symbol() string { return m.symbol }

// Mint issues quantity units of a brand-new category to the given account,
// charging the caller the flat minting fee split across the fee recipients.
// Returns the new category id. The id counter only advances when every fee
// transfer succeeds.
func (m *Minter) Mint(caller, to string, fees []FeeShare, quantity uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused {
		return 0, ErrPaused
	}
	if quantity == 0 {
		return 0, ErrAmountNotPositive
	}
	hundred := decimal.NewFromInt(100)
	shares := make([]decimal.Decimal, len(fees))
	for i, f := range fees {
		if f.Recipient == "" {
			return 0, ErrNoFeeRecipient
		}
		if f.Percent <= 0 {
			return 0, ErrBadFeePercent
		}
		share, _ := m.fee.Mul(decimal.NewFromInt(f.Percent)).QuoRem(hundred, amountPlaces)
		if !share.IsPositive() {
			return 0, ErrFeeTooSmall
		}
		shares[i] = share
	}
	for i, f := range fees {
		if err := m.feeToken.Transfer(caller, f.Recipient, shares[i]); err != nil {
			// refund the shares already paid so the whole call is a no-op
			for j := 0; j < i; j++ {
				_ = m.feeToken.Transfer(fees[j].Recipient, caller, shares[j])
			}
			return 0, err
		}
	}

	id := m.lastID + 1
	m.lastID = id
	m.nfts.Mint(to, id, quantity)
	m.infos[id] = &nftInfo{supply: quantity, creator: caller}
	misc.Infof(m.logger, "minted nft id:%d quantity:%d to:%s creator:%s", id, quantity, to, caller)
	return id, nil
}

// CurrentID returns the most recently issued category id, 0 before any mint.
func (m *Minter) CurrentID() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastID
}

func (m *Minter) TotalSupply(id uint64) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if info := m.infos[id]; info != nil {
		return info.supply
	}
	return 0
}

// Creator returns the account that minted the category, "" when it was never
// issued.
func (m *Minter) Creator(id uint64) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if info := m.infos[id]; info != nil {
		return info.creator
	}
	return ""
}

// NFTInfo returns the issued supply and creator of a category in one read.
func (m *Minter) NFTInfo(id uint64) (uint64, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if info := m.infos[id]; info != nil {
		return info.supply, info.creator
	}
	return 0, ""
}

func (m *Minter) Exists(id uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.infos[id] != nil
}

// OwnerOf reports whether the account currently holds any units of the
// category.
func (m *Minter) OwnerOf(account string, id uint64) bool {
	return m.nfts.BalanceOf(account, id) > 0
}

// URI returns the metadata location for a category, prefix + decimal id.
func (m *Minter) URI(id uint64) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uriPrefix + strconv.FormatUint(id, 10)
}

func (m *Minter) URIPrefix() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uriPrefix
}

func (m *Minter) SetURIPrefix(caller, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return ErrNotOwner
	}
	m.uriPrefix = prefix
	return nil
}

func (m *Minter) MintingFee() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fee
}

// AdjustFee sets the flat fee charged per mint call. A fee so small that a
// recipient's share truncates to zero makes Mint fail rather than issue for
// free.
func (m *Minter) AdjustFee(caller string, fee decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return ErrNotOwner
	}
	if fee.Sign() < 0 {
		return ErrAmountNotPositive
	}
	m.fee = fee
	return nil
}

func (m *Minter) Pause(caller string) error {
	return m.setPaused(caller, true)
}

func (m *Minter) Unpause(caller string) error {
	return m.setPaused(caller, false)
}

func (m *Minter) setPaused(caller string, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return ErrNotOwner
	}
	m.paused = paused
	misc.Infof(m.logger, "minter paused:%t", paused)
	return nil
}

func (m *Minter) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

func (m *Minter) Owner() string { return m.owner }
