package bank

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrExceedsBalance  = errors.New("transfer amount exceeds balance")
	ErrNegativeAmount  = errors.New("transfer amount is negative")
	ErrLengthMismatch  = errors.New("ids and quantities length mismatch")
	ErrNotApproved     = errors.New("caller is not owner nor approved")
	ErrInsufficientNFT = errors.New("insufficient token quantity for transfer")
)

// Token is the value-transfer capability of a fungible asset. A failed
// transfer must leave both balances untouched; callers treat any error as an
// abort of the whole surrounding operation.
type Token interface {
	Transfer(from, to string, amount decimal.Decimal) error
	BalanceOf(account string) decimal.Decimal
}

// Registry resolves an asset identifier to its transfer capability. An
// unknown identifier means the caller supplied something that is not a token
// contract reference.
type Registry interface {
	Token(id string) (Token, bool)
}

// NFT moves quantities of categorized tokens between accounts, with
// holder-or-approved-operator authorization on the source account.
type NFT interface {
	TransferBatch(operator, from, to string, ids []uint64, quantities []uint64) error
	BalanceOf(account string, id uint64) uint64
}

// Issuer is the issuance side of an NFT backend: it creates new quantities
// rather than moving existing ones.
type Issuer interface {
	Mint(account string, id uint64, quantity uint64)
	BalanceOf(account string, id uint64) uint64
}

// Pool exposes the live reserve and share supply of an external liquidity
// pool. Read-only.
type Pool interface {
	Reserve() decimal.Decimal
	TotalSupply() decimal.Decimal
}

// Ledger is an in-process Token used in standalone mode and in tests.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

func NewLedger() *Ledger {
	return &Ledger{balances: map[string]decimal.Decimal{}}
}

// Mint credits an account out of thin air. Test/bootstrap helper.
func (l *Ledger) Mint(account string, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] = l.balance(account).Add(amount)
}

func (l *Ledger) Transfer(from, to string, amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBal := l.balance(from)
	if fromBal.LessThan(amount) {
		return ErrExceedsBalance
	}
	l.balances[from] = fromBal.Sub(amount)
	l.balances[to] = l.balance(to).Add(amount)
	return nil
}

func (l *Ledger) BalanceOf(account string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account)
}

// Balances returns a copy of every account balance.
func (l *Ledger) Balances() map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(l.balances))
	for acct, b := range l.balances {
		out[acct] = b
	}
	return out
}

// SetBalances replaces the ledger contents wholesale. Snapshot-restore helper.
func (l *Ledger) SetBalances(balances map[string]decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = make(map[string]decimal.Decimal, len(balances))
	for acct, b := range balances {
		l.balances[acct] = b
	}
}

func (l *Ledger) balance(account string) decimal.Decimal {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return decimal.Zero
}

// Directory is an in-process Registry.
type Directory struct {
	mu     sync.Mutex
	tokens map[string]Token
}

func NewDirectory() *Directory {
	return &Directory{tokens: map[string]Token{}}
}

func (d *Directory) Add(id string, t Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens[id] = t
}

func (d *Directory) Token(id string) (Token, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tokens[id]
	return t, ok
}
