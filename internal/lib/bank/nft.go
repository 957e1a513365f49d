package bank

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Collection is an in-process NFT backend with per-holder operator approvals.
type Collection struct {
	mu        sync.Mutex
	balances  map[string]map[uint64]uint64
	operators map[string]map[string]bool
}

func NewCollection() *Collection {
	return &Collection{
		balances:  map[string]map[uint64]uint64{},
		operators: map[string]map[string]bool{},
	}
}

// Mint credits quantity of the given category to an account.
func (c *Collection) Mint(account string, id uint64, quantity uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credit(account, id, quantity)
}

// SetApprovalForAll lets holder authorize (or revoke) operator to move any of
// holder's tokens.
func (c *Collection) SetApprovalForAll(holder, operator string, approved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops := c.operators[holder]
	if ops == nil {
		ops = map[string]bool{}
		c.operators[holder] = ops
	}
	ops[operator] = approved
}

func (c *Collection) TransferBatch(operator, from, to string, ids []uint64, quantities []uint64) error {
	if len(ids) != len(quantities) {
		return ErrLengthMismatch
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if operator != from && !c.operators[from][operator] {
		return ErrNotApproved
	}
	// validate the whole batch before moving anything
	for i, id := range ids {
		if c.balances[from][id] < quantities[i] {
			return ErrInsufficientNFT
		}
	}
	for i, id := range ids {
		if quantities[i] == 0 {
			continue
		}
		c.balances[from][id] -= quantities[i]
		c.credit(to, id, quantities[i])
	}
	return nil
}

func (c *Collection) BalanceOf(account string, id uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[account][id]
}

// Balances returns a copy of every holder's per-category quantities. Zero
// entries are dropped.
func (c *Collection) Balances() map[string]map[uint64]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]map[uint64]uint64{}
	for acct, bal := range c.balances {
		for id, qty := range bal {
			if qty == 0 {
				continue
			}
			m := out[acct]
			if m == nil {
				m = map[uint64]uint64{}
				out[acct] = m
			}
			m[id] = qty
		}
	}
	return out
}

// SetBalances replaces the collection contents wholesale. Snapshot-restore
// helper.
func (c *Collection) SetBalances(balances map[string]map[uint64]uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances = map[string]map[uint64]uint64{}
	for acct, bal := range balances {
		for id, qty := range bal {
			c.credit(acct, id, qty)
		}
	}
}

func (c *Collection) credit(account string, id uint64, quantity uint64) {
	bal := c.balances[account]
	if bal == nil {
		bal = map[uint64]uint64{}
		c.balances[account] = bal
	}
	bal[id] += quantity
}

// StaticPool is an in-process Pool whose reserves are set administratively.
type StaticPool struct {
	mu      sync.Mutex
	reserve decimal.Decimal
	supply  decimal.Decimal
}

func NewStaticPool(reserve, supply decimal.Decimal) *StaticPool {
	return &StaticPool{reserve: reserve, supply: supply}
}

func (p *StaticPool) SetReserves(reserve, supply decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reserve, p.supply = reserve, supply
}

func (p *StaticPool) Reserve() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserve
}

func (p *StaticPool) TotalSupply() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.supply
}
