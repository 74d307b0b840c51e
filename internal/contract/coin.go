// Package contract implements the campus coin token ledger and the reward
// registry with the same semantics as the deployed contracts. The in-process
// versions back the memory chain gateway used by tests and local development,
// and serve as the reference for what the chain enforces on its own: role
// gating, non-negative balances, and write-once activity completion.
package contract

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// Token metadata mirrored from the deployed coin contract.
const (
	TokenName     = "CampusCoin"
	TokenSymbol   = "CPC"
	TokenDecimals = 18
)

// Contract-level failures. The EVM surfaces these as reverts; the memory
// gateway returns them directly.
var (
	ErrNotAdmin            = errors.New("caller is missing admin role")
	ErrNotStudent          = errors.New("account is missing student role")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrZeroAddress         = errors.New("zero address")
	ErrNegativeAmount      = errors.New("amount must not be negative")
)

// Coin is an access-controlled fungible token ledger. An admin set may mint
// and manage the student allow-list; the allow-list itself marks which
// accounts are eligible reward recipients.
type Coin struct {
	mu sync.Mutex

	balances    map[string]*big.Int
	admins      map[string]bool
	students    map[string]bool
	totalSupply *big.Int
}

// NewCoin deploys a fresh ledger. The initial supply is credited to the
// deployer, who also receives the admin role.
func NewCoin(deployer string, initialSupply *big.Int) *Coin {
	c := &Coin{
		balances:    make(map[string]*big.Int),
		admins:      make(map[string]bool),
		students:    make(map[string]bool),
		totalSupply: new(big.Int),
	}
	key := normalize(deployer)
	c.admins[key] = true
	if initialSupply != nil && initialSupply.Sign() > 0 {
		c.balances[key] = new(big.Int).Set(initialSupply)
		c.totalSupply.Set(initialSupply)
	}
	return c
}

// Name returns the token name. Used by the gateway as a liveness probe.
func (c *Coin) Name() string { return TokenName }

// Symbol returns the token symbol.
func (c *Coin) Symbol() string { return TokenSymbol }

// TotalSupply returns the current total supply in base units.
func (c *Coin) TotalSupply() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.totalSupply)
}

// BalanceOf returns the base-unit balance of the account.
func (c *Coin) BalanceOf(account string) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance(account))
}

// IsAdmin reports whether the account holds the admin role.
func (c *Coin) IsAdmin(account string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admins[normalize(account)]
}

// IsStudent reports whether the account is on the student allow-list.
func (c *Coin) IsStudent(account string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.students[normalize(account)]
}

// AddStudent places an account on the student allow-list. Admin only.
func (c *Coin) AddStudent(caller, account string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	key := normalize(account)
	if key == "" {
		return ErrZeroAddress
	}
	c.students[key] = true
	return nil
}

// RemoveStudent drops an account from the allow-list. Admin only.
func (c *Coin) RemoveStudent(caller, account string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	delete(c.students, normalize(account))
	return nil
}

// Mint credits freshly created tokens to the account. Admin only; the
// student allow-list is advisory here, enforced by the reward registry path.
func (c *Coin) Mint(caller, account string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	key := normalize(account)
	if key == "" {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	c.balances[key] = new(big.Int).Add(c.balance(key), amount)
	c.totalSupply.Add(c.totalSupply, amount)
	return nil
}

// Transfer moves tokens between accounts. Fails rather than letting a
// balance go negative.
func (c *Coin) Transfer(caller, to string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := normalize(caller)
	dest := normalize(to)
	if from == "" || dest == "" {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	fromBalance := c.balance(from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientBalance, fromBalance, amount)
	}
	c.balances[from] = new(big.Int).Sub(fromBalance, amount)
	c.balances[dest] = new(big.Int).Add(c.balance(dest), amount)
	return nil
}

// Burn destroys tokens from the caller's own balance.
func (c *Coin) Burn(caller string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := normalize(caller)
	if key == "" {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	balance := c.balance(key)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientBalance, balance, amount)
	}
	c.balances[key] = new(big.Int).Sub(balance, amount)
	c.totalSupply.Sub(c.totalSupply, amount)
	return nil
}

// BurnFrom destroys tokens held by another account. Admin only; this is how
// the authority retires coins that were redeemed off chain.
func (c *Coin) BurnFrom(caller, account string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	key := normalize(account)
	if key == "" {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	balance := c.balance(key)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientBalance, balance, amount)
	}
	c.balances[key] = new(big.Int).Sub(balance, amount)
	c.totalSupply.Sub(c.totalSupply, amount)
	return nil
}

func (c *Coin) balance(account string) *big.Int {
	if b, ok := c.balances[normalize(account)]; ok {
		return b
	}
	return new(big.Int)
}

func (c *Coin) requireAdmin(caller string) error {
	if !c.admins[normalize(caller)] {
		return ErrNotAdmin
	}
	return nil
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
