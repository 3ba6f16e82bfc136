package stub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"holder-roles/internal/domain"
)

// ErrUnavailable is returned by injected chain failures.
var ErrUnavailable = errors.New("stub: upstream unavailable")

// Wallet is the canned on-chain state of one address.
type Wallet struct {
	NFTs     []domain.NFT
	Balances map[string]decimal.Decimal // by mint
	LastTx   string
}

// Chain implements wallet queries from in-memory wallets.
// Safe for concurrent use.
type Chain struct {
	mu      sync.Mutex
	wallets map[string]*Wallet

	// Failures still to inject, by owner.
	nftFailures     map[string]int
	balanceFailures map[string]int
	lastTxFailures  map[string]bool

	calls    map[string]int
	delay    time.Duration
	inFlight int
	peak     int
}

// NewChain creates an empty stub chain.
func NewChain() *Chain {
	return &Chain{
		wallets:         make(map[string]*Wallet),
		nftFailures:     make(map[string]int),
		balanceFailures: make(map[string]int),
		lastTxFailures:  make(map[string]bool),
		calls:           make(map[string]int),
	}
}

// SetWallet replaces the state of owner.
func (c *Chain) SetWallet(owner string, w *Wallet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallets[owner] = w
}

// FailNFTAccounts makes the next n NFT queries of owner fail.
func (c *Chain) FailNFTAccounts(owner string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nftFailures[owner] = n
}

// FailTokenBalance makes the next n balance queries of owner fail.
func (c *Chain) FailTokenBalance(owner string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balanceFailures[owner] = n
}

// FailLastTransaction makes every fingerprint query of owner fail.
func (c *Chain) FailLastTransaction(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastTxFailures[owner] = true
}

// SetDelay makes every call sleep for d.
func (c *Chain) SetDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

// Calls returns the number of calls made to method.
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Peak returns the highest number of concurrent calls observed.
func (c *Chain) Peak() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peak
}

func (c *Chain) enter(ctx context.Context, method string) {
	c.mu.Lock()
	c.calls[method]++
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	delay := c.delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}
}

func (c *Chain) exit() {
	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
}

// NFTAccounts returns the canned NFTs of owner.
func (c *Chain) NFTAccounts(ctx context.Context, owner string) ([]domain.NFT, error) {
	c.enter(ctx, "NFTAccounts")
	defer c.exit()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nftFailures[owner] > 0 {
		c.nftFailures[owner]--
		return nil, ErrUnavailable
	}
	w, ok := c.wallets[owner]
	if !ok {
		return nil, nil
	}
	out := make([]domain.NFT, len(w.NFTs))
	copy(out, w.NFTs)
	return out, nil
}

// TokenBalance returns the canned balance of owner for mint.
func (c *Chain) TokenBalance(ctx context.Context, owner, mint string) (decimal.Decimal, error) {
	c.enter(ctx, "TokenBalance")
	defer c.exit()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.balanceFailures[owner] > 0 {
		c.balanceFailures[owner]--
		return decimal.Zero, ErrUnavailable
	}
	w, ok := c.wallets[owner]
	if !ok {
		return decimal.Zero, nil
	}
	return w.Balances[mint], nil
}

// LastTransaction returns the canned fingerprint of address.
func (c *Chain) LastTransaction(ctx context.Context, address string) (string, error) {
	c.enter(ctx, "LastTransaction")
	defer c.exit()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastTxFailures[address] {
		return "", ErrUnavailable
	}
	w, ok := c.wallets[address]
	if !ok {
		return "", nil
	}
	return w.LastTx, nil
}
