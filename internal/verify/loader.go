package verify

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"holder-roles/internal/concurrency"
	"holder-roles/internal/domain"
	"holder-roles/internal/observability"
)

// ChainQuery is the on-chain view consumed by the loader.
type ChainQuery interface {
	// NFTAccounts returns every NFT held by owner with its update authority and metadata URI.
	NFTAccounts(ctx context.Context, owner string) ([]domain.NFT, error)

	// TokenBalance returns owner's balance of mint, normalized by the mint decimals.
	TokenBalance(ctx context.Context, owner, mint string) (decimal.Decimal, error)

	// LastTransaction returns the signature of the most recent transaction touching
	// address, or "" if there is none.
	LastTransaction(ctx context.Context, address string) (string, error)
}

// MetadataFetcher resolves the off-chain attributes of an NFT.
type MetadataFetcher interface {
	Fetch(ctx context.Context, uri string) ([]domain.Attribute, error)
}

// Default loader configuration.
const (
	DefaultRPCConcurrency      = 5
	DefaultMetadataConcurrency = 25
)

// Chain query names used for logging and metrics.
const (
	methodNFTAccounts     = "nft_accounts"
	methodTokenBalance    = "token_balance"
	methodLastTransaction = "last_transaction"
)

// LoaderOptions configures a WalletLoader.
type LoaderOptions struct {
	Chain    ChainQuery
	Metadata MetadataFetcher

	// Limiter is the process-wide RPC limiter shared by every project and holder.
	// A private limiter of DefaultRPCConcurrency is created when nil.
	Limiter *concurrency.Limiter

	Retry RetryPolicy

	// DonationAuthority is the protocol-level update authority of donation NFTs.
	DonationAuthority string

	// MetadataConcurrency bounds concurrent metadata fetches per wallet.
	MetadataConcurrency int

	Logger *log.Logger
}

// WalletLoader builds wallet snapshots from chain queries with retry and backoff.
type WalletLoader struct {
	chain               ChainQuery
	metadata            MetadataFetcher
	limiter             *concurrency.Limiter
	retry               RetryPolicy
	donationAuthority   string
	metadataConcurrency int
	logger              *log.Logger
}

// NewWalletLoader creates a WalletLoader.
func NewWalletLoader(opts LoaderOptions) *WalletLoader {
	l := &WalletLoader{
		chain:               opts.Chain,
		metadata:            opts.Metadata,
		limiter:             opts.Limiter,
		retry:               opts.Retry,
		donationAuthority:   opts.DonationAuthority,
		metadataConcurrency: opts.MetadataConcurrency,
		logger:              opts.Logger,
	}
	if l.limiter == nil {
		l.limiter = concurrency.NewLimiter(DefaultRPCConcurrency)
	}
	if l.retry.MaxAttempts == 0 {
		l.retry = DefaultRetryPolicy()
	}
	if l.metadataConcurrency <= 0 {
		l.metadataConcurrency = DefaultMetadataConcurrency
	}
	if l.logger == nil {
		l.logger = log.New(io.Discard, "", 0)
	}
	return l
}

// Load inspects the wallet for NFTs and token balances relevant to cfg.
func (l *WalletLoader) Load(ctx context.Context, address string, cfg *domain.ProjectConfig) (*domain.WalletSnapshot, error) {
	start := time.Now()

	accounts, err := query(ctx, l, methodNFTAccounts, address, func(ctx context.Context) ([]domain.NFT, error) {
		return l.chain.NFTAccounts(ctx, address)
	})
	if err != nil {
		return nil, fmt.Errorf("load nft accounts for %s: %w", address, err)
	}

	authorities := make(map[string]bool)
	for _, ua := range cfg.UpdateAuthorities() {
		if ua != "" {
			authorities[ua] = true
		}
	}

	wallet := &domain.WalletSnapshot{SPLBalance: decimal.Zero}
	for _, nft := range accounts {
		if authorities[nft.UpdateAuthority] {
			wallet.NFTs = append(wallet.NFTs, nft)
		}
		// Counted independently: a donation NFT may also match the project.
		if l.donationAuthority != "" && nft.UpdateAuthority == l.donationAuthority {
			wallet.DonationCount++
		}
	}

	if cfg.HasTraitRoles() {
		if err := l.fetchAttributes(ctx, address, wallet.NFTs); err != nil {
			return nil, err
		}
	} else if len(wallet.NFTs) > 0 {
		l.logger.Printf("wallet %s: skipping metadata for %d NFTs (no trait roles)", address, len(wallet.NFTs))
	}

	for _, mint := range cfg.TokenMints() {
		balance, err := query(ctx, l, methodTokenBalance, address, func(ctx context.Context) (decimal.Decimal, error) {
			return l.chain.TokenBalance(ctx, address, mint)
		})
		if err != nil {
			return nil, fmt.Errorf("load token %s balance for %s: %w", mint, address, err)
		}
		l.logger.Printf("wallet %s: token %s balance %s", address, mint, balance)
		if balance.GreaterThan(wallet.SPLBalance) {
			wallet.SPLBalance = balance
		}
	}

	l.logger.Printf("wallet %s: %d matching NFTs, %d donations, balance %s (%v)",
		address, len(wallet.NFTs), wallet.DonationCount, wallet.SPLBalance, time.Since(start))
	return wallet, nil
}

// fetchAttributes fills in NFT attributes through a bounded fan-out joined before return.
func (l *WalletLoader) fetchAttributes(ctx context.Context, address string, nfts []domain.NFT) error {
	group := concurrency.NewTaskGroup(l.metadataConcurrency)
	for i := range nfts {
		nft := &nfts[i]
		err := group.Go(ctx, func() {
			nft.Attributes = l.attributes(ctx, address, nft)
		})
		if err != nil {
			group.Wait()
			return fmt.Errorf("schedule metadata fetch for %s: %w", nft.Mint, err)
		}
	}
	l.logger.Printf("wallet %s: waiting for %d metadata fetches", address, len(nfts))
	group.Wait()
	return nil
}

// attributes fetches one NFT's attributes, substituting the default pair on failure.
func (l *WalletLoader) attributes(ctx context.Context, address string, nft *domain.NFT) []domain.Attribute {
	if l.metadata == nil || nft.MetadataURI == "" {
		observability.RecordMetadataFetch("default")
		return domain.DefaultAttributes()
	}
	attrs, err := l.metadata.Fetch(ctx, nft.MetadataURI)
	if err != nil {
		l.logger.Printf("wallet %s: metadata for %s at %s failed: %v", address, nft.Mint, nft.MetadataURI, err)
		observability.RecordMetadataFetch("default")
		return domain.DefaultAttributes()
	}
	observability.RecordMetadataFetch("ok")
	return attrs
}

// LastTransaction returns the wallet's latest transaction fingerprint.
// Failures are logged and yield "", which never matches a stored fingerprint.
func (l *WalletLoader) LastTransaction(ctx context.Context, address string) string {
	var fingerprint string
	err := l.limiter.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		var err error
		fingerprint, err = l.chain.LastTransaction(ctx, address)
		observability.RecordRPCCall(methodLastTransaction, time.Since(start).Seconds(), err)
		return err
	})
	if err != nil {
		l.logger.Printf("wallet %s: unable to find last transaction: %v", address, err)
		return ""
	}
	return fingerprint
}

// Evaluate loads the wallet and computes its entitlement under cfg.
func (l *WalletLoader) Evaluate(ctx context.Context, address string, cfg *domain.ProjectConfig) (domain.Entitlement, error) {
	wallet, err := l.Load(ctx, address, cfg)
	if err != nil {
		return domain.Entitlement{}, err
	}
	ent := Evaluate(wallet, cfg)
	l.logger.Printf("wallet %s has roles %v", address, ent.Roles)
	return ent, nil
}

// query runs one chain query under the shared limiter with the retry policy.
// The permit is held per attempt, never across a backoff sleep.
func query[T any](ctx context.Context, l *WalletLoader, method, address string, fn func(context.Context) (T, error)) (T, error) {
	return Retry(ctx, l.retry,
		func(ctx context.Context) (T, error) {
			var out T
			err := l.limiter.Do(ctx, func(ctx context.Context) error {
				observability.UpdateRPCInFlight(l.limiter.InFlight())
				start := time.Now()
				var err error
				out, err = fn(ctx)
				observability.RecordRPCCall(method, time.Since(start).Seconds(), err)
				return err
			})
			return out, err
		},
		func(attempt int, err error, next time.Duration) {
			observability.RecordRPCRetry(method)
			l.logger.Printf("wallet %s: %s attempt %d failed, retry in %v: %v", address, method, attempt, next, err)
		},
	)
}
