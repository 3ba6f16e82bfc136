package solana

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/shopspring/decimal"

	"holder-roles/internal/domain"
)

// ChainClient answers wallet queries on top of an RPCClient.
// It performs a single attempt per call; retries belong to the caller.
type ChainClient struct {
	rpc    RPCClient
	logger *log.Logger
}

// NewChainClient creates a ChainClient.
func NewChainClient(rpc RPCClient, logger *log.Logger) *ChainClient {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ChainClient{rpc: rpc, logger: logger}
}

// NFTAccounts returns the NFTs held by owner. A token account counts as an NFT
// when it holds exactly one unit of a zero-decimal mint with Metaplex metadata.
func (c *ChainClient) NFTAccounts(ctx context.Context, owner string) ([]domain.NFT, error) {
	accounts, err := c.rpc.GetTokenAccountsByOwner(ctx, owner, TokenAccountsFilter{ProgramID: TokenProgramID})
	if err != nil {
		return nil, fmt.Errorf("get token accounts: %w", err)
	}

	var mints, pdas []string
	for _, acc := range accounts {
		if acc.Decimals != 0 || acc.Amount != "1" {
			continue
		}
		pda, err := MetadataPDA(acc.Mint)
		if err != nil {
			c.logger.Printf("owner %s: skip mint %s: %v", owner, acc.Mint, err)
			continue
		}
		mints = append(mints, acc.Mint)
		pdas = append(pdas, pda)
	}

	nfts := make([]domain.NFT, 0, len(mints))
	for start := 0; start < len(pdas); start += MaxMultipleAccounts {
		end := min(start+MaxMultipleAccounts, len(pdas))

		infos, err := c.rpc.GetMultipleAccounts(ctx, pdas[start:end])
		if err != nil {
			return nil, fmt.Errorf("get metadata accounts: %w", err)
		}

		for i, info := range infos {
			mint := mints[start+i]
			if info == nil {
				continue
			}
			meta, err := ParseMetadata(info.Data)
			if err != nil {
				c.logger.Printf("owner %s: metadata of %s: %v", owner, mint, err)
				continue
			}
			if meta.Mint != mint {
				c.logger.Printf("owner %s: metadata mint %s does not match %s", owner, meta.Mint, mint)
				continue
			}
			nfts = append(nfts, domain.NFT{
				Mint:            mint,
				UpdateAuthority: meta.UpdateAuthority,
				MetadataURI:     meta.URI,
			})
		}
	}

	return nfts, nil
}

// TokenBalance returns owner's balance of mint summed over its token accounts,
// normalized by the mint decimals.
func (c *ChainClient) TokenBalance(ctx context.Context, owner, mint string) (decimal.Decimal, error) {
	accounts, err := c.rpc.GetTokenAccountsByOwner(ctx, owner, TokenAccountsFilter{Mint: mint})
	if err != nil {
		return decimal.Zero, fmt.Errorf("get token accounts for mint %s: %w", mint, err)
	}

	total := decimal.Zero
	for _, acc := range accounts {
		amount, err := decimal.NewFromString(acc.Amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse amount %q of %s: %w", acc.Amount, acc.Pubkey, err)
		}
		total = total.Add(amount.Shift(int32(-acc.Decimals)))
	}
	return total, nil
}

// LastTransaction returns the newest signature touching address, or "".
func (c *ChainClient) LastTransaction(ctx context.Context, address string) (string, error) {
	sigs, err := c.rpc.GetSignaturesForAddress(ctx, address, &SignaturesOpts{Limit: 1})
	if err != nil {
		return "", fmt.Errorf("get signatures: %w", err)
	}
	if len(sigs) == 0 {
		return "", nil
	}
	return sigs[0].Signature, nil
}
