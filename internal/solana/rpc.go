package solana

import "context"

// Well-known program IDs.
const (
	TokenProgramID    = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	MetaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
)

// RPCClient defines Solana RPC HTTP interface.
type RPCClient interface {
	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTokenAccountsByOwner retrieves parsed token accounts of owner matching filter.
	GetTokenAccountsByOwner(ctx context.Context, owner string, filter TokenAccountsFilter) ([]TokenAccount, error)

	// GetMultipleAccounts retrieves account info for up to MaxMultipleAccounts keys.
	// Missing accounts are returned as nil entries at the same index.
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error)
}
