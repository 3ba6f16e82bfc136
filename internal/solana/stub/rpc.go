package stub

import (
	"context"
	"encoding/base64"
	"encoding/binary"

	"github.com/mr-tron/base58"

	"holder-roles/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	TokenAccounts map[string][]solana.TokenAccount // by owner
	Accounts      map[string]*solana.AccountInfo   // by pubkey
	Signatures    map[string][]solana.SignatureInfo

	// Err, when set, is returned by every call.
	Err error
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		TokenAccounts: make(map[string][]solana.TokenAccount),
		Accounts:      make(map[string]*solana.AccountInfo),
		Signatures:    make(map[string][]solana.SignatureInfo),
	}
}

// GetSignaturesForAddress retrieves signatures for an address from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	sigs, ok := c.Signatures[address]
	if !ok {
		return nil, nil
	}

	// Apply limit if specified
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}

	return sigs, nil
}

// GetTokenAccountsByOwner returns the owner's stored token accounts matching filter.
func (c *RPCClient) GetTokenAccountsByOwner(_ context.Context, owner string, filter solana.TokenAccountsFilter) ([]solana.TokenAccount, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	var out []solana.TokenAccount
	for _, acc := range c.TokenAccounts[owner] {
		if filter.Mint != "" && acc.Mint != filter.Mint {
			continue
		}
		out = append(out, acc)
	}
	return out, nil
}

// GetMultipleAccounts returns stored accounts, nil for unknown keys.
func (c *RPCClient) GetMultipleAccounts(_ context.Context, pubkeys []string) ([]*solana.AccountInfo, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]*solana.AccountInfo, len(pubkeys))
	for i, key := range pubkeys {
		out[i] = c.Accounts[key]
	}
	return out, nil
}

// AddNFT stores a one-unit token account for mint under owner together with its
// Metaplex metadata account.
func (c *RPCClient) AddNFT(owner, mint, updateAuthority, uri string) error {
	pda, err := solana.MetadataPDA(mint)
	if err != nil {
		return err
	}
	data, err := MetadataAccountData(updateAuthority, mint, uri)
	if err != nil {
		return err
	}
	c.TokenAccounts[owner] = append(c.TokenAccounts[owner], solana.TokenAccount{
		Pubkey:   mint + "-ata",
		Mint:     mint,
		Owner:    owner,
		Amount:   "1",
		Decimals: 0,
	})
	c.Accounts[pda] = &solana.AccountInfo{Owner: solana.MetaplexProgramID, Data: data}
	return nil
}

// AddTokenAccount stores a fungible token account under owner.
func (c *RPCClient) AddTokenAccount(owner, mint, amount string, decimals int) {
	c.TokenAccounts[owner] = append(c.TokenAccounts[owner], solana.TokenAccount{
		Pubkey:   mint + "-" + owner,
		Mint:     mint,
		Owner:    owner,
		Amount:   amount,
		Decimals: decimals,
	})
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.Signatures[address] = sigs
}

// MetadataAccountData encodes a minimal MetadataV1 account as returned by getMultipleAccounts.
func MetadataAccountData(updateAuthority, mint, uri string) (string, error) {
	ua, err := base58.Decode(updateAuthority)
	if err != nil {
		return "", err
	}
	m, err := base58.Decode(mint)
	if err != nil {
		return "", err
	}

	buf := []byte{4}
	buf = append(buf, ua...)
	buf = append(buf, m...)
	for _, s := range []string{"Test NFT", "TNFT", uri} {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
		buf = append(buf, s...)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
