package domain

import "github.com/shopspring/decimal"

// Wildcard matches any trait type or value in an attribute filter.
const Wildcard = "*"

// Attribute is one metadata trait of an NFT.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// DefaultAttributes is substituted when NFT metadata cannot be fetched.
func DefaultAttributes() []Attribute {
	return []Attribute{{TraitType: "trait_type_default", Value: "trait_type_value"}}
}

// NFT is a token account holding exactly one unit of a zero-decimal mint.
type NFT struct {
	Mint            string
	UpdateAuthority string
	MetadataURI     string
	Attributes      []Attribute // nil when metadata was not fetched
}

// WalletSnapshot is the ephemeral on-chain view of a wallet. Never persisted.
type WalletSnapshot struct {
	NFTs          []NFT           // NFTs matching the project's update authorities
	SPLBalance    decimal.Decimal // normalized by mint decimals
	DonationCount int             // NFTs minted by the donation authority
}

// AttributeFilter is one {key, value} constraint; Wildcard matches anything.
type AttributeFilter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Matches reports whether attr satisfies the filter.
func (f AttributeFilter) Matches(attr Attribute) bool {
	keyOK := f.Key == Wildcard || f.Key == attr.TraitType
	valueOK := f.Value == Wildcard || f.Value == attr.Value
	return keyOK && valueOK
}

// RoleRequirement is one way of earning RoleID.
type RoleRequirement struct {
	RoleID              string            `json:"roleID"`
	SPLBalanceThreshold decimal.Decimal   `json:"splBalance"`
	NFTBalanceThreshold int               `json:"nftBalance"`
	AttributeFilters    []AttributeFilter `json:"nftAttributes"`
}
