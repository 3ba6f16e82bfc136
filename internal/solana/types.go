package solana

// SignatureInfo is one entry of getSignaturesForAddress, newest first.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       any
}

// SignaturesOpts pages getSignaturesForAddress. Zero values are omitted.
type SignaturesOpts struct {
	Before string
	Until  string
	Limit  int
}

// TokenAccountsFilter selects token accounts by mint or by owning program.
// Exactly one of the fields must be set.
type TokenAccountsFilter struct {
	Mint      string
	ProgramID string
}

// TokenAccount is a parsed SPL token account.
type TokenAccount struct {
	Pubkey   string
	Mint     string
	Owner    string
	Amount   string // raw integer amount
	Decimals int
}

// AccountInfo is a raw account with base64 data, as returned by getMultipleAccounts.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       string
	Executable bool
	RentEpoch  uint64
}
