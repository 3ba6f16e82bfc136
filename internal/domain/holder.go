package domain

// HolderRecord associates an external identity with a wallet and the roles granted to it.
// Roles always reflect the entitlement computed at LastTx.
type HolderRecord struct {
	DiscordName string   `json:"discordName"` // external identity, "username#discriminator"
	PublicKey   string   `json:"publicKey"`   // wallet address
	Roles       []string `json:"roles"`       // granted role ids
	LastTx      string   `json:"lastTx,omitempty"`
	Donations   int      `json:"donations,omitempty"`
}

// Clone returns a deep copy.
func (h *HolderRecord) Clone() *HolderRecord {
	cp := *h
	cp.Roles = append([]string(nil), h.Roles...)
	return &cp
}

// Entitlement is the set of roles a wallet currently earns.
type Entitlement struct {
	Roles     []string
	Donations int
}

// Empty reports whether no role is earned.
func (e Entitlement) Empty() bool {
	return len(e.Roles) == 0
}
