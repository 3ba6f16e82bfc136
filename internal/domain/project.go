package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RoleDefinition maps an NFT trait to a directory role.
// Only honored for premium (is_holder) projects.
type RoleDefinition struct {
	Key             string `json:"key"`
	Value           string `json:"value"`
	RequiredBalance int    `json:"required_balance"`
	DiscordRoleID   string `json:"discord_role_id"`
}

// defaultRequiredBalance applies when a role was saved with a blank balance.
const defaultRequiredBalance = 1

// UnmarshalJSON accepts required_balance as a number or a numeric string.
// Configs created from form input store it as a string, "" meaning 1.
func (d *RoleDefinition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key             string          `json:"key"`
		Value           string          `json:"value"`
		RequiredBalance json.RawMessage `json:"required_balance"`
		DiscordRoleID   string          `json:"discord_role_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n, err := parseRequiredBalance(raw.RequiredBalance)
	if err != nil {
		return fmt.Errorf("role %s=%s: required_balance: %w", raw.Key, raw.Value, err)
	}
	*d = RoleDefinition{Key: raw.Key, Value: raw.Value, RequiredBalance: n, DiscordRoleID: raw.DiscordRoleID}
	return nil
}

func parseRequiredBalance(v json.RawMessage) (int, error) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return 0, nil
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return defaultRequiredBalance, nil
		}
		return strconv.Atoi(s)
	}
	var n int
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// ProjectConfig is the persisted configuration document of one project.
// Owned by one reconciliation sweep at a time.
type ProjectConfig struct {
	DiscordRoleID    string            `json:"discord_role_id"`
	DiscordServerID  string            `json:"discord_server_id"`
	DiscordBotToken  string            `json:"discord_bot_token,omitempty"`
	DiscordRoleNames map[string]string `json:"discord_role_names,omitempty"`
	IsHolder         bool              `json:"is_holder"` // premium tier
	Roles            []RoleDefinition  `json:"roles,omitempty"`
	UpdateAuthority  string            `json:"update_authority"`
	RoyaltyWalletID  string            `json:"royalty_wallet_id,omitempty"`
	OwnerPublicKey   string            `json:"owner_public_key,omitempty"`
	SPLToken         string            `json:"spl_token,omitempty"` // comma separated mints
	Message          string            `json:"message,omitempty"`   // message holders sign on enrollment
	Verifications    int               `json:"verifications"`       // monotonic non-decreasing
	Donations        int               `json:"donations"`           // cumulative
	LastReload       int64             `json:"lastReload,omitempty"` // unix ms
}

// TokenMints returns the configured token mints with blanks removed.
func (c *ProjectConfig) TokenMints() []string {
	if c.SPLToken == "" {
		return nil
	}
	var mints []string
	for _, m := range strings.Split(c.SPLToken, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			mints = append(mints, m)
		}
	}
	return mints
}

// UpdateAuthorities returns the update authorities whose NFTs count toward the project.
// The token mint list doubles as extra accepted authorities.
func (c *ProjectConfig) UpdateAuthorities() []string {
	return append([]string{c.UpdateAuthority}, c.TokenMints()...)
}

// IsProjectWallet reports whether addr is one of the wallets that manage the project.
func (c *ProjectConfig) IsProjectWallet(addr string) bool {
	if addr == "" {
		return false
	}
	return addr == c.UpdateAuthority || addr == c.RoyaltyWalletID || addr == c.OwnerPublicKey
}

// HasTraitRoles reports whether trait based roles are active for the project.
func (c *ProjectConfig) HasTraitRoles() bool {
	return c.IsHolder && len(c.Roles) > 0
}

// Clone returns a deep copy.
func (c *ProjectConfig) Clone() *ProjectConfig {
	cp := *c
	if c.Roles != nil {
		cp.Roles = append([]RoleDefinition(nil), c.Roles...)
	}
	if c.DiscordRoleNames != nil {
		cp.DiscordRoleNames = make(map[string]string, len(c.DiscordRoleNames))
		for k, v := range c.DiscordRoleNames {
			cp.DiscordRoleNames[k] = v
		}
	}
	return &cp
}
