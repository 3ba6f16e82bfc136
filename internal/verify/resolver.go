// Package verify computes which directory roles a wallet earns from its
// on-chain holdings.
//
// Resolve expands a project configuration into role requirements, Evaluate
// matches a wallet snapshot against them and WalletLoader builds snapshots
// from chain queries under the process-wide RPC limiter.
package verify

import (
	"github.com/shopspring/decimal"

	"holder-roles/internal/domain"
)

// Resolve returns the role requirements of a project.
//
// Two implicit requirements are always bound to the default role: holding at
// least one matching NFT, or at least one unit of the configured token. Premium
// projects add one requirement per trait role definition.
func Resolve(cfg *domain.ProjectConfig) []domain.RoleRequirement {
	reqs := []domain.RoleRequirement{
		{
			RoleID:              cfg.DiscordRoleID,
			SPLBalanceThreshold: decimal.Zero,
			NFTBalanceThreshold: 1,
			AttributeFilters:    []domain.AttributeFilter{},
		},
		{
			RoleID:              cfg.DiscordRoleID,
			SPLBalanceThreshold: decimal.NewFromInt(1),
			NFTBalanceThreshold: 0,
			AttributeFilters:    []domain.AttributeFilter{},
		},
	}

	if !cfg.IsHolder {
		return reqs
	}

	for _, role := range cfg.Roles {
		reqs = append(reqs, domain.RoleRequirement{
			RoleID:              role.DiscordRoleID,
			SPLBalanceThreshold: decimal.Zero,
			NFTBalanceThreshold: role.RequiredBalance,
			AttributeFilters: []domain.AttributeFilter{
				{Key: role.Key, Value: role.Value},
			},
		})
	}
	return reqs
}
