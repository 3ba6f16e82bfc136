package verify

import (
	"holder-roles/internal/domain"
)

// Evaluate returns the roles the wallet earns under cfg.
//
// Requirements sharing a role id are OR-merged: once any of them holds, the
// role is earned regardless of the order the others are evaluated in. Roles are
// returned in the order they first appear among the requirements; an unset
// role id is never returned.
func Evaluate(wallet *domain.WalletSnapshot, cfg *domain.ProjectConfig) domain.Entitlement {
	reqs := Resolve(cfg)

	earned := make(map[string]bool, len(reqs))
	var order []string
	for _, req := range reqs {
		if _, seen := earned[req.RoleID]; !seen {
			order = append(order, req.RoleID)
			earned[req.RoleID] = false
		}
		if earned[req.RoleID] {
			continue
		}
		earned[req.RoleID] = Satisfies(wallet, req)
	}

	roles := make([]string, 0, len(order))
	for _, id := range order {
		if earned[id] && id != "" {
			roles = append(roles, id)
		}
	}

	return domain.Entitlement{
		Roles:     roles,
		Donations: wallet.DonationCount,
	}
}

// Satisfies reports whether wallet meets a single requirement.
func Satisfies(wallet *domain.WalletSnapshot, req domain.RoleRequirement) bool {
	verified := false

	if req.SPLBalanceThreshold.IsPositive() && wallet.SPLBalance.GreaterThanOrEqual(req.SPLBalanceThreshold) {
		verified = true
	}

	if req.NFTBalanceThreshold > 0 && MatchCount(wallet.NFTs, req.AttributeFilters) >= req.NFTBalanceThreshold {
		verified = true
	}

	return verified
}

// MatchCount counts NFTs toward a requirement.
//
// Without filters every NFT counts. With filters the counter is incremented
// once per (filter, NFT) pair where some attribute of the NFT satisfies the
// filter, so one NFT satisfying several filters is counted several times.
func MatchCount(nfts []domain.NFT, filters []domain.AttributeFilter) int {
	if len(filters) == 0 {
		return len(nfts)
	}

	count := 0
	for _, filter := range filters {
		for _, nft := range nfts {
			for _, attr := range nft.Attributes {
				if filter.Matches(attr) {
					count++
					break
				}
			}
		}
	}
	return count
}
