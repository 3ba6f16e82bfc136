package verify

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"holder-roles/internal/domain"
)

func nft(attrs ...domain.Attribute) domain.NFT {
	return domain.NFT{Mint: "mint", UpdateAuthority: "ua", Attributes: attrs}
}

func attr(k, v string) domain.Attribute {
	return domain.Attribute{TraitType: k, Value: v}
}

func TestEvaluate_DefaultRoleFromNFTs(t *testing.T) {
	cfg := &domain.ProjectConfig{DiscordRoleID: "R1"}
	wallet := &domain.WalletSnapshot{NFTs: []domain.NFT{nft(), nft()}}

	ent := Evaluate(wallet, cfg)
	if !reflect.DeepEqual(ent.Roles, []string{"R1"}) {
		t.Errorf("expected [R1], got %v", ent.Roles)
	}
}

func TestEvaluate_DefaultRoleFromTokenBalance(t *testing.T) {
	cfg := &domain.ProjectConfig{DiscordRoleID: "R1"}

	tests := []struct {
		name    string
		balance string
		want    []string
	}{
		{"below one unit", "0.999", []string{}},
		{"exactly one", "1", []string{"R1"}},
		{"above", "2500.5", []string{"R1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet := &domain.WalletSnapshot{SPLBalance: decimal.RequireFromString(tt.balance)}
			ent := Evaluate(wallet, cfg)
			if !reflect.DeepEqual(ent.Roles, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ent.Roles)
			}
		})
	}
}

func TestEvaluate_EmptyWallet(t *testing.T) {
	cfg := &domain.ProjectConfig{DiscordRoleID: "R1", IsHolder: true,
		Roles: []domain.RoleDefinition{{Key: "*", Value: "*", RequiredBalance: 1, DiscordRoleID: "R2"}}}

	ent := Evaluate(&domain.WalletSnapshot{}, cfg)
	if !ent.Empty() {
		t.Errorf("expected no roles, got %v", ent.Roles)
	}
}

func TestEvaluate_UnsetDefaultRoleNeverReturned(t *testing.T) {
	cfg := &domain.ProjectConfig{IsHolder: true,
		Roles: []domain.RoleDefinition{{Key: "Hat", Value: "Crown", RequiredBalance: 1, DiscordRoleID: "R2"}}}
	wallet := &domain.WalletSnapshot{NFTs: []domain.NFT{nft(attr("Hat", "Crown"))}}

	ent := Evaluate(wallet, cfg)
	if !reflect.DeepEqual(ent.Roles, []string{"R2"}) {
		t.Errorf("expected [R2], got %v", ent.Roles)
	}
}

func TestEvaluate_TraitRoles(t *testing.T) {
	cfg := &domain.ProjectConfig{
		DiscordRoleID: "R1",
		IsHolder:      true,
		Roles: []domain.RoleDefinition{
			{Key: "Hat", Value: "Crown", RequiredBalance: 1, DiscordRoleID: "crown"},
			{Key: "Background", Value: "*", RequiredBalance: 3, DiscordRoleID: "collector"},
			{Key: "*", Value: "Gold", RequiredBalance: 1, DiscordRoleID: "gold"},
		},
	}
	wallet := &domain.WalletSnapshot{NFTs: []domain.NFT{
		nft(attr("Hat", "Crown"), attr("Background", "Red")),
		nft(attr("Hat", "Cap"), attr("Background", "Blue")),
	}}

	ent := Evaluate(wallet, cfg)
	if !reflect.DeepEqual(ent.Roles, []string{"R1", "crown"}) {
		t.Errorf("expected [R1 crown], got %v", ent.Roles)
	}
}

func TestEvaluate_Donations(t *testing.T) {
	cfg := &domain.ProjectConfig{DiscordRoleID: "R1"}
	ent := Evaluate(&domain.WalletSnapshot{DonationCount: 3}, cfg)
	if ent.Donations != 3 {
		t.Errorf("expected 3 donations, got %d", ent.Donations)
	}
}

func TestEvaluate_MonotonicInMatchingNFTs(t *testing.T) {
	cfg := &domain.ProjectConfig{
		DiscordRoleID: "R1",
		IsHolder:      true,
		Roles: []domain.RoleDefinition{
			{Key: "Hat", Value: "Crown", RequiredBalance: 2, DiscordRoleID: "crowns"},
			{Key: "*", Value: "*", RequiredBalance: 4, DiscordRoleID: "whale"},
		},
	}

	wallet := &domain.WalletSnapshot{}
	prev := map[string]bool{}
	for i := 0; i < 6; i++ {
		wallet.NFTs = append(wallet.NFTs, nft(attr("Hat", "Crown")))
		ent := Evaluate(wallet, cfg)

		got := map[string]bool{}
		for _, r := range ent.Roles {
			got[r] = true
		}
		for r := range prev {
			if !got[r] {
				t.Fatalf("adding NFT %d removed role %s", i+1, r)
			}
		}
		prev = got
	}

	if !prev["R1"] || !prev["crowns"] || !prev["whale"] {
		t.Errorf("expected all roles with 6 NFTs, got %v", prev)
	}
}

func TestEvaluate_ORMergeOrderIndependent(t *testing.T) {
	wallet := &domain.WalletSnapshot{NFTs: []domain.NFT{nft(attr("Eyes", "Laser"))}}

	// Three ways to earn "shared": only the middle one holds.
	defs := []domain.RoleDefinition{
		{Key: "Hat", Value: "Crown", RequiredBalance: 1, DiscordRoleID: "shared"},
		{Key: "Eyes", Value: "Laser", RequiredBalance: 1, DiscordRoleID: "shared"},
		{Key: "Mouth", Value: "Pipe", RequiredBalance: 1, DiscordRoleID: "shared"},
	}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	for _, p := range perms {
		cfg := &domain.ProjectConfig{DiscordRoleID: "R1", IsHolder: true}
		for _, i := range p {
			cfg.Roles = append(cfg.Roles, defs[i])
		}

		ent := Evaluate(wallet, cfg)
		found := false
		for _, r := range ent.Roles {
			if r == "shared" {
				found = true
			}
		}
		if !found {
			t.Errorf("order %v: expected shared role, got %v", p, ent.Roles)
		}
	}
}

func TestMatchCount(t *testing.T) {
	nfts := []domain.NFT{
		nft(attr("Hat", "Crown"), attr("Eyes", "Laser")),
		nft(attr("Hat", "Cap")),
	}

	tests := []struct {
		name    string
		filters []domain.AttributeFilter
		want    int
	}{
		{"no filters counts every NFT", nil, 2},
		{"exact match", []domain.AttributeFilter{{Key: "Hat", Value: "Crown"}}, 1},
		{"wildcard value", []domain.AttributeFilter{{Key: "Hat", Value: "*"}}, 2},
		{"wildcard key", []domain.AttributeFilter{{Key: "*", Value: "Laser"}}, 1},
		{"wildcard both counts once per NFT", []domain.AttributeFilter{{Key: "*", Value: "*"}}, 2},
		{"no match", []domain.AttributeFilter{{Key: "Hat", Value: "Beanie"}}, 0},
		{"case sensitive", []domain.AttributeFilter{{Key: "hat", Value: "crown"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchCount(nfts, tt.filters); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestMatchCount_MultipleFiltersInflateCount(t *testing.T) {
	// One NFT satisfying two filters counts twice.
	nfts := []domain.NFT{nft(attr("Hat", "Crown"), attr("Eyes", "Laser"))}
	filters := []domain.AttributeFilter{
		{Key: "Hat", Value: "Crown"},
		{Key: "Eyes", Value: "Laser"},
	}

	if got := MatchCount(nfts, filters); got != 2 {
		t.Errorf("expected literal count 2 for a single NFT, got %d", got)
	}

	req := domain.RoleRequirement{RoleID: "pair", NFTBalanceThreshold: 2, AttributeFilters: filters}
	if !Satisfies(&domain.WalletSnapshot{NFTs: nfts}, req) {
		t.Error("expected one NFT to satisfy a threshold of 2 through two filters")
	}
}

func TestMatchCount_DefaultAttributesOnlyMatchWildcards(t *testing.T) {
	nfts := []domain.NFT{{Mint: "m", Attributes: domain.DefaultAttributes()}}

	if got := MatchCount(nfts, []domain.AttributeFilter{{Key: "Hat", Value: "*"}}); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := MatchCount(nfts, []domain.AttributeFilter{{Key: "*", Value: "*"}}); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}
