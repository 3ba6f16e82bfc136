package reconcile

import (
	"context"
	"errors"
	"fmt"

	"holder-roles/internal/directory"
	"holder-roles/internal/domain"
	"holder-roles/internal/observability"
	"holder-roles/internal/storage"
)

// EnrollResult describes a successful enrollment.
type EnrollResult struct {
	Roles     []directory.Role // roles granted, in entitlement order
	Donations int
	NewHolder bool // false when the identity and wallet were already enrolled
}

// Enroll verifies wallet for the first time and grants its roles to identity.
// Signature checks are the caller's job. Nothing is persisted unless every role
// is granted.
func (r *Reconciler) Enroll(ctx context.Context, project, wallet, identity string) (res *EnrollResult, err error) {
	defer func() {
		switch {
		case err == nil:
			observability.RecordEnrollment("ok")
		case errors.Is(err, ErrNotHolder), errors.Is(err, ErrFreeTierExhausted):
			observability.RecordEnrollment("rejected")
		default:
			observability.RecordEnrollment("error")
		}
	}()

	ctx, span := observability.Tracer().Start(ctx, "reconcile.enroll")
	defer span.End()

	cfg, err := r.loadConfig(ctx, project)
	if err != nil {
		return nil, err
	}

	if !cfg.IsHolder && r.maxFreeVerifications > 0 && cfg.Verifications > r.maxFreeVerifications {
		r.logger.Printf("wallet %s: free verifications for %s reached (%d)", wallet, project, cfg.Verifications)
		return nil, fmt.Errorf("%w: %s has %d verifications", ErrFreeTierExhausted, project, cfg.Verifications)
	}

	ent, err := r.wallets.Evaluate(ctx, wallet, cfg)
	if err != nil {
		return nil, fmt.Errorf("evaluate wallet %s: %w", wallet, err)
	}
	if ent.Empty() {
		r.logger.Printf("wallet %s does not hold an asset required by %s", wallet, project)
		return nil, fmt.Errorf("%w: %s", ErrNotHolder, wallet)
	}

	holders, err := r.projects.Holders(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("load holders of %s: %w", project, err)
	}
	res = &EnrollResult{Donations: ent.Donations, NewHolder: true}
	for _, h := range holders {
		if h.DiscordName == identity && h.PublicKey == wallet {
			res.NewHolder = false
			break
		}
	}
	if res.NewHolder {
		r.logger.Printf("adding %s to holder list with wallet %s", identity, wallet)
		holders = append(holders, &domain.HolderRecord{
			DiscordName: identity,
			PublicKey:   wallet,
			Roles:       ent.Roles,
			Donations:   ent.Donations,
		})
		cfg.Verifications++
	}

	dir, err := r.directories.For(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDirectoryUnavailable, project, err)
	}

	err = r.section.Do(ctx, func() error {
		member, err := dir.ResolveMember(ctx, cfg.DiscordServerID, identity)
		if err != nil {
			return fmt.Errorf("%w: member %s on server %s: %v", ErrConfiguration, identity, cfg.DiscordServerID, err)
		}
		for _, roleID := range ent.Roles {
			role, err := dir.ResolveRole(ctx, cfg.DiscordServerID, roleID)
			if err != nil {
				return fmt.Errorf("%w: role %s on server %s: %v", ErrConfiguration, roleID, cfg.DiscordServerID, err)
			}
			if err := dir.AddRole(ctx, cfg.DiscordServerID, member, role); err != nil {
				return fmt.Errorf("assign role %s on server %s: %w", roleID, cfg.DiscordServerID, err)
			}
			r.logger.Printf("wallet %s successfully added user %s role %s", wallet, identity, roleID)
			res.Roles = append(res.Roles, *role)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, role := range res.Roles {
		if cfg.DiscordRoleNames == nil {
			cfg.DiscordRoleNames = make(map[string]string)
		}
		if cfg.DiscordRoleNames[role.ID] != role.Name {
			r.logger.Printf("updating config with project role name %s=%s", role.ID, role.Name)
			cfg.DiscordRoleNames[role.ID] = role.Name
		}
	}

	if err := r.projects.SaveConfig(ctx, project, cfg); err != nil {
		return nil, fmt.Errorf("save config of %s: %w", project, err)
	}
	if err := r.projects.SaveHolders(ctx, project, holders); err != nil {
		return nil, fmt.Errorf("save holders of %s: %w", project, err)
	}
	return res, nil
}

// CheckResult is a wallet's entitlement within a project.
type CheckResult struct {
	Roles     []string
	Donations int
	Stored    bool // true when read from the holder collection rather than the chain
}

// Check returns the roles wallet holds in project: the stored grant when the
// wallet is enrolled, otherwise its current on-chain entitlement.
func (r *Reconciler) Check(ctx context.Context, project, wallet string) (*CheckResult, error) {
	cfg, err := r.loadConfig(ctx, project)
	if err != nil {
		return nil, err
	}

	holders, err := r.projects.Holders(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("load holders of %s: %w", project, err)
	}
	for _, h := range holders {
		if h.PublicKey == wallet && len(h.Roles) > 0 {
			return &CheckResult{Roles: append([]string(nil), h.Roles...), Donations: h.Donations, Stored: true}, nil
		}
	}

	ent, err := r.wallets.Evaluate(ctx, wallet, cfg)
	if err != nil {
		return nil, fmt.Errorf("evaluate wallet %s: %w", wallet, err)
	}
	return &CheckResult{Roles: ent.Roles, Donations: ent.Donations}, nil
}

// RemoveProject deletes a project's configuration and holders.
func (r *Reconciler) RemoveProject(ctx context.Context, project string) error {
	err := r.projects.RemoveProject(ctx, project)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}
	if err != nil {
		return fmt.Errorf("remove project %s: %w", project, err)
	}
	r.logger.Printf("removed project %s", project)
	return nil
}

func (r *Reconciler) loadConfig(ctx context.Context, project string) (*domain.ProjectConfig, error) {
	cfg, err := r.projects.Config(ctx, project)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidInput) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}
	if err != nil {
		return nil, fmt.Errorf("load config of %s: %w", project, err)
	}
	return cfg, nil
}
