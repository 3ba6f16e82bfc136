package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"holder-roles/internal/directory"
	"holder-roles/internal/domain"
	"holder-roles/internal/observability"
)

// reconcileHolder runs one holder's pipeline. It returns the record to keep,
// nil to drop the holder, and the holder's contribution to the sweep metrics.
// Failures and panics keep the holder unchanged and count one error. A holder
// kept as stored still contributes its stored donations.
func (r *Reconciler) reconcileHolder(ctx context.Context, project string, cfg *domain.ProjectConfig, dir directory.RoleDirectory, h *domain.HolderRecord) (rec *domain.HolderRecord, m domain.Metrics) {
	ctx, span := observability.Tracer().Start(ctx, "reconcile.holder")
	defer span.End()
	span.SetAttributes(attribute.String("project", project), attribute.String("wallet", h.PublicKey))

	defer func() {
		if p := recover(); p != nil {
			r.logger.Printf("error revalidating holder %s (%s): panic: %v", h.DiscordName, h.PublicKey, p)
			rec, m = h, domain.Metrics{Error: 1}
		}
	}()

	if cfg.IsProjectWallet(h.PublicKey) {
		r.logger.Printf("holder %s wallet %s associated with project", h.DiscordName, h.PublicKey)
		return h, domain.Metrics{Skipped: 1, Donations: h.Donations}
	}

	lastTx := r.wallets.LastTransaction(ctx, h.PublicKey)
	if lastTx != "" && lastTx == h.LastTx {
		r.logger.Printf("holder %s already processed last tx %s", h.DiscordName, lastTx)
		return h, domain.Metrics{Skipped: 1, Donations: h.Donations}
	}

	ent, err := r.wallets.Evaluate(ctx, h.PublicKey, cfg)
	if err != nil {
		r.logger.Printf("error revalidating holder %s (%s): %v", h.DiscordName, h.PublicKey, err)
		span.RecordError(err)
		return h, domain.Metrics{Error: 1}
	}
	m.Donations = ent.Donations

	toAdd, toRemove := Diff(h.Roles, ent.Roles)
	if len(toAdd) == 0 && len(toRemove) == 0 {
		r.logger.Printf("no changes required for holder %s", h.DiscordName)
		m.Unchanged = 1
	} else {
		applied, err := r.applyDiff(ctx, cfg, dir, h, toAdd, toRemove)
		m.Added, m.Removed = applied.Added, applied.Removed
		if errors.Is(err, errNotApplied) {
			r.logger.Printf("holder %s: %v", h.DiscordName, err)
			return h, domain.Metrics{Error: 1, Donations: h.Donations}
		}
		if err != nil {
			// Some calls failed; the entitlement is still recorded.
			r.logger.Printf("holder %s roles partially updated: %v", h.DiscordName, err)
			m.Error = 1
		}
	}

	if ent.Empty() {
		r.logger.Printf("holder %s no longer has any roles", h.DiscordName)
		return nil, m
	}

	rec = h.Clone()
	rec.Roles = ent.Roles
	rec.LastTx = lastTx
	rec.Donations = ent.Donations
	r.logger.Printf("updating holder list with user %s with verified roles %v", rec.DiscordName, rec.Roles)
	return rec, m
}

// applyDiff mutates the holder's directory roles inside the exclusive section.
// Every role call is attempted; the returned error joins the failed ones.
// When no mutation was attempted the error wraps errNotApplied: the member
// could not be resolved (ErrConfiguration) or the section was never entered.
func (r *Reconciler) applyDiff(ctx context.Context, cfg *domain.ProjectConfig, dir directory.RoleDirectory, h *domain.HolderRecord, toAdd, toRemove []string) (domain.Metrics, error) {
	var m domain.Metrics
	server := cfg.DiscordServerID

	r.logger.Printf("holder %s waiting for lock to modify roles on server %s", h.DiscordName, server)
	wait := time.Now()
	entered := false
	err := r.section.Do(ctx, func() error {
		entered = true
		r.logger.Printf("holder %s updating roles after %v, add=%v, remove=%v", h.DiscordName, time.Since(wait).Round(time.Millisecond), toAdd, toRemove)
		defer r.logger.Printf("holder %s releasing directory lock", h.DiscordName)

		member, err := dir.ResolveMember(ctx, server, h.DiscordName)
		if err != nil {
			return fmt.Errorf("%w: %w: member %s on server %s: %v", errNotApplied, ErrConfiguration, h.DiscordName, server, err)
		}

		var errs []error
		for _, roleID := range toRemove {
			role, err := dir.ResolveRole(ctx, server, roleID)
			if err != nil {
				r.logger.Printf("holder %s error retrieving role %s: %v", h.DiscordName, roleID, err)
				continue
			}
			r.logger.Printf("holder %s removing role %s on server %s", h.DiscordName, roleID, server)
			if !r.readOnly {
				if err := dir.RemoveRole(ctx, server, member, role); err != nil {
					errs = append(errs, fmt.Errorf("remove role %s: %w", roleID, err))
					continue
				}
			}
			m.Removed++
		}

		for _, roleID := range toAdd {
			role, err := dir.ResolveRole(ctx, server, roleID)
			if err != nil {
				r.logger.Printf("holder %s error retrieving role %s: %v", h.DiscordName, roleID, err)
				continue
			}
			r.logger.Printf("holder %s adding role %s on server %s", h.DiscordName, roleID, server)
			if err := dir.AddRole(ctx, server, member, role); err != nil {
				errs = append(errs, fmt.Errorf("add role %s: %w", roleID, err))
				continue
			}
			m.Added++
		}
		return errors.Join(errs...)
	})
	if !entered {
		return m, fmt.Errorf("%w: waiting for directory lock: %v", errNotApplied, err)
	}
	return m, err
}
