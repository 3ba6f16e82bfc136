package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"holder-roles/internal/domain"
	"holder-roles/internal/solana"
)

// ReconcileOutput is the JSON result of the reconcile command.
type ReconcileOutput struct {
	Project  string         `json:"project"`
	Metrics  domain.Metrics `json:"metrics"`
	Duration string         `json:"duration"`
}

// CheckOutput is the JSON result of the check command.
type CheckOutput struct {
	Project   string   `json:"project"`
	Wallet    string   `json:"wallet"`
	Roles     []string `json:"roles"`
	Donations int      `json:"donations"`
	Stored    bool     `json:"stored"`
}

// EnrollOutput is the JSON result of the enroll command.
type EnrollOutput struct {
	Project   string   `json:"project"`
	Wallet    string   `json:"wallet"`
	Identity  string   `json:"identity"`
	Roles     []string `json:"roles"`
	RoleNames []string `json:"role_names"`
	Donations int      `json:"donations"`
	NewHolder bool     `json:"new_holder"`
}

// withApp runs fn against a freshly wired app and cancels on SIGINT/SIGTERM.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validWallet(wallet string) error {
	if !solana.ValidAddress(wallet) {
		return fmt.Errorf("invalid wallet address %q", wallet)
	}
	return nil
}

// NewRevalidateCommand creates the revalidate command.
func NewRevalidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revalidate",
		Short: "Reconcile every project once, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				result := a.batch.Run(ctx)
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				return ctx.Err()
			})
		},
	}
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <project>",
		Short: "Run one sweep over a single project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				start := time.Now()
				m, err := a.reconciler.Reconcile(ctx, args[0])
				if err != nil {
					return fmt.Errorf("reconcile %s: %w", args[0], err)
				}
				return writeJSON(cmd.OutOrStdout(), ReconcileOutput{
					Project:  args[0],
					Metrics:  m,
					Duration: time.Since(start).Round(time.Millisecond).String(),
				})
			})
		},
	}
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <project> <wallet>",
		Short: "Print the roles a wallet is entitled to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, wallet := args[0], args[1]
			if err := validWallet(wallet); err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				res, err := a.reconciler.Check(ctx, project, wallet)
				if err != nil {
					return err
				}
				roles := res.Roles
				if roles == nil {
					roles = []string{}
				}
				return writeJSON(cmd.OutOrStdout(), CheckOutput{
					Project:   project,
					Wallet:    wallet,
					Roles:     roles,
					Donations: res.Donations,
					Stored:    res.Stored,
				})
			})
		},
	}
}

// NewEnrollCommand creates the enroll command.
func NewEnrollCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enroll <project> <wallet> <identity>",
		Short: "Verify a wallet and grant its roles to a member",
		Long: `Verify a wallet for the first time and grant the roles it earns to the
directory member named by identity (username#discriminator).

Wallet ownership must already be established by the caller.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, wallet, identity := args[0], args[1], args[2]
			if err := validWallet(wallet); err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				res, err := a.reconciler.Enroll(ctx, project, wallet, identity)
				if err != nil {
					return err
				}
				out := EnrollOutput{
					Project:   project,
					Wallet:    wallet,
					Identity:  identity,
					Roles:     make([]string, 0, len(res.Roles)),
					RoleNames: make([]string, 0, len(res.Roles)),
					Donations: res.Donations,
					NewHolder: res.NewHolder,
				}
				for _, r := range res.Roles {
					out.Roles = append(out.Roles, r.ID)
					out.RoleNames = append(out.RoleNames, r.Name)
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

// NewRemoveProjectCommand creates the remove-project command.
func NewRemoveProjectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-project <project>",
		Short: "Delete a project's configuration and holders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if err := a.reconciler.RemoveProject(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}
}
