package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"holder-roles/internal/config"
)

// RootOptions holds global flags and the loaded configuration.
type RootOptions struct {
	EnvFile  string
	Store    string
	ReadOnly bool

	Config *config.Config
}

// NewRootCommand creates the root command of holderd.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "holderd",
		Short:         "Holder verification and role reconciliation",
		Long:          "Grants and revokes community roles from what each enrolled wallet holds on chain.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.EnvFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("store") {
				cfg.StoreDriver = opts.Store
			}
			if opts.ReadOnly {
				cfg.DisableRemoveRoles = true
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			opts.Config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the environment is parsed")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "record store driver (memory|sqlite|postgres), overrides STORE_DRIVER")
	cmd.PersistentFlags().BoolVar(&opts.ReadOnly, "read-only", false, "never revoke roles and never persist sweep results")

	cmd.AddCommand(NewRevalidateCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewEnrollCommand(opts))
	cmd.AddCommand(NewRemoveProjectCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}
