// Command holderd keeps directory roles in line with on-chain holdings.
//
// Subcommands:
//   - revalidate: one batch over every project, then exit
//   - reconcile: one sweep of a single project
//   - check, enroll, remove-project: single-wallet and project maintenance
//   - serve: periodic revalidation with health, metrics and status endpoints
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
