// marketplace-service
//
// Job marketplace: clients post jobs, freelancers apply, the owner accepts
// one applicant (auto-rejecting the rest) and completes the job. Exposes the
// same operations over REST and gRPC and publishes lifecycle events to Redis
// for the Gateway to forward.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jobmate/marketplace-service/internal/cli"
	"jobmate/marketplace-service/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "marketplace",
		Short:   "Job marketplace service",
		Version: version.String(),
		Long: `marketplace runs the job marketplace HTTP and gRPC servers and
offers read-only tools to inspect jobs and tail lifecycle events.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MigrateCmd())

	// Inspection tools
	rootCmd.AddCommand(cli.JobsCmd())
	rootCmd.AddCommand(cli.EventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
