package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "portal-service",
	Short: "Internal project portal with role-based access",
	Long: `portal-service serves the project portal: shared-password login, a per-user
project dashboard, and the admin API for users and projects.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.AddCommand(serveCmd, accessCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
