package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/Konsultn-Engineering/microrm/providers/sqlserver"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "microrm",
		Short: "Exercise the microrm engine against a SQL Server database",
		Long: `microrm maps the sample Employee record onto a SQL Server table and runs
the engine's operations against it. Connection settings come from microrm.yml
or MICRORM_* environment variables.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file (default ./microrm.yml)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(tenureCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
