package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "sagectl",
	Short:   "SAGE data-ingestion and validation engine CLI",
	Version: version,
	Long: `sagectl loads catalog/package/sender documents and validates or
processes submissions against them.`,
	Example: `  # Validate a set of schema documents for structural errors
  $ sagectl validate-yaml catalog.yaml package.yaml sender.yaml

  # Run the Sender Gate's authorization checks for one sender and package
  $ sagectl validate-sender sender.yaml customer_package --sender-id acme --channel api

  # Read and validate a package archive without writing to its destination
  $ sagectl process-package customers_20260806.zip package.yaml`,
}

func Execute() error {
	rootCmd.SetVersionTemplate(fmt.Sprintf("sagectl version %s\n", version))
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a schema document or directory (not read by any subcommand; schema documents are passed as positional arguments)")

	rootCmd.AddCommand(validateYAMLCmd)
	rootCmd.AddCommand(validateSenderCmd)
	rootCmd.AddCommand(processPackageCmd)
}
