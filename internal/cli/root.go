// Package cli implements the marrow command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/marrow-forensics/marrow/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "marrow",
	Short: "Marrow - memory image forensics",
	Long: `Turn a raw memory image into a navigable graph of typed OS objects.

Structure layouts are data-driven: point marrow at an intermediate symbol
file and the framework builds introspectable templates for every declared
type, with forward and self references resolved lazily. The region scanner
feeds arbitrary memory ranges to a pattern matcher in overlapping chunks,
so a bounded-length match is never lost to an internal read boundary.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newPsListCmd())
	rootCmd.AddCommand(newTypesCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Marrow version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
