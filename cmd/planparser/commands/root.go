// Package commands wires the plan parser CLI commands.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "planparser",
	Short: "Plan parser - extract production records from Excel order sheets",
	Long: `The plan parser ingests irregular Excel spreadsheets of apparel production
orders: it detects and merges multi-row headers, expands merged group
columns, classifies each column with an LLM oracle, normalizes dates, and
stores the resulting production records.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
