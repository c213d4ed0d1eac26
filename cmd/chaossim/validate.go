package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chaossim/internal/config"
)

var validateSchemaPath string

var validateCmd = &cobra.Command{
	Use:   "validate CONFIG",
	Short: "Validate a console configuration",
	Long:  "validate checks a configuration file against the CUE schema and the cross-field rules.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0], validateSchemaPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (node %s, provider %s)\n", args[0], cfg.NodeID, cfg.Diagnose.Provider)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSchemaPath, "schema", "", "Path to CUE schema file (embedded schema when empty)")
}
