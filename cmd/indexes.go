/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/nxtgm/feedserver/config"
	"github.com/nxtgm/feedserver/internal/db"
	"github.com/spf13/cobra"
)

// indexesCmd represents the indexes command.
var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Ensure MongoDB indexes",
	Long: `Creates the indexes the server relies on, currently the unique
index on accounts.username. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		mongo := db.New(cfg.Mongo)
		defer func() {
			_ = mongo.Close(cmd.Context())
		}()

		if err := mongo.EnsureIndexes(cmd.Context()); err != nil {
			return fmt.Errorf("ensure indexes failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexesCmd)
}
