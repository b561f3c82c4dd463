package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	minotor "github.com/barmettlerl/minotor-sub000"
	"github.com/barmettlerl/minotor-sub000/storage"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-downloads any tracked feeds due for a refresh",
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	s, err := storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: dbDir})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	manager := minotor.NewManager(s)

	if err := manager.Refresh(context.Background()); err != nil {
		return fmt.Errorf("refreshing feeds: %w", err)
	}

	fmt.Println("refresh complete")
	return nil
}
