package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "minotor",
	Short:        "Minotor journey planner",
	Long:         "Builds a router-ready timetable from a GTFS feed and answers journey queries against it",
	SilenceUsage: true,
}

var (
	staticURL string
	dbDir     string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&staticURL, "static-url", "", "", "GTFS static feed URL (zip)")
	rootCmd.PersistentFlags().StringVarP(&dbDir, "db-dir", "", ".", "directory holding the staged feed database")
	rootCmd.AddCommand(routeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
