package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	minotor "github.com/barmettlerl/minotor-sub000"
	"github.com/barmettlerl/minotor-sub000/router"
	"github.com/barmettlerl/minotor-sub000/storage"
)

var (
	fromStop     string
	toStop       string
	departLit    string
	maxTransfers int
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Finds the earliest journey between two stops",
	RunE:  runRoute,
}

func init() {
	routeCmd.Flags().StringVarP(&fromStop, "from", "", "", "origin external stop id (required)")
	routeCmd.Flags().StringVarP(&toStop, "to", "", "", "destination external stop id (required)")
	routeCmd.Flags().StringVarP(&departLit, "depart", "", "", "departure time, HH:MM or HH:MM:SS (required)")
	routeCmd.Flags().IntVarP(&maxTransfers, "max-transfers", "", router.DefaultMaxTransfers, "maximum number of transfers")
}

func runRoute(cmd *cobra.Command, args []string) error {
	if staticURL == "" || fromStop == "" || toStop == "" || departLit == "" {
		return fmt.Errorf("--static-url, --from, --to and --depart are all required")
	}

	s, err := storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: dbDir})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	manager := minotor.NewManager(s)

	tt, err := manager.Load(staticURL, time.Now())
	if err != nil {
		return fmt.Errorf("loading feed: %w", err)
	}

	query, err := router.NewQuery(fromStop).
		To(toStop).
		DepartureTime(departLit).
		MaxTransfers(maxTransfers).
		Build()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}

	result := router.New(tt.Stops, tt.Table).Route(query)

	legs, ok := result.BestRoute("")
	if !ok {
		fmt.Println("no journey found")
		return nil
	}

	for _, leg := range legs {
		switch {
		case leg.Vehicle != nil:
			v := leg.Vehicle
			fmt.Printf("ride %s from stop %d to stop %d, %s -> %s\n",
				v.ServiceLine.Name, v.From, v.To, v.DepartureTime, v.ArrivalTime)
		case leg.Transfer != nil:
			t := leg.Transfer
			fmt.Printf("transfer from stop %d to stop %d\n", t.From, t.To)
		}
	}

	return nil
}
