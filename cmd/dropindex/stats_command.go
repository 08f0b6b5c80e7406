package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize catalog contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, stats)
			}

			runner, err := ctx.runner()
			if err != nil {
				return err
			}
			images, prices := runner.Providers()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Catalog: %s\n", st.Path())
			rows := [][]string{
				{"Listings", strconv.Itoa(stats.Listings)},
				{"Fingerprinted", strconv.Itoa(stats.Fingerprinted)},
				{"Pending fingerprint", strconv.Itoa(stats.PendingFingerprint)},
				{"Clusters", strconv.Itoa(stats.Clusters)},
				{"Multi-listing clusters", strconv.Itoa(stats.MultiListing)},
				{"Clustered listings", strconv.Itoa(stats.ClusteredListings)},
				{"With canonical image", strconv.Itoa(stats.WithCanonicalImage)},
				{"With price stats", strconv.Itoa(stats.WithPriceStats)},
				{"Image assets", strconv.Itoa(stats.ImageAssets)},
				{"Price observations", strconv.Itoa(stats.PriceObservations)},
				{"Image providers", joinOrNone(images)},
				{"Price providers", joinOrNone(prices)},
			}
			fmt.Fprintln(out, renderTable(out, []string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}
