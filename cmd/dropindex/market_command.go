package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dropindex/internal/services/meli"
	"dropindex/internal/services/webclient"
)

func newMarketCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "market <query>",
		Short: "Search MercadoLibre for competing offers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("query is required")
			}
			client := meli.New(webclient.FromConfig(cfg, "mercadolibre", nil), cfg.Providers.MeliBaseURL, cfg.Providers.MeliSite)
			items, err := client.SearchMarket(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, items)
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No offers found")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					item.ID,
					truncate(item.Title, 50),
					formatPrice(item.Price),
					valueOrDash(item.Currency),
					valueOrDash(item.Permalink),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Title", "Price", "Currency", "Link"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum offers to show")
	return cmd
}
