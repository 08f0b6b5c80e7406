package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dropindex/internal/fingerprint"
	"dropindex/internal/store"
)

func newClustersCommand(ctx *commandContext) *cobra.Command {
	var (
		order      string
		saturation string
		minMembers int
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "List product clusters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := clusterQuery(order, saturation, minMembers, limit)
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			clusters, err := st.ListClusters(cmd.Context(), q)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, clusters)
			}
			out := cmd.OutOrStdout()
			if len(clusters) == 0 {
				fmt.Fprintln(out, "No clusters found")
				return nil
			}
			names, err := canonicalNames(cmd.Context(), st, clusters)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(clusters))
			for _, c := range clusters {
				rows = append(rows, []string{
					c.ClusterID,
					truncate(names[c.CanonicalOwnerID], 40),
					strconv.Itoa(c.MemberCount),
					strconv.Itoa(c.ListingCount),
					formatPrice(c.MinPrice),
					formatPrice(c.MaxPrice),
					string(c.Saturation),
					formatTime(c.LastSeen),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Cluster", "Product", "Sellers", "Listings", "Min", "Max", "Saturation", "Last seen"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&order, "order", string(store.OrderBySellers), "Sort order: sellers, price, or recent")
	cmd.Flags().StringVar(&saturation, "saturation", "", "Only clusters at this level: OPPORTUNITY, HIGH, or SATURATED")
	cmd.Flags().IntVar(&minMembers, "min-listings", 1, "Only clusters with at least this many listings")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum clusters to list (0 for all)")
	return cmd
}

func clusterQuery(order, saturation string, minMembers, limit int) (store.ClusterQuery, error) {
	q := store.ClusterQuery{MinMembers: minMembers, Limit: limit}
	switch store.ClusterOrder(strings.ToLower(strings.TrimSpace(order))) {
	case "", store.OrderBySellers:
		q.Order = store.OrderBySellers
	case store.OrderByPrice:
		q.Order = store.OrderByPrice
	case store.OrderByRecent:
		q.Order = store.OrderByRecent
	default:
		return q, fmt.Errorf("--order: unknown value %q", order)
	}
	switch sat := store.Saturation(strings.ToUpper(strings.TrimSpace(saturation))); sat {
	case "":
	case store.SaturationOpportunity, store.SaturationHigh, store.SaturationSaturated:
		q.Saturation = sat
	default:
		return q, fmt.Errorf("--saturation: unknown value %q", saturation)
	}
	return q, nil
}

func canonicalNames(ctx context.Context, st *store.Store, clusters []store.Cluster) (map[int64]string, error) {
	ids := make([]int64, 0, len(clusters))
	for _, c := range clusters {
		ids = append(ids, c.CanonicalOwnerID)
	}
	listings, err := st.GetListings(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(listings))
	for _, l := range listings {
		names[l.ID] = l.Name
	}
	return names, nil
}

type clusterDetail struct {
	Cluster   store.Cluster        `json:"cluster"`
	Listings  []store.Listing      `json:"listings"`
	Assets    []store.ImageAsset   `json:"image_assets"`
	PriceView *store.PriceStatsRow `json:"price_view,omitempty"`
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <cluster-id|listing-id>",
		Short: "Show a cluster with its members and enrichment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			detail, err := loadClusterDetail(cmd.Context(), st, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, detail)
			}
			renderClusterDetail(cmd, detail)
			return nil
		},
	}
}

func loadClusterDetail(ctx context.Context, st *store.Store, key string) (*clusterDetail, error) {
	if key == "" {
		return nil, errors.New("cluster id or listing id is required")
	}
	var (
		cluster *store.Cluster
		err     error
	)
	if id, convErr := strconv.ParseInt(key, 10, 64); convErr == nil {
		cluster, err = st.ClusterForListing(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if cluster == nil {
		if cluster, err = st.GetCluster(ctx, key); err != nil {
			return nil, err
		}
	}
	if cluster == nil {
		return nil, fmt.Errorf("no cluster or clustered listing matches %q", key)
	}

	ids := make([]int64, 0, len(cluster.Members))
	for _, m := range cluster.Members {
		ids = append(ids, m.ListingID)
	}
	listings, err := st.GetListings(ctx, ids)
	if err != nil {
		return nil, err
	}
	assets, err := st.ListImageAssets(ctx, cluster.CanonicalOwnerID)
	if err != nil {
		return nil, err
	}
	view, err := st.PriceStatsView(ctx, cluster.CanonicalOwnerID)
	if err != nil {
		return nil, err
	}
	return &clusterDetail{Cluster: *cluster, Listings: listings, Assets: assets, PriceView: view}, nil
}

func renderClusterDetail(cmd *cobra.Command, d *clusterDetail) {
	out := cmd.OutOrStdout()
	c := d.Cluster
	fmt.Fprintf(out, "Cluster:    %s\n", c.ClusterID)
	fmt.Fprintf(out, "Saturation: %s (%d sellers, %d listings)\n", c.Saturation, c.MemberCount, c.ListingCount)
	fmt.Fprintf(out, "Prices:     %s - %s\n", formatPrice(c.MinPrice), formatPrice(c.MaxPrice))
	fmt.Fprintf(out, "Last seen:  %s\n", formatTime(c.LastSeen))

	byID := make(map[int64]store.Listing, len(d.Listings))
	for _, l := range d.Listings {
		byID[l.ID] = l
	}
	if canonical, ok := byID[c.CanonicalOwnerID]; ok {
		fmt.Fprintf(out, "Canonical:  %d %s\n", canonical.ID, canonical.Name)
		fmt.Fprintf(out, "Image:      %s\n", valueOrDash(canonical.CanonicalImageURL))
		if canonical.CanonicalImageURL != "" {
			fmt.Fprintf(out, "            %dx%d via %s\n", canonical.CanonicalImageWidth, canonical.CanonicalImageHeight, valueOrDash(canonical.CanonicalImageSource))
		}
		fmt.Fprintf(out, "Market:     p25=%s p50=%s p75=%s\n",
			formatOptionalPrice(canonical.PriceP25), formatOptionalPrice(canonical.PriceP50), formatOptionalPrice(canonical.PriceP75))
	}
	if d.PriceView != nil {
		fmt.Fprintf(out, "Evidence:   %d observations, avg %s, confidence %.2f\n",
			d.PriceView.ObservationCount, formatPrice(d.PriceView.AvgPrice), d.PriceView.AvgConfidence)
	}
	fmt.Fprintf(out, "Assets:     %d image candidates\n", len(d.Assets))
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(c.Members))
	for _, m := range c.Members {
		l := byID[m.ListingID]
		distance := "-"
		if m.HashDistance != nil {
			distance = strconv.Itoa(*m.HashDistance)
		}
		fp := "-"
		if l.ImageFingerprint != nil {
			fp = fingerprint.Hex(*l.ImageFingerprint)
		}
		marker := ""
		if m.ListingID == c.CanonicalOwnerID {
			marker = "*"
		}
		rows = append(rows, []string{
			strconv.FormatInt(m.ListingID, 10) + marker,
			truncate(l.Name, 40),
			valueOrDash(l.SellerName),
			formatPrice(l.SalePrice),
			fp,
			distance,
			strconv.FormatFloat(m.TextSimilarity, 'f', 1, 64),
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Listing", "Name", "Seller", "Price", "Fingerprint", "Distance", "Text"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight},
	))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
