package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sjsage522/hotdealmatcher/internal/commerce"
	"sjsage522/hotdealmatcher/logger"
	"sjsage522/hotdealmatcher/services/store"
)

var (
	reportSource string
	reportLimit  int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Cross-check recent result rows against the commerce API",
	Long: "Loads the most recent result rows of a source from Postgres and looks each " +
		"one up through the commerce product-model API: rows with a resolved catalog id " +
		"are fetched directly, the rest are searched by mall title.",
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportSource, "source", "cafe", "Source name to report on")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 20, "Maximum number of rows to report")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	log := logger.Default

	if cfg.CommerceClientID == "" || cfg.CommerceClientSecret == "" {
		return fmt.Errorf("COMMERCE_CLIENT_ID and COMMERCE_CLIENT_SECRET must be set")
	}

	ctx := context.Background()

	pgStore, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	defer pgStore.Close()

	rows, err := pgStore.FetchRows(ctx, reportSource, reportLimit)
	if err != nil {
		return fmt.Errorf("fetch rows: %w", err)
	}
	if len(rows) == 0 {
		log.Info().Str("source", reportSource).Msg("No rows to report")
		return nil
	}

	client := commerce.NewClient(cfg.CommerceClientID, cfg.CommerceClientSecret)
	out := cmd.OutOrStdout()

	for _, row := range rows {
		fmt.Fprintf(out, "[%d] %s (수집가 %d원)\n", row.PostID, row.MallTitle, row.SourcePrice)

		if id, convErr := strconv.ParseInt(row.CatalogID, 10, 64); convErr == nil {
			detail, err := client.GetCatalogDetail(ctx, id)
			if err != nil {
				log.WithError(err).Warn().Int("post_id", row.PostID).Msg("Catalog detail lookup failed")
				continue
			}
			fmt.Fprintf(out, "    카탈로그 %d: %s / %s / %s\n",
				detail.ID, detail.Name, detail.Manufacturer, detail.Brand)
			continue
		}

		page, err := client.SearchCatalog(ctx, row.MallTitle, 1, 5)
		if err != nil {
			log.WithError(err).Warn().Int("post_id", row.PostID).Msg("Catalog search failed")
			continue
		}
		if page.TotalElements == 0 {
			fmt.Fprintln(out, "    카탈로그 매칭 없음")
			continue
		}
		for _, model := range page.Contents {
			fmt.Fprintf(out, "    후보 %d: %s\n", model.ID, model.Name)
		}
	}

	log.Info().Int("rows", len(rows)).Str("source", reportSource).Msg("Report finished")
	return nil
}
