package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bohanco/hpimage/internal/archive"
	"github.com/bohanco/hpimage/internal/clock/system"
)

// newFetchCmd creates the 'fetch' subcommand: one batch fetch of the
// configured markets, persisted to the record store.
func newFetchCmd() *cobra.Command {
	var dateFlag string
	var marketsFlag []string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch today's archive entries for the configured markets",
		Long: `Fetches the archive entry of every configured market for one
calendar date (today in each market's timezone unless --date is given),
validates the responses, and inserts the normalized records into the
record store.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.Logger

			var date time.Time
			if dateFlag != "" {
				date, err = time.Parse("2006-01-02", dateFlag)
				if err != nil {
					return fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", dateFlag, err)
				}
			}

			markets := marketsFlag
			if len(markets) == 0 {
				markets = appInstance.Config.Archive.Markets
			}

			client, err := archive.NewClient(archive.ClientConfig{
				Endpoint: appInstance.Config.Archive.Endpoint,
				Timeout:  appInstance.Config.Archive.Timeout(),
			}, system.New(), logger)
			if err != nil {
				return fmt.Errorf("build archive client: %w", err)
			}

			records, err := client.Batch(cmd.Context(), markets, date)
			if err != nil {
				return fmt.Errorf("batch fetch: %w", err)
			}

			batch := make([]*archive.Record, 0, len(records))
			for _, rec := range records {
				batch = append(batch, rec)
			}
			if err := appInstance.Store.Insert(cmd.Context(), batch); err != nil {
				return fmt.Errorf("insert records: %w", err)
			}

			logger.Info("fetch complete",
				zap.Int("markets", len(records)))
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "calendar date to fetch (YYYY-MM-DD, default today per market)")
	cmd.Flags().StringSliceVar(&marketsFlag, "market", nil, "market(s) to fetch, overriding the configured list")

	return cmd
}
