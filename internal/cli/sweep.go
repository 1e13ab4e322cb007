package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecosoraculo/oraculo/internal/store"
	"github.com/ecosoraculo/oraculo/internal/sweeper"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one cleanup pass over session values and stale orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := store.New(cfg.DBDriver, cfg.DSN)
			if err != nil {
				return err
			}
			defer repo.Close()

			res, err := sweeper.RunOnce(cmd.Context(), repo, sweeper.Config{
				SessionTTL: cfg.SessionTTL,
				OrderTTL:   cfg.OrderTTL,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d session values, expired %d orders\n", res.SessionValues, res.ExpiredOrders)
			return err
		},
	}
}
