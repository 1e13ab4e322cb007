package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecosoraculo/oraculo/internal/catalog"
	"github.com/ecosoraculo/oraculo/internal/mercadopago"
	"github.com/ecosoraculo/oraculo/internal/order"
	"github.com/ecosoraculo/oraculo/internal/store"
)

func newOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Manage checkout orders",
	}
	cmd.AddCommand(newOrderCreateCmd())
	return cmd
}

func newOrderCreateCmd() *cobra.Command {
	var req order.Request
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a checkout preference and print its URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}
			mp, err := mercadopago.NewClient(mercadopago.Config{
				AccessToken: cfg.MercadoPago.AccessToken,
				BaseURL:     cfg.MercadoPago.BaseURL,
				Timeout:     cfg.MercadoPago.Timeout,
			})
			if err != nil {
				return err
			}
			repo, err := store.New(cfg.DBDriver, cfg.DSN)
			if err != nil {
				return err
			}
			defer repo.Close()

			svc := order.NewService(cat, mp, repo, order.Config{
				BaseURL:         cfg.PublicBaseURL,
				NotificationURL: cfg.NotificationURL,
				Sandbox:         cfg.MercadoPago.Sandbox,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.MercadoPago.Timeout+5*time.Second)
			defer cancel()
			res, err := svc.CreateOrder(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "preference:         %s\n", res.PreferenceID)
			fmt.Fprintf(out, "external reference: %s\n", res.ExternalReference)
			fmt.Fprintf(out, "amount:             %.2f\n", res.Amount)
			fmt.Fprintf(out, "checkout url:       %s\n", res.CheckoutURL)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.ServiceID, "service", order.DefaultServiceID, "catalog service id")
	f.Float64Var(&req.Amount, "amount", 0, "price override (0 uses the catalog price)")
	f.StringVar(&req.Email, "email", "", "buyer email")
	f.StringVar(&req.FirstName, "first-name", "", "buyer first name")
	f.StringVar(&req.LastName, "last-name", "", "buyer last name")
	f.StringVar(&req.Description, "description", "", "item description override")
	return cmd
}
