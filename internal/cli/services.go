package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ecosoraculo/oraculo/internal/catalog"
)

func newServicesCmd() *cobra.Command {
	var (
		catalogPath string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "services",
		Short: "Print the service catalog and the widgets selling each service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("catalog") {
				if cfg, err := loadConfig(); err == nil {
					catalogPath = cfg.CatalogPath
				}
			}
			cat, err := catalog.Load(catalogPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{"services": cat.Services(), "widgets": cat.Widgets()})
			}

			widgets := make(map[string]string)
			for _, w := range cat.Widgets() {
				widgets[w.ServiceID] = fmt.Sprintf("%s (threshold %d)", w.Name, w.Threshold)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPATH\tNAME\tPRICE\tWIDGET")
			for _, s := range cat.Services() {
				widget := widgets[s.ID]
				if widget == "" {
					widget = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%s\n", s.ID, s.Path, s.Name, s.Price, widget)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML catalog override file (defaults to CATALOG_PATH)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
