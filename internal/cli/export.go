package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/export"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export store data",
	}
	cmd.AddCommand(newExportOrdersCommand(rootOpts))
	return cmd
}

func newExportOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Write every order to a CSV file",
		Long: `Write every order to a CSV file.

The file has the same columns as the dashboard download. Without --out the
file is named your-bite-orders-<date>.csv in the current directory; use
--out - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(rootOpts.Timezone)
			if err != nil {
				return fmt.Errorf("timezone %q: %w", rootOpts.Timezone, err)
			}

			ctx := cmd.Context()
			store, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			orders, err := database.New(store).ListOrders(ctx)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				if out == "" {
					out = export.Filename(time.Now().In(loc))
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if err := export.WriteOrdersCSV(w, orders, loc); err != nil {
				return err
			}
			if out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d orders to %s\n", len(orders), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (- for stdout)")
	return cmd
}
