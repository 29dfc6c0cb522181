package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/enum"
)

// MigrationResult reports the outcome of a data migration.
type MigrationResult struct {
	Updated int
	Skipped int
	Total   int
}

// NewMigrateCommand creates the migrate command and its subcommands.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run one-off data migrations",
	}
	cmd.AddCommand(newServingSizeCommand(rootOpts))
	return cmd
}

func newServingSizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serving-size",
		Short: "Give every dish without a serving size the default one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			res, err := MigrateServingSize(ctx, database.New(store), out)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(out, "Migration complete: %d updated, %d skipped, %d total\n", res.Updated, res.Skipped, res.Total)
			return nil
		},
	}
}

// MigrateServingSize sets enum.DefaultServingSize on dishes that have none.
// Dishes that already carry a serving size are left alone.
func MigrateServingSize(ctx context.Context, q *database.Queries, out io.Writer) (MigrationResult, error) {
	dishes, err := q.ListDishes(ctx)
	if err != nil {
		return MigrationResult{}, err
	}

	res := MigrationResult{Total: len(dishes)}
	for _, d := range dishes {
		if d.ServingSize != "" {
			fmt.Fprintf(out, "skip    %s (%s)\n", d.Name, d.ServingSize)
			res.Skipped++
			continue
		}
		if err := q.SetDishServingSize(ctx, d.ID, enum.DefaultServingSize); err != nil {
			return res, fmt.Errorf("update %s: %w", d.ID, err)
		}
		fmt.Fprintf(out, "updated %s (ID: %s)\n", d.Name, d.ID)
		res.Updated++
	}
	return res, nil
}
