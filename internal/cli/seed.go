package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/yourbite/pos-api/internal/database"
	"github.com/yourbite/pos-api/internal/enum"
)

// SampleMenu is the starter catalog loaded by `posctl seed`.
var SampleMenu = []database.CreateDishParams{
	sampleDish("Chicken Tikka Pizza", 650, enum.CategoryPizza, "photo-1565299624946-b28f40a0ae38"),
	sampleDish("Margherita Pizza", 550, enum.CategoryPizza, "photo-1574071318508-1cdbab80d002"),
	sampleDish("Pasta Alfredo", 450, enum.CategoryPasta, "photo-1621996346565-e3dbc646d9a9"),
	sampleDish("Spaghetti Bolognese", 500, enum.CategoryPasta, "photo-1627308595229-7830a5c91f9f"),
	sampleDish("Classic Beef Burger", 400, enum.CategoryBurgers, "photo-1568901346375-23c9450c58cd"),
	sampleDish("Chicken Burger", 380, enum.CategoryBurgers, "photo-1586190848861-99aa4a171e90"),
	sampleDish("Zinger Burger", 420, enum.CategoryBurgers, "photo-1606755962773-d324e0a13086"),
	sampleDish("Fudge Brownie", 200, enum.CategoryDesserts, "photo-1606313564200-e75d5e30476c"),
	sampleDish("Chocolate Lava Cake", 250, enum.CategoryDesserts, "photo-1624353365286-3f8d62daad51"),
	sampleDish("Ice Cream Sundae", 180, enum.CategoryDesserts, "photo-1563805042-7684c019e1cb"),
	sampleDish("Fresh Lemonade", 120, enum.CategoryBeverages, "photo-1523677011781-c91d1bbe2f9d"),
	sampleDish("Mango Smoothie", 150, enum.CategoryBeverages, "photo-1505252585461-04db1eb84625"),
	sampleDish("Cold Coffee", 140, enum.CategoryBeverages, "photo-1517487881594-2787fef5ebf7"),
	sampleDish("French Fries", 150, enum.CategorySides, "photo-1576107232684-1279f390859f"),
	sampleDish("Loaded Nachos", 280, enum.CategorySides, "photo-1513456852971-30c0b8199d4d"),
	sampleDish("Onion Rings", 180, enum.CategorySides, "photo-1639024471283-03518883512d"),
}

func sampleDish(name string, price int64, category, photo string) database.CreateDishParams {
	return database.CreateDishParams{
		Name:        name,
		Price:       decimal.NewFromInt(price),
		Category:    category,
		IsAvailable: true,
		ImageURL:    "https://images.unsplash.com/" + photo + "?w=400",
		ServingSize: enum.DefaultServingSize,
	}
}

// SeedResult counts what a seed run did.
type SeedResult struct {
	Added   int
	Skipped int
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample menu",
		Long: `Load the sample menu into the dish catalog.

Dishes whose name already exists in the catalog are skipped unless --force
is given, so running seed twice does not duplicate the menu.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := Seed(ctx, database.New(store), SampleMenu, force, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seed complete: %d added, %d skipped\n", res.Added, res.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "add every sample dish even if one with the same name exists")
	return cmd
}

// Seed creates the given dishes, skipping names already in the catalog
// unless force is set. Progress lines go to out.
func Seed(ctx context.Context, q *database.Queries, menu []database.CreateDishParams, force bool, out io.Writer) (SeedResult, error) {
	existing, err := q.ListDishes(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	have := make(map[string]bool, len(existing))
	for _, d := range existing {
		have[strings.ToLower(d.Name)] = true
	}

	var res SeedResult
	for _, p := range menu {
		if !force && have[strings.ToLower(p.Name)] {
			fmt.Fprintf(out, "skip  %s (already in catalog)\n", p.Name)
			res.Skipped++
			continue
		}
		d, err := q.CreateDish(ctx, p)
		if err != nil {
			return res, fmt.Errorf("create %s: %w", p.Name, err)
		}
		fmt.Fprintf(out, "added %s (%s)\n", d.Name, d.ID)
		res.Added++
	}
	return res, nil
}
