package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yourbite/pos-api/internal/config"
	"github.com/yourbite/pos-api/internal/docstore"
)

// OpenFunc opens the document store a command works on.
type OpenFunc func(ctx context.Context, driver, dsn string) (docstore.Store, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Driver   string
	DSN      string
	Timezone string

	open OpenFunc
}

// NewRootCommand creates the root command for posctl. open is usually
// docstore.Open.
func NewRootCommand(open OpenFunc) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "posctl",
		Short: "Your Bite POS admin tool",
		Long:  "Maintenance commands for the Your Bite point-of-sale store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.fillFromConfig()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver (memory|postgres|sqlite); defaults to STORE_DRIVER")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "postgres URL or sqlite path; defaults to the configured one")
	cmd.PersistentFlags().StringVar(&opts.Timezone, "timezone", "", "time zone for exported timestamps; defaults to TIMEZONE")

	// Add subcommands
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}

// fillFromConfig falls back to the server configuration for flags left empty.
func (o *RootOptions) fillFromConfig() error {
	if o.Driver != "" && o.Timezone != "" {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.Driver == "" {
		o.Driver = cfg.StoreDriver
		if o.DSN == "" {
			o.DSN = cfg.DSN()
		}
	}
	if o.Timezone == "" {
		o.Timezone = cfg.Timezone
	}
	return nil
}

func (o *RootOptions) openStore(ctx context.Context) (docstore.Store, error) {
	store, err := o.open(ctx, o.Driver, o.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", o.Driver, err)
	}
	return store, nil
}
