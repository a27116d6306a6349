// Package cli implements synctool, the operator command line. Every command
// drives the same services the HTTP server uses.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/creeyes/crmprueba/internal/config"
	"github.com/creeyes/crmprueba/internal/infra"
	"github.com/creeyes/crmprueba/internal/router"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Connect opens the environment a command runs against. Tests replace it.
	Connect func(ctx context.Context) (*Env, error)
}

// Env is an opened database plus the wired services.
type Env struct {
	Cfg  *config.Config
	DB   *gorm.DB
	RDB  *redis.Client
	Comp *router.Components
}

// Close drains the worker pool so queued association syncs finish.
func (e *Env) Close(ctx context.Context) {
	if err := e.Comp.Pool.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("synctool: worker pool did not drain")
	}
	if e.RDB != nil {
		_ = e.RDB.Close()
	}
	if sqlDB, err := e.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// NewRootCommand creates the root command for synctool.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Connect: connect}
	return newRootCommand(opts)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synctool",
		Short: "Operator tool for the CRM matching middleware",
		Long: `Runs the pending-record sync on demand, maintains the zone catalog and
inspects tenants and dead letters, against the database in DATABASE_URL.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewZonesCommand(opts))
	cmd.AddCommand(NewTenantsCommand(opts))
	cmd.AddCommand(NewDLQCommand(opts))

	return cmd
}

func connect(_ context.Context) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = infra.NewRedis(cfg.RedisURL); err != nil {
			log.Warn().Err(err).Msg("synctool: redis unavailable")
			rdb = nil
		}
	}
	crm := router.NewCRMClient(cfg)
	return &Env{Cfg: cfg, DB: db, RDB: rdb, Comp: router.Build(cfg, db, rdb, crm)}, nil
}

// printResult writes v as indented JSON, or calls text for the text format.
func printResult(w io.Writer, opts *RootOptions, v any, text func(io.Writer)) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
