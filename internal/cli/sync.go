package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/creeyes/crmprueba/internal/repository"
	"github.com/creeyes/crmprueba/internal/worker"

	"github.com/spf13/cobra"
)

var timeNow = time.Now

type syncFlags struct {
	entity      string
	locationID  string
	batchSize   int
	retryErrors bool
	dryRun      bool
}

// pendingRow is one line of the dry-run listing.
type pendingRow struct {
	Entity     string `json:"entity"`
	ID         string `json:"id"`
	LocationID string `json:"location_id"`
	RemoteID   string `json:"remote_id"`
	Status     string `json:"status"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	f := &syncFlags{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push pending leads and properties to the CRM",
		Long: `Claims one batch of pending records per type and pushes them to the CRM,
the same work one cycle of the server's sync loop does. With --dry-run the
pending records are listed and nothing is claimed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, opts, f)
		},
	}
	cmd.Flags().StringVar(&f.entity, "type", "all", "record type (all|clientes|propiedades)")
	cmd.Flags().StringVar(&f.locationID, "location-id", "", "only this tenant")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 50, "records claimed per type")
	cmd.Flags().BoolVar(&f.retryErrors, "retry-errors", false, "also retry records in error")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "list pending records without pushing them")
	return cmd
}

func parseEntity(s string) (worker.Entity, error) {
	switch s {
	case "", "all":
		return worker.EntityAll, nil
	case "clientes", "leads":
		return worker.EntityClientes, nil
	case "propiedades", "properties":
		return worker.EntityPropiedades, nil
	}
	return "", fmt.Errorf("invalid type %q: must be all, clientes or propiedades", s)
}

func runSync(cmd *cobra.Command, opts *RootOptions, f *syncFlags) error {
	entity, err := parseEntity(f.entity)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	env, err := opts.Connect(ctx)
	if err != nil {
		return err
	}
	defer env.Close(context.Background())

	claim := repository.ClaimOptions{
		Limit:       f.batchSize,
		LocationID:  f.locationID,
		RetryErrors: f.retryErrors,
	}
	if stale := env.Cfg.SyncStaleAfter(); stale > 0 {
		claim.StaleBefore = timeNow().Add(-stale)
	}

	if f.dryRun {
		rows, err := listPending(ctx, env, entity, claim)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), opts, rows, func(w io.Writer) {
			for _, r := range rows {
				fmt.Fprintf(w, "%-11s %s  %-20s %-8s %s\n", r.Entity, r.ID, r.LocationID, r.Status, r.RemoteID)
			}
			fmt.Fprintf(w, "%d pending record(s)\n", len(rows))
		})
	}

	loop := worker.NewSyncLoop(worker.SyncLoopConfig{
		Propiedades: env.Comp.Propiedades,
		Clientes:    env.Comp.Clientes,
		Records:     env.Comp.Records,
		Breaker:     env.Comp.CRM,
		BatchSize:   f.batchSize,
		StaleAfter:  env.Cfg.SyncStaleAfter(),
		LocationID:  f.locationID,
		RetryErrors: f.retryErrors,
		Entity:      entity,
	})
	report := loop.RunCycle(ctx)
	return printResult(cmd.OutOrStdout(), opts, report, func(w io.Writer) {
		if report.Skipped {
			fmt.Fprintln(w, "CRM circuit is open, nothing was pushed")
			return
		}
		fmt.Fprintf(w, "claimed %d, synced %d, failed %d, released %d\n",
			report.Claimed, report.Synced, report.Failed, report.Released)
	})
}

func listPending(ctx context.Context, env *Env, entity worker.Entity, claim repository.ClaimOptions) ([]pendingRow, error) {
	rows := []pendingRow{}
	if entity != worker.EntityPropiedades {
		clientes, err := env.Comp.Clientes.ListPending(ctx, claim)
		if err != nil {
			return nil, err
		}
		for _, c := range clientes {
			rows = append(rows, pendingRow{
				Entity:     string(worker.EntityClientes),
				ID:         c.ID.String(),
				LocationID: c.LocationID,
				RemoteID:   deref(c.CRMContactID),
				Status:     string(c.SyncStatus),
			})
		}
	}
	if entity != worker.EntityClientes {
		props, err := env.Comp.Propiedades.ListPending(ctx, claim)
		if err != nil {
			return nil, err
		}
		for _, p := range props {
			rows = append(rows, pendingRow{
				Entity:     string(worker.EntityPropiedades),
				ID:         p.ID.String(),
				LocationID: p.LocationID,
				RemoteID:   deref(p.CRMRecordID),
				Status:     string(p.SyncStatus),
			})
		}
	}
	return rows, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
