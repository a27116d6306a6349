package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/creeyes/crmprueba/internal/model"
	"github.com/creeyes/crmprueba/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewTenantsCommand groups the tenant commands.
func NewTenantsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Inspect and configure tenants (agencias)",
	}
	cmd.AddCommand(newTenantsListCommand(opts))
	cmd.AddCommand(newTenantsDiscoverCommand(opts))
	cmd.AddCommand(newTenantsAddCommand(opts))
	return cmd
}

type tenantRow struct {
	LocationID        string `json:"location_id"`
	Nombre            string `json:"nombre"`
	Active            bool   `json:"active"`
	AssociationTypeID string `json:"association_type_id"`
	FeaturedThreshold string `json:"featured_threshold"`
}

func newTenantsListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := opts.Connect(ctx)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			agencias, err := env.Comp.Agencias.List(ctx)
			if err != nil {
				return err
			}
			rows := make([]tenantRow, 0, len(agencias))
			for _, a := range agencias {
				rows = append(rows, tenantRow{
					LocationID:        a.LocationID,
					Nombre:            deref(a.Nombre),
					Active:            a.Active,
					AssociationTypeID: deref(a.AssociationTypeID),
					FeaturedThreshold: a.FeaturedThreshold.StringFixed(2),
				})
			}
			return printResult(cmd.OutOrStdout(), opts, rows, func(w io.Writer) {
				for _, r := range rows {
					fmt.Fprintf(w, "%-24s active=%-5t assoc=%-24s %s\n", r.LocationID, r.Active, r.AssociationTypeID, r.Nombre)
				}
			})
		},
	}
}

type discoverResult struct {
	LocationID        string `json:"location_id"`
	AssociationTypeID string `json:"association_type_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

func newTenantsDiscoverCommand(opts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "discover [location-id...]",
		Short: "Find and store the contact-property association type",
		Long: `Asks the CRM for the association type linking contacts with the property
object and stores it on the tenant. Without arguments, every active tenant
that has none yet is processed; --all includes the configured ones too.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := opts.Connect(ctx)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			targets := args
			if len(targets) == 0 {
				agencias, err := env.Comp.Agencias.List(ctx)
				if err != nil {
					return err
				}
				targets = pendingDiscovery(agencias, all)
			}

			results := make([]discoverResult, 0, len(targets))
			for _, loc := range targets {
				res := discoverResult{LocationID: loc}
				id, err := env.Comp.Tenants.DiscoverAssociationType(ctx, loc)
				switch {
				case errors.Is(err, service.ErrNoToken):
					res.Error = "sin token valido"
				case err != nil:
					res.Error = err.Error()
				case id == "":
					res.Error = "el CRM no tiene asociacion contacto-propiedad"
				default:
					res.AssociationTypeID = id
				}
				results = append(results, res)
			}
			return printResult(cmd.OutOrStdout(), opts, results, func(w io.Writer) {
				for _, r := range results {
					if r.Error != "" {
						fmt.Fprintf(w, "%-24s ERROR %s\n", r.LocationID, r.Error)
						continue
					}
					fmt.Fprintf(w, "%-24s %s\n", r.LocationID, r.AssociationTypeID)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also re-discover tenants that already have one")
	return cmd
}

func pendingDiscovery(agencias []model.Agencia, all bool) []string {
	var out []string
	for i := range agencias {
		a := &agencias[i]
		if !a.Active {
			continue
		}
		if all || !a.HasAssociationType() {
			out = append(out, a.LocationID)
		}
	}
	return out
}

type addFlags struct {
	nombre       string
	featured     string
	accessToken  string
	refreshToken string
	expiresIn    int
}

func newTenantsAddCommand(opts *RootOptions) *cobra.Command {
	f := &addFlags{}
	cmd := &cobra.Command{
		Use:   "add <location-id>",
		Short: "Create or update a tenant and optionally store its CRM credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, err := featuredOrDefault(f.featured)
			if err != nil {
				return fmt.Errorf("invalid --featured-threshold: %w", err)
			}
			if (f.accessToken == "") != (f.refreshToken == "") {
				return errors.New("--access-token and --refresh-token go together")
			}
			ctx := cmd.Context()
			env, err := opts.Connect(ctx)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			ag := &model.Agencia{
				LocationID:        args[0],
				Active:            true,
				FeaturedThreshold: threshold,
			}
			if f.nombre != "" {
				ag.Nombre = &f.nombre
			}
			if err := env.Comp.Agencias.Upsert(ctx, ag); err != nil {
				return err
			}
			if f.accessToken != "" {
				tok := &model.CRMToken{
					LocationID:   args[0],
					AccessToken:  f.accessToken,
					RefreshToken: f.refreshToken,
					TokenType:    "Bearer",
					ExpiresIn:    f.expiresIn,
				}
				if err := env.Comp.Credentials.Save(ctx, tok); err != nil {
					return fmt.Errorf("save credential: %w", err)
				}
			}
			row := tenantRow{
				LocationID:        ag.LocationID,
				Nombre:            f.nombre,
				Active:            ag.Active,
				FeaturedThreshold: threshold.StringFixed(2),
			}
			return printResult(cmd.OutOrStdout(), opts, row, func(w io.Writer) {
				fmt.Fprintf(w, "tenant %s saved (active=%t)\n", row.LocationID, row.Active)
			})
		},
	}
	cmd.Flags().StringVar(&f.nombre, "nombre", "", "display name")
	cmd.Flags().StringVar(&f.featured, "featured-threshold", "", "price at or above which a property is featured (default 500000)")
	cmd.Flags().StringVar(&f.accessToken, "access-token", "", "CRM access token")
	cmd.Flags().StringVar(&f.refreshToken, "refresh-token", "", "CRM refresh token")
	cmd.Flags().IntVar(&f.expiresIn, "expires-in", 86400, "access token lifetime in seconds")
	return cmd
}

// featuredOrDefault parses a --featured-threshold value; empty keeps the default.
func featuredOrDefault(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.NewFromInt(500000), nil
	}
	return decimal.NewFromString(s)
}
