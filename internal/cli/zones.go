package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/creeyes/crmprueba/internal/dto"
	"github.com/creeyes/crmprueba/internal/service"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewZonesCommand groups the zone catalog commands.
func NewZonesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Manage the province / municipality / zone catalog",
	}
	cmd.AddCommand(newZonesImportCommand(opts))
	cmd.AddCommand(newZonesPushCommand(opts))
	return cmd
}

type importSummary struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Pushed    int `json:"tenants_pushed"`
}

func newZonesImportCommand(opts *RootOptions) *cobra.Command {
	var noPush bool
	cmd := &cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Register every zone listed in a YAML catalog",
		Long: `Reads a list of provinces with their municipalities and zones and registers
each one (get-or-create, case-insensitive). Unless --no-push is given, the
zone dropdowns in the CRM are rewritten once at the end.

  - provincia: Málaga
    municipios:
      - nombre: Málaga
        zonas: [Centro, Teatinos]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := readCatalog(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			env, err := opts.Connect(ctx)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			// no runner: one push at the end instead of one per new zone
			zonas := service.NewZonaService(env.Comp.Zonas, env.Comp.Agencias, env.Comp.Tokens, env.Comp.CRM, nil)

			var sum importSummary
			for _, p := range catalog {
				for _, m := range p.Municipios {
					for _, z := range m.Zonas {
						res, err := zonas.Registrar(ctx, dto.RegistrarZonaRequest{Provincia: p.Provincia, Municipio: m.Nombre, Zona: z})
						if err != nil {
							return fmt.Errorf("%s / %s / %s: %w", p.Provincia, m.Nombre, z, err)
						}
						sum.Processed++
						if res.Status == service.ZonaStatusCreated {
							sum.Created++
						}
						if opts.Verbose {
							fmt.Fprintf(cmd.ErrOrStderr(), "%-9s %s / %s / %s\n", res.Status, p.Provincia, m.Nombre, res.Zona)
						}
					}
				}
			}
			if !noPush && sum.Created > 0 {
				if sum.Pushed, err = zonas.PushOptions(ctx); err != nil {
					return fmt.Errorf("push options: %w", err)
				}
			}
			return printResult(cmd.OutOrStdout(), opts, sum, func(w io.Writer) {
				fmt.Fprintf(w, "%d zone(s) processed, %d new, %d tenant(s) updated\n", sum.Processed, sum.Created, sum.Pushed)
			})
		},
	}
	cmd.Flags().BoolVar(&noPush, "no-push", false, "do not update the CRM dropdowns")
	return cmd
}

func readCatalog(path string) ([]dto.ZonaCatalogEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var catalog []dto.ZonaCatalogEntry
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return catalog, nil
}

func newZonesPushCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Rewrite the zone dropdowns of every configured tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := opts.Connect(ctx)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			n, err := env.Comp.ZonaSvc.PushOptions(ctx)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, map[string]int{"tenants_pushed": n}, func(w io.Writer) {
				fmt.Fprintf(w, "%d tenant(s) updated\n", n)
			})
		},
	}
}
