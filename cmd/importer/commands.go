package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mramzani/barghalarm/internal/calendar"
	"github.com/mramzani/barghalarm/internal/repository"
)

// withApp runs fn with a bootstrapped app and closes it afterwards
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

func createImportCmd() *cobra.Command {
	var (
		dateFrom, dateTo string
		areas            []string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import today's outages (or the given Jalali dates)",
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if dateFrom == "" {
				dateFrom = a.today()
			}
			if dateTo == "" {
				dateTo = dateFrom
			}
			for _, d := range []string{dateFrom, dateTo} {
				if _, err := calendar.JalaliToGregorian(d); err != nil {
					return err
				}
			}

			result, err := a.runImport(cmd.Context(), dateFrom, dateTo, areas)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created: %d, Updated: %d, Skipped: %d\n", result.Created, result.Updated, result.Skipped)
			return nil
		}),
	}

	cmd.Flags().StringVar(&dateFrom, "from", "", "First Jalali date, e.g. 1404/06/10 (default: today)")
	cmd.Flags().StringVar(&dateTo, "to", "", "Last Jalali date (default: same as --from)")
	cmd.Flags().StringSliceVar(&areas, "areas", nil, "Portal area codes to import (default: IMPORT_AREAS or all)")
	return cmd
}

func createImportTomorrowCmd() *cobra.Command {
	var areas []string

	cmd := &cobra.Command{
		Use:   "import-tomorrow",
		Short: "Import tomorrow's outages",
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			day := a.tomorrow()
			result, err := a.runImport(cmd.Context(), day, day, areas)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created: %d, Updated: %d, Skipped: %d\n", result.Created, result.Updated, result.Skipped)
			return nil
		}),
	}

	cmd.Flags().StringSliceVar(&areas, "areas", nil, "Portal area codes to import (default: IMPORT_AREAS or all)")
	return cmd
}

func createPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete outages of past days",
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			n, err := a.runPrune(cmd.Context())
			if err != nil {
				return fmt.Errorf("prune failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted: %d\n", n)
			return nil
		}),
	}
}

func createDiscoverCmd() *cobra.Command {
	var areas []string

	cmd := &cobra.Command{
		Use:   "discover-addresses",
		Short: "Store today's portal addresses that no known address matches",
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			day := a.today()
			result, err := a.runDiscover(cmd.Context(), day, day, areas)
			if err != nil {
				return fmt.Errorf("discovery failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "New addresses: %d, Known: %d\n", result.Created, result.Known)
			return nil
		}),
	}

	cmd.Flags().StringSliceVar(&areas, "areas", nil, "Portal area codes to scan (default: IMPORT_AREAS or all)")
	return cmd
}

func createSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Load cities, areas and addresses from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			seed, err := repository.LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			stats, err := a.repo.Seed(cmd.Context(), seed)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cities: %d, Areas: %d, New addresses: %d\n", stats.Cities, stats.Areas, stats.Addresses)
			return nil
		}),
	}
}
