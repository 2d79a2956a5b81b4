package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/i474232898/snow-report/internal/config"
	"github.com/i474232898/snow-report/internal/report"
	"github.com/i474232898/snow-report/internal/resort"
)

func resortCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resort",
		Short: "Inspect and extend the resort registry",
	}

	loadRegistry := func() (*resort.Registry, error) {
		cfg, err := config.Load(opts.configFile, opts.envFile)
		if err != nil {
			return nil, err
		}
		return resort.Load(cfg.RegistryPath)
	}

	var country string
	list := &cobra.Command{
		Use:   "list",
		Short: "List registered resorts and their keywords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			for _, r := range reg.All() {
				if country != "" && r.Country != country {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.Listing(r.Name, r.Key))
			}
			return nil
		},
	}
	list.Flags().StringVar(&country, "country", "", "only list resorts in this country")

	show := &cobra.Command{
		Use:   "show <key>",
		Short: "Show one resort",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			r, err := reg.Lookup(args[0])
			if err != nil {
				return errors.New(report.UnknownKey(args[0]))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n  country: %s\n  lat: %s\n  lon: %s\n",
				r.Name, r.Key, r.Country, report.Number(r.Lat), report.Number(r.Lon))
			return nil
		},
	}

	var add resort.Resort
	addCmd := &cobra.Command{
		Use:   "add <key>",
		Short: "Add a resort and persist the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			add.Key = args[0]
			if err := reg.Add(add); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Listing(add.Name, add.Key))
			return nil
		},
	}
	addCmd.Flags().StringVar(&add.Name, "name", "", "display name")
	addCmd.Flags().StringVar(&add.Country, "country", "", "country, e.g. Canada or USA")
	addCmd.Flags().Float64Var(&add.Lat, "lat", 0, "latitude in degrees")
	addCmd.Flags().Float64Var(&add.Lon, "lon", 0, "longitude in degrees")
	for _, f := range []string{"name", "country", "lat", "lon"} {
		_ = addCmd.MarkFlagRequired(f)
	}

	cmd.AddCommand(list, show, addCmd)
	return cmd
}
