package main

import (
	"fmt"

	"github.com/districtmap/backend/internal/parser"
	"github.com/spf13/cobra"
)

var validateFlags struct {
	config   string
	geometry string
	field    string
	strict   bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a map configuration",
	Long: `Parses the map configuration and reports problems. Parse errors fail the
command. Other issues, like products without a name or unknown districts,
are printed and only fail the command with --strict. With --geometry the
district names are checked against the dataset.`,
	RunE: runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVarP(&validateFlags.config, "config", "c", "", "map configuration YAML (default: built-in)")
	f.StringVarP(&validateFlags.geometry, "geometry", "g", "", "district geometry to check names against")
	f.StringVar(&validateFlags.field, "field", parser.DefaultDistrictField, "attribute holding the district name")
	f.BoolVar(&validateFlags.strict, "strict", false, "fail when any issue is reported")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(validateFlags.config)
	if err != nil {
		return err
	}

	var districts []string
	if validateFlags.geometry != "" {
		opts := parser.DefaultLoadOptions()
		opts.DistrictField = validateFlags.field
		ds, err := parser.GetGlobalRegistry().LoadDataset(validateFlags.geometry, opts)
		if err != nil {
			return err
		}
		districts = ds.DistrictNames()
	}

	issues := parser.ValidateMapConfig(cfg, districts)
	w := cmd.OutOrStdout()
	for _, issue := range issues {
		fmt.Fprintf(w, "%-28s %s[%s]: %s\n", issue.Code, issue.Section, issue.Key, issue.Message)
	}
	fmt.Fprintf(w, "%d products, %d groups, %d issues\n", len(cfg.Products()), len(cfg.Groups()), len(issues))

	if validateFlags.strict && len(issues) > 0 {
		return fmt.Errorf("%d issues found", len(issues))
	}
	return nil
}
