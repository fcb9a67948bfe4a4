package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ikastra/dlprun/gcode"
	"github.com/ikastra/dlprun/images"
	"github.com/ikastra/dlprun/machine"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse the script and resolve its images without touching hardware",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			local := *root
			local.dryRun = true
			cfg, _, err := loadConfig(&local)
			if err != nil {
				return err
			}

			f, err := os.Open(cfg.GcodeFile)
			if err != nil {
				return err
			}
			defer f.Close()

			rep, err := machine.Preflight(gcode.NewParser(f), &images.Resolver{Dir: cfg.ImageDir})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ops:       %d\n", rep.Ops)
			fmt.Fprintf(out, "exposures: %d\n", rep.Exposures)
			fmt.Fprintf(out, "dwell:     %s\n", rep.Waited)
			fmt.Fprintf(out, "images:    %d\n", len(rep.Images))
			for _, name := range rep.Missing {
				fmt.Fprintf(out, "missing:   %s\n", name)
			}
			if len(rep.Missing) > 0 {
				return fmt.Errorf("%d missing image(s)", len(rep.Missing))
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}
