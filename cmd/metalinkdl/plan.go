package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/engelphi/metalink-downloader/internal/engine"
	"github.com/engelphi/metalink-downloader/internal/metalink"
	"github.com/engelphi/metalink-downloader/internal/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan <metalink-file>",
	Short: "Show what a download would do without touching the network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		doc, err := metalink.NewParser().Parse(f)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}

		p := plan.Build(doc, a.Config.Download.OutDir, a.Logger)
		opts := engine.OptionsFromConfig(a.Config)

		for _, fp := range p.Files {
			size := "unknown size"
			if fp.Size >= 0 {
				size = fmt.Sprintf("%d bytes", fp.Size)
			}

			verify := "unverified"
			if c := fp.StrongestChecksum(); c != nil {
				verify = c.Algo.String()
			}

			segs := fp.PlanSegments(opts.Workers, opts.MinSegmentSize)
			fmt.Printf("%s\n  %s, %d mirror(s), %d segment(s), whole-file check: %s\n",
				fp.Name, size, len(fp.Resources), len(segs), verify)
			if fp.Pieces != nil {
				fmt.Printf("  %d piece(s) of %d bytes (%s)\n",
					len(fp.Pieces.Digests), fp.Pieces.Length, fp.Pieces.Algo)
			}
			for _, r := range fp.Resources {
				fmt.Printf("  - [%d] %s\n", r.Priority, r.URL)
			}
		}

		for _, inv := range p.Invalid {
			fmt.Printf("%s\n  SKIPPED: %s\n", inv.Name, inv.Err)
		}

		if p.TotalSize > 0 {
			fmt.Printf("total declared size: %d bytes\n", p.TotalSize)
		}
		return nil
	},
}
