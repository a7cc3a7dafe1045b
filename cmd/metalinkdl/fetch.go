package main

import (
	"github.com/spf13/cobra"

	"github.com/engelphi/metalink-downloader/internal/plan"
)

var fetchName string

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a single URL without a metalink descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(true)
		if err != nil {
			return err
		}

		p, err := plan.BuildSingle(args[0], fetchName, a.Config.Download.OutDir)
		if err != nil {
			return err
		}

		return runEngine(a, p, args[0])
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchName, "name", "", "output file name (default derived from the URL path)")
}
