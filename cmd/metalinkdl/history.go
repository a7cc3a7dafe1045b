package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past runs, or show one run in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(true)
		if err != nil {
			return err
		}
		if a.Store == nil {
			return fmt.Errorf("run history is disabled, set store.sqlite_path in the config")
		}

		ctx := cmd.Context()

		if len(args) == 1 {
			run, err := a.Store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("no run with id %s", args[0])
			}

			fmt.Printf("%s  %s\n", run.ID, run.Source)
			fmt.Printf("started %s, finished %s\n",
				run.StartedAt.Format("2006-01-02 15:04:05"),
				run.FinishedAt.Format("2006-01-02 15:04:05"))
			for _, f := range run.Files {
				line := fmt.Sprintf("  %-40s %-20s %d bytes", f.Name, f.Status, f.BytesWritten)
				if f.Error != "" {
					line += " (" + f.Error + ")"
				}
				fmt.Println(line)
			}
			return nil
		}

		runs, err := a.Store.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded yet")
			return nil
		}

		for _, run := range runs {
			fmt.Printf("%s  %s  %s\n", run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), run.Source)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
}
