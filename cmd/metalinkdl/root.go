package main

import (
	"github.com/spf13/cobra"

	"github.com/engelphi/metalink-downloader/internal/app"
	"github.com/engelphi/metalink-downloader/internal/infra/config"
	"github.com/engelphi/metalink-downloader/internal/infra/logger"
	"github.com/engelphi/metalink-downloader/internal/store"
)

var (
	cfgPath string
	outDir  string
)

var rootCmd = &cobra.Command{
	Use:           "metalinkdl",
	Short:         "Segmented multi-mirror downloader for metalink descriptors",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default metalinkdl.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", "", "output directory (overrides config)")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
}

// setup loads config and wires the shared application context. withStore
// controls whether the sqlite history store is opened; commands that never
// touch history skip it.
func setup(withStore bool) (*app.Context, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if outDir != "" {
		cfg.Download.OutDir = outDir
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, err
	}

	a := app.NewContext(cfg, log)

	if withStore && cfg.Store.SQLitePath != "" {
		s, err := store.NewPersistentStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.Store = s
	}

	return a, nil
}
