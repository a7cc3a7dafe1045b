package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/engelphi/metalink-downloader/internal/api"
	"github.com/engelphi/metalink-downloader/internal/app"
	"github.com/engelphi/metalink-downloader/internal/domain"
	"github.com/engelphi/metalink-downloader/internal/engine"
	"github.com/engelphi/metalink-downloader/internal/metalink"
	"github.com/engelphi/metalink-downloader/internal/plan"
	"github.com/engelphi/metalink-downloader/internal/progress"
	"github.com/engelphi/metalink-downloader/internal/transport"
)

var errRunFailed = errors.New("one or more files did not complete")

var downloadCmd = &cobra.Command{
	Use:   "download <metalink-file>",
	Short: "Download every file described by a metalink descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(true)
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
		if len(p.Files) == 0 && len(p.Invalid) == 0 {
			return fmt.Errorf("%s describes no files", args[0])
		}

		return runEngine(a, p, args[0])
	},
}

// runEngine drives one run end to end: progress rendering, the optional
// status API, the engine itself, and history persistence.
func runEngine(a *app.Context, p *plan.Plan, source string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := progress.NewTracker(ksuid.New().String(), source)
	a.SetTracker(tracker)

	if a.Config.Port != "" {
		srv := startAPI(a)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	client := transport.NewClient(transport.Options{
		Timeout:        a.Config.HTTP.Timeout,
		UserAgent:      a.Config.HTTP.UserAgent,
		MaxIdlePerHost: a.Config.HTTP.MaxIdlePerHost,
	})
	dl := engine.NewDownloader(engine.OptionsFromConfig(a.Config), client, tracker, a.Logger)

	done := make(chan struct{})
	rendered := make(chan struct{})
	renderer := progress.NewRenderer(tracker, os.Stdout)
	go func() {
		renderer.Run(done)
		close(rendered)
	}()

	summary := dl.Download(ctx, p, source)

	close(done)
	<-rendered

	if a.Store != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Store.SaveRun(saveCtx, summary); err != nil {
			a.Logger.Error("failed to persist run %s: %v", summary.ID, err)
		}
	}

	printSummary(summary)

	if !summary.Succeeded() {
		return errRunFailed
	}
	return nil
}

func startAPI(a *app.Context) *http.Server {
	e := echo.New()
	api.RegisterRoutes(e, a)

	srv := &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: e,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("status api stopped: %v", err)
		}
	}()
	a.Logger.Info("status api listening on %s", srv.Addr)

	return srv
}

func printSummary(summary *domain.RunSummary) {
	fmt.Printf("\nRun %s (%s)\n", summary.ID, summary.FinishedAt.Sub(summary.StartedAt).Truncate(time.Millisecond))
	for _, f := range summary.Files {
		line := fmt.Sprintf("  %-40s %s", f.Name, f.Status)
		if f.Error != "" {
			line += " (" + f.Error + ")"
		}
		fmt.Println(line)
	}
}
