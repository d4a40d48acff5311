package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfreeman451/nodeverify/pkg/api"
	"github.com/mfreeman451/nodeverify/pkg/config"
	"github.com/mfreeman451/nodeverify/pkg/lifecycle"
	"github.com/mfreeman451/nodeverify/pkg/models"
	"github.com/mfreeman451/nodeverify/pkg/verifier"
)

var (
	refreshMode  string
	searchQuery  string
	pageNumber   int
	pageSize     int
	captureFirst bool
	watch        bool
	interval     time.Duration

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the session JSON API and metrics",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	baselineCmd = &cobra.Command{
		Use:   "baseline",
		Short: "Capture a fresh baseline of recently reporting nodes",
		Args:  cobra.NoArgs,
		RunE:  runBaseline,
	}

	compareCmd = &cobra.Command{
		Use:   "compare",
		Short: "Compare current telemetry against the stored baseline",
		Args:  cobra.NoArgs,
		RunE:  runCompare,
	}

	totalsCmd = &cobra.Command{
		Use:   "totals",
		Short: "Print fleet-wide advancement totals",
		Args:  cobra.NoArgs,
		RunE:  runTotals,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print store connection telemetry",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
)

func init() {
	compareCmd.Flags().StringVarP(&refreshMode, "mode", "m", string(models.RefreshAll), "refresh mode: fsue or all")
	compareCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "filter by node number or installation name")
	compareCmd.Flags().IntVarP(&pageNumber, "page", "p", 1, "page to show, starting at 1")
	compareCmd.Flags().IntVar(&pageSize, "page-size", 0, "rows per page (50-2000, step 50; default from config)")
	compareCmd.Flags().BoolVar(&captureFirst, "capture", false, "capture a new baseline before comparing")
	compareCmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep refreshing on an interval")
	compareCmd.Flags().DurationVar(&interval, "interval", 0, "watch interval (5s-60s; default from config)")

	totalsCmd.Flags().StringVarP(&refreshMode, "mode", "m", string(models.RefreshAll), "refresh mode: fsue or all")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	idle := time.Duration(a.cfg.Sessions.IdleTimeout)

	opts := []api.ServerOption{
		api.WithLogger(a.log),
		api.WithPageSize(a.cfg.PageSize),
		api.WithSessionIdleTimeout(idle),
	}

	if rate := time.Duration(a.cfg.Sessions.CycleRate); rate > 0 {
		opts = append(opts, api.WithCycleRate(rate))
	}

	if a.cfg.Metrics.Enabled {
		opts = append(opts, api.WithMetrics(a.metrics, a.cfg.Metrics.Path))
	}

	if a.cfg.WebDir != "" {
		opts = append(opts, api.WithWebDir(a.cfg.WebDir))
	}

	server := api.NewAPIServer(a.verifier, opts...)

	services := []lifecycle.Service{api.NewSessionSweeper(server, sweepInterval(idle))}

	if a.cfg.Metrics.Enabled {
		services = append(services,
			verifier.NewStatsPoller(a.verifier, time.Duration(a.cfg.RefreshInterval), a.log))
	}

	return lifecycle.RunServer(cmd.Context(), &lifecycle.ServerOptions{
		ListenAddr:  a.cfg.ListenAddr,
		ServiceName: "nodeverify",
		Handler:     server,
		Services:    services,
		Logger:      a.log,
	})
}

// sweepInterval checks for idle sessions a few times per timeout.
func sweepInterval(idle time.Duration) time.Duration {
	const floor = time.Second

	if every := idle / 4; every > floor {
		return every
	}

	return floor
}

func runBaseline(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	sess := verifier.NewSession("cli", a.cfg.PageSize)

	view, err := a.verifier.Cycle(cmd.Context(), sess, verifier.Action{Baseline: true})
	if err != nil {
		return err
	}

	return render(cmd.OutOrStdout(), view)
}

func runCompare(cmd *cobra.Command, _ []string) error {
	mode, err := models.ParseRefreshMode(refreshMode)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sess, err := cliSession(a.cfg)
	if err != nil {
		return err
	}

	action := verifier.Action{
		Baseline:    captureFirst,
		RefreshFSUE: mode == models.RefreshFSUE,
		RefreshAll:  mode == models.RefreshAll,
	}

	if !captureFirst {
		sess.AdoptStoredBaseline()
	}

	view, err := a.verifier.Cycle(ctx, sess, action)
	if err != nil {
		return err
	}

	// Cycle resets the page after a refresh, so the requested page is applied
	// to a second read.
	if pageNumber > 1 {
		sess.SetPage(pageNumber-1, view.Page.TotalPages)

		if view, err = a.verifier.Dashboard(ctx, sess); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()

	if err := render(out, view); err != nil {
		return err
	}

	if !watch {
		return nil
	}

	every := interval
	if every == 0 {
		every = time.Duration(a.cfg.RefreshInterval)
	}

	if every < config.MinRefreshInterval || every > config.MaxRefreshInterval {
		return fmt.Errorf("watch interval %s outside %s-%s", every, config.MinRefreshInterval, config.MaxRefreshInterval)
	}

	refresher := verifier.NewRefresher(a.verifier, every, func(v *verifier.View, err error) {
		if err != nil {
			fmt.Fprintf(out, "refresh failed (%s): %v\n", verifier.Class(err), err)
			return
		}

		_ = render(out, v)
	}, a.log)

	// The refresher's first cycle is immediate; skip it past the one just rendered.
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(every):
	}

	err = refresher.Run(ctx, sess)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func cliSession(cfg *config.Config) (*verifier.Session, error) {
	sess := verifier.NewSession("cli", cfg.PageSize)

	if pageSize != 0 {
		if err := sess.SetPageSize(pageSize); err != nil {
			return nil, err
		}
	}

	sess.SetQuery(searchQuery)

	return sess, nil
}

func runTotals(cmd *cobra.Command, _ []string) error {
	mode, err := models.ParseRefreshMode(refreshMode)
	if err != nil {
		return err
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	totals, err := a.verifier.Totals(cmd.Context(), mode)
	if err != nil {
		return err
	}

	return renderTotals(cmd.OutOrStdout(), totals, mode)
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.verifier.Stats(cmd.Context())
	if err != nil {
		return err
	}

	return renderStats(cmd.OutOrStdout(), stats)
}
