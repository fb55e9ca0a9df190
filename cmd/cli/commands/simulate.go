package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/simulator"
	"github.com/jakechorley/volunteer-dispatch/pkg/metrics"
)

// SimulateCmd creates the simulate command
func SimulateCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the simulated clock in real time until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			rule, _ := cmd.Flags().GetString("rule")
			ticks, _ := cmd.Flags().GetInt("ticks")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

			if !cmd.Flags().Changed("interval") && app.Cfg.Simulator.Interval > 0 {
				interval = app.Cfg.Simulator.Interval
			}
			if rule == "" {
				rule = app.Cfg.Simulator.StepRule
			}

			sim, err := simulator.New(app.Clock, app.Admin, app.Calls, interval, rule, app.Logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						app.Logger.Error("Metrics server failed", zap.Error(err))
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				app.Logger.Info("Serving metrics", zap.String("addr", metricsAddr))
			}

			out := cmd.OutOrStdout()
			done := make(chan struct{})
			var once sync.Once
			count := 0
			sim.OnTick(func(t simulator.Tick) {
				count++
				fmt.Fprintf(out, "%s  expired %d  %s\n", t.Now.Format(displayTime), t.Expired, summarizeCounts(t))
				if ticks > 0 && count >= ticks {
					once.Do(func() { close(done) })
				}
			})

			if err := sim.Start(ctx); err != nil {
				return err
			}
			defer sim.Stop()

			fmt.Fprintf(out, "\nSimulating from %s, one step every %s (Ctrl-C to stop)\n\n",
				app.Clock.Now().Format(displayTime), interval)

			select {
			case <-ctx.Done():
			case <-done:
			}
			return nil
		},
	}

	cmd.Flags().Duration("interval", time.Second, "Real time between steps")
	cmd.Flags().String("rule", "", "RRULE for each clock step (default FREQ=MINUTELY;INTERVAL=5)")
	cmd.Flags().Int("ticks", 0, "Stop after this many steps (0 runs until interrupted)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func summarizeCounts(t simulator.Tick) string {
	parts := make([]string, 0, len(t.Counts))
	for _, c := range t.Counts {
		if c.Count > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", c.Status, c.Count))
		}
	}
	if len(parts) == 0 {
		return "no calls"
	}
	return strings.Join(parts, " ")
}
