package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// job is one periodic task of the schedule command
type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

// cronLogger adapts zap to cron's logger
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// scheduleJobs adds every job with a non-empty spec to c. Each run gets
// ctx, so cancelling it stops the running jobs. It returns the number of
// jobs scheduled.
func scheduleJobs(ctx context.Context, c *cron.Cron, jobs []job, logger *zap.Logger, onError func(job string, err error)) (int, error) {
	n := 0
	for _, j := range jobs {
		j := j
		if j.spec == "" {
			logger.Info("job disabled", zap.String("job", j.name))
			continue
		}
		_, err := c.AddFunc(j.spec, func() {
			start := time.Now()
			if err := j.run(ctx); err != nil {
				logger.Error("scheduled job failed", zap.String("job", j.name), zap.Error(err))
				onError(j.name, err)
				return
			}
			logger.Info("scheduled job finished", zap.String("job", j.name), zap.Duration("took", time.Since(start)))
		})
		if err != nil {
			return n, fmt.Errorf("invalid schedule %q for %s: %w", j.spec, j.name, err)
		}
		logger.Info("job scheduled", zap.String("job", j.name), zap.String("spec", j.spec))
		n++
	}
	return n, nil
}

func (a *app) jobs() []job {
	return []job{
		{
			name: "import-today",
			spec: a.cfg.CronImportToday,
			run: func(ctx context.Context) error {
				day := a.today()
				_, err := a.runImport(ctx, day, day, nil)
				return err
			},
		},
		{
			name: "import-tomorrow",
			spec: a.cfg.CronImportTomorrow,
			run: func(ctx context.Context) error {
				day := a.tomorrow()
				_, err := a.runImport(ctx, day, day, nil)
				return err
			},
		},
		{
			name: "prune",
			spec: a.cfg.CronPrune,
			run: func(ctx context.Context) error {
				_, err := a.runPrune(ctx)
				return err
			},
		},
		{
			name: "discover-addresses",
			spec: a.cfg.CronDiscover,
			run: func(ctx context.Context) error {
				day := a.today()
				_, err := a.runDiscover(ctx, day, day, nil)
				return err
			},
		},
	}
}

func newMetricsServer(addr string, a *app) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.repo.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func createScheduleCmd() *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run imports, pruning and discovery on their cron schedules",
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			ctx := cmd.Context()
			logger := a.logger

			cl := cronLogger{sugar: logger.Sugar()}
			c := cron.New(
				cron.WithLocation(a.cfg.Location),
				cron.WithLogger(cl),
				cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			)
			n, err := scheduleJobs(ctx, c, a.jobs(), logger, func(name string, err error) {
				a.alertFailure(ctx, name, err)
			})
			if err != nil {
				return err
			}
			if n == 0 {
				return errors.New("no jobs scheduled")
			}

			srv := newMetricsServer(a.cfg.MetricsAddr, a)
			go func() {
				logger.Info("metrics server listening", zap.String("addr", a.cfg.MetricsAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()

			if runNow {
				day := a.today()
				if _, err := a.runImport(ctx, day, day, nil); err != nil {
					logger.Warn("initial import failed", zap.Error(err))
					a.alertFailure(ctx, "import-today", err)
				}
			}

			c.Start()
			logger.Info("scheduler started", zap.Int("jobs", n))

			<-ctx.Done()
			logger.Info("shutting down scheduler")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			select {
			case <-c.Stop().Done():
			case <-shutdownCtx.Done():
				logger.Warn("jobs still running at shutdown")
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&runNow, "run-now", true, "Import today's outages once before waiting for the schedule")
	return cmd
}
