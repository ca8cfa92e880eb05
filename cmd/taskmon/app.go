package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/mirovis/taskcore/internal/api"
	"github.com/mirovis/taskcore/internal/async"
	"github.com/mirovis/taskcore/internal/config"
	"github.com/mirovis/taskcore/internal/ui"
	"github.com/mirovis/taskcore/internal/watch"
)

// application holds the wired-together components of the taskmon process.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	loop    *watch.Loop
	manager *watch.Manager
	pool    *async.Pool
}

func newApplication(cfg *config.Config, logger *slog.Logger) *application {
	loop := watch.NewLoop()
	return &application{
		config:  cfg,
		logger:  logger,
		loop:    loop,
		manager: watch.NewManager(loop, logger),
		pool: async.NewPool(async.PoolConfig{
			Workers:   cfg.Pool.Workers,
			QueueSize: cfg.Pool.QueueSize,
		}, logger),
	}
}

// Run drives the process: the event loop gets its own goroutine, the demo
// workload runs on the pool, and the monitor server and terminal panel are
// started when configured. Returns when the workload completes or the
// context is canceled.
func (app *application) Run(ctx context.Context) error {
	defer app.pool.Stop()

	// The loop outlives ctx cancellation on purpose: teardown still needs
	// a running loop for the final queued invocations.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go app.loop.RunUntil(loopCtx.Done())

	g, gctx := errgroup.WithContext(ctx)

	if app.config.Monitor.Enabled {
		g.Go(func() error {
			return app.startMonitorServer(gctx)
		})
	}

	workloadDone := make(chan struct{})
	g.Go(func() error {
		defer close(workloadDone)
		return app.runWorkload(gctx)
	})

	if app.config.UI.Enabled {
		events := app.manager.Subscribe(256)
		go func() {
			// The panel quits when its event channel closes.
			<-workloadDone
			// Give trailing terminal notifications time to drain.
			time.Sleep(100 * time.Millisecond)
			app.manager.Unsubscribe(events)
		}()
		model := ui.NewTaskModel("taskmon", events, func() {
			app.loop.Post(app.manager.CancelAll)
		})
		program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
		if _, err := program.Run(); err != nil {
			app.logger.Error("task panel failed", "error", err)
		}
	}

	err := g.Wait()
	app.loop.Invoke(app.manager.Shutdown)
	stopLoop()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// startMonitorServer runs the HTTP monitor with graceful shutdown. It
// returns when ctx is canceled or the listener fails.
func (app *application) startMonitorServer(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Monitor.Port),
		Handler: api.NewRouter(app.manager, app.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("starting monitor server", "port", app.config.Monitor.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("monitor server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("monitor server shutdown failed: %w", err)
	}
	app.logger.Info("monitor server shutdown completed")
	return nil
}
