package appbootstrap

import (
	"context"
	"fmt"
	"time"

	"cityfix/api"
	"cityfix/config"
	"cityfix/core/store"
	"cityfix/core/utils"
)

// Run opens the database, migrates it, starts background workers and serves
// HTTP until ctx is cancelled.
func Run(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) error {
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rt, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return err
	}
	if err := rt.accounts.EnsureAdmin(ctx); err != nil {
		return err
	}

	started := make([]api.BackgroundWorker, 0, len(rt.workers))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, w := range started {
			if err := w.StopWithContext(stopCtx); err != nil {
				logger.Errorf("stop worker: %v", err)
			}
		}
	}()
	for _, w := range rt.workers {
		if err := w.StartWithContext(ctx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
		started = append(started, w)
	}

	srv := api.NewServer(cfg, rt.serverDeps, logger)
	return srv.ListenAndServe(ctx)
}
