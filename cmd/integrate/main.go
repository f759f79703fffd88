// Command integrate re-runs the integration engine for APPROVED
// contributions whose merge into the schedule graph did not complete
// (flagged "integration pending"). Safe to run repeatedly: already
// integrated tuples resolve to exact-duplicate skips.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/perundhu/perundhu-backend/internal/adapter/blobstore"
	"github.com/perundhu/perundhu-backend/internal/adapter/postgres"
	contribrepo "github.com/perundhu/perundhu-backend/internal/adapter/postgres/contribution"
	routerepo "github.com/perundhu/perundhu-backend/internal/adapter/postgres/routecontrib"
	schedulerepo "github.com/perundhu/perundhu-backend/internal/adapter/postgres/schedule"
	skiprepo "github.com/perundhu/perundhu-backend/internal/adapter/postgres/skipledger"
	timingrepo "github.com/perundhu/perundhu-backend/internal/adapter/postgres/timing"
	"github.com/perundhu/perundhu-backend/internal/adapter/vision"
	"github.com/perundhu/perundhu-backend/internal/app"
	"github.com/perundhu/perundhu-backend/internal/config"
	contribsvc "github.com/perundhu/perundhu-backend/internal/service/contribution"
	"github.com/perundhu/perundhu-backend/internal/service/dedup"
	"github.com/perundhu/perundhu-backend/internal/service/integration"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Log)
	logger.Info("integrate starting", slog.String("version", app.BuildVersion()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("integration run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	blobs, err := blobstore.NewLocal(cfg.Storage, logger)
	if err != nil {
		return err
	}

	contribs := contribrepo.New(pool)
	skips := skiprepo.New(pool)
	timings := timingrepo.New(pool)
	schedule := schedulerepo.New(pool)
	routes := routerepo.New(pool)
	tx := postgres.NewTxManager(pool)

	matcher := dedup.NewService(logger, schedule, routes, cfg.Dedup)
	engine := integration.NewService(logger, timings, skips, schedule, matcher, tx, cfg.Integration)
	gateway := vision.New(cfg.Vision, logger)
	svc := contribsvc.NewService(logger, contribs, skips, blobs, gateway, engine)

	pending, err := svc.ListPendingIntegration(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Info("no contributions awaiting integration")
		return nil
	}
	logger.Info("reintegrating contributions",
		slog.Int("count", len(pending)),
		slog.Int("workers", cfg.Integration.Workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Integration.Workers)

	for _, c := range pending {
		g.Go(func() error {
			done, err := svc.Reintegrate(gctx, c.ID)
			if err != nil {
				logger.Error("reintegration failed",
					slog.String("contribution_id", c.ID.String()), slog.Any("error", err))
				return err
			}
			logger.Info("contribution reintegrated",
				slog.String("contribution_id", done.ID.String()),
				slog.Int("created", done.CreatedRecords),
				slog.Int("merged", done.MergedRecords),
			)
			return nil
		})
	}

	return g.Wait()
}
