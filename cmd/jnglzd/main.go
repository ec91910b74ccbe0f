package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/config"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/engine"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/observability"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/persistence"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/publish"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/query"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/server"
	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/server/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional; env vars override)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := observability.NewLoggerWithLevel("jnglzd", level)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("jnglzd exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("jnglzd starting")

	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("postgres open: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	log.Info().Msg("postgres connected")

	migrator := persistence.NewMigrator(db, cfg.Postgres.MigrationsDir, log)
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// --- Channels ---
	// The persist channel blocks (backpressure); everything downstream of the
	// broadcast fan-out drops when slow.
	persistChan := make(chan engine.Output, cfg.Engine.PersistChanSize)
	broadcastChan := make(chan engine.Output, cfg.Engine.BroadcastSize)
	hubChan := make(chan engine.Output, cfg.Engine.BroadcastSize)

	var pubChan chan engine.Output
	if cfg.NATS.Enabled {
		pubChan = make(chan engine.Output, cfg.Engine.BroadcastSize)
	}

	// --- Engine ---
	eng, err := engine.New(engine.Config{
		Signers:       cfg.SignerAddresses(),
		Treasury:      cfg.TreasuryAddress(),
		ActionExpiry:  cfg.Engine.ActionExpiry,
		Params:        engine.DefaultParams(),
		Clock:         time.Now,
		Logger:        log.With().Str("component", "engine").Logger(),
		Metrics:       metrics,
		PersistChan:   persistChan,
		BroadcastChan: broadcastChan,
	})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	// --- Recovery from latest snapshot ---
	snapMgr := persistence.NewSnapshotManager(db)
	writer := persistence.NewEventLogWriter(db)

	snap, err := snapMgr.LoadLatest(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap != nil {
		if err := eng.Restore(snap); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		log.Info().Int64("sequence", snap.Sequence).Msg("state restored from snapshot")

		latest, err := writer.LatestSequence(ctx)
		if err != nil {
			return fmt.Errorf("latest event sequence: %w", err)
		}
		if latest > snap.Sequence {
			log.Warn().
				Int64("snapshot_seq", snap.Sequence).
				Int64("event_log_seq", latest).
				Msg("event log is ahead of the latest snapshot; unclean shutdown suspected")
		}
	} else {
		log.Info().Msg("no snapshot found, cold start")
	}

	// --- NATS ---
	var nc *nats.Conn
	var publisher *publish.Publisher
	if cfg.NATS.Enabled {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name("jnglzd"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()

		js, err := jetstream.New(nc)
		if err != nil {
			return fmt.Errorf("jetstream: %w", err)
		}
		if err := publish.EnsureStream(ctx, js); err != nil {
			return fmt.Errorf("ensure stream: %w", err)
		}
		publisher = publish.New(js, pubChan, log.With().Str("component", "publish").Logger(), metrics)
		log.Info().Str("url", cfg.NATS.URL).Msg("nats connected")
	}

	// --- HTTP surface ---
	hub := ws.NewHub(hubChan, log.With().Str("component", "ws").Logger(), metrics)
	qs := query.NewService(eng)
	srv := server.New(cfg.Server.HTTPAddr, eng, qs, hub, health, log.With().Str("component", "http").Logger(), metrics)

	g, gctx := errgroup.WithContext(ctx)

	// Persistence worker: the only consumer allowed to block the engine.
	worker := persistence.NewWorker(db, persistChan, cfg.Persistence.BatchSize,
		cfg.Persistence.FlushTimeout, log.With().Str("component", "persist").Logger(), metrics)
	g.Go(func() error {
		return worker.Run(gctx)
	})

	// Broadcast fan-out: one engine output stream, duplicated non-blocking to
	// the websocket hub and the NATS publisher.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case out := <-broadcastChan:
				trySend(hubChan, out, metrics)
				trySend(pubChan, out, metrics)
			}
		}
	})

	g.Go(func() error {
		return hub.Run(gctx)
	})

	if publisher != nil {
		g.Go(func() error {
			return publisher.Run(gctx)
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http server listening")
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	// Metrics server.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics server listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutCtx)
	})

	// Periodic snapshots.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Persistence.SnapshotInterval)
		defer ticker.Stop()
		lastSeq := eng.Sequence()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				seq := eng.Sequence()
				if seq == lastSeq {
					continue
				}
				if err := saveSnapshot(gctx, eng, snapMgr, cfg.Persistence.SnapshotsKept, log); err != nil {
					log.Warn().Err(err).Msg("periodic snapshot failed")
					continue
				}
				lastSeq = seq
			}
		}
	})

	health.SetReady(true)
	log.Info().
		Int64("sequence", eng.Sequence()).
		Str("http", cfg.Server.HTTPAddr).
		Str("metrics", cfg.Server.MetricsAddr).
		Msg("jnglzd ready")

	err = g.Wait()
	health.SetReady(false)

	// Final snapshot on the way out so the next start recovers exactly here.
	// The persistence worker has already flushed its queue on shutdown.
	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if snapErr := saveSnapshot(shutCtx, eng, snapMgr, cfg.Persistence.SnapshotsKept, log); snapErr != nil {
		log.Error().Err(snapErr).Msg("final snapshot failed")
	} else {
		log.Info().Msg("final snapshot saved")
	}

	log.Info().Msg("jnglzd shutdown complete")
	return err
}

func saveSnapshot(ctx context.Context, eng *engine.Engine, snapMgr *persistence.SnapshotManager, keep int, log zerolog.Logger) error {
	start := time.Now()
	snap := eng.Snapshot()
	if err := snapMgr.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := snapMgr.Prune(ctx, keep); err != nil {
		log.Warn().Err(err).Msg("snapshot prune failed")
	}
	log.Info().
		Int64("sequence", snap.Sequence).
		Dur("took", time.Since(start)).
		Msg("snapshot saved")
	return nil
}

// trySend forwards an engine output without ever blocking; nil channels and
// full buffers both count as a drop.
func trySend(ch chan engine.Output, out engine.Output, metrics *observability.Metrics) {
	if ch == nil {
		return
	}
	select {
	case ch <- out:
	default:
		metrics.BroadcastDrops.Inc()
	}
}
