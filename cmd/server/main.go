package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"carrieralpha/internal/catalog"
	catalogstore "carrieralpha/internal/catalog/store"
	"carrieralpha/internal/eligibility"
	"carrieralpha/internal/platform/config"
	"carrieralpha/internal/platform/httpserver"
	"carrieralpha/internal/platform/kafka/producer"
	"carrieralpha/internal/platform/logger"
	httpmetrics "carrieralpha/internal/platform/metrics"
	"carrieralpha/internal/platform/postgres"
	recoveryhandler "carrieralpha/internal/recovery/handler"
	recoverymetrics "carrieralpha/internal/recovery/metrics"
	recoveryservice "carrieralpha/internal/recovery/service"
	auditstore "carrieralpha/internal/recovery/store/auditresult"
	claimstore "carrieralpha/internal/recovery/store/claim"
	shipmentstore "carrieralpha/internal/shipment/store"
	httptransport "carrieralpha/internal/transport/http"
	outboxmemory "carrieralpha/pkg/platform/outbox/store/memory"
	outboxpostgres "carrieralpha/pkg/platform/outbox/store/postgres"
	outboxworker "carrieralpha/pkg/platform/outbox/worker"
	txcontext "carrieralpha/pkg/platform/tx"
)

// topicPartitions is used when the relay has to create its topic.
const topicPartitions = 6

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

// outboxStore is what both the service and the relay need from the event outbox.
type outboxStore interface {
	recoveryservice.OutboxStore
	outboxworker.Store
}

type stores struct {
	db        *sql.DB
	shipments recoveryservice.ShipmentStore
	audits    recoveryservice.AuditStore
	claims    recoveryservice.ClaimStore
	outbox    outboxStore
	tx        recoveryservice.StoreTx
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	snap, err := loadCatalog(ctx, cfg, st.db, log)
	if err != nil {
		return err
	}
	provider := catalog.NewProvider(snap)

	auditor, err := eligibility.NewAuditor(eligibility.Policy{
		Mode:                      eligibility.RecoveryMode(cfg.RecoveryMode),
		FractionBPS:               cfg.RecoveryFractionBPS,
		ConfidenceThreshold:       cfg.ConfidenceThreshold,
		SkewWindow:                cfg.SkewWindow,
		ResidentialWeightLimitLbs: cfg.ResidentialWeightLimitLbs,
		DimDivisor:                cfg.DimDivisor,
	})
	if err != nil {
		return fmt.Errorf("audit policy: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := recoveryservice.New(st.shipments, st.audits, st.claims, provider, auditor,
		recoveryservice.WithLogger(log),
		recoveryservice.WithMetrics(recoverymetrics.New(reg)),
		recoveryservice.WithStoreTx(st.tx),
		recoveryservice.WithOutbox(st.outbox),
		recoveryservice.WithAuditWorkers(cfg.AuditWorkers),
	)

	router := httptransport.NewRouter(log, httpmetrics.New(reg), reg, recoveryhandler.New(svc, log))
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting carrier-alpha", "addr", cfg.Addr, "catalog_version", snap.Version(), "postgres", st.db != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
	g.Go(func() error {
		return reloadCatalogOnHangup(gctx, cfg, catalogReloader(cfg, st.db), provider, log)
	})
	if len(cfg.KafkaBrokers) > 0 {
		g.Go(func() error {
			return runRelay(gctx, cfg, st.outbox, log)
		})
	} else {
		log.Warn("KAFKA_BROKERS not set; audit and claim events stay in the outbox")
	}
	return g.Wait()
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set; using in-memory stores")
		return &stores{
			shipments: shipmentstore.NewInMemory(),
			audits:    auditstore.NewInMemory(),
			claims:    claimstore.NewInMemory(),
			outbox:    outboxmemory.NewInMemoryStore(),
			tx:        recoveryservice.NewInMemoryTx(cfg.TxTimeout),
		}, nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &stores{
		db:        db,
		shipments: shipmentstore.NewPostgres(db),
		audits:    auditstore.NewPostgres(db),
		claims:    claimstore.NewPostgres(db),
		outbox:    outboxpostgres.New(db),
		tx:        txcontext.NewPostgresRunner(db, cfg.TxTimeout),
	}, nil
}

// loadCatalog prefers the catalog persisted in Postgres and seeds it from the
// catalog file on first boot.
func loadCatalog(ctx context.Context, cfg config.Config, db *sql.DB, log *slog.Logger) (*catalog.Snapshot, error) {
	if db == nil {
		return catalog.LoadFile(cfg.CatalogFile)
	}
	store := catalogstore.NewPostgres(db)
	empty, err := store.Empty(ctx)
	if err != nil {
		return nil, err
	}
	if !empty {
		return store.Load(ctx)
	}
	snap, err := catalogReloader(cfg, db)(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("seeded catalog from file", "file", cfg.CatalogFile, "catalog_version", snap.Version())
	return snap, nil
}

// catalogReloader parses the catalog file. With Postgres the file replaces the
// stored catalog and the snapshot served is the one read back, so a restart loads
// the same rules under the same version.
func catalogReloader(cfg config.Config, db *sql.DB) func(context.Context) (*catalog.Snapshot, error) {
	return func(ctx context.Context) (*catalog.Snapshot, error) {
		snap, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil || db == nil {
			return snap, err
		}
		return catalogstore.NewPostgres(db).Sync(ctx, snap)
	}
}

// reloadCatalogOnHangup swaps in a reloaded catalog on SIGHUP. A reload that fails
// leaves the current snapshot in place.
func reloadCatalogOnHangup(ctx context.Context, cfg config.Config, reload func(context.Context) (*catalog.Snapshot, error), provider *catalog.Provider, log *slog.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			next, err := reload(ctx)
			if err != nil {
				log.Error("catalog reload failed", "file", cfg.CatalogFile, "error", err)
				continue
			}
			prev := provider.Swap(next)
			log.Info("catalog reloaded", "previous_version", prev.Version(), "catalog_version", next.Version())
		}
	}
}

func runRelay(ctx context.Context, cfg config.Config, store outboxworker.Store, log *slog.Logger) error {
	p, err := producer.New(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		return err
	}
	defer p.Close(context.Background())
	if err := p.EnsureTopic(ctx, topicPartitions); err != nil {
		log.Warn("kafka topic bootstrap failed; relying on broker auto-creation", "topic", cfg.KafkaTopic, "error", err)
	}
	relay := outboxworker.NewRelay(store, p, cfg.OutboxPollInterval, outboxworker.WithLogger(log))
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("outbox relay: %w", err)
	}
	return nil
}
