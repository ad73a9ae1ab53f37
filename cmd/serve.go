package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gigflow/application"
	"gigflow/domain"
	"gigflow/infrastructure"
	"gigflow/interfaces"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := infrastructure.LoadConfig()
		if err != nil {
			return err
		}
		log, err := infrastructure.NewLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

func serve(ctx context.Context, cfg infrastructure.Config, log *zap.SugaredLogger) error {
	shutdownTracing, err := infrastructure.SetupTracing(ctx, cfg, "gigflow")
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	hub := infrastructure.NewHub(log.Named("hub"))
	var sink domain.NotificationSink = hub
	if cfg.NotifyTransport == infrastructure.TransportRabbitMQ {
		rmq, err := infrastructure.NewRabbitMQ(cfg, log.Named("rabbitmq"))
		if err != nil {
			return err
		}
		defer rmq.Close()
		if err := rmq.ConsumeNotifications(ctx, hub); err != nil {
			return err
		}
		sink = rmq
	}

	notifier := infrastructure.NewAsyncNotifier(sink, log.Named("notifier"), cfg.NotifyBuffer)
	// Stopped only after the HTTP drain so events from in-flight hires are flushed.
	stopNotifier := notifier.Start()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), interfaces.RequestLogger(log.Named("http")))
	interfaces.NewHTTPHandler(router, interfaces.Dependencies{
		Jobs:    application.NewJobRegistry(store, log.Named("jobs")),
		Bids:    application.NewBidLedger(store, notifier, log.Named("bids")),
		Hiring:  application.NewHiringCoordinator(store, notifier, log.Named("hiring")),
		Hub:     hub,
		Auth:    interfaces.NewAuthenticator(cfg.JWTSecret),
		Log:     log.Named("http"),
		Timeout: cfg.OperationTimeout,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Infow("server listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "notify", cfg.NotifyTransport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stopNotifier()
			return err
		}
	case <-ctx.Done():
	}

	log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http shutdown", "error", err)
	}
	stopNotifier()
	return nil
}

func openStore(cfg infrastructure.Config, log *zap.SugaredLogger) (domain.Store, error) {
	if cfg.StoreDriver == infrastructure.StoreMemory {
		log.Warnw("using in-memory store, data is lost on exit")
		return infrastructure.NewMemoryStore(), nil
	}

	db, err := infrastructure.NewMySQLConnection(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate {
		if err := infrastructure.Migrate(db); err != nil {
			return nil, err
		}
	}
	log.Infow("connected to MySQL")
	return infrastructure.NewGormStore(db), nil
}
