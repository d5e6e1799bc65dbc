package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/chachabrian/mooveit-dispatch/internal/config"
	"github.com/chachabrian/mooveit-dispatch/internal/database"
	"github.com/chachabrian/mooveit-dispatch/internal/handlers"
	"github.com/chachabrian/mooveit-dispatch/internal/logger"
	"github.com/chachabrian/mooveit-dispatch/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const (
	serviceName     = "mooveit-dispatch"
	shutdownTimeout = 15 * time.Second
)

var serveMemory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatch HTTP API",
	Long: `Starts the HTTP API on PORT. By default state lives in postgres and
events go to the broker named by EVENT_BROKER. --memory keeps all state
in process, which is useful for demos and local testing.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "keep state in memory instead of postgres")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	log := logger.New(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, closers, err := buildServices(ctx, cfg, log)
	defer func() {
		for _, c := range closers {
			if cerr := c.Close(); cerr != nil {
				log.Warn("close failed", "error", cerr)
			}
		}
	}()
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(svc, cfg.JWTSecret, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", server.Addr, "memory", serveMemory, "broker", cfg.EventBroker)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		if cerr := server.Close(); cerr != nil {
			return fmt.Errorf("could not force close server: %w", cerr)
		}
		return fmt.Errorf("could not gracefully shutdown server: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// buildServices opens every backing dependency named by cfg and wires the
// dispatch services on top. The returned closers must be closed even when
// err is non-nil.
func buildServices(ctx context.Context, cfg *config.Config, log *slog.Logger) (handlers.Services, []io.Closer, error) {
	var closers []io.Closer

	var store database.Store
	if serveMemory {
		store = database.NewMemoryStore()
	} else {
		db, err := database.InitDB(cfg.Database)
		if err != nil {
			return handlers.Services{}, closers, err
		}
		if err := database.RunMigrations(db); err != nil {
			return handlers.Services{}, closers, fmt.Errorf("migration failed: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, sqlDB)
		}
		store = database.NewGormStore(db)
	}

	opts := []services.Option{services.WithLogger(log)}

	hub := services.NewHub(log)
	go hub.Run(ctx)
	publishers := services.MultiPublisher{hub}

	if cfg.EventBroker != config.BrokerNone {
		rdb, err := services.InitRedis(ctx, cfg.RedisURL)
		if err != nil {
			return handlers.Services{}, closers, err
		}
		closers = append(closers, rdb)
		opts = append(opts, services.WithAvailabilityCache(services.NewRedisAvailabilityCache(rdb)))

		switch cfg.EventBroker {
		case config.BrokerRedis:
			publishers = append(publishers, services.NewRedisPublisher(rdb))
		case config.BrokerRabbitMQ:
			rabbit, err := services.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
			if err != nil {
				return handlers.Services{}, closers, err
			}
			closers = append(closers, rabbit)
			publishers = append(publishers, rabbit)
		}
	}

	opts = append(opts, services.WithEvents(publishers))

	receipts, err := services.NewReceiptStore(cfg.AWS, cfg.ReceiptDir)
	if err != nil {
		return handlers.Services{}, closers, err
	}

	var gateway services.PaymentGateway = services.DeclineGateway{}
	if cfg.GatewayURL != "" {
		gateway = services.NewHTTPGateway(cfg.GatewayURL)
	} else {
		log.Warn("PAYMENT_GATEWAY_URL not set; card and wallet payments will be declined")
	}

	fares := services.NewFareCalculator(services.CoordinateDistance{Fallback: cfg.FallbackDistance})
	bookings := services.NewBookingService(store, fares, opts...)

	return handlers.Services{
		Bookings:   bookings,
		Assignment: services.NewAssignmentService(store, bookings, opts...),
		Payments: services.NewPaymentService(store, gateway,
			services.WithGatewayTimeout(cfg.GatewayTimeout),
			services.WithReceipts(receipts),
			services.WithServiceOptions(opts...),
		),
		Drivers: services.NewDriverService(store, opts...),
		Events:  hub,
	}, closers, nil
}
