package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	catalogapp "github.com/bookstore/fulfillment/internal/catalog/app"
	catalogpg "github.com/bookstore/fulfillment/internal/catalog/infra/postgres"
	catalogrest "github.com/bookstore/fulfillment/internal/catalog/rest"
	inventoryapp "github.com/bookstore/fulfillment/internal/inventory/app"
	inventorypg "github.com/bookstore/fulfillment/internal/inventory/infra/postgres"
	inventoryrest "github.com/bookstore/fulfillment/internal/inventory/rest"
	orderapp "github.com/bookstore/fulfillment/internal/order/app"
	"github.com/bookstore/fulfillment/internal/order/infra/adapter"
	orderkafka "github.com/bookstore/fulfillment/internal/order/infra/kafka"
	orderpg "github.com/bookstore/fulfillment/internal/order/infra/postgres"
	orderrest "github.com/bookstore/fulfillment/internal/order/rest"

	"github.com/bookstore/fulfillment/pkg/config"
	"github.com/bookstore/fulfillment/pkg/logger"
	"github.com/bookstore/fulfillment/pkg/postgres"
	"github.com/bookstore/fulfillment/pkg/shutdown"
)

const migrationVersionFormat = "20060102150405"

func main() {
	rootCmd := &cobra.Command{Use: "fulfillment"}
	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		createMigrationCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the fulfillment HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			log := logger.New(logger.Options{Service: "fulfillment", Env: cfg.AppEnv, Level: cfg.LogLevel, AddSource: true})

			ctx, cancel := shutdown.WithSignals(context.Background())
			defer cancel()

			db, err := postgres.Open(cfg.PostgresDSN)
			if err != nil {
				log.Error("db open failed", slog.Any("err", err))
				os.Exit(1)
			}
			defer db.Close()

			// Catalog
			catalogRepo := catalogpg.NewProductRepo(db)
			catalogSvc := catalogapp.NewService(catalogRepo)

			// Inventory ledger
			inventoryRepo := inventorypg.NewInventoryRepo(db)
			inventorySvc := inventoryapp.NewService(inventoryRepo, log)

			// Order workflows, talking to the collaborators through adapters
			var events orderapp.EventPublisher = orderkafka.NopPublisher{}
			if len(cfg.KafkaBrokers) > 0 {
				publisher, err := orderkafka.NewPublisher(cfg.KafkaBrokers, cfg.OrderEventsTopic)
				if err != nil {
					log.Error("kafka publisher failed", slog.Any("err", err))
					os.Exit(1)
				}
				defer publisher.Close()
				events = publisher
			}

			orderRepo := orderpg.NewOrderRepo(db)
			orderSvc := orderapp.NewService(
				db,
				orderRepo,
				adapter.NewInventoryServiceLedger(inventorySvc),
				adapter.NewCatalogServiceReader(catalogSvc),
				events,
				log,
				cfg.PriceLookupConcurrency,
			)

			mux := http.NewServeMux()
			mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
				if err := db.PingContext(r.Context()); err != nil {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				w.WriteHeader(http.StatusOK)
			})
			catalogrest.NewServer(catalogSvc).RegisterRoutes(mux)
			orderrest.NewServer(orderSvc).RegisterRoutes(mux)
			inventoryrest.NewServer(inventorySvc).RegisterRoutes(mux)

			addr := fmt.Sprintf(":%d", cfg.HTTPPort)
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      15 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				log.Info("http server starting", slog.String("addr", addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server error", slog.Any("err", err))
					cancel()
				}
			}()

			<-ctx.Done()
			log.Info("shutdown requested")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("http shutdown error", slog.Any("err", err))
			}

			wg.Wait()
			log.Info("bye")
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-up",
		Short: "apply all pending migrations",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()

			m, err := migrate.New(
				fmt.Sprintf("file://%s", cfg.MigrationDir),
				cfg.PostgresDSN,
			)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			err = m.Up()
			if err == migrate.ErrNoChange {
				fmt.Println("no change in migration")
				return
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Println("migrated up")
		},
	}
}

func createMigrationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-create [name]",
		Short: "create empty up/down migration files",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.Load()
			version := time.Now().Format(migrationVersionFormat)

			up := fmt.Sprintf("%s/%s_%s.up.sql", cfg.MigrationDir, version, args[0])
			down := fmt.Sprintf("%s/%s_%s.down.sql", cfg.MigrationDir, version, args[0])

			if err := os.WriteFile(up, []byte{}, 0o644); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			if err := os.WriteFile(down, []byte{}, 0o644); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			fmt.Println("created", up)
			fmt.Println("created", down)
		},
	}
}
