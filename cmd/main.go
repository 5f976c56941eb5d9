/**
 * @description
 * This is the main entry point for the work-order service. It is responsible
 * for initializing all components of the service, including configuration,
 * database connection, the external order-ledger client, the message broker,
 * the repository, the core application service, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/orderclient: Client for the external pedido-service ledger.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/obraflow/workorder-service/internal/api"
	"github.com/obraflow/workorder-service/internal/app"
	"github.com/obraflow/workorder-service/internal/config"
	"github.com/obraflow/workorder-service/internal/store"
	"github.com/obraflow/workorder-service/pkg/orderclient"
	"github.com/obraflow/workorder-service/pkg/rabbitmq"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting workorder-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish lifecycle events. The
	// service only publishes, so a broker outage at boot degrades to the
	// no-op fallback instead of blocking startup.
	var producer rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; event publication disabled\" env=RABBITMQ_URL")
	} else if eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
	} else {
		producer = eventProducer
		defer eventProducer.Close()
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the external order ledger. Missing
	// configuration should not prevent boot; the credit check degrades to
	// the local ceiling alone.
	if cfg.OrderServiceURL == "" {
		log.Println("level=warn component=bootstrap msg=\"order service url missing; ledger checks degrade to local ceiling\" env=ORDER_SERVICE_URL")
	}
	ledgerClient := orderclient.NewClient(cfg.OrderServiceURL, time.Duration(cfg.LedgerFetchTimeoutSecs)*time.Second)

	oracle := app.NewBalanceOracle(ledgerClient, time.Duration(cfg.LedgerFetchTimeoutSecs)*time.Second, cfg.LedgerFetchRetries)

	// Optional Redis cache in front of the ledger fetch.
	var ledgerCache *app.LedgerCache
	if cfg.RedisURL != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; ledger cache disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; ledger cache disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				ledgerCache = app.NewLedgerCache(redisClient, cfg.LedgerCachePrefix, time.Duration(cfg.LedgerCacheTTLSecs)*time.Second)
				oracle.SetCache(ledgerCache)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Subscribe to pedido-service settlement events so cached outstanding
	// totals are dropped as soon as the upstream ledger changes. Needs both
	// the broker and the cache; without either the short TTL covers it.
	if strings.TrimSpace(cfg.RabbitMQURL) != "" && ledgerCache != nil {
		if orderConsumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL); err != nil {
			log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; relying on cache ttl\" err=%v", err)
		} else {
			defer orderConsumer.Close()
			handler := app.NewOrderEventConsumer(ledgerCache)
			bindings := map[string]func([]byte) bool{
				"pedido.settled":   handler.HandleMessage,
				"pedido.cancelled": handler.HandleMessage,
			}
			if err := orderConsumer.ConsumeWithBindings(cfg.OrderEventExchange, cfg.OrderEventQueue, bindings); err != nil {
				log.Printf("level=warn component=bootstrap msg=\"order event subscription failed; relying on cache ttl\" err=%v", err)
			} else {
				log.Printf("level=info component=bootstrap msg=\"order event consumer started\" exchange=%s queue=%s", cfg.OrderEventExchange, cfg.OrderEventQueue)
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	workOrderService := app.NewService(
		repository,
		oracle,
		producer,
		cfg.WorkOrderEventExchange,
		cfg.MaxAllowedOverdraft,
	)

	// Initialize the API handlers and router.
	handlers := api.NewWorkOrderHandlers(workOrderService)
	router := api.Routes(handlers)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
