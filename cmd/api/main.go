package main

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"omnivault/internal/bootstrap"
	"omnivault/internal/handlers"
	"omnivault/internal/metrics"
	"omnivault/internal/middleware"
	"omnivault/internal/router"
	"omnivault/internal/routes"
	"omnivault/pkg/config"
)

func configPath() string {
	if p := os.Getenv("OMNIVAULT_CONFIG"); p != "" {
		return p
	}
	return "configs/omnivault.yaml"
}

func main() {
	settings, err := config.Load(configPath())
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	config.SetupLogger(settings.Log)

	l, err := bootstrap.NewLedger(settings)
	if err != nil {
		log.Fatal("Failed to create ledger: ", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(reg)
	if err != nil {
		log.Fatal("Failed to register metrics: ", err)
	}

	// Initialize RabbitMQ (optional, rebalance moves are not published without it)
	var conn *amqp.Connection
	if settings.RabbitMQ.Enabled() {
		conn = config.InitRabbitMQ(settings.RabbitMQ)
		defer conn.Close()
	} else {
		log.Info("RabbitMQ not configured, outbound messages disabled")
	}
	sender, err := bootstrap.NewSender(settings, conn, l)
	if err != nil {
		log.Fatal("Failed to create sender: ", err)
	}

	rt := router.New(l, router.WithMetrics(rec), router.WithLogger(log.WithField("component", "router")))
	opts := []handlers.Option{
		handlers.WithSender(sender),
		handlers.WithMetrics(rec),
		handlers.WithHealthRPCs(settings.Solana.HealthRPCs, 5*time.Second),
	}
	balances, err := bootstrap.NewBalanceReader(settings)
	if err != nil {
		log.Fatal("Failed to create balance reader: ", err)
	}
	if balances != nil {
		opts = append(opts, handlers.WithOnChainBalances(balances))
	}
	h := handlers.New(l, rt, opts...)

	r := routes.SetupRouter(h, routes.Options{
		AllowedOrigins: settings.API.AllowedOrigins,
		RateLimit: middleware.RateLimiterConfig{
			RequestsPerSecond: settings.API.RateLimit,
			Burst:             settings.API.RateBurst,
		},
		Gatherer: reg,
		Relayers: settings.API.Relayers,
	})
	if len(settings.API.Relayers) == 0 {
		log.Warn("No relayers configured, cross-chain message delivery is disabled")
	}

	log.WithField("port", settings.API.Port).Info("API server starting")
	if err := r.Run(":" + settings.API.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
