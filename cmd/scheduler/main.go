package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"omnivault/internal/bootstrap"
	"omnivault/internal/scheduler"
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
	config.SetupLogger(config.LogSettings{Level: settings.Log.Level, Format: "text"})
	if settings.Scheduler.Authority == "" {
		log.Fatal("scheduler.authority must name the vault admin")
	}

	l, err := bootstrap.NewLedger(settings)
	if err != nil {
		log.Fatal("Failed to create ledger: ", err)
	}

	var conn *amqp.Connection
	if settings.RabbitMQ.Enabled() {
		conn = config.InitRabbitMQ(settings.RabbitMQ)
		defer conn.Close()
	}
	sender, err := bootstrap.NewSender(settings, conn, l)
	if err != nil {
		log.Fatal("Failed to create sender: ", err)
	}
	sweeper := scheduler.NewSweeper(l, settings.Scheduler.Authority, sender, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	_, err = c.AddFunc(settings.Scheduler.Cron, func() {
		if _, err := sweeper.Sweep(ctx); err != nil {
			log.Errorf("Rebalance sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to add cron job: %v", err)
	}

	log.WithField("cron", settings.Scheduler.Cron).Info("Scheduler started")
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
}
