package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"omnivault/internal/bootstrap"
	"omnivault/internal/router"
	"omnivault/pkg/config"
	"omnivault/pkg/transport"
)

func configPath() string {
	if p := os.Getenv("OMNIVAULT_CONFIG"); p != "" {
		return p
	}
	return "configs/omnivault.yaml"
}

// deliver hands one envelope to the router.
func deliver(rt *router.Router) func(context.Context, transport.Envelope) error {
	return func(ctx context.Context, env transport.Envelope) error {
		msg, err := env.Inbound()
		if err != nil {
			return err
		}
		return rt.Receive(ctx, msg)
	}
}

func main() {
	settings, err := config.Load(configPath())
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	config.SetupLogger(config.LogSettings{Level: settings.Log.Level, Format: "json"})

	l, err := bootstrap.NewLedger(settings)
	if err != nil {
		log.Fatal("Failed to create ledger: ", err)
	}
	handle := deliver(router.New(l, router.WithLogger(log.WithField("component", "router"))))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.Relay.URL != "" {
		log.WithField("url", settings.Relay.URL).Info("Inbound worker started on websocket relay")
		if err := transport.NewRelay(settings.Relay.URL).Run(ctx, handle); err != nil && ctx.Err() == nil {
			log.Fatal("Relay stopped: ", err)
		}
		return
	}

	conn := config.InitRabbitMQ(settings.RabbitMQ)
	defer conn.Close()

	msgConsumer, err := config.NewConsumer(conn, settings.RabbitMQ.InboundQueue)
	if err != nil {
		log.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	log.WithField("queue", settings.RabbitMQ.InboundQueue).Info("Inbound worker started, waiting for messages...")
	err = msgConsumer.Consume(ctx, func(ctx context.Context, body []byte) error {
		var env transport.Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("failed to unmarshal envelope: %w", err)
		}
		return handle(ctx, env)
	})
	if err != nil && ctx.Err() == nil {
		log.Fatal("Consumer stopped: ", err)
	}
}
