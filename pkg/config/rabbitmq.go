package config

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

var RabbitMQ *amqp.Connection

const (
	rabbitMQMaxRetries = 10
	rabbitMQRetryDelay = 3 * time.Second
)

// InitRabbitMQ dials RabbitMQ, retrying while the broker comes up.
func InitRabbitMQ(cfg RabbitMQSettings) *amqp.Connection {
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < rabbitMQMaxRetries; i++ {
		conn, err = amqp.Dial(cfg.URL())
		if err == nil {
			RabbitMQ = conn
			log.Infof("Successfully connected to RabbitMQ at %s", cfg.Host)
			return conn
		}
		if i < rabbitMQMaxRetries-1 {
			log.Warnf("Failed to connect to RabbitMQ (attempt %d/%d): %v. Retrying in %v...", i+1, rabbitMQMaxRetries, err, rabbitMQRetryDelay)
			time.Sleep(rabbitMQRetryDelay)
		}
	}
	log.Fatalf("Failed to connect to RabbitMQ after %d attempts: %v", rabbitMQMaxRetries, err)
	return nil
}
