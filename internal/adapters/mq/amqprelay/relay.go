// Package amqprelay republishes bus messages to an AMQP fan-out exchange as
// JSON so consumers outside the process can follow the stream.
package amqprelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/streadway/amqp"

	"github.com/okian/hogu/internal/adapters/mq/bus"
	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/metrics"
)

const heartbeat = 60 * time.Second

// ErrNoURL is returned by Dial when no broker URL is configured.
var ErrNoURL = errors.New("amqp url not configured")

// Publisher is the subset of *amqp.Channel the relay needs.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Connection is a dialed broker connection with one channel and a declared
// exchange.
type Connection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Dial connects to url and declares a durable fan-out exchange.
func Dial(url, exchange string) (*Connection, error) {
	if url == "" {
		return nil, ErrNoURL
	}
	conn, err := amqp.DialConfig(url, amqp.Config{Heartbeat: heartbeat, Locale: "en_US"})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Connection{conn: conn, channel: ch}, nil
}

// Channel returns the publishing channel.
func (c *Connection) Channel() Publisher { return c.channel }

// Close closes the channel and the connection.
func (c *Connection) Close() error {
	return errors.Join(c.channel.Close(), c.conn.Close())
}

// Relay forwards every message of one bus subscription.
type Relay struct {
	pub      Publisher
	exchange string
	log      logger.Logger
	now      func() time.Time
}

// New creates a relay publishing to exchange.
func New(pub Publisher, exchange string) *Relay {
	return &Relay{
		pub:      pub,
		exchange: exchange,
		log:      logger.Named("amqp-relay"),
		now:      time.Now,
	}
}

// Run forwards messages until ctx ends or the subscription closes. Publish
// failures are logged and skipped.
func (r *Relay) Run(ctx context.Context, sub *bus.Subscription) {
	r.log.Info(ctx, "relay started", logger.String("exchange", r.exchange))
	defer r.log.Info(ctx, "relay stopped", logger.String("exchange", r.exchange))
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			if err := r.forward(msg); err != nil {
				metrics.RecordErrorByComponent("amqp_relay", "publish")
				r.log.Warn(ctx, "relay publish failed", logger.Error(err))
			}
		}
	}
}

func (r *Relay) forward(msg bus.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    r.now(),
		Body:         body,
	}
	key := "status"
	if msg.Event != nil {
		key = "event." + string(msg.Event.Kind)
		pub.MessageId = msg.Event.Context.SessionID + ":" + strconv.FormatUint(msg.Event.Sequence, 10)
		pub.Type = string(msg.Event.Kind)
	}
	if err := r.pub.Publish(r.exchange, key, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}
