package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
	publishRetries = 2
	prefetchCount  = 10
)

// ErrDrop tells Consume to reject a delivery without requeueing it.
var ErrDrop = errors.New("drop message")

type Config struct {
	URL            string
	Exchange       string
	EntryQueue     string
	ReconcileQueue string
}

// Message is anything the client can publish.
type Message interface {
	Type() string
	ToJSON() ([]byte, error)
}

// Delivery is the part of an AMQP delivery handlers care about.
type Delivery struct {
	Type string
	Body []byte
}

type Handler func(ctx context.Context, d Delivery) error

type Client struct {
	url            string
	exchangeName   string
	entryQueue     string
	reconcileQueue string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failureMu    sync.Mutex
	lastFailure  time.Time
}

func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		url:            cfg.URL,
		exchangeName:   cfg.Exchange,
		entryQueue:     cfg.EntryQueue,
		reconcileQueue: cfg.ReconcileQueue,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.entryQueue, c.reconcileQueue} {
		if queue == "" {
			continue
		}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		// Routing key equals the queue name on the direct exchange
		if err := ch.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

// ensureConnection reconnects when the connection or channel has gone away.
func (c *Client) ensureConnection() (*amqp091.Connection, *amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return c.conn, c.channel, nil
	}
	c.closeLocked()
	if err := c.connectLocked(); err != nil {
		return nil, nil, err
	}
	slog.Info("Reconnected to AMQP broker", "exchange", c.exchangeName)
	return c.conn, c.channel, nil
}

func (c *Client) resetConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// Circuit breaker

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.failureMu.Lock()
	last := c.lastFailure
	c.failureMu.Unlock()

	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.failureMu.Lock()
	c.lastFailure = time.Now()
	c.failureMu.Unlock()

	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			slog.Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Publishing

// Publish sends msg to the exchange with the given routing key. It retries
// once after a connection failure and refuses to try while the circuit is
// open.
func (c *Client) Publish(ctx context.Context, routingKey string, msg Message) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: circuit breaker is open", msg.Type())
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < publishRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(exponentialBackoff(attempt - 1)):
			}
		}

		lastErr = c.publishOnce(ctx, routingKey, msg.Type(), body)
		if lastErr == nil {
			c.recordSuccess()
			slog.DebugContext(ctx, "Published message",
				"type", msg.Type(),
				"exchange", c.exchangeName,
				"routing_key", routingKey)
			return nil
		}

		c.recordFailure()
		if !isConnectionError(lastErr) {
			break
		}
		c.resetConnection()
	}
	return fmt.Errorf("publish %s: %w", msg.Type(), lastErr)
}

func (c *Client) publishOnce(ctx context.Context, routingKey, msgType string, body []byte) error {
	_, ch, err := c.ensureConnection()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Type:         msgType,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (c *Client) PublishEntryCreated(ctx context.Context, msg *EntryCreatedMessage) error {
	return c.Publish(ctx, c.entryQueue, msg)
}

func (c *Client) PublishEntryDeleted(ctx context.Context, msg *EntryDeletedMessage) error {
	return c.Publish(ctx, c.entryQueue, msg)
}

func (c *Client) PublishReconcileRequest(ctx context.Context, msg *ReconcileRequestMessage) error {
	return c.Publish(ctx, c.reconcileQueue, msg)
}

// Consuming

// Consume delivers messages from queue to handler until ctx is cancelled,
// reconnecting with backoff when the broker connection drops. A nil handler
// error acks, ErrDrop rejects, anything else requeues.
func (c *Client) Consume(ctx context.Context, queue string, handler Handler) error {
	attempt := 0
	for {
		delivered, err := c.consumeOnce(ctx, queue, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			attempt = 0
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP consumer interrupted, reconnecting",
			"queue", queue,
			"error", err,
			"retry_in", wait)
		c.resetConnection()
		attempt++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, queue string, handler Handler) (bool, error) {
	conn, _, err := c.ensureConnection()
	if err != nil {
		return false, err
	}

	// Dedicated channel so publishing never shares the consumer's flow
	ch, err := conn.Channel()
	if err != nil {
		return false, fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return false, fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return false, fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming messages", "queue", queue)

	delivered := false
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return delivered, ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return delivered, fmt.Errorf("message channel closed")
			}
			delivered = true
			c.dispatch(ctx, queue, d, handler)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, queue string, d amqp091.Delivery, handler Handler) {
	err := handler(ctx, Delivery{Type: d.Type, Body: d.Body})
	switch {
	case err == nil:
		d.Ack(false)
	case errors.Is(err, ErrDrop):
		slog.WarnContext(ctx, "Dropping message", "queue", queue, "type", d.Type, "error", err)
		d.Nack(false, false)
	default:
		slog.ErrorContext(ctx, "Failed to handle message, requeueing", "queue", queue, "type", d.Type, "error", err)
		d.Nack(false, true)
	}
}

// ConsumeReconcileRequests consumes the reconcile queue.
func (c *Client) ConsumeReconcileRequests(ctx context.Context, fn func(context.Context, *ReconcileRequestMessage) error) error {
	return c.Consume(ctx, c.reconcileQueue, func(ctx context.Context, d Delivery) error {
		msg, err := ReconcileRequestMessageFromJSON(d.Body)
		if err != nil {
			return fmt.Errorf("%w: unmarshal reconcile request: %v", ErrDrop, err)
		}
		return fn(ctx, msg)
	})
}

// EntryHandlers receives entry events. A nil field acks that event type
// without processing it.
type EntryHandlers struct {
	Created func(context.Context, *EntryCreatedMessage) error
	Deleted func(context.Context, *EntryDeletedMessage) error
}

func (c *Client) ConsumeEntryEvents(ctx context.Context, h EntryHandlers) error {
	return c.Consume(ctx, c.entryQueue, h.handle)
}

func (h EntryHandlers) handle(ctx context.Context, d Delivery) error {
	switch d.Type {
	case TypeEntryCreated:
		if h.Created == nil {
			return nil
		}
		msg, err := EntryCreatedMessageFromJSON(d.Body)
		if err != nil {
			return fmt.Errorf("%w: unmarshal entry created: %v", ErrDrop, err)
		}
		return h.Created(ctx, msg)
	case TypeEntryDeleted:
		if h.Deleted == nil {
			return nil
		}
		msg, err := EntryDeletedMessageFromJSON(d.Body)
		if err != nil {
			return fmt.Errorf("%w: unmarshal entry deleted: %v", ErrDrop, err)
		}
		return h.Deleted(ctx, msg)
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrDrop, d.Type)
	}
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}
