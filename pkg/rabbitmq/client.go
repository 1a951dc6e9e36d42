package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmehra2102/food-order-events/pkg/outbox"
)

// Topology names the exchanges and queues for one event stream. Rejected
// deliveries on Queue are dead-lettered through DeadLetterExchange into DLQ.
type Topology struct {
	Exchange           string
	Queue              string
	DeadLetterExchange string
	DLQ                string
}

func NewTopology(topic, dlqTopic, group string) Topology {
	return Topology{
		Exchange:           topic,
		Queue:              group + "." + topic,
		DeadLetterExchange: topic + ".dlx",
		DLQ:                dlqTopic,
	}
}

var errNotReady = errors.New("rabbitmq: connection is not ready")

// Client keeps one connection and a confirm-mode publish channel. A watcher
// redials with backoff whenever either closes.
type Client struct {
	log      *slog.Logger
	url      string
	topology Topology

	mu      sync.RWMutex
	conn    *amqp.Connection
	pubChan *amqp.Channel

	// pubMu serializes publish and confirm on pubChan.
	pubMu sync.Mutex

	connect   func(ctx context.Context) error
	retry     backoff.BackOff
	reconnect chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newClient(log *slog.Logger, url string, topology Topology) *Client {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = time.Second
	retry.MaxInterval = 30 * time.Second
	return &Client{
		log:       log,
		url:       url,
		topology:  topology,
		retry:     retry,
		reconnect: make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
}

// Dial connects once, declares the topology and starts the reconnect watcher.
func Dial(ctx context.Context, log *slog.Logger, url string, topology Topology) (*Client, error) {
	c := newClient(log, url, topology)
	c.connect = c.connectOnce
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	go c.watch()
	return c, nil
}

func (c *Client) connectOnce(ctx context.Context) error {
	start := time.Now()
	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return fmt.Errorf("failed to dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := declareTopology(ch, c.topology); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare topology: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	c.mu.Lock()
	oldChan, oldConn := c.pubChan, c.conn
	c.conn, c.pubChan = conn, ch
	c.mu.Unlock()
	if oldChan != nil {
		_ = oldChan.Close()
	}
	if oldConn != nil {
		_ = oldConn.Close()
	}

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		select {
		case <-c.closed:
			return
		case err := <-connClosed:
			c.log.Warn("rabbitmq connection closed", "err", err)
		case err := <-chClosed:
			c.log.Warn("rabbitmq publish channel closed", "err", err)
		}
		// A connection already replaced by a redial needs no further action.
		c.mu.RLock()
		current := c.conn == conn
		c.mu.RUnlock()
		if current {
			c.requestReconnect()
		}
	}()

	c.log.InfoContext(ctx, "rabbitmq connected", "exchange", c.topology.Exchange, "queue", c.topology.Queue, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (c *Client) requestReconnect() {
	select {
	case c.reconnect <- struct{}{}:
	default:
	}
}

// watch redials until it succeeds each time a reconnect is requested.
func (c *Client) watch() {
	for {
		select {
		case <-c.closed:
			return
		case <-c.reconnect:
		}
		c.retry.Reset()
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := c.connect(ctx)
			cancel()
			if err == nil {
				c.log.Info("rabbitmq reconnected")
				break
			}
			wait := c.retry.NextBackOff()
			c.log.Error("rabbitmq reconnect failed", "err", err, "retry_in", wait)
			select {
			case <-c.closed:
				return
			case <-time.After(wait):
			}
		}
	}
}

func declareTopology(ch *amqp.Channel, t Topology) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(t.DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(t.DLQ, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(t.DLQ, "", t.DeadLetterExchange, false, nil); err != nil {
		return err
	}
	_, err := ch.QueueDeclare(t.Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": t.DeadLetterExchange,
	})
	if err != nil {
		return err
	}
	return ch.QueueBind(t.Queue, "order.#", t.Exchange, false, nil)
}

func (c *Client) Topology() Topology { return c.topology }

// RoutingKey keeps one order's events on a single routing path.
func RoutingKey(key string) string { return "order." + key }

// Publish implements outbox.Producer. It returns once the broker confirmed the
// message, so a nil error means the message was accepted.
func (c *Client) Publish(ctx context.Context, msg outbox.Message) error {
	c.mu.RLock()
	conn, ch := c.conn, c.pubChan
	c.mu.RUnlock()
	if conn == nil || conn.IsClosed() || ch == nil || ch.IsClosed() {
		c.requestReconnect()
		return errNotReady
	}

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, msg.Topic, RoutingKey(msg.Key), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    msg.Headers[outbox.HeaderEventID],
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         msg.Value,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	if dc == nil {
		return errors.New("rabbitmq: publish channel is not in confirm mode")
	}
	return awaitConfirm(ctx, dc)
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

func awaitConfirm(ctx context.Context, dc confirmation) error {
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq confirm: %w", err)
	}
	if !acked {
		return errors.New("rabbitmq: broker nacked the message")
	}
	return nil
}

// ConsumerChannel opens a fresh channel with prefetch applied.
func (c *Client) ConsumerChannel(prefetch int) (*amqp.Channel, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || conn.IsClosed() {
		c.requestReconnect()
		return nil, errNotReady
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, err
		}
	}
	return ch, nil
}

// Close stops the watcher and closes the channel and connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.pubChan != nil {
		errs = append(errs, c.pubChan.Close())
		c.pubChan = nil
	}
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
		c.conn = nil
	}
	return errors.Join(errs...)
}

// HeaderMap flattens AMQP headers to strings for trace extraction.
func HeaderMap(t amqp.Table) map[string]string {
	out := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
