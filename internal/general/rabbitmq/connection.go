package rabbitmq

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"geotrack/internal/general/config"
	"geotrack/internal/general/logger"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	heartbeat     = 10 * time.Second
	dialTimeout   = 30 * time.Second
	startupWindow = 30 * time.Second
)

// Client owns one AMQP connection and a confirming publish channel, and
// reconnects in the background when either closes.
type Client struct {
	url    string
	logger *logger.Logger
	logCtx context.Context // never cancelled; reconnects outlive the caller

	runCtx    context.Context // cancelled by Close; bounds reconnect retries
	runCancel context.CancelFunc

	mu      sync.RWMutex
	conn    *amqp.Connection
	pubChan *amqp.Channel

	pubMu       sync.Mutex
	pubConfirms chan amqp.Confirmation

	closeOnce sync.Once
	closed    chan struct{}
	reconnect chan struct{}
}

// ConnectRabbitMQ connects, declares the tracking topology and starts the
// reconnect watcher. The first connection is retried for startupWindow.
func ConnectRabbitMQ(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Client, error) {
	logCtx := context.WithoutCancel(ctx)
	runCtx, runCancel := context.WithCancel(logCtx)
	client := &Client{
		url:       amqpURL(cfg.RabbitMQ),
		logger:    logger,
		logCtx:    logCtx,
		runCtx:    runCtx,
		runCancel: runCancel,
		closed:    make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}

	_, err := backoff.Retry(ctx,
		func() (struct{}, error) { return struct{}{}, client.connect() },
		backoff.WithBackOff(reconnectBackOff()),
		backoff.WithMaxElapsedTime(startupWindow),
	)
	if err != nil {
		runCancel()
		return nil, err
	}

	go client.watch()
	return client, nil
}

// Close stops the watcher and closes AMQP resources. Safe to call twice.
func (client *Client) Close() {
	client.closeOnce.Do(func() {
		close(client.closed)
		client.runCancel()

		client.mu.Lock()
		if client.pubChan != nil {
			_ = client.pubChan.Close()
			client.pubChan = nil
		}
		if client.conn != nil {
			_ = client.conn.Close()
			client.conn = nil
		}
		client.mu.Unlock()

		// wake publishers blocked on a confirm
		client.pubMu.Lock()
		if client.pubConfirms != nil {
			close(client.pubConfirms)
			client.pubConfirms = nil
		}
		client.pubMu.Unlock()
	})
}

// amqpURL renders the broker URL; the default vhost "/" is the bare path.
func amqpURL(cfg config.RabbitMQ) string {
	u := &url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/",
	}
	if cfg.VHost != "" && cfg.VHost != "/" {
		u.Path = "/" + cfg.VHost
		u.RawPath = "/" + url.PathEscape(cfg.VHost)
	}
	return u.String()
}

// --- internals ---

// connect dials, prepares the publish channel and installs both.
func (client *Client) connect() error {
	conn, err := amqp.DialConfig(client.url, amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_dial_failed", "Failed to dial RabbitMQ", err, nil)
		return fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	ch, confirms, err := client.openPublisher(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	client.install(conn, ch, confirms)
	go client.logReturns(ch.NotifyReturn(make(chan amqp.Return, 1)))
	go client.signalOnClose(conn, ch)

	client.logger.Info(client.logCtx, "rabbitmq_connected", "RabbitMQ connection established successfully", nil)
	return nil
}

// openPublisher opens a channel, declares the topology and enables confirms.
func (client *Client) openPublisher(conn *amqp.Connection) (*amqp.Channel, chan amqp.Confirmation, error) {
	ch, err := conn.Channel()
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_open_channel_failed", "Failed to open RabbitMQ channel", err, nil)
		return nil, nil, fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}

	if err := trackingTopology().declare(ch); err != nil {
		_ = ch.Close()
		client.logger.Error(client.logCtx, "rabbitmq_declare_topology_failed", "Failed to declare RabbitMQ topology", err, nil)
		return nil, nil, fmt.Errorf("rabbitmq: failed to declare topology: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		client.logger.Error(client.logCtx, "rabbitmq_enable_confirms_failed", "Failed to enable publisher confirms", err, nil)
		return nil, nil, fmt.Errorf("rabbitmq: failed to enable confirms: %w", err)
	}

	return ch, ch.NotifyPublish(make(chan amqp.Confirmation, 1)), nil
}

// install swaps in a new connection and publish channel.
func (client *Client) install(conn *amqp.Connection, ch *amqp.Channel, confirms chan amqp.Confirmation) {
	client.pubMu.Lock()
	old := client.pubConfirms
	client.pubConfirms = confirms
	client.pubMu.Unlock()
	if old != nil {
		close(old)
	}

	client.mu.Lock()
	if client.pubChan != nil && !client.pubChan.IsClosed() {
		_ = client.pubChan.Close()
	}
	client.conn = conn
	client.pubChan = ch
	client.mu.Unlock()
}

// logReturns reports unroutable mandatory publishes until the channel closes.
func (client *Client) logReturns(returns <-chan amqp.Return) {
	for r := range returns {
		client.logger.Error(client.logCtx, "rabbitmq_returned",
			"Message was returned (unroutable)",
			fmt.Errorf("code=%d text=%s", r.ReplyCode, r.ReplyText),
			map[string]any{
				"exchange":   r.Exchange,
				"routingKey": r.RoutingKey,
				"size":       len(r.Body),
			},
		)
	}
}

// signalOnClose queues one reconnect when conn or ch closes.
func (client *Client) signalOnClose(conn *amqp.Connection, ch *amqp.Channel) {
	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case <-client.closed:
		return
	case <-connClosed:
	case <-chClosed:
	}

	select {
	case client.reconnect <- struct{}{}:
	default:
	}
}

// watch reconnects with exponential backoff until Close.
func (client *Client) watch() {
	for {
		select {
		case <-client.closed:
			return
		case <-client.reconnect:
			_, err := backoff.Retry(client.runCtx,
				func() (struct{}, error) { return struct{}{}, client.connect() },
				backoff.WithBackOff(reconnectBackOff()),
				backoff.WithMaxElapsedTime(0),
				backoff.WithNotify(func(err error, next time.Duration) {
					client.logger.Error(client.logCtx, "retry_attempted", "Failed to reconnect to RabbitMQ", err, map[string]any{
						"next_attempt_ms": next.Milliseconds(),
					})
				}),
			)
			if err != nil {
				// only a closed client stops the retries
				return
			}
			client.logger.Info(client.logCtx, "rabbitmq_reconnected", "Reconnected to RabbitMQ and re-ensured topology", nil)
		}
	}
}

// reconnectBackOff starts at one second and caps at thirty.
func reconnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	return b
}
