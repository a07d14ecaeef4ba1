package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/traffic-editor/logging"
	"github.com/wricardo/traffic-editor/protocol"
	"github.com/wricardo/traffic-editor/world"
)

const defaultInboxSize = 256

// ErrClosed is returned once the Connection has been closed.
var ErrClosed = errors.New("connection closed")

// Connection keeps a world.State in sync with the server's event stream.
type Connection struct {
	state  *world.State
	url    string
	dialer *websocket.Dialer
	log    logrus.FieldLogger
	retry  *backoff.Backoff

	inbox     chan protocol.Message
	inboxSize int

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the logger for socket and dispatch events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Connection) { c.log = l }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Connection) { c.dialer = d }
}

// WithReconnect makes the Connection redial after the socket drops, waiting
// b.Duration() between attempts. The server's initial snapshot resyncs the
// State once the socket is back.
func WithReconnect(b *backoff.Backoff) Option {
	return func(c *Connection) { c.retry = b }
}

// WithInboxSize sets how many decoded messages may wait for Drain before the
// reader stops reading from the socket.
func WithInboxSize(n int) Option {
	return func(c *Connection) {
		if n > 0 {
			c.inboxSize = n
		}
	}
}

// SocketURL returns the websocket URL of world id on the server at baseURL.
func SocketURL(baseURL, id string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("failed to parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/worlds/" + id
	u.RawPath = ""
	return u.String(), nil
}

// Dial opens the socket for state's world and starts reading from it.
func Dial(ctx context.Context, baseURL string, state *world.State, opts ...Option) (*Connection, error) {
	target, err := SocketURL(baseURL, state.ID())
	if err != nil {
		return nil, err
	}

	c := &Connection{
		state:     state,
		url:       target,
		dialer:    websocket.DefaultDialer,
		log:       discardLogger(),
		inboxSize: defaultInboxSize,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.inbox = make(chan protocol.Message, c.inboxSize)
	c.log = c.log.WithField("world_id", state.ID())

	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		c.log.WithError(err).Error("socket dial failed")
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}
	c.conn = conn
	c.log.WithField("url", target).Info("socket open")

	go c.readLoop(conn)
	return c, nil
}

// State returns the world this Connection feeds.
func (c *Connection) State() *world.State { return c.state }

// Done is closed when the reader has stopped for good.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Drain applies every queued message to the State and returns how many
// were taken off the queue. It must be called from the goroutine that owns
// the State.
func (c *Connection) Drain() int {
	n := 0
	for {
		if c.isClosed() {
			return n
		}
		select {
		case msg := <-c.inbox:
			n++
			c.dispatch(msg)
		default:
			return n
		}
	}
}

// Pump applies messages as they arrive until ctx is done or the reader
// stops. It is the blocking counterpart of Drain for headless clients.
func (c *Connection) Pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.inbox:
			if c.isClosed() {
				return ErrClosed
			}
			c.dispatch(msg)
		case <-c.done:
			c.Drain()
			return ErrClosed
		}
	}
}

func (c *Connection) dispatch(msg protocol.Message) {
	if err := c.Apply(msg); err != nil {
		c.log.WithField("type", msg.Kind()).WithError(err).Warn("failed to apply message")
	}
}

// Apply applies a single message to the State. Messages for another world
// are dropped without error.
func (c *Connection) Apply(msg protocol.Message) error {
	if msg.World() != c.state.ID() {
		c.log.WithFields(logrus.Fields{"type": msg.Kind(), "msg_world": msg.World()}).Debug("dropping message for another world")
		return nil
	}

	switch m := msg.(type) {
	case protocol.Snapshot:
		c.state.ResetEdges(m.Edges)
		c.state.ResetVehicles(m.Vehicles)
	case protocol.EdgeAdded:
		c.state.AddEdge(m.Edge)
	case protocol.EdgeRemoved:
		if e, ok := c.state.FindEdge(m.Edge.From, m.Edge.To); ok {
			c.state.RemoveEdge(e.LocalID)
		}
	case protocol.VehicleAdded:
		c.state.AddVehicle(m.Vehicle)
	case protocol.VehicleUpdated:
		if _, err := c.state.UpdateVehicle(m.Patch); err != nil {
			return fmt.Errorf("vehicleUpdated %s: %w", m.Patch.ID, err)
		}
	case protocol.VehicleRemoved:
		if _, err := c.state.RemoveVehicle(m.ID); err != nil {
			return fmt.Errorf("vehicleRemoved %s: %w", m.ID, err)
		}
	default:
		c.log.WithField("type", msg.Kind()).Debug("ignoring unknown message type")
	}
	return nil
}

// Close shuts the socket down. Once it returns no further message reaches
// the State, including messages already queued.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.mu.Unlock()

		close(c.quit)
		if conn != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			err = conn.Close()
		}
		c.log.Info("socket closed")
	})
	return err
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) readLoop(conn *websocket.Conn) {
	defer close(c.done)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.WithError(err).Warn("socket error")
			} else {
				c.log.WithError(err).Info("socket closed by server")
			}
			if c.retry == nil {
				return
			}
			if conn = c.redial(); conn == nil {
				return
			}
			continue
		}

		msgs, err := protocol.DecodeFrame(frame)
		if err != nil {
			c.log.WithError(err).Debug("dropping malformed frame")
		}
		for _, msg := range msgs {
			select {
			case c.inbox <- msg:
			case <-c.quit:
				return
			}
		}
	}
}

// redial blocks until a new socket is open or the Connection is closed.
func (c *Connection) redial() *websocket.Conn {
	for {
		wait := c.retry.Duration()
		c.log.WithField("wait", wait).Info("reconnecting")
		select {
		case <-time.After(wait):
		case <-c.quit:
			return nil
		}

		conn, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			c.log.WithError(err).Warn("reconnect failed")
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return nil
		}
		c.conn = conn
		c.mu.Unlock()

		c.retry.Reset()
		c.log.Info("socket open")
		return conn
	}
}

func discardLogger() logrus.FieldLogger { return logging.Discard() }
