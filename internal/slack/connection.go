package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/keepmind9/slackline/internal/logger"
	"github.com/keepmind9/slackline/internal/slack/api"
	"github.com/keepmind9/slackline/pkg/constants"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotConnected is returned when sending without a live stream
	ErrNotConnected = errors.New("slack stream is not connected")
	// ErrPayloadTooLarge is returned for frames over the size limit
	ErrPayloadTooLarge = errors.New("slack payload too large")
	// ErrConnectionClosed is returned by Run once the connection has ended
	ErrConnectionClosed = errors.New("slack connection is closed")
)

// State is a stage of the connection lifecycle
type State int32

const (
	StateIdle State = iota
	StateBootstrapping
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBootstrapping:
		return "bootstrapping"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SnapshotFetcher fetches the bootstrap snapshot
type SnapshotFetcher interface {
	RTMStart(ctx context.Context) (*api.Snapshot, error)
}

// StreamConn is one open stream
type StreamConn interface {
	// ReadMessage blocks until the next data frame arrives
	ReadMessage() ([]byte, error)
	// WriteMessage sends one text frame; it is never called concurrently
	WriteMessage(data []byte) error
	// Ping sends a keepalive, giving up at deadline
	Ping(deadline time.Time) error
	// Close tears the stream down and unblocks ReadMessage; it may be called
	// more than once
	Close() error
}

// StreamDialer opens streams
type StreamDialer interface {
	Dial(ctx context.Context, endpoint string) (StreamConn, error)
}

// FrameHandler handles raw inbound frames
type FrameHandler interface {
	HandleFrame(ctx context.Context, frame []byte) error
}

type outboundFrame struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

// ConnectionOption configures a Connection
type ConnectionOption func(*Connection)

// WithPingInterval sets the keepalive interval
func WithPingInterval(d time.Duration) ConnectionOption {
	return func(c *Connection) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// WithMaxMessageBytes sets the largest serialized outbound frame
func WithMaxMessageBytes(n int) ConnectionOption {
	return func(c *Connection) {
		if n > 0 {
			c.maxMessageBytes = n
		}
	}
}

// WithDisconnectHandler sets the callback run once when a connected stream ends
func WithDisconnectHandler(fn func()) ConnectionOption {
	return func(c *Connection) { c.onDisconnect = fn }
}

// Connection manages one real-time stream lifecycle:
// Idle -> Bootstrapping -> Connected -> Closing -> Closed.
// It is single use: Run while starting or connected is a no-op, and Run
// after the connection ended returns ErrConnectionClosed.
type Connection struct {
	fetcher SnapshotFetcher
	dialer  StreamDialer
	ims     *DirectChannelCache
	users   *UserRegistry
	rooms   *RoomRegistry
	handler FrameHandler

	pingInterval    time.Duration
	maxMessageBytes int
	onDisconnect    func()

	mu     sync.Mutex
	state  State
	id     string
	conn   StreamConn
	cancel context.CancelFunc

	writeMu  sync.Mutex
	frames   chan []byte
	stop     chan struct{}
	done     chan struct{}
	stopping atomic.Bool
	finished sync.Once
}

// NewConnection wires a connection to its collaborators
func NewConnection(fetcher SnapshotFetcher, dialer StreamDialer, ims *DirectChannelCache, users *UserRegistry, rooms *RoomRegistry, handler FrameHandler, opts ...ConnectionOption) *Connection {
	c := &Connection{
		fetcher:         fetcher,
		dialer:          dialer,
		ims:             ims,
		users:           users,
		rooms:           rooms,
		handler:         handler,
		pingInterval:    constants.DefaultPingInterval,
		maxMessageBytes: constants.MaxMessageBytes,
		frames:          make(chan []byte, constants.FrameQueueSize),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle stage
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the connection reaches Closed
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ImFor returns the direct channel of userID
func (c *Connection) ImFor(ctx context.Context, userID string) (string, error) {
	return c.ims.ImFor(ctx, userID)
}

func (c *Connection) log() *logrus.Entry {
	c.mu.Lock()
	id := c.id
	c.mu.Unlock()
	return logger.Component("rtm").WithField("connection_id", id)
}

// Run bootstraps and opens the stream, returning once it is connected.
// Bootstrap failures are returned and leave the connection Closed. The stream
// is shut down when ctx is cancelled.
func (c *Connection) Run(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
	case StateClosing, StateClosed:
		c.mu.Unlock()
		return ErrConnectionClosed
	default:
		c.mu.Unlock()
		logger.Component("rtm").Debug("slack-connection-already-started")
		return nil
	}
	c.state = StateBootstrapping
	c.id = uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	log := c.log()
	log.Debug("fetching-slack-snapshot")

	snap, err := c.fetcher.RTMStart(runCtx)
	if err != nil {
		c.abort()
		return fmt.Errorf("failed to bootstrap slack connection: %w", err)
	}

	c.bootstrap(snap)

	log.WithField("url", snap.URL).Debug("opening-slack-stream")
	conn, err := c.dialer.Dial(runCtx, snap.URL)
	if err != nil {
		c.abort()
		return fmt.Errorf("failed to open slack stream: %w", err)
	}

	c.mu.Lock()
	if c.state != StateBootstrapping {
		c.mu.Unlock()
		conn.Close()
		c.abort()
		return ErrConnectionClosed
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	log.Info("slack-stream-opened")

	go c.readLoop(conn)
	go c.dispatchLoop(runCtx)
	go c.pingLoop(conn)
	go func() {
		select {
		case <-runCtx.Done():
			c.ShutDown()
		case <-c.stop:
		}
	}()

	return nil
}

func (c *Connection) bootstrap(snap *api.Snapshot) {
	log := c.log()

	c.users.SetSelfID(snap.Self.ID)
	c.ims.Reset()
	c.ims.AddMappings(snap.IMs)

	if err := c.users.UpsertMany(snap.Users); err != nil {
		log.WithField("error", err).Warn("failed-to-register-some-users")
	}
	if err := c.rooms.UpsertMany(snap.Channels); err != nil {
		log.WithField("error", err).Warn("failed-to-register-some-rooms")
	}

	log.WithFields(logrus.Fields{
		"self_id":  snap.Self.ID,
		"users":    len(snap.Users),
		"channels": len(snap.Channels),
		"ims":      len(snap.IMs),
	}).Info("slack-snapshot-loaded")
}

// abort ends a run that never connected; no disconnect callback fires
func (c *Connection) abort() {
	c.finished.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		cancel := c.cancel
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		close(c.stop)
		close(c.done)
	})
}

// ShutDown closes the stream without waiting for in-flight handler work.
// It is a no-op when idle or already closing, including after the peer closed.
func (c *Connection) ShutDown() {
	c.mu.Lock()
	state := c.state
	conn := c.conn
	cancel := c.cancel
	switch state {
	case StateBootstrapping, StateConnected:
		c.state = StateClosing
	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.stopping.Store(true)
	c.log().WithField("from", state.String()).Debug("closing-slack-stream")

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.log().WithField("error", err).Debug("slack-stream-close-error")
		}
	}
}

// finish is the single terminal path of a connected stream, whether we or the
// peer closed it
func (c *Connection) finish() {
	c.finished.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		conn := c.conn
		cancel := c.cancel
		c.mu.Unlock()

		cancel()
		conn.Close()
		close(c.stop)

		c.log().Info("slack-stream-closed")
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
		close(c.done)
	})
}

func (c *Connection) readLoop(conn StreamConn) {
	defer close(c.frames)

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if c.stopping.Load() {
				c.log().Debug("slack-stream-read-stopped")
			} else {
				c.log().WithField("error", err).Info("slack-stream-closed-by-peer")
				c.peerClosed()
			}
			return
		}
		c.frames <- data
	}
}

// peerClosed moves a connected stream to Closing so no more frames are written;
// frames already queued are still dispatched before finish runs
func (c *Connection) peerClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnected {
		c.state = StateClosing
	}
}

// dispatchLoop hands frames to the handler one at a time, in arrival order.
// Frames still queued after our own ShutDown are dropped.
func (c *Connection) dispatchLoop(ctx context.Context) {
	defer c.finish()

	for frame := range c.frames {
		if c.stopping.Load() {
			continue
		}
		c.dispatch(ctx, frame)
	}
}

func (c *Connection) dispatch(ctx context.Context, frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log().WithField("panic", r).Error("slack-frame-handler-panicked")
		}
	}()

	if err := c.handler.HandleFrame(ctx, frame); err != nil {
		c.log().WithFields(logrus.Fields{
			"error": err,
			"frame": string(frame),
		}).Warn("failed-to-handle-slack-frame")
	}
}

func (c *Connection) pingLoop(conn StreamConn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := conn.Ping(time.Now().Add(constants.PingWriteTimeout)); err != nil {
				c.log().WithField("error", err).Warn("slack-stream-ping-failed")
			}
		}
	}
}

// Send writes one message frame per text to channel, in order. Every frame is
// checked against the size limit before anything is written.
func (c *Connection) Send(channel string, texts []string) error {
	frames := make([][]byte, 0, len(texts))
	for _, text := range texts {
		frame, err := encodeFrame(channel, text)
		if err != nil {
			return err
		}
		if len(frame) > c.maxMessageBytes {
			return fmt.Errorf("%w: cannot send payload greater than %d bytes (got %d)", ErrPayloadTooLarge, c.maxMessageBytes, len(frame))
		}
		frames = append(frames, frame)
	}

	c.mu.Lock()
	state := c.state
	conn := c.conn
	c.mu.Unlock()
	if state != StateConnected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for _, frame := range frames {
		if err := conn.WriteMessage(frame); err != nil {
			return fmt.Errorf("failed to write to slack stream: %w", err)
		}
	}

	c.log().WithFields(logrus.Fields{
		"channel": channel,
		"frames":  len(frames),
	}).Debug("slack-frames-sent")
	return nil
}

func encodeFrame(channel, text string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(outboundFrame{
		ID:      constants.OutboundFrameID,
		Type:    "message",
		Text:    text,
		Channel: channel,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode slack frame: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
