package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/manufactureflow/backend/internal/relay"
)

// State is the transport's connection state.
type State string

// Transport states. Connected moves back to Connecting on a transport-reported
// disconnect; Disconnected is reached by explicit Disconnect or an exhausted
// retry budget.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultMaxAttempts      = 5
	defaultRetryBackoff     = time.Second
)

var (
	// ErrHandshakeTimeout indicates no connected signal arrived in time.
	ErrHandshakeTimeout = errors.New("client: handshake timed out")
	// ErrRetriesExhausted indicates the fixed retry budget was spent without connecting.
	ErrRetriesExhausted = errors.New("client: retries exhausted")
	// ErrAlreadyConnected indicates Connect was called on a live transport.
	ErrAlreadyConnected = errors.New("client: already connected")
)

// Conn is the subset of a websocket connection the transport needs. Satisfied
// by *websocket.Conn; faked in tests.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens one transport connection to the given URL.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Conn, error)
}

type websocketDialer struct{}

func (websocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config describes a transport toward the relay endpoint.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://host:8080/ws.
	URL string
	// HandshakeTimeout bounds a single Connect call end to end.
	HandshakeTimeout time.Duration
	// MaxAttempts caps connection attempts per Connect or reconnect cycle.
	MaxAttempts int
	// RetryBackoff is the linear backoff unit: attempt n waits n*RetryBackoff.
	RetryBackoff time.Duration
	// OnStateChange, when set, observes every state transition. Invoked from
	// transport goroutines; keep it fast.
	OnStateChange func(State)
	Dialer        Dialer
	Logger        *zap.Logger
}

// Transport maintains one resilient relay connection per authenticated
// session and exposes typed publish/subscribe over it.
type Transport struct {
	config Config

	mu            sync.Mutex
	state         State
	conn          Conn
	writeMu       sync.Mutex
	handlers      map[string]map[int]func(json.RawMessage)
	nextHandlerID int
	credential    string
	identity      string
	generation    int
	cancelRetry   context.CancelFunc
}

// NewTransport constructs a disconnected transport.
func NewTransport(config Config) *Transport {
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaultHandshakeTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaultRetryBackoff
	}
	if config.Dialer == nil {
		config.Dialer = websocketDialer{}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Transport{
		config:   config,
		state:    StateDisconnected,
		handlers: make(map[string]map[int]func(json.RawMessage)),
	}
}

// State reports the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect opens the transport, attaching credential and identity as
// connection-time metadata. It returns once connected, or fails with
// ErrHandshakeTimeout / ErrRetriesExhausted after the bounded attempt cycle.
func (t *Transport) Connect(ctx context.Context, credential, identity string) error {
	t.mu.Lock()
	if t.state != StateDisconnected {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.credential = credential
	t.identity = identity
	t.generation++
	generation := t.generation
	t.setStateLocked(StateConnecting)
	t.mu.Unlock()

	handshakeCtx, cancel := context.WithTimeout(ctx, t.config.HandshakeTimeout)
	defer cancel()

	err := t.attemptCycle(handshakeCtx, generation)
	if err != nil {
		t.mu.Lock()
		if t.generation == generation {
			t.setStateLocked(StateDisconnected)
		}
		t.mu.Unlock()
	}
	return err
}

// attemptCycle dials up to MaxAttempts times with linear backoff. On success
// it installs the connection and starts the read loop.
func (t *Transport) attemptCycle(ctx context.Context, generation int) error {
	endpoint, err := t.endpointURL()
	if err != nil {
		return err
	}

	for attempt := 1; attempt <= t.config.MaxAttempts; attempt++ {
		conn, dialErr := t.config.Dialer.Dial(ctx, endpoint)
		if dialErr == nil {
			t.mu.Lock()
			if t.generation != generation {
				t.mu.Unlock()
				_ = conn.Close()
				return ErrRetriesExhausted
			}
			t.conn = conn
			t.setStateLocked(StateConnected)
			t.mu.Unlock()
			go t.readLoop(conn, generation)
			return nil
		}

		t.config.Logger.Warn("connection attempt failed",
			zap.Int("attempt", attempt), zap.Error(dialErr))
		if attempt == t.config.MaxAttempts {
			return fmt.Errorf("%w: %v", ErrRetriesExhausted, dialErr)
		}

		backoff := time.Duration(attempt) * t.config.RetryBackoff
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrHandshakeTimeout
			}
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return ErrRetriesExhausted
}

// Disconnect tears down the transport immediately and cancels any pending
// reconnection. Idempotent.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.generation++
	if t.cancelRetry != nil {
		t.cancelRetry()
		t.cancelRetry = nil
	}
	conn := t.conn
	t.conn = nil
	alreadyDown := t.state == StateDisconnected
	if !alreadyDown {
		t.setStateLocked(StateDisconnected)
	}
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// On registers a handler for the given topic and returns its registration id.
// Handlers run on the read loop goroutine in delivery order.
func (t *Transport) On(event string, handler func(data json.RawMessage)) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextHandlerID++
	id := t.nextHandlerID
	if t.handlers[event] == nil {
		t.handlers[event] = make(map[int]func(json.RawMessage))
	}
	t.handlers[event][id] = handler
	return id
}

// Off removes a handler registration.
func (t *Transport) Off(event string, handlerID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if registrations, ok := t.handlers[event]; ok {
		delete(registrations, handlerID)
		if len(registrations) == 0 {
			delete(t.handlers, event)
		}
	}
}

// Emit sends an envelope upstream. When not connected it logs a warning and
// drops the event; it never queues for later delivery.
func (t *Transport) Emit(event string, payload interface{}) {
	t.emit(event, "", payload)
}

// EmitToRoom sends an envelope upstream scoped to a department room. Delivery
// is restricted to current members of that room.
func (t *Transport) EmitToRoom(event, room string, payload interface{}) {
	t.emit(event, room, payload)
}

func (t *Transport) emit(event, room string, payload interface{}) {
	t.mu.Lock()
	conn := t.conn
	connected := t.state == StateConnected
	t.mu.Unlock()

	if !connected || conn == nil {
		t.config.Logger.Warn("cannot emit event: transport not connected",
			zap.String("event", event))
		return
	}

	envelope, err := relay.NewEnvelope(event, payload)
	if err != nil {
		t.config.Logger.Warn("cannot emit event: payload not encodable",
			zap.String("event", event), zap.Error(err))
		return
	}
	envelope.Room = room
	frame, err := json.Marshal(envelope)
	if err != nil {
		t.config.Logger.Warn("cannot emit event: envelope not encodable",
			zap.String("event", event), zap.Error(err))
		return
	}

	t.writeMu.Lock()
	writeErr := conn.WriteMessage(websocket.TextMessage, frame)
	t.writeMu.Unlock()
	if writeErr != nil {
		t.config.Logger.Warn("emit failed", zap.String("event", event), zap.Error(writeErr))
	}
}

// JoinDepartment subscribes this session to a department room.
func (t *Transport) JoinDepartment(department string) {
	t.Emit(relay.TopicJoinDepartment, department)
}

func (t *Transport) endpointURL() (string, error) {
	parsed, err := url.Parse(t.config.URL)
	if err != nil {
		return "", fmt.Errorf("client: invalid endpoint url: %w", err)
	}
	query := parsed.Query()
	query.Set("token", t.credential)
	query.Set("userId", t.identity)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// readLoop dispatches inbound envelopes in arrival order until the connection
// reports an error, then hands off to the background reconnect cycle.
func (t *Transport) readLoop(conn Conn, generation int) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.handleDisconnect(conn, generation, err)
			return
		}

		var envelope relay.Envelope
		if decodeErr := json.Unmarshal(frame, &envelope); decodeErr != nil {
			t.config.Logger.Warn("dropping undecodable frame", zap.Error(decodeErr))
			continue
		}
		t.dispatch(envelope)
	}
}

func (t *Transport) dispatch(envelope relay.Envelope) {
	t.mu.Lock()
	registrations := t.handlers[envelope.Event]
	handlers := make([]func(json.RawMessage), 0, len(registrations))
	for _, handler := range registrations {
		handlers = append(handlers, handler)
	}
	t.mu.Unlock()

	for _, handler := range handlers {
		handler(envelope.Data)
	}
}

// handleDisconnect transitions Connected -> Connecting and retries in the
// background. Retries are silent; the caller observes them through state. An
// exhausted budget leaves the transport Disconnected until the next explicit
// Connect.
func (t *Transport) handleDisconnect(conn Conn, generation int, cause error) {
	_ = conn.Close()

	t.mu.Lock()
	if t.generation != generation || t.conn != conn {
		// Explicit Disconnect already took over.
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.setStateLocked(StateConnecting)
	retryCtx, cancel := context.WithCancel(context.Background())
	t.cancelRetry = cancel
	t.mu.Unlock()

	t.config.Logger.Info("transport disconnected, reconnecting", zap.Error(cause))

	go func() {
		defer cancel()
		err := t.attemptCycle(retryCtx, generation)
		if err == nil {
			return
		}
		t.mu.Lock()
		if t.generation == generation {
			t.setStateLocked(StateDisconnected)
			t.cancelRetry = nil
		}
		t.mu.Unlock()
		t.config.Logger.Warn("reconnection abandoned", zap.Error(err))
	}()
}

func (t *Transport) setStateLocked(next State) {
	if t.state == next {
		return
	}
	t.state = next
	if t.config.OnStateChange != nil {
		go t.config.OnStateChange(next)
	}
}
