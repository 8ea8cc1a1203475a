package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/manufactureflow/backend/internal/relay"
)

// fakeConn is a scriptable connection: frames pushed into inbound are read by
// the transport, written frames accumulate in outbound.
type fakeConn struct {
	inbound  chan []byte
	mu       sync.Mutex
	outbound [][]byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame, ok := <-c.inbound:
		if !ok {
			return 0, nil, errors.New("connection reset")
		}
		return 1, frame, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outbound = append(c.outbound, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([][]byte, len(c.outbound))
	copy(snapshot, c.outbound)
	return snapshot
}

func (c *fakeConn) push(t *testing.T, event string, payload interface{}) {
	t.Helper()
	envelope, err := relay.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("failed to build envelope: %v", err)
	}
	frame, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	c.inbound <- frame
}

// scriptedDialer returns the scripted outcomes in order, then repeats the last.
type scriptedDialer struct {
	mu       sync.Mutex
	outcomes []func() (Conn, error)
	dials    int
	lastURL  string
}

func (d *scriptedDialer) Dial(_ context.Context, rawURL string) (Conn, error) {
	d.mu.Lock()
	index := d.dials
	d.dials++
	d.lastURL = rawURL
	if index >= len(d.outcomes) {
		index = len(d.outcomes) - 1
	}
	outcome := d.outcomes[index]
	d.mu.Unlock()
	return outcome()
}

func (d *scriptedDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func succeedWith(conn *fakeConn) func() (Conn, error) {
	return func() (Conn, error) { return conn, nil }
}

func fail() (Conn, error) {
	return nil, errors.New("connection refused")
}

func newTestTransport(dialer Dialer) *Transport {
	return NewTransport(Config{
		URL:          "ws://127.0.0.1:9/ws",
		MaxAttempts:  5,
		RetryBackoff: time.Millisecond,
		Dialer:       dialer,
	})
}

func waitForState(t *testing.T, transport *Transport, expected State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if transport.State() == expected {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("expected state %s, still %s", expected, transport.State())
}

func TestConnectAttachesHandshakeMetadata(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{outcomes: []func() (Conn, error){succeedWith(conn)}}
	transport := newTestTransport(dialer)
	defer transport.Disconnect()

	if err := transport.Connect(context.Background(), "token-abc", "user-1"); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if transport.State() != StateConnected {
		t.Fatalf("expected connected state, got %s", transport.State())
	}

	parsed, err := url.Parse(dialer.lastURL)
	if err != nil {
		t.Fatalf("failed to parse dialed url: %v", err)
	}
	if parsed.Query().Get("token") != "token-abc" || parsed.Query().Get("userId") != "user-1" {
		t.Fatalf("handshake metadata missing from %s", dialer.lastURL)
	}
}

func TestConnectTimesOutInsteadOfHanging(t *testing.T) {
	// A dialer that blocks until the context expires.
	blocking := &scriptedDialer{outcomes: []func() (Conn, error){func() (Conn, error) {
		time.Sleep(200 * time.Millisecond)
		return fail()
	}}}
	transport := NewTransport(Config{
		URL:              "ws://127.0.0.1:9/ws",
		HandshakeTimeout: 50 * time.Millisecond,
		MaxAttempts:      5,
		RetryBackoff:     40 * time.Millisecond,
		Dialer:           blocking,
	})

	err := transport.Connect(context.Background(), "token", "user-1")
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("expected handshake timeout, got %v", err)
	}
	if transport.State() != StateDisconnected {
		t.Fatalf("expected disconnected after timeout, got %s", transport.State())
	}
}

func TestConnectStopsAfterRetryBudget(t *testing.T) {
	dialer := &scriptedDialer{outcomes: []func() (Conn, error){fail}}
	transport := newTestTransport(dialer)

	err := transport.Connect(context.Background(), "token", "user-1")
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected retries exhausted, got %v", err)
	}
	if dialer.dialCount() != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", dialer.dialCount())
	}
	if transport.State() != StateDisconnected {
		t.Fatalf("expected terminal disconnected state, got %s", transport.State())
	}
}

func TestHandlersReceiveEnvelopesInOrder(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{outcomes: []func() (Conn, error){succeedWith(conn)}}
	transport := newTestTransport(dialer)
	defer transport.Disconnect()

	received := make(chan string, 8)
	transport.On(relay.TopicNotification, func(data json.RawMessage) {
		var event relay.NotificationEvent
		if err := json.Unmarshal(data, &event); err != nil {
			t.Errorf("failed to decode: %v", err)
			return
		}
		received <- event.Title
	})

	if err := transport.Connect(context.Background(), "token", "user-1"); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	for i := 0; i < 3; i++ {
		conn.push(t, relay.TopicNotification, relay.NotificationEvent{
			Type: "info", Title: fmt.Sprintf("title-%d", i), Message: "m",
		})
	}
	for i := 0; i < 3; i++ {
		select {
		case title := <-received:
			if title != fmt.Sprintf("title-%d", i) {
				t.Fatalf("expected title-%d, got %s", i, title)
			}
		case <-time.After(time.Second):
			t.Fatal("expected envelope within deadline")
		}
	}
}

func TestOffRemovesHandler(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{outcomes: []func() (Conn, error){succeedWith(conn)}}
	transport := newTestTransport(dialer)
	defer transport.Disconnect()

	received := make(chan struct{}, 2)
	id := transport.On(relay.TopicNotification, func(json.RawMessage) {
		received <- struct{}{}
	})
	transport.Off(relay.TopicNotification, id)

	if err := transport.Connect(context.Background(), "token", "user-1"); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	conn.push(t, relay.TopicNotification, relay.NotificationEvent{Type: "info", Title: "t", Message: "m"})

	select {
	case <-received:
		t.Fatal("expected removed handler not to fire")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEmitWhileDisconnectedDrops(t *testing.T) {
	transport := newTestTransport(&scriptedDialer{outcomes: []func() (Conn, error){fail}})

	// Must not panic or queue.
	transport.Emit(relay.TopicProductionUpdate, relay.ProductionEvent{Type: relay.ChangeCreated})
	if transport.State() != StateDisconnected {
		t.Fatalf("expected disconnected state, got %s", transport.State())
	}
}

func TestEmitWritesEnvelopeFrame(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{outcomes: []func() (Conn, error){succeedWith(conn)}}
	transport := newTestTransport(dialer)
	defer transport.Disconnect()

	if err := transport.Connect(context.Background(), "token", "user-1"); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	transport.JoinDepartment("assembly")

	frames := conn.written()
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	var envelope relay.Envelope
	if err := json.Unmarshal(frames[0], &envelope); err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	if envelope.Event != relay.TopicJoinDepartment {
		t.Fatalf("expected join-department frame, got %s", envelope.Event)
	}
	var department string
	if err := json.Unmarshal(envelope.Data, &department); err != nil || department != "assembly" {
		t.Fatalf("unexpected payload: %s", envelope.Data)
	}
}

func TestEmitToRoomStampsRoomOnEnvelope(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{outcomes: []func() (Conn, error){succeedWith(conn)}}
	transport := newTestTransport(dialer)
	defer transport.Disconnect()

	if err := transport.Connect(context.Background(), "token", "user-1"); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	transport.EmitToRoom(relay.TopicInventoryUpdate, "warehouse",
		relay.InventoryEvent{Type: relay.ChangeUpdated})

	frames := conn.written()
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	var envelope relay.Envelope
	if err := json.Unmarshal(frames[0], &envelope); err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	if envelope.Room != "warehouse" {
		t.Fatalf("expected warehouse room, got %q", envelope.Room)
	}
}

func TestDisconnectMidSessionTriggersReconnect(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &scriptedDialer{outcomes: []func() (Conn, error){
		succeedWith(first),
		succeedWith(second),
	}}
	transport := newTestTransport(dialer)
	defer transport.Disconnect()

	if err := transport.Connect(context.Background(), "token", "user-1"); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	close(first.inbound)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && dialer.dialCount() < 2 {
		time.Sleep(2 * time.Millisecond)
	}
	if dialer.dialCount() != 2 {
		t.Fatalf("expected reconnect dial, got %d dials", dialer.dialCount())
	}
	waitForState(t, transport, StateConnected)
}

func TestReconnectGivesUpAfterBudget(t *testing.T) {
	first := newFakeConn()
	dialer := &scriptedDialer{outcomes: []func() (Conn, error){
		succeedWith(first),
		fail,
	}}
	transport := newTestTransport(dialer)

	if err := transport.Connect(context.Background(), "token", "user-1"); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	close(first.inbound)
	waitForState(t, transport, StateDisconnected)
	// 1 initial dial + 5 reconnect attempts.
	if dialer.dialCount() != 6 {
		t.Fatalf("expected 6 dials total, got %d", dialer.dialCount())
	}
}

func TestExplicitDisconnectIsIdempotentAndStopsRetries(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{outcomes: []func() (Conn, error){succeedWith(conn)}}
	transport := newTestTransport(dialer)

	if err := transport.Connect(context.Background(), "token", "user-1"); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	transport.Disconnect()
	transport.Disconnect()
	if transport.State() != StateDisconnected {
		t.Fatalf("expected disconnected state, got %s", transport.State())
	}

	// The closed connection must not trigger a reconnect cycle.
	time.Sleep(20 * time.Millisecond)
	if dialer.dialCount() != 1 {
		t.Fatalf("expected no reconnect after explicit disconnect, got %d dials", dialer.dialCount())
	}
}

func TestConnectWhileConnectedFails(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{outcomes: []func() (Conn, error){succeedWith(conn)}}
	transport := newTestTransport(dialer)
	defer transport.Disconnect()

	if err := transport.Connect(context.Background(), "token", "user-1"); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := transport.Connect(context.Background(), "token", "user-1"); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected already connected error, got %v", err)
	}
}
