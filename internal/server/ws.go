package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/manufactureflow/backend/internal/relay"
)

const (
	writeDeadline = 10 * time.Second
	pongDeadline  = 60 * time.Second
	pingInterval  = 54 * time.Second
)

type socketHandler struct {
	registry    *relay.Registry
	broadcaster relay.Publisher
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

func newSocketHandler(registry *relay.Registry, broadcaster relay.Publisher, logger *zap.Logger) *socketHandler {
	return &socketHandler{
		registry:    registry,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// handleConnection upgrades the request, registers the session, and runs the
// read loop until the peer disconnects. A write pump drains the connection's
// stream so broadcasts never block on a slow socket.
func (s *socketHandler) handleConnection(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	socket, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connectionID := uuid.NewString()
	connection := s.registry.Add(connectionID, claims.Subject, claims.Username)
	s.logger.Info("session connected",
		zap.String("connection_id", connectionID),
		zap.String("user_id", claims.Subject),
		zap.String("username", claims.Username))

	s.announcePresence(relay.TopicUserConnected, connection)
	go s.writePump(socket, connection)
	s.readLoop(socket, connection)

	s.registry.Remove(connectionID)
	s.announcePresence(relay.TopicUserDisconnected, connection)
	s.logger.Info("session disconnected", zap.String("connection_id", connectionID))
}

func (s *socketHandler) announcePresence(topic string, connection *relay.Connection) {
	envelope, err := relay.NewEnvelope(topic, relay.PresenceEvent{
		UserID:   connection.UserID,
		Username: connection.Username,
	})
	if err != nil {
		s.logger.Warn("presence event not encodable", zap.Error(err))
		return
	}
	s.broadcaster.Publish(connection.ID, envelope)
}

func (s *socketHandler) readLoop(socket *websocket.Conn, connection *relay.Connection) {
	socket.SetReadDeadline(time.Now().Add(pongDeadline))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongDeadline))
	})

	for {
		_, frame, err := socket.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				s.logger.Warn("websocket read failed",
					zap.String("connection_id", connection.ID), zap.Error(err))
			}
			return
		}

		var envelope relay.Envelope
		if err := json.Unmarshal(frame, &envelope); err != nil {
			s.logger.Warn("discarding undecodable frame",
				zap.String("connection_id", connection.ID), zap.Error(err))
			continue
		}
		s.handleEnvelope(connection, envelope)
	}
}

// handleEnvelope routes one inbound envelope: join requests mutate room
// membership, everything else is validated and fanned out under its broadcast
// topic. Invalid submissions are dropped at this boundary.
func (s *socketHandler) handleEnvelope(connection *relay.Connection, envelope relay.Envelope) {
	if envelope.Event == relay.TopicJoinDepartment {
		var department string
		if err := json.Unmarshal(envelope.Data, &department); err != nil || department == "" {
			s.logger.Warn("discarding invalid join request",
				zap.String("connection_id", connection.ID))
			return
		}
		s.registry.Join(connection.ID, department)
		s.logger.Info("session joined department",
			zap.String("connection_id", connection.ID),
			zap.String("department", department))
		return
	}

	if err := relay.ValidateSubmission(envelope); err != nil {
		s.logger.Warn("discarding invalid submission",
			zap.String("connection_id", connection.ID),
			zap.String("event", envelope.Event),
			zap.Error(err))
		return
	}
	topic, err := relay.BroadcastTopic(envelope.Event)
	if err != nil {
		s.logger.Warn("discarding unroutable submission",
			zap.String("connection_id", connection.ID),
			zap.String("event", envelope.Event))
		return
	}

	outbound := relay.Envelope{Event: topic, Data: envelope.Data}
	if envelope.Room != "" {
		s.broadcaster.PublishRoom(connection.ID, envelope.Room, outbound)
		return
	}
	s.broadcaster.Publish(connection.ID, outbound)
}

func (s *socketHandler) writePump(socket *websocket.Conn, connection *relay.Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		socket.Close()
	}()

	for {
		select {
		case envelope := <-connection.Stream():
			socket.SetWriteDeadline(time.Now().Add(writeDeadline))
			frame, err := json.Marshal(envelope)
			if err != nil {
				s.logger.Warn("outbound envelope not encodable",
					zap.String("connection_id", connection.ID), zap.Error(err))
				continue
			}
			if err := socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			socket.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-connection.Done():
			socket.SetWriteDeadline(time.Now().Add(writeDeadline))
			socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return false
	}
	return errors.Is(err, net.ErrClosed)
}
