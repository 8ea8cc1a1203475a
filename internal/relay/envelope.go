package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Topic names accepted from clients.
const (
	TopicJoinDepartment      = "join-department"
	TopicProductionUpdate    = "production-update"
	TopicWorkOrderUpdate     = "work-order-update"
	TopicInventoryUpdate     = "inventory-update"
	TopicStockMovementUpdate = "stock-movement"
	TopicQualityUpdate       = "quality-update"
)

// Topic names delivered to clients.
const (
	TopicProductionUpdated = "production-updated"
	TopicWorkOrderUpdated  = "work-order-updated"
	TopicInventoryUpdated  = "inventory-updated"
	TopicStockMovement     = "stock-movement"
	TopicQualityUpdated    = "quality-updated"
	TopicNotification      = "notification"
	TopicUserConnected     = "user-connected"
	TopicUserDisconnected  = "user-disconnected"
	TopicMetricsUpdated    = "metrics-updated"
)

// Change types carried inside entity payloads.
const (
	ChangeCreated   = "created"
	ChangeUpdated   = "updated"
	ChangeDeleted   = "deleted"
	ChangeCompleted = "completed"
)

var (
	// ErrUnknownTopic indicates the envelope names a topic the relay does not handle.
	ErrUnknownTopic = errors.New("relay: unknown topic")
	// ErrInvalidPayload indicates the payload does not decode as the topic's variant.
	ErrInvalidPayload = errors.New("relay: invalid payload")
)

// Envelope is the wire unit exchanged over the relay: a topic name plus a
// topic-specific payload. Room, when set on a client submission, scopes the
// broadcast to current members of that department room. The relay itself
// never inspects payload contents beyond boundary validation.
type Envelope struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload and wraps it under the given topic.
func NewEnvelope(event string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("relay: encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// ProductionEvent mirrors a production order change.
type ProductionEvent struct {
	Type  string          `json:"type"`
	Order json.RawMessage `json:"order"`
}

// WorkOrderEvent mirrors a work order change nested under a production order.
type WorkOrderEvent struct {
	Type              string          `json:"type"`
	WorkOrder         json.RawMessage `json:"workOrder"`
	ProductionOrderID string          `json:"productionOrderId"`
}

// InventoryEvent mirrors a material change.
type InventoryEvent struct {
	Type     string          `json:"type"`
	Material json.RawMessage `json:"material"`
}

// StockMovementEvent carries a ledger entry plus the material it adjusted.
type StockMovementEvent struct {
	Movement json.RawMessage `json:"movement"`
	Material json.RawMessage `json:"material"`
}

// QualityEvent mirrors a quality check change.
type QualityEvent struct {
	Type         string          `json:"type"`
	QualityCheck json.RawMessage `json:"qualityCheck"`
	WorkOrderID  string          `json:"workOrderId"`
}

// NotificationEvent is a server-originated system message.
type NotificationEvent struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceEvent announces a session joining or leaving.
type PresenceEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// MetricsEvent carries a metrics snapshot for dashboards.
type MetricsEvent struct {
	Type    string          `json:"type"`
	Metrics json.RawMessage `json:"metrics"`
}

// BroadcastTopic maps a client submission topic to the topic it is relayed
// under. Returns ErrUnknownTopic for anything the relay does not fan out.
func BroadcastTopic(submitted string) (string, error) {
	switch submitted {
	case TopicProductionUpdate:
		return TopicProductionUpdated, nil
	case TopicWorkOrderUpdate:
		return TopicWorkOrderUpdated, nil
	case TopicInventoryUpdate:
		return TopicInventoryUpdated, nil
	case TopicStockMovementUpdate:
		return TopicStockMovement, nil
	case TopicQualityUpdate:
		return TopicQualityUpdated, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTopic, submitted)
	}
}

// ValidateSubmission decodes the payload of a client-submitted envelope as the
// tagged variant its topic requires. Malformed envelopes are rejected here so
// they never reach other clients.
func ValidateSubmission(envelope Envelope) error {
	switch envelope.Event {
	case TopicProductionUpdate:
		var event ProductionEvent
		if err := decodeStrictVariant(envelope.Data, &event); err != nil {
			return err
		}
		return validateChangeType(event.Type, ChangeCreated, ChangeUpdated, ChangeDeleted)
	case TopicWorkOrderUpdate:
		var event WorkOrderEvent
		if err := decodeStrictVariant(envelope.Data, &event); err != nil {
			return err
		}
		return validateChangeType(event.Type, ChangeCreated, ChangeUpdated, ChangeCompleted)
	case TopicInventoryUpdate:
		var event InventoryEvent
		if err := decodeStrictVariant(envelope.Data, &event); err != nil {
			return err
		}
		return validateChangeType(event.Type, ChangeCreated, ChangeUpdated, ChangeDeleted)
	case TopicStockMovementUpdate:
		var event StockMovementEvent
		if err := decodeStrictVariant(envelope.Data, &event); err != nil {
			return err
		}
		if len(event.Movement) == 0 {
			return fmt.Errorf("%w: stock movement requires a movement entry", ErrInvalidPayload)
		}
		return nil
	case TopicQualityUpdate:
		var event QualityEvent
		if err := decodeStrictVariant(envelope.Data, &event); err != nil {
			return err
		}
		return validateChangeType(event.Type, ChangeCreated, ChangeUpdated)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTopic, envelope.Event)
	}
}

func decodeStrictVariant(data json.RawMessage, target interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func validateChangeType(value string, allowed ...string) error {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range allowed {
		if trimmed == candidate {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported change type %q", ErrInvalidPayload, value)
}
