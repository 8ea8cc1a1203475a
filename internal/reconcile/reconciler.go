package reconcile

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/manufactureflow/backend/internal/inventory"
	"github.com/manufactureflow/backend/internal/production"
	"github.com/manufactureflow/backend/internal/quality"
	"github.com/manufactureflow/backend/internal/relay"
)

// Subscriber registers per-topic handlers with a transport. The client
// transport satisfies this.
type Subscriber interface {
	On(event string, handler func(data json.RawMessage)) int
}

// Reconciler translates inbound envelopes into local collection mutations and
// notifications. Each topic handler decodes defensively: a malformed payload
// is logged and skipped without disturbing the other handlers.
type Reconciler struct {
	Orders        *OrderCollection
	Materials     *MaterialCollection
	Movements     *MovementLedger
	Notifications *NotificationCenter

	logger *zap.Logger
}

// NewReconciler constructs a reconciler with empty collections.
func NewReconciler(notifications *NotificationCenter, logger *zap.Logger) *Reconciler {
	if notifications == nil {
		notifications = NewNotificationCenter(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		Orders:        NewOrderCollection(),
		Materials:     NewMaterialCollection(),
		Movements:     NewMovementLedger(),
		Notifications: notifications,
		logger:        logger,
	}
}

// Bind registers this reconciler's topic handlers with the transport.
func (r *Reconciler) Bind(transport Subscriber) {
	transport.On(relay.TopicProductionUpdated, r.handleProduction)
	transport.On(relay.TopicWorkOrderUpdated, r.handleWorkOrder)
	transport.On(relay.TopicInventoryUpdated, r.handleInventory)
	transport.On(relay.TopicStockMovement, r.handleStockMovement)
	transport.On(relay.TopicQualityUpdated, r.handleQuality)
	transport.On(relay.TopicNotification, r.handleNotification)
}

func (r *Reconciler) decode(topic string, data json.RawMessage, target interface{}) bool {
	if err := json.Unmarshal(data, target); err != nil {
		r.logger.Warn("skipping malformed envelope",
			zap.String("event", topic), zap.Error(err))
		return false
	}
	return true
}

func (r *Reconciler) handleProduction(data json.RawMessage) {
	var event struct {
		Type  string           `json:"type"`
		Order production.Order `json:"order"`
	}
	if !r.decode(relay.TopicProductionUpdated, data, &event) {
		return
	}

	switch event.Type {
	case relay.ChangeCreated:
		r.Orders.Upsert(event.Order)
		r.Notifications.Add(SeverityInfo, "New Production Order",
			fmt.Sprintf("Production order %s has been created.", event.Order.OrderNumber))
	case relay.ChangeUpdated:
		r.Orders.Upsert(event.Order)
		r.Notifications.Add(SeverityInfo, "Production Order Updated",
			fmt.Sprintf("Production order %s has been updated.", event.Order.OrderNumber))
	case relay.ChangeDeleted:
		r.Orders.Remove(event.Order.ID)
		r.Notifications.Add(SeverityWarning, "Production Order Deleted",
			fmt.Sprintf("Production order %s has been deleted.", event.Order.OrderNumber))
	default:
		r.logger.Warn("ignoring unknown production change type", zap.String("type", event.Type))
	}
}

func (r *Reconciler) handleWorkOrder(data json.RawMessage) {
	var event struct {
		Type              string               `json:"type"`
		WorkOrder         production.WorkOrder `json:"workOrder"`
		ProductionOrderID string               `json:"productionOrderId"`
	}
	if !r.decode(relay.TopicWorkOrderUpdated, data, &event) {
		return
	}

	r.Orders.MergeWorkOrder(event.ProductionOrderID, event.WorkOrder)
	if event.Type == relay.ChangeCompleted {
		r.Notifications.Add(SeveritySuccess, "Work Order Completed",
			fmt.Sprintf("Work order %s has been completed.", event.WorkOrder.Operation))
	}
}

func (r *Reconciler) handleInventory(data json.RawMessage) {
	var event struct {
		Type     string             `json:"type"`
		Material inventory.Material `json:"material"`
	}
	if !r.decode(relay.TopicInventoryUpdated, data, &event) {
		return
	}

	switch event.Type {
	case relay.ChangeCreated:
		r.Materials.Upsert(event.Material)
		r.Notifications.Add(SeverityInfo, "New Material Added",
			fmt.Sprintf("Material %s (%s) has been added to inventory.", event.Material.Name, event.Material.Code))
	case relay.ChangeUpdated:
		r.Materials.Upsert(event.Material)
		if event.Material.IsLowStock() {
			r.Notifications.Add(SeverityWarning, "Low Stock Alert",
				fmt.Sprintf("%s stock is running low (%.0f %s remaining).",
					event.Material.Name, event.Material.CurrentStock, event.Material.Unit))
		}
	case relay.ChangeDeleted:
		r.Materials.Remove(event.Material.ID)
		r.Notifications.Add(SeverityWarning, "Material Removed",
			fmt.Sprintf("Material %s has been removed from inventory.", event.Material.Name))
	default:
		r.logger.Warn("ignoring unknown inventory change type", zap.String("type", event.Type))
	}
}

func (r *Reconciler) handleStockMovement(data json.RawMessage) {
	var event struct {
		Movement inventory.StockMovement `json:"movement"`
		Material inventory.Material      `json:"material"`
	}
	if !r.decode(relay.TopicStockMovement, data, &event) {
		return
	}

	r.Movements.Append(event.Movement)
	r.Materials.Upsert(event.Material)

	direction := "Consumed"
	if event.Movement.Type == inventory.MovementIn {
		direction = "Received"
	}
	r.Notifications.Add(SeverityInfo, "Stock Movement",
		fmt.Sprintf("%s %.0f %s of %s.", direction, event.Movement.Quantity,
			event.Material.Unit, event.Material.Name))
}

func (r *Reconciler) handleQuality(data json.RawMessage) {
	var event struct {
		Type         string        `json:"type"`
		QualityCheck quality.Check `json:"qualityCheck"`
		WorkOrderID  string        `json:"workOrderId"`
	}
	if !r.decode(relay.TopicQualityUpdated, data, &event) {
		return
	}

	switch event.QualityCheck.Status {
	case quality.StatusPassed:
		r.Notifications.Add(SeveritySuccess, "Quality Check Passed",
			"Quality check completed successfully.")
	case quality.StatusFailed:
		r.Notifications.Add(SeverityError, "Quality Check Failed",
			"Quality check failed for work order. Immediate attention required.")
	case quality.StatusReworkRequired:
		r.Notifications.Add(SeverityWarning, "Rework Required",
			"Quality check requires rework. Please review the quality parameters.")
	}
}

func (r *Reconciler) handleNotification(data json.RawMessage) {
	var event relay.NotificationEvent
	if !r.decode(relay.TopicNotification, data, &event) {
		return
	}
	r.Notifications.Add(event.Type, event.Title, event.Message)
}
