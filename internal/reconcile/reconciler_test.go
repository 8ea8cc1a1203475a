package reconcile

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/manufactureflow/backend/internal/inventory"
	"github.com/manufactureflow/backend/internal/production"
	"github.com/manufactureflow/backend/internal/quality"
)

func newTestReconciler() *Reconciler {
	return NewReconciler(nil, nil)
}

func encode(t *testing.T, payload interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to encode payload: %v", err)
	}
	return data
}

func TestProductionCreatedInsertsOrder(t *testing.T) {
	reconciler := newTestReconciler()
	reconciler.handleProduction(encode(t, map[string]interface{}{
		"type":  "created",
		"order": production.Order{ID: "p1", OrderNumber: "PO-1"},
	}))

	if reconciler.Orders.Len() != 1 {
		t.Fatalf("expected one order, got %d", reconciler.Orders.Len())
	}
	notifications := reconciler.Notifications.List()
	if len(notifications) != 1 || notifications[0].Type != SeverityInfo {
		t.Fatalf("expected one info notification, got %+v", notifications)
	}
}

func TestProductionUpdateIsIdempotent(t *testing.T) {
	reconciler := newTestReconciler()
	payload := encode(t, map[string]interface{}{
		"type":  "updated",
		"order": production.Order{ID: "p1", OrderNumber: "PO-1", Quantity: 5},
	})

	reconciler.handleProduction(payload)
	reconciler.handleProduction(payload)

	if reconciler.Orders.Len() != 1 {
		t.Fatalf("expected merge-by-id to keep one order, got %d", reconciler.Orders.Len())
	}
	order, ok := reconciler.Orders.Get("p1")
	if !ok || order.Quantity != 5 {
		t.Fatalf("unexpected merged order: %+v", order)
	}
}

func TestProductionDeleteOfAbsentIDIsNoop(t *testing.T) {
	reconciler := newTestReconciler()
	reconciler.handleProduction(encode(t, map[string]interface{}{
		"type":  "deleted",
		"order": production.Order{ID: "p1", OrderNumber: "PO-1"},
	}))

	if reconciler.Orders.Len() != 0 {
		t.Fatalf("expected empty collection, got %d", reconciler.Orders.Len())
	}
}

func TestInventoryUpdateRaisesLowStockWarning(t *testing.T) {
	reconciler := newTestReconciler()
	reconciler.handleInventory(encode(t, map[string]interface{}{
		"type": "updated",
		"material": inventory.Material{
			ID: "m1", Name: "Steel Sheet", Unit: "kg",
			CurrentStock: 5, MinimumStock: 10,
		},
	}))

	material, ok := reconciler.Materials.Get("m1")
	if !ok || material.CurrentStock != 5 {
		t.Fatalf("expected material merged, got %+v", material)
	}
	warnings := 0
	for _, notification := range reconciler.Notifications.List() {
		if notification.Type == SeverityWarning {
			warnings++
		}
	}
	if warnings != 1 {
		t.Fatalf("expected exactly one low stock warning, got %d", warnings)
	}
}

func TestInventoryUpdateAboveMinimumRaisesNoWarning(t *testing.T) {
	reconciler := newTestReconciler()
	reconciler.handleInventory(encode(t, map[string]interface{}{
		"type": "updated",
		"material": inventory.Material{
			ID: "m1", Name: "Steel Sheet", Unit: "kg",
			CurrentStock: 50, MinimumStock: 10,
		},
	}))

	if len(reconciler.Notifications.List()) != 0 {
		t.Fatalf("expected no notifications, got %+v", reconciler.Notifications.List())
	}
}

func TestStockMovementAppendsLedgerAndMergesMaterial(t *testing.T) {
	reconciler := newTestReconciler()
	reconciler.handleStockMovement(encode(t, map[string]interface{}{
		"movement": inventory.StockMovement{ID: "mv1", MaterialID: "m1", Type: "in", Quantity: 25},
		"material": inventory.Material{ID: "m1", Name: "Steel Sheet", Unit: "kg", CurrentStock: 125},
	}))

	if reconciler.Movements.Len() != 1 {
		t.Fatalf("expected one ledger entry, got %d", reconciler.Movements.Len())
	}
	material, ok := reconciler.Materials.Get("m1")
	if !ok || material.CurrentStock != 125 {
		t.Fatalf("expected material merged with stock 125, got %+v", material)
	}
	notifications := reconciler.Notifications.List()
	if len(notifications) != 1 || notifications[0].Message != "Received 25 kg of Steel Sheet." {
		t.Fatalf("unexpected notifications: %+v", notifications)
	}
}

func TestWorkOrderCompletionNotifiesOnlyOnCompleted(t *testing.T) {
	reconciler := newTestReconciler()
	reconciler.Orders.Upsert(production.Order{ID: "p1", OrderNumber: "PO-1"})

	reconciler.handleWorkOrder(encode(t, map[string]interface{}{
		"type":              "updated",
		"workOrder":         production.WorkOrder{ID: "w1", Operation: "milling", Status: "in_progress"},
		"productionOrderId": "p1",
	}))
	if len(reconciler.Notifications.List()) != 0 {
		t.Fatal("expected no notification for non-completed work order")
	}

	reconciler.handleWorkOrder(encode(t, map[string]interface{}{
		"type":              "completed",
		"workOrder":         production.WorkOrder{ID: "w1", Operation: "milling", Status: "completed"},
		"productionOrderId": "p1",
	}))
	notifications := reconciler.Notifications.List()
	if len(notifications) != 1 || notifications[0].Type != SeveritySuccess {
		t.Fatalf("expected one success notification, got %+v", notifications)
	}

	order, _ := reconciler.Orders.Get("p1")
	if len(order.WorkOrders) != 1 || order.WorkOrders[0].Status != "completed" {
		t.Fatalf("expected merged work order, got %+v", order.WorkOrders)
	}
}

func TestQualityStatusNotifications(t *testing.T) {
	cases := map[string]string{
		quality.StatusPassed:         SeveritySuccess,
		quality.StatusFailed:         SeverityError,
		quality.StatusReworkRequired: SeverityWarning,
	}
	for status, severity := range cases {
		reconciler := newTestReconciler()
		reconciler.handleQuality(encode(t, map[string]interface{}{
			"type":         "updated",
			"qualityCheck": quality.Check{ID: "q1", Status: status},
			"workOrderId":  "w1",
		}))
		notifications := reconciler.Notifications.List()
		if len(notifications) != 1 || notifications[0].Type != severity {
			t.Fatalf("status %s: expected %s notification, got %+v", status, severity, notifications)
		}
	}
}

func TestNotificationPassthrough(t *testing.T) {
	reconciler := newTestReconciler()
	reconciler.handleNotification(encode(t, map[string]interface{}{
		"type":    "error",
		"title":   "Maintenance Window",
		"message": "Line 2 goes offline at 18:00.",
	}))

	notifications := reconciler.Notifications.List()
	if len(notifications) != 1 || notifications[0].Title != "Maintenance Window" {
		t.Fatalf("expected passthrough notification, got %+v", notifications)
	}
}

func TestMalformedPayloadIsIsolated(t *testing.T) {
	reconciler := newTestReconciler()
	reconciler.handleProduction(json.RawMessage(`{"type":"created","order":"not-an-object"}`))

	if reconciler.Orders.Len() != 0 {
		t.Fatal("expected malformed payload to be skipped")
	}

	reconciler.handleProduction(encode(t, map[string]interface{}{
		"type":  "created",
		"order": production.Order{ID: "p2", OrderNumber: "PO-2"},
	}))
	if reconciler.Orders.Len() != 1 {
		t.Fatal("expected later well-formed events to still apply")
	}
}

func TestNotificationCenterCapsAtFifty(t *testing.T) {
	center := NewNotificationCenter(nil)
	for i := 0; i < 55; i++ {
		center.Add(SeverityInfo, fmt.Sprintf("title-%d", i), "message")
	}

	notifications := center.List()
	if len(notifications) != 50 {
		t.Fatalf("expected 50 notifications, got %d", len(notifications))
	}
	if notifications[0].Title != "title-54" {
		t.Fatalf("expected newest first, got %s", notifications[0].Title)
	}
	if notifications[49].Title != "title-5" {
		t.Fatalf("expected oldest dropped, got %s", notifications[49].Title)
	}
}

func TestMarkReadAndClear(t *testing.T) {
	center := NewNotificationCenter(nil)
	added := center.Add(SeverityInfo, "title", "message")
	center.Add(SeverityWarning, "other", "message")

	center.MarkRead(added.ID)
	if center.Unread() != 1 {
		t.Fatalf("expected one unread, got %d", center.Unread())
	}

	center.Clear()
	if len(center.List()) != 0 {
		t.Fatal("expected empty center after clear")
	}
}
