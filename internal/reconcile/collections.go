package reconcile

import (
	"sync"

	"github.com/manufactureflow/backend/internal/inventory"
	"github.com/manufactureflow/backend/internal/production"
)

// OrderCollection is the client-local mirror of production orders. Merges are
// last-received-wins by id with no version check; a merge targeting an absent
// id inserts instead (defensive upsert).
type OrderCollection struct {
	mu     sync.RWMutex
	orders []production.Order
}

// NewOrderCollection constructs an empty order mirror.
func NewOrderCollection() *OrderCollection {
	return &OrderCollection{}
}

// Upsert replaces the order with a matching id or inserts it.
func (c *OrderCollection) Upsert(order production.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.orders {
		if c.orders[i].ID == order.ID {
			c.orders[i] = order
			return
		}
	}
	c.orders = append(c.orders, order)
}

// Remove deletes the order with the given id; absent ids are a no-op.
func (c *OrderCollection) Remove(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.orders {
		if c.orders[i].ID == orderID {
			c.orders = append(c.orders[:i], c.orders[i+1:]...)
			return
		}
	}
}

// MergeWorkOrder upserts the nested work order within its parent order. If the
// parent is not mirrored locally nothing happens.
func (c *OrderCollection) MergeWorkOrder(productionOrderID string, workOrder production.WorkOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.orders {
		if c.orders[i].ID != productionOrderID {
			continue
		}
		for j := range c.orders[i].WorkOrders {
			if c.orders[i].WorkOrders[j].ID == workOrder.ID {
				c.orders[i].WorkOrders[j] = workOrder
				return
			}
		}
		c.orders[i].WorkOrders = append(c.orders[i].WorkOrders, workOrder)
		return
	}
}

// Get returns the mirrored order for the given id.
func (c *OrderCollection) Get(orderID string) (production.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.orders {
		if c.orders[i].ID == orderID {
			return c.orders[i], true
		}
	}
	return production.Order{}, false
}

// List snapshots the mirrored orders.
func (c *OrderCollection) List() []production.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot := make([]production.Order, len(c.orders))
	copy(snapshot, c.orders)
	return snapshot
}

// Len reports the number of mirrored orders.
func (c *OrderCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.orders)
}

// MaterialCollection is the client-local mirror of inventory materials.
type MaterialCollection struct {
	mu        sync.RWMutex
	materials []inventory.Material
}

// NewMaterialCollection constructs an empty material mirror.
func NewMaterialCollection() *MaterialCollection {
	return &MaterialCollection{}
}

// Upsert replaces the material with a matching id or inserts it.
func (c *MaterialCollection) Upsert(material inventory.Material) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.materials {
		if c.materials[i].ID == material.ID {
			c.materials[i] = material
			return
		}
	}
	c.materials = append(c.materials, material)
}

// Remove deletes the material with the given id; absent ids are a no-op.
func (c *MaterialCollection) Remove(materialID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.materials {
		if c.materials[i].ID == materialID {
			c.materials = append(c.materials[:i], c.materials[i+1:]...)
			return
		}
	}
}

// Get returns the mirrored material for the given id.
func (c *MaterialCollection) Get(materialID string) (inventory.Material, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.materials {
		if c.materials[i].ID == materialID {
			return c.materials[i], true
		}
	}
	return inventory.Material{}, false
}

// List snapshots the mirrored materials.
func (c *MaterialCollection) List() []inventory.Material {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot := make([]inventory.Material, len(c.materials))
	copy(snapshot, c.materials)
	return snapshot
}

// Len reports the number of mirrored materials.
func (c *MaterialCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.materials)
}

// MovementLedger is the client-local mirror of stock movements, newest first.
type MovementLedger struct {
	mu        sync.RWMutex
	movements []inventory.StockMovement
}

// NewMovementLedger constructs an empty ledger mirror.
func NewMovementLedger() *MovementLedger {
	return &MovementLedger{}
}

// Append prepends a movement so the newest entry is first.
func (l *MovementLedger) Append(movement inventory.StockMovement) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.movements = append([]inventory.StockMovement{movement}, l.movements...)
}

// List snapshots the ledger entries, newest first.
func (l *MovementLedger) List() []inventory.StockMovement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snapshot := make([]inventory.StockMovement, len(l.movements))
	copy(snapshot, l.movements)
	return snapshot
}

// Len reports the number of ledger entries.
func (l *MovementLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.movements)
}
