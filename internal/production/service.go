package production

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IDProvider issues identifiers for new production records.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the production service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages production orders and their work orders.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the production service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("production: database handle is required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("production: id provider is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// ListOrders returns all production orders, newest first, with work orders
// preloaded in sequence order.
func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	err := s.db.WithContext(ctx).
		Preload("WorkOrders", func(db *gorm.DB) *gorm.DB { return db.Order("sequence asc") }).
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder fetches one production order with its work orders.
func (s *Service) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var order Order
	err := s.db.WithContext(ctx).
		Preload("WorkOrders", func(db *gorm.DB) *gorm.DB { return db.Order("sequence asc") }).
		Where("id = ?", orderID).
		Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// CreateOrder persists a new production order together with any nested work
// orders, assigning identifiers throughout.
func (s *Service) CreateOrder(ctx context.Context, order Order) (Order, error) {
	if strings.TrimSpace(order.OrderNumber) == "" || strings.TrimSpace(order.ProductName) == "" {
		return Order{}, fmt.Errorf("%w: order number and product name are required", ErrInvalidOrder)
	}
	if order.Quantity <= 0 {
		return Order{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	if order.Status == "" {
		order.Status = StatusDraft
	}
	if !validOrderStatus(order.Status) {
		return Order{}, fmt.Errorf("%w: %s", ErrInvalidStatus, order.Status)
	}
	if order.Priority == "" {
		order.Priority = PriorityMedium
	}

	orderID, err := s.idProvider.NewID()
	if err != nil {
		return Order{}, err
	}
	order.ID = orderID
	for i := range order.WorkOrders {
		workOrderID, err := s.idProvider.NewID()
		if err != nil {
			return Order{}, err
		}
		order.WorkOrders[i].ID = workOrderID
		order.WorkOrders[i].ProductionOrderID = order.ID
		if order.WorkOrders[i].Status == "" {
			order.WorkOrders[i].Status = WorkOrderPending
		}
	}

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return Order{}, err
	}
	s.logger.Info("production order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))
	return order, nil
}

// UpdateOrder overwrites the mutable fields of an existing order and returns
// the refreshed record.
func (s *Service) UpdateOrder(ctx context.Context, orderID string, updates Order) (Order, error) {
	existing, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if updates.Status != "" && !validOrderStatus(updates.Status) {
		return Order{}, fmt.Errorf("%w: %s", ErrInvalidStatus, updates.Status)
	}

	fields := map[string]interface{}{}
	if updates.ProductName != "" {
		fields["product_name"] = updates.ProductName
	}
	if updates.ProductCode != "" {
		fields["product_code"] = updates.ProductCode
	}
	if updates.Quantity > 0 {
		fields["quantity"] = updates.Quantity
	}
	if updates.Priority != "" {
		fields["priority"] = updates.Priority
	}
	if updates.Progress > 0 {
		fields["progress"] = updates.Progress
	}
	if updates.EstimatedCost > 0 {
		fields["estimated_cost"] = updates.EstimatedCost
	}
	if updates.ActualCost > 0 {
		fields["actual_cost"] = updates.ActualCost
	}
	if !updates.DueDate.IsZero() {
		fields["due_date"] = updates.DueDate
	}
	if updates.Status != "" {
		fields["status"] = updates.Status
		if updates.Status == StatusCompleted {
			now := s.clock().UTC()
			fields["completed_date"] = &now
			fields["progress"] = 100.0
		}
	}

	if len(fields) > 0 {
		if err := s.db.WithContext(ctx).Model(&Order{}).Where("id = ?", existing.ID).
			Updates(fields).Error; err != nil {
			return Order{}, err
		}
	}
	return s.GetOrder(ctx, orderID)
}

// DeleteOrder removes a production order and its work orders.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("production_order_id = ?", orderID).Delete(&WorkOrder{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", orderID).Delete(&Order{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOrderNotFound
		}
		return nil
	})
}

// UpdateWorkOrderStatus transitions one work order, stamping start and end
// times on the in_progress and completed transitions.
func (s *Service) UpdateWorkOrderStatus(ctx context.Context, workOrderID, status string) (WorkOrder, error) {
	if !validWorkOrderStatus(status) {
		return WorkOrder{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	var workOrder WorkOrder
	err := s.db.WithContext(ctx).Where("id = ?", workOrderID).Take(&workOrder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return WorkOrder{}, ErrWorkOrderNotFound
	}
	if err != nil {
		return WorkOrder{}, err
	}

	now := s.clock().UTC()
	fields := map[string]interface{}{"status": status}
	switch status {
	case WorkOrderInProgress:
		if workOrder.StartTime == nil {
			fields["start_time"] = &now
		}
	case WorkOrderCompleted:
		fields["end_time"] = &now
		if workOrder.StartTime != nil {
			duration := int(now.Sub(*workOrder.StartTime).Minutes())
			fields["actual_duration"] = &duration
		}
	}

	if err := s.db.WithContext(ctx).Model(&WorkOrder{}).Where("id = ?", workOrderID).
		Updates(fields).Error; err != nil {
		return WorkOrder{}, err
	}

	err = s.db.WithContext(ctx).Where("id = ?", workOrderID).Take(&workOrder).Error
	if err != nil {
		return WorkOrder{}, err
	}
	s.logger.Info("work order status updated",
		zap.String("work_order_id", workOrder.ID),
		zap.String("status", workOrder.Status))
	return workOrder, nil
}
