package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/manufactureflow/backend/internal/inventory"
	"github.com/manufactureflow/backend/internal/production"
)

// ProductionMetrics summarizes the order book.
type ProductionMetrics struct {
	TotalOrders      int64   `json:"totalOrders"`
	CompletedOrders  int64   `json:"completedOrders"`
	InProgressOrders int64   `json:"inProgressOrders"`
	OverdueOrders    int64   `json:"overDueOrders"`
	QualityRate      float64 `json:"qualityRate"`
}

// InventoryMetrics summarizes stock health.
type InventoryMetrics struct {
	TotalMaterials    int64   `json:"totalMaterials"`
	LowStockMaterials int64   `json:"lowStockMaterials"`
	TotalValue        float64 `json:"totalValue"`
}

// Snapshot is the dashboard payload combining both metric sets.
type Snapshot struct {
	Production ProductionMetrics `json:"productionMetrics"`
	Inventory  InventoryMetrics  `json:"inventoryMetrics"`
	ComputedAt time.Time         `json:"computedAt"`
}

// ServiceConfig describes the dependencies of the analytics service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service computes metric snapshots with aggregate queries.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService validates dependencies and constructs the analytics service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("analytics: database handle is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// ComputeSnapshot aggregates current production and inventory metrics.
func (s *Service) ComputeSnapshot(ctx context.Context) (Snapshot, error) {
	now := s.clock().UTC()
	snapshot := Snapshot{ComputedAt: now}

	db := s.db.WithContext(ctx)
	orderCounts := []struct {
		Status string
		Count  int64
	}{}
	if err := db.Model(&production.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&orderCounts).Error; err != nil {
		return Snapshot{}, err
	}
	for _, row := range orderCounts {
		snapshot.Production.TotalOrders += row.Count
		switch row.Status {
		case production.StatusCompleted:
			snapshot.Production.CompletedOrders = row.Count
		case production.StatusInProgress:
			snapshot.Production.InProgressOrders = row.Count
		}
	}
	if err := db.Model(&production.Order{}).
		Where("due_date < ? AND status NOT IN ?", now,
			[]string{production.StatusCompleted, production.StatusCancelled}).
		Count(&snapshot.Production.OverdueOrders).Error; err != nil {
		return Snapshot{}, err
	}
	if snapshot.Production.TotalOrders > 0 {
		snapshot.Production.QualityRate =
			float64(snapshot.Production.CompletedOrders) / float64(snapshot.Production.TotalOrders)
	}

	if err := db.Model(&inventory.Material{}).
		Count(&snapshot.Inventory.TotalMaterials).Error; err != nil {
		return Snapshot{}, err
	}
	if err := db.Model(&inventory.Material{}).
		Where("current_stock <= minimum_stock").
		Count(&snapshot.Inventory.LowStockMaterials).Error; err != nil {
		return Snapshot{}, err
	}
	var totalValue *float64
	if err := db.Model(&inventory.Material{}).
		Select("sum(current_stock * unit_cost)").
		Scan(&totalValue).Error; err != nil {
		return Snapshot{}, err
	}
	if totalValue != nil {
		snapshot.Inventory.TotalValue = *totalValue
	}

	return snapshot, nil
}
