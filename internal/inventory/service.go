package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IDProvider issues identifiers for new inventory records.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the inventory service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages materials and the stock movement ledger.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the inventory service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("inventory: database handle is required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("inventory: id provider is required")
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

// ListMaterials returns every material ordered by code.
func (s *Service) ListMaterials(ctx context.Context) ([]Material, error) {
	var materials []Material
	if err := s.db.WithContext(ctx).Order("code asc").Find(&materials).Error; err != nil {
		return nil, err
	}
	return materials, nil
}

// GetMaterial fetches a single material by id.
func (s *Service) GetMaterial(ctx context.Context, materialID string) (Material, error) {
	var material Material
	err := s.db.WithContext(ctx).Where("id = ?", materialID).Take(&material).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Material{}, ErrMaterialNotFound
	}
	if err != nil {
		return Material{}, err
	}
	return material, nil
}

// CreateMaterial persists a new material, assigning its identifier.
func (s *Service) CreateMaterial(ctx context.Context, material Material) (Material, error) {
	if strings.TrimSpace(material.Code) == "" || strings.TrimSpace(material.Name) == "" {
		return Material{}, fmt.Errorf("%w: code and name are required", ErrInvalidMaterial)
	}
	if strings.TrimSpace(material.Unit) == "" {
		return Material{}, fmt.Errorf("%w: unit is required", ErrInvalidMaterial)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Material{}, err
	}
	material.ID = id
	material.LastUpdated = s.clock().UTC()

	if err := s.db.WithContext(ctx).Create(&material).Error; err != nil {
		return Material{}, err
	}
	s.logger.Info("material created", zap.String("material_id", material.ID), zap.String("code", material.Code))
	return material, nil
}

// UpdateMaterial overwrites the mutable fields of an existing material.
func (s *Service) UpdateMaterial(ctx context.Context, materialID string, updates Material) (Material, error) {
	existing, err := s.GetMaterial(ctx, materialID)
	if err != nil {
		return Material{}, err
	}

	updates.ID = existing.ID
	updates.LastUpdated = s.clock().UTC()
	if err := s.db.WithContext(ctx).Model(&Material{}).Where("id = ?", existing.ID).
		Select("code", "name", "description", "category", "unit", "minimum_stock",
			"maximum_stock", "unit_cost", "supplier", "location", "last_updated").
		Updates(updates).Error; err != nil {
		return Material{}, err
	}
	return s.GetMaterial(ctx, materialID)
}

// DeleteMaterial removes a material and its ledger history.
func (s *Service) DeleteMaterial(ctx context.Context, materialID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("material_id = ?", materialID).Delete(&StockMovement{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", materialID).Delete(&Material{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrMaterialNotFound
		}
		return nil
	})
}

// MovementRequest describes one stock adjustment to record.
type MovementRequest struct {
	MaterialID string
	Type       string
	Quantity   float64
	Reason     string
	Reference  string
	User       string
}

// RecordMovement appends a ledger entry and applies its delta to the
// material's stock level inside one transaction.
func (s *Service) RecordMovement(ctx context.Context, request MovementRequest) (StockMovement, Material, error) {
	if request.Type != MovementIn && request.Type != MovementOut && request.Type != MovementAdjustment {
		return StockMovement{}, Material{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMovement, request.Type)
	}
	if request.Type != MovementAdjustment && request.Quantity <= 0 {
		return StockMovement{}, Material{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidMovement)
	}

	var movement StockMovement
	var material Material

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", request.MaterialID).Take(&material).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMaterialNotFound
		}
		if err != nil {
			return err
		}

		switch request.Type {
		case MovementIn:
			material.CurrentStock += request.Quantity
		case MovementOut:
			if material.CurrentStock < request.Quantity {
				return fmt.Errorf("%w: %s has %.2f %s", ErrInsufficientStock,
					material.Code, material.CurrentStock, material.Unit)
			}
			material.CurrentStock -= request.Quantity
		case MovementAdjustment:
			material.CurrentStock += request.Quantity
			if material.CurrentStock < 0 {
				material.CurrentStock = 0
			}
		}
		material.LastUpdated = s.clock().UTC()

		if err := tx.Model(&Material{}).Where("id = ?", material.ID).
			Updates(map[string]interface{}{
				"current_stock": material.CurrentStock,
				"last_updated":  material.LastUpdated,
			}).Error; err != nil {
			return err
		}

		movementID, err := s.idProvider.NewID()
		if err != nil {
			return err
		}
		movement = StockMovement{
			ID:         movementID,
			MaterialID: material.ID,
			Type:       request.Type,
			Quantity:   request.Quantity,
			Reason:     request.Reason,
			Reference:  request.Reference,
			Timestamp:  s.clock().UTC(),
			User:       request.User,
		}
		return tx.Create(&movement).Error
	})
	if txErr != nil {
		return StockMovement{}, Material{}, txErr
	}

	s.logger.Info("stock movement recorded",
		zap.String("material_id", material.ID),
		zap.String("type", movement.Type),
		zap.Float64("quantity", movement.Quantity))
	return movement, material, nil
}

// ListMovements returns the newest ledger entries first, optionally filtered
// by material.
func (s *Service) ListMovements(ctx context.Context, materialID string, limit int) ([]StockMovement, error) {
	query := s.db.WithContext(ctx).Order("timestamp desc")
	if materialID != "" {
		query = query.Where("material_id = ?", materialID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var movements []StockMovement
	if err := query.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// LowStockMaterials returns materials at or below their minimum stock level.
func (s *Service) LowStockMaterials(ctx context.Context) ([]Material, error) {
	var materials []Material
	err := s.db.WithContext(ctx).
		Where("current_stock <= minimum_stock").
		Order("code asc").
		Find(&materials).Error
	if err != nil {
		return nil, err
	}
	return materials, nil
}
