package quality

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IDProvider issues identifiers for new quality checks.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the quality service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages quality checks.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService validates dependencies and constructs the quality service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("quality: database handle is required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("quality: id provider is required")
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

// ListChecks returns checks newest first, optionally filtered by work order.
func (s *Service) ListChecks(ctx context.Context, workOrderID string) ([]Check, error) {
	query := s.db.WithContext(ctx).Order("check_date desc")
	if workOrderID != "" {
		query = query.Where("work_order_id = ?", workOrderID)
	}
	var checks []Check
	if err := query.Find(&checks).Error; err != nil {
		return nil, err
	}
	return checks, nil
}

// CreateCheck persists a new quality check.
func (s *Service) CreateCheck(ctx context.Context, check Check) (Check, error) {
	if strings.TrimSpace(check.WorkOrderID) == "" || strings.TrimSpace(check.CheckPoint) == "" {
		return Check{}, fmt.Errorf("%w: work order and check point are required", ErrInvalidCheck)
	}
	if check.Status == "" {
		check.Status = StatusPending
	}
	if !validStatus(check.Status) {
		return Check{}, fmt.Errorf("%w: %s", ErrInvalidStatus, check.Status)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Check{}, err
	}
	check.ID = id
	if check.CheckDate.IsZero() {
		check.CheckDate = s.clock().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&check).Error; err != nil {
		return Check{}, err
	}
	s.logger.Info("quality check created",
		zap.String("check_id", check.ID),
		zap.String("work_order_id", check.WorkOrderID))
	return check, nil
}

// UpdateStatus transitions a quality check to its inspection outcome.
func (s *Service) UpdateStatus(ctx context.Context, checkID, status, notes string) (Check, error) {
	if !validStatus(status) {
		return Check{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	var check Check
	err := s.db.WithContext(ctx).Where("id = ?", checkID).Take(&check).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Check{}, ErrCheckNotFound
	}
	if err != nil {
		return Check{}, err
	}

	fields := map[string]interface{}{
		"status":     status,
		"check_date": s.clock().UTC(),
	}
	if notes != "" {
		fields["notes"] = notes
	}
	if err := s.db.WithContext(ctx).Model(&Check{}).Where("id = ?", checkID).
		Updates(fields).Error; err != nil {
		return Check{}, err
	}
	if err := s.db.WithContext(ctx).Where("id = ?", checkID).Take(&check).Error; err != nil {
		return Check{}, err
	}
	return check, nil
}
