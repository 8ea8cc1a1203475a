package quality

import (
	"errors"
	"time"
)

// Quality check outcomes.
const (
	StatusPending        = "pending"
	StatusPassed         = "passed"
	StatusFailed         = "failed"
	StatusReworkRequired = "rework_required"
)

var (
	// ErrInvalidCheck indicates required check fields are missing.
	ErrInvalidCheck = errors.New("quality: invalid check")
	// ErrCheckNotFound indicates the referenced quality check does not exist.
	ErrCheckNotFound = errors.New("quality: check not found")
	// ErrInvalidStatus indicates an unknown check outcome.
	ErrInvalidStatus = errors.New("quality: invalid status")
)

// Check records one inspection against a work order.
type Check struct {
	ID          string    `gorm:"column:id;primaryKey;size:190" json:"id"`
	WorkOrderID string    `gorm:"column:work_order_id;size:190;not null;index" json:"workOrderId"`
	CheckPoint  string    `gorm:"column:check_point;size:190;not null" json:"checkPoint"`
	Inspector   string    `gorm:"column:inspector;size:190;not null" json:"inspector"`
	Status      string    `gorm:"column:status;size:32;not null;default:pending;index" json:"status"`
	CheckDate   time.Time `gorm:"column:check_date;not null" json:"checkDate"`
	Notes       string    `gorm:"column:notes;type:text" json:"notes,omitempty"`
}

// TableName binds quality checks to their table.
func (Check) TableName() string {
	return "quality_checks"
}

func validStatus(status string) bool {
	switch status {
	case StatusPending, StatusPassed, StatusFailed, StatusReworkRequired:
		return true
	}
	return false
}
