package production

import (
	"errors"
	"time"
)

// Production order lifecycle states.
const (
	StatusDraft      = "draft"
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Work order lifecycle states.
const (
	WorkOrderPending    = "pending"
	WorkOrderInProgress = "in_progress"
	WorkOrderCompleted  = "completed"
	WorkOrderOnHold     = "on_hold"
)

// Order priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var (
	// ErrInvalidOrder indicates required order fields are missing or malformed.
	ErrInvalidOrder = errors.New("production: invalid order")
	// ErrOrderNotFound indicates the referenced production order does not exist.
	ErrOrderNotFound = errors.New("production: order not found")
	// ErrWorkOrderNotFound indicates the referenced work order does not exist.
	ErrWorkOrderNotFound = errors.New("production: work order not found")
	// ErrInvalidStatus indicates an unknown lifecycle state.
	ErrInvalidStatus = errors.New("production: invalid status")
)

// Order is a production order with its nested work orders.
type Order struct {
	ID            string      `gorm:"column:id;primaryKey;size:190" json:"id"`
	OrderNumber   string      `gorm:"column:order_number;size:64;not null;uniqueIndex" json:"orderNumber"`
	ProductName   string      `gorm:"column:product_name;size:190;not null" json:"productName"`
	ProductCode   string      `gorm:"column:product_code;size:64;not null" json:"productCode"`
	Quantity      int         `gorm:"column:quantity;not null" json:"quantity"`
	Status        string      `gorm:"column:status;size:32;not null;default:draft;index" json:"status"`
	Priority      string      `gorm:"column:priority;size:16;not null;default:medium" json:"priority"`
	StartDate     time.Time   `gorm:"column:start_date" json:"startDate"`
	DueDate       time.Time   `gorm:"column:due_date;index" json:"dueDate"`
	CompletedDate *time.Time  `gorm:"column:completed_date" json:"completedDate,omitempty"`
	Progress      float64     `gorm:"column:progress;not null;default:0" json:"progress"`
	EstimatedCost float64     `gorm:"column:estimated_cost;not null;default:0" json:"estimatedCost"`
	ActualCost    float64     `gorm:"column:actual_cost;not null;default:0" json:"actualCost"`
	WorkOrders    []WorkOrder `gorm:"foreignKey:ProductionOrderID" json:"workOrders"`
	CreatedAt     time.Time   `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
	UpdatedAt     time.Time   `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName binds production orders to their table.
func (Order) TableName() string {
	return "production_orders"
}

// WorkOrder is one operation step belonging to a production order.
type WorkOrder struct {
	ID                string     `gorm:"column:id;primaryKey;size:190" json:"id"`
	ProductionOrderID string     `gorm:"column:production_order_id;size:190;not null;index" json:"productionOrderId"`
	Workstation       string     `gorm:"column:workstation;size:190;not null" json:"workstation"`
	Operation         string     `gorm:"column:operation;size:190;not null" json:"operation"`
	Sequence          int        `gorm:"column:sequence;not null" json:"sequence"`
	Status            string     `gorm:"column:status;size:32;not null;default:pending" json:"status"`
	EstimatedDuration int        `gorm:"column:estimated_duration;not null;default:0" json:"estimatedDuration"`
	ActualDuration    *int       `gorm:"column:actual_duration" json:"actualDuration,omitempty"`
	StartTime         *time.Time `gorm:"column:start_time" json:"startTime,omitempty"`
	EndTime           *time.Time `gorm:"column:end_time" json:"endTime,omitempty"`
	AssignedWorker    string     `gorm:"column:assigned_worker;size:190" json:"assignedWorker"`
	Notes             string     `gorm:"column:notes;type:text" json:"notes,omitempty"`
}

// TableName binds work orders to their table.
func (WorkOrder) TableName() string {
	return "work_orders"
}

func validOrderStatus(status string) bool {
	switch status {
	case StatusDraft, StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func validWorkOrderStatus(status string) bool {
	switch status {
	case WorkOrderPending, WorkOrderInProgress, WorkOrderCompleted, WorkOrderOnHold:
		return true
	}
	return false
}
