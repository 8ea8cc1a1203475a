package inventory

import (
	"errors"
	"time"
)

// Movement directions recorded in the stock ledger.
const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementAdjustment = "adjustment"
)

var (
	// ErrInvalidMaterial indicates required material fields are missing.
	ErrInvalidMaterial = errors.New("inventory: invalid material")
	// ErrMaterialNotFound indicates the referenced material does not exist.
	ErrMaterialNotFound = errors.New("inventory: material not found")
	// ErrInvalidMovement indicates a movement with an unknown type or non-positive quantity.
	ErrInvalidMovement = errors.New("inventory: invalid movement")
	// ErrInsufficientStock indicates an outbound movement larger than current stock.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Material is a stocked item tracked by the inventory module.
type Material struct {
	ID           string    `gorm:"column:id;primaryKey;size:190" json:"id"`
	Code         string    `gorm:"column:code;size:64;not null;uniqueIndex" json:"code"`
	Name         string    `gorm:"column:name;size:190;not null" json:"name"`
	Description  string    `gorm:"column:description;type:text" json:"description"`
	Category     string    `gorm:"column:category;size:64" json:"category"`
	Unit         string    `gorm:"column:unit;size:32;not null" json:"unit"`
	CurrentStock float64   `gorm:"column:current_stock;not null;default:0" json:"currentStock"`
	MinimumStock float64   `gorm:"column:minimum_stock;not null;default:0" json:"minimumStock"`
	MaximumStock float64   `gorm:"column:maximum_stock;not null;default:0" json:"maximumStock"`
	UnitCost     float64   `gorm:"column:unit_cost;not null;default:0" json:"unitCost"`
	Supplier     string    `gorm:"column:supplier;size:190" json:"supplier"`
	Location     string    `gorm:"column:location;size:190" json:"location"`
	LastUpdated  time.Time `gorm:"column:last_updated" json:"lastUpdated"`
}

// TableName binds materials to their table.
func (Material) TableName() string {
	return "materials"
}

// IsLowStock reports whether the material sits at or below its minimum level.
func (m Material) IsLowStock() bool {
	return m.CurrentStock <= m.MinimumStock
}

// StockMovement is one ledger entry adjusting a material's stock.
type StockMovement struct {
	ID         string    `gorm:"column:id;primaryKey;size:190" json:"id"`
	MaterialID string    `gorm:"column:material_id;size:190;not null;index" json:"materialId"`
	Type       string    `gorm:"column:type;size:16;not null" json:"type"`
	Quantity   float64   `gorm:"column:quantity;not null" json:"quantity"`
	Reason     string    `gorm:"column:reason;size:320" json:"reason"`
	Reference  string    `gorm:"column:reference;size:190" json:"reference,omitempty"`
	Timestamp  time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
	User       string    `gorm:"column:user;size:190" json:"user"`
}

// TableName binds stock movements to their table.
func (StockMovement) TableName() string {
	return "stock_movements"
}
