package inventory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	githubsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequentialIDs struct {
	next int
}

func (p *sequentialIDs) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(githubsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&Material{}, &StockMovement{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
		IDProvider: &sequentialIDs{},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func seedMaterial(t *testing.T, service *Service, stock, minimum float64) Material {
	t.Helper()
	material, err := service.CreateMaterial(context.Background(), Material{
		Code:         "STL-001",
		Name:         "Steel Sheet",
		Unit:         "kg",
		CurrentStock: stock,
		MinimumStock: minimum,
	})
	if err != nil {
		t.Fatalf("failed to create material: %v", err)
	}
	return material
}

func TestCreateMaterialRequiresCodeNameUnit(t *testing.T) {
	service := newTestService(t)
	_, err := service.CreateMaterial(context.Background(), Material{Name: "Steel"})
	if !errors.Is(err, ErrInvalidMaterial) {
		t.Fatalf("expected invalid material error, got %v", err)
	}
}

func TestRecordMovementAppliesDelta(t *testing.T) {
	service := newTestService(t)
	material := seedMaterial(t, service, 100, 10)

	movement, updated, err := service.RecordMovement(context.Background(), MovementRequest{
		MaterialID: material.ID,
		Type:       MovementOut,
		Quantity:   40,
		Reason:     "consumed by PO-1",
		User:       "operator-1",
	})
	if err != nil {
		t.Fatalf("failed to record movement: %v", err)
	}
	if updated.CurrentStock != 60 {
		t.Fatalf("expected stock 60, got %.2f", updated.CurrentStock)
	}
	if movement.Type != MovementOut || movement.Quantity != 40 {
		t.Fatalf("unexpected movement: %+v", movement)
	}

	movements, err := service.ListMovements(context.Background(), material.ID, 0)
	if err != nil {
		t.Fatalf("failed to list movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(movements))
	}
}

func TestRecordMovementRejectsOverdraw(t *testing.T) {
	service := newTestService(t)
	material := seedMaterial(t, service, 5, 1)

	_, _, err := service.RecordMovement(context.Background(), MovementRequest{
		MaterialID: material.ID,
		Type:       MovementOut,
		Quantity:   10,
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	unchanged, err := service.GetMaterial(context.Background(), material.ID)
	if err != nil {
		t.Fatalf("failed to re-read material: %v", err)
	}
	if unchanged.CurrentStock != 5 {
		t.Fatalf("expected stock unchanged at 5, got %.2f", unchanged.CurrentStock)
	}
}

func TestAdjustmentNeverGoesNegative(t *testing.T) {
	service := newTestService(t)
	material := seedMaterial(t, service, 3, 1)

	_, updated, err := service.RecordMovement(context.Background(), MovementRequest{
		MaterialID: material.ID,
		Type:       MovementAdjustment,
		Quantity:   -10,
		Reason:     "cycle count",
	})
	if err != nil {
		t.Fatalf("failed to record adjustment: %v", err)
	}
	if updated.CurrentStock != 0 {
		t.Fatalf("expected stock clamped to 0, got %.2f", updated.CurrentStock)
	}
}

func TestLowStockMaterials(t *testing.T) {
	service := newTestService(t)
	low := seedMaterial(t, service, 5, 10)
	if _, err := service.CreateMaterial(context.Background(), Material{
		Code: "ALU-002", Name: "Aluminium Rod", Unit: "m", CurrentStock: 50, MinimumStock: 10,
	}); err != nil {
		t.Fatalf("failed to create second material: %v", err)
	}

	materials, err := service.LowStockMaterials(context.Background())
	if err != nil {
		t.Fatalf("failed to query low stock: %v", err)
	}
	if len(materials) != 1 || materials[0].ID != low.ID {
		t.Fatalf("expected only the low material, got %+v", materials)
	}
}

func TestDeleteMaterialRemovesLedger(t *testing.T) {
	service := newTestService(t)
	material := seedMaterial(t, service, 10, 1)
	if _, _, err := service.RecordMovement(context.Background(), MovementRequest{
		MaterialID: material.ID, Type: MovementIn, Quantity: 5,
	}); err != nil {
		t.Fatalf("failed to record movement: %v", err)
	}

	if err := service.DeleteMaterial(context.Background(), material.ID); err != nil {
		t.Fatalf("failed to delete material: %v", err)
	}
	if _, err := service.GetMaterial(context.Background(), material.ID); !errors.Is(err, ErrMaterialNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	movements, err := service.ListMovements(context.Background(), material.ID, 0)
	if err != nil {
		t.Fatalf("failed to list movements: %v", err)
	}
	if len(movements) != 0 {
		t.Fatalf("expected ledger cleared, got %d entries", len(movements))
	}
}
