package repository

import (
	"testing"
	"time"

	"github.com/licenceland/licenceland-sync/internal/models"
)

func TestCountPendingByProduct(t *testing.T) {
	db := setupRepositoryTest(t)
	repo := NewBackorderRepository(db)

	now := time.Now()
	backorders := []models.Backorder{
		{OrderID: 1, OrderItemID: 1, ProductID: 7, Quantity: 1, Status: models.BackorderStatusPending, CreatedAt: now},
		{OrderID: 2, OrderItemID: 2, ProductID: 7, Quantity: 2, Status: models.BackorderStatusPending, CreatedAt: now},
		{OrderID: 3, OrderItemID: 3, ProductID: 7, Quantity: 1, Status: models.BackorderStatusProcessed, CreatedAt: now},
		{OrderID: 4, OrderItemID: 4, ProductID: 8, Quantity: 1, Status: models.BackorderStatusPending, CreatedAt: now},
	}
	for i := range backorders {
		if err := repo.Create(&backorders[i]); err != nil {
			t.Fatalf("create backorder failed: %v", err)
		}
	}

	count, err := repo.CountPendingByProduct(7)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 pending for product 7, got %d", count)
	}

	count, err = repo.CountPendingByProduct(9)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no pending for product 9, got %d", count)
	}
}
