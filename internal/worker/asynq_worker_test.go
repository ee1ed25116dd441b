package worker

import (
	"testing"

	"github.com/licenceland/licenceland-sync/internal/models"

	"github.com/shopspring/decimal"
)

func TestBuildOrderEmailLinesEmpty(t *testing.T) {
	if got := buildOrderEmailLines(nil); len(got) != 0 {
		t.Fatalf("expected no lines for empty items, got %v", got)
	}
}

func TestBuildOrderEmailLines(t *testing.T) {
	items := []models.OrderItem{
		{
			SKU:       "WIN11-PRO",
			Name:      "Windows 11 Pro",
			Quantity:  2,
			UnitPrice: models.NewMoneyFromDecimal(decimal.NewFromFloat(89.99)),
		},
		{
			SKU:        "OFFICE21-HB",
			Name:       "Office 2021 Home & Business",
			Quantity:   1,
			UnitPrice:  models.NewMoneyFromDecimal(decimal.NewFromInt(199)),
			CDKeyValue: "  OFF-XXXX-YYYY  ",
		},
	}

	lines := buildOrderEmailLines(items)
	if len(lines) != 2 {
		t.Fatalf("line count want 2 got %d", len(lines))
	}
	if lines[0] != "2 x Windows 11 Pro (89.99 WIN11-PRO)" {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	want := "1 x Office 2021 Home & Business (199.00 OFFICE21-HB)\n  CD key: OFF-XXXX-YYYY"
	if lines[1] != want {
		t.Fatalf("unexpected second line, want %q got %q", want, lines[1])
	}
}
