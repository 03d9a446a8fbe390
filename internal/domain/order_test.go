package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCart_AddSetRemove(t *testing.T) {
	var c Cart

	c.Add(3, 1)
	c.Add(7, 500)
	c.Add(3, 2)
	require.Equal(t, []CartItem{{ProductID: 3, Qty: 3}, {ProductID: 7, Qty: 500}}, c.Items)

	c.Set(7, 250)
	require.Equal(t, 250, c.Qty(7))

	c.Set(3, 0)
	require.Equal(t, []CartItem{{ProductID: 7, Qty: 250}}, c.Items)

	c.Add(7, -1000)
	require.Zero(t, c.Count())

	c.Set(9, maxCartQty*2)
	require.Equal(t, maxCartQty, c.Qty(9))
	c.Remove(9)
	require.Empty(t, c.Items)
}

func TestCartLine_SubtotalAndLabel(t *testing.T) {
	manzana := Product{Title: "Manzana", Price: decimal.NewFromInt(1000), Unit: UnitKg, DiscountActive: true, DiscountPercent: 10}
	lechuga := Product{Title: "Lechuga", Price: decimal.NewFromInt(350), Unit: UnitKg, Fractionable: true}
	huevos := Product{Title: "Huevos", Price: decimal.RequireFromString("1200.50"), Unit: UnitDozen}

	tests := []struct {
		name     string
		line     CartLine
		subtotal string
		label    string
	}{
		{"per kg without fraction", CartLine{Product: manzana, Qty: 2}, "1800.00", "2 kg"},
		{"grams below a kilo", CartLine{Product: lechuga, Qty: 500}, "175.00", "500 g"},
		{"grams above a kilo", CartLine{Product: lechuga, Qty: 1250}, "437.50", "1.25 kg"},
		{"exact kilo", CartLine{Product: lechuga, Qty: 1000}, "350.00", "1 kg"},
		{"other units", CartLine{Product: huevos, Qty: 3}, "3601.50", "3 docena"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.subtotal, tt.line.Subtotal().StringFixed(2))
			require.Equal(t, tt.label, tt.line.QtyLabel())
		})
	}
}

func TestDefaultQtyAndStep(t *testing.T) {
	byWeight := &Product{Unit: UnitKg, Fractionable: true}
	perUnit := &Product{Unit: UnitKg}

	require.Equal(t, 1000, DefaultQty(byWeight))
	require.Equal(t, WeightStep, QtyStep(byWeight))
	require.Equal(t, 1, DefaultQty(perUnit))
	require.Equal(t, 1, QtyStep(perUnit))
}

func TestOrderContact_Validate(t *testing.T) {
	c := OrderContact{Name: "  Ana ", Phone: "341 555-0000", Address: "San Martín 123", Payment: "cualquiera"}
	require.Nil(t, c.Validate())
	require.Equal(t, "Ana", c.Name)
	require.Equal(t, PaymentCash, c.Payment)

	bad := OrderContact{Phone: "12-34"}
	verr := bad.Validate()
	require.NotNil(t, verr)
	require.Equal(t, map[string]string{
		"nombre":    "es obligatorio",
		"direccion": "es obligatorio",
		"telefono":  "no es un teléfono válido",
	}, verr.Fields)

	empty := OrderContact{Name: "Ana", Address: "x"}
	require.Equal(t, "es obligatorio", empty.Validate().Fields["telefono"])
}

func TestOrderMessage(t *testing.T) {
	lines := []CartLine{
		{Product: Product{Title: "Manzana", Price: decimal.NewFromInt(1000), Unit: UnitKg, DiscountActive: true, DiscountPercent: 10}, Qty: 2},
		{Product: Product{Title: "Lechuga", Price: decimal.NewFromInt(350), Unit: UnitKg, Fractionable: true}, Qty: 500},
	}
	contact := OrderContact{Name: "Ana", Phone: "3415550000", Address: "San Martín 123", Notes: "Timbre 2", Payment: PaymentTransfer}
	at := time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)

	msg := OrderMessage(lines, contact, at)

	require.Contains(t, msg, "*PEDIDO* - 14/03/2025 a las 09:26\n")
	require.Contains(t, msg, "*Cliente:* Ana\n*Telefono:* 3415550000\n*Direccion:* San Martín 123\n*Observaciones:* Timbre 2\n")
	require.Contains(t, msg, "*PRODUCTOS:*\n1. Manzana - 2 kg - $1800.00\n2. Lechuga - 500 g - $175.00\n")
	require.Contains(t, msg, "*TOTAL:* $1975.00\n")
	require.Contains(t, msg, "*Pago:* Transferencia Bancaria\n")

	contact.Notes = ""
	require.NotContains(t, OrderMessage(lines, contact, at), "Observaciones")
}
