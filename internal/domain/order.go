package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	gramsPerKg = 1000
	// WeightStep es el paso en gramos para productos fraccionados.
	WeightStep = 250
	maxCartQty = 100000
)

// CartItem es lo que viaja en la cookie del carrito. El precio no se guarda:
// se vuelve a leer del catálogo al mostrar el carrito.
type CartItem struct {
	ProductID uint `json:"id"`
	Qty       int  `json:"qty"`
}

type Cart struct {
	Items []CartItem `json:"items"`
}

// SoldByWeight indica si el producto se pide en gramos.
func SoldByWeight(p *Product) bool {
	return p.Fractionable && p.Unit == UnitKg
}

// DefaultQty es la cantidad que se agrega cuando no se indica otra: 1 kg o 1 unidad.
func DefaultQty(p *Product) int {
	if SoldByWeight(p) {
		return gramsPerKg
	}
	return 1
}

func QtyStep(p *Product) int {
	if SoldByWeight(p) {
		return WeightStep
	}
	return 1
}

func clampQty(q int) int {
	switch {
	case q < 0:
		return 0
	case q > maxCartQty:
		return maxCartQty
	}
	return q
}

func (c Cart) Qty(id uint) int {
	for _, it := range c.Items {
		if it.ProductID == id {
			return it.Qty
		}
	}
	return 0
}

// Add suma qty al renglón del producto o agrega uno nuevo al final.
func (c *Cart) Add(id uint, qty int) {
	c.Set(id, c.Qty(id)+qty)
}

// Set fija la cantidad; 0 o menos quita el producto.
func (c *Cart) Set(id uint, qty int) {
	qty = clampQty(qty)
	for i := range c.Items {
		if c.Items[i].ProductID != id {
			continue
		}
		if qty == 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		} else {
			c.Items[i].Qty = qty
		}
		return
	}
	if qty > 0 {
		c.Items = append(c.Items, CartItem{ProductID: id, Qty: qty})
	}
}

func (c *Cart) Remove(id uint) { c.Set(id, 0) }

func (c Cart) Count() int { return len(c.Items) }

// CartLine es un renglón del carrito con el producto ya leído.
type CartLine struct {
	Product Product
	Qty     int
}

func (l CartLine) ByWeight() bool { return SoldByWeight(&l.Product) }

func (l CartLine) Subtotal() decimal.Decimal {
	q := decimal.NewFromInt(int64(l.Qty))
	if l.ByWeight() {
		q = q.Div(decimal.NewFromInt(gramsPerKg))
	}
	return l.Product.EffectivePrice().Mul(q).RoundBank(2)
}

func (l CartLine) QtyLabel() string {
	if l.ByWeight() {
		if l.Qty >= gramsPerKg {
			return decimal.New(int64(l.Qty), -3).String() + " kg"
		}
		return strconv.Itoa(l.Qty) + " g"
	}
	return strconv.Itoa(l.Qty) + " " + string(l.Product.Unit)
}

func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "efectivo"
	PaymentTransfer PaymentMethod = "transferencia"
)

func (m PaymentMethod) Label() string {
	if m == PaymentTransfer {
		return "Transferencia Bancaria"
	}
	return "Efectivo"
}

// OrderContact son los datos de entrega que completa el cliente.
type OrderContact struct {
	Name    string
	Phone   string
	Address string
	Notes   string
	Payment PaymentMethod
}

// Validate recorta los campos y exige nombre, teléfono y dirección.
func (c *OrderContact) Validate() *ValidationError {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.Notes = strings.TrimSpace(c.Notes)
	if c.Payment != PaymentTransfer {
		c.Payment = PaymentCash
	}

	var verr ValidationError
	if c.Name == "" {
		verr.Add("nombre", "es obligatorio")
	}
	if c.Address == "" {
		verr.Add("direccion", "es obligatorio")
	}
	switch {
	case c.Phone == "":
		verr.Add("telefono", "es obligatorio")
	case countDigits(c.Phone) < 8:
		verr.Add("telefono", "no es un teléfono válido")
	}
	if verr.Empty() {
		return nil
	}
	return &verr
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// OrderMessage arma el texto del pedido que se manda por WhatsApp.
func OrderMessage(lines []CartLine, c OrderContact, at time.Time) string {
	var b strings.Builder
	b.WriteString("Hola! Quiero hacer un pedido.\n\n")
	fmt.Fprintf(&b, "*PEDIDO* - %s a las %s\n\n", at.Format("02/01/2006"), at.Format("15:04"))
	fmt.Fprintf(&b, "*Cliente:* %s\n", c.Name)
	fmt.Fprintf(&b, "*Telefono:* %s\n", c.Phone)
	fmt.Fprintf(&b, "*Direccion:* %s\n", c.Address)
	if c.Notes != "" {
		fmt.Fprintf(&b, "*Observaciones:* %s\n", c.Notes)
	}
	b.WriteString("\n*PRODUCTOS:*\n")
	for i, l := range lines {
		fmt.Fprintf(&b, "%d. %s - %s - $%s\n", i+1, l.Product.Title, l.QtyLabel(), l.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(&b, "\n*TOTAL:* $%s\n", CartTotal(lines).StringFixed(2))
	fmt.Fprintf(&b, "*Pago:* %s\n\n", c.Payment.Label())
	b.WriteString("*Nota:* Los precios son aproximados según las cantidades disponibles. Nos vamos a comunicar al número indicado para confirmar disponibilidad y precio final.")
	return b.String()
}
