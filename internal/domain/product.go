package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Unit string

const (
	UnitKg      Unit = "kg"
	UnitUnit    Unit = "unidad"
	UnitPackage Unit = "paquete"
	UnitLiter   Unit = "litro"
	UnitDozen   Unit = "docena"
)

var unitLabels = map[Unit]string{
	UnitKg:      "Kilogramo (kg)",
	UnitUnit:    "Unidad",
	UnitPackage: "Paquete",
	UnitLiter:   "Litro (l)",
	UnitDozen:   "Docena",
}

// Units en el orden en que se muestran en los formularios.
var Units = []Unit{UnitKg, UnitUnit, UnitPackage, UnitLiter, UnitDozen}

func (u Unit) Valid() bool {
	_, ok := unitLabels[u]
	return ok
}

// Label devuelve el texto para mostrar; para claves desconocidas devuelve la clave.
func (u Unit) Label() string {
	if l, ok := unitLabels[u]; ok {
		return l
	}
	return string(u)
}

type Category string

const (
	CategoryFruits     Category = "frutas"
	CategoryVegetables Category = "verduras"
	CategoryBaskets    Category = "canastas"
	CategoryCombos     Category = "combos"
	CategoryOther      Category = "otros"
)

var categoryLabels = map[Category]string{
	CategoryFruits:     "Frutas",
	CategoryVegetables: "Verduras",
	CategoryBaskets:    "Canastas",
	CategoryCombos:     "Combos",
	CategoryOther:      "Otros",
}

var Categories = []Category{CategoryFruits, CategoryVegetables, CategoryBaskets, CategoryCombos, CategoryOther}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

const (
	MinDiscountPercent = 0
	MaxDiscountPercent = 100
)

type Product struct {
	ID               uint            `gorm:"primaryKey"`
	Title            string          `gorm:"size:200;not null"`
	Price            decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Unit             Unit            `gorm:"size:20;not null;default:unidad"`
	Category         Category        `gorm:"size:20;not null;default:otros;index"`
	Description      string          `gorm:"type:text"`
	PrimaryImage     string          `gorm:"size:255"`
	AdditionalImages ImageList       `gorm:"type:text"`
	Fractionable     bool            `gorm:"not null;default:false"`
	DiscountActive   bool            `gorm:"not null;default:false;index"`
	DiscountPercent  int             `gorm:"not null;default:0"`
	CreatedAt        time.Time       `gorm:"index"`
	UpdatedAt        time.Time
}

// ClampDiscountPercent deja el porcentaje dentro de [0,100].
func ClampDiscountPercent(pct int) int {
	if pct < MinDiscountPercent {
		return MinDiscountPercent
	}
	if pct > MaxDiscountPercent {
		return MaxDiscountPercent
	}
	return pct
}

// Normalize se aplica antes de cada escritura.
func (p *Product) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.DiscountPercent = ClampDiscountPercent(p.DiscountPercent)
	if p.AdditionalImages == nil {
		p.AdditionalImages = ImageList{}
	}
}

// EffectivePrice es precio - precio*pct/100 redondeado a 2 decimales cuando el
// descuento está activo y pct > 0; en otro caso, el precio.
func (p *Product) EffectivePrice() decimal.Decimal {
	return EffectivePrice(p.Price, p.DiscountActive, p.DiscountPercent)
}

func EffectivePrice(price decimal.Decimal, active bool, pct int) decimal.Decimal {
	if !active || pct <= 0 {
		return price
	}
	pct = ClampDiscountPercent(pct)
	discount := price.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100))
	return price.Sub(discount).RoundBank(2)
}

// HasDiscount indica si el producto debe mostrarse con precio tachado.
func (p *Product) HasDiscount() bool {
	return p.DiscountActive && p.DiscountPercent > 0
}

type Scope int

const (
	ScopePublic Scope = iota
	ScopeAdmin
)

type ProductFilter struct {
	Query    string
	Category Category
	Scope    Scope
	Page     int
	PageSize int
}

// ProductPage es una página de resultados ya ajustada a los límites.
type ProductPage struct {
	Products []Product
	Total    int64
	Page     int
	Pages    int
	PageSize int
}

func (p ProductPage) HasPrev() bool { return p.Page > 1 }
func (p ProductPage) HasNext() bool { return p.Page < p.Pages }
