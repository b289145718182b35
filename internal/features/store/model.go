package store

import "pos-sync/internal/common/models"

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Stock       float64 `json:"stock"`
	UnitsPerBox float64 `json:"units_per_box"`
}

type Sale struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customer_id,omitempty"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	Items         []SaleItem `json:"items"`
}

type SaleItem struct {
	ID        string  `json:"id"`
	SaleID    string  `json:"sale_id"`
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

type Debt struct {
	ID         string  `json:"id"`
	CustomerID string  `json:"customer_id"`
	SaleID     string  `json:"sale_id,omitempty"`
	Amount     float64 `json:"amount"`
	Paid       float64 `json:"paid"`
	Status     string  `json:"status"`
}

// PurchaseItem is one product line of a supplier purchase. Quantities are in
// units; cost is per box.
type PurchaseItem struct {
	ID          string  `json:"id"`
	PurchaseID  string  `json:"purchase_id"`
	ProductID   string  `json:"product_id"`
	QtyUnits    float64 `json:"qty_units"`
	UnitsPerBox float64 `json:"units_per_box"`
	UnitCost    float64 `json:"unit_cost"`
	Total       float64 `json:"total"`
}

const (
	DebtOpen    = "open"
	DebtPartial = "partial"
	DebtPaid    = "paid"

	SaleCompleted = "completed"
)

func (c *Customer) record() models.Record {
	return models.Record{"id": c.ID, "name": c.Name, "phone": c.Phone}
}

func (p *Product) record() models.Record {
	return models.Record{
		"id":            p.ID,
		"name":          p.Name,
		"price":         p.Price,
		"stock":         p.Stock,
		"units_per_box": p.UnitsPerBox,
	}
}

func (s *Sale) record() models.Record {
	return models.Record{
		"id":             s.ID,
		"customer_id":    nullable(s.CustomerID),
		"total":          s.Total,
		"payment_method": s.PaymentMethod,
		"status":         s.Status,
	}
}

func (i *SaleItem) record() models.Record {
	return models.Record{
		"id":         i.ID,
		"sale_id":    i.SaleID,
		"product_id": i.ProductID,
		"quantity":   i.Quantity,
		"unit_price": i.UnitPrice,
		"subtotal":   i.Subtotal,
	}
}

func (d *Debt) record() models.Record {
	return models.Record{
		"id":          d.ID,
		"customer_id": d.CustomerID,
		"sale_id":     nullable(d.SaleID),
		"amount":      d.Amount,
		"paid":        d.Paid,
		"status":      d.Status,
	}
}

func (p *PurchaseItem) record() models.Record {
	return models.Record{
		"id":            p.ID,
		"purchase_id":   p.PurchaseID,
		"product_id":    p.ProductID,
		"qty_units":     p.QtyUnits,
		"units_per_box": p.UnitsPerBox,
		"unit_cost":     p.UnitCost,
		"total":         p.Total,
	}
}

// PurchaseTotal is the cost of qtyUnits when unitCost is the price of a box
// of unitsPerBox units. A missing or invalid box size counts as single units.
func PurchaseTotal(qtyUnits, unitsPerBox, unitCost float64) float64 {
	if unitsPerBox <= 0 {
		unitsPerBox = 1
	}
	return qtyUnits / unitsPerBox * unitCost
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
