package models

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Record is a loosely typed business row as it travels between the local
// store, the remote API and the diagnostics.
type Record map[string]any

type EntityType string

// Snapshot holds every record of each entity type, as read from one store.
type Snapshot map[EntityType][]Record

const (
	EntityCustomer     EntityType = "customers"
	EntityProduct      EntityType = "products"
	EntitySale         EntityType = "sales"
	EntitySaleItem     EntityType = "sale_items"
	EntityDebt         EntityType = "debts"
	EntityPurchaseItem EntityType = "purchase_items"
	EntityInventory    EntityType = "inventory" // remote only
)

type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
	StatusFailed  SyncStatus = "failed"
)

// ParentRef names the record an entity depends on remotely.
type ParentRef struct {
	Field string
	Type  EntityType
}

// EntityDef describes how an entity type is stored locally and reached remotely.
type EntityDef struct {
	Type     EntityType
	Table    string // local table, also the key used by /import/sqlite-data
	Resource string // remote path segment
	Parents  []ParentRef
	// Fields compared by the diagnostics; numeric ones use the tolerance.
	Fields        []string
	NumericFields []string
}

var registry = map[EntityType]EntityDef{
	EntityCustomer: {
		Type: EntityCustomer, Table: "customers", Resource: "customers",
		Fields: []string{"name", "phone"},
	},
	EntityProduct: {
		Type: EntityProduct, Table: "products", Resource: "products",
		Fields:        []string{"name"},
		NumericFields: []string{"price", "units_per_box"},
	},
	EntitySale: {
		Type: EntitySale, Table: "sales", Resource: "sales",
		Parents:       []ParentRef{{Field: "customer_id", Type: EntityCustomer}},
		Fields:        []string{"payment_method", "status"},
		NumericFields: []string{"total"},
	},
	EntitySaleItem: {
		Type: EntitySaleItem, Table: "sale_items", Resource: "sale-items",
		Parents: []ParentRef{
			{Field: "sale_id", Type: EntitySale},
			{Field: "product_id", Type: EntityProduct},
		},
		Fields:        []string{"sale_id", "product_id"},
		NumericFields: []string{"quantity", "unit_price", "subtotal"},
	},
	EntityDebt: {
		Type: EntityDebt, Table: "debts", Resource: "debts",
		Parents: []ParentRef{
			{Field: "customer_id", Type: EntityCustomer},
			{Field: "sale_id", Type: EntitySale},
		},
		Fields:        []string{"customer_id", "status"},
		NumericFields: []string{"amount", "paid"},
	},
	EntityPurchaseItem: {
		Type: EntityPurchaseItem, Table: "purchase_items", Resource: "purchase-items",
		Parents:       []ParentRef{{Field: "product_id", Type: EntityProduct}},
		Fields:        []string{"product_id"},
		NumericFields: []string{"qty_units", "units_per_box", "unit_cost", "total"},
	},
	EntityInventory: {
		Type: EntityInventory, Table: "inventory", Resource: "inventory",
	},
}

// LocalEntities lists the entity types mirrored from the local store, parents first.
var LocalEntities = []EntityType{
	EntityCustomer, EntityProduct, EntitySale, EntitySaleItem, EntityDebt, EntityPurchaseItem,
}

func Lookup(t EntityType) (EntityDef, error) {
	def, ok := registry[t]
	if !ok {
		return EntityDef{}, fmt.Errorf("unknown entity type %q", t)
	}
	return def, nil
}

// Get returns rec[field], falling back to the camelCase spelling the remote API uses.
func (r Record) Get(field string) (any, bool) {
	if v, ok := r[field]; ok {
		return v, true
	}
	if v, ok := r[CamelCase(field)]; ok {
		return v, true
	}
	return nil, false
}

// ID returns the stable record identifier as a string.
func (r Record) ID() string {
	v, ok := r.Get("id")
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// String returns the field formatted as text, or "" when absent.
func (r Record) String(field string) string {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Float parses numeric fields stored as numbers or numeric strings.
func (r Record) Float(field string) (float64, bool) {
	v, ok := r.Get(field)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
		return f, err == nil
	}
	return 0, false
}

// CamelCase converts snake_case to camelCase ("units_per_box" -> "unitsPerBox").
func CamelCase(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	var b strings.Builder
	upper := false
	for _, r := range s {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
