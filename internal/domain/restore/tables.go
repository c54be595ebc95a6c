// Package restore imports a JSON backup (table name -> rows) into the store.
package restore

// Table describes how rows of one table are prepared and loaded.
type Table struct {
	Name string
	// IntegerKey tables get their id sequence reset after import.
	IntegerKey bool
	// UUIDColumns are validated; invalid values are nulled, an invalid id is dropped.
	UUIDColumns []string
	// Computed columns are derived by the application and stripped before insert.
	Computed []string
}

// Tables is the import order: base tables first, then their dependents.
var Tables = []Table{
	{Name: "raw_materials", IntegerKey: true},
	{Name: "packaging_materials", IntegerKey: true},
	{Name: "semi_finished_products", IntegerKey: true},
	{Name: "parties", UUIDColumns: []string{"id"}},
	{Name: "financial_categories", IntegerKey: true},
	{Name: "financial_balance", UUIDColumns: []string{"id"}},

	{Name: "semi_finished_ingredients", IntegerKey: true},
	{Name: "finished_products", IntegerKey: true},
	{Name: "finished_product_packaging", IntegerKey: true},
	{Name: "production_orders", IntegerKey: true},
	{Name: "production_order_ingredients", IntegerKey: true},
	{Name: "packaging_orders", IntegerKey: true},
	{Name: "packaging_order_materials", IntegerKey: true},
	{Name: "invoices", IntegerKey: true, UUIDColumns: []string{"party_id"}},
	{Name: "invoice_items", IntegerKey: true, Computed: []string{"total"}},
	{Name: "returns", IntegerKey: true, UUIDColumns: []string{"party_id"}},
	{Name: "return_items", IntegerKey: true, Computed: []string{"total"}},
	{Name: "payments", IntegerKey: true, UUIDColumns: []string{"party_id"}},
	{Name: "invoice_profits", IntegerKey: true},
	{Name: "financial_transactions", UUIDColumns: []string{"id"}},
	{Name: "cash_operations", UUIDColumns: []string{"id"}},
	{Name: "ledger", UUIDColumns: []string{"id", "party_id"}},
	{Name: "party_balances", UUIDColumns: []string{"id", "party_id"}},
	{Name: "inventory_movements", UUIDColumns: []string{"id", "user_id"}},
}

// Lookup returns the table definition by name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
