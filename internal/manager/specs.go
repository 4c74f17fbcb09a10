package manager

import (
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/database"
	"github.com/Dajungeks/yumold-erp-system-sub000/pkg/utils"
)

// EmployeeSpec describes the employees entity. Ids are yymm-scoped
// sequences like 2508003.
func EmployeeSpec() EntitySpec {
	return EntitySpec{
		Entity:     "employees",
		Table:      "employees",
		IDColumn:   "employee_id",
		SortColumn: "employee_id",
		Columns: []Column{
			{Name: "name", Required: true},
			{Name: "english_name"},
			{Name: "department"},
			{Name: "position"},
			{Name: "email", Validate: utils.ValidateEmail},
			{Name: "phone"},
			{Name: "hire_date"},
			{Name: "salary"},
			{Name: "currency", Validate: utils.ValidateCurrency},
			{Name: "notes"},
		},
		SoftDelete:   true,
		StatusColumn: "status",
		IDs:          SequentialID{Stamp: "0601", Width: 3},
		CreateSQL: map[database.Kind]string{
			database.KindEmbedded: `
				CREATE TABLE IF NOT EXISTS employees (
					employee_id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					english_name TEXT,
					department TEXT,
					position TEXT,
					email TEXT,
					phone TEXT,
					hire_date TEXT,
					salary TEXT,
					currency TEXT,
					notes TEXT,
					status TEXT NOT NULL DEFAULT 'active',
					created_date TEXT,
					updated_date TEXT
				)`,
			database.KindServer: `
				CREATE TABLE IF NOT EXISTS employees (
					employee_id VARCHAR(32) PRIMARY KEY,
					name VARCHAR(128) NOT NULL,
					english_name VARCHAR(128),
					department VARCHAR(64),
					position VARCHAR(64),
					email VARCHAR(128),
					phone VARCHAR(32),
					hire_date VARCHAR(32),
					salary VARCHAR(32),
					currency VARCHAR(8),
					notes TEXT,
					status VARCHAR(16) NOT NULL DEFAULT 'active',
					created_date VARCHAR(32),
					updated_date VARCHAR(32)
				)`,
		},
		ExtraColumns: []ColumnDef{
			{Name: "english_name", Definition: "VARCHAR(128)"},
			{Name: "resignation_date", Definition: "VARCHAR(32)"},
		},
	}
}

// CustomerSpec describes the customers entity. Ids are a global C-prefixed
// sequence like C001.
func CustomerSpec() EntitySpec {
	return EntitySpec{
		Entity:     "customers",
		Table:      "customers",
		IDColumn:   "customer_id",
		SortColumn: "customer_id",
		Columns: []Column{
			{Name: "company_name", Required: true},
			{Name: "contact_name"},
			{Name: "email", Validate: utils.ValidateEmail},
			{Name: "phone"},
			{Name: "address"},
			{Name: "country"},
			{Name: "tax_id"},
			{Name: "notes"},
		},
		SoftDelete:   true,
		StatusColumn: "status",
		IDs:          SequentialID{Prefix: "C", Width: 3},
		CreateSQL: map[database.Kind]string{
			database.KindEmbedded: `
				CREATE TABLE IF NOT EXISTS customers (
					customer_id TEXT PRIMARY KEY,
					company_name TEXT NOT NULL,
					contact_name TEXT,
					email TEXT,
					phone TEXT,
					address TEXT,
					country TEXT,
					tax_id TEXT,
					notes TEXT,
					status TEXT NOT NULL DEFAULT 'active',
					created_date TEXT,
					updated_date TEXT
				)`,
			database.KindServer: `
				CREATE TABLE IF NOT EXISTS customers (
					customer_id VARCHAR(32) PRIMARY KEY,
					company_name VARCHAR(255) NOT NULL,
					contact_name VARCHAR(128),
					email VARCHAR(128),
					phone VARCHAR(32),
					address VARCHAR(255),
					country VARCHAR(64),
					tax_id VARCHAR(64),
					notes TEXT,
					status VARCHAR(16) NOT NULL DEFAULT 'active',
					created_date VARCHAR(32),
					updated_date VARCHAR(32)
				)`,
		},
		ExtraColumns: []ColumnDef{
			{Name: "tax_id", Definition: "VARCHAR(64)"},
			{Name: "country", Definition: "VARCHAR(64)"},
		},
	}
}

// OrderSpec describes the orders entity. Ids are day-scoped sequences like
// ORD20250915001. Orders are hard-deleted; their lifecycle lives on the
// linked documents, not on a status column.
func OrderSpec() EntitySpec {
	return EntitySpec{
		Entity:     "orders",
		Table:      "orders",
		IDColumn:   "order_id",
		SortColumn: "order_id",
		Columns: []Column{
			{Name: "customer_id", Required: true},
			{Name: "title"},
			{Name: "amount"},
			{Name: "currency", Validate: utils.ValidateCurrency},
			{Name: "delivery_date"},
			{Name: "notes"},
		},
		IDs: SequentialID{Prefix: "ORD", Stamp: "20060102", Width: 3},
		CreateSQL: map[database.Kind]string{
			database.KindEmbedded: `
				CREATE TABLE IF NOT EXISTS orders (
					order_id TEXT PRIMARY KEY,
					customer_id TEXT NOT NULL,
					title TEXT,
					amount TEXT,
					currency TEXT,
					delivery_date TEXT,
					notes TEXT,
					created_date TEXT,
					updated_date TEXT
				)`,
			database.KindServer: `
				CREATE TABLE IF NOT EXISTS orders (
					order_id VARCHAR(32) PRIMARY KEY,
					customer_id VARCHAR(32) NOT NULL,
					title VARCHAR(255),
					amount DECIMAL(18,2),
					currency VARCHAR(8),
					delivery_date VARCHAR(32),
					notes TEXT,
					created_date VARCHAR(32),
					updated_date VARCHAR(32)
				)`,
		},
		ExtraColumns: []ColumnDef{
			{Name: "delivery_date", Definition: "VARCHAR(32)"},
		},
	}
}

// SpecFor resolves an entity name to its spec.
func SpecFor(entity string) (EntitySpec, bool) {
	switch entity {
	case "employees":
		return EmployeeSpec(), true
	case "customers":
		return CustomerSpec(), true
	case "orders":
		return OrderSpec(), true
	}
	return EntitySpec{}, false
}

// Entities lists every entity the generic families serve.
func Entities() []string {
	return []string{"employees", "customers", "orders"}
}
