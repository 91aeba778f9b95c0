package model

import "time"

// Category is a user-scoped bookkeeping category.
type Category struct {
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UserID       string          `db:"user_id" json:"user_id"`
	Name         string          `db:"name" json:"name"`
	Type         TransactionType `db:"type" json:"type"`
	TaxCode      string          `db:"tax_code" json:"tax_code,omitempty"`
	ID           int64           `db:"id" json:"id"`
	IsDeductible bool            `db:"is_deductible" json:"is_deductible"`
}

// Matches reports whether the category may be assigned to a transaction of type t.
func (c *Category) Matches(t TransactionType) bool {
	return c.Type == t
}

// DefaultCategories is the catalogue seeded for every new profile.
// Tax codes follow IRS Schedule C line numbers where one applies.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Sales Revenue", Type: TypeIncome},
		{Name: "Service Revenue", Type: TypeIncome},
		{Name: "Interest Income", Type: TypeIncome},
		{Name: "Refunds Received", Type: TypeIncome},
		{Name: "Other Income", Type: TypeIncome, TaxCode: "6"},
		{Name: "Advertising", Type: TypeExpense, IsDeductible: true, TaxCode: "8"},
		{Name: "Car & Truck", Type: TypeExpense, IsDeductible: true, TaxCode: "9"},
		{Name: "Contract Labor", Type: TypeExpense, IsDeductible: true, TaxCode: "11"},
		{Name: "Insurance", Type: TypeExpense, IsDeductible: true, TaxCode: "15"},
		{Name: "Legal & Professional", Type: TypeExpense, IsDeductible: true, TaxCode: "17"},
		{Name: "Office Expense", Type: TypeExpense, IsDeductible: true, TaxCode: "18"},
		{Name: "Rent", Type: TypeExpense, IsDeductible: true, TaxCode: "20b"},
		{Name: "Supplies", Type: TypeExpense, IsDeductible: true, TaxCode: "22"},
		{Name: "Taxes & Licenses", Type: TypeExpense, IsDeductible: true, TaxCode: "23"},
		{Name: "Travel", Type: TypeExpense, IsDeductible: true, TaxCode: "24a"},
		{Name: "Meals", Type: TypeExpense, IsDeductible: true, TaxCode: "24b"},
		{Name: "Utilities", Type: TypeExpense, IsDeductible: true, TaxCode: "25"},
		{Name: "Software & Subscriptions", Type: TypeExpense, IsDeductible: true, TaxCode: "27a"},
		{Name: "Bank Fees", Type: TypeExpense, IsDeductible: true, TaxCode: "27a"},
		{Name: "Owner Draw", Type: TypeExpense},
		{Name: "Personal", Type: TypeExpense},
	}
}
