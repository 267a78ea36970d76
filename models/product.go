package models

// Product represents a catalog item
type Product struct {
	ID          int     `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Price       float64 `json:"price" db:"price"`
	Description string  `json:"description,omitempty" db:"description"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}
