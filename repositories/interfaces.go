package repositories

import (
	"context"
	"errors"

	"github.com/pandoralabs/pandora-api/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// UserRepository handles lookup of locally managed accounts. The auth flow
// only ever resolves users by email; account provisioning happens out of
// band (seed data or the external directory).
type UserRepository interface {
	// GetByEmail retrieves a user by email. Returns ErrNotFound when the
	// email is unknown.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// ProductRepository handles product catalog operations
type ProductRepository interface {
	// List returns all products
	List(ctx context.Context) ([]models.Product, error)

	// GetByID retrieves a product by id. Returns ErrNotFound when missing.
	GetByID(ctx context.Context, id int) (*models.Product, error)

	// Create stores a new product and assigns its id
	Create(ctx context.Context, product *models.Product) error

	// Update applies non-zero fields of the patch to an existing product.
	// Returns ErrNotFound when missing.
	Update(ctx context.Context, id int, patch models.Product) (*models.Product, error)

	// Delete removes a product. Returns ErrNotFound when missing.
	Delete(ctx context.Context, id int) error
}
