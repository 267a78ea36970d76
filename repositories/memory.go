package repositories

import (
	"context"
	"strings"
	"sync"

	"github.com/pandoralabs/pandora-api/models"
	"golang.org/x/crypto/bcrypt"
)

// MemoryUserRepository is the seed-data user store used outside of a
// database deployment.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*models.User
}

// SeedUser describes one account to preload
type SeedUser struct {
	ID       string
	Email    string
	Password string
	Role     models.UserRole
}

// DefaultSeedUsers returns the development accounts
func DefaultSeedUsers() []SeedUser {
	return []SeedUser{
		{ID: "user-1", Email: "test@example.com", Password: "password", Role: models.RoleUser},
		{ID: "admin-1", Email: "admin@example.com", Password: "password", Role: models.RoleAdmin},
	}
}

// NewMemoryUserRepository creates a repository preloaded with the given
// accounts. Plaintext seed passwords are bcrypt-hashed here so nothing
// downstream ever sees one.
func NewMemoryUserRepository(seed []SeedUser) (*MemoryUserRepository, error) {
	repo := &MemoryUserRepository{byEmail: make(map[string]*models.User, len(seed))}
	for _, s := range seed {
		hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		repo.byEmail[strings.ToLower(s.Email)] = &models.User{
			ID:           s.ID,
			Email:        s.Email,
			PasswordHash: string(hash),
			Role:         s.Role,
		}
	}
	return repo, nil
}

// GetByEmail implements UserRepository
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// MemoryProductRepository is the in-process product catalog
type MemoryProductRepository struct {
	mu       sync.RWMutex
	products []models.Product
	nextID   int
}

// NewMemoryProductRepository creates a catalog preloaded with the sample
// product.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: []models.Product{
			{ID: 1, Name: "Sample product from backend", Price: 9.99},
		},
		nextID: 2,
	}
}

// List implements ProductRepository
func (r *MemoryProductRepository) List(_ context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

// GetByID implements ProductRepository
func (r *MemoryProductRepository) GetByID(_ context.Context, id int) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.products {
		if r.products[i].ID == id {
			copied := r.products[i]
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// Create implements ProductRepository
func (r *MemoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product.ID = r.nextID
	r.nextID++
	r.products = append(r.products, *product)
	return nil
}

// Update implements ProductRepository
func (r *MemoryProductRepository) Update(_ context.Context, id int, patch models.Product) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.products {
		if r.products[i].ID != id {
			continue
		}
		if patch.Name != "" {
			r.products[i].Name = patch.Name
		}
		if patch.Price != 0 {
			r.products[i].Price = patch.Price
		}
		if patch.Description != "" {
			r.products[i].Description = patch.Description
		}
		copied := r.products[i]
		return &copied, nil
	}
	return nil, ErrNotFound
}

// Delete implements ProductRepository
func (r *MemoryProductRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.products {
		if r.products[i].ID == id {
			r.products = append(r.products[:i], r.products[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
