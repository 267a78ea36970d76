package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pandoralabs/pandora-api/models"
	"github.com/pandoralabs/pandora-api/repositories"
	"github.com/pandoralabs/pandora-api/utils"
)

// CreateProductRequest is the request body for POST /api/products
type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required"`
	Price       float64 `json:"price" validate:"gt=0"`
	Description string  `json:"description"`
}

// UpdateProductRequest is the request body for PUT /api/products/{id}.
// Zero-valued fields are left untouched.
type UpdateProductRequest struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

// ProductsHandler handles product CRUD requests
type ProductsHandler struct {
	repo   repositories.ProductRepository
	logger *zap.Logger
}

// NewProductsHandler creates a new ProductsHandler
func NewProductsHandler(repo repositories.ProductRepository, logger *zap.Logger) *ProductsHandler {
	return &ProductsHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleList handles GET /api/products
func (h *ProductsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", zap.Error(err))
		_ = utils.WriteInternalServerError(w)
		return
	}

	_ = utils.WriteOK(w, products)
}

// HandleGet handles GET /api/products/{id}
func (h *ProductsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}

	_ = utils.WriteOK(w, product)
}

// HandleCreate handles POST /api/products
func (h *ProductsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Name and a positive price are required")
		return
	}

	product := &models.Product{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
	}
	if err := h.repo.Create(r.Context(), product); err != nil {
		h.logger.Error("failed to create product", zap.Error(err))
		_ = utils.WriteInternalServerError(w)
		return
	}

	h.logger.Info("product created", zap.Int("id", product.ID))
	_ = utils.WriteCreated(w, product)
}

// HandleUpdate handles PUT /api/products/{id}
func (h *ProductsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return
	}

	product, err := h.repo.Update(r.Context(), id, models.Product{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		h.writeRepoError(w, err)
		return
	}

	_ = utils.WriteOK(w, product)
}

// HandleDelete handles DELETE /api/products/{id}
func (h *ProductsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.writeRepoError(w, err)
		return
	}

	utils.WriteNoContent(w)
}

func (h *ProductsHandler) productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid product id")
		return 0, false
	}
	return id, true
}

func (h *ProductsHandler) writeRepoError(w http.ResponseWriter, err error) {
	if err == repositories.ErrNotFound {
		_ = utils.WriteNotFound(w, "Product not found")
		return
	}
	h.logger.Error("product repository error", zap.Error(err))
	_ = utils.WriteInternalServerError(w)
}
