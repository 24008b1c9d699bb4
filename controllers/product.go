package controllers

import (
	"net/http"
	"strings"
	"time"

	"go-bnpl/models"
	"go-bnpl/repository"
	"go-bnpl/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProductController handles product-related requests
type ProductController struct {
	Products repository.ProductStore
	Reviews  *services.ReviewService
	Log      *zap.Logger
}

func NewProductController(products repository.ProductStore, reviews *services.ReviewService, log *zap.Logger) *ProductController {
	return &ProductController{Products: products, Reviews: reviews, Log: log}
}

func validProduct(p *models.Product) bool {
	p.Name = strings.TrimSpace(p.Name)
	return p.Name != "" && p.Price.IsPositive() && p.Stock >= 0
}

// CreateProduct handles adding a new product (Admin only)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if !decodeJSON(w, r, &product) {
		return
	}
	if !validProduct(&product) {
		http.Error(w, "Name, a positive price and non-negative stock are required", http.StatusBadRequest)
		return
	}
	product.ID = primitive.NilObjectID
	product.CreatedAt = time.Now().UTC()

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := pc.Products.Create(ctx, &product); err != nil {
		writeError(w, pc.Log, err, "Error creating product")
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// GetProducts retrieves all products
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	products, err := pc.Products.List(ctx)
	if err != nil {
		writeError(w, pc.Log, err, "Error fetching products")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProductByID retrieves a single product by ID
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id", "product")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	product, err := pc.Products.Get(ctx, id)
	if err != nil {
		writeError(w, pc.Log, err, "Error fetching product")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// GetProductReviews lists a product's reviews with the average rating.
func (pc *ProductController) GetProductReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id", "product")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	reviews, err := pc.Reviews.ListForProduct(ctx, id)
	if err != nil {
		writeError(w, pc.Log, err, "Error fetching reviews")
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

// UpdateProduct handles updating a product (Admin only)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id", "product")
	if !ok {
		return
	}
	var product models.Product
	if !decodeJSON(w, r, &product) {
		return
	}
	if !validProduct(&product) {
		http.Error(w, "Name, a positive price and non-negative stock are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	existing, err := pc.Products.Get(ctx, id)
	if err != nil {
		writeError(w, pc.Log, err, "Error updating product")
		return
	}
	product.ID = id
	product.CreatedAt = existing.CreatedAt
	if err := pc.Products.Update(ctx, &product); err != nil {
		writeError(w, pc.Log, err, "Error updating product")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// DeleteProduct handles deleting a product (Admin only)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id", "product")
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := pc.Products.Delete(ctx, id); err != nil {
		writeError(w, pc.Log, err, "Error deleting product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
