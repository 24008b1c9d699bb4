package controllers

import (
	"errors"
	"net/http"
	"time"

	"go-bnpl/models"
	"go-bnpl/repository"

	"go.uber.org/zap"
)

// CartController handles cart-related requests
type CartController struct {
	Carts    repository.CartStore
	Products repository.ProductStore
	Log      *zap.Logger
}

// NewCartController creates a new CartController
func NewCartController(carts repository.CartStore, products repository.ProductStore, log *zap.Logger) *CartController {
	return &CartController{Carts: carts, Products: products, Log: log}
}

// AddToCart adds a product to the user's cart
func (cc *CartController) AddToCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var item models.CartItem
	if !decodeJSON(w, r, &item) {
		return
	}
	if item.ProductID.IsZero() || item.Quantity <= 0 {
		http.Error(w, "product_id and a positive quantity are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if _, err := cc.Products.Get(ctx, item.ProductID); err != nil {
		writeError(w, cc.Log, err, "Error loading product")
		return
	}

	cart, err := cc.Carts.Get(ctx, actor.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		cart = &models.Cart{UserID: actor.UserID}
	} else if err != nil {
		writeError(w, cc.Log, err, "Error loading cart")
		return
	}
	cart.Add(item)
	cart.UpdatedAt = time.Now().UTC()
	if err := cc.Carts.Save(ctx, cart); err != nil {
		writeError(w, cc.Log, err, "Error updating cart")
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// GetCart retrieves the user's cart
func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	cart, err := cc.Carts.Get(ctx, actor.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		cart = &models.Cart{UserID: actor.UserID, Items: []models.CartItem{}}
	} else if err != nil {
		writeError(w, cc.Log, err, "Error loading cart")
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// RemoveFromCart drops one product from the user's cart
func (cc *CartController) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	productID, ok := objectIDVar(w, r, "product_id", "product")
	if !ok {
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	cart, err := cc.Carts.Get(ctx, actor.UserID)
	if err != nil {
		writeError(w, cc.Log, err, "Error loading cart")
		return
	}
	if !cart.Remove(productID) {
		http.Error(w, "Product not in cart", http.StatusNotFound)
		return
	}
	cart.UpdatedAt = time.Now().UTC()
	if err := cc.Carts.Save(ctx, cart); err != nil {
		writeError(w, cc.Log, err, "Error updating cart")
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
