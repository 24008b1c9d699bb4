package services

import (
	"errors"

	"go-bnpl/repository"
)

var (
	ErrNotFound          = repository.ErrNotFound
	ErrConflict          = repository.ErrConflict
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOutOfStock        = errors.New("insufficient stock")
	ErrPlanUnavailable   = errors.New("plan is not available")
	ErrPaymentIncomplete = errors.New("payment has not succeeded")
	ErrOutOfOrder        = errors.New("earlier installments must be paid first")
	ErrReviewNotAllowed  = errors.New("product was not delivered in this order")
	ErrDuplicateReview   = errors.New("product already reviewed for this order")
)
