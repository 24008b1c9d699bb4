package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-bnpl/models"
	"go-bnpl/repository"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReviewService struct {
	Reviews repository.ReviewStore
	Orders  repository.OrderStore
	Now     func() time.Time
}

func NewReviewService(reviews repository.ReviewStore, orders repository.OrderStore) *ReviewService {
	return &ReviewService{Reviews: reviews, Orders: orders, Now: utcNow}
}

type ReviewInput struct {
	ProductID  primitive.ObjectID `json:"product_id"`
	OrderID    primitive.ObjectID `json:"order_id"`
	Rating     int                `json:"rating"`
	ReviewText string             `json:"review_text"`
}

// Create stores a review for a product the user received in a delivered order.
func (s *ReviewService) Create(ctx context.Context, userID primitive.ObjectID, in ReviewInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	order, err := s.Orders.Get(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID || order.Status != models.OrderStatusDelivered || !order.ContainsProduct(in.ProductID) {
		return nil, ErrReviewNotAllowed
	}

	review := &models.Review{
		ProductID:  in.ProductID,
		UserID:     userID,
		OrderID:    in.OrderID,
		Rating:     in.Rating,
		ReviewText: strings.TrimSpace(in.ReviewText),
		Timestamp:  s.Now(),
	}
	if err := s.Reviews.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateReview
		}
		return nil, err
	}
	return review, nil
}

type ProductReviews struct {
	Reviews       []models.Review `json:"reviews"`
	Count         int             `json:"count"`
	AverageRating decimal.Decimal `json:"average_rating"`
}

// ListForProduct returns a product's reviews newest first with the average
// rating rounded to one decimal.
func (s *ReviewService) ListForProduct(ctx context.Context, productID primitive.ObjectID) (*ProductReviews, error) {
	reviews, err := s.Reviews.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := &ProductReviews{Reviews: reviews, Count: len(reviews), AverageRating: decimal.Zero}
	if len(reviews) == 0 {
		return out, nil
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	out.AverageRating = decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(reviews)))).Round(1)
	return out, nil
}
