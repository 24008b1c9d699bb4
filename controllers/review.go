package controllers

import (
	"net/http"

	"go-bnpl/services"

	"go.uber.org/zap"
)

type ReviewController struct {
	Reviews *services.ReviewService
	Log     *zap.Logger
}

func NewReviewController(reviews *services.ReviewService, log *zap.Logger) *ReviewController {
	return &ReviewController{Reviews: reviews, Log: log}
}

// CreateReview rates a product from one of the caller's delivered orders
func (rc *ReviewController) CreateReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var in services.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	review, err := rc.Reviews.Create(ctx, actor.UserID, in)
	if err != nil {
		writeError(w, rc.Log, err, "Error saving review")
		return
	}
	writeJSON(w, http.StatusCreated, review)
}
