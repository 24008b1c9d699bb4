package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go-bnpl/bnpl"
	"go-bnpl/middleware"
	"go-bnpl/models"
	"go-bnpl/repository"
	"go-bnpl/services"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonDecoder(r *http.Request) *json.Decoder {
	return json.NewDecoder(r.Body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := jsonDecoder(r).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps service and domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, models.ErrNoSuchPortion):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, bnpl.ErrAlreadyPaid),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, services.ErrDuplicateReview),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrOutOfStock),
		errors.Is(err, repository.ErrInsufficientStock),
		errors.Is(err, services.ErrOutOfOrder):
		return http.StatusConflict
	case errors.Is(err, services.ErrPaymentIncomplete):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrPlanUnavailable),
		errors.Is(err, services.ErrReviewNotAllowed),
		errors.Is(err, models.ErrInvalidOrderStatus),
		errors.Is(err, models.ErrInvalidPaymentMethod),
		errors.Is(err, bnpl.ErrInvalidTerms),
		errors.Is(err, bnpl.ErrInvalidAmount),
		errors.Is(err, bnpl.ErrScheduleUnderflow):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status. Internal errors are logged and
// hidden behind a generic message.
func writeError(w http.ResponseWriter, log *zap.Logger, err error, internalMsg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(internalMsg, zap.Error(err))
		http.Error(w, internalMsg, status)
		return
	}
	http.Error(w, err.Error(), status)
}

func objectIDVar(w http.ResponseWriter, r *http.Request, name, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		http.Error(w, "Invalid "+what+" ID", http.StatusBadRequest)
		return primitive.NilObjectID, false
	}
	return id, true
}

// actorFrom reads the authenticated caller set by middleware.AuthMiddleware.
func actorFrom(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return services.Actor{}, false
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return services.Actor{}, false
	}
	return services.Actor{UserID: id, Admin: claims.IsAdmin()}, true
}
