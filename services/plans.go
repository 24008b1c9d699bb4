package services

import (
	"context"
	"fmt"
	"time"

	"go-bnpl/models"
	"go-bnpl/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanService manages the BNPL plans offered at checkout. Orders keep a
// snapshot of their plan, so editing or deleting a plan never changes them.
type PlanService struct {
	Plans repository.PlanStore
	Now   func() time.Time
}

func NewPlanService(plans repository.PlanStore) *PlanService {
	return &PlanService{Plans: plans, Now: utcNow}
}

func normalizePlan(plan *models.BNPLPlan) error {
	if plan.Status == "" {
		plan.Status = models.PlanDraft
	}
	if plan.PaymentType == "" {
		plan.PaymentType = "Monthly"
	}
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *PlanService) Create(ctx context.Context, plan models.BNPLPlan) (*models.BNPLPlan, error) {
	if err := normalizePlan(&plan); err != nil {
		return nil, err
	}
	now := s.Now()
	plan.ID = primitive.NilObjectID
	plan.CreatedAt = now
	plan.UpdatedAt = now
	if err := s.Plans.Create(ctx, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// List returns every plan to admins and only published ones otherwise.
func (s *PlanService) List(ctx context.Context, publishedOnly bool) ([]models.BNPLPlan, error) {
	return s.Plans.List(ctx, publishedOnly)
}

func (s *PlanService) Update(ctx context.Context, id primitive.ObjectID, plan models.BNPLPlan) (*models.BNPLPlan, error) {
	existing, err := s.Plans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := normalizePlan(&plan); err != nil {
		return nil, err
	}
	plan.ID = id
	plan.CreatedAt = existing.CreatedAt
	plan.UpdatedAt = s.Now()
	if err := s.Plans.Update(ctx, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *PlanService) Delete(ctx context.Context, id primitive.ObjectID) error {
	return s.Plans.Delete(ctx, id)
}
