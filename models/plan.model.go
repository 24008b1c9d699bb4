package models

import (
	"errors"
	"strings"
	"time"

	"go-bnpl/bnpl"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanStatus controls whether customers can pick a plan at checkout.
type PlanStatus string

const (
	PlanPublished PlanStatus = "Published"
	PlanDraft     PlanStatus = "Draft"
)

// BNPLPlan is an admin-defined financing offer.
type BNPLPlan struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PlanName     string             `bson:"plan_name" json:"plan_name"`
	PlanType     bnpl.PlanType      `bson:"plan_type" json:"plan_type"`
	Duration     int                `bson:"duration" json:"duration"` // months
	InterestRate decimal.Decimal    `bson:"interest_rate" json:"interest_rate"`
	PaymentType  string             `bson:"payment_type" json:"payment_type"` // e.g. "Monthly"
	Status       PlanStatus         `bson:"status" json:"status"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

func (p BNPLPlan) Terms() bnpl.Terms {
	return bnpl.Terms{Type: p.PlanType, Duration: p.Duration, InterestRate: p.InterestRate}
}

func (p BNPLPlan) Snapshot() PlanSnapshot {
	return PlanSnapshot{
		ID:           p.ID,
		Name:         p.PlanName,
		Type:         p.PlanType,
		Duration:     p.Duration,
		InterestRate: p.InterestRate,
	}
}

func (p BNPLPlan) Validate() error {
	if strings.TrimSpace(p.PlanName) == "" {
		return errors.New("plan name is required")
	}
	if p.Status != PlanPublished && p.Status != PlanDraft {
		return errors.New("plan status must be Published or Draft")
	}
	return p.Terms().Validate()
}
