package models

import (
	"time"

	"go-bnpl/bnpl"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentChannel is how money for a portion was received.
type PaymentChannel string

const (
	ChannelStripe PaymentChannel = "stripe"
	ChannelManual PaymentChannel = "manual"
	ChannelCash   PaymentChannel = "cash"
)

// Payment records money received against one portion of an order
type Payment struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OrderID           primitive.ObjectID `bson:"order_id" json:"order_id"`
	UserID            primitive.ObjectID `bson:"user_id" json:"user_id"`
	Kind              bnpl.PortionKind   `bson:"kind" json:"kind"`
	InstallmentNumber int                `bson:"installment_number,omitempty" json:"installment_number,omitempty"`
	Amount            decimal.Decimal    `bson:"amount" json:"amount"`
	Penalty           decimal.Decimal    `bson:"penalty" json:"penalty"`
	Channel           PaymentChannel     `bson:"channel" json:"channel"`
	ProviderRef       string             `bson:"provider_ref,omitempty" json:"provider_ref,omitempty"` // Stripe payment intent id
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
}
