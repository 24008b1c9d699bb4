package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a catalog entry. Only BNPLEligible products can be financed.
type Product struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description" json:"description"`
	Category     string             `bson:"category" json:"category"`
	Price        decimal.Decimal    `bson:"price" json:"price"`
	Stock        int                `bson:"stock" json:"stock"`
	BNPLEligible bool               `bson:"bnpl_eligible" json:"bnpl_eligible"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}
