package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review is a rating left on a product bought in a delivered order.
type Review struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ProductID  primitive.ObjectID `bson:"product_id" json:"product_id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	OrderID    primitive.ObjectID `bson:"order_id" json:"order_id"`
	Rating     int                `bson:"rating" json:"rating"`
	ReviewText string             `bson:"review_text" json:"review_text"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
}
