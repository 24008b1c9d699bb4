package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-bnpl/bnpl"
	"go-bnpl/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewMongoStores wires every store to a collection of db.
func NewMongoStores(db *mongo.Database) *Stores {
	return &Stores{
		Orders:   &MongoOrderStore{Collection: db.Collection("orders")},
		Plans:    &MongoPlanStore{Collection: db.Collection("bnpl_plans")},
		Reviews:  &MongoReviewStore{Collection: db.Collection("reviews")},
		Users:    &MongoUserStore{Collection: db.Collection("users")},
		Products: &MongoProductStore{Collection: db.Collection("products")},
		Carts:    &MongoCartStore{Collection: db.Collection("carts")},
		Payments: &MongoPaymentStore{Collection: db.Collection("payments")},
	}
}

// EnsureIndexes creates the indexes the stores rely on for uniqueness and
// the overdue sweep.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"orders": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "installments.due_date", Value: 1}}},
		},
		"reviews": {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}, {Key: "order_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"carts": {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"payments": {
			{Keys: bson.D{{Key: "order_id", Value: 1}}},
		},
	}
	for coll, idx := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// MongoOrderStore keeps orders with their embedded installments.
type MongoOrderStore struct {
	Collection *mongo.Collection
}

func (s *MongoOrderStore) Create(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := s.Collection.InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("order %s: %w", order.Reference, ErrDuplicate)
	}
	return err
}

func (s *MongoOrderStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	if err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, notFound(err, "order "+id.Hex())
	}
	return &order, nil
}

func (f OrderFilter) toBSON() bson.M {
	q := bson.M{}
	if !f.UserID.IsZero() {
		q["user_id"] = f.UserID
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.PaymentMethod != "" {
		q["payment_method"] = f.PaymentMethod
	}
	if f.PaymentStatus != "" {
		q["payment_status"] = f.PaymentStatus
	}
	if f.OpenBNPL {
		if f.Status == "" {
			q["status"] = bson.M{"$ne": models.OrderStatusCancelled}
		}
		q["$or"] = bson.A{
			bson.M{"installments": bson.M{"$elemMatch": bson.M{"status": bnpl.StatusPending}}},
			bson.M{"fixed_duration.status": bnpl.StatusPending},
		}
	}
	return q
}

func (s *MongoOrderStore) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.Collection.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *MongoOrderStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, at time.Time) error {
	res, err := s.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("order %s is no longer %s: %w", id.Hex(), from, ErrConflict)
	}
	return nil
}

func (s *MongoOrderStore) SetPaymentStatus(ctx context.Context, id primitive.ObjectID, status bnpl.PaymentStatus, at time.Time) error {
	res, err := s.Collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"payment_status": status, "updated_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("order %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

func (s *MongoOrderStore) MarkCODCollected(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := s.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "cod.collected": false},
		bson.M{"$set": bson.M{"cod.collected": true, "cod.collected_at": at, "updated_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.COD == nil {
		return fmt.Errorf("%w: cod", models.ErrNoSuchPortion)
	}
	return bnpl.ErrAlreadyPaid
}

// portionFilter matches the order only while the portion is still Pending and
// returns the field prefix to update through the positional operator.
func portionFilter(id primitive.ObjectID, p bnpl.Portion) (bson.M, string, error) {
	switch p.Kind {
	case bnpl.PortionInstallment:
		return bson.M{
			"_id": id,
			"installments": bson.M{"$elemMatch": bson.M{
				"installment_number": p.Number,
				"status":             bnpl.StatusPending,
			}},
		}, "installments.$.", nil
	case bnpl.PortionFixedDuration:
		return bson.M{"_id": id, "fixed_duration.status": bnpl.StatusPending}, "fixed_duration.", nil
	}
	return nil, "", fmt.Errorf("%w: %s", models.ErrNoSuchPortion, p)
}

// explainMiss turns an unmatched conditional portion update into the reason.
func (s *MongoOrderStore) explainMiss(ctx context.Context, id primitive.ObjectID, p bnpl.Portion) error {
	order, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = order.PortionAmountDue(p)
	if err == nil {
		return fmt.Errorf("order %s %s: %w", id.Hex(), p, ErrConflict)
	}
	return err
}

func (s *MongoOrderStore) updatePendingPortion(ctx context.Context, id primitive.ObjectID, p bnpl.Portion, set func(prefix string) bson.M) error {
	filter, prefix, err := portionFilter(id, p)
	if err != nil {
		return err
	}
	res, err := s.Collection.UpdateOne(ctx, filter, bson.M{"$set": set(prefix)})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.explainMiss(ctx, id, p)
	}
	return nil
}

func (s *MongoOrderStore) MarkPortionPaid(ctx context.Context, id primitive.ObjectID, portion bnpl.Portion, at time.Time) error {
	return s.updatePendingPortion(ctx, id, portion, func(prefix string) bson.M {
		return bson.M{
			prefix + "status":  bnpl.StatusPaid,
			prefix + "paid_at": at,
			"updated_at":       at,
		}
	})
}

func (s *MongoOrderStore) SetPortionPenalty(ctx context.Context, id primitive.ObjectID, portion bnpl.Portion, penalty decimal.Decimal) error {
	return s.updatePendingPortion(ctx, id, portion, func(prefix string) bson.M {
		return bson.M{prefix + "penalty": penalty}
	})
}

func (s *MongoOrderStore) SetPortionIntent(ctx context.Context, id primitive.ObjectID, portion bnpl.Portion, intentID string) error {
	return s.updatePendingPortion(ctx, id, portion, func(prefix string) bson.M {
		return bson.M{prefix + "payment_intent_id": intentID}
	})
}
