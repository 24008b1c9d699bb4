package repository

import (
	"context"
	"fmt"
	"time"

	"go-bnpl/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func replaceByID(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, doc interface{}, what string) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", what, id.Hex(), ErrNotFound)
	}
	return nil
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, what string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s: %w", what, id.Hex(), ErrNotFound)
	}
	return nil
}

type MongoPlanStore struct {
	Collection *mongo.Collection
}

func (s *MongoPlanStore) Create(ctx context.Context, plan *models.BNPLPlan) error {
	if plan.ID.IsZero() {
		plan.ID = primitive.NewObjectID()
	}
	_, err := s.Collection.InsertOne(ctx, plan)
	return err
}

func (s *MongoPlanStore) Get(ctx context.Context, id primitive.ObjectID) (*models.BNPLPlan, error) {
	var plan models.BNPLPlan
	if err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan); err != nil {
		return nil, notFound(err, "plan "+id.Hex())
	}
	return &plan, nil
}

func (s *MongoPlanStore) List(ctx context.Context, publishedOnly bool) ([]models.BNPLPlan, error) {
	filter := bson.M{}
	if publishedOnly {
		filter["status"] = models.PlanPublished
	}
	return findAll[models.BNPLPlan](ctx, s.Collection, filter, options.Find().SetSort(bson.D{{Key: "duration", Value: 1}}))
}

func (s *MongoPlanStore) Update(ctx context.Context, plan *models.BNPLPlan) error {
	return replaceByID(ctx, s.Collection, plan.ID, plan, "plan")
}

func (s *MongoPlanStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, s.Collection, id, "plan")
}

type MongoReviewStore struct {
	Collection *mongo.Collection
}

func (s *MongoReviewStore) Create(ctx context.Context, review *models.Review) error {
	if review.ID.IsZero() {
		review.ID = primitive.NewObjectID()
	}
	_, err := s.Collection.InsertOne(ctx, review)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("review: %w", ErrDuplicate)
	}
	return err
}

func (s *MongoReviewStore) ListByProduct(ctx context.Context, productID primitive.ObjectID) ([]models.Review, error) {
	return findAll[models.Review](ctx, s.Collection, bson.M{"product_id": productID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
}

type MongoUserStore struct {
	Collection *mongo.Collection
}

func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := s.Collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
	}
	return err
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.Collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (s *MongoUserStore) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoUserStore) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	return s.findOne(ctx, bson.M{"verification_token": token})
}

func (s *MongoUserStore) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	res, err := s.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

func (s *MongoUserStore) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	return s.set(ctx, id, bson.M{"is_verified": true, "verification_token": ""})
}

func (s *MongoUserStore) SetPushToken(ctx context.Context, id primitive.ObjectID, token string) error {
	return s.set(ctx, id, bson.M{"expo_push_token": token})
}

func (s *MongoUserStore) SetStripeCustomer(ctx context.Context, id primitive.ObjectID, customerID string) error {
	return s.set(ctx, id, bson.M{"stripe_customer_id": customerID})
}

type MongoProductStore struct {
	Collection *mongo.Collection
}

func (s *MongoProductStore) Create(ctx context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	_, err := s.Collection.InsertOne(ctx, product)
	return err
}

func (s *MongoProductStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	if err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, notFound(err, "product "+id.Hex())
	}
	return &product, nil
}

func (s *MongoProductStore) List(ctx context.Context) ([]models.Product, error) {
	return findAll[models.Product](ctx, s.Collection, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (s *MongoProductStore) Update(ctx context.Context, product *models.Product) error {
	return replaceByID(ctx, s.Collection, product.ID, product, "product")
}

func (s *MongoProductStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, s.Collection, id, "product")
}

func (s *MongoProductStore) AdjustStock(ctx context.Context, id primitive.ObjectID, delta int) error {
	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["stock"] = bson.M{"$gte": -delta}
	}
	res, err := s.Collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"stock": delta}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		product, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%s: %w", product.Name, ErrInsufficientStock)
	}
	return nil
}

type MongoCartStore struct {
	Collection *mongo.Collection
}

func (s *MongoCartStore) Get(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	if err := s.Collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart); err != nil {
		return nil, notFound(err, "cart")
	}
	return &cart, nil
}

func (s *MongoCartStore) Save(ctx context.Context, cart *models.Cart) error {
	if cart.ID.IsZero() {
		cart.ID = primitive.NewObjectID()
	}
	cart.UpdatedAt = time.Now()
	_, err := s.Collection.UpdateOne(ctx,
		bson.M{"user_id": cart.UserID},
		bson.M{
			"$set":         bson.M{"items": cart.Items, "updated_at": cart.UpdatedAt},
			"$setOnInsert": bson.M{"_id": cart.ID},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoCartStore) Clear(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.Collection.DeleteOne(ctx, bson.M{"user_id": userID})
	return err
}

type MongoPaymentStore struct {
	Collection *mongo.Collection
}

func (s *MongoPaymentStore) Record(ctx context.Context, payment *models.Payment) error {
	if payment.ID.IsZero() {
		payment.ID = primitive.NewObjectID()
	}
	_, err := s.Collection.InsertOne(ctx, payment)
	return err
}

func (s *MongoPaymentStore) ListByOrder(ctx context.Context, orderID primitive.ObjectID) ([]models.Payment, error) {
	return findAll[models.Payment](ctx, s.Collection, bson.M{"order_id": orderID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}
