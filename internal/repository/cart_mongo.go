package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flicky/ezpc-api/internal/model"
)

const cartPushAttempts = 3

type mongoCartRepo struct{ users *mongo.Collection }

func NewMongoCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepo{users: db.Collection(usersCollection)}
}

func (r *mongoCartRepo) Items(ctx context.Context, userID uuid.UUID) ([]model.CartEntry, error) {
	var doc struct {
		Cart []cartEntryDoc `bson:"cart"`
	}
	opts := options.FindOne().SetProjection(bson.M{"cart": 1})
	if err := r.users.FindOne(ctx, bson.M{"_id": userID.String()}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	items := make([]model.CartEntry, 0, len(doc.Cart))
	for _, e := range doc.Cart {
		items = append(items, model.CartEntry{ProductID: parseID(e.Product), Quantity: e.Quantity})
	}
	return items, nil
}

// Increment rewrites the matching entry server-side so concurrent increments
// never lose an update. A missing entry is pushed only while it is still
// absent; losing that race falls back to the increment path.
func (r *mongoCartRepo) Increment(ctx context.Context, userID, productID uuid.UUID, delta int) (int, error) {
	pid := productID.String()
	for attempt := 0; attempt < cartPushAttempts; attempt++ {
		qty, err := r.bump(ctx, userID, pid, delta)
		if err != nil || qty > 0 || delta <= 0 {
			return qty, err
		}

		res, err := r.users.UpdateOne(ctx,
			bson.M{"_id": userID.String(), "cart.product": bson.M{"$ne": pid}},
			bson.M{
				"$push": bson.M{"cart": cartEntryDoc{Product: pid, Quantity: delta}},
				"$set":  bson.M{"updatedAt": time.Now().UTC()},
			},
		)
		if err != nil {
			return 0, fmt.Errorf("add cart item: %w", err)
		}
		if res.ModifiedCount == 1 {
			return delta, nil
		}
	}
	return 0, fmt.Errorf("add cart item: %w", ErrNotFound)
}

// bump applies delta to an existing entry with a floor of 1 and returns the
// new quantity, or 0 when the entry does not exist.
func (r *mongoCartRepo) bump(ctx context.Context, userID uuid.UUID, pid string, delta int) (int, error) {
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"cart": bson.M{"$map": bson.M{
			"input": "$cart",
			"as":    "e",
			"in": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$$e.product", pid}},
				bson.M{"product": "$$e.product", "quantity": bson.M{"$max": bson.A{1, bson.M{"$add": bson.A{"$$e.quantity", delta}}}}},
				"$$e",
			}},
		}},
		"updatedAt": time.Now().UTC(),
	}}}}

	var doc struct {
		Cart []cartEntryDoc `bson:"cart"`
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"cart": 1})
	err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": userID.String(), "cart.product": pid}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("increment cart item: %w", err)
	}
	for _, e := range doc.Cart {
		if e.Product == pid {
			return e.Quantity, nil
		}
	}
	return 0, nil
}

func (r *mongoCartRepo) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (bool, error) {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID.String(), "cart.product": productID.String()},
		bson.M{"$set": bson.M{"cart.$.quantity": quantity, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("set cart quantity: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (r *mongoCartRepo) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	_, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID.String()},
		bson.M{"$pull": bson.M{"cart": bson.M{"product": productID.String()}}},
	)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (r *mongoCartRepo) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := clearCartDoc(ctx, r.users, userID, model.CartClearScope{All: true}); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func clearCartDoc(ctx context.Context, users *mongo.Collection, userID uuid.UUID, scope model.CartClearScope) error {
	var update bson.M
	switch {
	case scope.All:
		update = bson.M{"$set": bson.M{"cart": bson.A{}, "updatedAt": time.Now().UTC()}}
	case len(scope.ProductIDs) > 0:
		update = bson.M{"$pull": bson.M{"cart": bson.M{"product": bson.M{"$in": idStrings(scope.ProductIDs)}}}}
	default:
		return nil
	}
	_, err := users.UpdateOne(ctx, bson.M{"_id": userID.String()}, update)
	return err
}
