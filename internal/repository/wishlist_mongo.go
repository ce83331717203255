package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoWishlistRepo struct{ users *mongo.Collection }

func NewMongoWishlistRepository(db *mongo.Database) WishlistRepository {
	return &mongoWishlistRepo{users: db.Collection(usersCollection)}
}

func (r *mongoWishlistRepo) Toggle(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	pid := productID.String()
	list := bson.M{"$ifNull": bson.A{"$wishlist", bson.A{}}}
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"wishlist": bson.M{"$cond": bson.A{
			bson.M{"$in": bson.A{pid, list}},
			bson.M{"$filter": bson.M{"input": list, "cond": bson.M{"$ne": bson.A{"$$this", pid}}}},
			bson.M{"$concatArrays": bson.A{list, bson.A{pid}}},
		}},
	}}}}

	var doc struct {
		Wishlist []string `bson:"wishlist"`
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"wishlist": 1})
	if err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": userID.String()}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("toggle wishlist: %w", err)
	}
	return slices.Contains(doc.Wishlist, pid), nil
}

// List returns the most recently added products first.
func (r *mongoWishlistRepo) List(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var doc struct {
		Wishlist []string `bson:"wishlist"`
	}
	opts := options.FindOne().SetProjection(bson.M{"wishlist": 1})
	if err := r.users.FindOne(ctx, bson.M{"_id": userID.String()}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(doc.Wishlist))
	for i := len(doc.Wishlist) - 1; i >= 0; i-- {
		ids = append(ids, parseID(doc.Wishlist[i]))
	}
	return ids, nil
}
