package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flicky/ezpc-api/internal/model"
)

type reviewDoc struct {
	ID        string    `bson:"_id"`
	ProductID string    `bson:"productId"`
	UserID    string    `bson:"userId"`
	UserName  string    `bson:"userName"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type mongoReviewRepo struct {
	reviews  *mongo.Collection
	products *mongo.Collection
}

func NewMongoReviewRepository(db *mongo.Database) ReviewRepository {
	return &mongoReviewRepo{
		reviews:  db.Collection(reviewsCollection),
		products: db.Collection(productsCollection),
	}
}

// Create relies on the unique (productId, userId) index for one review per
// user. The rating is recomputed from all reviews after the insert, and the
// product write only lands when no later recomputation has already stored a
// higher count.
func (r *mongoReviewRepo) Create(ctx context.Context, review *model.Review) (model.RatingSummary, error) {
	var summary model.RatingSummary

	n, err := r.products.CountDocuments(ctx, bson.M{"_id": review.ProductID.String()}, options.Count().SetLimit(1))
	if err != nil {
		return summary, fmt.Errorf("check product: %w", err)
	}
	if n == 0 {
		return summary, ErrNotFound
	}

	review.ID = uuid.New()
	now := time.Now().UTC()
	review.CreatedAt, review.UpdatedAt = now, now
	_, err = r.reviews.InsertOne(ctx, reviewDoc{
		ID:        review.ID.String(),
		ProductID: review.ProductID.String(),
		UserID:    review.UserID.String(),
		UserName:  review.UserName,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return summary, ErrDuplicate
		}
		return summary, fmt.Errorf("insert review: %w", err)
	}

	cur, err := r.reviews.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"productId": review.ProductID.String()}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"sum":   bson.M{"$sum": "$rating"},
			"count": bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return summary, fmt.Errorf("aggregate reviews: %w", err)
	}
	var agg []struct {
		Sum   int64 `bson:"sum"`
		Count int   `bson:"count"`
	}
	if err := cur.All(ctx, &agg); err != nil {
		return summary, fmt.Errorf("aggregate reviews: %w", err)
	}
	if len(agg) > 0 {
		summary.Count = agg[0].Count
		summary.Rating = model.AverageRating(agg[0].Sum, agg[0].Count)
	}

	_, err = r.products.UpdateOne(ctx,
		bson.M{"_id": review.ProductID.String(), "reviewCount": bson.M{"$lte": summary.Count}},
		bson.M{"$set": bson.M{
			"rating":      summary.Rating.InexactFloat64(),
			"reviewCount": summary.Count,
			"updatedAt":   now,
		}},
	)
	if err != nil {
		return summary, fmt.Errorf("update product rating: %w", err)
	}
	return summary, nil
}

func (r *mongoReviewRepo) Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	n, err := r.reviews.CountDocuments(ctx,
		bson.M{"userId": userID.String(), "productId": productID.String()},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("check review: %w", err)
	}
	return n > 0, nil
}

func (r *mongoReviewRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.reviews.Find(ctx, bson.M{"productId": productID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	var docs []reviewDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	reviews := make([]model.Review, 0, len(docs))
	for _, d := range docs {
		reviews = append(reviews, model.Review{
			ID:        parseID(d.ID),
			ProductID: parseID(d.ProductID),
			UserID:    parseID(d.UserID),
			UserName:  d.UserName,
			Rating:    d.Rating,
			Comment:   d.Comment,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	return reviews, nil
}
