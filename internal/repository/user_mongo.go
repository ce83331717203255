package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/flicky/ezpc-api/internal/model"
)

// userDoc is the users document. Cart and wishlist live on it, so the cart and
// wishlist repositories share the collection.
type userDoc struct {
	ID        string         `bson:"_id"`
	Name      string         `bson:"name"`
	Email     string         `bson:"email"`
	Password  string         `bson:"password"`
	Role      string         `bson:"role"`
	Addresses []addressDoc   `bson:"addresses"`
	Cart      []cartEntryDoc `bson:"cart"`
	Wishlist  []string       `bson:"wishlist"`
	CreatedAt time.Time      `bson:"createdAt"`
	UpdatedAt time.Time      `bson:"updatedAt"`
}

type addressDoc struct {
	ID         string `bson:"id"`
	Label      string `bson:"label,omitempty"`
	Recipient  string `bson:"recipient"`
	Phone      string `bson:"phone"`
	Line1      string `bson:"line1"`
	Line2      string `bson:"line2,omitempty"`
	City       string `bson:"city"`
	Province   string `bson:"province"`
	PostalCode string `bson:"postalCode"`
	IsDefault  bool   `bson:"isDefault"`
}

type cartEntryDoc struct {
	Product  string `bson:"product"`
	Quantity int    `bson:"quantity"`
}

type mongoUserRepo struct{ coll *mongo.Collection }

func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepo{coll: db.Collection(usersCollection)}
}

func (r *mongoUserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.New()
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	doc := userDoc{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Password:  user.Password,
		Role:      string(user.Role),
		Addresses: toAddressDocs(user.Addresses),
		Cart:      []cartEntryDoc{},
		Wishlist:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *mongoUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepo) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &model.User{
		ID:        parseID(doc.ID),
		Name:      doc.Name,
		Email:     doc.Email,
		Password:  doc.Password,
		Role:      model.Role(doc.Role),
		Addresses: fromAddressDocs(doc.Addresses),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (r *mongoUserRepo) SaveAddresses(ctx context.Context, userID uuid.UUID, prev, addresses []model.Address) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID.String(), "addresses": toAddressDocs(prev)},
		bson.M{"$set": bson.M{"addresses": toAddressDocs(addresses), "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("save addresses: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": userID.String()})
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	if n == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func toAddressDocs(addresses []model.Address) []addressDoc {
	docs := make([]addressDoc, 0, len(addresses))
	for _, a := range addresses {
		docs = append(docs, addressDoc{
			ID: a.ID.String(), Label: a.Label, Recipient: a.Recipient, Phone: a.Phone,
			Line1: a.Line1, Line2: a.Line2, City: a.City, Province: a.Province,
			PostalCode: a.PostalCode, IsDefault: a.IsDefault,
		})
	}
	return docs
}

func fromAddressDocs(docs []addressDoc) []model.Address {
	addresses := make([]model.Address, 0, len(docs))
	for _, d := range docs {
		addresses = append(addresses, model.Address{
			ID: parseID(d.ID), Label: d.Label, Recipient: d.Recipient, Phone: d.Phone,
			Line1: d.Line1, Line2: d.Line2, City: d.City, Province: d.Province,
			PostalCode: d.PostalCode, IsDefault: d.IsDefault,
		})
	}
	return addresses
}
