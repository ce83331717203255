package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flicky/ezpc-api/internal/model"
)

type productDoc struct {
	ID          string                `bson:"_id"`
	Name        string                `bson:"name"`
	Category    string                `bson:"category"`
	Brand       string                `bson:"brand"`
	Price       primitive.Decimal128  `bson:"price"`
	SalePrice   *primitive.Decimal128 `bson:"salePrice"`
	Stock       int                   `bson:"stock"`
	Badge       string                `bson:"badge"`
	Rating      float64               `bson:"rating"`
	ReviewCount int                   `bson:"reviewCount"`
	Images      []string              `bson:"images"`
	Specs       string                `bson:"specs"`
	FullSpecs   []specEntryDoc        `bson:"fullSpecs"`
	DeletedAt   *time.Time            `bson:"deletedAt"`
	CreatedAt   time.Time             `bson:"createdAt"`
	UpdatedAt   time.Time             `bson:"updatedAt"`
}

type specEntryDoc struct {
	Label string `bson:"label"`
	Value string `bson:"value"`
}

var productDocSorts = map[string]string{
	"name":       "name",
	"price":      "price",
	"rating":     "rating",
	"created_at": "createdAt",
}

type mongoProductRepo struct{ coll *mongo.Collection }

func NewMongoProductRepository(db *mongo.Database) ProductRepository {
	return &mongoProductRepo{coll: db.Collection(productsCollection)}
}

func (r *mongoProductRepo) Create(ctx context.Context, p *model.Product) error {
	p.ID = uuid.New()
	normalizeProduct(p)
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Rating, p.ReviewCount = decimal.Zero, 0

	if _, err := r.coll.InsertOne(ctx, toProductDoc(p)); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *mongoProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var doc productDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return fromProductDoc(&doc), nil
}

func (r *mongoProductRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}})
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return decodeProducts(ctx, cur)
}

func (r *mongoProductRepo) List(ctx context.Context, f model.ProductFilter) ([]model.Product, int, error) {
	filter := bson.M{}
	if !f.IncludeDeleted {
		filter["deletedAt"] = nil
	}
	if f.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": rx}, bson.M{"brand": rx}, bson.M{"category": rx},
		}
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Brand != "" {
		filter["brand"] = f.Brand
	}
	if f.Badge != "" {
		filter["badge"] = string(f.Badge)
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = toDecimal128(*f.MinPrice)
	}
	if f.MaxPrice != nil {
		price["$lte"] = toDecimal128(*f.MaxPrice)
	}
	if len(price) > 0 {
		filter["price"] = price
	}
	if f.InStockOnly {
		filter["stock"] = bson.M{"$gt": 0}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	sortField, ok := productDocSorts[f.Sort]
	if !ok {
		sortField = "createdAt"
	}
	dir := -1
	if f.Order == "asc" {
		dir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: dir}, {Key: "_id", Value: 1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(f.Limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	products, err := decodeProducts(ctx, cur)
	if err != nil {
		return nil, 0, err
	}
	return products, int(total), nil
}

func (r *mongoProductRepo) Update(ctx context.Context, p *model.Product) error {
	normalizeProduct(p)
	p.UpdatedAt = time.Now().UTC()
	doc := toProductDoc(p)
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": bson.M{
		"name":      doc.Name,
		"category":  doc.Category,
		"brand":     doc.Brand,
		"price":     doc.Price,
		"salePrice": doc.SalePrice,
		"stock":     doc.Stock,
		"badge":     doc.Badge,
		"images":    doc.Images,
		"specs":     doc.Specs,
		"fullSpecs": doc.FullSpecs,
		"updatedAt": doc.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoProductRepo) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "deletedAt": nil},
		bson.M{"$set": bson.M{"deletedAt": at, "updatedAt": at}},
	)
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoProductRepo) Restore(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "deletedAt": bson.M{"$ne": nil}},
		bson.M{"$set": bson.M{"deletedAt": nil, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("restore product: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeProducts(ctx context.Context, cur *mongo.Cursor) ([]model.Product, error) {
	defer cur.Close(ctx)
	var products []model.Product
	for cur.Next(ctx) {
		var doc productDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		products = append(products, *fromProductDoc(&doc))
	}
	return products, cur.Err()
}

func toProductDoc(p *model.Product) productDoc {
	doc := productDoc{
		ID:          p.ID.String(),
		Name:        p.Name,
		Category:    p.Category,
		Brand:       p.Brand,
		Price:       toDecimal128(p.Price),
		Stock:       p.Stock,
		Badge:       string(p.Badge),
		Rating:      p.Rating.InexactFloat64(),
		ReviewCount: p.ReviewCount,
		Images:      p.Images,
		Specs:       p.Specs,
		FullSpecs:   make([]specEntryDoc, 0, len(p.FullSpecs)),
		DeletedAt:   p.DeletedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.SalePrice != nil {
		sp := toDecimal128(*p.SalePrice)
		doc.SalePrice = &sp
	}
	for _, s := range p.FullSpecs {
		doc.FullSpecs = append(doc.FullSpecs, specEntryDoc{Label: s.Label, Value: s.Value})
	}
	return doc
}

func fromProductDoc(doc *productDoc) *model.Product {
	p := &model.Product{
		ID:          parseID(doc.ID),
		Name:        doc.Name,
		Category:    doc.Category,
		Brand:       doc.Brand,
		Price:       fromDecimal128(doc.Price),
		Stock:       doc.Stock,
		Badge:       model.Badge(doc.Badge),
		Rating:      decimal.NewFromFloat(doc.Rating).Round(1),
		ReviewCount: doc.ReviewCount,
		Images:      doc.Images,
		Specs:       doc.Specs,
		FullSpecs:   make([]model.SpecEntry, 0, len(doc.FullSpecs)),
		DeletedAt:   doc.DeletedAt,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	if doc.SalePrice != nil {
		sp := fromDecimal128(*doc.SalePrice)
		p.SalePrice = &sp
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	for _, s := range doc.FullSpecs {
		p.FullSpecs = append(p.FullSpecs, model.SpecEntry{Label: s.Label, Value: s.Value})
	}
	return p
}
