package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flicky/ezpc-api/internal/model"
)

type orderDoc struct {
	ID              string               `bson:"_id"`
	UserID          string               `bson:"userId"`
	Items           []orderItemDoc       `bson:"items"`
	ShippingAddress shippingAddressDoc   `bson:"shippingAddress"`
	PaymentMethod   string               `bson:"paymentMethod"`
	PaymentResult   *paymentResultDoc    `bson:"paymentResult,omitempty"`
	TotalAmount     primitive.Decimal128 `bson:"totalAmount"`
	Status          string               `bson:"status"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

type orderItemDoc struct {
	ProductID string               `bson:"productId"`
	Name      string               `bson:"name"`
	Price     primitive.Decimal128 `bson:"price"`
	Quantity  int                  `bson:"quantity"`
	Image     string               `bson:"image,omitempty"`
}

type shippingAddressDoc struct {
	Recipient  string `bson:"recipient"`
	Phone      string `bson:"phone"`
	Line1      string `bson:"line1"`
	Line2      string `bson:"line2,omitempty"`
	City       string `bson:"city"`
	Province   string `bson:"province"`
	PostalCode string `bson:"postalCode"`
}

type paymentResultDoc struct {
	PayPal   *model.PayPalCapture   `bson:"paypal,omitempty"`
	PayMongo *model.PayMongoPayment `bson:"paymongo,omitempty"`
}

type mongoOrderRepo struct {
	client *mongo.Client
	orders *mongo.Collection
	users  *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) OrderRepository {
	return &mongoOrderRepo{
		client: db.Client(),
		orders: db.Collection(ordersCollection),
		users:  db.Collection(usersCollection),
	}
}

// Create runs the insert and the cart clear in one transaction, which needs
// the server to run as a replica set.
func (r *mongoOrderRepo) Create(ctx context.Context, order *model.Order, clear model.CartClearScope) error {
	order.ID = uuid.New()
	now := time.Now().UTC()
	order.CreatedAt, order.UpdatedAt = now, now

	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := r.orders.InsertOne(sc, toOrderDoc(order)); err != nil {
			return nil, fmt.Errorf("insert order: %w", err)
		}
		if err := clearCartDoc(sc, r.users, order.UserID, clear); err != nil {
			return nil, fmt.Errorf("clear cart: %w", err)
		}
		return nil, nil
	})
	return err
}

func (r *mongoOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var doc orderDoc
	if err := r.orders.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return fromOrderDoc(&doc), nil
}

func (r *mongoOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.orders.Find(ctx, bson.M{"userId": userID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return decodeOrders(ctx, cur)
}

func (r *mongoOrderRepo) List(ctx context.Context, f model.OrderFilter) ([]model.Order, int, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	total, err := r.orders.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(f.Limit))
	cur, err := r.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	orders, err := decodeOrders(ctx, cur)
	if err != nil {
		return nil, 0, err
	}
	return orders, int(total), nil
}

func (r *mongoOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus) (bool, error) {
	res, err := r.orders.UpdateOne(ctx,
		bson.M{"_id": id.String(), "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *mongoOrderRepo) HasDelivered(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	n, err := r.orders.CountDocuments(ctx, bson.M{
		"userId":          userID.String(),
		"status":          string(model.OrderStatusDelivered),
		"items.productId": productID.String(),
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check delivered orders: %w", err)
	}
	return n > 0, nil
}

func decodeOrders(ctx context.Context, cur *mongo.Cursor) ([]model.Order, error) {
	defer cur.Close(ctx)
	var orders []model.Order
	for cur.Next(ctx) {
		var doc orderDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		orders = append(orders, *fromOrderDoc(&doc))
	}
	return orders, cur.Err()
}

func toOrderDoc(o *model.Order) orderDoc {
	a := o.ShippingAddress
	doc := orderDoc{
		ID:     o.ID.String(),
		UserID: o.UserID.String(),
		Items:  make([]orderItemDoc, 0, len(o.Items)),
		ShippingAddress: shippingAddressDoc{
			Recipient: a.Recipient, Phone: a.Phone, Line1: a.Line1, Line2: a.Line2,
			City: a.City, Province: a.Province, PostalCode: a.PostalCode,
		},
		PaymentMethod: string(o.PaymentMethod),
		TotalAmount:   toDecimal128(o.TotalAmount),
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, it := range o.Items {
		doc.Items = append(doc.Items, orderItemDoc{
			ProductID: it.ProductID.String(),
			Name:      it.Name,
			Price:     toDecimal128(it.Price),
			Quantity:  it.Quantity,
			Image:     it.Image,
		})
	}
	if o.PaymentResult != nil {
		doc.PaymentResult = &paymentResultDoc{PayPal: o.PaymentResult.PayPal, PayMongo: o.PaymentResult.PayMongo}
	}
	return doc
}

func fromOrderDoc(doc *orderDoc) *model.Order {
	a := doc.ShippingAddress
	o := &model.Order{
		ID:     parseID(doc.ID),
		UserID: parseID(doc.UserID),
		Items:  make([]model.OrderItem, 0, len(doc.Items)),
		ShippingAddress: model.ShippingAddress{
			Recipient: a.Recipient, Phone: a.Phone, Line1: a.Line1, Line2: a.Line2,
			City: a.City, Province: a.Province, PostalCode: a.PostalCode,
		},
		PaymentMethod: model.PaymentMethod(doc.PaymentMethod),
		TotalAmount:   fromDecimal128(doc.TotalAmount),
		Status:        model.OrderStatus(doc.Status),
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for _, it := range doc.Items {
		o.Items = append(o.Items, model.OrderItem{
			ProductID: parseID(it.ProductID),
			Name:      it.Name,
			Price:     fromDecimal128(it.Price),
			Quantity:  it.Quantity,
			Image:     it.Image,
		})
	}
	if doc.PaymentResult != nil {
		o.PaymentResult = &model.PaymentResult{PayPal: doc.PaymentResult.PayPal, PayMongo: doc.PaymentResult.PayMongo}
	}
	return o
}
