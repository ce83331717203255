package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flicky/ezpc-api/internal/model"
)

const settingsDocID = "store"

type settingsDoc struct {
	ID                    string               `bson:"_id"`
	StoreName             string               `bson:"storeName"`
	ContactEmail          string               `bson:"contactEmail"`
	ShippingFee           primitive.Decimal128 `bson:"shippingFee"`
	FreeShippingThreshold primitive.Decimal128 `bson:"freeShippingThreshold"`
	MaintenanceMode       bool                 `bson:"maintenanceMode"`
	Announcement          string               `bson:"announcement"`
	UpdatedAt             time.Time            `bson:"updatedAt"`
}

type mongoSettingsRepo struct{ coll *mongo.Collection }

func NewMongoSettingsRepository(db *mongo.Database) SettingsRepository {
	return &mongoSettingsRepo{coll: db.Collection(settingsCollection)}
}

func (r *mongoSettingsRepo) Get(ctx context.Context) (*model.Settings, error) {
	var doc settingsDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &model.Settings{
		StoreName:             doc.StoreName,
		ContactEmail:          doc.ContactEmail,
		ShippingFee:           fromDecimal128(doc.ShippingFee),
		FreeShippingThreshold: fromDecimal128(doc.FreeShippingThreshold),
		MaintenanceMode:       doc.MaintenanceMode,
		Announcement:          doc.Announcement,
		UpdatedAt:             doc.UpdatedAt,
	}, nil
}

func (r *mongoSettingsRepo) Save(ctx context.Context, s *model.Settings) error {
	s.UpdatedAt = time.Now().UTC()
	doc := settingsDoc{
		ID:                    settingsDocID,
		StoreName:             s.StoreName,
		ContactEmail:          s.ContactEmail,
		ShippingFee:           toDecimal128(s.ShippingFee),
		FreeShippingThreshold: toDecimal128(s.FreeShippingThreshold),
		MaintenanceMode:       s.MaintenanceMode,
		Announcement:          s.Announcement,
		UpdatedAt:             s.UpdatedAt,
	}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": settingsDocID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
