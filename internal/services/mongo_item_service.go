package services

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/billslocker/backend/internal/models"
)

const (
	itemsCollection = "items"
	mongoOpTimeout  = 10 * time.Second
)

type MongoItemService struct {
	client    *mongo.Client
	db        *mongo.Database
	itemsColl *mongo.Collection
	logger    *zap.Logger
}

// mongoItemDoc is the decoded shape of an items document. Price is kept raw
// because older documents stored it as a double.
type mongoItemDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Title        string             `bson:"title"`
	Description  string             `bson:"description"`
	PurchaseDate time.Time          `bson:"purchaseDate"`
	ExpiryDate   *time.Time         `bson:"expiryDate"`
	Category     string             `bson:"category"`
	Price        bson.RawValue      `bson:"price"`
	ReceiptPath  string             `bson:"receiptPath"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func NewMongoItemService(ctx context.Context, mongoURI, dbName string, logger *zap.Logger) (*MongoItemService, error) {
	opts := options.Client().ApplyURI(mongoURI)
	// Atlas clusters negotiate more reliably when pinned to TLS 1.2.
	if strings.HasPrefix(mongoURI, "mongodb+srv://") {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS12,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, storageErr("connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, storageErr("ping", err)
	}

	db := client.Database(dbName)
	items := db.Collection(itemsCollection)

	svc := &MongoItemService{
		client:    client,
		db:        db,
		itemsColl: items,
		logger:    logger,
	}

	// Best-effort indexes.
	if _, err := items.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
	}); err != nil {
		logger.Warn("mongo index creation failed", zap.Error(err))
	}

	logger.Info("MongoDB connected", zap.String("db", dbName))
	return svc, nil
}

func (s *MongoItemService) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoItemService) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	doc, err := prepareNew(item)
	if err != nil {
		return nil, err
	}
	oid, _ := primitive.ObjectIDFromHex(doc.ID)

	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	fields, _ := itemToBSON(&doc)
	insert := append(bson.D{{Key: "_id", Value: oid}}, fields...)
	if _, err := s.itemsColl.InsertOne(ctx, insert); err != nil {
		return nil, storageErr("insert item", err)
	}
	return &doc, nil
}

func (s *MongoItemService) GetByID(ctx context.Context, id string) (*models.Item, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	return s.findOne(ctx, oid)
}

func (s *MongoItemService) ListAll(ctx context.Context) ([]models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	cur, err := s.itemsColl.Find(
		ctx,
		bson.D{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, storageErr("find items", err)
	}
	defer cur.Close(ctx)

	results := make([]models.Item, 0)
	for cur.Next(ctx) {
		var d mongoItemDoc
		if err := cur.Decode(&d); err != nil {
			return nil, storageErr("decode item", err)
		}
		m, err := itemDocToModel(d)
		if err != nil {
			return nil, storageErr("convert item", err)
		}
		results = append(results, *m)
	}
	if err := cur.Err(); err != nil {
		return nil, storageErr("iterate items", err)
	}
	return results, nil
}

func (s *MongoItemService) UpdateByID(ctx context.Context, id string, patch *models.ItemPatch) (*models.Item, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	current, err := s.findOne(ctx, oid)
	if err != nil {
		return nil, err
	}
	merged := patch.Apply(*current)
	if verr := merged.Validate(); verr != nil {
		return nil, verr
	}
	if patch.IsEmpty() {
		return &merged, nil
	}

	set, unset := patchToBSON(patch, &merged)
	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	res := s.itemsColl.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated mongoItemDoc
	if err := res.Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Deleted between the read and the write.
			return nil, ErrItemNotFound
		}
		return nil, storageErr("update item", err)
	}
	m, err := itemDocToModel(updated)
	if err != nil {
		return nil, storageErr("convert item", err)
	}
	return m, nil
}

func (s *MongoItemService) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	res, err := s.itemsColl.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storageErr("delete item", err)
	}
	if res.DeletedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *MongoItemService) findOne(ctx context.Context, oid primitive.ObjectID) (*models.Item, error) {
	var doc mongoItemDoc
	if err := s.itemsColl.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrItemNotFound
		}
		return nil, storageErr("find item", err)
	}
	m, err := itemDocToModel(doc)
	if err != nil {
		return nil, storageErr("convert item", err)
	}
	return m, nil
}

// itemToBSON renders every stored field of item except _id. Optional fields
// that are unset are listed in the second return value.
func itemToBSON(item *models.Item) (bson.D, bson.D) {
	set := bson.D{
		{Key: "title", Value: item.Title},
		{Key: "description", Value: item.Description},
		{Key: "purchaseDate", Value: item.PurchaseDate},
		{Key: "category", Value: string(item.Category)},
		{Key: "createdAt", Value: item.CreatedAt},
	}
	unset := bson.D{}

	if item.ExpiryDate != nil {
		set = append(set, bson.E{Key: "expiryDate", Value: *item.ExpiryDate})
	} else {
		unset = append(unset, bson.E{Key: "expiryDate", Value: ""})
	}
	if item.Price != nil {
		set = append(set, bson.E{Key: "price", Value: toDecimal128(*item.Price)})
	} else {
		unset = append(unset, bson.E{Key: "price", Value: ""})
	}
	if item.ReceiptPath != "" {
		set = append(set, bson.E{Key: "receiptPath", Value: item.ReceiptPath})
	}
	return set, unset
}

// patchToBSON touches only the fields the patch names, taking values from the
// already merged document.
func patchToBSON(patch *models.ItemPatch, merged *models.Item) (bson.D, bson.D) {
	set := bson.D{}
	unset := bson.D{}

	if patch.Title != nil {
		set = append(set, bson.E{Key: "title", Value: merged.Title})
	}
	if patch.Description != nil {
		set = append(set, bson.E{Key: "description", Value: merged.Description})
	}
	if patch.PurchaseDate != nil {
		set = append(set, bson.E{Key: "purchaseDate", Value: merged.PurchaseDate})
	}
	if patch.ClearExpiryDate {
		unset = append(unset, bson.E{Key: "expiryDate", Value: ""})
	} else if patch.ExpiryDate != nil {
		set = append(set, bson.E{Key: "expiryDate", Value: *merged.ExpiryDate})
	}
	if patch.Category != nil {
		set = append(set, bson.E{Key: "category", Value: string(merged.Category)})
	}
	if patch.ClearPrice {
		unset = append(unset, bson.E{Key: "price", Value: ""})
	} else if patch.Price != nil {
		set = append(set, bson.E{Key: "price", Value: toDecimal128(*merged.Price)})
	}
	if patch.ReceiptPath != nil {
		set = append(set, bson.E{Key: "receiptPath", Value: merged.ReceiptPath})
	}
	return set, unset
}

func itemDocToModel(d mongoItemDoc) (*models.Item, error) {
	price, err := priceFromRaw(d.Price)
	if err != nil {
		return nil, err
	}
	m := &models.Item{
		ID:           d.ID.Hex(),
		Title:        d.Title,
		Description:  d.Description,
		PurchaseDate: d.PurchaseDate.UTC(),
		Category:     models.Category(d.Category),
		Price:        price,
		ReceiptPath:  d.ReceiptPath,
		CreatedAt:    d.CreatedAt.UTC(),
	}
	if d.ExpiryDate != nil {
		exp := d.ExpiryDate.UTC()
		m.ExpiryDate = &exp
	}
	return m, nil
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	d128, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		// More than 34 significant digits; keep cents.
		d128, _ = primitive.ParseDecimal128(d.StringFixed(2))
	}
	return d128
}

func priceFromRaw(raw bson.RawValue) (*decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch raw.Type {
	case 0, bsontype.Null, bsontype.Undefined:
		return nil, nil
	case bsontype.Decimal128:
		d, err = decimal.NewFromString(raw.Decimal128().String())
	case bsontype.Double:
		d = decimal.NewFromFloat(raw.Double())
	case bsontype.Int32:
		d = decimal.NewFromInt32(raw.Int32())
	case bsontype.Int64:
		d = decimal.NewFromInt(raw.Int64())
	case bsontype.String:
		d, err = decimal.NewFromString(raw.StringValue())
	default:
		return nil, errors.New("unsupported price type " + raw.Type.String())
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
