package storage

import (
	"context"

	"github.com/Laisky/errors/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mdb "github.com/Laisky/sparkboard/library/db/mongo"
)

var _ Backend = (*Mongo)(nil)

// DefaultMongoCollection is used when no collection is configured
const DefaultMongoCollection = "kv"

type mongoItem struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// Mongo stores each key as one document keyed by _id.
//
// It does not implement AtomicUpdater, appends from different processes
// may race.
type Mongo struct {
	col *mongo.Collection
}

// NewMongo wraps a mongo database
func NewMongo(db mdb.DB, collection string) *Mongo {
	if collection == "" {
		collection = DefaultMongoCollection
	}

	return &Mongo{col: db.GetCol(collection)}
}

// Name implements Backend
func (m *Mongo) Name() string { return "mongo" }

// Get implements Backend
func (m *Mongo) Get(ctx context.Context, key string) (string, error) {
	item := new(mongoItem)
	err := m.col.FindOne(ctx, bson.M{"_id": key}).Decode(item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", errors.Wrapf(ErrNotFound, "key %s", key)
		}
		return "", errors.Wrapf(err, "find %s", key)
	}

	return item.Value, nil
}

// Set implements Backend
func (m *Mongo) Set(ctx context.Context, key, value string) error {
	_, err := m.col.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrapf(err, "upsert %s", key)
	}

	return nil
}
