package manifest

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flagstack/flagstack/pkg/errors"
)

// MongoStore keeps one document per entry, upserted by image key.
// Suited to serving manifests from shared infrastructure instead of a
// file next to the layers.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and uses the given database and
// collection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "connect %s", uri)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "ping %s", uri)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}, nil
}

// Load reads every entry in the collection into one manifest.
func (s *MongoStore) Load(ctx context.Context) (*Manifest, error) {
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "find entries")
	}

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "decode entries")
	}

	m := New()
	for _, e := range entries {
		if err := m.Set(e); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Save upserts every entry of m. Entries absent from m are left in
// place: concurrent builds of different images must not erase each
// other.
func (s *MongoStore) Save(ctx context.Context, m *Manifest) error {
	entries := make([]Entry, 0, len(m.Entries))
	for _, k := range m.Keys() {
		entries = append(entries, m.Entries[k])
	}
	return s.Upsert(ctx, entries...)
}

// Upsert validates and writes the given entries, one document per key.
func (s *MongoStore) Upsert(ctx context.Context, entries ...Entry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
		_, err := s.coll.UpdateOne(ctx,
			bson.M{"key": e.Key},
			bson.M{"$set": e},
			options.Update().SetUpsert(true))
		if err != nil {
			return errors.Wrap(errors.ErrCodeStore, err, "upsert %s", e.Key)
		}
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
