package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reuf/lending-system/internal/core/domain"
)

const (
	defaultTimeout = 10 * time.Second

	collectionUsers      = "users"
	collectionItems      = "items"
	collectionBorrowings = "borrowings"
	collectionCounters   = "counters"
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// EnsureIndexes creates the unique and listing indexes of every collection.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	unique := options.Index().SetUnique(true)
	sets := map[string][]mongo.IndexModel{
		collectionUsers: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "sciper", Value: 1}}, Options: unique},
			{
				Keys: bson.D{{Key: "token", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"token": bson.M{"$type": "string"}}),
			},
		},
		collectionItems: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "access_control_list", Value: 1}}},
		},
		collectionBorrowings: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "item_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
	}

	for name, models := range sets {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	return nil
}

// nextID allocates the next numeric id of a collection from the counters
// collection.
func nextID(ctx context.Context, db *mongo.Database, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := db.Collection(collectionCounters).FindOneAndUpdate(
		ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return doc.Seq, nil
}

// writeError turns duplicate key violations into domain.ErrConflict naming
// the offending field.
func writeError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		field := duplicateField(err)
		if field == "" {
			return domain.Errorf(domain.ErrConflict, "%s: duplicate value", op)
		}
		return domain.Errorf(domain.ErrConflict, "%s already in use", field)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// duplicateField extracts the field from a server message such as
// "E11000 duplicate key error collection: db.users index: email_1 dup key: ...".
func duplicateField(err error) string {
	var we mongo.WriteException
	msg := err.Error()
	if errors.As(err, &we) && len(we.WriteErrors) > 0 {
		msg = we.WriteErrors[0].Message
	}
	_, rest, ok := strings.Cut(msg, "index: ")
	if !ok {
		return ""
	}
	index, _, _ := strings.Cut(rest, " ")
	return strings.TrimSuffix(index, "_1")
}

func paging(page, limit int) *options.FindOptions {
	opts := options.Find()
	if page < 1 {
		page = 1
	}
	if limit > 0 {
		skip := int64(math.MaxInt64)
		if int64(page-1) <= math.MaxInt64/int64(limit) {
			skip = int64(page-1) * int64(limit)
		}
		opts.SetLimit(int64(limit)).SetSkip(skip)
	}
	return opts
}
