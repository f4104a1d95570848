package mws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/mongodb-labs/mongo-web-shell-sub000/internal"
	"github.com/mongodb-labs/mongo-web-shell-sub000/shared"
)

// codeNamespaceNotFound is returned by collStats for missing collections
// on servers that do not answer with an empty result.
const codeNamespaceNotFound = 26

type mongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	clients *mongo.Collection
}

var _ Store = (*mongoStore)(nil)

// NewMongoStore connects to url and pings it, retrying while the server is
// not reachable yet.
func NewMongoStore(ctx context.Context, url, database string) (Store, error) {
	clientOptions := options.Client().
		ApplyURI(url).
		SetAppName("mongo-web-shell")
	if err := clientOptions.Validate(); err != nil {
		return nil, fmt.Errorf("error validating client options: %w", err)
	}

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, err
	}
	if _, err := internal.ExponentialBackoff(ctx, func() (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return struct{}{}, client.Ping(pingCtx, readpref.Primary())
	},
		internal.WithBackoffMaxAttempts(5),
		internal.WithBackoffRetryable(func(err error) bool { return ctx.Err() == nil }),
		internal.WithBackoffOnRetry(func(attempt int, err error, delay time.Duration) {
			slog.WarnContext(ctx, "MongoDB not reachable, retrying",
				slog.Int("attempt", attempt), slog.Any("error", err), slog.Duration("delay", delay))
		}),
	); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	return &mongoStore{
		client:  client,
		db:      db,
		clients: db.Collection(shared.ClientsCollection),
	}, nil
}

func (s *mongoStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB client: %w", err)
	}
	return nil
}

func (s *mongoStore) FindClient(ctx context.Context, sessionID string) (*Client, error) {
	var c Client
	err := s.clients.FindOne(ctx, bson.D{{Key: "session_id", Value: sessionID}}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *mongoStore) CreateClient(ctx context.Context, c Client) error {
	if c.Collections == nil {
		c.Collections = []string{}
	}
	_, err := s.clients.InsertOne(ctx, c)
	return err
}

func (s *mongoStore) HasAccess(ctx context.Context, resID, sessionID string) (bool, error) {
	n, err := s.clients.CountDocuments(ctx, bson.D{
		{Key: "res_id", Value: resID},
		{Key: "session_id", Value: sessionID},
	}, options.Count().SetLimit(1))
	return n > 0, err
}

func (s *mongoStore) Touch(ctx context.Context, resID, sessionID string, now time.Time) error {
	_, err := s.clients.UpdateMany(ctx,
		bson.D{{Key: "session_id", Value: sessionID}, {Key: "res_id", Value: resID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "timestamp", Value: now}}}},
	)
	return err
}

func (s *mongoStore) ExpiredClients(ctx context.Context, before time.Time) ([]Client, error) {
	cursor, err := s.clients.Find(ctx, bson.D{{Key: "timestamp", Value: bson.D{{Key: "$lt", Value: before}}}})
	if err != nil {
		return nil, err
	}
	var out []Client
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *mongoStore) RemoveClient(ctx context.Context, c Client) error {
	_, err := s.clients.DeleteOne(ctx, bson.D{
		{Key: "res_id", Value: c.ResID},
		{Key: "session_id", Value: c.SessionID},
	})
	return err
}

func (s *mongoStore) AddCollection(ctx context.Context, resID, name string) error {
	_, err := s.clients.UpdateMany(ctx,
		bson.D{{Key: "res_id", Value: resID}},
		bson.D{{Key: "$addToSet", Value: bson.D{{Key: "collections", Value: name}}}},
	)
	return err
}

func (s *mongoStore) RemoveCollection(ctx context.Context, resID, name string) error {
	_, err := s.clients.UpdateMany(ctx,
		bson.D{{Key: "res_id", Value: resID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "collections", Value: name}}}},
	)
	return err
}

func (s *mongoStore) CollectionNames(ctx context.Context, resID string) ([]string, error) {
	var c Client
	err := s.clients.FindOne(ctx, bson.D{{Key: "res_id", Value: resID}}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []string{}, nil
	} else if err != nil {
		return nil, err
	}
	if c.Collections == nil {
		return []string{}, nil
	}
	return c.Collections, nil
}

func (s *mongoStore) Find(ctx context.Context, coll string, query any, opts FindOptions) ([]bson.D, error) {
	findOptions := options.Find().SetSkip(opts.Skip).SetLimit(opts.Limit)
	if opts.Projection != nil {
		findOptions.SetProjection(opts.Projection)
	}
	cursor, err := s.db.Collection(coll).Find(ctx, filter(query), findOptions)
	if err != nil {
		return nil, err
	}
	docs := []bson.D{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *mongoStore) Insert(ctx context.Context, coll string, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := s.db.Collection(coll).InsertMany(ctx, docs)
	return err
}

func (s *mongoStore) Save(ctx context.Context, coll string, doc bson.D) error {
	for _, e := range doc {
		if e.Key == "_id" {
			_, err := s.db.Collection(coll).ReplaceOne(ctx, bson.D{{Key: "_id", Value: e.Value}}, doc,
				options.Replace().SetUpsert(true))
			return err
		}
	}
	_, err := s.db.Collection(coll).InsertOne(ctx, doc)
	return err
}

func (s *mongoStore) Remove(ctx context.Context, coll string, constraint any, justOne bool) error {
	c := s.db.Collection(coll)
	if justOne {
		err := c.FindOneAndDelete(ctx, filter(constraint)).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	}
	_, err := c.DeleteMany(ctx, filter(constraint))
	return err
}

func (s *mongoStore) Update(ctx context.Context, coll string, query, update any, upsert, multi bool) error {
	c := s.db.Collection(coll)
	var err error
	switch {
	case !hasOperators(update):
		_, err = c.ReplaceOne(ctx, filter(query), update, options.Replace().SetUpsert(upsert))
	case multi:
		_, err = c.UpdateMany(ctx, filter(query), update, options.UpdateMany().SetUpsert(upsert))
	default:
		_, err = c.UpdateOne(ctx, filter(query), update, options.UpdateOne().SetUpsert(upsert))
	}
	return err
}

func (s *mongoStore) Count(ctx context.Context, coll string, query any, skip, limit int64) (int64, error) {
	countOptions := options.Count()
	if skip > 0 {
		countOptions.SetSkip(skip)
	}
	if limit > 0 {
		countOptions.SetLimit(limit)
	}
	return s.db.Collection(coll).CountDocuments(ctx, filter(query), countOptions)
}

func (s *mongoStore) Aggregate(ctx context.Context, coll string, pipeline any) ([]bson.D, error) {
	cursor, err := s.db.Collection(coll).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, badRequest(err.Error(), err)
	}
	docs := []bson.D{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *mongoStore) Drop(ctx context.Context, coll string) error {
	return s.db.Collection(coll).Drop(ctx)
}

type collStats struct {
	Size int64 `bson:"size"`
}

func (s *mongoStore) CollectionSize(ctx context.Context, coll string) (int64, error) {
	var stats collStats
	err := s.db.RunCommand(ctx, bson.D{
		{Key: "collStats", Value: coll},
		{Key: "scale", Value: 1},
	}).Decode(&stats)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) &&
		(cmdErr.HasErrorCode(codeNamespaceNotFound) || strings.Contains(cmdErr.Message, "ns not found")) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("'collStats' failed: %w", err)
	}
	return stats.Size, nil
}

// filter turns a missing query into the match-all document.
func filter(query any) any {
	if query == nil {
		return bson.D{}
	}
	return query
}

// hasOperators reports whether an update document uses update operators
// rather than being a replacement.
func hasOperators(update any) bool {
	switch u := update.(type) {
	case bson.D:
		return len(u) > 0 && strings.HasPrefix(u[0].Key, "$")
	case bson.M:
		for k := range u {
			return strings.HasPrefix(k, "$")
		}
	case bson.A:
		// pipeline updates
		return true
	}
	return false
}
