package mws

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Client is the bookkeeping record of one shell resource.
//
//nolint:govet // fieldalignment: readability preferred
type Client struct {
	Version     int       `bson:"version"`
	ResID       string    `bson:"res_id"`
	SessionID   string    `bson:"session_id"`
	Collections []string  `bson:"collections"`
	Timestamp   time.Time `bson:"timestamp"`
}

// FindOptions narrows a find. Zero skip and limit mean none.
type FindOptions struct {
	Projection any
	Skip       int64
	Limit      int64
}

// Store is the database behind the resource server. Collection arguments
// are internal names, that is the resource id followed by the name the
// shell uses.
type Store interface {
	// FindClient returns the resource owned by a session, or nil.
	FindClient(ctx context.Context, sessionID string) (*Client, error)
	CreateClient(ctx context.Context, c Client) error
	HasAccess(ctx context.Context, resID, sessionID string) (bool, error)
	Touch(ctx context.Context, resID, sessionID string, now time.Time) error
	ExpiredClients(ctx context.Context, before time.Time) ([]Client, error)
	RemoveClient(ctx context.Context, c Client) error
	// AddCollection and RemoveCollection maintain the collection list of
	// every client record of a resource.
	AddCollection(ctx context.Context, resID, name string) error
	RemoveCollection(ctx context.Context, resID, name string) error
	CollectionNames(ctx context.Context, resID string) ([]string, error)

	Find(ctx context.Context, coll string, query any, opts FindOptions) ([]bson.D, error)
	Insert(ctx context.Context, coll string, docs []any) error
	// Save replaces the document with the same _id, or inserts it.
	Save(ctx context.Context, coll string, doc bson.D) error
	Remove(ctx context.Context, coll string, constraint any, justOne bool) error
	Update(ctx context.Context, coll string, query, update any, upsert, multi bool) error
	Count(ctx context.Context, coll string, query any, skip, limit int64) (int64, error)
	Aggregate(ctx context.Context, coll string, pipeline any) ([]bson.D, error)
	Drop(ctx context.Context, coll string) error
	// CollectionSize is the uncompressed data size, 0 for a missing
	// collection.
	CollectionSize(ctx context.Context, coll string) (int64, error)
	Close(ctx context.Context) error
}

func internalCollName(resID, name string) string {
	return resID + name
}
