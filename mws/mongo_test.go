package mws

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// newMongoTestStore connects to the server in MWS_MONGO_URL using a database
// of its own, dropped when the test ends.
func newMongoTestStore(t *testing.T) *mongoStore {
	t.Helper()
	url, ok := os.LookupEnv("MWS_MONGO_URL")
	if !ok || url == "" {
		t.Skip("MWS_MONGO_URL not set")
	}
	database := "mws_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	store, err := NewMongoStore(t.Context(), url, database)
	require.NoError(t, err)
	ms := store.(*mongoStore)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, ms.db.Drop(ctx))
		require.NoError(t, ms.Close(ctx))
	})
	return ms
}

var noID = FindOptions{Projection: bson.D{{Key: "_id", Value: 0}}}

func TestMongoStore_Clients(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := t.Context()
	start := time.Date(2013, 7, 1, 12, 0, 0, 0, time.UTC)

	missing, err := s.FindClient(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, s.CreateClient(ctx, Client{Version: 1, ResID: "r1", SessionID: "s1", Timestamp: start}))
	c, err := s.FindClient(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "r1", c.ResID)
	require.Empty(t, c.Collections)

	ok, err := s.HasAccess(ctx, "r1", "s1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.HasAccess(ctx, "r1", "s2")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.AddCollection(ctx, "r1", "a"))
	require.NoError(t, s.AddCollection(ctx, "r1", "a"))
	require.NoError(t, s.AddCollection(ctx, "r1", "b"))
	names, err := s.CollectionNames(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)
	require.NoError(t, s.RemoveCollection(ctx, "r1", "a"))
	names, err = s.CollectionNames(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, names)

	names, err = s.CollectionNames(ctx, "unknown")
	require.NoError(t, err)
	require.Empty(t, names)

	expired, err := s.ExpiredClients(ctx, start.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.NoError(t, s.Touch(ctx, "r1", "s1", start.Add(2*time.Minute)))
	expired, err = s.ExpiredClients(ctx, start.Add(time.Minute))
	require.NoError(t, err)
	require.Empty(t, expired)

	require.NoError(t, s.RemoveClient(ctx, Client{ResID: "r1", SessionID: "s1"}))
	c, err = s.FindClient(ctx, "s1")
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestMongoStore_Documents(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := t.Context()
	coll := internalCollName("r1", "c")

	size, err := s.CollectionSize(ctx, coll)
	require.NoError(t, err)
	require.Zero(t, size)

	require.NoError(t, s.Insert(ctx, coll, []any{
		bson.D{{Key: "a", Value: int32(1)}},
		bson.D{{Key: "a", Value: int32(2)}},
		bson.D{{Key: "a", Value: int32(2)}},
	}))
	require.NoError(t, s.Insert(ctx, coll, nil))

	docs, err := s.Find(ctx, coll, bson.D{{Key: "a", Value: int32(2)}}, noID)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	docs, err = s.Find(ctx, coll, nil, FindOptions{Projection: noID.Projection, Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Equal(t, []bson.D{{{Key: "a", Value: int32(2)}}}, docs)

	n, err := s.Count(ctx, coll, nil, 1, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	// Operator update on every match, then a replacement of one document.
	require.NoError(t, s.Update(ctx, coll, bson.D{{Key: "a", Value: int32(2)}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "b", Value: true}}}}, false, true))
	n, err = s.Count(ctx, coll, bson.D{{Key: "b", Value: true}}, 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.NoError(t, s.Update(ctx, coll, bson.D{{Key: "a", Value: int32(1)}},
		bson.D{{Key: "z", Value: "replaced"}}, false, false))
	docs, err = s.Find(ctx, coll, bson.D{{Key: "z", Value: "replaced"}}, noID)
	require.NoError(t, err)
	require.Equal(t, []bson.D{{{Key: "z", Value: "replaced"}}}, docs)

	require.NoError(t, s.Update(ctx, coll, bson.D{{Key: "k", Value: "new"}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "v", Value: int32(1)}}}}, true, false))
	n, err = s.Count(ctx, coll, bson.D{{Key: "k", Value: "new"}}, 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, s.Save(ctx, coll, bson.D{{Key: "_id", Value: int32(7)}, {Key: "v", Value: int32(1)}}))
	require.NoError(t, s.Save(ctx, coll, bson.D{{Key: "_id", Value: int32(7)}, {Key: "v", Value: int32(2)}}))
	docs, err = s.Find(ctx, coll, bson.D{{Key: "_id", Value: int32(7)}}, FindOptions{})
	require.NoError(t, err)
	require.Equal(t, []bson.D{{{Key: "_id", Value: int32(7)}, {Key: "v", Value: int32(2)}}}, docs)

	require.NoError(t, s.Remove(ctx, coll, bson.D{{Key: "b", Value: true}}, true))
	n, err = s.Count(ctx, coll, bson.D{{Key: "b", Value: true}}, 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.NoError(t, s.Remove(ctx, coll, bson.D{{Key: "nothing", Value: true}}, true))

	result, err := s.Aggregate(ctx, coll, bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "b", Value: true}}}},
		bson.D{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}, {Key: "a", Value: 1}}}},
	})
	require.NoError(t, err)
	require.Equal(t, []bson.D{{{Key: "a", Value: int32(2)}}}, result)

	_, err = s.Aggregate(ctx, coll, bson.A{bson.D{{Key: "$nope", Value: 1}}})
	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, 400, e.Status)

	size, err = s.CollectionSize(ctx, coll)
	require.NoError(t, err)
	require.Positive(t, size)

	require.NoError(t, s.Drop(ctx, coll))
	n, err = s.Count(ctx, coll, nil, 0, 0)
	require.NoError(t, err)
	require.Zero(t, n)
}
