package mongosh

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newTestColl(t *testing.T, gw *fakeGateway) (*Coll, *Shell) {
	t.Helper()
	sh, _ := newTestShell(t, gw)
	coll, err := sh.DB.Coll("c")
	require.NoError(t, err)
	return coll, sh
}

func TestCursor_ExecuteQuerySendsOnlySetKeys(t *testing.T) {
	gw := &fakeGateway{handle: func(Request) (Response, error) {
		return findResult(docs(1)), nil
	}}
	coll, _ := newTestColl(t, gw)

	cur, err := coll.Find(bson.D{{Key: "x", Value: int32(1)}}, nil).Limit(int64(1))
	require.NoError(t, err)
	require.NoError(t, cur.ExecuteQuery(t.Context(), nil, false))

	require.Len(t, gw.requests, 1)
	req := gw.requests[0]
	require.Equal(t, "http://mws.test/mws/res/db/c/find", req.URL)
	require.Equal(t, http.MethodGet, req.Method)
	require.Equal(t, "dbCollectionFind", req.Name)
	require.Equal(t, bson.D{
		{Key: "query", Value: bson.D{{Key: "x", Value: int32(1)}}},
		{Key: "limit", Value: int64(1)},
	}, req.Params)
}

func TestCursor_ExecuteQueryOnce(t *testing.T) {
	gw := &fakeGateway{handle: func(Request) (Response, error) {
		return findResult(docs(2)), nil
	}}
	coll, _ := newTestColl(t, gw)
	cur := coll.Find(nil, nil)

	calls := 0
	onSuccess := func() error { calls++; return nil }
	require.NoError(t, cur.ExecuteQuery(t.Context(), onSuccess, false))
	require.NoError(t, cur.ExecuteQuery(t.Context(), onSuccess, false))
	require.True(t, cur.Executed())
	require.Equal(t, 2, calls)
	require.Len(t, gw.requests, 1)
	require.Empty(t, gw.requests[0].Params)
}

func TestCursor_ModifyAfterExecute(t *testing.T) {
	gw := &fakeGateway{handle: func(Request) (Response, error) {
		return findResult(docs(1)), nil
	}}
	coll, _ := newTestColl(t, gw)
	cur := coll.Find(nil, nil)
	_, err := cur.HasNext(t.Context())
	require.NoError(t, err)

	_, err = cur.Skip(3)
	var shellErr *ShellError
	require.ErrorAs(t, err, &shellErr)
	require.Equal(t, ErrInvalidState, shellErr.Kind)
	require.Equal(t, "cannot modify executed cursor", shellErr.Message)

	_, err = cur.Limit(3)
	require.ErrorAs(t, err, &shellErr)
	require.Equal(t, ErrInvalidState, shellErr.Kind)

	_, err = cur.Sort(bson.D{{Key: "x", Value: int32(1)}})
	require.ErrorAs(t, err, &shellErr)
	require.Equal(t, ErrInvalidState, shellErr.Kind)
	require.Len(t, gw.requests, 1)
}

func TestCursor_SkipLimitValidation(t *testing.T) {
	coll, _ := newTestColl(t, &fakeGateway{})

	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{name: "int", value: 2, ok: true},
		{name: "integralFloat", value: float64(4), ok: true},
		{name: "fraction", value: 2.5},
		{name: "negative", value: -1},
		{name: "string", value: "2"},
		{name: "nil", value: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, skipErr := coll.Find(nil, nil).Skip(tt.value)
			_, limitErr := coll.Find(nil, nil).Limit(tt.value)
			if tt.ok {
				require.NoError(t, skipErr)
				require.NoError(t, limitErr)
				return
			}
			require.EqualError(t, skipErr, "Skip amount must be an integer.")
			require.EqualError(t, limitErr, "Limit amount must be an integer.")
		})
	}
}

func TestCursor_NextInServerOrder(t *testing.T) {
	gw := &fakeGateway{handle: func(Request) (Response, error) {
		return findResult(bson.A{"a", "b", "c"}), nil
	}}
	coll, _ := newTestColl(t, gw)
	cur := coll.Find(nil, nil)

	var got []any
	for {
		has, err := cur.HasNext(t.Context())
		require.NoError(t, err)
		if !has {
			break
		}
		v, err := cur.Next(t.Context())
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, []any{"a", "b", "c"}, got)

	_, err := cur.Next(t.Context())
	var shellErr *ShellError
	require.ErrorAs(t, err, &shellErr)
	require.Equal(t, ErrExhaustion, shellErr.Kind)
	require.Equal(t, "Cursor does not have any more elements.", shellErr.Message)
	require.Len(t, gw.requests, 1)
}

func TestCursor_StoreBatchQueuesBehindBuffered(t *testing.T) {
	coll, _ := newTestColl(t, &fakeGateway{})
	cur := coll.Find(nil, nil)
	cur.executed = true
	cur.storeBatch([]any{1, 2})
	cur.storeBatch([]any{3})

	for _, want := range []any{1, 2, 3} {
		v, err := cur.Next(t.Context())
		require.NoError(t, err)
		require.Equal(t, want, v)
	}
}

func TestCursor_ToArrayIsCached(t *testing.T) {
	gw := &fakeGateway{handle: func(Request) (Response, error) {
		return findResult(bson.A{"a", "b"}), nil
	}}
	coll, _ := newTestColl(t, gw)
	cur := coll.Find(nil, nil)

	first, err := cur.ToArray(t.Context())
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b"}, first)
	first[0] = "changed"

	second, err := cur.ToArray(t.Context())
	require.NoError(t, err)
	require.Equal(t, "changed", second[0])

	v, err := cur.ResolveMissing(t.Context(), "1")
	require.NoError(t, err)
	require.Equal(t, "b", v)
	v, err = cur.ResolveMissing(t.Context(), "5")
	require.NoError(t, err)
	require.Equal(t, Undefined, v)
	v, err = cur.ResolveMissing(t.Context(), "foo")
	require.NoError(t, err)
	require.Equal(t, Undefined, v)

	has, err := cur.HasNext(t.Context())
	require.NoError(t, err)
	require.False(t, has)
	require.Len(t, gw.requests, 1)
}

func TestCursor_ToArrayEmpty(t *testing.T) {
	gw := &fakeGateway{handle: func(Request) (Response, error) {
		return findResult(bson.A{}), nil
	}}
	coll, _ := newTestColl(t, gw)
	arr, err := coll.Find(nil, nil).ToArray(t.Context())
	require.NoError(t, err)
	require.NotNil(t, arr)
	require.Empty(t, arr)
}

func TestCursor_Count(t *testing.T) {
	var params []bson.D
	gw := &fakeGateway{handle: func(req Request) (Response, error) {
		params = append(params, req.Params)
		require.Equal(t, "Cursor.count", req.Name)
		require.Equal(t, "http://mws.test/mws/res/db/c/count", req.URL)
		return Response{{Key: "count", Value: int32(7)}}, nil
	}}
	coll, _ := newTestColl(t, gw)
	query := bson.D{{Key: "x", Value: int32(1)}}
	cur, err := coll.Find(query, nil).Skip(2)
	require.NoError(t, err)
	_, err = cur.Limit(3)
	require.NoError(t, err)

	n, err := cur.Count(t.Context(), false)
	require.NoError(t, err)
	require.Equal(t, int64(7), n)

	n, err = cur.Size(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
	require.False(t, cur.Executed())

	require.Equal(t, []bson.D{
		{{Key: "query", Value: query}},
		{
			{Key: "query", Value: query},
			{Key: "skip", Value: int64(2)},
			{Key: "limit", Value: int64(3)},
		},
	}, params)
}

func TestCursor_PrintBatch(t *testing.T) {
	gw := &fakeGateway{handle: func(Request) (Response, error) {
		return findResult(docs(3)), nil
	}}
	coll, sh := newTestColl(t, gw)
	out := sh.out.(interface{ String() string })
	sh.SetBatchSizeSource(func() any { return 2 })
	cur := coll.Find(nil, nil)

	require.NoError(t, cur.PrintBatch(t.Context()))
	require.Same(t, cur, sh.LastUsedCursor())
	require.NoError(t, sh.Loop.Drain(t.Context()))
	require.Equal(t, "{ \"i\" : 0 }\n{ \"i\" : 1 }\nType \"it\" for more\n", out.String())

	require.True(t, RunKeyword(t.Context(), sh, "it", nil))
	require.NoError(t, sh.Loop.Drain(t.Context()))
	require.Equal(t, "{ \"i\" : 0 }\n{ \"i\" : 1 }\nType \"it\" for more\n{ \"i\" : 2 }\n", out.String())

	// Exhausted: nothing printed, the cursor stays current.
	require.NoError(t, cur.PrintBatch(t.Context()))
	require.NoError(t, sh.Loop.Drain(t.Context()))
	require.Equal(t, "{ \"i\" : 0 }\n{ \"i\" : 1 }\nType \"it\" for more\n{ \"i\" : 2 }\n", out.String())
	require.Same(t, cur, sh.LastUsedCursor())
	require.Len(t, gw.requests, 1)
}

func TestCursor_PrintBatchSizeZero(t *testing.T) {
	gw := &fakeGateway{handle: func(Request) (Response, error) {
		return findResult(docs(1)), nil
	}}
	coll, sh := newTestColl(t, gw)
	out := sh.out.(interface{ String() string })
	sh.SetBatchSizeSource(func() any { return 0 })

	cur := coll.Find(nil, nil)
	require.NoError(t, cur.PrintBatch(t.Context()))
	require.NoError(t, sh.Loop.Drain(t.Context()))
	require.Equal(t, "Type \"it\" for more\n", out.String())
	require.Same(t, cur, sh.LastUsedCursor())
}

func TestCursor_PrintBatchBadSize(t *testing.T) {
	gw := &fakeGateway{handle: func(Request) (Response, error) {
		return findResult(docs(1)), nil
	}}
	coll, sh := newTestColl(t, gw)
	sh.SetBatchSizeSource(func() any { return "lots" })

	err := coll.Find(nil, nil).PrintBatch(t.Context())
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, ErrValidation, kind)
	require.Empty(t, gw.requests)
}

func TestCursor_NetworkFailure(t *testing.T) {
	gw := &fakeGateway{handle: func(Request) (Response, error) {
		return nil, errors.New("Collection not found")
	}}
	coll, sh := newTestColl(t, gw)
	out := sh.out.(interface{ String() string })

	_, err := coll.Find(nil, nil).Next(t.Context())
	require.True(t, IsReported(err))
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, ErrNetwork, kind)
	require.Equal(t, "ERROR: Collection not found\n", out.String())

	sh.PrintError(err)
	require.Equal(t, "ERROR: Collection not found\n", out.String())
}

func TestCursor_String(t *testing.T) {
	coll, _ := newTestColl(t, &fakeGateway{})
	require.Equal(t, "Cursor: test.c -> {  }", coll.Find(nil, nil).String())
	require.Equal(t, `Cursor: test.c -> { "x" : 1 }`,
		coll.Find(bson.D{{Key: "x", Value: int32(1)}}, nil).String())
}
