package jsrt

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh"
	"github.com/mongodb-labs/mongo-web-shell-sub000/mongosh/rewrite"
)

// routeGateway answers requests by the last path element of their URL.
type routeGateway struct {
	requests []mongosh.Request
	routes   map[string]mongosh.Response
}

func (g *routeGateway) MakeRequest(
	_ context.Context, sh *mongosh.Shell, req mongosh.Request, onSuccess func(mongosh.Response) error, async bool,
) error {
	g.requests = append(g.requests, req)
	resp := g.routes[req.URL[strings.LastIndex(req.URL, "/")+1:]]
	finish := func() error {
		if onSuccess == nil {
			return nil
		}
		return onSuccess(resp)
	}
	if async {
		sh.Loop.Go(func() func() error { return finish })
		return nil
	}
	return finish()
}

func newRuntime(t *testing.T, routes map[string]mongosh.Response) (*Runtime, *routeGateway, *bytes.Buffer) {
	t.Helper()
	gw := &routeGateway{routes: routes}
	var out bytes.Buffer
	sh := mongosh.NewShell(mongosh.Config{
		BaseURL: "http://mws.test/mws/",
		ResID:   "res",
		Gateway: gw,
		Out:     &out,
	})
	rt, err := New(sh)
	require.NoError(t, err)
	return rt, gw, &out
}

func findResult(docs ...any) mongosh.Response {
	return mongosh.Response{{Key: "result", Value: bson.A(docs)}}
}

func doc(kv ...any) bson.D {
	d := bson.D{}
	for i := 0; i < len(kv); i += 2 {
		d = append(d, bson.E{Key: kv[i].(string), Value: kv[i+1]})
	}
	return d
}

func TestEval_FindWithLimit(t *testing.T) {
	rt, gw, out := newRuntime(t, map[string]mongosh.Response{
		"find": findResult(doc("x", int32(1))),
	})

	require.NoError(t, rt.Eval(t.Context(), "db.c.find({x: 1}).limit(1)"))
	require.Equal(t, "{ \"x\" : 1 }\n", out.String())

	require.Len(t, gw.requests, 1)
	require.Equal(t, "http://mws.test/mws/res/db/c/find", gw.requests[0].URL)
	require.Equal(t, bson.D{
		{Key: "query", Value: doc("x", int64(1))},
		{Key: "limit", Value: int64(1)},
	}, gw.requests[0].Params)
}

func TestEval_InsertKeepsKeyOrder(t *testing.T) {
	rt, gw, out := newRuntime(t, nil)

	require.NoError(t, rt.Eval(t.Context(), `db.c.insert({b: 1, a: "two", nested: {z: [1, null]}})`))
	require.Empty(t, out.String())
	require.Len(t, gw.requests, 1)
	require.Equal(t, bson.D{{Key: "document", Value: doc(
		"b", int64(1),
		"a", "two",
		"nested", doc("z", bson.A{int64(1), nil}),
	)}}, gw.requests[0].Params)
}

func TestEval_BatchSizeAndIt(t *testing.T) {
	rt, _, out := newRuntime(t, map[string]mongosh.Response{
		"find": findResult(doc("i", int32(0)), doc("i", int32(1))),
	})

	require.NoError(t, rt.Eval(t.Context(), "DBQuery.shellBatchSize = 1; db.c.find()"))
	require.Equal(t, "1\n{ \"i\" : 0 }\nType \"it\" for more\n", out.String())

	out.Reset()
	require.True(t, mongosh.HandleKeywords(t.Context(), rt.shell, "it"))
	require.NoError(t, rt.shell.Loop.Drain(t.Context()))
	require.Equal(t, "{ \"i\" : 1 }\n", out.String())
}

func TestEval_BadBatchSize(t *testing.T) {
	rt, gw, out := newRuntime(t, nil)

	err := rt.Eval(t.Context(), `DBQuery.shellBatchSize = "lots"; db.c.find()`)
	kind, ok := mongosh.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mongosh.ErrValidation, kind)
	require.Equal(t, "lots\nERROR: Please set DBQuery.shellBatchSize to a valid numerical value.\n", out.String())
	require.Empty(t, gw.requests)
}

func TestEval_ToArrayAliasing(t *testing.T) {
	rt, gw, out := newRuntime(t, map[string]mongosh.Response{
		"find": findResult(doc("i", int32(0)), doc("i", int32(1))),
	})

	require.NoError(t, rt.Eval(t.Context(), "var c = db.c.find(); c.toArray()[0] = 5; c.toArray()[0]"))
	require.NoError(t, rt.Eval(t.Context(), "c[0]"))
	require.NoError(t, rt.Eval(t.Context(), "c[1].i"))
	require.NoError(t, rt.Eval(t.Context(), "c[7]"))
	require.NoError(t, rt.Eval(t.Context(), "c.toArray().length"))
	// The assignment statement prints its value too.
	require.Equal(t, "5\n5\n5\n1\n2\n", out.String())
	require.Len(t, gw.requests, 1)
}

func TestEval_CursorErrors(t *testing.T) {
	rt, _, _ := newRuntime(t, map[string]mongosh.Response{
		"find": findResult(),
	})

	err := rt.Eval(t.Context(), "db.c.find().next()")
	var shellErr *mongosh.ShellError
	require.ErrorAs(t, err, &shellErr)
	require.Equal(t, mongosh.ErrExhaustion, shellErr.Kind)
	require.Equal(t, "Cursor does not have any more elements.", shellErr.Message)

	err = rt.Eval(t.Context(), "var c = db.c.find(); c.hasNext(); c.skip(1)")
	require.ErrorAs(t, err, &shellErr)
	require.Equal(t, mongosh.ErrInvalidState, shellErr.Kind)

	err = rt.Eval(t.Context(), "db.c.find().limit(1.5)")
	require.ErrorAs(t, err, &shellErr)
	require.Equal(t, "Limit amount must be an integer.", shellErr.Message)
}

func TestEval_CollectionResolution(t *testing.T) {
	rt, gw, out := newRuntime(t, nil)

	require.NoError(t, rt.Eval(t.Context(), "db.c"))
	require.NoError(t, rt.Eval(t.Context(), "db.c === db.c"))
	require.NoError(t, rt.Eval(t.Context(), "db.c.mapReduce()"))
	require.NoError(t, rt.Eval(t.Context(), "db.c.frobnicate(1, 2)"))
	require.Equal(t, "test.c\ntrue\n"+
		"ERROR: mapReduce is not implemented.\n"+
		"ERROR: frobnicate is not a function on collections.\n", out.String())
	require.Empty(t, gw.requests)

	err := rt.Eval(t.Context(), `db["system.users"]`)
	var shellErr *mongosh.ShellError
	require.ErrorAs(t, err, &shellErr)
	require.Equal(t, mongosh.ErrValidation, shellErr.Kind)
	require.Equal(t, "Collection name may not begin with system.*", shellErr.Message)
}

func TestEval_ShowCollections(t *testing.T) {
	routes := map[string]mongosh.Response{
		"getCollectionNames": findResult("a", "b", "c"),
	}

	t.Run("legacy keyword form", func(t *testing.T) {
		rt, _, out := newRuntime(t, routes)
		require.NoError(t, rt.Eval(t.Context(), `show collections; print("done")`))
		require.Equal(t, "a\nb\nc\ndone\n", out.String())
	})

	t.Run("method", func(t *testing.T) {
		rt, _, out := newRuntime(t, routes)
		require.NoError(t, rt.Eval(t.Context(), "db.getCollectionNames().length"))
		require.Equal(t, "3\n", out.String())
	})
}

func TestEval_ScriptErrors(t *testing.T) {
	rt, _, _ := newRuntime(t, nil)

	err := rt.Eval(t.Context(), "var a = null; a.b")
	var ex *goja.Exception
	require.ErrorAs(t, err, &ex)
	require.True(t, strings.HasPrefix(ex.Value().String(), "TypeError: "), ex.Value().String())

	err = rt.Eval(t.Context(), "db.c.find(")
	var parseErr *rewrite.ParseError
	require.ErrorAs(t, err, &parseErr)

	err = rt.Eval(t.Context(), "throw new Error('boom')")
	require.ErrorAs(t, err, &ex)
	require.Equal(t, "Error: boom", ex.Value().String())
}

func TestEval_Globals(t *testing.T) {
	rt, _, out := newRuntime(t, nil)

	require.NoError(t, rt.Eval(t.Context(), `print("x", {a: 1}, [1, "b"])`))
	require.NoError(t, rt.Eval(t.Context(), `ObjectId("5f1d7a2b9c8e4a3b2c1d0e0f").str`))
	require.NoError(t, rt.Eval(t.Context(), `ObjectId("5f1d7a2b9c8e4a3b2c1d0e0f")`))
	require.NoError(t, rt.Eval(t.Context(), `ISODate("2013-07-01T12:00:00Z")`))
	require.NoError(t, rt.Eval(t.Context(), `tojson({a: 1})`))
	require.NoError(t, rt.Eval(t.Context(), `"str".toUpperCase()`))
	require.Equal(t, `x { "a" : 1 } [ 1, "b" ]`+"\n"+
		"5f1d7a2b9c8e4a3b2c1d0e0f\n"+
		`ObjectId("5f1d7a2b9c8e4a3b2c1d0e0f")`+"\n"+
		`ISODate("2013-07-01T12:00:00Z")`+"\n"+
		"{\n\t\"a\" : 1\n}\n"+
		"STR\n", out.String())
}

func TestEval_Interrupted(t *testing.T) {
	rt, _, _ := newRuntime(t, nil)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := rt.Eval(ctx, "while (true) {}")
	var interrupted *goja.InterruptedError
	require.True(t, errors.As(err, &interrupted) || errors.Is(err, context.Canceled), "%v", err)

	require.NoError(t, rt.Eval(t.Context(), "1 + 1"))
}
