package mongosh

import (
	"context"
	"math"
	"net/http"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// unimplementedCollMethods are collection methods of the full shell that
// this one knows about but does not provide.
var unimplementedCollMethods = map[string]struct{}{
	"createIndex":          {},
	"copyTo":               {},
	"distinct":             {},
	"dropIndex":            {},
	"dropIndexes":          {},
	"ensureIndex":          {},
	"findAndModify":        {},
	"getIndexes":           {},
	"getShardDistribution": {},
	"getShardVersion":      {},
	"group":                {},
	"isCapped":             {},
	"mapReduce":            {},
	"reIndex":              {},
	"renameCollection":     {},
	"stats":                {},
	"storageSize":          {},
	"totalSize":            {},
	"totalIndexSize":       {},
	"validate":             {},
}

// NoOp is handed out in place of collection methods that do not exist.
func NoOp() {}

// Coll is a collection of the shell's resource.
type Coll struct {
	db    *DB
	shell *Shell
	name  string
}

func (c *Coll) Name() string {
	return c.name
}

func (c *Coll) DB() *DB {
	return c.db
}

func (c *Coll) String() string {
	return c.db.String() + "." + c.name
}

// URL is the collection endpoint, ending in a slash.
func (c *Coll) URL() string {
	return c.shell.DBURL() + c.name + "/"
}

// Find returns an unexecuted cursor. Nil query or projection means unset.
func (c *Coll) Find(query, projection any) *Cursor {
	return &Cursor{coll: c, shell: c.shell, query: query, projection: projection}
}

// FindOne returns the first matching document, or nil when none matches.
func (c *Coll) FindOne(ctx context.Context, query, projection any) (any, error) {
	cur, err := c.Find(query, projection).Limit(int64(1))
	if err != nil {
		return nil, err
	}
	has, err := cur.HasNext(ctx)
	if err != nil || !has {
		return nil, err
	}
	return cur.Next(ctx)
}

// Count counts the documents matching query.
func (c *Coll) Count(ctx context.Context, query any) (int64, error) {
	return c.Find(query, nil).Count(ctx, false)
}

// Insert stores a document, or every document of an array.
func (c *Coll) Insert(ctx context.Context, doc any) error {
	return c.write(ctx, "insert", http.MethodPost, "dbCollectionInsert", bson.D{{Key: "document", Value: doc}})
}

// Save replaces the document with the same _id, or inserts it.
func (c *Coll) Save(ctx context.Context, doc any) error {
	return c.write(ctx, "save", http.MethodPost, "dbCollectionSave", bson.D{{Key: "document", Value: doc}})
}

// Remove deletes the documents matching constraint, or only the first one.
func (c *Coll) Remove(ctx context.Context, constraint any, justOne bool) error {
	params := bson.D{}
	if constraint != nil {
		params = append(params, bson.E{Key: "constraint", Value: constraint})
	}
	params = append(params, bson.E{Key: "just_one", Value: justOne})
	return c.write(ctx, "remove", http.MethodDelete, "dbCollectionRemove", params)
}

// Update applies update to the documents matching query. upsert may also be
// an options document {upsert, multi}, in which case multi must be unset.
func (c *Coll) Update(ctx context.Context, query, update, upsert, multi any) error {
	if opts, ok := upsert.(bson.D); ok {
		if multi != nil {
			msg := "Fourth argument must be empty when specifying upsert and multi with an object"
			c.shell.Print("ERROR: " + msg)
			return &ShellError{Kind: ErrValidation, Message: "dbCollectionUpdate: Syntax error", Err: NewShellError(ErrValidation, msg)}
		}
		upsert, multi = lookup(opts, "upsert"), lookup(opts, "multi")
	}
	params := bson.D{}
	if query != nil {
		params = append(params, bson.E{Key: "query", Value: query})
	}
	if update != nil {
		params = append(params, bson.E{Key: "update", Value: update})
	}
	params = append(params,
		bson.E{Key: "upsert", Value: truthy(upsert)},
		bson.E{Key: "multi", Value: truthy(multi)},
	)
	return c.write(ctx, "update", http.MethodPut, "dbCollectionUpdate", params)
}

// Drop removes the collection.
func (c *Coll) Drop(ctx context.Context) error {
	return c.write(ctx, "drop", http.MethodDelete, "dbCollectionDrop", nil)
}

// Aggregate runs a pipeline given either as one array or as separate stages.
// The whole response body is returned.
func (c *Coll) Aggregate(ctx context.Context, stages ...any) (Response, error) {
	var pipeline bson.A
	if len(stages) == 1 {
		switch v := stages[0].(type) {
		case bson.A:
			pipeline = v
		case []any:
			pipeline = v
		}
	}
	if pipeline == nil {
		pipeline = append(bson.A{}, stages...)
	}
	var out Response
	req := getRequest(c.URL()+"aggregate", "dbCollectionAggregate", bson.D{{Key: "pipeline", Value: pipeline}})
	err := c.shell.Gateway.MakeRequest(ctx, c.shell, req, func(resp Response) error {
		out = resp
		return nil
	}, false)
	return out, err
}

// ResolveMissing reports collection methods that do not exist and hands
// back a function that does nothing, so the call site still works.
func (c *Coll) ResolveMissing(_ context.Context, name string) (any, error) {
	if _, ok := unimplementedCollMethods[name]; ok {
		c.shell.Print("ERROR: " + name + " is not implemented.")
	} else {
		c.shell.Print("ERROR: " + name + " is not a function on collections.")
	}
	return NoOp, nil
}

func (c *Coll) write(ctx context.Context, op, method, name string, params bson.D) error {
	req := Request{URL: c.URL() + op, Params: params, Method: method, Name: name}
	return c.shell.Gateway.MakeRequest(ctx, c.shell, req, nil, true)
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	default:
		return true
	}
}
