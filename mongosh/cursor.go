package mongosh

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Cursor is one query's result set. It starts unexecuted, when sort, skip
// and limit may still shape the query, and becomes executed on the first
// read. Results are buffered in reverse so reading pops the tail.
//
//nolint:govet // fieldalignment: readability preferred
type Cursor struct {
	coll       *Coll
	shell      *Shell
	query      any
	projection any
	skip       *int64
	limit      *int64

	executed     bool
	buffer       []any
	materialized bool
	arr          []any
}

func (c *Cursor) Coll() *Coll {
	return c.coll
}

func (c *Cursor) Executed() bool {
	return c.executed
}

func (c *Cursor) String() string {
	query := c.query
	if query == nil {
		query = bson.D{}
	}
	return "Cursor: " + c.coll.String() + " -> " + TojsonLine(query)
}

// Sort is accepted for compatibility but does not reorder results.
func (c *Cursor) Sort(spec any) (*Cursor, error) {
	if c.executed {
		return nil, errCursorExecuted()
	}
	slog.Debug("cursor sort ignored", slog.String("cursor", c.String()), slog.Any("sort", spec))
	return c, nil
}

func (c *Cursor) Skip(n any) (*Cursor, error) {
	if c.executed {
		return nil, errCursorExecuted()
	}
	v, ok := integerValue(n)
	if !ok || v < 0 {
		return nil, NewShellError(ErrValidation, "Skip amount must be an integer.")
	}
	c.skip = &v
	return c, nil
}

func (c *Cursor) Limit(n any) (*Cursor, error) {
	if c.executed {
		return nil, errCursorExecuted()
	}
	v, ok := integerValue(n)
	if !ok || v < 0 {
		return nil, NewShellError(ErrValidation, "Limit amount must be an integer.")
	}
	c.limit = &v
	return c, nil
}

// ExecuteQuery issues the find request once. Later calls run onSuccess
// right away without touching the network. The cursor counts as executed
// as soon as the request is issued so that no second find is ever sent.
func (c *Cursor) ExecuteQuery(ctx context.Context, onSuccess func() error, async bool) error {
	if c.executed {
		if onSuccess != nil {
			return onSuccess()
		}
		return nil
	}

	params := bson.D{}
	if c.query != nil {
		params = append(params, bson.E{Key: "query", Value: c.query})
	}
	if c.projection != nil {
		params = append(params, bson.E{Key: "projection", Value: c.projection})
	}
	if c.skip != nil {
		params = append(params, bson.E{Key: "skip", Value: *c.skip})
	}
	if c.limit != nil {
		params = append(params, bson.E{Key: "limit", Value: *c.limit})
	}
	c.executed = true

	req := getRequest(c.coll.URL()+"find", "dbCollectionFind", params)
	return c.shell.Gateway.MakeRequest(ctx, c.shell, req, func(resp Response) error {
		c.storeBatch(resultArray(resp))
		if onSuccess != nil {
			return onSuccess()
		}
		return nil
	}, async)
}

// storeBatch queues a server batch behind everything already buffered.
func (c *Cursor) storeBatch(batch []any) {
	reversed := slices.Clone(batch)
	slices.Reverse(reversed)
	c.buffer = append(reversed, c.buffer...)
}

func (c *Cursor) HasNext(ctx context.Context) (bool, error) {
	if err := c.ExecuteQuery(ctx, nil, false); err != nil {
		return false, err
	}
	return len(c.buffer) > 0, nil
}

func (c *Cursor) Next(ctx context.Context) (any, error) {
	if err := c.ExecuteQuery(ctx, nil, false); err != nil {
		return nil, err
	}
	if len(c.buffer) == 0 {
		return nil, errExhausted()
	}
	return c.pop(), nil
}

func (c *Cursor) pop() any {
	last := len(c.buffer) - 1
	v := c.buffer[last]
	c.buffer[last] = nil
	c.buffer = c.buffer[:last]
	return v
}

// ToArray drains the cursor. The array is cached: every call returns the
// same backing array, so changes made to it by the caller persist.
func (c *Cursor) ToArray(ctx context.Context) ([]any, error) {
	if c.materialized {
		return c.arr, nil
	}
	if err := c.ExecuteQuery(ctx, nil, false); err != nil {
		return nil, err
	}
	arr := c.buffer
	slices.Reverse(arr)
	if arr == nil {
		arr = []any{}
	}
	c.arr, c.buffer, c.materialized = arr, nil, true
	return c.arr, nil
}

// Count asks the server for the number of matching documents. It does not
// execute the cursor. Skip and limit apply only when useSkipLimit is set.
func (c *Cursor) Count(ctx context.Context, useSkipLimit bool) (int64, error) {
	params := bson.D{}
	if c.query != nil {
		params = append(params, bson.E{Key: "query", Value: c.query})
	}
	if useSkipLimit {
		if c.skip != nil {
			params = append(params, bson.E{Key: "skip", Value: *c.skip})
		}
		if c.limit != nil {
			params = append(params, bson.E{Key: "limit", Value: *c.limit})
		}
	}
	var count int64
	req := getRequest(c.coll.URL()+"count", "Cursor.count", params)
	err := c.shell.Gateway.MakeRequest(ctx, c.shell, req, func(resp Response) error {
		n, ok := integerValue(lookup(resp, "count"))
		if !ok {
			return fmt.Errorf("count response has no numeric count: %v", resp)
		}
		count = n
		return nil
	}, false)
	return count, err
}

func (c *Cursor) Size(ctx context.Context) (int64, error) {
	return c.Count(ctx, true)
}

// PrintBatch prints the next batch of results and marks the cursor as the
// one "it" continues. The batch size is read on every call.
func (c *Cursor) PrintBatch(ctx context.Context) error {
	sh := c.shell
	sh.lastUsedCursor = c
	size, err := sh.BatchSize()
	if err != nil {
		return err
	}
	return c.ExecuteQuery(ctx, func() error {
		for n := 0; n < size && len(c.buffer) > 0; n++ {
			sh.PrintValue(c.pop())
		}
		if len(c.buffer) > 0 {
			sh.Print(`Type "it" for more`)
		}
		return nil
	}, true)
}

// ResolveMissing makes integer properties index into the materialized
// results. Anything else is undefined.
func (c *Cursor) ResolveMissing(ctx context.Context, name string) (any, error) {
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 {
		return Undefined, nil
	}
	arr, err := c.ToArray(ctx)
	if err != nil {
		return nil, err
	}
	if i >= len(arr) {
		return Undefined, nil
	}
	return arr[i], nil
}

// integerValue accepts Go integers and integral floats.
func integerValue(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}
